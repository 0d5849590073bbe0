package execution

import (
	"runtime"
	"sort"
	"strings"
)

// Environ builds a child environment from base: entries named in unset are
// dropped, set overrides or adds values, and prepend is put in front of
// PATH. The result is sorted so commands are reproducible in logs.
func Environ(base []string, set map[string]string, prepend []string, unset ...string) []string {
	vars := map[string]string{}
	order := map[string]string{} // folded name -> spelling
	put := func(name, value string) {
		key := fold(name)
		if prev, ok := order[key]; ok {
			delete(vars, prev)
		}
		order[key] = name
		vars[name] = value
	}
	for _, kv := range base {
		if name, value, ok := strings.Cut(kv, "="); ok && name != "" {
			put(name, value)
		}
	}
	for _, name := range unset {
		if prev, ok := order[fold(name)]; ok {
			delete(vars, prev)
			delete(order, fold(name))
		}
	}
	for name, value := range set {
		put(name, value)
	}
	if len(prepend) > 0 {
		pathName := "PATH"
		if prev, ok := order[fold(pathName)]; ok {
			pathName = prev
		}
		parts := append([]string(nil), prepend...)
		if cur := vars[pathName]; cur != "" {
			parts = append(parts, cur)
		}
		put(pathName, strings.Join(parts, listSeparator()))
	}

	out := make([]string, 0, len(vars))
	for name, value := range vars {
		out = append(out, name+"="+value)
	}
	sort.Strings(out)
	return out
}

// Lookup finds name in an environment list.
func Lookup(env []string, name string) (string, bool) {
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && fold(k) == fold(name) {
			return v, true
		}
	}
	return "", false
}

// Windows environment names are case-insensitive.
func fold(name string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(name)
	}
	return name
}

func listSeparator() string {
	if runtime.GOOS == "windows" {
		return ";"
	}
	return ":"
}
