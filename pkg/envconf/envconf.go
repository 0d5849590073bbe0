// Package envconf makes the toolkit visible to new shells: it sets
// environment variables and prepends bin directories to PATH, and it can
// take exactly those changes back out again.
//
// On Unix the changes live in a marked block inside the user's shell
// profiles. On Windows they are values under HKCU\Environment.
package envconf

import (
	"strings"
)

// Markers delimit the block kitman owns inside a profile.
const (
	BeginMarker = "# >>> kitman >>>"
	EndMarker   = "# <<< kitman <<<"
)

// Var is one environment variable.
type Var struct {
	Name  string
	Value string
	// AppendExisting keeps whatever the user already had, after Value.
	// Used for no_proxy lists.
	AppendExisting bool
}

// Environment is a set of changes to apply or revert.
type Environment struct {
	Vars  []Var
	Paths []string
}

// Empty reports whether env changes nothing.
func (e Environment) Empty() bool {
	return len(e.Vars) == 0 && len(e.Paths) == 0
}

// Names lists the variable names.
func (e Environment) Names() []string {
	out := make([]string, 0, len(e.Vars))
	for _, v := range e.Vars {
		out = append(out, v.Name)
	}
	return out
}

// Configurator applies and reverts an Environment persistently.
type Configurator interface {
	Apply(env Environment) error
	Revert(env Environment) error
}

// block is the parsed content of kitman's section of one profile.
type block struct {
	vars  []Var
	paths []string
	// extra holds lines kitman did not write; they are kept as they are.
	extra []string
}

func (b *block) empty() bool {
	return len(b.vars) == 0 && len(b.paths) == 0 && len(b.extra) == 0
}

func (b *block) merge(env Environment) {
	for _, v := range env.Vars {
		replaced := false
		for i := range b.vars {
			if b.vars[i].Name == v.Name {
				b.vars[i] = v
				replaced = true
				break
			}
		}
		if !replaced {
			b.vars = append(b.vars, v)
		}
	}
	var fresh []string
	for _, p := range env.Paths {
		if !containsPath(b.paths, p) && !containsPath(fresh, p) {
			fresh = append(fresh, p)
		}
	}
	b.paths = append(fresh, b.paths...)
}

func (b *block) remove(env Environment) {
	drop := map[string]bool{}
	for _, v := range env.Vars {
		drop[v.Name] = true
	}
	vars := b.vars[:0]
	for _, v := range b.vars {
		if !drop[v.Name] {
			vars = append(vars, v)
		}
	}
	b.vars = vars

	paths := b.paths[:0]
	for _, p := range b.paths {
		if !containsPath(env.Paths, p) {
			paths = append(paths, p)
		}
	}
	b.paths = paths
}

// splitProfile separates content into what precedes kitman's block, the
// block body and what follows it. found is false when there is no block.
func splitProfile(content string) (before, body, after string, found bool) {
	start := strings.Index(content, BeginMarker)
	if start < 0 {
		return content, "", "", false
	}
	rest := content[start+len(BeginMarker):]
	end := strings.Index(rest, EndMarker)
	if end < 0 {
		// An unterminated block runs to the end of the file.
		return content[:start], strings.TrimPrefix(rest, "\n"), "", true
	}
	body = strings.TrimPrefix(rest[:end], "\n")
	after = strings.TrimPrefix(rest[end+len(EndMarker):], "\n")
	return content[:start], body, after, true
}

// joinProfile reassembles a profile; an empty block is left out.
func joinProfile(before, rendered, after string) string {
	if rendered == "" {
		before = strings.TrimRight(before, "\n")
		if before != "" && after != "" {
			return before + "\n" + after
		}
		if before != "" {
			return before + "\n"
		}
		return after
	}
	if before != "" && !strings.HasSuffix(before, "\n") {
		before += "\n"
	}
	return before + BeginMarker + "\n" + rendered + EndMarker + "\n" + after
}

func containsPath(list []string, p string) bool {
	for _, l := range list {
		if samePath(l, p) {
			return true
		}
	}
	return false
}
