package envconf

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
)

// Dialect selects the syntax used inside a profile block.
type Dialect int

const (
	POSIX Dialect = iota
	Fish
)

var (
	shExport   = regexp.MustCompile(`^export ([A-Za-z_][A-Za-z0-9_]*)="(.*)"$`)
	fishSet    = regexp.MustCompile(`^set -gx ([A-Za-z_][A-Za-z0-9_]*) "((?:[^"\\]|\\.)*)"(.*)$`)
	fishPath   = regexp.MustCompile(`^set -gx PATH (.*) \$PATH$`)
	fishQuoted = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
)

func appendSuffix(name string) string {
	return fmt.Sprintf("${%s:+,$%s}", name, name)
}

func fishAppendSuffix(name string) string {
	return fmt.Sprintf(`(string join , '' $%s)`, name)
}

// render writes the body of a block, without markers.
func (b *block) render(d Dialect) string {
	if b.empty() {
		return ""
	}
	var sb strings.Builder
	for _, v := range b.vars {
		switch d {
		case Fish:
			line := fmt.Sprintf(`set -gx %s "%s"`, v.Name, fishEscape(v.Value))
			if v.AppendExisting {
				line += fishAppendSuffix(v.Name)
			}
			sb.WriteString(line + "\n")
		default:
			value := shEscape(v.Value)
			if v.AppendExisting {
				value += appendSuffix(v.Name)
			}
			fmt.Fprintf(&sb, "export %s=\"%s\"\n", v.Name, value)
		}
	}
	if len(b.paths) > 0 {
		switch d {
		case Fish:
			quoted := make([]string, 0, len(b.paths))
			for _, p := range b.paths {
				quoted = append(quoted, `"`+fishEscape(p)+`"`)
			}
			fmt.Fprintf(&sb, "set -gx PATH %s $PATH\n", strings.Join(quoted, " "))
		default:
			// One line per entry, last first, so the first path ends up
			// first on PATH and entries never need splitting.
			for i := len(b.paths) - 1; i >= 0; i-- {
				fmt.Fprintf(&sb, "%s%s%s\n", shPathPrefix, shEscape(b.paths[i]), shPathSuffix)
			}
		}
	}
	for _, l := range b.extra {
		sb.WriteString(l + "\n")
	}
	return sb.String()
}

// parseBlock reads a block body written by render. Lines it does not
// recognise are preserved verbatim.
func parseBlock(body string, d Dialect) *block {
	b := &block{}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !b.parseLine(line, d) {
			b.extra = append(b.extra, line)
		}
	}
	return b
}

func (b *block) parseLine(line string, d Dialect) bool {
	if d == Fish {
		if m := fishPath.FindStringSubmatch(line); m != nil {
			for _, q := range fishQuoted.FindAllStringSubmatch(m[1], -1) {
				b.paths = append(b.paths, fishUnescape(q[1]))
			}
			return true
		}
		if m := fishSet.FindStringSubmatch(line); m != nil {
			v := Var{Name: m[1], Value: fishUnescape(m[2])}
			switch m[3] {
			case "":
			case fishAppendSuffix(v.Name):
				v.AppendExisting = true
			default:
				return false
			}
			b.vars = append(b.vars, v)
			return true
		}
		return false
	}

	if p, ok := parseShPath(line); ok {
		b.paths = append([]string{p}, b.paths...)
		return true
	}
	if m := shExport.FindStringSubmatch(line); m != nil {
		v := Var{Name: m[1], Value: m[2]}
		if suffix := appendSuffix(v.Name); strings.HasSuffix(v.Value, suffix) {
			v.Value = strings.TrimSuffix(v.Value, suffix)
			v.AppendExisting = true
		}
		v.Value = shUnescape(v.Value)
		b.vars = append(b.vars, v)
		return true
	}
	return false
}

const (
	shPathPrefix = `export PATH="`
	shPathSuffix = `:$PATH"`
)

// parseShPath reads the single entry of a line written by render. The
// quoted value must be one escaped string: no bare quote and no dangling
// backslash before the suffix.
func parseShPath(line string) (string, bool) {
	if len(line) <= len(shPathPrefix)+len(shPathSuffix) ||
		!strings.HasPrefix(line, shPathPrefix) || !strings.HasSuffix(line, shPathSuffix) {
		return "", false
	}
	value := line[len(shPathPrefix) : len(line)-len(shPathSuffix)]
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '\\':
			if i+1 == len(value) {
				return "", false
			}
			i++
		case '"':
			return "", false
		}
	}
	return shUnescape(value), true
}

var shEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")

func shEscape(s string) string { return shEscaper.Replace(s) }

func shUnescape(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && strings.ContainsRune("\\\"$`", rune(s[i+1])) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

var fishEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`)

func fishEscape(s string) string { return fishEscaper.Replace(s) }

func fishUnescape(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && strings.ContainsRune("\\\"$", rune(s[i+1])) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// Render shows the lines Apply would write for env.
func Render(env Environment, d Dialect) string {
	b := &block{}
	b.merge(env)
	return b.render(d)
}

func samePath(a, b string) bool {
	a = strings.TrimRight(a, `/\`)
	b = strings.TrimRight(b, `/\`)
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}
