package manifest

import (
	"path/filepath"
	"strings"
)

// ToolKind is the closed set of tool categories the executor dispatches on.
type ToolKind string

const (
	KindUnknown     ToolKind = ""
	KindDirWithBin  ToolKind = "dir-with-bin"
	KindInstaller   ToolKind = "installer"
	KindExecutables ToolKind = "executables"
	KindCustom      ToolKind = "custom"
	KindPlugin      ToolKind = "plugin"
	KindCargoTool   ToolKind = "cargo-tool"
	KindRuleSet     ToolKind = "rule-set"
	KindCrate       ToolKind = "crate"
)

// Kinds lists every concrete kind.
var Kinds = []ToolKind{
	KindDirWithBin, KindInstaller, KindExecutables, KindCustom,
	KindPlugin, KindCargoTool, KindRuleSet, KindCrate,
}

// ParseKind maps a manifest string to a kind.
func ParseKind(s string) (ToolKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return KindUnknown, true
	}
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return KindUnknown, false
}

// SourceKind says where a tool's payload comes from.
type SourceKind int

const (
	SourceVersion SourceKind = iota
	SourceGit
	SourceURL
	SourcePath
	SourceRestricted
	// SourceNone marks tools whose payload is supplied by their routine.
	SourceNone
)

func (k SourceKind) String() string {
	switch k {
	case SourceVersion:
		return "version"
	case SourceGit:
		return "git"
	case SourceURL:
		return "url"
	case SourcePath:
		return "path"
	case SourceRestricted:
		return "restricted"
	case SourceNone:
		return "none"
	}
	return "unknown"
}

// Source is the payload location of a tool.
type Source struct {
	Kind    SourceKind
	Version string

	Git    string
	Branch string
	Tag    string
	Rev    string

	URL      string
	Filename string
	// SHA256 is the expected hex digest of a downloaded payload.
	SHA256 string

	Path string

	// Default is shown to the user for restricted sources.
	Default string
}

// Tool is one entry of the tool table.
type Tool struct {
	Name        string
	Kind        ToolKind
	Source      Source
	DisplayName string
	Identifier  string

	Required bool
	Optional bool
	GUIOnly  bool

	Requires  []string
	Obsoletes []string
	Conflicts []string

	InstallerArgs []string
	Uninstaller   string
	Editor        string
}

// Version returns the declared version, if any.
func (t Tool) Version() string {
	if t.Source.Kind == SourceGit && t.Source.Version == "" {
		return t.Source.Tag
	}
	return t.Source.Version
}

// Label is the name to show users.
func (t Tool) Label() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Name
}

// IsCargoTool reports whether the tool is built from a registry or git.
func (t Tool) IsCargoTool() bool {
	if t.Kind == KindCargoTool {
		return true
	}
	return t.Kind == KindUnknown && (t.Source.Kind == SourceVersion || t.Source.Kind == SourceGit)
}

// RequiresToolchain reports whether the tool can only be installed once
// the toolchain is in place.
func (t Tool) RequiresToolchain() bool {
	if t.IsCargoTool() || t.Kind == KindRuleSet || t.Kind == KindCrate {
		return true
	}
	for _, r := range t.Requires {
		if IsToolchainPseudo(r) {
			return true
		}
	}
	return false
}

// ToolRequires returns requires entries that name other tools.
func (t Tool) ToolRequires() []string {
	var out []string
	for _, r := range t.Requires {
		if !IsToolchainPseudo(r) {
			out = append(out, r)
		}
	}
	return out
}

// LocalPath returns the payload path for path-like sources.
func (t Tool) LocalPath() string {
	if t.Source.Kind == SourcePath || t.Source.Kind == SourceRestricted {
		return t.Source.Path
	}
	return ""
}

// PayloadName is the file name of the payload once it is local.
func (t Tool) PayloadName() string {
	switch {
	case t.Source.Filename != "":
		return t.Source.Filename
	case t.Source.Path != "":
		return filepath.Base(t.Source.Path)
	case t.Source.URL != "":
		u := t.Source.URL
		if i := strings.IndexAny(u, "?#"); i >= 0 {
			u = u[:i]
		}
		return u[strings.LastIndex(u, "/")+1:]
	}
	return t.Name
}
