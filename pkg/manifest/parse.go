package manifest

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/internal/hashutil"
	toml "github.com/pelletier/go-toml"
)

// Parse decodes manifest bytes. Relative path sources are resolved against
// baseDir when it is set. Table order in the file is kept: it is the
// tie-breaker for install ordering.
func Parse(data []byte, baseDir string) (*Manifest, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrManifestParse, "invalid toolkit manifest")
	}

	m := &Manifest{
		Name:         str(tree, "name"),
		Version:      str(tree, "version"),
		Edition:      str(tree, "edition"),
		DistServer:   str(tree, "rustup-dist-server"),
		UpdateRoot:   str(tree, "rustup-update-root"),
		Targets:      map[string][]Tool{},
		Descriptions: map[string]string{},
		Raw:          append([]byte(nil), data...),
		BaseDir:      baseDir,
	}

	tc := sub(tree, "rust")
	if tc == nil {
		tc = sub(tree, "toolchain")
	}
	if tc == nil {
		return nil, errors.New(errors.ErrManifestParse, "manifest has no [rust] table")
	}
	if err := parseToolchain(tc, &m.Toolchain); err != nil {
		return nil, err
	}

	if p := sub(tree, "proxy"); p != nil {
		m.Proxy = &Proxy{
			HTTP:    str(p, "http"),
			HTTPS:   str(p, "https"),
			NoProxy: firstStr(p, "no-proxy", "no_proxy"),
		}
	}
	if r := sub(tree, "cargo-registry"); r != nil {
		m.Registry = &CargoRegistry{Name: str(r, "name"), Index: str(r, "index")}
		if m.Registry.Name == "" || m.Registry.Index == "" {
			return nil, errors.New(errors.ErrManifestParse, "cargo-registry needs both name and index")
		}
	}

	if tools := sub(tree, "tools"); tools != nil {
		if d := sub(tools, "descriptions"); d != nil {
			for _, k := range orderedKeys(d) {
				m.Descriptions[k] = str(d, k)
			}
		}
		if g := sub(tools, "group"); g != nil {
			for _, k := range orderedKeys(g) {
				m.Groups = append(m.Groups, Group{Name: k, Tools: strs(g, k)})
			}
		}
		if targets := sub(tools, "target"); targets != nil {
			for _, triple := range orderedKeys(targets) {
				table := sub(targets, triple)
				if table == nil {
					return nil, errors.Newf(errors.ErrManifestParse, "tools.target.%s must be a table", triple)
				}
				list, err := parseTools(table, baseDir)
				if err != nil {
					return nil, err
				}
				m.Targets[triple] = list
			}
		}
	}

	m.Offline = m.Toolchain.OfflineDistServer != "" && allLocal(m.HostTools())
	return m, nil
}

func parseToolchain(tc *toml.Tree, out *Toolchain) error {
	out.Channel = firstStr(tc, "channel", "version")
	if out.Channel == "" {
		return errors.New(errors.ErrManifestParse, "toolchain channel is required")
	}
	out.DisplayName = firstStr(tc, "display-name", "verbose-name")
	out.Description = str(tc, "description")
	out.Group = str(tc, "group")
	out.OfflineDistServer = str(tc, "offline-dist-server")
	out.Components = strs(tc, "components")
	out.OptionalComponents = strs(tc, "optional-components")

	switch p := tc.GetPath([]string{"profile"}).(type) {
	case string:
		out.Profile = p
	case *toml.Tree:
		// Older manifests describe the profile as its own table.
		out.Profile = str(p, "name")
		if out.DisplayName == "" {
			out.DisplayName = str(p, "verbose-name")
		}
		if out.Description == "" {
			out.Description = str(p, "description")
		}
	}

	if r := sub(tc, "rustup"); r != nil {
		out.Rustup = map[string]string{}
		for _, k := range orderedKeys(r) {
			out.Rustup[k] = str(r, k)
		}
	}
	return nil
}

func parseTools(table *toml.Tree, baseDir string) ([]Tool, error) {
	var list []Tool
	for _, name := range orderedKeys(table) {
		var tool Tool
		switch v := table.GetPath([]string{name}).(type) {
		case string:
			tool = Tool{Name: name, Source: Source{Kind: SourceVersion, Version: v}}
		case *toml.Tree:
			t, err := parseToolDetails(name, v, baseDir)
			if err != nil {
				return nil, err
			}
			tool = t
		default:
			return nil, errors.Newf(errors.ErrManifestParse, "tool %q must be a version string or a table", name)
		}
		list = append(list, tool)
	}
	return list, nil
}

func parseToolDetails(name string, t *toml.Tree, baseDir string) (Tool, error) {
	kind, ok := ParseKind(str(t, "kind"))
	if !ok {
		return Tool{}, errors.Newf(errors.ErrManifestParse, "tool %q has unknown kind %q", name, str(t, "kind"))
	}

	tool := Tool{
		Name:          name,
		Kind:          kind,
		DisplayName:   str(t, "display-name"),
		Identifier:    str(t, "identifier"),
		Required:      boolean(t, "required"),
		Optional:      boolean(t, "optional"),
		GUIOnly:       boolean(t, "gui-only"),
		Requires:      strsAny(t, "requires", "dependencies"),
		Obsoletes:     strs(t, "obsoletes"),
		Conflicts:     strs(t, "conflicts"),
		InstallerArgs: strs(t, "installer-args"),
		Uninstaller:   str(t, "uninstaller"),
		Editor:        str(t, "editor"),
	}

	version := firstStr(t, "version", "ver")
	switch {
	case t.Has("restricted"):
		tool.Source = Source{Kind: SourceRestricted, Version: version, Default: str(t, "default"), Path: str(t, "source")}
	case t.Has("git"):
		tool.Source = Source{Kind: SourceGit, Version: version, Git: str(t, "git"),
			Branch: str(t, "branch"), Tag: str(t, "tag"), Rev: str(t, "rev")}
	case t.Has("url"):
		tool.Source = Source{Kind: SourceURL, Version: version, URL: str(t, "url"), Filename: str(t, "filename"),
			SHA256: hashutil.Normalize(str(t, "sha256"))}
		if sum := tool.Source.SHA256; sum != "" && !isHexDigest(sum) {
			return Tool{}, errors.Newf(errors.ErrManifestParse, "tool %q has a malformed sha256", name).
				WithDetail("sha256", sum)
		}
	case t.Has("path"):
		tool.Source = Source{Kind: SourcePath, Version: version, Path: str(t, "path")}
	case version != "":
		tool.Source = Source{Kind: SourceVersion, Version: version}
	default:
		tool.Source = Source{Kind: SourceNone}
	}

	if tool.Source.Path != "" && baseDir != "" && !filepath.IsAbs(tool.Source.Path) {
		tool.Source.Path = filepath.Join(baseDir, filepath.FromSlash(tool.Source.Path))
	}
	if tool.Required && tool.Optional {
		return Tool{}, errors.Newf(errors.ErrManifestParse, "tool %q cannot be both required and optional", name)
	}
	return tool, nil
}

func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func allLocal(tools []Tool) bool {
	for _, t := range tools {
		if t.Source.Kind == SourceURL || t.Source.Kind == SourceGit || t.Source.Kind == SourceVersion {
			return false
		}
	}
	return true
}

// orderedKeys returns the keys of t in the order they appear in the file.
func orderedKeys(t *toml.Tree) []string {
	keys := t.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		pi := t.GetPositionPath([]string{keys[i]})
		pj := t.GetPositionPath([]string{keys[j]})
		if pi.Line != pj.Line {
			return pi.Line < pj.Line
		}
		return pi.Col < pj.Col
	})
	return keys
}

func sub(t *toml.Tree, key string) *toml.Tree {
	if v, ok := t.GetPath([]string{key}).(*toml.Tree); ok {
		return v
	}
	return nil
}

func str(t *toml.Tree, key string) string {
	switch v := t.GetPath([]string{key}).(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func firstStr(t *toml.Tree, keys ...string) string {
	for _, k := range keys {
		if s := str(t, k); s != "" {
			return s
		}
	}
	return ""
}

func boolean(t *toml.Tree, key string) bool {
	b, _ := t.GetPath([]string{key}).(bool)
	return b
}

func strs(t *toml.Tree, key string) []string {
	raw, ok := t.GetPath([]string{key}).([]interface{})
	if !ok {
		if s, ok := t.GetPath([]string{key}).([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, fmt.Sprint(v))
	}
	return out
}

func strsAny(t *toml.Tree, keys ...string) []string {
	for _, k := range keys {
		if v := strs(t, k); len(v) > 0 {
			return v
		}
	}
	return nil
}
