// Package cargoconfig edits the package manager's config.toml under the
// managed cargo home. Keys kitman does not own are preserved.
package cargoconfig

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/types"
	toml "github.com/pelletier/go-toml/v2"
)

const defaultRegistry = "crates-io"

// Config is a loaded config.toml.
type Config struct {
	fs   types.FS
	path string
	data map[string]interface{}
}

// Load reads path; a missing file loads as empty.
func Load(fsys types.FS, path string) (*Config, error) {
	c := &Config{fs: fsys, path: path, data: map[string]interface{}{}}
	raw, err := fsys.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "read %s", path)
	}
	if err := toml.Unmarshal(raw, &c.data); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "parse %s", path)
	}
	return c, nil
}

// SetRegistry points crates-io at a mirror.
func (c *Config) SetRegistry(name, index string) {
	source := c.table("source")
	crates := table(source, defaultRegistry)
	crates["replace-with"] = name
	mirror := table(source, name)
	mirror["registry"] = index
}

// Registry returns the configured mirror, if any.
func (c *Config) Registry() (name, index string, ok bool) {
	source, _ := c.data["source"].(map[string]interface{})
	crates, _ := source[defaultRegistry].(map[string]interface{})
	name, _ = crates["replace-with"].(string)
	if name == "" {
		return "", "", false
	}
	mirror, _ := source[name].(map[string]interface{})
	index, _ = mirror["registry"].(string)
	return name, index, true
}

// ClearRegistry drops the mirror set by SetRegistry.
func (c *Config) ClearRegistry() {
	name, _, ok := c.Registry()
	if !ok {
		return
	}
	source := c.table("source")
	delete(source, name)
	if crates, ok := source[defaultRegistry].(map[string]interface{}); ok {
		delete(crates, "replace-with")
		if len(crates) == 0 {
			delete(source, defaultRegistry)
		}
	}
	c.prune("source")
}

// AddPatch makes crate resolve to the source at dir.
func (c *Config) AddPatch(crate, dir string) {
	patch := table(c.table("patch"), defaultRegistry)
	patch[crate] = map[string]interface{}{"path": filepath.ToSlash(dir)}
}

// RemovePatch drops a patch entry.
func (c *Config) RemovePatch(crate string) {
	patch, ok := c.data["patch"].(map[string]interface{})
	if !ok {
		return
	}
	if crates, ok := patch[defaultRegistry].(map[string]interface{}); ok {
		delete(crates, crate)
		if len(crates) == 0 {
			delete(patch, defaultRegistry)
		}
	}
	c.prune("patch")
}

// Patches lists patched crate names, sorted.
func (c *Config) Patches() []string {
	patch, _ := c.data["patch"].(map[string]interface{})
	crates, _ := patch[defaultRegistry].(map[string]interface{})
	out := make([]string, 0, len(crates))
	for name := range crates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Save writes the file, or removes it when nothing is left.
func (c *Config) Save() error {
	if len(c.data) == 0 {
		if err := c.fs.Remove(c.path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, errors.ErrFileWrite, "remove %s", c.path)
		}
		return nil
	}
	raw, err := toml.Marshal(c.data)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "encode cargo config")
	}
	if err := c.fs.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "create %s", filepath.Dir(c.path))
	}
	if err := c.fs.WriteFile(c.path, raw, 0o644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "write %s", c.path)
	}
	return nil
}

func (c *Config) table(key string) map[string]interface{} {
	return table(c.data, key)
}

func (c *Config) prune(key string) {
	if t, ok := c.data[key].(map[string]interface{}); ok && len(t) == 0 {
		delete(c.data, key)
	}
}

func table(parent map[string]interface{}, key string) map[string]interface{} {
	if t, ok := parent[key].(map[string]interface{}); ok {
		return t
	}
	t := map[string]interface{}{}
	parent[key] = t
	return t
}
