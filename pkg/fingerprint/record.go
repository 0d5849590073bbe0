// Package fingerprint persists the record of what kitman has installed.
//
// The record is the single source of truth for uninstall and update. It is
// written after every tool or toolchain mutation so an interrupted run can
// be picked up from the last completed step. Only Store writes the file;
// everyone else mutates it through the Recorder interface.
package fingerprint

import (
	"github.com/arthur-debert/kitman/pkg/manifest"
)

// SchemaVersion is the current on-disk format.
const SchemaVersion = 1

// Record is the persisted installation state.
type Record struct {
	Schema     int    `toml:"schema" json:"schema" yaml:"schema"`
	Name       string `toml:"name,omitempty" json:"name,omitempty" yaml:"name,omitempty"`
	Version    string `toml:"version,omitempty" json:"version,omitempty" yaml:"version,omitempty"`
	Edition    string `toml:"edition,omitempty" json:"edition,omitempty" yaml:"edition,omitempty"`
	InstallDir string `toml:"install-dir" json:"install-dir" yaml:"install-dir"`

	// Manager is the path of the installed manager binary; empty when the
	// manager is not installed.
	Manager string `toml:"manager,omitempty" json:"manager,omitempty" yaml:"manager,omitempty"`

	// InProgress holds the id of the operation that last started and did
	// not finish.
	InProgress string `toml:"in-progress,omitempty" json:"in-progress,omitempty" yaml:"in-progress,omitempty"`

	Toolchain *ToolchainRecord `toml:"toolchain,omitempty" json:"toolchain,omitempty" yaml:"toolchain,omitempty"`

	// Tools is kept in the order they were last installed.
	Tools []ToolRecord `toml:"tool,omitempty" json:"tool,omitempty" yaml:"tool,omitempty"`
}

// ToolchainRecord is the installed toolchain.
type ToolchainRecord struct {
	Channel    string   `toml:"channel" json:"channel" yaml:"channel"`
	Profile    string   `toml:"profile,omitempty" json:"profile,omitempty" yaml:"profile,omitempty"`
	Components []string `toml:"components,omitempty" json:"components,omitempty" yaml:"components,omitempty"`
}

// ToolRecord is one installed tool.
type ToolRecord struct {
	Name    string            `toml:"name" json:"name" yaml:"name"`
	Kind    manifest.ToolKind `toml:"kind" json:"kind" yaml:"kind"`
	Version string            `toml:"version,omitempty" json:"version,omitempty" yaml:"version,omitempty"`
	Paths   []string          `toml:"paths,omitempty" json:"paths,omitempty" yaml:"paths,omitempty"`

	// BinDir was added to PATH for dir-with-bin tools.
	BinDir string `toml:"bin-dir,omitempty" json:"bin-dir,omitempty" yaml:"bin-dir,omitempty"`
	// ExtensionID and Editor identify an installed editor plugin.
	ExtensionID string `toml:"extension-id,omitempty" json:"extension-id,omitempty" yaml:"extension-id,omitempty"`
	Editor      string `toml:"editor,omitempty" json:"editor,omitempty" yaml:"editor,omitempty"`
	// Toolchain is the toolchain name a rule-set is linked as.
	Toolchain string `toml:"toolchain,omitempty" json:"toolchain,omitempty" yaml:"toolchain,omitempty"`
	// PatchPath is the crate source referenced from the cargo config.
	PatchPath string `toml:"patch-path,omitempty" json:"patch-path,omitempty" yaml:"patch-path,omitempty"`
	// Uninstaller is run to remove installer-kind tools.
	Uninstaller string `toml:"uninstaller,omitempty" json:"uninstaller,omitempty" yaml:"uninstaller,omitempty"`
	// Routine names the custom routine that installed the tool.
	Routine string `toml:"routine,omitempty" json:"routine,omitempty" yaml:"routine,omitempty"`
}

// New returns an empty record for an installation root.
func New(installDir string) *Record {
	return &Record{Schema: SchemaVersion, InstallDir: installDir}
}

// Tool returns the record of an installed tool.
func (r *Record) Tool(name string) (ToolRecord, bool) {
	if r == nil {
		return ToolRecord{}, false
	}
	for _, t := range r.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolRecord{}, false
}

// HasTool reports whether name is recorded as installed.
func (r *Record) HasTool(name string) bool {
	_, ok := r.Tool(name)
	return ok
}

// ToolNames lists installed tools in install order.
func (r *Record) ToolNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.Tools))
	for _, t := range r.Tools {
		names = append(names, t.Name)
	}
	return names
}

// SetTool records t as the most recently installed tool.
func (r *Record) SetTool(t ToolRecord) {
	r.RemoveTool(t.Name)
	r.Tools = append(r.Tools, t)
}

// RemoveTool drops name from the record. It reports whether it was present.
func (r *Record) RemoveTool(name string) bool {
	for i, t := range r.Tools {
		if t.Name == name {
			r.Tools = append(r.Tools[:i:i], r.Tools[i+1:]...)
			return true
		}
	}
	return false
}

// HasToolchain reports whether a toolchain is recorded.
func (r *Record) HasToolchain() bool {
	return r != nil && r.Toolchain != nil && r.Toolchain.Channel != ""
}

// HasComponent reports whether a toolchain component is recorded.
func (r *Record) HasComponent(name string) bool {
	if !r.HasToolchain() {
		return false
	}
	for _, c := range r.Toolchain.Components {
		if c == name {
			return true
		}
	}
	return false
}

// Empty reports whether nothing but the manager is recorded.
func (r *Record) Empty() bool {
	return r == nil || (len(r.Tools) == 0 && !r.HasToolchain())
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Toolchain != nil {
		tc := *r.Toolchain
		tc.Components = append([]string(nil), r.Toolchain.Components...)
		c.Toolchain = &tc
	}
	c.Tools = make([]ToolRecord, len(r.Tools))
	for i, t := range r.Tools {
		t.Paths = append([]string(nil), t.Paths...)
		c.Tools[i] = t
	}
	return &c
}

// Reset turns the record into an empty toolkit that only carries the
// manager marker. Tools named in keep stay recorded, since they are still
// on disk.
func (r *Record) Reset(keep ...string) {
	r.Name, r.Version, r.Edition = "", "", ""
	r.Toolchain = nil
	if len(keep) == 0 {
		r.Tools = nil
		return
	}
	want := make(map[string]bool, len(keep))
	for _, name := range keep {
		want[name] = true
	}
	var left []ToolRecord
	for _, t := range r.Tools {
		if want[t.Name] {
			left = append(left, t)
		}
	}
	r.Tools = left
}
