// Package components projects a manifest and the installation record into
// the flat list of selectable components front ends show: the toolchain
// profile, its components, and the auxiliary tools.
package components

import (
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/manifest"
)

// Type separates the three component sources.
type Type string

const (
	TypeToolchainProfile   Type = "toolchain-profile"
	TypeToolchainComponent Type = "toolchain-component"
	TypeTool               Type = "tool"
)

// ToolchainName is the component name of the toolchain itself.
const ToolchainName = "rust"

// Component is a read-only view; it is rebuilt on every call.
type Component struct {
	Name        string              `json:"name" yaml:"name"`
	DisplayName string              `json:"display_name" yaml:"display_name"`
	Version     string              `json:"version,omitempty" yaml:"version,omitempty"`
	Group       string              `json:"group,omitempty" yaml:"group,omitempty"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Type        Type                `json:"type" yaml:"type"`
	ToolKind    manifest.ToolKind   `json:"tool_kind,omitempty" yaml:"tool_kind,omitempty"`
	Required    bool                `json:"required" yaml:"required"`
	Optional    bool                `json:"optional" yaml:"optional"`
	Installed   bool                `json:"installed" yaml:"installed"`
	Source      manifest.SourceKind `json:"-" yaml:"-"`
}

// IsToolchain reports whether c is part of the toolchain rather than a
// tool.
func (c Component) IsToolchain() bool {
	return c.Type != TypeTool
}

// FromManifest lists the host components of m; rec marks installed ones.
func FromManifest(m *manifest.Manifest, rec *fingerprint.Record) []Component {
	tc := m.Toolchain
	list := []Component{{
		Name:        ToolchainName,
		DisplayName: tc.Name(),
		Version:     tc.Channel,
		Group:       tc.Group,
		Description: tc.Description,
		Type:        TypeToolchainProfile,
		Required:    true,
		Installed:   rec.HasToolchain(),
	}}
	for _, ref := range m.ToolchainComponents() {
		list = append(list, Component{
			Name:        ref.Name,
			DisplayName: ref.Name,
			Version:     tc.Channel,
			Group:       tc.Group,
			Description: m.Description(ref.Name),
			Type:        TypeToolchainComponent,
			Required:    !ref.Optional,
			Optional:    ref.Optional,
			Installed:   rec.HasComponent(ref.Name),
		})
	}
	for _, t := range m.HostTools() {
		list = append(list, Component{
			Name:        t.Name,
			DisplayName: t.Label(),
			Version:     t.Version(),
			Group:       m.GroupOf(t.Name),
			Description: m.Description(t.Name),
			Type:        TypeTool,
			ToolKind:    t.Kind,
			Required:    t.Required,
			Optional:    t.Optional,
			Installed:   rec.HasTool(t.Name),
			Source:      t.Source.Kind,
		})
	}
	return list
}

// Defaults is the selection used when the user picks nothing: everything
// that is not optional.
func Defaults(list []Component) []Component {
	var out []Component
	for _, c := range list {
		if c.Required || !c.Optional {
			out = append(out, c)
		}
	}
	return out
}

// Installed filters the list down to what rec says is present.
func Installed(list []Component) []Component {
	var out []Component
	for _, c := range list {
		if c.Installed {
			out = append(out, c)
		}
	}
	return out
}

// Select resolves names against list. Required components are always
// included; an empty names list selects the defaults.
func Select(list []Component, names []string) ([]Component, error) {
	if len(names) == 0 {
		return Defaults(list), nil
	}
	index := map[string]int{}
	for i, c := range list {
		index[c.Name] = i
	}
	chosen := map[int]bool{}
	for _, n := range names {
		if manifest.IsToolchainPseudo(n) {
			n = ToolchainName
		}
		i, ok := index[n]
		if !ok {
			return nil, errors.Newf(errors.ErrInvalidInput, "unknown component %q", n)
		}
		chosen[i] = true
	}
	var out []Component
	for i, c := range list {
		if c.Required || chosen[i] {
			out = append(out, c)
		}
	}
	return out, nil
}

// Names returns the names of list in order.
func Names(list []Component) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.Name)
	}
	return out
}
