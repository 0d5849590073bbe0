// Package manifest models a toolkit manifest: the immutable description of
// a toolchain plus the auxiliary tools that make up one toolkit release.
package manifest

import (
	"strings"
)

// FileName is the conventional manifest file name.
const FileName = "toolset-manifest.toml"

// ToolchainPseudoNames may appear in requires lists to mean "needs the
// toolchain"; they never name a real tool.
var ToolchainPseudoNames = []string{"rust", "toolchain"}

// IsToolchainPseudo reports whether name refers to the toolchain itself.
func IsToolchainPseudo(name string) bool {
	for _, n := range ToolchainPseudoNames {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Manifest is loaded once per operation and never mutated afterwards.
type Manifest struct {
	Name    string
	Version string
	Edition string

	Toolchain Toolchain

	// Targets maps a target triple to its tools in declaration order.
	Targets map[string][]Tool

	Descriptions map[string]string
	Groups       []Group

	Proxy      *Proxy
	DistServer string
	UpdateRoot string
	Registry   *CargoRegistry

	// Raw holds the bytes the manifest was parsed from.
	Raw []byte
	// BaseDir resolves relative path sources. Empty for remote manifests.
	BaseDir string
	// Offline is set when every payload ships alongside the manifest.
	Offline bool
}

// Toolchain describes the managed toolchain.
type Toolchain struct {
	Channel            string
	Profile            string
	DisplayName        string
	Description        string
	Group              string
	OfflineDistServer  string
	Components         []string
	OptionalComponents []string
	// Rustup maps target triples to a bundled rustup-init.
	Rustup map[string]string
}

// Name is the label shown for the toolchain.
func (t Toolchain) Name() string {
	switch {
	case t.DisplayName != "":
		return t.DisplayName
	case t.Group != "":
		return t.Group
	}
	return "Rust"
}

// Group is a named set of tools, kept in declaration order.
type Group struct {
	Name  string
	Tools []string
}

// Proxy configures outbound downloads and is exported to the environment.
type Proxy struct {
	HTTP    string
	HTTPS   string
	NoProxy string
}

// CargoRegistry names a package registry mirror.
type CargoRegistry struct {
	Name  string
	Index string
}

// ToolsFor returns the tools declared for target, in declaration order.
func (m *Manifest) ToolsFor(target string) []Tool {
	return m.Targets[target]
}

// HostTools returns the tools for the running platform.
func (m *Manifest) HostTools() []Tool {
	return m.ToolsFor(HostTriple())
}

// Tool finds a host tool by name.
func (m *Manifest) Tool(name string) (Tool, bool) {
	for _, t := range m.HostTools() {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// Description returns the description of a tool, if any.
func (m *Manifest) Description(name string) string {
	return m.Descriptions[name]
}

// GroupOf returns the group a tool belongs to.
func (m *Manifest) GroupOf(name string) string {
	for _, g := range m.Groups {
		for _, t := range g.Tools {
			if t == name {
				return g.Name
			}
		}
	}
	return ""
}

// ToolchainComponents lists required then optional components, flagging
// the optional ones.
func (m *Manifest) ToolchainComponents() []ComponentRef {
	refs := make([]ComponentRef, 0, len(m.Toolchain.Components)+len(m.Toolchain.OptionalComponents))
	for _, c := range m.Toolchain.Components {
		refs = append(refs, ComponentRef{Name: c})
	}
	for _, c := range m.Toolchain.OptionalComponents {
		refs = append(refs, ComponentRef{Name: c, Optional: true})
	}
	return refs
}

// ComponentRef names a toolchain component.
type ComponentRef struct {
	Name     string
	Optional bool
}

// HasRestricted reports whether any host tool still needs its source
// supplied by the front end.
func (m *Manifest) HasRestricted() bool {
	for _, t := range m.HostTools() {
		if t.Source.Kind == SourceRestricted && t.Source.Path == "" && t.Source.URL == "" {
			return true
		}
	}
	return false
}
