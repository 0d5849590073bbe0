package core

import (
	"strings"

	"github.com/arthur-debert/kitman/pkg/components"
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/manifest"
)

// OperationKind names what an operation does to the installation.
type OperationKind string

const (
	KindInstallFresh         OperationKind = "install-fresh"
	KindModifyExisting       OperationKind = "modify-existing"
	KindUpgrade              OperationKind = "upgrade"
	KindUninstallAll         OperationKind = "uninstall-all"
	KindUninstallToolkitOnly OperationKind = "uninstall-toolkit-only"
)

// Operation names used for logs, spans and metrics.
const (
	opInstall    = "install"
	opUpdate     = "update"
	opUninstall  = "uninstall"
	opSelfUpdate = "self-update"
)

// Config is the per-request configuration a front end collects.
type Config struct {
	InstallDir   string `json:"install_dir,omitempty"`
	AddToPath    bool   `json:"add_to_path"`
	Insecure     bool   `json:"insecure,omitempty"`
	DistServer   string `json:"dist_server,omitempty"`
	UpdateRoot   string `json:"update_root,omitempty"`
	RegistryName string `json:"registry_name,omitempty"`
	RegistryURL  string `json:"registry_url,omitempty"`
}

// Request is what a front end asks Install or Update for.
type Request struct {
	// Components names the selected components; empty selects the
	// defaults.
	Components []string `json:"components,omitempty"`
	Config     Config   `json:"config"`
}

// Target is the resolved description of one operation. It is built per
// invocation and never persisted.
type Target struct {
	Kind     OperationKind
	Config   Config
	Manifest *manifest.Manifest
	Selected []components.Component
}

// Tools returns the selected tool names in manifest order.
func (t *Target) Tools() []string {
	var out []string
	for _, c := range t.Selected {
		if c.Type == components.TypeTool {
			out = append(out, c.Name)
		}
	}
	return out
}

// ToolchainComponents returns the selected toolchain component names.
func (t *Target) ToolchainComponents() []string {
	var out []string
	for _, c := range t.Selected {
		if c.Type == components.TypeToolchainComponent {
			out = append(out, c.Name)
		}
	}
	return out
}

// WantsToolchain reports whether the toolchain itself is selected.
func (t *Target) WantsToolchain() bool {
	for _, c := range t.Selected {
		if c.Type == components.TypeToolchainProfile {
			return true
		}
	}
	return false
}

// ToolFailure is a best-effort step that did not succeed.
type ToolFailure struct {
	Name string
	Err  error
	// Skipped is set when the tool never ran because something it
	// requires failed.
	Skipped bool
}

// Result enumerates what an operation achieved.
type Result struct {
	OperationID string
	Kind        OperationKind
	Succeeded   []string
	Removed     []string
	Failed      []ToolFailure
	// ToolchainErr is the failure of the toolchain step, if any.
	ToolchainErr error
	// Resumed holds the id of a crashed operation this one picked up.
	Resumed string
	// UpToDate is set when self-update found no newer release.
	UpToDate bool
}

// OK reports whether every step succeeded.
func (r *Result) OK() bool {
	return r != nil && len(r.Failed) == 0 && r.ToolchainErr == nil
}

// FailedNames lists failed tools in the order they failed.
func (r *Result) FailedNames() []string {
	out := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.Name)
	}
	return out
}

// Err summarizes partial failure as one error, nil when OK.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	var parts []string
	if r.ToolchainErr != nil {
		parts = append(parts, "toolchain")
	}
	parts = append(parts, r.FailedNames()...)
	err := errors.Newf(errors.ErrExternalTool, "%s finished with failures: %s", r.Kind, strings.Join(parts, ", "))
	return err.WithDetail("failed", r.FailedNames())
}

func (r *Result) fail(name string, err error, skipped bool) {
	r.Failed = append(r.Failed, ToolFailure{Name: name, Err: err, Skipped: skipped})
}
