package toolchain

import (
	"os"
	"strings"

	"github.com/arthur-debert/kitman/pkg/execution"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/paths"
)

// Environment variable names rustup and cargo read.
const (
	EnvCargoHome        = "CARGO_HOME"
	EnvRustupHome       = "RUSTUP_HOME"
	EnvRustupDistServer = "RUSTUP_DIST_SERVER"
	EnvRustupUpdateRoot = "RUSTUP_UPDATE_ROOT"
	// EnvRustupToolchain would override the default toolchain of every
	// rustup call, so it is always removed from child environments.
	EnvRustupToolchain = "RUSTUP_TOOLCHAIN"

	DefaultDistServer = "https://static.rust-lang.org"
	DefaultUpdateRoot = "https://static.rust-lang.org/rustup"
)

// Settings is everything that shapes the toolchain's environment.
type Settings struct {
	Layout     paths.Layout
	DistServer string
	UpdateRoot string
	Proxy      *manifest.Proxy
}

func (s Settings) distServer() string {
	if s.DistServer != "" {
		return s.DistServer
	}
	return DefaultDistServer
}

func (s Settings) updateRoot() string {
	if s.UpdateRoot != "" {
		return strings.TrimRight(s.UpdateRoot, "/")
	}
	return DefaultUpdateRoot
}

// Vars are the variables a shell needs to use the installed toolchain.
func (s Settings) Vars() map[string]string {
	vars := map[string]string{
		EnvCargoHome:        s.Layout.CargoHome(),
		EnvRustupHome:       s.Layout.RustupHome(),
		EnvRustupDistServer: s.distServer(),
		EnvRustupUpdateRoot: s.updateRoot(),
	}
	for name, value := range ProxyVars(s.Proxy) {
		vars[name] = value
	}
	return vars
}

// ProxyVars maps a manifest proxy table to the conventional lower-case
// variables.
func ProxyVars(p *manifest.Proxy) map[string]string {
	vars := map[string]string{}
	if p == nil {
		return vars
	}
	if p.HTTP != "" {
		vars["http_proxy"] = p.HTTP
	}
	if p.HTTPS != "" {
		vars["https_proxy"] = p.HTTPS
	}
	if p.NoProxy != "" {
		vars["no_proxy"] = p.NoProxy
	}
	return vars
}

// Environ is the environment for rustup and cargo child processes, built
// on base (os.Environ when nil).
func (s Settings) Environ(base []string) []string {
	if base == nil {
		base = os.Environ()
	}
	vars := s.Vars()
	// Keep the user's own exclusions.
	if np, ok := vars["no_proxy"]; ok {
		if cur, found := execution.Lookup(base, "no_proxy"); found && cur != "" && cur != np {
			vars["no_proxy"] = np + "," + cur
		}
	}
	return execution.Environ(base, vars, []string{s.Layout.CargoBin()}, EnvRustupToolchain)
}
