package core

import (
	"sort"

	"github.com/arthur-debert/kitman/pkg/envconf"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/paths"
	"github.com/arthur-debert/kitman/pkg/toolchain"
	"github.com/arthur-debert/kitman/pkg/tools"
)

// Environment is what the Configurator persists for an installation of m
// configured by cfg. Front ends use it to print the shell setup.
func Environment(m *manifest.Manifest, cfg Config) envconf.Environment {
	if cfg.InstallDir == "" {
		cfg.InstallDir = paths.DefaultInstallDir()
	}
	s := &session{
		target: &Target{Manifest: m, Config: cfg},
		layout: paths.NewLayout(cfg.InstallDir),
	}
	return buildEnvironment(s.layout, s.settings())
}

// environment is the toolchain variables, proxies and the cargo bin dir
// on PATH.
func (s *session) environment() envconf.Environment {
	return buildEnvironment(s.layout, s.adapter.Settings())
}

func buildEnvironment(layout paths.Layout, st toolchain.Settings) envconf.Environment {
	vars := st.Vars()
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	env := envconf.Environment{Paths: []string{layout.CargoBin()}}
	for _, name := range names {
		env.Vars = append(env.Vars, envconf.Var{
			Name:  name,
			Value: vars[name],
			// The user's own exclusions stay in effect.
			AppendExisting: name == "no_proxy",
		})
	}
	return env
}

// configurator is nil when the user opted out of environment changes.
func (s *session) configurator() envconf.Configurator {
	if !s.target.Config.AddToPath {
		return nil
	}
	return s.e.envconf
}

// toolsEnv snapshots the record for one executor call.
func (s *session) toolsEnv() tools.Env {
	return tools.Env{
		Layout:       s.layout,
		Environ:      s.adapter.Environ(),
		Toolchain:    s.adapter,
		Configurator: s.configurator(),
		Recorder:     s.store,
		Installed:    s.store.Record(),
		Manifest:     s.target.Manifest,
		Tracker:      s.e.tracker,
	}
}
