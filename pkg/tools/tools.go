// Package tools installs and removes the auxiliary tools of a toolkit.
//
// Dispatch is a switch over the closed manifest.ToolKind set. Each kind
// knows how to place its payload and how to undo that; the result is a
// fingerprint.ToolRecord holding whatever the undo step will need. Every
// successful step is handed to the Recorder before the call returns.
package tools

import (
	"context"
	"path/filepath"

	"github.com/arthur-debert/kitman/pkg/envconf"
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/execution"
	"github.com/arthur-debert/kitman/pkg/fetch"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/hostos"
	"github.com/arthur-debert/kitman/pkg/logging"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/paths"
	"github.com/arthur-debert/kitman/pkg/progress"
	"github.com/arthur-debert/kitman/pkg/registry"
	"github.com/arthur-debert/kitman/pkg/types"
	"github.com/rs/zerolog"
)

// Linker registers rule-set directories as named toolchains.
type Linker interface {
	Link(ctx context.Context, name, dir string) error
	Unlink(ctx context.Context, name string) error
}

// Env is what one install or uninstall call works against.
type Env struct {
	Layout paths.Layout
	// Environ is the child environment for cargo and installers.
	Environ []string
	// Cargo is the cargo binary; empty uses the one in the cargo bin dir.
	Cargo     string
	Toolchain Linker
	// Configurator receives the bin dirs of dir-with-bin tools. Nil skips
	// PATH edits.
	Configurator envconf.Configurator
	Recorder     fingerprint.Recorder
	// Installed is the current record; it resolves editors and rule-set
	// dependents.
	Installed *fingerprint.Record
	Manifest  *manifest.Manifest
	Tracker   progress.Tracker
}

func (env Env) cargo() string {
	if env.Cargo != "" {
		return env.Cargo
	}
	return filepath.Join(env.Layout.CargoBin(), paths.ExeName("cargo"))
}

// Options configures an Executor.
type Options struct {
	FS       types.FS
	Runner   execution.Runner
	Fetcher  fetch.Fetcher
	Host     hostos.Host
	Routines registry.Registry[Routine]
	// ApplicationsDir receives desktop launchers; empty uses the XDG one.
	ApplicationsDir string
	Logger          *zerolog.Logger
}

// Executor installs and removes tools.
type Executor struct {
	fs       types.FS
	runner   execution.Runner
	fetcher  fetch.Fetcher
	host     hostos.Host
	routines registry.Registry[Routine]
	appsDir  string
	logger   zerolog.Logger
}

// New builds an Executor. Missing routines default to DefaultRoutines.
func New(opts Options) *Executor {
	if opts.FS == nil {
		opts.FS = filesystem.NewOS()
	}
	if opts.Host == nil {
		opts.Host = hostos.New()
	}
	if opts.Routines == nil {
		opts.Routines = DefaultRoutines()
	}
	if opts.ApplicationsDir == "" {
		opts.ApplicationsDir = hostos.ApplicationsDir()
	}
	return &Executor{
		fs:       opts.FS,
		runner:   opts.Runner,
		fetcher:  opts.Fetcher,
		host:     opts.Host,
		routines: opts.Routines,
		appsDir:  opts.ApplicationsDir,
		logger:   logging.OrDefault(opts.Logger, "tools"),
	}
}

// Install places tool and records it.
func (e *Executor) Install(ctx context.Context, tool manifest.Tool, env Env) (fingerprint.ToolRecord, error) {
	done := logging.LogOperationStart(e.logger, "tools.install "+tool.Name)
	defer done()

	p, err := e.fetchPayload(ctx, tool, env)
	if err != nil {
		return fingerprint.ToolRecord{}, err
	}
	defer p.cleanup()

	kind := tool.Kind
	if kind == manifest.KindUnknown {
		if kind, err = e.Infer(tool, p.path); err != nil {
			return fingerprint.ToolRecord{}, err
		}
	}
	e.logger.Info().Str("tool", tool.Name).Str("kind", string(kind)).Msg("installing tool")

	rec := fingerprint.ToolRecord{Name: tool.Name, Kind: kind, Version: tool.Version()}
	switch kind {
	case manifest.KindCargoTool:
		err = e.installCargoTool(ctx, tool, env)
	case manifest.KindDirWithBin:
		err = e.installDirWithBin(tool, p.path, env, &rec)
	case manifest.KindExecutables:
		err = e.installExecutables(tool, p.path, env, &rec)
	case manifest.KindPlugin:
		err = e.installPlugin(ctx, tool, p.path, env, &rec)
	case manifest.KindInstaller:
		err = e.installInstaller(ctx, tool, p.path, env, &rec)
	case manifest.KindCustom:
		err = e.installCustom(ctx, tool, p.path, env, &rec)
	case manifest.KindCrate:
		err = e.installCrate(tool, p.path, env, &rec)
	case manifest.KindRuleSet:
		err = e.installRuleSet(ctx, tool, p.path, env, &rec)
	default:
		err = errors.Newf(errors.ErrUnsupported, "tool %s has unsupported kind %q", tool.Name, kind)
	}
	if err != nil {
		return fingerprint.ToolRecord{}, errors.Wrapf(err, errors.GetErrorCode(err), "install %s", tool.Name)
	}

	if env.Recorder != nil {
		if err := env.Recorder.RecordTool(rec); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// Uninstall removes the recorded tool name and forgets it. A tool that is
// not recorded is left alone.
func (e *Executor) Uninstall(ctx context.Context, name string, installed *fingerprint.Record, env Env) error {
	done := logging.LogOperationStart(e.logger, "tools.uninstall "+name)
	defer done()

	rec, ok := installed.Tool(name)
	if !ok {
		e.logger.Debug().Str("tool", name).Msg("not installed, nothing to remove")
		return nil
	}
	if env.Installed == nil {
		env.Installed = installed
	}
	e.logger.Info().Str("tool", name).Str("kind", string(rec.Kind)).Msg("uninstalling tool")

	var err error
	switch rec.Kind {
	case manifest.KindCargoTool:
		err = e.runner.Run(ctx, execution.Command{Name: env.cargo(), Args: []string{"uninstall", name}, Env: env.Environ})
	case manifest.KindDirWithBin:
		err = e.uninstallDirWithBin(rec, env)
	case manifest.KindExecutables:
		err = e.removePaths(rec.Paths)
	case manifest.KindPlugin:
		err = e.uninstallPlugin(ctx, rec, env)
	case manifest.KindInstaller:
		err = e.uninstallInstaller(ctx, rec, env)
	case manifest.KindCustom:
		err = e.uninstallCustom(ctx, rec, env)
	case manifest.KindCrate:
		err = e.uninstallCrate(rec, env)
	case manifest.KindRuleSet:
		err = e.uninstallRuleSet(ctx, rec, env)
	default:
		err = errors.Newf(errors.ErrUnsupported, "tool %s has unsupported kind %q", name, rec.Kind)
	}
	if err != nil {
		return errors.Wrapf(err, errors.GetErrorCode(err), "uninstall %s", name)
	}

	if env.Recorder != nil {
		return env.Recorder.ForgetTool(name)
	}
	return nil
}
