package tools

import (
	"context"
	"path/filepath"
	"runtime"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/execution"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/hostos"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/registry"
)

// Routine installs a tool that needs bespoke steps.
type Routine interface {
	Install(ctx context.Context, rc RoutineContext) error
	Uninstall(ctx context.Context, rc RoutineContext) error
}

// RoutineContext carries one routine call. Record is filled by Install
// and holds the stored record for Uninstall.
type RoutineContext struct {
	Tool    manifest.Tool
	Payload string
	Env     Env
	Record  *fingerprint.ToolRecord
	Exec    *Executor
}

// DefaultRoutines registers the built-in routines.
func DefaultRoutines() registry.Registry[Routine] {
	r := registry.New[Routine]()
	registry.MustRegister[Routine](r, "vscode", ideRoutine{cli: "code", label: "Visual Studio Code"})
	registry.MustRegister[Routine](r, "vscodium", ideRoutine{cli: "codium", label: "VSCodium"})
	registry.MustRegister[Routine](r, "buildtools", buildToolsRoutine{})
	return r
}

// routineName is the registry key of a custom tool: its identifier when
// set, else its name.
func routineName(t manifest.Tool) string {
	if t.Identifier != "" {
		return t.Identifier
	}
	return t.Name
}

func (e *Executor) installCustom(ctx context.Context, tool manifest.Tool, src string, env Env, rec *fingerprint.ToolRecord) error {
	name := routineName(tool)
	routine, err := e.routines.Get(name)
	if err != nil {
		return errors.Wrapf(err, errors.ErrUnsupported, "no install routine named %s", name)
	}
	rec.Routine = name
	return routine.Install(ctx, RoutineContext{Tool: tool, Payload: src, Env: env, Record: rec, Exec: e})
}

func (e *Executor) uninstallCustom(ctx context.Context, rec fingerprint.ToolRecord, env Env) error {
	name := rec.Routine
	if name == "" {
		name = rec.Name
	}
	routine, err := e.routines.Get(name)
	if err != nil {
		return errors.Wrapf(err, errors.ErrUnsupported, "no uninstall routine named %s", name)
	}
	return routine.Uninstall(ctx, RoutineContext{Tool: manifest.Tool{Name: rec.Name}, Env: env, Record: &rec, Exec: e})
}

// ideRoutine unpacks an editor archive into the tools dir, puts its CLI on
// PATH and, on Linux, adds a desktop launcher.
type ideRoutine struct {
	cli   string
	label string
}

func (r ideRoutine) Install(_ context.Context, rc RoutineContext) error {
	e, env := rc.Exec, rc.Env
	if rc.Payload == "" {
		return errors.Newf(errors.ErrInvalidInput, "%s needs a source archive", rc.Tool.Name)
	}
	dir := env.Layout.ToolDir(rc.Tool.Name)
	if err := e.unpack(rc.Payload, dir); err != nil {
		return err
	}
	rc.Record.Paths = []string{dir}
	rc.Record.BinDir = e.binDirOf(dir)
	if err := e.addPath(env, rc.Record.BinDir); err != nil {
		return err
	}

	if runtime.GOOS == "linux" {
		entry := hostos.DesktopEntry{
			ID:      "kitman-" + rc.Tool.Name,
			Name:    rc.Tool.Label(),
			Comment: r.label,
			Exec:    filepath.Join(dir, r.cli) + " %F",
			Icon:    filepath.Join(dir, "resources", "app", "resources", "linux", "code.png"),
		}
		path, err := hostos.WriteDesktopEntry(e.fs, e.appsDir, entry)
		if err != nil {
			// The editor itself works without a launcher.
			e.logger.Warn().Err(err).Str("tool", rc.Tool.Name).Msg("desktop launcher not created")
		} else {
			rc.Record.Paths = append(rc.Record.Paths, path)
		}
	}
	return nil
}

func (r ideRoutine) Uninstall(_ context.Context, rc RoutineContext) error {
	e := rc.Exec
	if err := e.removePath(rc.Env, rc.Record.BinDir); err != nil {
		return err
	}
	for _, p := range rc.Record.Paths {
		if filepath.Ext(p) == ".desktop" {
			if _, err := hostos.RemoveDesktopEntry(e.fs, p); err != nil {
				return err
			}
			continue
		}
		if err := e.removePaths([]string{p}); err != nil {
			return err
		}
	}
	return nil
}

// buildToolsDisplayName is how the build tools register themselves.
const buildToolsDisplayName = "Visual Studio Build Tools 2022"

// vsSuccessReboot is the installer's "done, reboot required" exit code.
const vsSuccessReboot = 3010

// buildToolsRoutine runs the Visual Studio build tools bootstrapper for
// the C++ workload the msvc target links with.
type buildToolsRoutine struct{}

func (buildToolsRoutine) Install(ctx context.Context, rc RoutineContext) error {
	if runtime.GOOS != "windows" {
		return errors.New(errors.ErrUnsupported, "build tools are only installed on Windows")
	}
	if rc.Payload == "" {
		return errors.New(errors.ErrInvalidInput, "build tools need the bootstrapper")
	}
	e := rc.Exec
	cmd := execution.Command{
		Name: rc.Payload,
		Args: []string{
			"--wait", "--passive", "--norestart", "--nocache",
			"--add", "Microsoft.VisualStudio.Workload.VCTools",
			"--includeRecommended",
		},
		Env: rc.Env.Environ,
	}
	if err := e.runner.Run(ctx, cmd); err != nil {
		if code, _ := errors.GetErrorDetails(err)["exit_code"].(int); code != vsSuccessReboot {
			return err
		}
		rc.Env.Tracker.Message("Build tools installed; a reboot is required to finish")
	}
	rc.Record.Uninstaller, _ = e.host.LookupUninstallCommand(buildToolsDisplayName)
	return nil
}

func (buildToolsRoutine) Uninstall(ctx context.Context, rc RoutineContext) error {
	e := rc.Exec
	line := rc.Record.Uninstaller
	if line == "" {
		var ok bool
		if line, ok = e.host.LookupUninstallCommand(buildToolsDisplayName); !ok {
			e.logger.Warn().Msg("build tools uninstaller not found; assuming already removed")
			return nil
		}
	}
	argv := SplitCommandLine(line)
	if len(argv) == 0 {
		return nil
	}
	return e.runner.Run(ctx, execution.Command{Name: argv[0], Args: argv[1:], Env: rc.Env.Environ})
}
