package tools

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/arthur-debert/kitman/pkg/archive"
	"github.com/arthur-debert/kitman/pkg/cargoconfig"
	"github.com/arthur-debert/kitman/pkg/envconf"
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/execution"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/paths"
)

func (e *Executor) installCargoTool(ctx context.Context, tool manifest.Tool, env Env) error {
	args := []string{"install", tool.Name}
	src := tool.Source
	if src.Kind == manifest.SourceGit {
		args = append(args, "--git", src.Git)
		switch {
		case src.Rev != "":
			args = append(args, "--rev", src.Rev)
		case src.Tag != "":
			args = append(args, "--tag", src.Tag)
		case src.Branch != "":
			args = append(args, "--branch", src.Branch)
		}
	} else if src.Version != "" {
		args = append(args, "--version", src.Version)
	}
	return e.runner.Run(ctx, execution.Command{Name: env.cargo(), Args: args, Env: env.Environ})
}

// binDirOf returns dir/bin when it exists, otherwise dir.
func (e *Executor) binDirOf(dir string) string {
	if info, err := e.fs.Stat(filepath.Join(dir, paths.BinDirName)); err == nil && info.IsDir() {
		return filepath.Join(dir, paths.BinDirName)
	}
	return dir
}

func (e *Executor) installDirWithBin(tool manifest.Tool, src string, env Env, rec *fingerprint.ToolRecord) error {
	dir := env.Layout.ToolDir(tool.Name)
	if err := e.unpack(src, dir); err != nil {
		return err
	}
	rec.Paths = []string{dir}
	rec.BinDir = e.binDirOf(dir)
	return e.addPath(env, rec.BinDir)
}

func (e *Executor) uninstallDirWithBin(rec fingerprint.ToolRecord, env Env) error {
	if err := e.removePath(env, rec.BinDir); err != nil {
		return err
	}
	return e.removePaths(rec.Paths)
}

func (e *Executor) addPath(env Env, dir string) error {
	if env.Configurator == nil || dir == "" {
		return nil
	}
	return env.Configurator.Apply(envconf.Environment{Paths: []string{dir}})
}

func (e *Executor) removePath(env Env, dir string) error {
	if env.Configurator == nil || dir == "" {
		return nil
	}
	return env.Configurator.Revert(envconf.Environment{Paths: []string{dir}})
}

// installExecutables copies every file of the payload's bin dir (or the
// payload itself) into the cargo bin dir, which is already on PATH.
func (e *Executor) installExecutables(tool manifest.Tool, src string, env Env, rec *fingerprint.ToolRecord) error {
	dir := src
	if info, err := e.fs.Stat(src); err == nil && !info.IsDir() {
		if !archive.IsArchive(src) {
			return e.copyExecutables([]string{src}, env, rec)
		}
		staging := filepath.Join(env.Layout.TempDir(), tool.Name+".unpacked")
		defer func() { _ = e.fs.RemoveAll(staging) }()
		if err := e.unpack(src, staging); err != nil {
			return err
		}
		dir = staging
	}

	dir = e.binDirOf(dir)
	entries, err := e.fs.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "read %s", dir)
	}
	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return errors.Newf(errors.ErrNotFound, "no executables in %s", src)
	}
	return e.copyExecutables(files, env, rec)
}

func (e *Executor) copyExecutables(files []string, env Env, rec *fingerprint.ToolRecord) error {
	bin := env.Layout.CargoBin()
	for _, f := range files {
		dest := filepath.Join(bin, filepath.Base(f))
		if err := filesystem.CopyFileFS(e.fs, f, dest); err != nil {
			return err
		}
		if err := e.fs.Chmod(dest, 0o755); err != nil {
			return errors.Wrapf(err, errors.ErrFileAccess, "chmod %s", dest)
		}
		rec.Paths = append(rec.Paths, dest)
	}
	return nil
}

func (e *Executor) installPlugin(ctx context.Context, tool manifest.Tool, vsix string, env Env, rec *fingerprint.ToolRecord) error {
	id, err := ExtensionID(vsix)
	if err != nil {
		return err
	}
	editor := tool.Editor
	if editor == "" {
		editor = DefaultEditor
	}
	cmd := execution.Command{
		Name: EditorCommand(env.Installed, editor),
		Args: []string{"--install-extension", vsix, "--force"},
		Env:  env.Environ,
	}
	if err := e.runner.Run(ctx, cmd); err != nil {
		return err
	}
	rec.ExtensionID = id
	rec.Editor = editor
	return nil
}

func (e *Executor) uninstallPlugin(ctx context.Context, rec fingerprint.ToolRecord, env Env) error {
	if rec.ExtensionID == "" {
		return nil
	}
	cmd := execution.Command{
		Name: EditorCommand(env.Installed, rec.Editor),
		Args: []string{"--uninstall-extension", rec.ExtensionID},
		Env:  env.Environ,
	}
	return e.runner.Run(ctx, cmd)
}

// installerCommand builds the silent install command for a vendor
// installer.
func installerCommand(tool manifest.Tool, path string) (execution.Command, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".msi"):
		args := append([]string{"/i", path, "/qn", "/norestart"}, tool.InstallerArgs...)
		return execution.Command{Name: "msiexec", Args: args}, nil
	case strings.HasSuffix(lower, ".exe"):
		args := tool.InstallerArgs
		if len(args) == 0 {
			args = []string{"/S"}
		}
		return execution.Command{Name: path, Args: args}, nil
	case strings.HasSuffix(lower, ".sh"):
		return execution.Command{Name: "sh", Args: append([]string{path}, tool.InstallerArgs...)}, nil
	}
	return execution.Command{}, errors.Newf(errors.ErrUnsupportedFormat, "%s is not a supported installer", filepath.Base(path))
}

func (e *Executor) installInstaller(ctx context.Context, tool manifest.Tool, path string, env Env, rec *fingerprint.ToolRecord) error {
	cmd, err := installerCommand(tool, path)
	if err != nil {
		return err
	}
	cmd.Env = env.Environ
	if err := e.runner.Run(ctx, cmd); err != nil {
		return err
	}
	rec.Uninstaller = tool.Uninstaller
	if rec.Uninstaller == "" {
		rec.Uninstaller, _ = e.host.LookupUninstallCommand(tool.Label())
	}
	return nil
}

func (e *Executor) uninstallInstaller(ctx context.Context, rec fingerprint.ToolRecord, env Env) error {
	line := rec.Uninstaller
	if line == "" {
		var ok bool
		if line, ok = e.host.LookupUninstallCommand(rec.Name); !ok {
			return errors.Newf(errors.ErrNotFound, "no uninstaller known for %s", rec.Name)
		}
	}
	argv := SplitCommandLine(line)
	if len(argv) == 0 {
		return errors.Newf(errors.ErrInvalidInput, "empty uninstaller for %s", rec.Name)
	}
	return e.runner.Run(ctx, execution.Command{Name: argv[0], Args: argv[1:], Env: env.Environ})
}

// crateDir names the unpacked source of a crate payload.
func crateDir(tool manifest.Tool, src string) string {
	if v := tool.Version(); v != "" {
		return tool.Name + "-" + v
	}
	return strings.TrimSuffix(filepath.Base(src), ".crate")
}

func (e *Executor) installCrate(tool manifest.Tool, src string, env Env, rec *fingerprint.ToolRecord) error {
	dir := filepath.Join(env.Layout.CratesDir(), crateDir(tool, src))
	if err := e.unpack(src, dir); err != nil {
		return err
	}
	cfg, err := cargoconfig.Load(e.fs, env.Layout.CargoConfig())
	if err != nil {
		return err
	}
	cfg.AddPatch(tool.Name, dir)
	if err := cfg.Save(); err != nil {
		return err
	}
	rec.PatchPath = dir
	rec.Paths = []string{dir}
	return nil
}

func (e *Executor) uninstallCrate(rec fingerprint.ToolRecord, env Env) error {
	cfg, err := cargoconfig.Load(e.fs, env.Layout.CargoConfig())
	if err != nil {
		return err
	}
	cfg.RemovePatch(rec.Name)
	if err := cfg.Save(); err != nil {
		return err
	}
	if err := e.removePaths(rec.Paths); err != nil {
		return err
	}
	return filesystem.RemoveIfEmpty(e.fs, env.Layout.CratesDir())
}

func (e *Executor) installRuleSet(ctx context.Context, tool manifest.Tool, src string, env Env, rec *fingerprint.ToolRecord) error {
	if env.Toolchain == nil {
		return errors.Newf(errors.ErrToolchain, "rule-set %s needs the toolchain", tool.Name)
	}
	dir := env.Layout.ToolDir(tool.Name)
	if err := e.unpack(src, dir); err != nil {
		return err
	}
	if err := env.Toolchain.Link(ctx, tool.Name, dir); err != nil {
		return err
	}
	rec.Toolchain = tool.Name
	rec.Paths = []string{dir}
	return nil
}

// uninstallRuleSet unlinks the toolchain unless another installed tool
// still requires the rule-set, in which case its files stay too.
func (e *Executor) uninstallRuleSet(ctx context.Context, rec fingerprint.ToolRecord, env Env) error {
	// A rule-set that is kept stays recorded, so this is an error.
	if users := dependents(rec.Name, env); len(users) > 0 {
		e.logger.Warn().Str("tool", rec.Name).Strs("requiredBy", users).
			Msg("rule-set still required, keeping its toolchain")
		return errors.Newf(errors.ErrDependency, "%s is still required by %s", rec.Name, strings.Join(users, ", ")).
			WithDetail("requiredBy", users)
	}
	if env.Toolchain != nil && rec.Toolchain != "" {
		if err := env.Toolchain.Unlink(ctx, rec.Toolchain); err != nil {
			return err
		}
	}
	return e.removePaths(rec.Paths)
}

// dependents lists installed tools whose manifest entry requires name.
func dependents(name string, env Env) []string {
	if env.Manifest == nil || env.Installed == nil {
		return nil
	}
	var out []string
	for _, t := range env.Manifest.HostTools() {
		if t.Name == name || !env.Installed.HasTool(t.Name) {
			continue
		}
		for _, r := range t.Requires {
			if r == name {
				out = append(out, t.Name)
			}
		}
	}
	return out
}

// SplitCommandLine splits an uninstall command as stored by installers:
// whitespace separated, with double quotes grouping.
func SplitCommandLine(s string) []string {
	var (
		out     []string
		cur     strings.Builder
		quoted  bool
		pending bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			pending = true
		case (r == ' ' || r == '\t') && !quoted:
			if pending {
				out = append(out, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteRune(r)
			pending = true
		}
	}
	if pending {
		out = append(out, cur.String())
	}
	return out
}

// DefaultEditor is the editor plugins target when they name none.
const DefaultEditor = "vscode"

// EditorCommand finds the editor CLI: inside the installed editor tool
// when kitman installed it, otherwise on PATH.
func EditorCommand(installed *fingerprint.Record, editor string) string {
	cli := editor
	switch editor {
	case "", "vscode":
		editor, cli = "vscode", "code"
	case "vscodium":
		cli = "codium"
	}
	if rec, ok := installed.Tool(editor); ok && rec.BinDir != "" {
		name := cli
		if runtime.GOOS == "windows" {
			name += ".cmd"
		}
		return filepath.Join(rec.BinDir, name)
	}
	return cli
}
