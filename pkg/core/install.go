package core

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/arthur-debert/kitman/pkg/cargoconfig"
	"github.com/arthur-debert/kitman/pkg/components"
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/hostos"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/metrics"
	"github.com/arthur-debert/kitman/pkg/paths"
	"github.com/arthur-debert/kitman/pkg/progress"
	"github.com/arthur-debert/kitman/pkg/resolver"
	"github.com/arthur-debert/kitman/pkg/toolchain"
)

// fixed steps counted by the main progress bar besides tools.
const installSteps = 5

// Install installs the selected components of m. A request against an
// existing installation adds what is missing.
//
// Fatal failures are returned as the error. Best-effort failures are only
// listed in the Result; callers check Result.OK.
func (e *Engine) Install(ctx context.Context, m *manifest.Manifest, req Request) (*Result, error) {
	s, err := e.begin(ctx, opInstall, req.Config.InstallDir)
	if err != nil {
		return nil, err
	}
	rec := s.store.Record()

	cfg := req.Config
	cfg.InstallDir = installDir(cfg.InstallDir, rec)
	if rec != nil && rec.InstallDir != "" && !samePath(rec.InstallDir, cfg.InstallDir) {
		return nil, s.end(errors.Newf(errors.ErrConflict,
			"kitman is already installed in %s", rec.InstallDir).WithDetail("install_dir", rec.InstallDir))
	}
	kind := KindInstallFresh
	if !rec.Empty() {
		kind = KindModifyExisting
	}

	t, err := newTarget(m, rec, req.Components, cfg, kind)
	if err != nil {
		return nil, s.end(err)
	}
	// Conflicts and cycles are reported here, before anything changes.
	plan, err := resolver.Resolve(resolver.Input{
		Requested: missingTools(t, rec),
		Tools:     m.HostTools(),
		Installed: rec.ToolNames(),
	})
	if err != nil {
		return nil, s.end(err)
	}
	s.prepare(t)
	s.logger.Info().
		Str("kind", string(kind)).
		Str("installDir", cfg.InstallDir).
		Strs("tools", plan.Names()).
		Msg("install planned")

	e.tracker.MainStart(fmt.Sprintf("Installing %s %s", m.Name, m.Version), int64(installSteps+len(plan.Install)))

	// Step 1: setup
	if err := s.step("setup", func(context.Context) error { return s.setup() }); err != nil {
		return s.result, s.end(err)
	}
	e.tracker.MainUpdate(1)

	if err := s.install(plan, false); err != nil {
		return s.result, s.end(err)
	}
	e.tracker.MainEnd(installSummary(s.result))
	return s.result, s.end(nil)
}

// install runs steps 2 to 7 for a resolved plan. prune drops recorded
// toolchain components that are no longer selected.
func (s *session) install(plan *resolver.Plan, prune bool) error {
	e := s.e

	// Step 2: environment
	if c := s.configurator(); c != nil {
		if err := s.step("environment", func(context.Context) error { return c.Apply(s.environment()) }); err != nil {
			return err
		}
	}
	e.tracker.MainUpdate(1)

	// Step 3: package registry, best effort
	if err := s.step("registry", func(context.Context) error { return s.configureRegistry() }); err != nil {
		s.logger.Warn().Err(err).Msg("could not configure the package registry")
		e.tracker.Message(fmt.Sprintf("Skipped package registry setup: %v", err))
	}
	e.tracker.MainUpdate(1)

	// Anything requiring a toolchain-built tool waits for the toolchain too.
	early, late := plan.Split(manifest.Tool.RequiresToolchain)
	failed := map[string]bool{}

	// Step 4: tools that work without the toolchain
	if err := s.installTools(plan, early, failed); err != nil {
		return err
	}

	// Step 5: toolchain, fatal for the toolchain portion only
	if s.target.WantsToolchain() {
		if err := s.step("toolchain", func(context.Context) error { return s.syncToolchain(prune) }); err != nil {
			s.result.ToolchainErr = err
			s.logger.Error().Err(err).Msg("toolchain step failed")
			e.tracker.Message(fmt.Sprintf("Toolchain setup failed: %v", err))
		}
	}
	e.tracker.MainUpdate(1)

	// Step 6: tools that build on the toolchain
	if err := s.installTools(plan, late, failed); err != nil {
		return err
	}

	// Step 7: final write
	err := s.step("finalize", func(context.Context) error {
		m := s.target.Manifest
		return s.store.Update(func(r *fingerprint.Record) {
			r.Name, r.Version, r.Edition = m.Name, m.Version, m.Edition
		})
	})
	e.tracker.MainUpdate(1)
	return err
}

// installTools installs list in order. Tools whose requirements failed
// are skipped and reported failed. Cancellation is honoured between tools.
func (s *session) installTools(plan *resolver.Plan, list []manifest.Tool, failed map[string]bool) error {
	e := s.e
	for _, tool := range list {
		if err := s.ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrCancelled, "operation cancelled")
		}
		if req := blockedBy(tool, failed); req != "" {
			failed[tool.Name] = true
			err := errors.Newf(errors.ErrDependency, "%s was skipped because %s failed", tool.Name, req).
				WithDetail("tool", tool.Name).WithDetail("requires", req)
			s.result.fail(tool.Name, err, true)
			e.metrics.ToolStep("install", kindLabel(tool.Kind), metrics.ResultSkipped)
			e.tracker.Message(err.Error())
			e.tracker.MainUpdate(1)
			continue
		}

		for _, old := range plan.ObsoletedBy(tool.Name) {
			s.uninstallTool(old)
		}

		e.tracker.SubStart("Installing "+tool.Label(), 0, progress.UnitItems)
		rec, err := s.exec.Install(s.ctx, tool, s.toolsEnv())
		if err != nil {
			failed[tool.Name] = true
			s.result.fail(tool.Name, err, false)
			e.metrics.ToolStep("install", kindLabel(tool.Kind), metrics.ResultFailure)
			s.logger.Warn().Err(err).Str("tool", tool.Name).Msg("tool install failed")
			e.tracker.SubEnd("")
			e.tracker.Message(fmt.Sprintf("Failed to install %s: %v", tool.Label(), err))
		} else {
			s.result.Succeeded = append(s.result.Succeeded, tool.Name)
			e.metrics.ToolStep("install", kindLabel(rec.Kind), metrics.ResultSuccess)
			e.tracker.SubEnd("Installed " + tool.Label())
		}
		e.tracker.MainUpdate(1)
	}
	return nil
}

// uninstallTool removes one recorded tool, best effort. It reports whether
// the tool is gone.
func (s *session) uninstallTool(name string) bool {
	e := s.e
	installed := s.store.Record()
	rec, ok := installed.Tool(name)
	if !ok {
		return true
	}
	e.tracker.SubStart("Removing "+name, 0, progress.UnitItems)
	if err := s.exec.Uninstall(s.ctx, name, installed, s.toolsEnv()); err != nil {
		s.result.fail(name, err, false)
		e.metrics.ToolStep("uninstall", kindLabel(rec.Kind), metrics.ResultFailure)
		s.logger.Warn().Err(err).Str("tool", name).Msg("tool removal failed")
		e.tracker.SubEnd("")
		e.tracker.Message(fmt.Sprintf("Failed to remove %s: %v", name, err))
		return false
	}
	s.result.Removed = append(s.result.Removed, name)
	e.metrics.ToolStep("uninstall", kindLabel(rec.Kind), metrics.ResultSuccess)
	e.tracker.SubEnd("Removed " + name)
	return true
}

// setup creates the install tree, places the manager and creates or
// refreshes the record.
func (s *session) setup() error {
	l := s.layout
	for _, dir := range []string{l.Root, l.ToolsDir(), l.TempDir(), l.CargoBin()} {
		if err := s.e.fs.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, errors.ErrDirCreate, "create %s", dir)
		}
	}
	if err := s.writeManifestCopy(); err != nil {
		return err
	}
	if err := s.installManager(); err != nil {
		return err
	}

	if s.store.Record() == nil {
		if err := s.store.Init(fingerprint.New(l.Root)); err != nil {
			return err
		}
	}
	m := s.target.Manifest
	if err := s.store.Update(func(r *fingerprint.Record) {
		r.InstallDir = l.Root
		r.Manager = l.ManagerExe()
		if r.Name == "" {
			r.Name, r.Version, r.Edition = m.Name, m.Version, m.Edition
		}
	}); err != nil {
		return err
	}
	return s.mark()
}

// writeManifestCopy stores the manifest under the root so the manager can
// work without the original source. Offline manifests are replaced by the
// bundled online one when there is one, so later updates go online.
func (s *session) writeManifestCopy() error {
	m := s.target.Manifest
	data := m.Raw
	if m.Offline {
		if bundled := manifest.BundledBytes(); len(bundled) > 0 {
			data = bundled
		}
	}
	if len(data) == 0 {
		return nil
	}
	path := s.layout.ManifestCopy()
	if err := s.e.fs.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "write %s", path)
	}
	return nil
}

// installManager copies the running binary into the root, links it into
// the cargo bin dir under both names and registers the uninstall entry.
func (s *session) installManager() error {
	e := s.e
	l := s.layout
	exe := l.ManagerExe()
	if !samePath(e.opts.Executable, exe) {
		if err := filesystem.CopyFile(e.opts.Executable, exe); err != nil {
			return errors.Wrapf(err, errors.GetErrorCode(err), "copy manager to %s", exe)
		}
		if err := e.fs.Chmod(exe, 0o755); err != nil {
			return errors.Wrapf(err, errors.ErrFileAccess, "chmod %s", exe)
		}
	}
	for _, link := range l.ManagerLinks() {
		if err := e.host.LinkExecutable(exe, link); err != nil {
			return err
		}
	}
	m := s.target.Manifest
	name := m.Name
	if name == "" {
		name = paths.AppName
	}
	return e.host.RegisterUninstall(hostos.UninstallEntry{
		ID:              paths.AppName,
		DisplayName:     name,
		DisplayVersion:  m.Version,
		Publisher:       paths.AppName,
		InstallLocation: l.Root,
		UninstallString: fmt.Sprintf("%q uninstall", exe),
	})
}

// configureRegistry points cargo at the configured registry mirror. The
// request wins over the manifest.
func (s *session) configureRegistry() error {
	name, url := s.target.Config.RegistryName, s.target.Config.RegistryURL
	if url == "" {
		if r := s.target.Manifest.Registry; r != nil {
			name, url = r.Name, r.Index
		}
	}
	if url == "" {
		return nil
	}
	if name == "" {
		name = paths.AppName
	}
	cfg, err := cargoconfig.Load(s.e.fs, s.layout.CargoConfig())
	if err != nil {
		return err
	}
	cfg.SetRegistry(name, url)
	return cfg.Save()
}

// syncToolchain brings the toolchain to the target channel and component
// set, then records it.
func (s *session) syncToolchain(prune bool) error {
	m := s.target.Manifest
	want := s.target.ToolchainComponents()
	rec := s.store.Record()

	var (
		action string
		err    error
		have   []string
	)
	switch {
	case !rec.HasToolchain() || !s.adapter.HasRustup():
		action = "install"
		err = s.adapter.Install(s.ctx, m, want)
	case rec.Toolchain.Channel != m.Toolchain.Channel:
		action = "switch"
		err = s.adapter.Switch(s.ctx, rec.Toolchain.Channel, m, want)
	default:
		action = "modify"
		have = rec.Toolchain.Components
		err = s.adapter.AddComponents(s.ctx, m.Toolchain.Channel, subtract(want, have))
		if err == nil && prune {
			err = s.adapter.RemoveComponents(s.ctx, m.Toolchain.Channel, subtract(have, want))
		}
	}
	s.e.metrics.ToolchainStep(action, err)
	if err != nil {
		return err
	}

	recorded := want
	if !prune {
		recorded = union(have, want)
	}
	profile := m.Toolchain.Profile
	if profile == "" {
		profile = toolchain.DefaultProfile
	}
	return s.store.RecordToolchain(&fingerprint.ToolchainRecord{
		Channel:    m.Toolchain.Channel,
		Profile:    profile,
		Components: recorded,
	})
}

// newTarget selects components for an operation.
func newTarget(m *manifest.Manifest, rec *fingerprint.Record, names []string, cfg Config, kind OperationKind) (*Target, error) {
	selected, err := components.Select(components.FromManifest(m, rec), names)
	if err != nil {
		return nil, err
	}
	return &Target{Kind: kind, Config: cfg, Manifest: m, Selected: selected}, nil
}

// missingTools are the selected tools that are not installed yet. Version
// changes of installed tools are left to Update.
func missingTools(t *Target, rec *fingerprint.Record) []string {
	var out []string
	for _, name := range t.Tools() {
		if !rec.HasTool(name) {
			out = append(out, name)
		}
	}
	return out
}

func blockedBy(tool manifest.Tool, failed map[string]bool) string {
	for _, req := range tool.ToolRequires() {
		if failed[req] {
			return req
		}
	}
	return ""
}

func kindLabel(k manifest.ToolKind) string {
	if k == manifest.KindUnknown {
		return "unknown"
	}
	return string(k)
}

func installSummary(r *Result) string {
	if r.OK() {
		return "Installation complete"
	}
	return fmt.Sprintf("Installation finished with %d failure(s)", len(r.Failed)+boolInt(r.ToolchainErr != nil))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func samePath(a, b string) bool {
	return filepath.Clean(paths.ExpandHome(a)) == filepath.Clean(paths.ExpandHome(b))
}

// subtract returns the items of a missing from b, in a's order.
func subtract(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, x := range b {
		set[x] = true
	}
	var out []string
	for _, x := range a {
		if !set[x] {
			out = append(out, x)
		}
	}
	return out
}

func union(a, b []string) []string {
	return append(append([]string(nil), a...), subtract(b, a)...)
}
