// Package toolchain drives rustup: bootstrapping it into the installation
// root, installing and switching toolchain channels, managing components
// and tearing the whole thing down again.
//
// An Adapter moves through the states absent -> bootstrapping -> installed,
// installed -> modifying -> installed while components change, and finally
// removed. Every rustup invocation runs with the environment built by
// Settings.Environ, never the caller's RUSTUP_TOOLCHAIN.
package toolchain

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/execution"
	"github.com/arthur-debert/kitman/pkg/fetch"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/arthur-debert/kitman/pkg/logging"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/paths"
	"github.com/arthur-debert/kitman/pkg/progress"
	"github.com/arthur-debert/kitman/pkg/types"
	"github.com/rs/zerolog"
)

// State is where the adapter is in the toolchain lifecycle.
type State int

const (
	Absent State = iota
	Bootstrapping
	Installed
	Modifying
	Removed
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Bootstrapping:
		return "bootstrapping"
	case Installed:
		return "installed"
	case Modifying:
		return "modifying"
	case Removed:
		return "removed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// DefaultProfile is used when the manifest names none.
const DefaultProfile = "minimal"

// Options configures an Adapter.
type Options struct {
	Settings Settings
	Runner   execution.Runner
	Fetcher  fetch.Fetcher
	FS       types.FS
	Tracker  progress.Tracker
	Logger   *zerolog.Logger
	// BaseEnv seeds child environments; nil uses os.Environ.
	BaseEnv []string
}

// Adapter wraps rustup for one installation root.
type Adapter struct {
	settings Settings
	runner   execution.Runner
	fetcher  fetch.Fetcher
	fs       types.FS
	tracker  progress.Tracker
	logger   zerolog.Logger
	baseEnv  []string
	state    State
}

// New creates an adapter. The initial state is installed when rustup is
// already present under the cargo bin dir.
func New(opts Options) *Adapter {
	if opts.FS == nil {
		opts.FS = filesystem.NewOS()
	}
	a := &Adapter{
		settings: opts.Settings,
		runner:   opts.Runner,
		fetcher:  opts.Fetcher,
		fs:       opts.FS,
		tracker:  opts.Tracker,
		logger:   logging.OrDefault(opts.Logger, "toolchain"),
		baseEnv:  opts.BaseEnv,
	}
	if a.HasRustup() {
		a.state = Installed
	}
	return a
}

func (a *Adapter) State() State { return a.state }

// Settings returns the environment settings the adapter runs with.
func (a *Adapter) Settings() Settings { return a.settings }

// Environ is the child process environment.
func (a *Adapter) Environ() []string {
	return a.settings.Environ(a.baseEnv)
}

// RustupPath is where the rustup binary lives once bootstrapped.
func (a *Adapter) RustupPath() string {
	return filepath.Join(a.settings.Layout.CargoBin(), paths.ExeName("rustup"))
}

// CargoPath is the cargo proxy rustup installs.
func (a *Adapter) CargoPath() string {
	return filepath.Join(a.settings.Layout.CargoBin(), paths.ExeName("cargo"))
}

func (a *Adapter) HasRustup() bool {
	return filesystem.Exists(a.fs, a.RustupPath())
}

func (a *Adapter) rustup(ctx context.Context, args ...string) error {
	return a.runner.Run(ctx, execution.Command{Name: a.RustupPath(), Args: args, Env: a.Environ()})
}

// Bootstrap installs rustup itself, from the manifest's bundled
// rustup-init for the host when there is one, otherwise from the update
// root.
func (a *Adapter) Bootstrap(ctx context.Context, m *manifest.Manifest) error {
	done := logging.LogOperationStart(a.logger, "toolchain.bootstrap")
	defer done()

	a.state = Bootstrapping
	a.tracker.Message("Installing rustup")

	initPath, err := a.rustupInit(ctx, m)
	if err != nil {
		a.state = Absent
		return err
	}
	defer func() { _ = a.fs.Remove(initPath) }()

	if err := a.fs.Chmod(initPath, 0o755); err != nil {
		a.state = Absent
		return errors.Wrapf(err, errors.ErrFileAccess, "chmod %s", initPath)
	}
	cmd := execution.Command{
		Name: initPath,
		Args: []string{"-y", "--no-modify-path", "--default-toolchain", "none", "--profile", DefaultProfile},
		Env:  a.Environ(),
	}
	if err := a.runner.Run(ctx, cmd); err != nil {
		a.state = Absent
		return errors.Wrap(err, errors.ErrToolchain, "rustup bootstrap failed")
	}
	if !a.HasRustup() {
		a.state = Absent
		return errors.Newf(errors.ErrToolchain, "rustup-init finished but %s is missing", a.RustupPath())
	}
	return nil
}

// rustupInit places a rustup-init binary in the temp dir and returns it.
func (a *Adapter) rustupInit(ctx context.Context, m *manifest.Manifest) (string, error) {
	triple := manifest.HostTriple()
	dest := filepath.Join(a.settings.Layout.TempDir(), paths.ExeName("rustup-init"))
	if err := a.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", errors.Wrapf(err, errors.ErrDirCreate, "create %s", filepath.Dir(dest))
	}

	src := ""
	if m != nil {
		if bundled := m.Toolchain.Rustup[triple]; bundled != "" {
			src = bundled
			if m.BaseDir != "" && !filepath.IsAbs(src) && !strings.Contains(src, "://") {
				src = filepath.Join(m.BaseDir, filepath.FromSlash(src))
			}
		}
	}
	if src == "" {
		src = fmt.Sprintf("%s/dist/%s/%s", a.settings.updateRoot(), triple, paths.ExeName("rustup-init"))
	}
	if a.fetcher == nil {
		return "", errors.New(errors.ErrInternal, "toolchain adapter has no fetcher")
	}
	a.logger.Debug().Str("source", src).Msg("fetching rustup-init")
	if err := a.fetcher.Fetch(ctx, src, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// Install makes the manifest's toolchain the default, with components.
// rustup is bootstrapped first when missing.
func (a *Adapter) Install(ctx context.Context, m *manifest.Manifest, components []string) error {
	if !a.HasRustup() {
		if err := a.Bootstrap(ctx, m); err != nil {
			return err
		}
	}
	tc := m.Toolchain
	done := logging.LogOperationStart(a.logger, "toolchain.install")
	defer done()

	profile := tc.Profile
	if profile == "" {
		profile = DefaultProfile
	}
	args := []string{"toolchain", "install", tc.Channel, "--profile", profile, "--no-self-update"}
	for _, c := range components {
		args = append(args, "-c", c)
	}

	a.state = Bootstrapping
	a.tracker.Message(fmt.Sprintf("Installing toolchain %s", tc.Channel))
	if err := a.rustup(ctx, args...); err != nil {
		a.state = Absent
		return errors.Wrapf(err, errors.ErrToolchain, "install toolchain %s", tc.Channel)
	}
	if err := a.rustup(ctx, "default", tc.Channel); err != nil {
		a.state = Absent
		return errors.Wrapf(err, errors.ErrToolchain, "set default toolchain %s", tc.Channel)
	}
	a.state = Installed
	return nil
}

// AddComponents installs components into channel.
func (a *Adapter) AddComponents(ctx context.Context, channel string, components []string) error {
	return a.modify(ctx, "add", channel, components)
}

// RemoveComponents removes components from channel.
func (a *Adapter) RemoveComponents(ctx context.Context, channel string, components []string) error {
	return a.modify(ctx, "remove", channel, components)
}

func (a *Adapter) modify(ctx context.Context, verb, channel string, components []string) error {
	if len(components) == 0 {
		return nil
	}
	if !a.HasRustup() {
		return errors.New(errors.ErrToolchain, "rustup is not installed")
	}
	a.state = Modifying
	defer func() { a.state = Installed }()

	args := append([]string{"component", verb, "--toolchain", channel}, components...)
	if err := a.rustup(ctx, args...); err != nil {
		return errors.Wrapf(err, errors.ErrToolchain, "component %s %s", verb, strings.Join(components, " "))
	}
	return nil
}

// Switch installs the manifest's channel, makes it the default and then
// uninstalls from, the channel it supersedes. It serves both upgrades and
// downgrades.
func (a *Adapter) Switch(ctx context.Context, from string, m *manifest.Manifest, components []string) error {
	if err := a.Install(ctx, m, components); err != nil {
		return err
	}
	if from == "" || from == m.Toolchain.Channel {
		return nil
	}
	a.state = Modifying
	defer func() { a.state = Installed }()
	if err := a.rustup(ctx, "toolchain", "uninstall", from); err != nil {
		return errors.Wrapf(err, errors.ErrToolchain, "uninstall superseded toolchain %s", from)
	}
	return nil
}

// Link registers dir as a custom toolchain called name.
func (a *Adapter) Link(ctx context.Context, name, dir string) error {
	if !a.HasRustup() {
		return errors.Newf(errors.ErrToolchain, "cannot link %s: rustup is not installed", name)
	}
	if err := a.rustup(ctx, "toolchain", "link", name, dir); err != nil {
		return errors.Wrapf(err, errors.ErrToolchain, "link toolchain %s", name)
	}
	return nil
}

// Unlink uninstalls the named toolchain.
func (a *Adapter) Unlink(ctx context.Context, name string) error {
	if !a.HasRustup() {
		return nil
	}
	if err := a.rustup(ctx, "toolchain", "uninstall", name); err != nil {
		return errors.Wrapf(err, errors.ErrToolchain, "uninstall toolchain %s", name)
	}
	return nil
}
