package envconf

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/logging"
	"github.com/arthur-debert/kitman/pkg/types"
	"github.com/rs/zerolog"
)

// Profile is one shell startup file.
type Profile struct {
	Path    string
	Dialect Dialect
	// Always profiles are created when missing; the rest are only edited
	// when they already exist.
	Always bool
}

// ProfileConfigurator edits shell profiles.
type ProfileConfigurator struct {
	fs       types.FS
	profiles []Profile
	logger   zerolog.Logger
}

// ProfileOptions describe the user's shell setup.
type ProfileOptions struct {
	Home string
	// ZDotDir is $ZDOTDIR; empty means Home.
	ZDotDir string
	// Shell is $SHELL, used to decide whether zsh and fish files are created.
	Shell  string
	Logger *zerolog.Logger
}

// NewProfileConfigurator builds a configurator for the profiles found
// under opts.Home.
func NewProfileConfigurator(fsys types.FS, opts ProfileOptions) *ProfileConfigurator {
	return &ProfileConfigurator{
		fs:       fsys,
		profiles: DetectProfiles(opts),
		logger:   logging.OrDefault(opts.Logger, "envconf"),
	}
}

// DetectProfiles lists the candidate profiles for a home directory.
func DetectProfiles(opts ProfileOptions) []Profile {
	zdot := opts.ZDotDir
	if zdot == "" {
		zdot = opts.Home
	}
	shell := filepath.Base(opts.Shell)

	return []Profile{
		{Path: filepath.Join(opts.Home, ".profile"), Dialect: POSIX, Always: true},
		{Path: filepath.Join(opts.Home, ".bash_profile"), Dialect: POSIX},
		{Path: filepath.Join(opts.Home, ".bashrc"), Dialect: POSIX, Always: shell == "bash"},
		// zsh does not read .profile.
		{Path: filepath.Join(zdot, ".zshenv"), Dialect: POSIX, Always: shell == "zsh"},
		{Path: filepath.Join(zdot, ".zshrc"), Dialect: POSIX},
		{Path: filepath.Join(opts.Home, ".config", "fish", "config.fish"), Dialect: Fish, Always: shell == "fish"},
	}
}

// Profiles returns the candidate profiles.
func (c *ProfileConfigurator) Profiles() []Profile {
	return c.profiles
}

// Apply writes env into every applicable profile. Applying the same
// environment twice leaves the files unchanged.
func (c *ProfileConfigurator) Apply(env Environment) error {
	if env.Empty() {
		return nil
	}
	for _, p := range c.profiles {
		content, exists, err := c.read(p.Path)
		if err != nil {
			return err
		}
		if !exists && !p.Always {
			continue
		}
		before, body, after, _ := splitProfile(content)
		b := parseBlock(body, p.Dialect)
		b.merge(env)
		if err := c.write(p.Path, content, joinProfile(before, b.render(p.Dialect), after)); err != nil {
			return err
		}
	}
	return nil
}

// Revert removes env from every profile that carries a kitman block. Lines
// outside the block are never touched.
func (c *ProfileConfigurator) Revert(env Environment) error {
	for _, p := range c.profiles {
		content, exists, err := c.read(p.Path)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		before, body, after, found := splitProfile(content)
		if !found {
			continue
		}
		b := parseBlock(body, p.Dialect)
		b.remove(env)
		if err := c.write(p.Path, content, joinProfile(before, b.render(p.Dialect), after)); err != nil {
			return err
		}
	}
	return nil
}

func (c *ProfileConfigurator) read(path string) (string, bool, error) {
	data, err := c.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, errors.ErrFileAccess, "read %s", path)
	}
	return string(data), true, nil
}

func (c *ProfileConfigurator) write(path, old, updated string) error {
	if old == updated {
		return nil
	}
	if err := c.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "create %s", filepath.Dir(path))
	}
	if err := c.fs.WriteFile(path, []byte(updated), 0o644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "write %s", path)
	}
	c.logger.Info().Str("profile", path).
		Bool("hasBlock", strings.Contains(updated, BeginMarker)).
		Msg("updated shell profile")
	return nil
}
