// Package paths provides centralized path handling for kitman.
// It resolves the XDG directories kitman keeps its own state in, and the
// layout of a toolkit installation root.
package paths

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
	"github.com/arthur-debert/kitman/pkg/errors"
)

// Environment variable names
const (
	// EnvConfigDir overrides the XDG config directory for kitman
	EnvConfigDir = "KITMAN_CONFIG_DIR"

	// EnvStateDir overrides the XDG state directory for kitman
	EnvStateDir = "KITMAN_STATE_DIR"

	// EnvCacheDir overrides the XDG cache directory for kitman
	EnvCacheDir = "KITMAN_CACHE_DIR"

	// EnvHome is the standard home directory variable
	EnvHome = "HOME"
)

// Fixed names. These are part of the on-disk contract between releases and
// are not user-configurable.
const (
	AppName = "kitman"

	// ManagerLinkName is the second name the manager is linked under.
	ManagerLinkName = "kitman-manager"

	FingerprintFile       = "fingerprint.toml"
	LegacyFingerprintFile = ".fingerprint.toml"
	LockFile              = "fingerprint.lock"
	ConfigFile            = "config.toml"
	ConfigFileYAML        = "config.yaml"
	MetricsFile           = "kitman.prom"
	ManifestCopyFile      = "toolset-manifest.toml"
	CargoConfigFile       = "config.toml"

	CargoHomeDir  = "cargo"
	RustupHomeDir = "rustup"
	ToolsDirName  = "tools"
	TempDirName   = "temp"
	CratesDirName = "crates"
	BinDirName    = "bin"
)

// Paths holds the per-user directories kitman keeps its own files in.
type Paths struct {
	configDir string
	stateDir  string
	cacheDir  string
}

// New resolves the kitman directories, respecting environment overrides.
func New() (*Paths, error) {
	p := &Paths{}

	if dir := os.Getenv(EnvConfigDir); dir != "" {
		p.configDir = ExpandHome(dir)
	} else {
		p.configDir = filepath.Join(xdg.ConfigHome, AppName)
	}

	if dir := os.Getenv(EnvCacheDir); dir != "" {
		p.cacheDir = ExpandHome(dir)
	} else {
		p.cacheDir = filepath.Join(xdg.CacheHome, AppName)
	}

	if dir := os.Getenv(EnvStateDir); dir != "" {
		p.stateDir = ExpandHome(dir)
	} else {
		p.stateDir = filepath.Join(xdg.StateHome, AppName)
	}

	for _, dir := range []string{p.configDir, p.stateDir, p.cacheDir} {
		if !filepath.IsAbs(dir) {
			return nil, errors.Newf(errors.ErrConfigInvalid, "kitman directory %q is not absolute", dir)
		}
	}
	return p, nil
}

// ForDirs builds a Paths rooted at explicit directories. Used by tests and
// by front ends that sandbox kitman.
func ForDirs(configDir, stateDir, cacheDir string) *Paths {
	return &Paths{configDir: configDir, stateDir: stateDir, cacheDir: cacheDir}
}

func (p *Paths) ConfigDir() string { return p.configDir }
func (p *Paths) StateDir() string  { return p.stateDir }
func (p *Paths) CacheDir() string  { return p.cacheDir }

// FingerprintPath is where the installation record lives.
func (p *Paths) FingerprintPath() string {
	return filepath.Join(p.configDir, FingerprintFile)
}

// LockPath is the advisory lock guarding the fingerprint.
func (p *Paths) LockPath() string {
	return filepath.Join(p.configDir, LockFile)
}

// ConfigFilePath is the user configuration file written by config.Save.
func (p *Paths) ConfigFilePath() string {
	return filepath.Join(p.configDir, ConfigFile)
}

func (p *Paths) MetricsPath() string {
	return filepath.Join(p.stateDir, MetricsFile)
}

// DownloadCacheDir holds resumable partial downloads.
func (p *Paths) DownloadCacheDir() string {
	return filepath.Join(p.cacheDir, "downloads")
}

// Layout describes the directory tree under an installation root.
type Layout struct {
	Root string
}

// NewLayout returns the layout for an installation root, expanding ~.
func NewLayout(root string) Layout {
	return Layout{Root: filepath.Clean(ExpandHome(root))}
}

func (l Layout) CargoHome() string  { return filepath.Join(l.Root, CargoHomeDir) }
func (l Layout) RustupHome() string { return filepath.Join(l.Root, RustupHomeDir) }
func (l Layout) CargoBin() string   { return filepath.Join(l.CargoHome(), BinDirName) }
func (l Layout) ToolsDir() string   { return filepath.Join(l.Root, ToolsDirName) }
func (l Layout) TempDir() string    { return filepath.Join(l.Root, TempDirName) }

// ToolDir is the directory a directory-style tool is placed in.
func (l Layout) ToolDir(name string) string {
	return filepath.Join(l.ToolsDir(), name)
}

// CratesDir holds unpacked source packages referenced by patch entries.
func (l Layout) CratesDir() string {
	return filepath.Join(l.CargoHome(), AppName, CratesDirName)
}

func (l Layout) CargoConfig() string {
	return filepath.Join(l.CargoHome(), CargoConfigFile)
}

func (l Layout) ManifestCopy() string {
	return filepath.Join(l.Root, ManifestCopyFile)
}

// LegacyFingerprint is where older releases kept the record.
func (l Layout) LegacyFingerprint() string {
	return filepath.Join(l.Root, LegacyFingerprintFile)
}

// ManagerExe is the manager binary copied into the installation root.
func (l Layout) ManagerExe() string {
	return filepath.Join(l.Root, ExeName(AppName))
}

// ManagerLinks are the names the manager is exposed under on PATH.
func (l Layout) ManagerLinks() []string {
	return []string{
		filepath.Join(l.CargoBin(), ExeName(AppName)),
		filepath.Join(l.CargoBin(), ExeName(ManagerLinkName)),
	}
}

// DefaultInstallDir is the installation root used when none is configured.
func DefaultInstallDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv(EnvHome)
	}
	return filepath.Join(home, AppName)
}

// ExeName appends the platform executable suffix.
func ExeName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// ExpandHome expands a leading ~ to the home directory
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv(EnvHome)
		if homeDir == "" {
			return path
		}
	}

	if len(path) == 1 {
		return homeDir
	}
	if path[1] == '/' || path[1] == filepath.Separator {
		return filepath.Join(homeDir, path[2:])
	}
	// ~user is left alone
	return path
}
