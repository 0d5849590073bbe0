package config

import (
	_ "embed"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	kiterrors "github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/paths"
	"github.com/go-viper/mapstructure/v2"
	koanftoml "github.com/knadh/koanf/parsers/toml"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KITMAN_"

// Mode values.
const (
	ModeInstaller = "installer"
	ModeManager   = "manager"
)

// Update channel values.
const (
	ChannelStable = "stable"
	ChannelBeta   = "beta"
)

// Config is the active configuration.
type Config struct {
	InstallDir       string `koanf:"install_dir" toml:"install_dir" yaml:"install_dir"`
	AddToPath        bool   `koanf:"add_to_path" toml:"add_to_path" yaml:"add_to_path"`
	Insecure         bool   `koanf:"insecure" toml:"insecure" yaml:"insecure"`
	Manifest         string `koanf:"manifest" toml:"manifest" yaml:"manifest"`
	Mode             string `koanf:"mode" toml:"mode,omitempty" yaml:"mode,omitempty"`
	DistServer       string `koanf:"dist_server" toml:"dist_server" yaml:"dist_server"`
	UpdateRoot       string `koanf:"update_root" toml:"update_root" yaml:"update_root"`
	CatalogServer    string `koanf:"catalog_server" toml:"catalog_server,omitempty" yaml:"catalog_server,omitempty"`
	ManagerUpdateURL string `koanf:"manager_update_url" toml:"manager_update_url,omitempty" yaml:"manager_update_url,omitempty"`
	// ManagerReleases locates the release file self-update checks first.
	ManagerReleases string `koanf:"manager_releases" toml:"manager_releases,omitempty" yaml:"manager_releases,omitempty"`
	UpdateChannel   string `koanf:"update_channel" toml:"update_channel" yaml:"update_channel"`

	Registry Registry `koanf:"registry" toml:"registry" yaml:"registry"`
	Download Download `koanf:"download" toml:"download" yaml:"download"`
	Metrics  Metrics  `koanf:"metrics" toml:"metrics" yaml:"metrics"`
	Server   Server   `koanf:"server" toml:"server" yaml:"server"`
}

// Registry names a cargo registry mirror.
type Registry struct {
	Name string `koanf:"name" toml:"name" yaml:"name"`
	URL  string `koanf:"url" toml:"url" yaml:"url"`
}

// Download tunes the fetcher.
type Download struct {
	Timeout time.Duration `koanf:"timeout" toml:"timeout" yaml:"timeout"`
	Retries int           `koanf:"retries" toml:"retries" yaml:"retries"`
}

// Metrics configures the prometheus textfile output.
type Metrics struct {
	Textfile string `koanf:"textfile" toml:"textfile" yaml:"textfile"`
}

// Server configures the front-end bridge.
type Server struct {
	Addr string `koanf:"addr" toml:"addr" yaml:"addr"`
}

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// File is the user config file. Empty means config.toml, then
	// config.yaml, in the kitman config directory.
	File string
	// Overrides come from command-line flags, keyed like the file.
	Overrides map[string]interface{}
	// SkipEnv ignores KITMAN_* variables.
	SkipEnv bool
}

// Load merges every configuration source.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, koanftoml.Parser()); err != nil {
		return nil, kiterrors.Wrap(err, kiterrors.ErrConfigParse, "failed to load defaults")
	}

	path := opts.File
	if path == "" {
		path = findUserFile()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
				return nil, kiterrors.Wrapf(err, kiterrors.ErrConfigParse, "failed to load config from %s", path)
			}
		} else if opts.File != "" {
			return nil, kiterrors.Wrapf(err, kiterrors.ErrConfigLoad, "config file %s", path)
		}
	}

	if !opts.SkipEnv {
		err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
		if err != nil {
			return nil, kiterrors.Wrap(err, kiterrors.ErrConfigLoad, "failed to load environment")
		}
	}

	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, "."), nil); err != nil {
			return nil, kiterrors.Wrap(err, kiterrors.ErrConfigLoad, "failed to apply overrides")
		}
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, kiterrors.Wrap(err, kiterrors.ErrConfigParse, "failed to unmarshal configuration")
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps KITMAN_REGISTRY__URL to registry.url.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return koanfyaml.Parser()
	}
	return koanftoml.Parser()
}

func findUserFile() string {
	p, err := paths.New()
	if err != nil {
		return ""
	}
	for _, name := range []string{paths.ConfigFile, paths.ConfigFileYAML} {
		candidate := filepath.Join(p.ConfigDir(), name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func (c *Config) normalize() error {
	if c.InstallDir == "" {
		c.InstallDir = paths.DefaultInstallDir()
	}
	c.InstallDir = paths.ExpandHome(c.InstallDir)
	if abs, err := filepath.Abs(c.InstallDir); err == nil {
		c.InstallDir = abs
	}

	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	switch c.Mode {
	case "", ModeInstaller, ModeManager:
	default:
		return kiterrors.Newf(kiterrors.ErrConfigInvalid, "mode must be %q or %q, got %q", ModeInstaller, ModeManager, c.Mode)
	}

	for key, raw := range map[string]string{
		"dist_server":    c.DistServer,
		"update_root":    c.UpdateRoot,
		"catalog_server":   c.CatalogServer,
		"manager_releases": c.ManagerReleases,
		"registry.url":     c.Registry.URL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(strings.TrimPrefix(raw, "sparse+")); err != nil || u.Scheme == "" {
			return kiterrors.Newf(kiterrors.ErrConfigInvalid, "%s is not a valid URL: %q", key, raw)
		}
	}
	c.UpdateChannel = strings.ToLower(strings.TrimSpace(c.UpdateChannel))
	switch c.UpdateChannel {
	case "":
		c.UpdateChannel = ChannelStable
	case ChannelStable, ChannelBeta:
	default:
		return kiterrors.Newf(kiterrors.ErrConfigInvalid, "update_channel must be %q or %q, got %q", ChannelStable, ChannelBeta, c.UpdateChannel)
	}
	if (c.Registry.Name == "") != (c.Registry.URL == "") {
		return kiterrors.New(kiterrors.ErrConfigInvalid, "registry.name and registry.url must be set together")
	}
	if c.Download.Retries < 0 {
		return kiterrors.New(kiterrors.ErrConfigInvalid, "download.retries cannot be negative")
	}
	return nil
}

// ResolveMode reports whether kitman runs as the manager. An explicit mode
// wins; otherwise the manager link name or an existing installation means
// manager.
func (c *Config) ResolveMode(exe string, installed bool) string {
	if c.Mode != "" {
		return c.Mode
	}
	base := strings.TrimSuffix(filepath.Base(exe), ".exe")
	if base == paths.ManagerLinkName || installed {
		return ModeManager
	}
	return ModeInstaller
}
