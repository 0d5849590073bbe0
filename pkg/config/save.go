package config

import (
	"path/filepath"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/types"
	toml "github.com/pelletier/go-toml/v2"
)

// fileConfig is what Save writes. Durations are stored as strings so the
// file reads back through the same decode hook.
type fileConfig struct {
	InstallDir       string   `toml:"install_dir"`
	AddToPath        bool     `toml:"add_to_path"`
	Insecure         bool     `toml:"insecure"`
	Manifest         string   `toml:"manifest"`
	Mode             string   `toml:"mode,omitempty"`
	DistServer       string   `toml:"dist_server"`
	UpdateRoot       string   `toml:"update_root"`
	CatalogServer    string   `toml:"catalog_server,omitempty"`
	ManagerUpdateURL string   `toml:"manager_update_url,omitempty"`
	ManagerReleases  string   `toml:"manager_releases,omitempty"`
	UpdateChannel    string   `toml:"update_channel"`
	Registry         Registry `toml:"registry"`
	Download         struct {
		Timeout string `toml:"timeout"`
		Retries int    `toml:"retries"`
	} `toml:"download"`
	Metrics Metrics `toml:"metrics"`
	Server  Server  `toml:"server"`
}

// Marshal renders cfg as TOML.
func Marshal(cfg *Config) ([]byte, error) {
	out := fileConfig{
		InstallDir:       cfg.InstallDir,
		AddToPath:        cfg.AddToPath,
		Insecure:         cfg.Insecure,
		Manifest:         cfg.Manifest,
		Mode:             cfg.Mode,
		DistServer:       cfg.DistServer,
		UpdateRoot:       cfg.UpdateRoot,
		CatalogServer:    cfg.CatalogServer,
		ManagerUpdateURL: cfg.ManagerUpdateURL,
		ManagerReleases:  cfg.ManagerReleases,
		UpdateChannel:    cfg.UpdateChannel,
		Registry:         cfg.Registry,
		Metrics:          cfg.Metrics,
		Server:           cfg.Server,
	}
	out.Download.Timeout = cfg.Download.Timeout.String()
	out.Download.Retries = cfg.Download.Retries

	data, err := toml.Marshal(out)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "encode configuration")
	}
	return data, nil
}

// Save persists cfg to path.
func Save(fsys types.FS, path string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "create %s", filepath.Dir(path))
	}
	if err := fsys.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "write %s", path)
	}
	return nil
}
