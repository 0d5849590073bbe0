// pkg/config/config_test.go
// TEST TYPE: Integration Test
// DEPENDENCIES: temp dirs, environment variables
// PURPOSE: Test configuration layering, validation and persistence

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arthur-debert/kitman/pkg/config"
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("KITMAN_CONFIG_DIR", dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := config.Load(config.LoadOptions{SkipEnv: true})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "kitman"), cfg.InstallDir)
	assert.True(t, cfg.AddToPath)
	assert.False(t, cfg.Insecure)
	assert.Equal(t, "bundled", cfg.Manifest)
	assert.Equal(t, "https://static.rust-lang.org", cfg.DistServer)
	assert.Equal(t, 10*time.Minute, cfg.Download.Timeout)
	assert.Equal(t, 3, cfg.Download.Retries)
	assert.Equal(t, "127.0.0.1:7878", cfg.Server.Addr)
	assert.Equal(t, config.ChannelStable, cfg.UpdateChannel)
	assert.Empty(t, cfg.ManagerReleases)
}

func TestLoadLayering(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
install_dir = "/opt/kit"
insecure = true
dist_server = "https://mirror.example.com"

[registry]
name = "mirror"
url = "sparse+https://mirror.example.com/index/"
`), 0o644))

	t.Setenv("KITMAN_DIST_SERVER", "https://env.example.com")
	t.Setenv("KITMAN_DOWNLOAD__RETRIES", "7")
	t.Setenv("KITMAN_ADD_TO_PATH", "false")

	cfg, err := config.Load(config.LoadOptions{
		Overrides: map[string]interface{}{"install_dir": "/flag/kit"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/flag/kit", cfg.InstallDir)
	assert.True(t, cfg.Insecure)
	assert.False(t, cfg.AddToPath)
	assert.Equal(t, "https://env.example.com", cfg.DistServer)
	assert.Equal(t, 7, cfg.Download.Retries)
	assert.Equal(t, "mirror", cfg.Registry.Name)
}

func TestLoadYAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: manager\nupdate_channel: Beta\ndownload:\n  timeout: 30s\n"), 0o644))

	cfg, err := config.Load(config.LoadOptions{SkipEnv: true})
	require.NoError(t, err)
	assert.Equal(t, config.ModeManager, cfg.Mode)
	assert.Equal(t, 30*time.Second, cfg.Download.Timeout)
	assert.Equal(t, config.ChannelBeta, cfg.UpdateChannel)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]interface{}
	}{
		{"bad mode", map[string]interface{}{"mode": "daemon"}},
		{"bad url", map[string]interface{}{"dist_server": "not a url"}},
		{"half registry", map[string]interface{}{"registry.name": "mirror"}},
		{"negative retries", map[string]interface{}{"download.retries": -1}},
		{"bad channel", map[string]interface{}{"update_channel": "nightly"}},
		{"bad release url", map[string]interface{}{"manager_releases": "releases"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := config.Load(config.LoadOptions{SkipEnv: true, Overrides: tt.overrides})
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrConfigInvalid))
			assert.Equal(t, errors.KindConfiguration, errors.KindOf(err))
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := config.Load(config.LoadOptions{File: "/does/not/exist.toml", SkipEnv: true})
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigLoad))
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name      string
		mode      string
		exe       string
		installed bool
		want      string
	}{
		{"fresh installer", "", "/tmp/kitman-installer", false, config.ModeInstaller},
		{"manager link", "", "/opt/kit/cargo/bin/kitman-manager", false, config.ModeManager},
		{"windows manager link", "", `kitman-manager.exe`, false, config.ModeManager},
		{"installed", "", "/opt/kit/kitman", true, config.ModeManager},
		{"explicit", config.ModeInstaller, "/opt/kit/kitman-manager", true, config.ModeInstaller},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Mode: tt.mode}
			assert.Equal(t, tt.want, cfg.ResolveMode(tt.exe, tt.installed))
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := isolate(t)
	cfg, err := config.Load(config.LoadOptions{SkipEnv: true, Overrides: map[string]interface{}{
		"install_dir":      "/opt/kit",
		"registry.name":    "mirror",
		"registry.url":     "https://mirror.example.com/index",
		"manager_releases": "https://dl.example.com/kitman/",
		"update_channel":   "beta",
	}})
	require.NoError(t, err)

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, config.Save(filesystem.NewOS(), path, cfg))

	reloaded, err := config.Load(config.LoadOptions{File: path, SkipEnv: true})
	require.NoError(t, err)
	assert.Equal(t, cfg, reloaded)
}
