// pkg/paths/paths_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: environment variables only
// PURPOSE: Test directory resolution and installation layout

package paths_test

import (
	"path/filepath"
	"testing"

	"github.com/arthur-debert/kitman/pkg/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRespectsOverrides(t *testing.T) {
	root := t.TempDir()
	t.Setenv(paths.EnvConfigDir, filepath.Join(root, "cfg"))
	t.Setenv(paths.EnvStateDir, filepath.Join(root, "state"))
	t.Setenv(paths.EnvCacheDir, filepath.Join(root, "cache"))

	p, err := paths.New()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "cfg"), p.ConfigDir())
	assert.Equal(t, filepath.Join(root, "state"), p.StateDir())
	assert.Equal(t, filepath.Join(root, "cache"), p.CacheDir())
	assert.Equal(t, filepath.Join(root, "cfg", "fingerprint.toml"), p.FingerprintPath())
	assert.Equal(t, filepath.Join(root, "cfg", "fingerprint.lock"), p.LockPath())
	assert.Equal(t, filepath.Join(root, "state", "kitman.prom"), p.MetricsPath())
}

func TestNewRejectsRelativeOverride(t *testing.T) {
	t.Setenv(paths.EnvConfigDir, "relative/dir")
	_, err := paths.New()
	assert.Error(t, err)
}

func TestLayout(t *testing.T) {
	l := paths.NewLayout("/opt/kit")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"cargo home", l.CargoHome(), "/opt/kit/cargo"},
		{"rustup home", l.RustupHome(), "/opt/kit/rustup"},
		{"cargo bin", l.CargoBin(), "/opt/kit/cargo/bin"},
		{"tool dir", l.ToolDir("mingw"), "/opt/kit/tools/mingw"},
		{"temp", l.TempDir(), "/opt/kit/temp"},
		{"crates", l.CratesDir(), "/opt/kit/cargo/kitman/crates"},
		{"manifest copy", l.ManifestCopy(), "/opt/kit/toolset-manifest.toml"},
		{"legacy fingerprint", l.LegacyFingerprint(), "/opt/kit/.fingerprint.toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.want), tt.got)
		})
	}

	links := l.ManagerLinks()
	require.Len(t, links, 2)
	assert.Equal(t, paths.ExeName("kitman"), filepath.Base(links[0]))
	assert.Equal(t, paths.ExeName("kitman-manager"), filepath.Base(links[1]))
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	assert.Equal(t, home, paths.ExpandHome("~"))
	assert.Equal(t, filepath.Join(home, "kit"), paths.ExpandHome("~/kit"))
	assert.Equal(t, "~other/kit", paths.ExpandHome("~other/kit"))
	assert.Equal(t, "/abs", paths.ExpandHome("/abs"))
	assert.Equal(t, "", paths.ExpandHome(""))
}
