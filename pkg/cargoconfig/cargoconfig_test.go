// pkg/cargoconfig/cargoconfig_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: afero MemMapFs
// PURPOSE: Test registry and patch edits keep foreign keys intact

package cargoconfig_test

import (
	"testing"

	"github.com/arthur-debert/kitman/pkg/cargoconfig"
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const path = "/kit/cargo/config.toml"

func TestRegistryAndPatches(t *testing.T) {
	fsys := filesystem.NewAferoFS(afero.NewMemMapFs())
	require.NoError(t, fsys.MkdirAll("/kit/cargo", 0o755))
	require.NoError(t, fsys.WriteFile(path, []byte("[net]\ngit-fetch-with-cli = true\n"), 0o644))

	cfg, err := cargoconfig.Load(fsys, path)
	require.NoError(t, err)
	cfg.SetRegistry("mirror", "sparse+https://mirror.example.com/index/")
	cfg.AddPatch("serde", "/kit/cargo/kitman/crates/serde-1.0.0")
	cfg.AddPatch("anyhow", "/kit/cargo/kitman/crates/anyhow-1.0.0")
	require.NoError(t, cfg.Save())

	reread, err := cargoconfig.Load(fsys, path)
	require.NoError(t, err)
	name, index, ok := reread.Registry()
	require.True(t, ok)
	assert.Equal(t, "mirror", name)
	assert.Equal(t, "sparse+https://mirror.example.com/index/", index)
	assert.Equal(t, []string{"anyhow", "serde"}, reread.Patches())

	raw, err := fsys.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "git-fetch-with-cli")

	reread.ClearRegistry()
	reread.RemovePatch("serde")
	reread.RemovePatch("anyhow")
	reread.RemovePatch("never-added")
	require.NoError(t, reread.Save())

	final, err := cargoconfig.Load(fsys, path)
	require.NoError(t, err)
	_, _, ok = final.Registry()
	assert.False(t, ok)
	assert.Empty(t, final.Patches())
	raw, err = fsys.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "source")
	assert.NotContains(t, string(raw), "patch")
}

func TestSaveRemovesEmptyFile(t *testing.T) {
	fsys := filesystem.NewAferoFS(afero.NewMemMapFs())
	cfg, err := cargoconfig.Load(fsys, path)
	require.NoError(t, err)

	cfg.AddPatch("serde", "/src")
	require.NoError(t, cfg.Save())
	assert.True(t, filesystem.Exists(fsys, path))

	cfg.RemovePatch("serde")
	require.NoError(t, cfg.Save())
	assert.False(t, filesystem.Exists(fsys, path))
}

func TestLoadInvalid(t *testing.T) {
	fsys := filesystem.NewAferoFS(afero.NewMemMapFs())
	require.NoError(t, fsys.MkdirAll("/kit/cargo", 0o755))
	require.NoError(t, fsys.WriteFile(path, []byte("[broken"), 0o644))
	_, err := cargoconfig.Load(fsys, path)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigParse))
}
