// pkg/hostos/hostos_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: real temp dirs (unix), afero MemMapFs
// PURPOSE: Test manager linking, in-place binary replacement and marked desktop entries

package hostos_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/arthur-debert/kitman/pkg/hostos"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("symlink semantics differ on windows")
	}
}

func TestLinkExecutable(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "kitman")
	require.NoError(t, os.WriteFile(target, []byte("bin"), 0o755))
	link := filepath.Join(dir, "cargo", "bin", "kitman")

	host := hostos.New()
	require.NoError(t, host.LinkExecutable(target, link))
	got, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, target, got)

	// Re-linking is a no-op, and a stale file at link is replaced.
	require.NoError(t, host.LinkExecutable(target, link))
	require.NoError(t, os.Remove(link))
	require.NoError(t, os.WriteFile(link, []byte("stale"), 0o644))
	require.NoError(t, host.LinkExecutable(target, link))
	got, err = os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, target, got)
}

func TestReplaceExecutable(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	current := filepath.Join(dir, "kitman")
	next := filepath.Join(dir, "kitman.new")
	require.NoError(t, os.WriteFile(current, []byte("v1"), 0o755))
	require.NoError(t, os.WriteFile(next, []byte("v2"), 0o600))

	require.NoError(t, hostos.New().ReplaceExecutable(current, next))

	data, err := os.ReadFile(current)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
	info, err := os.Stat(current)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assert.NoFileExists(t, next)
}

func TestRemoveExecutable(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "kitman")
	require.NoError(t, os.WriteFile(exe, []byte("x"), 0o755))

	host := hostos.New()
	require.NoError(t, host.RemoveExecutable(exe))
	assert.NoFileExists(t, exe)
	require.NoError(t, host.RemoveExecutable(exe), "missing file is fine")
}

func TestDesktopEntry(t *testing.T) {
	fsys := filesystem.NewAferoFS(afero.NewMemMapFs())
	dir := "/home/u/.local/share/applications"
	entry := hostos.DesktopEntry{ID: "kitman-vscode", Name: "VS Code", Exec: "/opt/kit/tools/vscode/code"}

	path, err := hostos.WriteDesktopEntry(fsys, dir, entry)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "kitman-vscode.desktop"), path)
	data, err := fsys.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Exec=/opt/kit/tools/vscode/code\n")
	assert.Contains(t, string(data), hostos.GeneratedMarker)

	// Rewriting our own entry is allowed.
	_, err = hostos.WriteDesktopEntry(fsys, dir, entry)
	require.NoError(t, err)

	removed, err := hostos.RemoveDesktopEntry(fsys, path)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, filesystem.Exists(fsys, path))
}

func TestDesktopEntryLeavesForeignLaunchers(t *testing.T) {
	fsys := filesystem.NewAferoFS(afero.NewMemMapFs())
	path := filepath.Join("/apps", "code.desktop")
	require.NoError(t, fsys.MkdirAll("/apps", 0o755))
	require.NoError(t, fsys.WriteFile(path, []byte("[Desktop Entry]\nName=Code\n"), 0o644))

	_, err := hostos.WriteDesktopEntry(fsys, "/apps", hostos.DesktopEntry{ID: "code", Name: "Code"})
	require.Error(t, err)

	removed, err := hostos.RemoveDesktopEntry(fsys, path)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.True(t, filesystem.Exists(fsys, path))

	removed, err = hostos.RemoveDesktopEntry(fsys, filepath.Join("/apps", "missing.desktop"))
	require.NoError(t, err)
	assert.False(t, removed)
}
