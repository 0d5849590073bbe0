// pkg/filesystem/filesystem_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: real temp dirs, afero MemMapFs
// PURPOSE: Test atomic writes, in-use retries, copy/move helpers and the afero adapter

package filesystem

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"
	"time"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(t *testing.T) {
	t.Helper()
	orig := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = orig })
}

func TestRetryInUse(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("busy errno differs on windows")
	}
	noSleep(t)

	tests := []struct {
		name      string
		failures  int
		failWith  error
		wantCalls int
		wantCode  errors.ErrorCode
	}{
		{name: "succeeds first time", failures: 0, wantCalls: 1},
		{name: "recovers after busy", failures: 2, failWith: syscall.EBUSY, wantCalls: 3},
		{name: "gives up after budget", failures: 10, failWith: syscall.ETXTBSY, wantCalls: InUseAttempts, wantCode: errors.ErrFileInUse},
		{name: "non transient fails fast", failures: 10, failWith: os.ErrPermission, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retryInUse(func() error {
				calls++
				if calls <= tt.failures {
					return &os.PathError{Op: "remove", Path: "x", Err: tt.failWith}
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			switch {
			case tt.wantCode != "":
				assert.True(t, errors.IsErrorCode(err, tt.wantCode))
			case tt.failures >= tt.wantCalls && tt.failWith != nil:
				assert.True(t, stderrors.Is(err, tt.failWith))
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestOSWriteFileIsAtomic(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "record.toml")
	fsys := NewOS()

	require.NoError(t, fsys.WriteFile(target, []byte("first"), 0644))
	require.NoError(t, fsys.WriteFile(target, []byte("second"), 0600))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestCopyAndMoveDir(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "bin", "tool"), []byte("#!/bin/sh\n"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "README"), []byte("hi"), 0644))

	copied := filepath.Join(root, "copied")
	require.NoError(t, CopyDir(src, copied))
	data, err := os.ReadFile(filepath.Join(copied, "bin", "tool"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(data))

	moved := filepath.Join(root, "nested", "moved")
	require.NoError(t, MoveDir(src, moved))
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(moved, "README"))
	assert.NoError(t, err)
}

func TestCopyDirFS(t *testing.T) {
	fsys := NewAferoFS(afero.NewMemMapFs())
	require.NoError(t, fsys.MkdirAll("/src/bin", 0755))
	require.NoError(t, fsys.WriteFile("/src/bin/tool", []byte("#!/bin/sh\n"), 0755))
	require.NoError(t, fsys.WriteFile("/src/README", []byte("hi"), 0644))

	require.NoError(t, CopyDirFS(fsys, "/src", "/dst"))
	data, err := fsys.ReadFile("/dst/bin/tool")
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(data))
	info, err := fsys.Stat("/dst/bin/tool")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
	assert.True(t, Exists(fsys, "/dst/README"))

	err = CopyFileFS(fsys, "/src/missing", "/dst/missing")
	assert.True(t, errors.IsErrorCode(err, errors.ErrFileAccess))
}

func TestRemoveIfEmpty(t *testing.T) {
	fsys := NewAferoFS(afero.NewMemMapFs())
	require.NoError(t, fsys.MkdirAll("/kit/empty", 0755))
	require.NoError(t, fsys.MkdirAll("/kit/full", 0755))
	require.NoError(t, fsys.WriteFile("/kit/full/file", []byte("x"), 0644))

	require.NoError(t, RemoveIfEmpty(fsys, "/kit/empty"))
	require.NoError(t, RemoveIfEmpty(fsys, "/kit/full"))
	require.NoError(t, RemoveIfEmpty(fsys, "/kit/missing"))

	assert.False(t, Exists(fsys, "/kit/empty"))
	assert.True(t, Exists(fsys, "/kit/full"))
}

func TestAferoReadFileRejectsDirectory(t *testing.T) {
	fsys := NewAferoFS(afero.NewMemMapFs())
	require.NoError(t, fsys.MkdirAll("/dir", 0755))

	_, err := fsys.ReadFile("/dir")
	assert.Error(t, err)
}

func TestPreviewFSLeavesDiskUntouched(t *testing.T) {
	dir := t.TempDir()
	profile := filepath.Join(dir, ".profile")
	require.NoError(t, os.WriteFile(profile, []byte("original\n"), 0644))

	preview := NewPreviewFS()
	require.NoError(t, preview.WriteFile(profile, []byte("changed\n"), 0644))

	got, err := preview.ReadFile(profile)
	require.NoError(t, err)
	assert.Equal(t, "changed\n", string(got))

	onDisk, err := os.ReadFile(profile)
	require.NoError(t, err)
	assert.Equal(t, "original\n", string(onDisk))
}
