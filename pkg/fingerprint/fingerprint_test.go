// pkg/fingerprint/fingerprint_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: afero MemMapFs, temp dirs for the lock file
// PURPOSE: Test record round-trips, ordering, recorder persistence and locking

package fingerprint_test

import (
	"path/filepath"
	"testing"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memFS() types.FS {
	return filesystem.NewAferoFS(afero.NewMemMapFs())
}

func sampleRecord() *fingerprint.Record {
	rec := fingerprint.New("/opt/kit")
	rec.Name = "Kit"
	rec.Version = "1.0.0"
	rec.Manager = "/opt/kit/kitman"
	rec.Toolchain = &fingerprint.ToolchainRecord{Channel: "1.81.0", Profile: "minimal", Components: []string{"clippy"}}
	rec.SetTool(fingerprint.ToolRecord{Name: "mingw", Kind: manifest.KindDirWithBin, BinDir: "/opt/kit/tools/mingw/bin", Paths: []string{"/opt/kit/tools/mingw"}})
	rec.SetTool(fingerprint.ToolRecord{Name: "ext", Kind: manifest.KindPlugin, ExtensionID: "rust-lang.rust-analyzer", Editor: "code"})
	rec.SetTool(fingerprint.ToolRecord{Name: "nextest", Kind: manifest.KindCargoTool, Version: "0.9.72"})
	return rec
}

func TestRecordRoundTrip(t *testing.T) {
	rec := sampleRecord()
	data, err := fingerprint.Encode(rec)
	require.NoError(t, err)

	got, err := fingerprint.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.Equal(t, []string{"mingw", "ext", "nextest"}, got.ToolNames())
}

func TestRecordSetToolMovesToEnd(t *testing.T) {
	rec := sampleRecord()
	rec.SetTool(fingerprint.ToolRecord{Name: "mingw", Kind: manifest.KindDirWithBin, Version: "2"})

	assert.Equal(t, []string{"ext", "nextest", "mingw"}, rec.ToolNames())
	tool, ok := rec.Tool("mingw")
	require.True(t, ok)
	assert.Equal(t, "2", tool.Version)

	assert.True(t, rec.RemoveTool("ext"))
	assert.False(t, rec.RemoveTool("ext"))
	assert.Equal(t, []string{"nextest", "mingw"}, rec.ToolNames())
}

func TestRecordCloneIsDeep(t *testing.T) {
	rec := sampleRecord()
	c := rec.Clone()
	c.Toolchain.Components[0] = "changed"
	c.Tools[0].Paths[0] = "changed"
	c.RemoveTool("ext")

	assert.Equal(t, "clippy", rec.Toolchain.Components[0])
	assert.Equal(t, "/opt/kit/tools/mingw", rec.Tools[0].Paths[0])
	assert.True(t, rec.HasTool("ext"))
}

func TestRecordResetKeepsManager(t *testing.T) {
	rec := sampleRecord()
	rec.Reset()
	assert.True(t, rec.Empty())
	assert.Equal(t, "/opt/kit/kitman", rec.Manager)
	assert.Equal(t, "/opt/kit", rec.InstallDir)
	assert.False(t, rec.HasComponent("clippy"))
}

func TestRecordResetKeepsNamedTools(t *testing.T) {
	rec := sampleRecord()
	names := rec.ToolNames()
	require.NotEmpty(t, names)
	last := names[len(names)-1]

	rec.Reset(last, "not-recorded")
	assert.Empty(t, rec.Name)
	assert.Nil(t, rec.Toolchain)
	assert.Equal(t, []string{last}, rec.ToolNames())
	assert.False(t, rec.Empty())
}

func TestDecodeErrors(t *testing.T) {
	_, err := fingerprint.Decode([]byte("schema = ["))
	assert.True(t, errors.IsErrorCode(err, errors.ErrStateCorrupt))
	assert.Equal(t, errors.KindStateInconsistency, errors.KindOf(err))

	_, err = fingerprint.Decode([]byte("schema = 99\ninstall-dir = \"/x\""))
	assert.True(t, errors.IsErrorCode(err, errors.ErrStateMismatch))
}

func TestStoreLoadMissing(t *testing.T) {
	store := fingerprint.NewStore(memFS(), "/cfg/fingerprint.toml")
	rec, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Nil(t, store.Record())

	assert.True(t, errors.IsErrorCode(store.RecordTool(fingerprint.ToolRecord{Name: "x"}), errors.ErrStateMismatch))
	assert.NoError(t, store.Save())
}

func TestStoreRecorderPersistsEachStep(t *testing.T) {
	fsys := memFS()
	store := fingerprint.NewStore(fsys, "/cfg/fingerprint.toml")
	require.NoError(t, store.Init(fingerprint.New("/opt/kit")))

	require.NoError(t, store.RecordTool(fingerprint.ToolRecord{Name: "a", Kind: manifest.KindExecutables}))
	require.NoError(t, store.RecordToolchain(&fingerprint.ToolchainRecord{Channel: "stable"}))
	require.NoError(t, store.RecordTool(fingerprint.ToolRecord{Name: "b", Kind: manifest.KindCargoTool}))

	reread, err := fingerprint.NewStore(fsys, "/cfg/fingerprint.toml").Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, reread.ToolNames())
	assert.Equal(t, "stable", reread.Toolchain.Channel)

	require.NoError(t, store.ForgetTool("a"))
	require.NoError(t, store.RecordToolchain(nil))
	reread, err = fingerprint.NewStore(fsys, "/cfg/fingerprint.toml").Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, reread.ToolNames())
	assert.False(t, reread.HasToolchain())

	require.NoError(t, store.Delete())
	assert.False(t, filesystem.Exists(fsys, "/cfg/fingerprint.toml"))
	require.NoError(t, store.Delete())
}

func TestStoreLegacyFallback(t *testing.T) {
	fsys := memFS()
	data, err := fingerprint.Encode(sampleRecord())
	require.NoError(t, err)
	require.NoError(t, fsys.MkdirAll("/opt/kit", 0o755))
	require.NoError(t, fsys.WriteFile("/opt/kit/.fingerprint.toml", data, 0o644))

	store := fingerprint.NewStore(fsys, "/cfg/fingerprint.toml", fingerprint.WithLegacyPath("/opt/kit/.fingerprint.toml"))
	rec, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Kit", rec.Name)

	require.NoError(t, store.Save())
	assert.True(t, filesystem.Exists(fsys, "/cfg/fingerprint.toml"))
}

func TestStoreInProgressMarker(t *testing.T) {
	fsys := memFS()
	store := fingerprint.NewStore(fsys, "/cfg/fingerprint.toml")

	stale, err := store.Begin("op-1")
	require.NoError(t, err)
	assert.Empty(t, stale)

	require.NoError(t, store.Init(fingerprint.New("/opt/kit")))
	stale, err = store.Begin("op-1")
	require.NoError(t, err)
	assert.Empty(t, stale)

	// A crash leaves op-1 on disk; the next run sees it.
	next := fingerprint.NewStore(fsys, "/cfg/fingerprint.toml")
	_, err = next.Load()
	require.NoError(t, err)
	stale, err = next.Begin("op-2")
	require.NoError(t, err)
	assert.Equal(t, "op-1", stale)

	require.NoError(t, next.Finish())
	assert.Empty(t, next.Record().InProgress)
}

func TestLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "fingerprint.lock")

	first, err := fingerprint.Acquire(path)
	require.NoError(t, err)

	_, err = fingerprint.Acquire(path)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrStateLocked))
	assert.Equal(t, errors.KindStateInconsistency, errors.KindOf(err))

	require.NoError(t, first.Release())
	require.NoError(t, first.Release())

	second, err := fingerprint.Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, second.Path())
	require.NoError(t, second.Release())
}
