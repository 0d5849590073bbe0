package filesystem

import (
	"io/fs"
	"os"

	"github.com/arthur-debert/kitman/pkg/types"
	"github.com/spf13/afero"
)

// aferoFS adapts an afero.Fs to types.FS. Stat, MkdirAll, Remove,
// RemoveAll, Rename and Chmod come straight from the embedded Fs.
type aferoFS struct {
	afero.Afero
}

// NewAferoFS wraps fsys, usually an afero.MemMapFs in tests.
func NewAferoFS(fsys afero.Fs) types.FS {
	return &aferoFS{afero.Afero{Fs: fsys}}
}

// NewPreviewFS reads through to the real disk and keeps every write in
// memory. `kitman env preview` applies profile edits on it.
func NewPreviewFS() types.FS {
	disk := afero.NewReadOnlyFs(afero.NewOsFs())
	return NewAferoFS(afero.NewCopyOnWriteFs(disk, afero.NewMemMapFs()))
}

// ReadFile refuses directories, like os.ReadFile.
func (a *aferoFS) ReadFile(name string) ([]byte, error) {
	if ok, err := a.IsDir(name); err != nil {
		return nil, err
	} else if ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	return a.Afero.ReadFile(name)
}

// Symlink falls back to a regular file holding the target on filesystems
// without link support, which is enough for code that only reads links
// back through Readlink.
func (a *aferoFS) Symlink(oldname, newname string) error {
	if l, ok := a.Fs.(afero.Linker); ok {
		return l.SymlinkIfPossible(oldname, newname)
	}
	return a.WriteFile(newname, []byte(oldname), 0o777|os.ModeSymlink)
}

func (a *aferoFS) Readlink(name string) (string, error) {
	if r, ok := a.Fs.(afero.LinkReader); ok {
		return r.ReadlinkIfPossible(name)
	}
	target, err := a.Afero.ReadFile(name)
	return string(target), err
}

func (a *aferoFS) Lstat(name string) (fs.FileInfo, error) {
	if l, ok := a.Fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(name)
		return info, err
	}
	return a.Stat(name)
}

func (a *aferoFS) ReadDir(name string) ([]fs.DirEntry, error) {
	infos, err := a.Afero.ReadDir(name)
	if err != nil {
		return nil, err
	}
	entries := make([]fs.DirEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, fs.FileInfoToDirEntry(info))
	}
	return entries, nil
}
