// Package types holds small interfaces shared across kitman packages.
package types

import (
	"io/fs"
)

// FS is the filesystem interface kitman components write through.
type FS interface {
	// File operations
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error
	Rename(oldpath, newpath string) error
	Chmod(name string, mode fs.FileMode) error

	// Directory operations
	MkdirAll(path string, perm fs.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)

	// Symlink operations
	Symlink(oldname, newname string) error
	Readlink(name string) (string, error)

	// Removal
	Remove(name string) error
	RemoveAll(path string) error

	// Lstat falls back to Stat on filesystems without links.
	Lstat(name string) (fs.FileInfo, error)
}
