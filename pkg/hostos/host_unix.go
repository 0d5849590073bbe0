//go:build !windows

package hostos

import (
	"os"
	"path/filepath"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/filesystem"
)

// Unix systems have no central uninstall registry.
func (Native) RegisterUninstall(UninstallEntry) error       { return nil }
func (Native) UnregisterUninstall(string) error             { return nil }
func (Native) LookupUninstallCommand(string) (string, bool) { return "", false }

// LinkExecutable creates a symlink, replacing whatever was at link.
func (Native) LinkExecutable(target, link string) error {
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "create %s", filepath.Dir(link))
	}
	if current, err := os.Readlink(link); err == nil && current == target {
		return nil
	}
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, errors.ErrFileWrite, "remove %s", link)
	}
	if err := os.Symlink(target, link); err != nil {
		return errors.Wrapf(err, errors.ErrSymlinkCreate, "link %s -> %s", link, target)
	}
	return nil
}

// ReplaceExecutable renames replacement over current. The running process
// keeps its open inode, so this is safe mid-execution.
func (Native) ReplaceExecutable(current, replacement string) error {
	if err := os.Chmod(replacement, 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "chmod %s", replacement)
	}
	if err := filesystem.Retry(func() error { return os.Rename(replacement, current) }); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "replace %s", current)
	}
	return nil
}

// RemoveExecutable unlinks path.
func (Native) RemoveExecutable(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, errors.ErrFileWrite, "remove %s", path)
	}
	return nil
}
