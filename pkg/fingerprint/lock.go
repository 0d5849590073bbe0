package fingerprint

import (
	"os"
	"path/filepath"

	"github.com/arthur-debert/kitman/pkg/errors"
)

// Lock is an advisory, process-wide lock guarding one installation.
// It lives in its own file so the record can be replaced atomically while
// the lock is held.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the lock at path without waiting. A lock held by another
// process fails with ErrStateLocked.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDirCreate, "create %s", filepath.Dir(path))
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "open lock file %s", path)
	}
	ok, err := tryLock(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "lock %s", path)
	}
	if !ok {
		_ = f.Close()
		return nil, errors.Newf(errors.ErrStateLocked, "another kitman operation holds %s", path).
			WithDetail("lock", path)
	}
	return &Lock{file: f, path: path}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	if err := unlock(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, errors.ErrFileAccess, "unlock %s", l.path)
	}
	return f.Close()
}
