//go:build !windows

package fingerprint

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

var flockFn = unix.Flock

func tryLock(f *os.File) (bool, error) {
	err := flockFn(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
		return false, nil
	}
	return false, err
}

func unlock(f *os.File) error {
	return flockFn(int(f.Fd()), unix.LOCK_UN)
}
