//go:build !windows

package filesystem

import (
	"errors"
	"syscall"
)

func isInUse(err error) bool {
	return errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.ETXTBSY)
}
