package filesystem

import (
	"time"

	"github.com/arthur-debert/kitman/pkg/errors"
)

// InUseAttempts is how many times an operation hitting a busy file is tried.
const InUseAttempts = 5

var (
	inUseBackoff = 200 * time.Millisecond
	sleep        = time.Sleep
)

// retryInUse runs op until it succeeds, fails with a non-transient error, or
// the attempt budget is spent. A spent budget surfaces as ErrFileInUse.
func retryInUse(op func() error) error {
	var err error
	for attempt := 1; attempt <= InUseAttempts; attempt++ {
		err = op()
		if err == nil || !isInUse(err) {
			return err
		}
		if attempt < InUseAttempts {
			sleep(inUseBackoff * time.Duration(attempt))
		}
	}
	return errors.Wrapf(err, errors.ErrFileInUse, "still in use after %d attempts", InUseAttempts)
}

// Retry exposes the in-use retry loop to callers doing their own file work,
// such as replacing a running executable.
func Retry(op func() error) error {
	return retryInUse(op)
}
