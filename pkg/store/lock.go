package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const lockRetryInterval = 10 * time.Millisecond

// lockExclusive takes the advisory exclusive lock on f. A zero or
// negative timeout blocks until the lock is granted; otherwise the
// lock is polled non-blocking until the deadline and ErrLockTimeout
// is returned on expiry. Closing f releases the lock.
func lockExclusive(f *os.File, timeout time.Duration) error {
	fd := int(f.Fd())

	if timeout <= 0 {
		for {
			err := unix.Flock(fd, unix.LOCK_EX)
			if err == nil {
				return nil
			}
			if !errors.Is(err, unix.EINTR) {
				return fmt.Errorf("%w: lock %s: %w", ErrIO, f.Name(), err)
			}
		}
	}

	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			return fmt.Errorf("%w: lock %s: %w", ErrIO, f.Name(), err)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrLockTimeout, f.Name())
		}
		time.Sleep(lockRetryInterval)
	}
}
