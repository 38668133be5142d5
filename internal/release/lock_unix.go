//go:build unix

package release

import (
	"fmt"
	"os"
	"syscall"
)

// platformLock acquires an exclusive non-blocking lock on the file using flock
func (l *FlockGuard) platformLock(f *os.File) error {
	err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		if err == syscall.EWOULDBLOCK {
			return ErrLockHeld
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	return nil
}

// platformUnlock releases the lock on the file
func (l *FlockGuard) platformUnlock(f *os.File) {
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
