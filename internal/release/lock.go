package release

import (
	"errors"
	"fmt"
	"os"
)

var ErrLockHeld = errors.New("release already in progress (lock held)")

// FlockGuard serializes release runs for a repository. Two concurrent
// publishes against the same dist directory would interleave artifacts.
type FlockGuard struct {
	path string
	file *os.File
}

func NewFlockGuard(path string) *FlockGuard {
	return &FlockGuard{path: path}
}

func (l *FlockGuard) Acquire() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := l.platformLock(f); err != nil {
		f.Close()
		return err
	}

	l.file = f
	return nil
}

func (l *FlockGuard) Release() error {
	if l.file == nil {
		return nil
	}

	l.platformUnlock(l.file)

	err := l.file.Close()
	l.file = nil

	os.Remove(l.path)

	return err
}

func (l *FlockGuard) IsLocked() bool {
	return l.file != nil
}
