package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the advisory lock guarding concurrent indexing passes.
const LockFileName = ".index.lock"

// PassLock is a cross-process advisory lock held for the duration of
// one indexing pass. Works on Unix, Linux, macOS, and Windows.
type PassLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewPassLock creates a lock next to the store in the given directory.
func NewPassLock(dir string) *PassLock {
	lockPath := filepath.Join(dir, LockFileName)
	return &PassLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if another pass holds it.
func (l *PassLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call on an unlocked PassLock.
func (l *PassLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *PassLock) Path() string {
	return l.path
}
