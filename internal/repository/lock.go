package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	// LockFileName is created in the scratch directory and kept between runs
	LockFileName = "autorelease.lock"
	// LockRetryInterval defines the interval between lock retry attempts
	LockRetryInterval = 100 * time.Millisecond
	// lockDirPermissions defines the permissions for the scratch directory
	lockDirPermissions = 0o700
)

// ErrRunInProgress is returned when another release run holds the lock.
var ErrRunInProgress = errors.New("another release run is in progress")

// RunLock serialises release runs that share a scratch directory.
type RunLock struct {
	path string
	lock *flock.Flock
}

// NewRunLock prepares a lock file inside dir.
func NewRunLock(dir string) *RunLock {
	path := filepath.Join(dir, LockFileName)
	return &RunLock{path: path, lock: flock.New(path)}
}

// Path returns the lock file location.
func (l *RunLock) Path() string {
	return l.path
}

// Acquire takes the lock, waiting up to timeout for a concurrent run to finish.
// A zero timeout fails immediately when the lock is held.
func (l *RunLock) Acquire(ctx context.Context, timeout time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(l.path), lockDirPermissions); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	var (
		locked bool
		err    error
	)
	if timeout <= 0 {
		locked, err = l.lock.TryLock()
	} else {
		lockCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		locked, err = l.lock.TryLockContext(lockCtx, LockRetryInterval)
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to acquire lock %s: %w", l.path, err)
	}
	if !locked {
		return fmt.Errorf("%w (lock file: %s)", ErrRunInProgress, l.path)
	}
	return nil
}

// Release unlocks the lock file. The file stays on disk so every run locks
// the same inode; unlinking it would let a waiter and a new run both hold a lock.
func (l *RunLock) Release() error {
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.path, err)
	}
	return nil
}
