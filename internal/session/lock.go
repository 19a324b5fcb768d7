package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the sort lock
var ErrLocked = errors.New("another dlsort process is already sorting")

// ProcessLock guards sorting across processes with an advisory file lock
type ProcessLock struct {
	path string
	lock *flock.Flock
}

// AcquireLock takes the lock at path without waiting
func AcquireLock(path string) (*ProcessLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock file %s)", ErrLocked, path)
	}

	return &ProcessLock{path: path, lock: fl}, nil
}

// Path returns the lock file location
func (l *ProcessLock) Path() string {
	return l.path
}

// Release drops the lock
func (l *ProcessLock) Release() error {
	return l.lock.Unlock()
}
