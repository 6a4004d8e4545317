// Package lock provides file-based locking for purser operations.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Lock represents a file-based lock guarding one operation on a directory.
type Lock struct {
	path string
	file *os.File
}

// New creates a lock for the given operation scoped to dir.
func New(dir, operation string) *Lock {
	lockDir := filepath.Join(dir, ".purser", "locks")
	return &Lock{
		path: filepath.Join(lockDir, operation+".lock"),
	}
}

// Acquire attempts to acquire the lock.
// Returns an error if the lock is already held by another process.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	// Non-blocking exclusive lock: a concurrent run should fail fast, not
	// queue up behind the current one.
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		l.file = nil
		if err == syscall.EWOULDBLOCK {
			return fmt.Errorf("another %s operation is already running", operationName(l.path))
		}
		return fmt.Errorf("acquire lock: %w", err)
	}

	// PID in the lock file helps debug stuck locks.
	f.Truncate(0)
	f.Seek(0, 0)
	fmt.Fprintf(f, "%d\n", os.Getpid())

	l.file = f
	return nil
}

// Release releases the lock.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		l.file.Close()
		return fmt.Errorf("release lock: %w", err)
	}

	l.file.Close()
	os.Remove(l.path)
	l.file = nil
	return nil
}

// WithLock executes a function while holding the lock.
// The lock is automatically released when the function returns.
func WithLock(dir, operation string, fn func() error) error {
	lock := New(dir, operation)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	return fn()
}

func operationName(path string) string {
	base := filepath.Base(path)
	if len(base) > len(".lock") {
		return base[:len(base)-len(".lock")]
	}
	return base
}
