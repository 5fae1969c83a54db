package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"
)

// ErrLocked is returned when the lock is still held after the timeout.
var ErrLocked = errors.New("lock is held by another deployment")

const (
	pollInterval = 100 * time.Millisecond
	// reapTimeout frees a reap file left by a process that died mid-reap.
	reapTimeout = 10 * time.Second
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Manager hands out per-key locks backed by lock files, so concurrent
// deployments in one process and separate CLI runs on the same host
// exclude each other.
type Manager struct {
	dir string
}

func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// TryLock waits up to timeout for key. A lock file left by a process that no
// longer exists is removed.
func (m *Manager) TryLock(ctx context.Context, key string, timeout time.Duration) error {
	lockFile := m.path(key)
	deadline := time.Now().Add(timeout)

	for {
		f, err := os.OpenFile(lockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("create lock file: %w", err)
		}

		if m.removeStale(lockFile) {
			continue
		}

		if !time.Now().Before(deadline) {
			return fmt.Errorf("%s: %w", key, ErrLocked)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (m *Manager) Unlock(key string) {
	os.Remove(m.path(key))
}

// removeStale deletes lockFile when its owner is gone. Waiters take turns
// through a reap file, and the owner is read again once the turn is held, so
// a lock created by a faster waiter is never removed.
func (m *Manager) removeStale(lockFile string) bool {
	if !staleOwner(lockFile) {
		return false
	}

	reap := lockFile + ".reap"
	f, err := os.OpenFile(reap, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if info, statErr := os.Stat(reap); statErr == nil && time.Since(info.ModTime()) > reapTimeout {
			os.Remove(reap)
		}
		return false
	}
	f.Close()
	defer os.Remove(reap)

	if !staleOwner(lockFile) {
		return false
	}
	return os.Remove(lockFile) == nil
}

// staleOwner reports whether the process recorded in lockFile no longer
// exists.
func staleOwner(lockFile string) bool {
	data, err := os.ReadFile(lockFile)
	if err != nil {
		return false
	}
	var pid int
	if n, _ := fmt.Sscanf(string(data), "%d", &pid); n != 1 || pid <= 0 {
		return false
	}
	if err := syscall.Kill(pid, 0); err != nil && errors.Is(err, syscall.ESRCH) {
		return true
	}
	return false
}

func (m *Manager) path(key string) string {
	name := unsafeKeyChars.ReplaceAllString(strings.TrimSpace(key), "_")
	return filepath.Join(m.dir, name+".lock")
}
