// Package session owns the per job working directories.
//
// Every job gets its own directory below a shared base. The directory is
// created before the first write and removed when the job concludes,
// whatever the outcome. Directories left behind by a terminated process are
// swept by the Janitor.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrInUse is returned by Acquire for a path some job already holds.
var ErrInUse = errors.New("session directory in use")

// Manager tracks the session directories currently held by running jobs.
type Manager struct {
	base   string
	active sync.Map // path -> time.Time
}

func NewManager(base string) *Manager {
	return &Manager{base: filepath.Clean(base)}
}

// Base is the directory session directories are created in.
func (m *Manager) Base() string {
	return m.base
}

// Path returns the session directory for id.
func (m *Manager) Path(id string) string {
	return filepath.Join(m.base, id)
}

// Acquire creates path including its parents and marks it as held. The
// caller must call Release on every exit path, typically with defer.
func (m *Manager) Acquire(path string) (string, error) {
	path = filepath.Clean(path)
	if _, loaded := m.active.LoadOrStore(path, time.Now()); loaded {
		return "", fmt.Errorf("acquiring %s: %w", path, ErrInUse)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		m.active.Delete(path)
		return "", fmt.Errorf("creating session directory: %w", err)
	}
	return path, nil
}

// Release removes the directory tree and forgets the path. Releasing a path
// which does not exist is not an error.
func (m *Manager) Release(path string) error {
	path = filepath.Clean(path)
	defer m.active.Delete(path)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing session directory: %w", err)
	}
	return nil
}

// Active reports whether path is held by a running job.
func (m *Manager) Active(path string) bool {
	_, ok := m.active.Load(filepath.Clean(path))
	return ok
}
