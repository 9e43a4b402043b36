package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/shipwright/internal/logfields"
)

// Manager owns one scratch directory and the subdirectories created under it.
type Manager struct {
	baseDir string
	prefix  string

	mu  sync.Mutex
	dir string
}

// NewManager creates a manager rooted at baseDir (os.TempDir when empty).
func NewManager(baseDir, prefix string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if prefix == "" {
		prefix = "shipwright"
	}
	return &Manager{baseDir: baseDir, prefix: prefix}
}

// Create creates the scratch directory. Calling it twice is a no-op.
func (m *Manager) Create() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dir != "" {
		return nil
	}
	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace base: %w", err)
	}
	dir, err := os.MkdirTemp(m.baseDir, m.prefix+"-")
	if err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	m.dir = dir
	slog.Debug("Created workspace", logfields.Path(dir))
	return nil
}

// Path returns the scratch directory, empty before Create.
func (m *Manager) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dir
}

// Subdir creates a fresh, empty subdirectory. Existing content under the same
// name is removed first so a step never sees output from an earlier attempt.
func (m *Manager) Subdir(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dir == "" {
		return "", fmt.Errorf("workspace not created")
	}
	sub := filepath.Join(m.dir, filepath.Clean(string(filepath.Separator)+name))
	if err := os.RemoveAll(sub); err != nil {
		return "", fmt.Errorf("failed to reset subdirectory: %w", err)
	}
	if err := os.MkdirAll(sub, 0o750); err != nil {
		return "", fmt.Errorf("failed to create subdirectory: %w", err)
	}
	return sub, nil
}

// Cleanup removes the scratch directory.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dir == "" {
		return nil
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Debug("Cleaned up workspace", logfields.Path(m.dir))
	m.dir = ""
	return nil
}
