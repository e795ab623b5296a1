package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/bindery/internal/logfields"
)

// Manager hands out the ephemeral staging directory a build uses for
// render intermediates (converter input and output). One Manager per
// build; Cleanup removes everything it created.
type Manager struct {
	baseDir string
	dir     string
}

// NewManager creates a workspace manager rooted under baseDir, falling
// back to the system temp dir.
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// Create makes the timestamped staging directory.
func (m *Manager) Create() error {
	timestamp := time.Now().Format("20060102-150405")
	dir, err := os.MkdirTemp(m.baseDir, fmt.Sprintf("bindery-%s-", timestamp))
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	m.dir = dir
	slog.Debug("created staging workspace", logfields.Path(dir))
	return nil
}

// Path returns the staging directory, empty before Create.
func (m *Manager) Path() string {
	return m.dir
}

// Subdir creates a named subdirectory inside the workspace and returns
// its path.
func (m *Manager) Subdir(name string) (string, error) {
	if m.dir == "" {
		return "", fmt.Errorf("workspace not created")
	}
	sub := filepath.Join(m.dir, name)
	if err := os.MkdirAll(sub, 0o750); err != nil {
		return "", fmt.Errorf("create staging subdirectory: %w", err)
	}
	return sub, nil
}

// Cleanup removes the staging directory and everything in it. Safe to
// call before Create or twice.
func (m *Manager) Cleanup() error {
	if m.dir == "" {
		return nil
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("cleanup staging directory: %w", err)
	}
	slog.Debug("removed staging workspace", logfields.Path(m.dir))
	m.dir = ""
	return nil
}
