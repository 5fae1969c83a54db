package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Manager owns per-deployment scratch directories under a common root.
type Manager struct {
	root string
}

func New(root string) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Manager{root: abs}, nil
}

func (m *Manager) Root() string {
	return m.root
}

// Prepare returns an empty directory for identifier, deleting whatever a
// previous attempt left behind. The directory is not removed afterwards.
func (m *Manager) Prepare(identifier string) (string, error) {
	if strings.TrimSpace(identifier) == "" {
		return "", fmt.Errorf("workspace identifier cannot be empty")
	}
	dir := filepath.Join(m.root, identifier)
	if !m.contains(dir) {
		return "", fmt.Errorf("workspace identifier %q escapes the workspace root", identifier)
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("cleanup workspace: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	return dir, nil
}

func (m *Manager) contains(path string) bool {
	rel, err := filepath.Rel(m.root, path)
	return err == nil && rel != "." && rel != "" && !strings.HasPrefix(rel, "..")
}
