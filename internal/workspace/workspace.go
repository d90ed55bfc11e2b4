package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Manager owns run-specific working directories under a common root. Each
// validation run gets an isolated tree with a source checkout area and an
// output area for files copied back out of the container.
type Manager struct {
	root string
}

// Run holds the directories belonging to a single validation run.
type Run struct {
	Root   string
	Source string
	Output string
}

// New ensures the workspace root exists and is accessible.
func New(root string) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Manager{root: root}, nil
}

// Prepare creates an isolated directory tree for the provided run identifier.
func (m *Manager) Prepare(runID string) (Run, error) {
	if runID == "" {
		return Run{}, fmt.Errorf("run identifier cannot be empty")
	}
	dir := filepath.Join(m.root, runID)
	if err := os.RemoveAll(dir); err != nil {
		return Run{}, fmt.Errorf("cleanup workspace: %w", err)
	}
	run := Run{
		Root:   dir,
		Source: filepath.Join(dir, "src"),
		Output: filepath.Join(dir, "out"),
	}
	for _, d := range []string{run.Source, run.Output} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return Run{}, fmt.Errorf("create workspace: %w", err)
		}
	}
	return run, nil
}

// Cleanup removes the workspace directory.
func (m *Manager) Cleanup(path string) error {
	if path == "" {
		return nil
	}
	// Ensure we only remove directories within the configured root.
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == "." || rel == "" || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("refusing to cleanup path outside workspace root")
	}
	return os.RemoveAll(path)
}

// CleanupByID removes the workspace associated with the provided run.
func (m *Manager) CleanupByID(runID string) error {
	if runID == "" {
		return fmt.Errorf("run identifier cannot be empty")
	}
	return m.Cleanup(filepath.Join(m.root, runID))
}
