package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRequiresRoot(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}

func TestPrepareCreatesIsolatedTree(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	run, err := m.Prepare("run-1")
	require.NoError(t, err)
	require.DirExists(t, run.Source)
	require.DirExists(t, run.Output)
	require.Equal(t, run.Root, filepath.Dir(run.Source))
}

func TestPrepareResetsExistingTree(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	run, err := m.Prepare("run-1")
	require.NoError(t, err)
	stale := filepath.Join(run.Source, "stale.txt")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	run, err = m.Prepare("run-1")
	require.NoError(t, err)
	require.NoFileExists(t, stale)
}

func TestPrepareRequiresRunID(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	_, err = m.Prepare("")
	require.Error(t, err)
}

func TestCleanup(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	run, err := m.Prepare("run-1")
	require.NoError(t, err)
	require.NoError(t, m.Cleanup(run.Root))
	require.NoDirExists(t, run.Root)
}

func TestCleanupRefusesOutsideRoot(t *testing.T) {
	root := t.TempDir()
	m, err := New(root)
	require.NoError(t, err)

	outside := t.TempDir()
	require.Error(t, m.Cleanup(outside))
	require.Error(t, m.Cleanup(root))
	require.Error(t, m.Cleanup(filepath.Join(root, "..", "sibling")))
	require.DirExists(t, outside)
}

func TestCleanupByID(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	run, err := m.Prepare("run-1")
	require.NoError(t, err)
	require.NoError(t, m.CleanupByID("run-1"))
	require.NoDirExists(t, run.Root)
	require.Error(t, m.CleanupByID(""))
}
