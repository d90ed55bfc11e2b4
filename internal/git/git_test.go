package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneValidatesArguments(t *testing.T) {
	require.Error(t, Clone(context.Background(), "", "", t.TempDir()))
	require.Error(t, Clone(context.Background(), "https://example.com/repo.git", "", ""))
}

func TestCloneLocalRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	origin := t.TempDir()
	mustGit(t, origin, "init", "--initial-branch", "main")
	mustGit(t, origin, "config", "user.email", "ci@example.com")
	mustGit(t, origin, "config", "user.name", "ci")
	require.NoError(t, os.WriteFile(filepath.Join(origin, "handler.py"), []byte("def handler_function(event, context):\n    pass\n"), 0o644))
	mustGit(t, origin, "add", ".")
	mustGit(t, origin, "commit", "-m", "initial")

	dest := t.TempDir()
	require.NoError(t, Clone(context.Background(), origin, "", dest))
	require.FileExists(t, filepath.Join(dest, "handler.py"))
}

func mustGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}
