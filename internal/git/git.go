package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Clone clones the repository into the provided destination directory. When
// ref is non-empty the exact ref is fetched and checked out, which covers
// pull-request head SHAs that are not reachable from the default branch.
func Clone(ctx context.Context, repoURL, ref, dest string) error {
	if repoURL == "" {
		return fmt.Errorf("repository URL cannot be empty")
	}
	if dest == "" {
		return fmt.Errorf("destination cannot be empty")
	}
	if err := run(ctx, dest, "clone", "--depth", "1", repoURL, "."); err != nil {
		return err
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if err := run(ctx, dest, "fetch", "--depth", "1", "origin", ref); err != nil {
		return err
	}
	return run(ctx, dest, "checkout", "--detach", "FETCH_HEAD")
}

func run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	// Prevent git from prompting for credentials interactively.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s failed: %w: %s", args[0], err, string(output))
	}
	return nil
}
