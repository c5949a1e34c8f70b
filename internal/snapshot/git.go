package snapshot

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/steveyegge/jury/internal/types"
)

// GitMetadata returns the commit, branch, and dirty state of the
// repository at root. Returns (nil, nil) when root is not a git
// repository or git is not installed; evaluation does not require git.
func GitMetadata(ctx context.Context, root string) (*types.GitInfo, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, nil
	}
	if !isGitRepo(root) {
		return nil, nil
	}

	info := &types.GitInfo{}

	commitCmd := exec.CommandContext(ctx, gitPath, "-C", root, "rev-parse", "HEAD")
	out, err := commitCmd.Output()
	if err != nil {
		// A repo with no commits yet has no HEAD; report nothing.
		return nil, nil
	}
	info.Commit = strings.TrimSpace(string(out))

	branchCmd := exec.CommandContext(ctx, gitPath, "-C", root, "rev-parse", "--abbrev-ref", "HEAD")
	if out, err := branchCmd.Output(); err == nil {
		info.Branch = strings.TrimSpace(string(out))
	}

	statusCmd := exec.CommandContext(ctx, gitPath, "-C", root, "status", "--porcelain")
	if out, err := statusCmd.Output(); err == nil {
		info.Dirty = len(strings.TrimSpace(string(out))) > 0
	}

	return info, nil
}

func isGitRepo(dir string) bool {
	gitDir := filepath.Join(dir, ".git")
	if info, err := os.Stat(gitDir); err == nil && (info.IsDir() || info.Mode().IsRegular()) {
		return true
	}
	return false
}
