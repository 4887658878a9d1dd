package git

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"

	"github.com/ShayCichocki/phasegate/internal/exec"
)

// ExecRunner implements WorkingTree by invoking the git CLI.
type ExecRunner struct {
	repoPath string
	cmd      exec.CommandRunner
}

// NewRunner creates a new git runner for the repository at the given path.
func NewRunner(repoPath string, cmd exec.CommandRunner) *ExecRunner {
	if cmd == nil {
		cmd = exec.NewRunner()
	}
	return &ExecRunner{repoPath: repoPath, cmd: cmd}
}

// FindRoot returns the top-level directory of the repository containing
// path, searching parent directories for a .git entry.
func FindRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	repo, err := gogit.PlainOpenWithOptions(abs, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repository at %s: %w", abs, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}
	return wt.Filesystem.Root(), nil
}

// RepoPath returns the repository path the runner operates on.
func (r *ExecRunner) RepoPath() string {
	return r.repoPath
}

// raw executes a git command and returns its untrimmed stdout. Warnings git
// writes to stderr only show up in the error.
func (r *ExecRunner) raw(args ...string) (string, error) {
	out, err := r.cmd.Output(context.Background(), r.repoPath, "git", args...)
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

// runSilent executes a git command and ignores output.
func (r *ExecRunner) runSilent(args ...string) error {
	_, err := r.raw(args...)
	return err
}

// DiffUncommitted returns the diff of the index and working tree against HEAD.
func (r *ExecRunner) DiffUncommitted() (string, error) {
	return r.raw("diff", "HEAD", "--binary", "--no-color", "--no-ext-diff")
}

// HasChanges returns true if there are uncommitted changes to tracked files.
func (r *ExecRunner) HasChanges() (bool, error) {
	diff, err := r.DiffUncommitted()
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(diff) != "", nil
}

// DiscardUncommitted resets the index and working tree to HEAD.
func (r *ExecRunner) DiscardUncommitted() error {
	return r.runSilent("reset", "--hard", "--quiet", "HEAD")
}

// ApplyPatch applies a patch file to the index and working tree.
func (r *ExecRunner) ApplyPatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve patch path: %w", err)
	}
	return r.runSilent("apply", "--index", "--whitespace=nowarn", abs)
}

// Verify ExecRunner implements WorkingTree at compile time.
var _ WorkingTree = (*ExecRunner)(nil)
