// Package gitsync resolves repository references into local, up-to-date
// working copies inside the output root, pinning each to an exact commit.
package gitsync

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner defines the git operations the sync engine needs. Implementations
// must treat a missing git executable and non-zero exits as ordinary errors;
// the engine recovers per repository.
type Runner interface {
	// Clone performs a shallow clone of the given branch into path. An
	// empty branch clones the remote's default branch.
	Clone(ctx context.Context, url, branch, path string) error
	// Update brings an existing working copy at path up to date with its
	// tracked branch. An empty branch updates whatever is checked out.
	Update(ctx context.Context, path, branch string) error
	// Head resolves the commit hash of HEAD in the working copy at path.
	Head(ctx context.Context, path string) (string, error)
}

// ExecRunner implements Runner using the system git executable.
type ExecRunner struct{}

// NewRunner creates a new git runner.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

// run executes a git command and returns its trimmed combined output.
func (r *ExecRunner) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// Clone performs a shallow, single-branch clone.
func (r *ExecRunner) Clone(ctx context.Context, url, branch, path string) error {
	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "-b", branch)
	}
	args = append(args, url, path)
	_, err := r.run(ctx, args...)
	return err
}

// Update fetches, checks out the tracked branch, and pulls. Any step failing
// fails the whole update; the engine falls back to a fresh clone.
func (r *ExecRunner) Update(ctx context.Context, path, branch string) error {
	if _, err := r.run(ctx, "-C", path, "fetch", "origin"); err != nil {
		return err
	}
	if branch != "" {
		if _, err := r.run(ctx, "-C", path, "checkout", branch); err != nil {
			return err
		}
		_, err := r.run(ctx, "-C", path, "pull", "origin", branch)
		return err
	}
	_, err := r.run(ctx, "-C", path, "pull")
	return err
}

// Head returns the commit hash of HEAD.
func (r *ExecRunner) Head(ctx context.Context, path string) (string, error) {
	return r.run(ctx, "-C", path, "rev-parse", "HEAD")
}

// Verify ExecRunner implements Runner at compile time.
var _ Runner = (*ExecRunner)(nil)
