package gitsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nerdprompt/np/internal/alloc"
	"github.com/nerdprompt/np/internal/config"
	"github.com/nerdprompt/np/internal/slug"
)

// DefaultOpTimeout bounds each git subprocess invocation.
const DefaultOpTimeout = 5 * time.Minute

// MappingStore is the persisted (url, branch) -> folder map. The engine only
// reads and appends; the caller's configuration owns the file format.
type MappingStore interface {
	RepoFolder(key string) (string, bool)
	UpdateRepoMap(key, folderName string) error
}

// Result is the per-repository outcome of a sync. Immutable once returned.
type Result struct {
	URL        string
	Branch     string
	CommitHash string
	LocalPath  string
	Success    bool
	// Err carries the failure reason when Success is false.
	Err error
}

// Engine syncs repository references into numbered folders under the output
// root. It runs strictly sequentially; repositories are processed one at a
// time so folder allocation never races.
type Engine struct {
	allocator *alloc.Allocator
	store     MappingStore
	runner    Runner
	opTimeout time.Duration
}

// NewEngine creates a sync engine over the given allocator, mapping store,
// and git runner.
func NewEngine(allocator *alloc.Allocator, store MappingStore, runner Runner) *Engine {
	return &Engine{
		allocator: allocator,
		store:     store,
		runner:    runner,
		opTimeout: DefaultOpTimeout,
	}
}

// SetOpTimeout overrides the per-operation git timeout.
func (e *Engine) SetOpTimeout(d time.Duration) {
	if d > 0 {
		e.opTimeout = d
	}
}

// SyncAll processes references sequentially, preserving caller order in the
// returned slice. A failing repository never aborts the others.
func (e *Engine) SyncAll(ctx context.Context, refs []string) []Result {
	results := make([]Result, 0, len(refs))
	for _, ref := range refs {
		results = append(results, e.Sync(ctx, ref))
	}
	return results
}

// Sync resolves one repository reference to a local working copy.
//
// The mapping entry is recorded immediately after folder allocation, before
// any network operation: a crash mid-sync leaves a mapped-but-missing
// directory, which the pull-then-clone fallback self-heals on the next run.
func (e *Engine) Sync(ctx context.Context, ref string) Result {
	url, branch := slug.ParseRepoRef(ref)
	res := Result{URL: url, Branch: branch}

	key := config.RepoKey(url, branch)
	folder, ok := e.store.RepoFolder(key)
	if !ok {
		prefix, err := e.allocator.RepairAndAllocate()
		if err != nil {
			res.Err = fmt.Errorf("allocate folder for %s: %w", url, err)
			return res
		}
		folder = prefix + "-" + slug.RepoName(url)
		if err := e.store.UpdateRepoMap(key, folder); err != nil {
			res.Err = fmt.Errorf("record mapping for %s: %w", url, err)
			return res
		}
	}

	path := filepath.Join(e.allocator.Root(), folder)
	res.LocalPath = path

	// Pull-then-clone fallback: try an in-place update first, and reserve
	// directory removal for the recovery branch.
	needClone := true
	if isGitWorkingCopy(path) {
		if err := e.withTimeout(ctx, func(opCtx context.Context) error {
			return e.runner.Update(opCtx, path, branch)
		}); err == nil {
			needClone = false
		} else if rmErr := os.RemoveAll(path); rmErr != nil {
			res.Err = fmt.Errorf("remove stale working copy %s: %w", path, rmErr)
			return res
		}
	} else if _, err := os.Stat(path); err == nil {
		// Mapped directory exists but is not a repository (crashed sync or
		// manual tampering). Clear it before cloning.
		if rmErr := os.RemoveAll(path); rmErr != nil {
			res.Err = fmt.Errorf("remove partial directory %s: %w", path, rmErr)
			return res
		}
	}

	if needClone {
		if err := e.withTimeout(ctx, func(opCtx context.Context) error {
			return e.runner.Clone(opCtx, url, branch, path)
		}); err != nil {
			// Leave no partial clone artifacts behind.
			_ = os.RemoveAll(path)
			res.Err = fmt.Errorf("clone %s: %w", url, err)
			return res
		}
	}

	var commit string
	err := e.withTimeout(ctx, func(opCtx context.Context) error {
		var headErr error
		commit, headErr = e.runner.Head(opCtx, path)
		return headErr
	})
	if err != nil {
		res.Err = fmt.Errorf("resolve HEAD for %s: %w", url, err)
		return res
	}

	res.CommitHash = commit
	res.Success = true
	return res
}

func (e *Engine) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()
	return fn(opCtx)
}

// isGitWorkingCopy reports whether path holds a git working copy.
func isGitWorkingCopy(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil && info.IsDir()
}
