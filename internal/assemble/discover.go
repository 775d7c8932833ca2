// Package assemble discovers context files and merges them with the task
// definition into a single prompt.
package assemble

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nerdprompt/np/internal/slug"
)

// Options controls file discovery for one run.
type Options struct {
	// ProjectRoot anchors relative paths and the default search root.
	ProjectRoot string
	// Includes are local paths and globs; repository URLs must already be
	// filtered out (see SplitIncludes).
	Includes []string
	// Excludes are glob and directory patterns (a trailing "/" marks a
	// directory pattern).
	Excludes []string
	// GitignorePatterns are matched against relative paths and basenames.
	GitignorePatterns []string
	// ExtraRoots are already-synced repository working copies to walk in
	// addition to the local includes.
	ExtraRoots []string
}

// SplitIncludes separates repository URLs from local include patterns,
// preserving order within each group.
func SplitIncludes(includes []string) (gitRefs, local []string) {
	for _, inc := range includes {
		if slug.IsRepoURL(inc) {
			gitRefs = append(gitRefs, inc)
		} else {
			local = append(local, inc)
		}
	}
	return gitRefs, local
}

// DiscoverFiles walks the configured roots and returns the sorted set of
// absolute file paths that survive gitignore and exclude filtering.
func DiscoverFiles(opts Options) ([]string, error) {
	roots, singles, err := searchRoots(opts)
	if err != nil {
		return nil, err
	}

	included := map[string]bool{}

	keep := func(path string) {
		rel := relPath(path, opts.ProjectRoot)
		base := filepath.Base(path)
		if matchesGitignore(rel, base, opts.GitignorePatterns) {
			return
		}
		if matchesExcludes(rel, base, opts.Excludes) {
			return
		}
		included[path] = true
	}

	for _, f := range singles {
		keep(f)
	}

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable entries are skipped, not fatal.
				return nil
			}
			if d.IsDir() {
				rel := relPath(path, opts.ProjectRoot)
				if path != root && dirExcluded(rel, d.Name(), opts.Excludes) {
					return filepath.SkipDir
				}
				return nil
			}
			keep(path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	files := make([]string, 0, len(included))
	for f := range included {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// searchRoots resolves include patterns into directories to walk and
// individual files to consider.
func searchRoots(opts Options) (dirs, files []string, err error) {
	local := opts.Includes

	if len(local) == 0 || contains(local, "./") {
		dirs = append(dirs, opts.ProjectRoot)
	}
	for _, pattern := range local {
		if pattern == "./" {
			continue
		}
		matches, globErr := filepath.Glob(filepath.Join(opts.ProjectRoot, pattern))
		if globErr != nil {
			return nil, nil, fmt.Errorf("include pattern %q: %w", pattern, globErr)
		}
		for _, m := range matches {
			info, statErr := os.Stat(m)
			if statErr != nil {
				continue
			}
			if info.IsDir() {
				dirs = append(dirs, m)
			} else {
				files = append(files, m)
			}
		}
	}
	dirs = append(dirs, opts.ExtraRoots...)

	// Drop roots covered by an earlier, shorter root to avoid walking the
	// same tree twice.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) < len(dirs[j]) })
	var unique []string
	for _, d := range dirs {
		covered := false
		for _, u := range unique {
			if d == u || strings.HasPrefix(d, u+string(filepath.Separator)) {
				covered = true
				break
			}
		}
		if !covered {
			unique = append(unique, d)
		}
	}
	return unique, files, nil
}

// matchesExcludes applies the exclude pattern semantics: directory patterns
// (trailing "/") match path prefixes, ".git/" matches at any depth, and
// plain patterns glob-match the relative path or basename.
func matchesExcludes(rel, base string, patterns []string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range patterns {
		if pattern == ".git/" {
			if rel == ".git" || strings.HasPrefix(rel, ".git/") || strings.Contains(rel, "/.git/") {
				return true
			}
			continue
		}
		if strings.HasSuffix(pattern, "/") {
			trimmed := strings.TrimSuffix(pattern, "/")
			if rel == trimmed || strings.HasPrefix(rel, pattern) || strings.Contains(rel, "/"+pattern) {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// dirExcluded decides whether a directory subtree can be pruned outright.
func dirExcluded(rel, name string, patterns []string) bool {
	if name == ".git" {
		return true
	}
	return matchesExcludes(rel, name, patterns)
}

func matchesGitignore(rel, base string, patterns []string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range patterns {
		p := strings.TrimSuffix(pattern, "/")
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
		if rel == p || strings.HasPrefix(rel, p+"/") {
			return true
		}
	}
	return false
}

// relPath returns path relative to root, or the path itself when it cannot
// be made relative.
func relPath(path, root string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
