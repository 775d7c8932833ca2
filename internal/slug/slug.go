// Package slug derives filesystem-safe names from task titles, model
// identifiers, and repository references.
package slug

import (
	"regexp"
	"strings"
)

// MaxLength is the longest slug Make will produce.
const MaxLength = 100

var (
	separators = regexp.MustCompile(`[\s/\\:]+`)
	unsafe     = regexp.MustCompile(`[^a-zA-Z0-9\-_.]+`)
)

// Make sanitizes a string for use as a file or directory name.
// Spaces and path separators become hyphens, remaining unsafe characters
// are collapsed to hyphens, and the result is lowercased and length-capped.
// An empty result yields "unnamed".
func Make(name string) string {
	s := separators.ReplaceAllString(name, "-")
	s = unsafe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	s = strings.ToLower(s)
	if s == "" {
		return "unnamed"
	}
	if len(s) > MaxLength {
		s = s[:MaxLength]
	}
	return s
}

// ParseRepoRef splits a repository reference of the form "url#branch" into
// its base URL and branch. A reference without a fragment uses the remote's
// default branch, reported as the empty string.
func ParseRepoRef(ref string) (url, branch string) {
	if i := strings.Index(ref, "#"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}

// RepoName derives a short name from a repository URL: the final path
// segment with any ".git" suffix stripped, sanitized.
func RepoName(url string) string {
	name := url
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".git")
	return Make(name)
}

// IsRepoURL reports whether an include pattern refers to a remote git
// repository rather than a local path or glob.
func IsRepoURL(s string) bool {
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "git@")
}
