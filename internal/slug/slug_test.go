package slug

import (
	"strings"
	"testing"
)

func TestMake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Task Name", "my-task-name"},
		{"google/gemini-pro", "google-gemini-pro"},
		{"path\\to:thing", "path-to-thing"},
		{"hello_world.md", "hello_world.md"},
		{"--already--trimmed--", "already--trimmed"},
		{"", "unnamed"},
		{"???", "unnamed"},
	}
	for _, tt := range tests {
		if got := Make(tt.in); got != tt.want {
			t.Errorf("Make(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMake_LengthCap(t *testing.T) {
	long := strings.Repeat("a", 300)
	got := Make(long)
	if len(got) != MaxLength {
		t.Errorf("len(Make(long)) = %d, want %d", len(got), MaxLength)
	}
}

func TestParseRepoRef(t *testing.T) {
	tests := []struct {
		ref        string
		wantURL    string
		wantBranch string
	}{
		{"https://github.com/foo/bar.git#develop", "https://github.com/foo/bar.git", "develop"},
		{"https://github.com/foo/bar.git", "https://github.com/foo/bar.git", ""},
		{"git@github.com:foo/bar.git#main", "git@github.com:foo/bar.git", "main"},
	}
	for _, tt := range tests {
		url, branch := ParseRepoRef(tt.ref)
		if url != tt.wantURL || branch != tt.wantBranch {
			t.Errorf("ParseRepoRef(%q) = (%q, %q), want (%q, %q)",
				tt.ref, url, branch, tt.wantURL, tt.wantBranch)
		}
	}
}

func TestRepoName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://github.com/foo/Bar.git", "bar"},
		{"https://github.com/foo/some-repo", "some-repo"},
		{"git@github.com:foo/thing.git", "thing"},
	}
	for _, tt := range tests {
		if got := RepoName(tt.url); got != tt.want {
			t.Errorf("RepoName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestIsRepoURL(t *testing.T) {
	if !IsRepoURL("https://github.com/foo/bar") {
		t.Error("https URL should be a repo URL")
	}
	if !IsRepoURL("git@github.com:foo/bar.git") {
		t.Error("ssh URL should be a repo URL")
	}
	if IsRepoURL("./src") {
		t.Error("local path should not be a repo URL")
	}
	if IsRepoURL("*.go") {
		t.Error("glob should not be a repo URL")
	}
}
