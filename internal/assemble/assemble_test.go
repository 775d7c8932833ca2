package assemble

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSplitIncludes(t *testing.T) {
	gitRefs, local := SplitIncludes([]string{
		"./",
		"https://github.com/foo/bar#main",
		"src/",
		"git@github.com:x/y.git",
	})
	if len(gitRefs) != 2 {
		t.Errorf("gitRefs = %v", gitRefs)
	}
	if len(local) != 2 || local[0] != "./" || local[1] != "src/" {
		t.Errorf("local = %v", local)
	}
}

func TestDiscoverFiles_DefaultRootWithExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "debug.log", "noise")
	writeFile(t, root, "node_modules/pkg/index.js", "x")
	writeFile(t, root, ".git/config", "x")
	writeFile(t, root, "docs/readme.md", "docs")

	files, err := DiscoverFiles(Options{
		ProjectRoot: root,
		Includes:    []string{"./"},
		Excludes:    []string{".git/", "node_modules/", "*.log"},
	})
	if err != nil {
		t.Fatal(err)
	}

	var rels []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, f)
		rels = append(rels, filepath.ToSlash(rel))
	}
	want := []string{"docs/readme.md", "main.go"}
	if len(rels) != len(want) {
		t.Fatalf("files = %v, want %v", rels, want)
	}
	for i := range want {
		if rels[i] != want[i] {
			t.Errorf("files = %v, want %v", rels, want)
		}
	}
}

func TestDiscoverFiles_GitignoreApplied(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.txt", "keep")
	writeFile(t, root, "secret.pem", "key")
	writeFile(t, root, "tmp/scratch.txt", "x")

	files, err := DiscoverFiles(Options{
		ProjectRoot:       root,
		Includes:          []string{"./"},
		GitignorePatterns: []string{"*.pem", "tmp/"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "keep.txt" {
		t.Errorf("files = %v", files)
	}
}

func TestDiscoverFiles_SpecificIncludesAndExtraRoots(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "a")
	writeFile(t, root, "b.txt", "b")
	writeFile(t, root, "sub/c.md", "c")
	repo := filepath.Join(root, "np_output", "01-repo")
	writeFile(t, repo, "lib.go", "package lib")

	files, err := DiscoverFiles(Options{
		ProjectRoot: root,
		Includes:    []string{"*.md", "sub"},
		ExtraRoots:  []string{repo},
	})
	if err != nil {
		t.Fatal(err)
	}

	var rels []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, f)
		rels = append(rels, filepath.ToSlash(rel))
	}
	want := map[string]bool{"a.md": true, "sub/c.md": true, "np_output/01-repo/lib.go": true}
	if len(rels) != len(want) {
		t.Fatalf("files = %v", rels)
	}
	for _, r := range rels {
		if !want[r] {
			t.Errorf("unexpected file %q", r)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("EstimateTokens(empty) = %d", got)
	}
	if got := EstimateTokens("ab"); got != 1 {
		t.Errorf("EstimateTokens(short) = %d, want 1", got)
	}
	if got := EstimateTokens(strings.Repeat("x", 400)); got != 100 {
		t.Errorf("EstimateTokens(400 chars) = %d, want 100", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	root := t.TempDir()
	f1 := writeFile(t, root, "hello.go", "package hello")
	f2 := writeFile(t, root, "sub/notes.md", "some notes")

	p := BuildPrompt(root, []string{f1, f2}, "Do the thing.")

	if !strings.Contains(p.Text, "## Source: hello.go") {
		t.Error("missing source header for hello.go")
	}
	if !strings.Contains(p.Text, "## Source: sub/notes.md") {
		t.Error("missing source header for sub/notes.md")
	}
	if !strings.Contains(p.Text, "package hello") {
		t.Error("missing file content")
	}
	if !strings.Contains(p.Text, "Do the thing.") {
		t.Error("missing task definition")
	}
	if !strings.Contains(p.Text, "# Main Instructions - Current Task") {
		t.Error("missing task banner")
	}
	if !strings.Contains(p.Text, "## Output Format Instructions") {
		t.Error("missing output format footer")
	}
	if p.EstimatedTokens < 1 {
		t.Errorf("EstimatedTokens = %d", p.EstimatedTokens)
	}
	if p.FolderTokens["sub"] == 0 {
		t.Errorf("FolderTokens = %v, want entry for sub", p.FolderTokens)
	}
}

func TestBuildPrompt_UnreadableFileEmbeddedAsError(t *testing.T) {
	root := t.TempDir()
	missing := filepath.Join(root, "gone.txt")

	p := BuildPrompt(root, []string{missing}, "task")

	if !strings.Contains(p.Text, "ERROR READING FILE") {
		t.Error("unreadable file should be embedded as an error block")
	}
	if !strings.Contains(p.Text, "task") {
		t.Error("task definition should still be present")
	}
}
