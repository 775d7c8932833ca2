package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerdprompt/np/internal/alloc"
	"github.com/nerdprompt/np/internal/dispatch"
	"github.com/nerdprompt/np/internal/gitsync"
)

func newTestRecorder(t *testing.T) (*Recorder, string) {
	t.Helper()
	projectRoot := t.TempDir()
	allocator, err := alloc.New(filepath.Join(projectRoot, "np_output"))
	if err != nil {
		t.Fatal(err)
	}
	r := NewRecorder(allocator, projectRoot)
	r.Clipboard = false
	return r, projectRoot
}

func TestCreateTaskStructure(t *testing.T) {
	r, projectRoot := newTestRecorder(t)
	if err := os.MkdirAll(filepath.Join(projectRoot, "np_output", "01-bar"), 0o755); err != nil {
		t.Fatal(err)
	}

	dir, err := r.CreateTaskStructure(Task{
		Name:       "My Refactor Task",
		Definition: "Refactor the parser.",
		IncludedFiles: []string{
			filepath.Join(projectRoot, "main.go"),
		},
		Repos: []gitsync.Result{{
			URL:        "https://github.com/foo/bar",
			Branch:     "main",
			CommitHash: "0123456789abcdef0123456789abcdef01234567",
			LocalPath:  filepath.Join(projectRoot, "np_output", "01-bar"),
			Success:    true,
		}},
		EstimatedTokens: 1234,
		TargetNames:     []string{"openai/gpt-4", "manual-claude"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if filepath.Base(dir) != "02-my-refactor-task" {
		t.Errorf("task dir = %q", filepath.Base(dir))
	}

	data, err := os.ReadFile(filepath.Join(dir, TaskFileName))
	if err != nil {
		t.Fatal(err)
	}
	doc := string(data)
	for _, want := range []string{
		"# Task: My Refactor Task",
		"Refactor the parser.",
		"`main.go`",
		"(git) https://github.com/foo/bar (Branch: main) (Commit: 0123456789)",
		"**Estimated Tokens:** ~1234",
		"openai/gpt-4, manual-claude",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("task document missing %q", want)
		}
	}

	// One response file per target, pre-created empty.
	for _, name := range []string{"openai-gpt-4.md", "manual-claude.md"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("response file %s: %v", name, err)
			continue
		}
		if info.Size() != 0 {
			t.Errorf("response file %s should start empty", name)
		}
	}
}

func TestCreateTaskStructure_CollidingTargetNames(t *testing.T) {
	r, _ := newTestRecorder(t)

	// Both sanitize to the same slug; the second must get a distinct file.
	dir, err := r.CreateTaskStructure(Task{
		Name:        "t",
		TargetNames: []string{"foo/bar", "foo bar"},
	})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	mdFiles := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".md") && e.Name() != TaskFileName {
			mdFiles++
		}
	}
	if mdFiles != 2 {
		t.Errorf("response files = %d, want 2", mdFiles)
	}
}

func TestWriteResult(t *testing.T) {
	r, _ := newTestRecorder(t)
	dir, err := r.CreateTaskStructure(Task{
		Name:        "t",
		TargetNames: []string{"openai/gpt-4", "bad/model", "manual-x"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := r.WriteResult(dir, dispatch.Result{Target: "openai/gpt-4", Content: "answer"}); err != nil {
		t.Fatal(err)
	}
	if err := r.WriteResult(dir, dispatch.Result{Target: "bad/model", ErrMessage: "timed out"}); err != nil {
		t.Fatal(err)
	}
	if err := r.WriteResult(dir, dispatch.Result{Target: "manual-x"}); err != nil {
		t.Fatal(err)
	}

	got, _ := os.ReadFile(filepath.Join(dir, "openai-gpt-4.md"))
	if string(got) != "answer" {
		t.Errorf("content = %q", got)
	}

	got, _ = os.ReadFile(filepath.Join(dir, "bad-model.md"))
	if !strings.Contains(string(got), "# ERROR") || !strings.Contains(string(got), "timed out") {
		t.Errorf("error file = %q", got)
	}

	info, err := os.Stat(filepath.Join(dir, "manual-x.md"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Error("manual response file should stay empty")
	}
}

func TestSaveLastPrompt(t *testing.T) {
	r, projectRoot := newTestRecorder(t)

	_, err := r.SaveLastPrompt("the prompt")
	if err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(projectRoot, "np_output", LastPromptName))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "the prompt" {
		t.Errorf("saved prompt = %q", got)
	}
}
