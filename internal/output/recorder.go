// Package output materializes a task's numbered folder: the metadata
// document, one response file per target, and the saved prompt.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"

	"github.com/nerdprompt/np/internal/alloc"
	"github.com/nerdprompt/np/internal/dispatch"
	"github.com/nerdprompt/np/internal/gitsync"
	"github.com/nerdprompt/np/internal/slug"
)

// TaskFileName is the metadata document written into every task folder.
const TaskFileName = "_task.md"

// LastPromptName is the copy of the assembled prompt kept at the output root.
const LastPromptName = "last_prompt.md"

// Recorder writes task output under the shared output root. It only creates
// and modifies files inside its own allocated task folder (plus the
// last-prompt file at the root); the allocator owns top-level structure.
type Recorder struct {
	allocator   *alloc.Allocator
	projectRoot string
	// Clipboard toggles mirroring of the assembled prompt to the system
	// clipboard. Failures are reported but never fail the run.
	Clipboard bool
}

// NewRecorder creates a Recorder over the given allocator.
func NewRecorder(allocator *alloc.Allocator, projectRoot string) *Recorder {
	return &Recorder{allocator: allocator, projectRoot: projectRoot, Clipboard: true}
}

// Task describes one task run to record.
type Task struct {
	Name            string
	Definition      string
	IncludedFiles   []string
	Repos           []gitsync.Result
	EstimatedTokens int
	TargetNames     []string
}

// CreateTaskStructure allocates the task's numbered folder, writes _task.md,
// and pre-creates one empty response file per target. Every target, remote
// or manual, gets exactly one file; manual files stay empty until filled by
// hand.
func (r *Recorder) CreateTaskStructure(task Task) (string, error) {
	prefix, err := r.allocator.RepairAndAllocate()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(r.allocator.Root(), prefix+"-"+slug.Make(task.Name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create task folder: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, TaskFileName), []byte(r.taskDocument(task)), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", TaskFileName, err)
	}

	created := map[string]bool{}
	for _, name := range task.TargetNames {
		fileName := ResponseFileName(name)
		for i := 1; created[fileName]; i++ {
			fileName = fmt.Sprintf("%s-%d.md", slug.Make(name), i)
		}
		created[fileName] = true
		path := filepath.Join(dir, fileName)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return "", fmt.Errorf("create response file %s: %w", fileName, err)
		}
	}
	return dir, nil
}

// ResponseFileName maps a target name to its response file.
func ResponseFileName(target string) string {
	return slug.Make(target) + ".md"
}

// taskDocument renders _task.md.
func (r *Recorder) taskDocument(task Task) string {
	var sources []string
	for _, f := range task.IncludedFiles {
		sources = append(sources, fmt.Sprintf("*   `%s`", r.rel(f)))
	}
	repos := append([]gitsync.Result(nil), task.Repos...)
	sort.Slice(repos, func(i, j int) bool {
		return filepath.Base(repos[i].LocalPath) < filepath.Base(repos[j].LocalPath)
	})
	for _, repo := range repos {
		if !repo.Success {
			continue
		}
		branch := ""
		if repo.Branch != "" {
			branch = fmt.Sprintf(" (Branch: %s)", repo.Branch)
		}
		sources = append(sources, fmt.Sprintf("*   (git) %s%s (Commit: %s) -> `%s`",
			repo.URL, branch, shortHash(repo.CommitHash), r.rel(repo.LocalPath)))
	}
	sourceSection := strings.Join(sources, "\n")
	if sourceSection == "" {
		sourceSection = "*   (No specific files listed)"
	}

	targets := strings.Join(task.TargetNames, ", ")
	if targets == "" {
		targets = "None"
	}

	return fmt.Sprintf(`# Task: %s

%s

---

## Included Context Sources

%s

---

## Metadata

*   **Created:** %s
*   **Run ID:** %s
*   **Estimated Tokens:** ~%d
*   **LLMs Targeted:** %s
`,
		task.Name,
		task.Definition,
		sourceSection,
		time.Now().UTC().Format(time.RFC3339),
		uuid.NewString(),
		task.EstimatedTokens,
		targets,
	)
}

// WriteResult writes a dispatch result into its target's response file.
// Error results are recorded as a markdown error document so the file
// always explains what happened.
func (r *Recorder) WriteResult(taskDir string, res dispatch.Result) error {
	content := res.Content
	if res.Err() {
		content = fmt.Sprintf("# ERROR: Failed to get response from %s\n\n**Timestamp:** %s\n**Error Details:**\n%s\n",
			res.Target, time.Now().Format(time.RFC3339), res.ErrMessage)
	}
	if content == "" {
		// Manual targets keep their pre-created empty file.
		return nil
	}
	path := filepath.Join(taskDir, ResponseFileName(res.Target))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write response for %s: %w", res.Target, err)
	}
	return nil
}

// SaveLastPrompt writes the assembled prompt to the output root and, when
// enabled, mirrors it to the clipboard. The returned clipboard error is
// advisory; the file write outcome is the real one.
func (r *Recorder) SaveLastPrompt(prompt string) (clipErr, err error) {
	path := filepath.Join(r.allocator.Root(), LastPromptName)
	if writeErr := os.WriteFile(path, []byte(prompt), 0o644); writeErr != nil {
		err = fmt.Errorf("save %s: %w", LastPromptName, writeErr)
	}
	if r.Clipboard {
		clipErr = clipboard.WriteAll(prompt)
	}
	return clipErr, err
}

func (r *Recorder) rel(path string) string {
	rel, err := filepath.Rel(r.projectRoot, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func shortHash(hash string) string {
	if len(hash) > 10 {
		return hash[:10]
	}
	return hash
}
