package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/nerdprompt/np/internal/alloc"
	"github.com/nerdprompt/np/internal/assemble"
	"github.com/nerdprompt/np/internal/config"
	"github.com/nerdprompt/np/internal/dispatch"
	"github.com/nerdprompt/np/internal/gitsync"
	"github.com/nerdprompt/np/internal/output"
	"github.com/nerdprompt/np/internal/tui"
)

// executeRun drives the full pipeline: sync git sources, discover and
// assemble context, record the task structure, dispatch to LLMs, and write
// every response.
func executeRun(ctx context.Context, mgr *config.Manager, rc *runConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	projectRoot := mgr.ProjectRoot()
	targets := dispatch.NewTargets(rc.llms, rc.overrides)

	// Credential check happens before any filesystem or network work so a
	// missing key fails fast. The key itself is never printed.
	apiKey := ""
	if dispatch.CountRemote(targets) > 0 {
		key, err := mgr.LoadAPIKey()
		if err != nil {
			return fmt.Errorf("remote LLMs configured but no API key available; run 'np set-key' or set %s", config.APIKeyEnvVar)
		}
		apiKey = key
	}

	allocator, err := alloc.New(filepath.Join(projectRoot, config.OutputDirName))
	if err != nil {
		return err
	}

	// 1. Sync git sources.
	gitRefs, localIncludes := assemble.SplitIncludes(rc.includes)
	var repoResults []gitsync.Result
	var extraRoots []string
	if len(gitRefs) > 0 {
		color.Blue("Syncing %d git source(s)...", len(gitRefs))
		engine := gitsync.NewEngine(allocator, mgr, gitsync.NewRunner())
		repoResults = engine.SyncAll(ctx, gitRefs)
		for _, r := range repoResults {
			if r.Success {
				extraRoots = append(extraRoots, r.LocalPath)
			} else {
				color.Yellow("Warning: could not sync %s: %v", r.URL, r.Err)
			}
		}
	}

	// 2. Discover files.
	state, err := mgr.LoadProjectState()
	if err != nil {
		color.Yellow("Warning: %v (continuing with defaults)", err)
	}
	files, err := assemble.DiscoverFiles(assemble.Options{
		ProjectRoot:       projectRoot,
		Includes:          localIncludes,
		Excludes:          effectiveExcludes(state.Excludes, rc.excludes),
		GitignorePatterns: mgr.LoadGitignorePatterns(),
		ExtraRoots:        extraRoots,
	})
	if err != nil {
		return err
	}
	color.Blue("Files included: %d", len(files))

	// 3. Assemble the prompt.
	prompt := assemble.BuildPrompt(projectRoot, files, rc.taskDefinition)
	fmt.Printf("Prompt assembled. Estimated tokens: ~%d\n", prompt.EstimatedTokens)

	if !rc.skipConfirm {
		printFolderBreakdown(prompt.FolderTokens)
		if !confirm("Continue with these context files?") {
			color.Yellow("Operation cancelled.")
			return nil
		}
	}

	// 4. Save the prompt and create the task structure.
	recorder := output.NewRecorder(allocator, projectRoot)
	recorder.Clipboard = rc.clipboard
	clipErr, saveErr := recorder.SaveLastPrompt(prompt.Text)
	switch {
	case saveErr != nil:
		color.Red("Error: %v", saveErr)
	case rc.clipboard && clipErr == nil:
		color.Green("Copied prompt to clipboard and saved to %s/%s.", config.OutputDirName, output.LastPromptName)
	default:
		color.Green("Saved prompt to %s/%s.", config.OutputDirName, output.LastPromptName)
	}
	if clipErr != nil {
		color.Yellow("Warning: could not copy prompt to clipboard: %v", clipErr)
	}

	taskDir, err := recorder.CreateTaskStructure(output.Task{
		Name:            rc.taskName,
		Definition:      rc.taskDefinition,
		IncludedFiles:   files,
		Repos:           repoResults,
		EstimatedTokens: prompt.EstimatedTokens,
		TargetNames:     rc.llms,
	})
	if err != nil {
		return err
	}

	// 5. Dispatch.
	switch {
	case len(targets) == 0:
		color.Yellow("Warning: no LLMs specified. Skipping dispatch.")
	case strings.TrimSpace(rc.taskDefinition) == "":
		color.Yellow("Warning: task definition is empty. Skipping dispatch.")
	default:
		if !rc.skipConfirm && dispatch.CountRemote(targets) > 0 {
			if !confirm(fmt.Sprintf("Proceed with sending to %d LLM(s)?", len(targets))) {
				color.Yellow("Operation cancelled.")
				return nil
			}
		}
		if err := dispatchAndRecord(ctx, rc, apiKey, prompt.Text, targets, recorder, taskDir); err != nil {
			return err
		}
	}

	color.Green("Task '%s' finished.", rc.taskName)
	fmt.Printf("Output written to: %s\n", relToRoot(projectRoot, taskDir))
	return nil
}

// dispatchAndRecord fans the prompt out to all targets while rendering live
// status, then writes every response file.
func dispatchAndRecord(ctx context.Context, rc *runConfig, apiKey, prompt string, targets []dispatch.Target, recorder *output.Recorder, taskDir string) error {
	reg := dispatch.NewRegistry(targets)
	client := dispatch.NewClient(dispatch.DefaultBaseURL, apiKey)
	engine := dispatch.NewEngine(client, rc.concurrency)

	type outcome struct {
		results []dispatch.Result
		total   float64
	}
	done := make(chan outcome, 1)
	go func() {
		results, total := engine.Dispatch(ctx, prompt, targets, reg)
		done <- outcome{results, total}
	}()

	if isatty.IsTerminal(os.Stdout.Fd()) {
		if err := tui.Run(reg); err != nil {
			// Rendering failure must not lose the run; fall back to polling.
			tui.Follow(reg, printfStdout)
		}
	} else {
		tui.Follow(reg, printfStdout)
	}
	out := <-done

	failures := 0
	for _, res := range out.results {
		if res.Err() {
			failures++
		}
		if err := recorder.WriteResult(taskDir, res); err != nil {
			color.Red("Error: %v", err)
		}
	}
	if failures > 0 {
		color.Red("%d of %d target(s) failed; see the response files for details.", failures, len(out.results))
	}
	if out.total > 0 {
		color.Green("LLM processing complete. Total estimated cost: $%.6f", out.total)
	} else {
		color.Green("LLM processing complete.")
	}
	return nil
}

// effectiveExcludes merges the default, configured, and per-run exclude
// patterns into a sorted, deduplicated list.
func effectiveExcludes(configured, extra []string) []string {
	set := map[string]bool{}
	for _, group := range [][]string{config.DefaultExcludes, configured, extra} {
		for _, p := range group {
			set[p] = true
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// printFolderBreakdown shows the heaviest folders by estimated tokens.
func printFolderBreakdown(folderTokens map[string]int) {
	if len(folderTokens) == 0 {
		return
	}
	type entry struct {
		folder string
		tokens int
	}
	entries := make([]entry, 0, len(folderTokens))
	for folder, tokens := range folderTokens {
		entries = append(entries, entry{folder, tokens})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tokens > entries[j].tokens })
	if len(entries) > 5 {
		entries = entries[:5]
	}
	fmt.Println("Top token folders:")
	for _, e := range entries {
		folder := e.folder
		if folder == "" {
			folder = "."
		}
		fmt.Printf("  %-40s ~%d\n", folder, e.tokens)
	}
}

// confirm asks a yes/no question on stdin, defaulting to yes.
func confirm(question string) bool {
	fmt.Printf("%s [Y/n] ", question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "" || answer == "y" || answer == "yes"
}

func printfStdout(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

func relToRoot(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}
