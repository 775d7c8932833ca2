package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/nerdprompt/np/internal/config"
	"github.com/nerdprompt/np/internal/dispatch"
)

// interactiveSetup walks the user through the four setup steps on stdin and
// returns the resolved run configuration, or nil when the user cancels.
// Confirmed sources and LLMs are saved back as project defaults.
func interactiveSetup(mgr *config.Manager) (*runConfig, error) {
	state, err := mgr.LoadProjectState()
	if err != nil {
		color.Yellow("Warning: %v (continuing with defaults)", err)
	}
	in := bufio.NewReader(os.Stdin)

	// Step 1: context sources.
	color.Blue("Step 1: Define Context Sources")
	includes := askList(in, "Include paths/globs/URLs", state.Includes)
	excludes := askList(in, "Extra exclude patterns", state.Excludes)

	// Step 2: LLM targets.
	color.Blue("Step 2: Choose LLMs")
	fmt.Println("Names with a \"/\" go to OpenRouter; anything else is a manual placeholder.")
	llms := askList(in, "LLMs", state.LLMs)

	// Step 3: task name.
	color.Blue("Step 3: Name Your Task")
	var taskName string
	for taskName == "" {
		taskName = ask(in, "Short, descriptive task name", "")
		if taskName == "" {
			color.Red("Task name cannot be empty.")
		}
	}

	// Step 4: task definition.
	color.Blue("Step 4: Define the Task")
	var definition string
	if strings.EqualFold(ask(in, "Read task definition from a file? (y/N)", "n"), "y") {
		path := ask(in, "Path to task file", "")
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read task file %s: %w", path, err)
		}
		definition = string(data)
	} else {
		fmt.Println("Enter the task definition. Finish with a single \".\" on its own line:")
		var lines []string
		for {
			line, err := in.ReadString('\n')
			trimmed := strings.TrimRight(line, "\r\n")
			if trimmed == "." || err != nil {
				break
			}
			lines = append(lines, trimmed)
		}
		definition = strings.Join(lines, "\n")
	}

	rc := &runConfig{
		includes:       includes,
		excludes:       excludes,
		llms:           llms,
		taskName:       taskName,
		taskDefinition: definition,
		overrides:      cloneOverrides(state.ModelOverrides),
		clipboard:      !flagNoClipboard,
		concurrency:    flagConcurrency,
		skipConfirm:    flagYes,
	}

	// Make sure a key exists before dispatch when remote targets are listed.
	if dispatch.CountRemote(dispatch.NewTargets(rc.llms, nil)) > 0 {
		if _, err := mgr.LoadAPIKey(); err != nil {
			color.Yellow("No OpenRouter API key found.")
			if err := promptAndSaveKey(in, mgr); err != nil {
				return nil, err
			}
		}
	}

	// Persist the confirmed choices as the new project defaults.
	state.Includes = includes
	state.Excludes = excludes
	state.LLMs = llms
	if err := mgr.SaveProjectState(state); err != nil {
		color.Yellow("Warning: could not save project defaults: %v", err)
	}

	return rc, nil
}

// ask reads one line, returning the default when the answer is blank.
func ask(in *bufio.Reader, question, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", question, def)
	} else {
		fmt.Printf("%s: ", question)
	}
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return def
	}
	answer := strings.TrimSpace(line)
	if answer == "" {
		return def
	}
	return answer
}

// askList reads a space-separated list, keeping the current values on a
// blank answer.
func askList(in *bufio.Reader, question string, current []string) []string {
	answer := ask(in, question, strings.Join(current, " "))
	fields := strings.Fields(answer)
	if len(fields) == 0 {
		return current
	}
	return fields
}

// promptAndSaveKey reads an API key from stdin and stores it globally. The
// key is echoed by the terminal but never logged or printed back.
func promptAndSaveKey(in *bufio.Reader, mgr *config.Manager) error {
	key := ask(in, "Enter your OpenRouter API key (sk-or-...)", "")
	if err := mgr.SaveAPIKey(key); err != nil {
		return err
	}
	color.Green("API key saved globally (%s).", config.MaskAPIKey(key))
	return nil
}
