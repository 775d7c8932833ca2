package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nerdprompt/np/internal/config"
)

var (
	flagInclude     []string
	flagExclude     []string
	flagLLM         []string
	flagName        string
	flagTask        string
	flagTaskFile    string
	flagParam       []string
	flagYes         bool
	flagNoClipboard bool
	flagConcurrency int
)

var rootCmd = &cobra.Command{
	Use:   "np",
	Short: "Context Assembler & LLM Interaction CLI",
	Long: `np assembles project files, git repositories, and a task definition
into a single prompt, dispatches it to multiple LLMs concurrently through
OpenRouter, and records every response in a numbered task folder.

With no arguments, enters interactive setup mode. With arguments, runs
non-interactively:

  np -n "refactor-parser" -t "Refactor the parser." -l openai/gpt-4o

Manual LLM names (no "/") create an empty response file to fill by hand.`,
	SilenceUsage: true,
	RunE:         runRoot,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringArrayVarP(&flagInclude, "include", "i", nil, "Path/glob/URL to include. Repeatable. Overrides config includes.")
	rootCmd.Flags().StringArrayVarP(&flagExclude, "exclude", "e", nil, "Path/glob to exclude (adds to defaults/gitignore). Repeatable.")
	rootCmd.Flags().StringArrayVarP(&flagLLM, "llm", "l", nil, "LLM name (OpenRouter model or manual). Repeatable. Overrides config LLMs.")
	rootCmd.Flags().StringVarP(&flagName, "name", "n", "", "Short name for the task (required for non-interactive).")
	rootCmd.Flags().StringVarP(&flagTask, "task", "t", "", "Task definition text.")
	rootCmd.Flags().StringVarP(&flagTaskFile, "task-file", "f", "", "Path to file with task definition.")
	rootCmd.Flags().StringArrayVarP(&flagParam, "param", "p", nil, "Override OpenRouter param as MODEL KEY VALUE triplets. Repeatable.")
	rootCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "Skip confirmation prompts.")
	rootCmd.Flags().BoolVar(&flagNoClipboard, "no-clipboard", false, "Do not copy the assembled prompt to the clipboard.")
	rootCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "Maximum concurrent LLM requests (0 = default).")

	rootCmd.AddCommand(setKeyCmd)
	rootCmd.AddCommand(versionCmd)
}

// runConfig is the fully resolved configuration for one run, after merging
// flags, interactive answers, and project defaults.
type runConfig struct {
	includes       []string
	excludes       []string
	llms           []string
	taskName       string
	taskDefinition string
	overrides      map[string]map[string]any
	skipConfirm    bool
	clipboard      bool
	concurrency    int
}

func runRoot(cmd *cobra.Command, args []string) error {
	projectRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}
	mgr := config.NewManager(projectRoot)

	nonInteractive := len(flagInclude) > 0 || len(flagExclude) > 0 || len(flagLLM) > 0 ||
		flagName != "" || flagTask != "" || flagTaskFile != "" || len(flagParam) > 0

	var rc *runConfig
	if nonInteractive {
		rc, err = configFromFlags(mgr)
	} else {
		color.Green("No arguments detected. Starting interactive setup...")
		rc, err = interactiveSetup(mgr)
	}
	if err != nil {
		return err
	}
	if rc == nil {
		// User cancelled during setup.
		return nil
	}

	return executeRun(cmd.Context(), mgr, rc)
}

// configFromFlags validates the non-interactive flag set and merges it with
// project defaults.
func configFromFlags(mgr *config.Manager) (*runConfig, error) {
	if flagName == "" {
		return nil, fmt.Errorf("--name is required for non-interactive mode")
	}
	if flagTask != "" && flagTaskFile != "" {
		return nil, fmt.Errorf("use either --task or --task-file, not both")
	}
	if flagTask == "" && flagTaskFile == "" {
		return nil, fmt.Errorf("either --task or --task-file is required for non-interactive mode")
	}

	state, err := mgr.LoadProjectState()
	if err != nil {
		color.Yellow("Warning: %v (continuing with defaults)", err)
	}

	rc := &runConfig{
		taskName:    flagName,
		includes:    flagInclude,
		excludes:    flagExclude,
		llms:        flagLLM,
		skipConfirm: flagYes,
		clipboard:   !flagNoClipboard,
		concurrency: flagConcurrency,
	}
	if len(rc.includes) == 0 {
		rc.includes = state.Includes
	}
	if len(rc.llms) == 0 {
		rc.llms = state.LLMs
	}

	if flagTaskFile != "" {
		data, err := os.ReadFile(flagTaskFile)
		if err != nil {
			return nil, fmt.Errorf("read task file %s: %w", flagTaskFile, err)
		}
		rc.taskDefinition = string(data)
	} else {
		rc.taskDefinition = flagTask
	}

	rc.overrides = cloneOverrides(state.ModelOverrides)
	if err := applyParamFlags(rc.overrides, flagParam); err != nil {
		return nil, err
	}
	return rc, nil
}

// applyParamFlags folds --param MODEL KEY VALUE triplets into the override
// map. Values are typed: int, float, bool, then string.
func applyParamFlags(overrides map[string]map[string]any, params []string) error {
	if len(params)%3 != 0 {
		return fmt.Errorf("--param expects MODEL KEY VALUE triplets, got %d values", len(params))
	}
	for i := 0; i+2 < len(params); i += 3 {
		model, key, raw := params[i], params[i+1], params[i+2]
		if overrides[model] == nil {
			overrides[model] = map[string]any{}
		}
		overrides[model][key] = parseParamValue(raw)
	}
	return nil
}

// parseParamValue mirrors the typed parsing of override values: numeric
// strings become int or float, true/false become bool, everything else
// stays a string.
func parseParamValue(raw string) any {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		if f == float64(int64(f)) {
			return int(f)
		}
		return f
	}
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}

func cloneOverrides(src map[string]map[string]any) map[string]map[string]any {
	out := make(map[string]map[string]any, len(src))
	for model, params := range src {
		inner := make(map[string]any, len(params))
		for k, v := range params {
			inner[k] = v
		}
		out[model] = inner
	}
	return out
}
