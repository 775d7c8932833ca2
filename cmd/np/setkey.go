package main

import (
	"bufio"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nerdprompt/np/internal/config"
)

var setKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Store the OpenRouter API key globally",
	Long: `Prompts for an OpenRouter API key and stores it in the global settings
file (with a backup copy in the project config). The key can also be
provided via the ` + config.APIKeyEnvVar + ` environment variable, which
always takes precedence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := config.NewManager(mustGetwd())
		if key, err := mgr.LoadAPIKey(); err == nil {
			color.Yellow("A key is already configured (%s). It will be replaced.", config.MaskAPIKey(key))
		}
		return promptAndSaveKey(bufio.NewReader(os.Stdin), mgr)
	},
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
