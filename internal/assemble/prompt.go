package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// charsPerToken is the crude estimation ratio used for sizing prompts.
const charsPerToken = 4

const sectionSeparator = "\n\n---\n\n"

const taskHeader = `
================================================================================

# Main Instructions - Current Task

This section contains the primary instructions and current task to follow.

++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++

`

const taskFooter = `

--------------------------------------------------------------------------------

## Output Format Instructions

*   Your entire response **must** be formatted as valid Markdown.
*   Use standard Markdown syntax for headings, lists, code blocks, bolding, etc.
*   Ensure all links are embedded directly using Markdown syntax (e.g., ` + "`[text](URL)`" + `) and are clickable. Do **not** use reference-style links (e.g., ` + "`[1]`, `[2]`" + `) or footnotes for links.
*   Structure your response logically. Use code blocks with language identifiers where appropriate.
`

// EstimateTokens approximates the token count of text. Empty text is zero;
// anything else is at least one token.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / charsPerToken
	if n < 1 {
		n = 1
	}
	return n
}

// Prompt is an assembled prompt plus its sizing breakdown.
type Prompt struct {
	Text string
	// EstimatedTokens sizes the full assembled text.
	EstimatedTokens int
	// FolderTokens breaks the estimate down by containing folder, for the
	// pre-flight context preview.
	FolderTokens map[string]int
}

// BuildPrompt reads every included file and merges it with the task
// definition. Files that cannot be read are embedded as error blocks rather
// than aborting assembly.
func BuildPrompt(projectRoot string, files []string, taskDefinition string) Prompt {
	var b strings.Builder
	folderTokens := map[string]int{}

	for _, path := range files {
		rel := filepath.ToSlash(relPath(path, projectRoot))
		fmt.Fprintf(&b, "## Source: %s\n\n", rel)

		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(&b, "```\n--- ERROR READING FILE ---\n%v\n```", err)
		} else {
			b.Write(data)
			folder := filepath.ToSlash(filepath.Dir(rel))
			folderTokens[folder] += EstimateTokens(string(data))
		}
		b.WriteString(sectionSeparator)
	}

	b.WriteString(taskHeader)
	b.WriteString(taskDefinition)
	b.WriteString(taskFooter)

	text := b.String()
	return Prompt{
		Text:            text,
		EstimatedTokens: EstimateTokens(text),
		FolderTokens:    folderTokens,
	}
}
