// Package config handles persisted configuration for np: the per-project
// state file (.npconfig.toml) holding run defaults and the git repository
// map, and the global settings file holding the OpenRouter API key.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	// ProjectConfigName is the per-project state file, created in the
	// project root.
	ProjectConfigName = ".npconfig.toml"

	// globalConfigDirName is the directory under the user config dir that
	// holds global settings.
	globalConfigDirName = "nerd-prompt"

	// globalConfigName is the global settings file name.
	globalConfigName = "settings.toml"

	// OutputDirName is the per-project output root holding synced
	// repositories and numbered task folders.
	OutputDirName = "np_output"
)

// DefaultExcludes are applied to file discovery on every run, in addition to
// .gitignore patterns and per-run excludes.
var DefaultExcludes = []string{
	".git/",
	"__pycache__/",
	"node_modules/",
	".vscode/",
	"*.log",
	ProjectConfigName,
	OutputDirName + "/",
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.svg", "*.webp", "*.ico", "*.bmp",
	".DS_Store",
	"*.pyc",
	".env",
	"venv/",
	".venv/",
	"dist/",
	"build/",
	"*.egg-info/",
	"vendor/",
	"*.exe",
	"*.test",
}

// ProjectState is the persistent per-project state stored in .npconfig.toml.
// The git repository map is owned here; the sync engine only reads and
// appends entries through the Manager.
type ProjectState struct {
	Includes       []string                  `toml:"include"`
	Excludes       []string                  `toml:"exclude"`
	LLMs           []string                  `toml:"llms"`
	ModelOverrides map[string]map[string]any `toml:"model_overrides"`
	// GitRepoMap maps "url#branch" (branch "DEFAULT" when unspecified) to
	// the numbered folder name inside the output root.
	GitRepoMap map[string]string `toml:"git_repo_map"`
	// APIKeyBackup is a fallback copy of the API key, written only when the
	// user saves a key through SaveAPIKey.
	APIKeyBackup string `toml:"api_key_backup,omitempty"`
}

// DefaultProjectState returns the state used when no config file exists yet.
func DefaultProjectState() *ProjectState {
	return &ProjectState{
		Includes:       []string{"./"},
		Excludes:       append([]string(nil), DefaultExcludes...),
		ModelOverrides: map[string]map[string]any{},
		GitRepoMap:     map[string]string{},
	}
}

// RepoKey builds the map key for a repository reference. The empty branch
// (remote default) is recorded as "DEFAULT" so the key is unambiguous.
func RepoKey(url, branch string) string {
	if branch == "" {
		branch = "DEFAULT"
	}
	return url + "#" + branch
}

// Manager loads and saves project and global configuration.
type Manager struct {
	projectRoot string
}

// NewManager creates a Manager rooted at the given project directory.
func NewManager(projectRoot string) *Manager {
	return &Manager{projectRoot: projectRoot}
}

// ProjectRoot returns the project root directory.
func (m *Manager) ProjectRoot() string {
	return m.projectRoot
}

// ProjectConfigPath returns the path of the per-project state file.
func (m *Manager) ProjectConfigPath() string {
	return filepath.Join(m.projectRoot, ProjectConfigName)
}

// GlobalConfigPath returns the path of the global settings file.
func (m *Manager) GlobalConfigPath() string {
	return filepath.Join(globalConfigDir(), globalConfigName)
}

// LoadProjectState reads .npconfig.toml, returning defaults when the file
// does not exist. A corrupt file is an error; the caller decides whether to
// continue with defaults.
func (m *Manager) LoadProjectState() (*ProjectState, error) {
	state := DefaultProjectState()

	data, err := os.ReadFile(m.ProjectConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return state, fmt.Errorf("read project config: %w", err)
	}
	if err := toml.Unmarshal(data, state); err != nil {
		return DefaultProjectState(), fmt.Errorf("parse project config %s: %w", m.ProjectConfigPath(), err)
	}
	if state.ModelOverrides == nil {
		state.ModelOverrides = map[string]map[string]any{}
	}
	if state.GitRepoMap == nil {
		state.GitRepoMap = map[string]string{}
	}
	return state, nil
}

// SaveProjectState writes the full project state back to .npconfig.toml.
func (m *Manager) SaveProjectState(state *ProjectState) error {
	data, err := toml.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode project config: %w", err)
	}
	if err := os.WriteFile(m.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("write project config: %w", err)
	}
	return nil
}

// RepoFolder looks up the mapped folder name for a repository key.
func (m *Manager) RepoFolder(key string) (string, bool) {
	state, err := m.LoadProjectState()
	if err != nil {
		return "", false
	}
	folder, ok := state.GitRepoMap[key]
	return folder, ok
}

// UpdateRepoMap records a repository mapping and persists it immediately.
// Existing identical entries are left untouched.
func (m *Manager) UpdateRepoMap(key, folderName string) error {
	state, err := m.LoadProjectState()
	if err != nil {
		return err
	}
	if state.GitRepoMap[key] == folderName {
		return nil
	}
	state.GitRepoMap[key] = folderName
	return m.SaveProjectState(state)
}

// LoadGitignorePatterns reads .gitignore from the project root, skipping
// blanks and comments. A missing file yields no patterns.
func (m *Manager) LoadGitignorePatterns() []string {
	f, err := os.Open(filepath.Join(m.projectRoot, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// globalConfigDir returns the XDG config directory for np.
func globalConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, globalConfigDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", globalConfigDirName)
	}
	return filepath.Join(home, ".config", globalConfigDirName)
}
