// API key management for the OpenRouter credential.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// APIKeyEnvVar is the environment variable checked first for the credential.
const APIKeyEnvVar = "OPENROUTER_API_KEY"

// ErrNoAPIKey is returned when no API key can be found anywhere.
var ErrNoAPIKey = errors.New("no OpenRouter API key configured")

// LoadAPIKey resolves the OpenRouter API key.
// It checks in order: environment variable, global settings file, project
// config backup. The key is never logged.
func (m *Manager) LoadAPIKey() (string, error) {
	if key := strings.TrimSpace(os.Getenv(APIKeyEnvVar)); key != "" {
		return key, nil
	}

	v := viper.New()
	v.SetConfigFile(m.GlobalConfigPath())
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err == nil {
		if key := strings.TrimSpace(v.GetString("settings.openrouter_api_key")); key != "" {
			return key, nil
		}
	}

	state, err := m.LoadProjectState()
	if err == nil && strings.TrimSpace(state.APIKeyBackup) != "" {
		return strings.TrimSpace(state.APIKeyBackup), nil
	}

	return "", ErrNoAPIKey
}

// SaveAPIKey stores the key in the global settings file with restrictive
// permissions, and mirrors it into the project config as a fallback.
func (m *Manager) SaveAPIKey(key string) error {
	if err := ValidateAPIKey(key); err != nil {
		return err
	}

	dir := globalConfigDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(m.GlobalConfigPath())
	v.SetConfigType("toml")
	v.Set("settings.openrouter_api_key", key)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("write global settings: %w", err)
	}
	// chmod failures (e.g. on Windows) are not fatal.
	_ = os.Chmod(m.GlobalConfigPath(), 0o600)

	state, err := m.LoadProjectState()
	if err != nil {
		state = DefaultProjectState()
	}
	state.APIKeyBackup = key
	if err := m.SaveProjectState(state); err != nil {
		return fmt.Errorf("write project key backup: %w", err)
	}
	return nil
}

// ValidateAPIKey performs format-only validation; it does not call the API.
func ValidateAPIKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}
	if !strings.HasPrefix(key, "sk-or-") {
		return errors.New("invalid API key format: expected 'sk-or-' prefix")
	}
	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}
	return nil
}

// MaskAPIKey returns a display-safe version of the key.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 14 {
		return "***"
	}
	return key[:10] + "..." + key[len(key)-4:]
}
