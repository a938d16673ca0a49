package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Merge global config if exists
	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	// Merge project config if exists (highest precedence)
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: $XDG_CONFIG_HOME/depflow/config.json
// Project: .depflow/config.json (relative to cwd)
func LoadDefault() (*Config, error) {
	globalPath := filepath.Join(xdg.ConfigHome, "depflow", "config.json")
	projectPath := filepath.Join(".depflow", "config.json")

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges it into the base config.
// Only fields actually set in the file override the base; zero values are
// treated as absent. Missing files are silently skipped. Malformed JSON
// returns an error.
func mergeConfigFile(base *Config, path string) error {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	// Parse JSON
	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	// Overlay set fields
	if loaded.DatabasePath != "" {
		base.DatabasePath = loaded.DatabasePath
	}
	if loaded.LogLevel != "" {
		base.LogLevel = loaded.LogLevel
	}
	if loaded.EventBufferSize > 0 {
		base.EventBufferSize = loaded.EventBufferSize
	}
	if loaded.GenerateIntervalSeconds > 0 {
		base.GenerateIntervalSeconds = loaded.GenerateIntervalSeconds
	}
	mergeRetry(&base.Retry, loaded.Retry)

	return nil
}

// mergeRetry overlays set retry fields onto the base policy.
func mergeRetry(base *RetryConfig, loaded RetryConfig) {
	if loaded.InitialIntervalMS > 0 {
		base.InitialIntervalMS = loaded.InitialIntervalMS
	}
	if loaded.MaxIntervalMS > 0 {
		base.MaxIntervalMS = loaded.MaxIntervalMS
	}
	if loaded.MaxElapsedTimeMS > 0 {
		base.MaxElapsedTimeMS = loaded.MaxElapsedTimeMS
	}
	if loaded.Multiplier > 0 {
		base.Multiplier = loaded.Multiplier
	}
	if loaded.RandomizationFactor > 0 {
		base.RandomizationFactor = loaded.RandomizationFactor
	}
}
