package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// DefaultConfig returns the default configuration: a database under the XDG
// data directory, info-level logging, and the stock retry policy.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:            filepath.Join(xdg.DataHome, "depflow", "depflow.db"),
		LogLevel:                "info",
		EventBufferSize:         256,
		GenerateIntervalSeconds: 60,
		Retry: RetryConfig{
			InitialIntervalMS:   100,
			MaxIntervalMS:       10000,
			MaxElapsedTimeMS:    120000,
			Multiplier:          2.0,
			RandomizationFactor: 0.5,
		},
	}
}
