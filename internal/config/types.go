package config

// RetryConfig tunes the persistence retry policy. Durations are expressed
// in milliseconds so the file stays plain JSON.
type RetryConfig struct {
	InitialIntervalMS   int     `json:"initial_interval_ms,omitempty"`
	MaxIntervalMS       int     `json:"max_interval_ms,omitempty"`
	MaxElapsedTimeMS    int     `json:"max_elapsed_time_ms,omitempty"`
	Multiplier          float64 `json:"multiplier,omitempty"`
	RandomizationFactor float64 `json:"randomization_factor,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	DatabasePath            string      `json:"database_path,omitempty"`             // SQLite database file
	LogLevel                string      `json:"log_level,omitempty"`                 // debug, info, warn, error
	EventBufferSize         int         `json:"event_buffer_size,omitempty"`         // Per-subscriber channel buffer
	GenerateIntervalSeconds int         `json:"generate_interval_seconds,omitempty"` // Recurring template sweep interval
	Retry                   RetryConfig `json:"retry"`
}
