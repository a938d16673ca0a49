// Package logging provides depflow's logging infrastructure built on
// charmbracelet/log.
//
// It wraps charmbracelet/log with a centralized logger factory: component
// prefixes, level configuration, and stderr-only output. Stdout stays clean
// for command output.
//
// Usage:
//
//	// During CLI initialization (PersistentPreRun):
//	logging.Setup(verbose, quiet, jsonFormat)
//
//	// In each package:
//	logger := logging.New("engine")
//	logger.Info("dependency created", "from", from, "to", to)
//
// Setup must be called before New. Child loggers copy the default logger's
// state at creation time; later changes to the default logger do not
// propagate to existing children.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Level aliases for charmbracelet/log levels.
// Re-exported so consumers do not need to import charmbracelet/log directly.
const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
	LevelFatal = log.FatalLevel
)

// Setup configures the global logging defaults. Call once during CLI
// initialization.
//
// verbose sets the level to Debug; quiet sets it to Error. If both are set,
// quiet wins so that scripted invocations stay silent regardless of other
// flags. jsonFormat switches to NDJSON output for log aggregation.
//
// All loggers write to stderr.
func Setup(verbose, quiet, jsonFormat bool) {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	if quiet {
		level = log.ErrorLevel
	}

	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	if jsonFormat {
		log.SetFormatter(log.JSONFormatter)
	} else {
		log.SetFormatter(log.TextFormatter)
	}
}

// SetLevel applies a named level: "debug", "info", "warn", "error", or
// "fatal". The level is left unchanged on unknown names.
func SetLevel(name string) error {
	lvl, err := log.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("unknown log level %q", name)
	}
	log.SetLevel(lvl)
	return nil
}

// New creates a logger with the given component prefix.
//
// The returned logger inherits global level and output settings from the
// default logger at creation time. An empty component string produces a
// logger without a prefix.
func New(component string) *log.Logger {
	return log.WithPrefix(component)
}

// SetOutput overrides the output writer for the default logger.
//
// Primarily useful for testing, where output can be captured with a
// bytes.Buffer. Restore the original output with t.Cleanup.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}
