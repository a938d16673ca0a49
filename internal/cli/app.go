package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cpaika/depflow/internal/config"
	"github.com/cpaika/depflow/internal/engine"
	"github.com/cpaika/depflow/internal/events"
	"github.com/cpaika/depflow/internal/logging"
	"github.com/cpaika/depflow/internal/store"
)

// app bundles the wired runtime for one command invocation: the SQLite
// store behind its retry wrapper, the event bus, and a coordinator
// hydrated with every persisted edge.
type app struct {
	store  store.Store
	bus    *events.Bus
	coord  *engine.Coordinator
	logger *log.Logger
}

// openApp opens the database and hydrates the workflow engine.
func openApp(ctx context.Context) (*app, error) {
	logger := logging.New("cli")

	sqlStore, err := store.NewSQLiteStore(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.DatabasePath, err)
	}

	st := store.NewResilientStore(sqlStore, retryFromConfig(cfg.Retry), logging.New("store"))
	bus := events.NewBus()
	coord := engine.New(st, bus, logging.New("engine"))

	// Rebuild the in-memory graph from persisted edges.
	deps, err := st.ListDependencies(ctx)
	if err != nil {
		bus.Close()
		_ = sqlStore.Close()
		return nil, fmt.Errorf("loading dependencies: %w", err)
	}
	coord.Restore(deps)

	return &app{store: st, bus: bus, coord: coord, logger: logger}, nil
}

// Close releases the event bus and the database.
func (a *app) Close() {
	a.bus.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Error("closing store", "error", err)
	}
}

// retryFromConfig converts file-level retry settings into the store's
// retry policy. Unset fields keep the stock values.
func retryFromConfig(rc config.RetryConfig) store.RetryConfig {
	out := store.DefaultRetryConfig()
	if rc.InitialIntervalMS > 0 {
		out.InitialInterval = time.Duration(rc.InitialIntervalMS) * time.Millisecond
	}
	if rc.MaxIntervalMS > 0 {
		out.MaxInterval = time.Duration(rc.MaxIntervalMS) * time.Millisecond
	}
	if rc.MaxElapsedTimeMS > 0 {
		out.MaxElapsedTime = time.Duration(rc.MaxElapsedTimeMS) * time.Millisecond
	}
	if rc.Multiplier > 0 {
		out.Multiplier = rc.Multiplier
	}
	if rc.RandomizationFactor > 0 {
		out.RandomizationFactor = rc.RandomizationFactor
	}
	return out
}
