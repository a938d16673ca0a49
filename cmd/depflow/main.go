package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cpaika/depflow/internal/cli"
)

func main() {
	// Signal-aware context so watch mode and slow queries stop cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(cli.Execute(ctx))
}
