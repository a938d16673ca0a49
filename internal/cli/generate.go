package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cpaika/depflow/internal/events"
	"github.com/cpaika/depflow/internal/logging"
	"github.com/cpaika/depflow/internal/recurring"
)

// generateFlags holds the flag values for the generate command.
type generateFlags struct {
	Watch bool
	JSON  bool
}

// newGenerateCmd creates the "depflow generate" command.
func newGenerateCmd() *cobra.Command {
	var flags generateFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Stamp out tasks from due recurring templates",
		Long: `Sweep active templates and create a task for every one whose next
occurrence has come due. With --watch the sweep repeats on the
configured interval until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.Watch, "watch", false, "Keep sweeping on the configured interval")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output generated tasks as JSON")

	return cmd
}

func runGenerate(cmd *cobra.Command, flags generateFlags) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	interval := time.Duration(cfg.GenerateIntervalSeconds) * time.Second
	gen := recurring.NewGenerator(a.store, a.bus, logging.New("recurring"), interval)

	if !flags.Watch {
		created, err := gen.GenerateDue(ctx)
		if err != nil {
			return err
		}

		if flags.JSON {
			out := make([]taskJSON, 0, len(created))
			for _, t := range created {
				out = append(out, taskToJSON(t))
			}
			return writeJSON(cmd.OutOrStdout(), out)
		}

		if len(created) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing due.")
			return nil
		}
		for _, t := range created {
			fmt.Fprintf(cmd.OutOrStdout(), "generated %s  %s\n", shortID(t.ID), t.Title)
		}
		return nil
	}

	// Watch mode: sweep until the context is cancelled, echoing generated
	// tasks as they appear on the bus.
	ch := a.bus.Subscribe(events.TopicTask, cfg.EventBufferSize)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gen.Run(ctx)
	})
	g.Go(func() error {
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return nil
				}
				if generated, isGen := ev.(events.TaskGeneratedEvent); isGen {
					fmt.Fprintf(cmd.OutOrStdout(), "generated %s\n", generated.ID)
				}
			case <-ctx.Done():
				return nil
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
