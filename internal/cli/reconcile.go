package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cpaika/depflow/internal/events"
)

// newReconcileCmd creates the "depflow reconcile" command.
func newReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair statuses that drifted from the dependency graph",
		Long: `Repair statuses that drifted from the dependency graph: Blocked tasks
whose prerequisites have all finished return to Todo, and Todo tasks
gated by an unfinished prerequisite become Blocked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd)
		},
	}
	return cmd
}

func runReconcile(cmd *cobra.Command) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ch := a.bus.Subscribe(events.TopicTask, cfg.EventBufferSize)

	if err := a.coord.Reconcile(ctx); err != nil {
		return err
	}

	repaired := 0
drain:
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				break drain
			}
			if _, isChange := ev.(events.StatusChangedEvent); isChange {
				repaired++
			}
		default:
			break drain
		}
	}

	if repaired == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Everything consistent.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Repaired %d task(s).\n", repaired)
	return nil
}
