package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cpaika/depflow/internal/engine"
	"github.com/cpaika/depflow/internal/events"
)

// newStatusCmd creates the "depflow status" command.
func newStatusCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status <task-id> <status>",
		Short: "Move a task to a new status",
		Long: `Move a task to a new status, subject to the workflow rules. Finishing or
cancelling a task re-evaluates everything it was holding up and reports
what came free. Leaving Blocked requires every prerequisite to be
finished; cancelling is always allowed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, args, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the updated task as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, args []string, jsonOut bool) error {
	ctx := cmd.Context()

	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	next, err := parseStatusArg(args[1])
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// Watch for knock-on changes caused by this transition.
	ch := a.bus.Subscribe(events.TopicTask, cfg.EventBufferSize)

	updated, err := a.coord.SetStatus(ctx, id, next)
	if err != nil {
		var unmet *engine.UnmetDependenciesError
		if errors.As(err, &unmet) {
			return fmt.Errorf("cannot move %s to %s: waiting on %s",
				shortID(id), next, describeUnmet(ctx, a, unmet.Unmet))
		}
		return err
	}

	if jsonOut {
		return writeJSON(cmd.OutOrStdout(), taskToJSON(updated))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s -> %s\n", shortID(id), updated.Status)

	// Publishing happens inside SetStatus, so the buffer already holds
	// everything this call produced.
	for _, freedID := range drainUnblocked(ch) {
		t, err := a.store.GetTask(ctx, freedID)
		if err != nil {
			fmt.Fprintf(out, "unblocked %s\n", shortID(freedID))
			continue
		}
		fmt.Fprintf(out, "unblocked %s  %s\n", shortID(freedID), t.Title)
	}
	return nil
}

// drainUnblocked empties the subscription buffer and collects the tasks
// freed by the transition.
func drainUnblocked(ch <-chan events.Event) []uuid.UUID {
	var freed []uuid.UUID
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return freed
			}
			if unblocked, isUnblock := ev.(events.TaskUnblockedEvent); isUnblock {
				freed = append(freed, unblocked.ID)
			}
		default:
			return freed
		}
	}
}

// describeUnmet renders the unmet prerequisite list with titles when the
// tasks can be read back.
func describeUnmet(ctx context.Context, a *app, ids []uuid.UUID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		t, err := a.store.GetTask(ctx, id)
		if err != nil {
			parts = append(parts, shortID(id))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", shortID(id), t.Title))
	}
	return strings.Join(parts, ", ")
}
