package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cpaika/depflow/internal/task"
)

// showOutput is the structured output for the show command: the task plus
// its place in the dependency graph.
type showOutput struct {
	Task         taskJSON  `json:"task"`
	Dependencies []depJSON `json:"dependencies"`
	Dependents   []depJSON `json:"dependents"`
	CanProceed   bool      `json:"can_proceed"`
}

// newShowCmd creates the "depflow show" command.
func newShowCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task with its dependencies and dependents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0], jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	return cmd
}

func runShow(cmd *cobra.Command, arg string, jsonOut bool) error {
	ctx := cmd.Context()

	id, err := parseID(arg)
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	incoming := a.coord.Dependencies(id)
	outgoing := a.coord.Dependents(id)
	canProceed, err := a.coord.CanProceed(ctx, id)
	if err != nil {
		return err
	}

	if jsonOut {
		out := showOutput{
			Task:         taskToJSON(t),
			Dependencies: make([]depJSON, 0, len(incoming)),
			Dependents:   make([]depJSON, 0, len(outgoing)),
			CanProceed:   canProceed,
		}
		for _, dep := range incoming {
			out.Dependencies = append(out.Dependencies, depToJSON(dep))
		}
		for _, dep := range outgoing {
			out.Dependents = append(out.Dependents, depToJSON(dep))
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s\n", t.ID, t.Title)
	fmt.Fprintf(out, "Status:    %s\n", t.Status)
	fmt.Fprintf(out, "Priority:  %s\n", t.Priority)
	if t.Description != "" {
		fmt.Fprintf(out, "About:     %s\n", t.Description)
	}
	if t.ParentTaskID != nil {
		fmt.Fprintf(out, "Parent:    %s\n", shortID(*t.ParentTaskID))
	}
	if t.ScheduledDate != nil {
		fmt.Fprintf(out, "Scheduled: %s\n", t.ScheduledDate.Format(dateLayout))
	}
	if t.DueDate != nil {
		fmt.Fprintf(out, "Due:       %s\n", t.DueDate.Format(dateLayout))
	}
	if t.EstimatedHours > 0 {
		fmt.Fprintf(out, "Estimate:  %.1fh\n", t.EstimatedHours)
	}
	if t.ActualHours > 0 {
		fmt.Fprintf(out, "Actual:    %.1fh\n", t.ActualHours)
	}

	if len(incoming) > 0 {
		fmt.Fprintln(out, "Waits on:")
		for _, dep := range incoming {
			fmt.Fprintf(out, "  %s\n", describeEndpoint(ctx, a, dep.FromTaskID, dep.Kind.String()))
		}
	}
	if len(outgoing) > 0 {
		fmt.Fprintln(out, "Holds up:")
		for _, dep := range outgoing {
			fmt.Fprintf(out, "  %s\n", describeEndpoint(ctx, a, dep.ToTaskID, dep.Kind.String()))
		}
	}
	if t.Status == task.StatusBlocked && canProceed {
		fmt.Fprintln(out, "All prerequisites finished; this task can be resumed.")
	}
	return nil
}

// describeEndpoint renders the far end of an edge with its title and status
// when the task still exists, falling back to the bare id.
func describeEndpoint(ctx context.Context, a *app, id uuid.UUID, kind string) string {
	t, err := a.store.GetTask(ctx, id)
	if err != nil {
		return fmt.Sprintf("%s  (%s)", shortID(id), kind)
	}
	return fmt.Sprintf("%s  %-10s  %s  (%s)", shortID(t.ID), t.Status, t.Title, kind)
}
