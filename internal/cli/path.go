package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// pathOutput is the structured output for the critical-path command.
type pathOutput struct {
	Tasks      []taskJSON `json:"tasks"`
	TotalHours float64    `json:"total_hours"`
}

// newCriticalPathCmd creates the "depflow critical-path" command.
func newCriticalPathCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "critical-path",
		Short: "Show the dependency chain with the largest total estimate",
		Long: `Show the dependency chain whose estimated hours add up to the largest
total. That chain bounds the schedule: shortening anything else cannot
finish the project sooner.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCriticalPath(cmd, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the path as JSON")

	return cmd
}

func runCriticalPath(cmd *cobra.Command, jsonOut bool) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ids, err := a.coord.CriticalPath(ctx)
	if err != nil {
		return err
	}

	var total float64
	tasks := make([]taskJSON, 0, len(ids))
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		t, err := a.store.GetTask(ctx, id)
		if err != nil {
			return err
		}
		total += t.EstimatedHours
		tasks = append(tasks, taskToJSON(t))
		lines = append(lines, fmt.Sprintf("%s  %-10s  %.1fh  %s", shortID(id), t.Status, t.EstimatedHours, t.Title))
	}

	if jsonOut {
		return writeJSON(cmd.OutOrStdout(), pathOutput{Tasks: tasks, TotalHours: total})
	}

	out := cmd.OutOrStdout()
	if len(lines) == 0 {
		fmt.Fprintln(out, "No tasks.")
		return nil
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "Total: %.1fh\n", total)
	return nil
}
