package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cpaika/depflow/internal/store"
)

// listFlags holds the flag values for the list command.
type listFlags struct {
	Status   string
	Goal     string
	Resource string
	Overdue  bool
	Limit    int
	JSON     bool
}

// newListCmd creates the "depflow list" command.
func newListCmd() *cobra.Command {
	var flags listFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally filtered",
		Example: `  # Everything, newest first
  depflow list

  # Only blocked tasks
  depflow list --status blocked

  # Unfinished tasks past their due date
  depflow list --overdue`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Status, "status", "s", "", "Filter by status")
	cmd.Flags().StringVar(&flags.Goal, "goal", "", "Filter by goal id")
	cmd.Flags().StringVar(&flags.Resource, "resource", "", "Filter by assigned resource id")
	cmd.Flags().BoolVar(&flags.Overdue, "overdue", false, "Only unfinished tasks past their due date")
	cmd.Flags().IntVar(&flags.Limit, "limit", 0, "Maximum number of tasks (0 = no limit)")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output tasks as JSON")

	return cmd
}

func runList(cmd *cobra.Command, flags listFlags) error {
	ctx := cmd.Context()

	filters := store.Filters{Overdue: flags.Overdue, Limit: flags.Limit}
	if flags.Status != "" {
		st, err := parseStatusArg(flags.Status)
		if err != nil {
			return err
		}
		filters.Status = &st
	}
	if flags.Goal != "" {
		goalID, err := parseID(flags.Goal)
		if err != nil {
			return err
		}
		filters.GoalID = &goalID
	}
	if flags.Resource != "" {
		resourceID, err := parseID(flags.Resource)
		if err != nil {
			return err
		}
		filters.AssignedResourceID = &resourceID
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	tasks, err := a.store.ListTasks(ctx, filters)
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}

	if flags.JSON {
		out := make([]taskJSON, 0, len(tasks))
		for _, t := range tasks {
			out = append(out, taskToJSON(t))
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}

	if len(tasks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
		return nil
	}

	now := time.Now().UTC()
	for _, t := range tasks {
		line := fmt.Sprintf("%s  %-10s  %-8s  %s", shortID(t.ID), t.Status, t.Priority, t.Title)
		if t.DueDate != nil {
			line += fmt.Sprintf("  (due %s)", t.DueDate.Format(dateLayout))
		}
		if t.Overdue(now) {
			line += "  OVERDUE"
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
