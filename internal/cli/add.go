package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cpaika/depflow/internal/task"
)

// addFlags holds the flag values for the add command.
type addFlags struct {
	Description string
	Priority    string
	Due         string
	Scheduled   string
	Estimate    float64
	Parent      string
	Goal        string
	Resource    string
	Meta        []string
	JSON        bool
}

// newAddCmd creates the "depflow add" command.
func newAddCmd() *cobra.Command {
	var flags addFlags

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Long: `Create a task in Todo status. With --parent the new task is linked under
the given task and stays blocked until that task finishes.`,
		Example: `  # A plain task
  depflow add "Write the launch announcement"

  # A high-priority task due at the end of the month
  depflow add "Ship v2 API" -p high --due 2026-08-31

  # A subtask of an existing task
  depflow add "Draft schema migration" --parent 3f8a...`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd, args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Description, "description", "d", "", "Task description")
	cmd.Flags().StringVarP(&flags.Priority, "priority", "p", "", "Priority: low, medium, high, critical")
	cmd.Flags().StringVar(&flags.Due, "due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flags.Scheduled, "scheduled", "", "Scheduled date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&flags.Estimate, "estimate", 0, "Estimated hours")
	cmd.Flags().StringVar(&flags.Parent, "parent", "", "Parent task id")
	cmd.Flags().StringVar(&flags.Goal, "goal", "", "Goal id this task contributes to")
	cmd.Flags().StringVar(&flags.Resource, "resource", "", "Assigned resource id")
	cmd.Flags().StringArrayVar(&flags.Meta, "meta", nil, "Metadata entry as key=value (repeatable)")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output the created task as JSON")

	return cmd
}

// runAdd validates the flags, persists the new task, and links the parent
// edge when one was requested.
func runAdd(cmd *cobra.Command, args []string, flags addFlags) error {
	ctx := cmd.Context()

	t := task.New(strings.Join(args, " "), flags.Description)

	if flags.Priority != "" {
		p, err := parsePriorityArg(flags.Priority)
		if err != nil {
			return err
		}
		t.Priority = p
	}
	if flags.Due != "" {
		due, err := parseDate(flags.Due)
		if err != nil {
			return err
		}
		t.DueDate = &due
	}
	if flags.Scheduled != "" {
		scheduled, err := parseDate(flags.Scheduled)
		if err != nil {
			return err
		}
		t.ScheduledDate = &scheduled
	}
	if flags.Goal != "" {
		goalID, err := parseID(flags.Goal)
		if err != nil {
			return err
		}
		t.GoalID = &goalID
	}
	if flags.Resource != "" {
		resourceID, err := parseID(flags.Resource)
		if err != nil {
			return err
		}
		t.AssignedResourceID = &resourceID
	}
	meta, err := parseMeta(flags.Meta)
	if err != nil {
		return err
	}
	for k, v := range meta {
		t.Metadata[k] = v
	}
	t.EstimatedHours = flags.Estimate

	if err := task.Validate(t); err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.SaveTask(ctx, t); err != nil {
		return fmt.Errorf("saving task: %w", err)
	}

	if flags.Parent != "" {
		parentID, err := parseID(flags.Parent)
		if err != nil {
			return err
		}
		if _, err := a.coord.SetParent(ctx, t.ID, parentID); err != nil {
			return fmt.Errorf("linking parent: %w", err)
		}
		// Linking may have blocked the new task; show the final state.
		t, err = a.store.GetTask(ctx, t.ID)
		if err != nil {
			return err
		}
	}

	if flags.JSON {
		return writeJSON(cmd.OutOrStdout(), taskToJSON(t))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created task %s [%s]\n", t.ID, t.Status)
	return nil
}
