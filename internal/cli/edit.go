package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// editFlags holds the flag values for the edit command.
type editFlags struct {
	Title       string
	Description string
	Priority    string
	Due         string
	Scheduled   string
	Estimate    float64
	Actual      float64
	Meta        []string
	JSON        bool
}

// newEditCmd creates the "depflow edit" command.
func newEditCmd() *cobra.Command {
	var flags editFlags

	cmd := &cobra.Command{
		Use:   "edit <task-id>",
		Short: "Edit a task's fields",
		Long: `Edit a task's fields without touching its status. Date flags accept
"none" to clear a previously set date. Use the status command to move a
task through the workflow, and the parent command to relink it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.Title, "title", "", "New title")
	cmd.Flags().StringVarP(&flags.Description, "description", "d", "", "New description")
	cmd.Flags().StringVarP(&flags.Priority, "priority", "p", "", "Priority: low, medium, high, critical")
	cmd.Flags().StringVar(&flags.Due, "due", "", "Due date (YYYY-MM-DD, or none to clear)")
	cmd.Flags().StringVar(&flags.Scheduled, "scheduled", "", "Scheduled date (YYYY-MM-DD, or none to clear)")
	cmd.Flags().Float64Var(&flags.Estimate, "estimate", 0, "Estimated hours")
	cmd.Flags().Float64Var(&flags.Actual, "actual", 0, "Actual hours spent")
	cmd.Flags().StringArrayVar(&flags.Meta, "meta", nil, "Metadata entry as key=value (repeatable)")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output the updated task as JSON")

	return cmd
}

func runEdit(cmd *cobra.Command, arg string, flags editFlags) error {
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

	current, err := a.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	updated := current.Clone()

	changed := cmd.Flags().Changed
	if changed("title") {
		updated.Title = flags.Title
	}
	if changed("description") {
		updated.Description = flags.Description
	}
	if changed("priority") {
		p, err := parsePriorityArg(flags.Priority)
		if err != nil {
			return err
		}
		updated.Priority = p
	}
	if changed("due") {
		if flags.Due == "none" {
			updated.DueDate = nil
		} else {
			due, err := parseDate(flags.Due)
			if err != nil {
				return err
			}
			updated.DueDate = &due
		}
	}
	if changed("scheduled") {
		if flags.Scheduled == "none" {
			updated.ScheduledDate = nil
		} else {
			scheduled, err := parseDate(flags.Scheduled)
			if err != nil {
				return err
			}
			updated.ScheduledDate = &scheduled
		}
	}
	if changed("estimate") {
		updated.EstimatedHours = flags.Estimate
	}
	if changed("actual") {
		updated.ActualHours = flags.Actual
	}
	if changed("meta") {
		meta, err := parseMeta(flags.Meta)
		if err != nil {
			return err
		}
		for k, v := range meta {
			updated.Metadata[k] = v
		}
	}

	result, err := a.coord.UpdateTask(ctx, updated)
	if err != nil {
		return err
	}

	if flags.JSON {
		return writeJSON(cmd.OutOrStdout(), taskToJSON(result))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated task %s\n", shortID(result.ID))
	return nil
}
