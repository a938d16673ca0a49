package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cpaika/depflow/internal/task"
)

// newParentCmd creates the "depflow parent" command.
func newParentCmd() *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "parent <task-id> [parent-id]",
		Short: "Link a task under a parent, or unlink it with --clear",
		Long: `Link a task under a parent. The link is a finish-to-start edge from the
parent, so the child waits for the parent to finish. Relinking replaces
the previous parent edge; --clear removes it.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParent(cmd, args, clear)
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "Remove the task's parent link")

	return cmd
}

func runParent(cmd *cobra.Command, args []string, clear bool) error {
	ctx := cmd.Context()

	childID, err := parseID(args[0])
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()

	if clear {
		if len(args) != 1 {
			return fmt.Errorf("--clear takes only the task id")
		}
		if err := a.coord.ClearParent(ctx, childID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Cleared parent of %s\n", shortID(childID))
		return nil
	}

	if len(args) != 2 {
		return fmt.Errorf("expected a parent id (or --clear)")
	}
	parentID, err := parseID(args[1])
	if err != nil {
		return err
	}

	if _, err := a.coord.SetParent(ctx, childID, parentID); err != nil {
		return err
	}
	fmt.Fprintf(out, "Linked %s under %s\n", shortID(childID), shortID(parentID))

	child, err := a.store.GetTask(ctx, childID)
	if err == nil && child.Status == task.StatusBlocked {
		fmt.Fprintf(out, "task %s is now blocked\n", shortID(childID))
	}
	return nil
}
