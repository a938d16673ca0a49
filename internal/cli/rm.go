package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newRmCmd creates the "depflow rm" command.
func newRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <task-id>",
		Short: "Delete a task and its dependency edges",
		Long: `Delete a task. Edges touching it are removed with it, and tasks that
were only blocked by the deleted task return to Todo.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRm(cmd, args[0])
		},
	}
	return cmd
}

func runRm(cmd *cobra.Command, arg string) error {
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

	if err := a.coord.DeleteTask(ctx, id); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", shortID(id))
	return nil
}
