package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newOrderCmd creates the "depflow order" command.
func newOrderCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Print every task in a dependency-respecting order",
		Long: `Print every task in an order that puts each prerequisite before the
tasks waiting on it. All edge kinds participate in the ordering.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrder(cmd, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output ordered tasks as JSON")

	return cmd
}

func runOrder(cmd *cobra.Command, jsonOut bool) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ids, err := a.coord.Order(ctx)
	if err != nil {
		return err
	}

	if jsonOut {
		out := make([]taskJSON, 0, len(ids))
		for _, id := range ids {
			t, err := a.store.GetTask(ctx, id)
			if err != nil {
				return err
			}
			out = append(out, taskToJSON(t))
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}

	if len(ids) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
		return nil
	}
	for i, id := range ids {
		t, err := a.store.GetTask(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%2d. %s  %-10s  %s\n", i+1, shortID(id), t.Status, t.Title)
	}
	return nil
}
