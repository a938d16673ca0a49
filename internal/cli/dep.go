package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cpaika/depflow/internal/graph"
	"github.com/cpaika/depflow/internal/task"
)

// newDepCmd creates the "depflow dep" command group.
func newDepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage dependency edges between tasks",
		Long: `Manage dependency edges. An edge runs from a prerequisite to the task
that waits on it. Finish-to-start edges block the waiting task until the
prerequisite finishes; the other kinds are recorded for ordering but do
not block.`,
	}

	cmd.AddCommand(newDepAddCmd(), newDepRmCmd(), newDepListCmd())
	return cmd
}

// newDepAddCmd creates the "depflow dep add" command.
func newDepAddCmd() *cobra.Command {
	var kindArg string

	cmd := &cobra.Command{
		Use:   "add <prerequisite-id> <dependent-id>",
		Short: "Add a dependency edge",
		Example: `  # B waits until A finishes
  depflow dep add <A> <B>

  # Record a start-to-start relation (no blocking)
  depflow dep add <A> <B> --kind ss`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDepAdd(cmd, args, kindArg)
		},
	}

	cmd.Flags().StringVarP(&kindArg, "kind", "k", "finish-to-start", "Edge kind: finish-to-start, start-to-start, finish-to-finish, start-to-finish")

	return cmd
}

func runDepAdd(cmd *cobra.Command, args []string, kindArg string) error {
	ctx := cmd.Context()

	from, err := parseID(args[0])
	if err != nil {
		return err
	}
	to, err := parseID(args[1])
	if err != nil {
		return err
	}
	kind, err := parseKindArg(kindArg)
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	dep, err := a.coord.CreateDependency(ctx, from, to, kind)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Added dependency %s: %s -> %s (%s)\n", shortID(dep.ID), shortID(from), shortID(to), dep.Kind)

	dependent, err := a.store.GetTask(ctx, to)
	if err == nil && dependent.Status == task.StatusBlocked {
		fmt.Fprintf(out, "task %s is now blocked\n", shortID(to))
	}
	return nil
}

// newDepRmCmd creates the "depflow dep rm" command.
func newDepRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <prerequisite-id> <dependent-id>",
		Short: "Remove the dependency edge between two tasks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDepRm(cmd, args)
		},
	}
	return cmd
}

func runDepRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	from, err := parseID(args[0])
	if err != nil {
		return err
	}
	to, err := parseID(args[1])
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var edge *graph.Dependency
	for _, dep := range a.coord.Dependencies(to) {
		if dep.FromTaskID == from {
			edge = dep
			break
		}
	}
	if edge == nil {
		return fmt.Errorf("no dependency from %s to %s", shortID(from), shortID(to))
	}

	if err := a.coord.RemoveDependency(ctx, edge.ID); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Removed dependency %s\n", shortID(edge.ID))

	freed, err := a.store.GetTask(ctx, to)
	if err == nil && freed.Status == task.StatusTodo {
		fmt.Fprintf(out, "task %s is no longer blocked\n", shortID(to))
	}
	return nil
}

// newDepListCmd creates the "depflow dep list" command.
func newDepListCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list [task-id]",
		Short: "List dependency edges, all of them or one task's",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDepList(cmd, args, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output edges as JSON")

	return cmd
}

func runDepList(cmd *cobra.Command, args []string, jsonOut bool) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var edges []*graph.Dependency
	if len(args) == 1 {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		edges = append(a.coord.Dependencies(id), a.coord.Dependents(id)...)
	} else {
		edges = a.coord.Edges()
	}

	if jsonOut {
		out := make([]depJSON, 0, len(edges))
		for _, dep := range edges {
			out = append(out, depToJSON(dep))
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}

	if len(edges) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No dependencies.")
		return nil
	}
	for _, dep := range edges {
		fmt.Fprintln(cmd.OutOrStdout(), formatDep(dep))
	}
	return nil
}
