// Package cli implements the depflow command line interface.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cpaika/depflow/internal/config"
	"github.com/cpaika/depflow/internal/logging"
)

// Global flag values accessible to all subcommands.
var (
	flagVerbose  bool
	flagQuiet    bool
	flagJSONLogs bool
	flagConfig   string
	flagDB       string
)

// cfg holds the merged configuration, populated by PersistentPreRunE before
// any subcommand runs.
var cfg *config.Config

// newRootCmd builds the full command tree. A fresh tree re-applies every
// flag default, so repeated executions in one process start clean.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "depflow",
		Short: "Task tracker with a dependency-aware status workflow",
		Long: `Depflow tracks tasks whose statuses answer to a dependency graph.
Creating a finish-to-start edge blocks the downstream task until its
prerequisites finish, finishing a task frees whatever it was holding up,
and recurring templates stamp out new tasks on a schedule.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Check env vars for flags not explicitly set on command line.
			if !cmd.Flags().Changed("verbose") && os.Getenv("DEPFLOW_VERBOSE") != "" {
				flagVerbose = true
			}
			if !cmd.Flags().Changed("quiet") && os.Getenv("DEPFLOW_QUIET") != "" {
				flagQuiet = true
			}

			// Initialize logging.
			jsonFormat := flagJSONLogs || os.Getenv("DEPFLOW_LOG_FORMAT") == "json"
			logging.Setup(flagVerbose, flagQuiet, jsonFormat)

			// Load configuration.
			var err error
			if flagConfig != "" {
				cfg, err = config.Load("", flagConfig)
			} else {
				cfg, err = config.LoadDefault()
			}
			if err != nil {
				return err
			}

			// The configured level applies only when no flag forced one.
			if !flagVerbose && !flagQuiet && cfg.LogLevel != "" {
				if err := logging.SetLevel(cfg.LogLevel); err != nil {
					return err
				}
			}

			// --db overrides the configured database location.
			if flagDB != "" {
				cfg.DatabasePath = flagDB
			}

			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose (debug) output (env: DEPFLOW_VERBOSE)")
	root.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress all output except errors (env: DEPFLOW_QUIET)")
	root.PersistentFlags().BoolVar(&flagJSONLogs, "log-json", false, "Emit logs as JSON (env: DEPFLOW_LOG_FORMAT=json)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a config.json overriding the conventional files")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "Path to the SQLite database (overrides config)")

	root.AddCommand(
		newAddCmd(),
		newListCmd(),
		newShowCmd(),
		newStatusCmd(),
		newEditCmd(),
		newRmCmd(),
		newDepCmd(),
		newParentCmd(),
		newOrderCmd(),
		newCriticalPathCmd(),
		newReconcileCmd(),
		newTemplateCmd(),
		newGenerateCmd(),
	)

	return root
}

// Execute runs the command tree under the given context and returns the
// process exit code.
func Execute(ctx context.Context) int {
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
