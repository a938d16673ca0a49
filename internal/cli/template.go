package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cpaika/depflow/internal/recurring"
)

// newTemplateCmd creates the "depflow template" command group.
func newTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"tpl"},
		Short:   "Manage recurring task templates",
		Long: `Manage recurring task templates. An active template stamps out a task
instance whenever its next occurrence comes due; run the generate
command to sweep for due templates.`,
	}

	cmd.AddCommand(
		newTemplateAddCmd(),
		newTemplateListCmd(),
		newTemplateRmCmd(),
		newTemplatePauseCmd(),
		newTemplateResumeCmd(),
	)
	return cmd
}

// templateAddFlags holds the flag values for the template add command.
type templateAddFlags struct {
	Description string
	Pattern     string
	Interval    int
	Days        string
	DayOfMonth  int
	Month       int
	End         string
	Max         int
	Priority    string
	Estimate    float64
	Resource    string
	Meta        []string
	JSON        bool
}

// newTemplateAddCmd creates the "depflow template add" command.
func newTemplateAddCmd() *cobra.Command {
	var flags templateAddFlags

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a recurring template",
		Example: `  # Every day
  depflow template add "Standup notes" --pattern daily

  # Monday and Thursday, every week
  depflow template add "Review queue" --pattern weekly --days mon,thu

  # The 1st of every third month, five times in total
  depflow template add "Quarterly report" --pattern monthly --interval 3 --day-of-month 1 --max 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplateAdd(cmd, args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Description, "description", "d", "", "Description for generated tasks")
	cmd.Flags().StringVar(&flags.Pattern, "pattern", "daily", "Recurrence pattern: daily, weekly, monthly, yearly, custom")
	cmd.Flags().IntVar(&flags.Interval, "interval", 1, "Repeat every N units of the pattern (days for custom)")
	cmd.Flags().StringVar(&flags.Days, "days", "", "Weekdays for weekly patterns, e.g. mon,wed,fri")
	cmd.Flags().IntVar(&flags.DayOfMonth, "day-of-month", 0, "Day of month for monthly and yearly patterns")
	cmd.Flags().IntVar(&flags.Month, "month", 0, "Month (1-12) for yearly patterns")
	cmd.Flags().StringVar(&flags.End, "end", "", "Stop generating after this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&flags.Max, "max", 0, "Stop generating after this many occurrences")
	cmd.Flags().StringVarP(&flags.Priority, "priority", "p", "", "Priority for generated tasks")
	cmd.Flags().Float64Var(&flags.Estimate, "estimate", 0, "Estimated hours for generated tasks")
	cmd.Flags().StringVar(&flags.Resource, "resource", "", "Assigned resource id for generated tasks")
	cmd.Flags().StringArrayVar(&flags.Meta, "meta", nil, "Metadata entry as key=value (repeatable)")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output the created template as JSON")

	return cmd
}

func runTemplateAdd(cmd *cobra.Command, args []string, flags templateAddFlags) error {
	ctx := cmd.Context()

	pattern, err := parsePatternArg(flags.Pattern)
	if err != nil {
		return err
	}

	rule := recurring.Rule{Pattern: pattern, Interval: flags.Interval}
	if flags.Days != "" {
		days, err := parseWeekdays(flags.Days)
		if err != nil {
			return err
		}
		rule.DaysOfWeek = days
	}
	if flags.DayOfMonth > 0 {
		day := flags.DayOfMonth
		rule.DayOfMonth = &day
	}
	if flags.Month > 0 {
		month := flags.Month
		rule.MonthOfYear = &month
	}
	if flags.End != "" {
		end, err := parseDate(flags.End)
		if err != nil {
			return err
		}
		rule.EndDate = &end
	}
	if flags.Max > 0 {
		limit := flags.Max
		rule.MaxOccurrences = &limit
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	tpl := recurring.NewTemplate(strings.Join(args, " "), flags.Description, rule)
	if flags.Priority != "" {
		p, err := parsePriorityArg(flags.Priority)
		if err != nil {
			return err
		}
		tpl.Priority = p
	}
	if flags.Resource != "" {
		resourceID, err := parseID(flags.Resource)
		if err != nil {
			return err
		}
		tpl.AssignedResourceID = &resourceID
	}
	meta, err := parseMeta(flags.Meta)
	if err != nil {
		return err
	}
	for k, v := range meta {
		tpl.Metadata[k] = v
	}
	tpl.EstimatedHours = flags.Estimate

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.SaveTemplate(ctx, tpl); err != nil {
		return fmt.Errorf("saving template: %w", err)
	}

	if flags.JSON {
		return writeJSON(cmd.OutOrStdout(), templateToJSON(tpl))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created template %s\n", tpl.ID)
	return nil
}

// newTemplateListCmd creates the "depflow template list" command.
func newTemplateListCmd() *cobra.Command {
	var all, jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recurring templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplateList(cmd, all, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include paused and exhausted templates")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output templates as JSON")

	return cmd
}

func runTemplateList(cmd *cobra.Command, all, jsonOut bool) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	templates, err := a.store.ListTemplates(ctx, !all)
	if err != nil {
		return fmt.Errorf("listing templates: %w", err)
	}

	if jsonOut {
		out := make([]templateJSON, 0, len(templates))
		for _, tpl := range templates {
			out = append(out, templateToJSON(tpl))
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}

	if len(templates) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No templates.")
		return nil
	}
	for _, tpl := range templates {
		line := fmt.Sprintf("%s  %-8s x%-3d  %s", shortID(tpl.ID), tpl.Rule.Pattern, tpl.Rule.Interval, tpl.Title)
		if tpl.NextOccurrence != nil {
			line += fmt.Sprintf("  (next %s)", tpl.NextOccurrence.Format(dateLayout))
		}
		if !tpl.Active {
			line += "  paused"
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

// newTemplateRmCmd creates the "depflow template rm" command.
func newTemplateRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <template-id>",
		Short: "Delete a recurring template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplateRm(cmd, args[0])
		},
	}
	return cmd
}

func runTemplateRm(cmd *cobra.Command, arg string) error {
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

	if err := a.store.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted template %s\n", shortID(id))
	return nil
}

// newTemplatePauseCmd creates the "depflow template pause" command.
func newTemplatePauseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pause <template-id>",
		Short: "Stop a template from generating tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplateToggle(cmd, args[0], false)
		},
	}
	return cmd
}

// newTemplateResumeCmd creates the "depflow template resume" command.
func newTemplateResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <template-id>",
		Short: "Reactivate a paused template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplateToggle(cmd, args[0], true)
		},
	}
	return cmd
}

func runTemplateToggle(cmd *cobra.Command, arg string, active bool) error {
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

	tpl, err := a.store.GetTemplate(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if active {
		tpl.Reactivate(now)
	} else {
		tpl.Deactivate(now)
	}
	if err := a.store.SaveTemplate(ctx, tpl); err != nil {
		return fmt.Errorf("saving template: %w", err)
	}

	if active {
		fmt.Fprintf(cmd.OutOrStdout(), "Resumed template %s\n", shortID(id))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Paused template %s\n", shortID(id))
	}
	return nil
}
