package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cpaika/depflow/internal/graph"
	"github.com/cpaika/depflow/internal/recurring"
	"github.com/cpaika/depflow/internal/task"
)

// dateLayout is the wire format for date arguments and date displays.
const dateLayout = "2006-01-02"

// parseID parses a task, dependency, or template id argument.
func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

// parseDate parses a YYYY-MM-DD argument into a UTC timestamp.
func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

// canonical lowercases an argument and strips separators, so
// "in-progress", "In_Progress", and "InProgress" all compare equal.
func canonical(s string) string {
	return strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
}

// parseStatusArg maps a CLI status argument onto a task status.
func parseStatusArg(s string) (task.Status, error) {
	switch canonical(s) {
	case "todo":
		return task.StatusTodo, nil
	case "inprogress", "doing":
		return task.StatusInProgress, nil
	case "blocked":
		return task.StatusBlocked, nil
	case "review":
		return task.StatusReview, nil
	case "done":
		return task.StatusDone, nil
	case "cancelled", "canceled":
		return task.StatusCancelled, nil
	}
	return "", fmt.Errorf("unknown status %q (todo, in-progress, blocked, review, done, cancelled)", s)
}

// parsePriorityArg maps a CLI priority argument onto a task priority.
func parsePriorityArg(s string) (task.Priority, error) {
	switch canonical(s) {
	case "low":
		return task.PriorityLow, nil
	case "medium":
		return task.PriorityMedium, nil
	case "high":
		return task.PriorityHigh, nil
	case "critical":
		return task.PriorityCritical, nil
	}
	return "", fmt.Errorf("unknown priority %q (low, medium, high, critical)", s)
}

// parseKindArg maps a CLI dependency kind onto an edge kind. The two-letter
// project-scheduling abbreviations are accepted as shorthand.
func parseKindArg(s string) (graph.Kind, error) {
	switch canonical(s) {
	case "finishtostart", "fs":
		return graph.KindFinishToStart, nil
	case "starttostart", "ss":
		return graph.KindStartToStart, nil
	case "finishtofinish", "ff":
		return graph.KindFinishToFinish, nil
	case "starttofinish", "sf":
		return graph.KindStartToFinish, nil
	}
	return "", fmt.Errorf("unknown dependency kind %q (finish-to-start, start-to-start, finish-to-finish, start-to-finish)", s)
}

// parsePatternArg maps a CLI recurrence pattern onto a rule pattern.
func parsePatternArg(s string) (recurring.Pattern, error) {
	switch canonical(s) {
	case "daily":
		return recurring.PatternDaily, nil
	case "weekly":
		return recurring.PatternWeekly, nil
	case "monthly":
		return recurring.PatternMonthly, nil
	case "yearly":
		return recurring.PatternYearly, nil
	case "custom":
		return recurring.PatternCustom, nil
	}
	return "", fmt.Errorf("unknown recurrence pattern %q (daily, weekly, monthly, yearly, custom)", s)
}

// weekdayNames maps three-letter day abbreviations to weekdays.
var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// parseWeekdays parses a comma-separated weekday list such as "mon,wed,fri".
func parseWeekdays(s string) ([]time.Weekday, error) {
	parts := strings.Split(s, ",")
	days := make([]time.Weekday, 0, len(parts))
	for _, part := range parts {
		name := strings.ToLower(strings.TrimSpace(part))
		if len(name) > 3 {
			name = name[:3]
		}
		day, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q (sun, mon, tue, wed, thu, fri, sat)", part)
		}
		days = append(days, day)
	}
	return days, nil
}

// parseMeta parses repeated key=value metadata flags.
func parseMeta(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid metadata %q, want key=value", pair)
		}
		meta[key] = value
	}
	return meta, nil
}

// shortID returns the first eight hex characters of an id for listings.
func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

// writeJSON renders v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// taskJSON is the structured output shape for a task.
type taskJSON struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	Status         string            `json:"status"`
	Priority       string            `json:"priority"`
	ParentTaskID   string            `json:"parent_task_id,omitempty"`
	GoalID         string            `json:"goal_id,omitempty"`
	ResourceID     string            `json:"assigned_resource_id,omitempty"`
	EstimatedHours float64           `json:"estimated_hours,omitempty"`
	ActualHours    float64           `json:"actual_hours,omitempty"`
	ScheduledDate  string            `json:"scheduled_date,omitempty"`
	DueDate        string            `json:"due_date,omitempty"`
	CompletedAt    string            `json:"completed_at,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      string            `json:"created_at"`
	UpdatedAt      string            `json:"updated_at"`
}

// taskToJSON converts a task to its output shape.
func taskToJSON(t *task.Task) taskJSON {
	out := taskJSON{
		ID:             t.ID.String(),
		Title:          t.Title,
		Description:    t.Description,
		Status:         t.Status.String(),
		Priority:       string(t.Priority),
		EstimatedHours: t.EstimatedHours,
		ActualHours:    t.ActualHours,
		CreatedAt:      t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      t.UpdatedAt.Format(time.RFC3339),
	}
	if len(t.Metadata) > 0 {
		out.Metadata = t.Metadata
	}
	if t.ParentTaskID != nil {
		out.ParentTaskID = t.ParentTaskID.String()
	}
	if t.GoalID != nil {
		out.GoalID = t.GoalID.String()
	}
	if t.AssignedResourceID != nil {
		out.ResourceID = t.AssignedResourceID.String()
	}
	if t.ScheduledDate != nil {
		out.ScheduledDate = t.ScheduledDate.Format(dateLayout)
	}
	if t.DueDate != nil {
		out.DueDate = t.DueDate.Format(dateLayout)
	}
	if t.CompletedAt != nil {
		out.CompletedAt = t.CompletedAt.Format(time.RFC3339)
	}
	return out
}

// depJSON is the structured output shape for a dependency edge.
type depJSON struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

// depToJSON converts an edge to its output shape.
func depToJSON(d *graph.Dependency) depJSON {
	return depJSON{
		ID:   d.ID.String(),
		From: d.FromTaskID.String(),
		To:   d.ToTaskID.String(),
		Kind: d.Kind.String(),
	}
}

// formatDep renders an edge as a one-line listing entry.
func formatDep(d *graph.Dependency) string {
	return fmt.Sprintf("%s  %s -> %s  %s", shortID(d.ID), shortID(d.FromTaskID), shortID(d.ToTaskID), d.Kind)
}

// templateJSON is the structured output shape for a recurring template.
type templateJSON struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Pattern        string `json:"pattern"`
	Interval       int    `json:"interval"`
	Active         bool   `json:"active"`
	NextOccurrence string `json:"next_occurrence,omitempty"`
	LastGenerated  string `json:"last_generated,omitempty"`
	Occurrences    int    `json:"occurrences"`
}

// templateToJSON converts a template to its output shape.
func templateToJSON(tpl *recurring.Template) templateJSON {
	out := templateJSON{
		ID:          tpl.ID.String(),
		Title:       tpl.Title,
		Description: tpl.Description,
		Pattern:     tpl.Rule.Pattern.String(),
		Interval:    tpl.Rule.Interval,
		Active:      tpl.Active,
		Occurrences: tpl.Rule.OccurrencesCount,
	}
	if tpl.NextOccurrence != nil {
		out.NextOccurrence = tpl.NextOccurrence.Format(time.RFC3339)
	}
	if tpl.LastGenerated != nil {
		out.LastGenerated = tpl.LastGenerated.Format(time.RFC3339)
	}
	return out
}
