// Package recurring implements templates that spawn task instances on a
// calendar schedule. Schedules are expressed as interval arithmetic over
// days, weeks, months, and years rather than cron expressions, with
// month-length and leap-year clamping.
package recurring

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cpaika/depflow/internal/task"
)

// Pattern identifies the base unit of a recurrence rule.
type Pattern string

const (
	PatternDaily   Pattern = "Daily"
	PatternWeekly  Pattern = "Weekly"
	PatternMonthly Pattern = "Monthly"
	PatternYearly  Pattern = "Yearly"
	PatternCustom  Pattern = "Custom"
)

// ParsePattern converts a string to a Pattern.
func ParsePattern(s string) (Pattern, error) {
	switch p := Pattern(s); p {
	case PatternDaily, PatternWeekly, PatternMonthly, PatternYearly, PatternCustom:
		return p, nil
	default:
		return "", fmt.Errorf("unknown recurrence pattern %q", s)
	}
}

// Valid reports whether p is a known pattern.
func (p Pattern) Valid() bool {
	switch p {
	case PatternDaily, PatternWeekly, PatternMonthly, PatternYearly, PatternCustom:
		return true
	}
	return false
}

func (p Pattern) String() string { return string(p) }

// Rule describes how occurrences repeat.
//
// Interval scales the pattern: every N days, every N weeks, and so on.
// Custom treats Interval as a number of days. DaysOfWeek restricts weekly
// occurrences; DayOfMonth and MonthOfYear pin monthly and yearly occurrences,
// clamped to the target month's length.
type Rule struct {
	Pattern          Pattern        `json:"pattern"`
	Interval         int            `json:"interval"`
	DaysOfWeek       []time.Weekday `json:"days_of_week,omitempty"`
	DayOfMonth       *int           `json:"day_of_month,omitempty"`
	MonthOfYear      *int           `json:"month_of_year,omitempty"`
	EndDate          *time.Time     `json:"end_date,omitempty"`
	MaxOccurrences   *int           `json:"max_occurrences,omitempty"`
	OccurrencesCount int            `json:"occurrences_count"`
}

// Validate checks that the rule is well formed.
func (r Rule) Validate() error {
	if !r.Pattern.Valid() {
		return fmt.Errorf("unknown recurrence pattern %q", r.Pattern)
	}
	if r.Interval < 1 {
		return fmt.Errorf("recurrence interval must be at least 1, got %d", r.Interval)
	}
	if r.DayOfMonth != nil && (*r.DayOfMonth < 1 || *r.DayOfMonth > 31) {
		return fmt.Errorf("day of month must be between 1 and 31, got %d", *r.DayOfMonth)
	}
	if r.MonthOfYear != nil && (*r.MonthOfYear < 1 || *r.MonthOfYear > 12) {
		return fmt.Errorf("month of year must be between 1 and 12, got %d", *r.MonthOfYear)
	}
	return nil
}

// NextAfter computes the occurrence that follows base.
//
// Month and year steps are applied one unit at a time, clamping the day to
// the target month's length at every step. Stepping Jan 31 by two months
// therefore lands on Mar 29 in a leap year (31 -> Feb 29 -> Mar 29), not
// Mar 31.
func (r Rule) NextAfter(base time.Time) time.Time {
	switch r.Pattern {
	case PatternDaily:
		return base.AddDate(0, 0, r.Interval)
	case PatternWeekly:
		next := base.AddDate(0, 0, 7*r.Interval)
		if len(r.DaysOfWeek) > 0 {
			for !r.matchesWeekday(next.Weekday()) {
				next = next.AddDate(0, 0, 1)
			}
		}
		return next
	case PatternMonthly:
		next := base
		for i := 0; i < r.Interval; i++ {
			next = addMonths(next, 1)
		}
		if r.DayOfMonth != nil {
			next = setDayOfMonth(next, *r.DayOfMonth)
		}
		return next
	case PatternYearly:
		next := base
		for i := 0; i < r.Interval; i++ {
			next = addYears(next, 1)
		}
		if r.MonthOfYear != nil {
			next = setMonth(next, time.Month(*r.MonthOfYear))
		}
		if r.DayOfMonth != nil {
			next = setDayOfMonth(next, *r.DayOfMonth)
		}
		return next
	default:
		// Custom patterns treat the interval as days
		return base.AddDate(0, 0, r.Interval)
	}
}

func (r Rule) matchesWeekday(day time.Weekday) bool {
	for _, d := range r.DaysOfWeek {
		if d == day {
			return true
		}
	}
	return false
}

// Template is a recurring task definition. Each generation stamps out a new
// Todo task carrying the template's fields and advances the schedule.
type Template struct {
	ID                 uuid.UUID
	Title              string
	Description        string
	Priority           task.Priority
	Metadata           map[string]string
	AssignedResourceID *uuid.UUID
	EstimatedHours     float64
	Rule               Rule
	Active             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
	LastGenerated      *time.Time
	NextOccurrence     *time.Time
}

// NewTemplate creates a template with the given rule. The template starts
// active unless the rule's end date is already in the past, and its first
// occurrence is due immediately.
func NewTemplate(title, description string, rule Rule) *Template {
	now := time.Now().UTC()

	active := true
	if rule.EndDate != nil && dateOf(now).After(dateOf(*rule.EndDate)) {
		active = false
	}

	tpl := &Template{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Priority:    task.PriorityMedium,
		Metadata:    make(map[string]string),
		Rule:        rule,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if tpl.Active {
		next := now
		tpl.NextOccurrence = &next
	}
	return tpl
}

// ShouldGenerate reports whether the template is due at the given time.
func (t *Template) ShouldGenerate(now time.Time) bool {
	if !t.Active {
		return false
	}
	if t.Rule.MaxOccurrences != nil && t.Rule.OccurrencesCount >= *t.Rule.MaxOccurrences {
		return false
	}
	if t.NextOccurrence == nil {
		return true
	}
	return !t.NextOccurrence.After(now)
}

// Generate stamps out the next task instance and advances the schedule.
//
// Returns nil without producing a task when the template is inactive or has
// exhausted its occurrence limit or end date; exhaustion also deactivates
// the template so it drops out of future generation sweeps.
func (t *Template) Generate(now time.Time) *task.Task {
	if !t.Active {
		return nil
	}
	if t.Rule.MaxOccurrences != nil && t.Rule.OccurrencesCount >= *t.Rule.MaxOccurrences {
		t.Active = false
		t.UpdatedAt = now
		return nil
	}
	if t.Rule.EndDate != nil && dateOf(now).After(dateOf(*t.Rule.EndDate)) {
		t.Active = false
		t.UpdatedAt = now
		return nil
	}

	instance := task.New(t.Title, t.Description)
	instance.Priority = t.Priority
	for k, v := range t.Metadata {
		instance.Metadata[k] = v
	}
	if t.AssignedResourceID != nil {
		id := *t.AssignedResourceID
		instance.AssignedResourceID = &id
	}
	instance.EstimatedHours = t.EstimatedHours
	if t.NextOccurrence != nil {
		scheduled := *t.NextOccurrence
		instance.ScheduledDate = &scheduled
	}

	generated := now
	t.LastGenerated = &generated
	t.Rule.OccurrencesCount++
	next := t.nextFrom(now)
	t.NextOccurrence = &next
	t.UpdatedAt = now

	return instance
}

// Deactivate stops future generation.
func (t *Template) Deactivate(now time.Time) {
	t.Active = false
	t.UpdatedAt = now
}

// Reactivate resumes generation, rescheduling from the last generation time.
func (t *Template) Reactivate(now time.Time) {
	t.Active = true
	next := t.nextFrom(now)
	t.NextOccurrence = &next
	t.UpdatedAt = now
}

func (t *Template) nextFrom(now time.Time) time.Time {
	base := now
	if t.LastGenerated != nil {
		base = *t.LastGenerated
	}
	return t.Rule.NextAfter(base)
}

// Clone returns a deep copy of the template.
func (t *Template) Clone() *Template {
	c := *t
	if t.Metadata != nil {
		c.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	c.AssignedResourceID = cloneUUID(t.AssignedResourceID)
	c.LastGenerated = cloneTime(t.LastGenerated)
	c.NextOccurrence = cloneTime(t.NextOccurrence)
	if t.Rule.DaysOfWeek != nil {
		c.Rule.DaysOfWeek = append([]time.Weekday(nil), t.Rule.DaysOfWeek...)
	}
	c.Rule.DayOfMonth = cloneInt(t.Rule.DayOfMonth)
	c.Rule.MonthOfYear = cloneInt(t.Rule.MonthOfYear)
	c.Rule.EndDate = cloneTime(t.Rule.EndDate)
	c.Rule.MaxOccurrences = cloneInt(t.Rule.MaxOccurrences)
	return &c
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneInt(n *int) *int {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}

// addMonths advances by whole months, clamping the day to the target
// month's length (Jan 31 + 1 month = Feb 28 or 29).
func addMonths(t time.Time, months int) time.Time {
	year := t.Year() + (int(t.Month())-1+months)/12
	month := time.Month((int(t.Month())-1+months)%12 + 1)
	day := t.Day()
	if max := daysIn(year, month); day > max {
		day = max
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// addYears advances by whole years, clamping Feb 29 to Feb 28 in
// non-leap years.
func addYears(t time.Time, years int) time.Time {
	year := t.Year() + years
	day := t.Day()
	if max := daysIn(year, t.Month()); day > max {
		day = max
	}
	return time.Date(year, t.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// setDayOfMonth pins the day within the current month, clamped to the
// month's length.
func setDayOfMonth(t time.Time, day int) time.Time {
	if max := daysIn(t.Year(), t.Month()); day > max {
		day = max
	}
	return time.Date(t.Year(), t.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// setMonth pins the month within the current year, clamping the day to the
// target month's length.
func setMonth(t time.Time, month time.Month) time.Time {
	day := t.Day()
	if max := daysIn(t.Year(), month); day > max {
		day = max
	}
	return time.Date(t.Year(), month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	// Day 0 of the next month normalizes to the last day of this month
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// dateOf truncates a time to its calendar date in UTC.
func dateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
