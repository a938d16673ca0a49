package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the life-cycle state of a task.
type Status string

const (
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "InProgress"
	StatusBlocked    Status = "Blocked"
	StatusReview     Status = "Review"
	StatusDone       Status = "Done"
	StatusCancelled  Status = "Cancelled"
)

// statusOrder fixes the iteration order for listings and transition reports.
var statusOrder = []Status{
	StatusTodo,
	StatusInProgress,
	StatusBlocked,
	StatusReview,
	StatusDone,
	StatusCancelled,
}

// Statuses returns all statuses in their canonical order.
func Statuses() []Status {
	return append([]Status(nil), statusOrder...)
}

// ParseStatus converts a stored string into a Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range statusOrder {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

// Valid reports whether the status is one of the known variants.
func (s Status) Valid() bool {
	for _, st := range statusOrder {
		if s == st {
			return true
		}
	}
	return false
}

// Terminal reports whether the status settles the task for dependency
// satisfaction purposes.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusCancelled
}

func (s Status) String() string {
	return string(s)
}

// Priority ranks a task's importance.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// ParsePriority converts a stored string into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return Priority(s), nil
	}
	return "", fmt.Errorf("unknown task priority %q", s)
}

// Task is a unit of work tracked by the engine. Dependencies between tasks
// live in the dependency graph; ParentTaskID is sugar for a single
// FinishToStart edge maintained by the coordinator.
type Task struct {
	ID                 uuid.UUID
	Title              string
	Description        string
	Status             Status
	Priority           Priority
	Metadata           map[string]string
	AssignedResourceID *uuid.UUID
	GoalID             *uuid.UUID
	ParentTaskID       *uuid.UUID
	EstimatedHours     float64
	ActualHours        float64
	ScheduledDate      *time.Time
	DueDate            *time.Time
	CompletedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// New creates a Todo task with a fresh id and medium priority.
func New(title, description string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Status:      StatusTodo,
		Priority:    PriorityMedium,
		Metadata:    make(map[string]string),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Overdue reports whether the task's due date has passed without the task
// reaching a terminal status.
func (t *Task) Overdue(now time.Time) bool {
	if t.DueDate == nil || t.Status.Terminal() {
		return false
	}
	return now.After(*t.DueDate)
}

// Clone returns a deep copy so callers can mutate without sharing state.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}

	cp := *t
	if t.Metadata != nil {
		cp.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	cp.AssignedResourceID = cloneUUID(t.AssignedResourceID)
	cp.GoalID = cloneUUID(t.GoalID)
	cp.ParentTaskID = cloneUUID(t.ParentTaskID)
	cp.ScheduledDate = cloneTime(t.ScheduledDate)
	cp.DueDate = cloneTime(t.DueDate)
	cp.CompletedAt = cloneTime(t.CompletedAt)
	return &cp
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
