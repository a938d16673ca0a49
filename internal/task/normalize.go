package task

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Validation errors for task field consistency.
var (
	ErrEmptyTitle        = errors.New("task title cannot be empty")
	ErrCompletedNotDone  = errors.New("completed timestamp requires Done status")
	ErrInconsistentDates = errors.New("completed timestamp precedes creation")
	ErrCreatedAtChanged  = errors.New("creation timestamp is immutable")
)

// Normalize enforces derived-field consistency after any mutation: the
// completion marker is set exactly when the status is Done, the update
// timestamp is refreshed, text fields are trimmed, and non-finite numeric
// fields are coerced to 0.
func Normalize(t *Task) {
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)

	if !isFinite(t.EstimatedHours) {
		t.EstimatedHours = 0
	}
	if !isFinite(t.ActualHours) {
		t.ActualHours = 0
	}

	switch {
	case t.Status == StatusDone && t.CompletedAt == nil:
		now := time.Now().UTC()
		t.CompletedAt = &now
	case t.Status != StatusDone && t.CompletedAt != nil:
		t.CompletedAt = nil
	}

	t.UpdatedAt = time.Now().UTC()
}

// Validate checks that a task is internally consistent.
func Validate(t *Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if !t.Status.Valid() {
		return fmt.Errorf("unknown task status %q", t.Status)
	}
	if t.CompletedAt != nil {
		if t.Status != StatusDone {
			return ErrCompletedNotDone
		}
		if t.CompletedAt.Before(t.CreatedAt) {
			return ErrInconsistentDates
		}
	}
	return nil
}

// ValidateUpdate checks that new is a legal evolution of old: title still
// present, status change allowed by the transition table, creation
// timestamp untouched.
func ValidateUpdate(old, new *Task) error {
	if strings.TrimSpace(new.Title) == "" {
		return ErrEmptyTitle
	}
	if err := ValidateTransition(old.Status, new.Status); err != nil {
		return err
	}
	if !new.CreatedAt.Equal(old.CreatedAt) {
		return ErrCreatedAtChanged
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
