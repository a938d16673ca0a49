package task

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestNew checks task construction defaults.
func TestNew(t *testing.T) {
	tk := New("  write docs  ", " explain the engine ")

	if tk.ID == uuid.Nil {
		t.Error("ID = uuid.Nil, want generated id")
	}
	if tk.Title != "write docs" {
		t.Errorf("Title = %q, want %q", tk.Title, "write docs")
	}
	if tk.Description != "explain the engine" {
		t.Errorf("Description = %q, want %q", tk.Description, "explain the engine")
	}
	if tk.Status != StatusTodo {
		t.Errorf("Status = %s, want Todo", tk.Status)
	}
	if tk.Priority != PriorityMedium {
		t.Errorf("Priority = %s, want Medium", tk.Priority)
	}
	if tk.CompletedAt != nil {
		t.Errorf("CompletedAt = %v, want nil", tk.CompletedAt)
	}
	if tk.CreatedAt.IsZero() || tk.UpdatedAt.IsZero() {
		t.Error("timestamps not initialized")
	}
}

// TestParseStatus checks string round-trips and rejection of unknown values.
func TestParseStatus(t *testing.T) {
	for _, st := range Statuses() {
		got, err := ParseStatus(string(st))
		if err != nil {
			t.Errorf("ParseStatus(%q) error = %v, want nil", st, err)
		}
		if got != st {
			t.Errorf("ParseStatus(%q) = %s, want %s", st, got, st)
		}
	}

	if _, err := ParseStatus("Paused"); err == nil {
		t.Error("ParseStatus(Paused) error = nil, want error")
	}
	if _, err := ParseStatus("todo"); err == nil {
		t.Error("ParseStatus(todo) error = nil, want error for wrong case")
	}
}

// TestTerminal checks the terminal status predicate.
func TestTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusTodo, false},
		{StatusInProgress, false},
		{StatusBlocked, false},
		{StatusReview, false},
		{StatusDone, true},
		{StatusCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

// TestOverdue checks due-date evaluation against task status.
func TestOverdue(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name   string
		due    *time.Time
		status Status
		want   bool
	}{
		{"no due date", nil, StatusTodo, false},
		{"due in future", &future, StatusTodo, false},
		{"past due and open", &past, StatusInProgress, true},
		{"past due but done", &past, StatusDone, false},
		{"past due but cancelled", &past, StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := New("deadline", "")
			tk.DueDate = tt.due
			tk.Status = tt.status

			if got := tk.Overdue(now); got != tt.want {
				t.Errorf("Overdue() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestClone checks that clones share no mutable state.
func TestClone(t *testing.T) {
	tk := New("original", "")
	tk.Metadata["team"] = "core"
	goal := uuid.New()
	tk.GoalID = &goal

	cp := tk.Clone()
	cp.Metadata["team"] = "other"
	*cp.GoalID = uuid.New()
	cp.Title = "changed"

	if tk.Metadata["team"] != "core" {
		t.Errorf("Metadata mutated through clone: %q", tk.Metadata["team"])
	}
	if *tk.GoalID != goal {
		t.Error("GoalID mutated through clone")
	}
	if tk.Title != "original" {
		t.Errorf("Title = %q, want %q", tk.Title, "original")
	}
}
