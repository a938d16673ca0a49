package task

import (
	"errors"
	"testing"
)

// TestCanTransition exercises the transition table.
func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"todo to in progress", StatusTodo, StatusInProgress, true},
		{"todo to blocked", StatusTodo, StatusBlocked, true},
		{"todo to done", StatusTodo, StatusDone, true},
		{"todo to cancelled", StatusTodo, StatusCancelled, true},
		{"todo to review is illegal", StatusTodo, StatusReview, false},
		{"in progress to todo", StatusInProgress, StatusTodo, true},
		{"in progress to review", StatusInProgress, StatusReview, true},
		{"in progress to blocked", StatusInProgress, StatusBlocked, true},
		{"blocked to todo", StatusBlocked, StatusTodo, true},
		{"blocked to in progress", StatusBlocked, StatusInProgress, true},
		{"blocked to cancelled", StatusBlocked, StatusCancelled, true},
		{"blocked to done is illegal", StatusBlocked, StatusDone, false},
		{"blocked to review is illegal", StatusBlocked, StatusReview, false},
		{"review to in progress", StatusReview, StatusInProgress, true},
		{"review to done", StatusReview, StatusDone, true},
		{"review to todo is illegal", StatusReview, StatusTodo, false},
		{"review to blocked is illegal", StatusReview, StatusBlocked, false},
		{"done reopens to todo", StatusDone, StatusTodo, true},
		{"done reopens to in progress", StatusDone, StatusInProgress, true},
		{"done reopens to review", StatusDone, StatusReview, true},
		{"done to blocked is illegal", StatusDone, StatusBlocked, false},
		{"done to cancelled", StatusDone, StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}

	t.Run("identity is always allowed", func(t *testing.T) {
		for _, st := range Statuses() {
			if !CanTransition(st, st) {
				t.Errorf("CanTransition(%s, %s) = false, want true", st, st)
			}
		}
	})

	t.Run("cancelled has no exits", func(t *testing.T) {
		for _, st := range Statuses() {
			if st == StatusCancelled {
				continue
			}
			if CanTransition(StatusCancelled, st) {
				t.Errorf("CanTransition(Cancelled, %s) = true, want false", st)
			}
		}
	})
}

// TestValidateTransition checks the typed error returned on rejection.
func TestValidateTransition(t *testing.T) {
	t.Run("legal transition returns nil", func(t *testing.T) {
		if err := ValidateTransition(StatusTodo, StatusInProgress); err != nil {
			t.Errorf("ValidateTransition() error = %v, want nil", err)
		}
	})

	t.Run("illegal transition returns TransitionError", func(t *testing.T) {
		err := ValidateTransition(StatusCancelled, StatusTodo)
		if err == nil {
			t.Fatal("ValidateTransition() error = nil, want error")
		}

		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("error %v does not wrap ErrInvalidTransition", err)
		}

		var te *TransitionError
		if !errors.As(err, &te) {
			t.Fatalf("error %v is not a *TransitionError", err)
		}
		if te.From != StatusCancelled || te.To != StatusTodo {
			t.Errorf("TransitionError = {%s, %s}, want {Cancelled, Todo}", te.From, te.To)
		}
	})
}

// TestTransitionsFrom checks reachable statuses are reported in canonical order.
func TestTransitionsFrom(t *testing.T) {
	tests := []struct {
		name string
		from Status
		want []Status
	}{
		{"from todo", StatusTodo, []Status{StatusInProgress, StatusBlocked, StatusDone, StatusCancelled}},
		{"from blocked", StatusBlocked, []Status{StatusTodo, StatusInProgress, StatusCancelled}},
		{"from review", StatusReview, []Status{StatusInProgress, StatusDone, StatusCancelled}},
		{"from cancelled", StatusCancelled, []Status{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TransitionsFrom(tt.from)
			if len(got) != len(tt.want) {
				t.Fatalf("TransitionsFrom(%s) = %v, want %v", tt.from, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("TransitionsFrom(%s)[%d] = %s, want %s", tt.from, i, got[i], tt.want[i])
				}
			}
		})
	}
}
