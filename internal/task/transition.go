package task

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is the sentinel wrapped by every TransitionError.
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError reports a rejected status change. The task is left
// untouched when one is returned.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// allowedTransitions enumerates every legal status change. Identity
// transitions are handled separately and are always allowed. Cancelled has
// no outgoing transitions; Done may be reopened.
var allowedTransitions = map[Status]map[Status]struct{}{
	StatusTodo: {
		StatusInProgress: {},
		StatusBlocked:    {},
		StatusDone:       {},
		StatusCancelled:  {},
	},
	StatusInProgress: {
		StatusTodo:      {},
		StatusBlocked:   {},
		StatusReview:    {},
		StatusDone:      {},
		StatusCancelled: {},
	},
	StatusBlocked: {
		StatusTodo:       {},
		StatusInProgress: {},
		StatusCancelled:  {},
	},
	StatusReview: {
		StatusInProgress: {},
		StatusDone:       {},
		StatusCancelled:  {},
	},
	StatusDone: {
		StatusTodo:       {},
		StatusInProgress: {},
		StatusReview:     {},
		StatusCancelled:  {},
	},
	StatusCancelled: {},
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// ValidateTransition returns a TransitionError if the change is illegal.
func ValidateTransition(from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return &TransitionError{From: from, To: to}
}

// TransitionsFrom returns the statuses reachable from the given status in
// canonical order, excluding the identity transition.
func TransitionsFrom(from Status) []Status {
	next, ok := allowedTransitions[from]
	if !ok {
		return nil
	}

	out := make([]Status, 0, len(next))
	for _, st := range statusOrder {
		if _, ok := next[st]; ok {
			out = append(out, st)
		}
	}
	return out
}
