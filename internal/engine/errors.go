package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrDependenciesNotMet is returned when a Blocked task is asked to resume
// while a gating predecessor is still unfinished. Match with errors.Is.
var ErrDependenciesNotMet = errors.New("dependencies not met")

// UnmetDependenciesError lists the predecessors holding a task in Blocked.
type UnmetDependenciesError struct {
	TaskID uuid.UUID
	Unmet  []uuid.UUID
}

func (e *UnmetDependenciesError) Error() string {
	ids := make([]string, len(e.Unmet))
	for i, id := range e.Unmet {
		ids[i] = id.String()
	}
	return fmt.Sprintf("task %s has unmet dependencies: %s", e.TaskID, strings.Join(ids, ", "))
}

func (e *UnmetDependenciesError) Unwrap() error { return ErrDependenciesNotMet }
