package graph

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a dependency edge. Blocking semantics are defined for
// FinishToStart only; the remaining kinds are stored and kept acyclic but
// impose no blocking behavior.
type Kind string

const (
	KindFinishToStart  Kind = "FinishToStart"
	KindStartToStart   Kind = "StartToStart"
	KindFinishToFinish Kind = "FinishToFinish"
	KindStartToFinish  Kind = "StartToFinish"
)

// ParseKind converts a stored string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindFinishToStart, KindStartToStart, KindFinishToFinish, KindStartToFinish:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown dependency kind %q", s)
}

// Valid reports whether the kind is one of the known variants.
func (k Kind) Valid() bool {
	switch k {
	case KindFinishToStart, KindStartToStart, KindFinishToFinish, KindStartToFinish:
		return true
	}
	return false
}

func (k Kind) String() string {
	return string(k)
}

// Dependency is a directed edge meaning the target task may not proceed
// until the source task reaches a terminal status.
type Dependency struct {
	ID         uuid.UUID
	FromTaskID uuid.UUID
	ToTaskID   uuid.UUID
	Kind       Kind
	CreatedAt  time.Time
}

// NewDependency creates an edge with a fresh id.
func NewDependency(from, to uuid.UUID, kind Kind) *Dependency {
	return &Dependency{
		ID:         uuid.New(),
		FromTaskID: from,
		ToTaskID:   to,
		Kind:       kind,
		CreatedAt:  time.Now().UTC(),
	}
}

// Clone returns a copy of the edge.
func (d *Dependency) Clone() *Dependency {
	if d == nil {
		return nil
	}
	cp := *d
	return &cp
}
