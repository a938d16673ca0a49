package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/cpaika/depflow/internal/graph"
	"github.com/cpaika/depflow/internal/task"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() uuid.UUID
}

// Topic constants
const (
	TopicTask       = "task"
	TopicDependency = "dependency"
)

// Event type constants
const (
	EventTypeStatusChanged     = "task.status_changed"
	EventTypeTaskBlocked       = "task.blocked"
	EventTypeTaskUnblocked     = "task.unblocked"
	EventTypeTaskGenerated     = "task.generated"
	EventTypeDependencyCreated = "dependency.created"
	EventTypeDependencyRemoved = "dependency.removed"
)

// StatusChangedEvent is published after a task moves to a new status.
type StatusChangedEvent struct {
	ID        uuid.UUID
	From      task.Status
	To        task.Status
	Timestamp time.Time
}

func (e StatusChangedEvent) EventType() string { return EventTypeStatusChanged }
func (e StatusChangedEvent) TaskID() uuid.UUID { return e.ID }

// TaskBlockedEvent is published when a new dependency forces a task into Blocked.
type TaskBlockedEvent struct {
	ID           uuid.UUID
	DependencyID uuid.UUID
	Timestamp    time.Time
}

func (e TaskBlockedEvent) EventType() string { return EventTypeTaskBlocked }
func (e TaskBlockedEvent) TaskID() uuid.UUID { return e.ID }

// TaskUnblockedEvent is published when a blocked task's dependencies clear
// and it returns to Todo.
type TaskUnblockedEvent struct {
	ID        uuid.UUID
	Timestamp time.Time
}

func (e TaskUnblockedEvent) EventType() string { return EventTypeTaskUnblocked }
func (e TaskUnblockedEvent) TaskID() uuid.UUID { return e.ID }

// TaskGeneratedEvent is published when a recurring template spawns a new task.
type TaskGeneratedEvent struct {
	ID         uuid.UUID
	TemplateID uuid.UUID
	Timestamp  time.Time
}

func (e TaskGeneratedEvent) EventType() string { return EventTypeTaskGenerated }
func (e TaskGeneratedEvent) TaskID() uuid.UUID { return e.ID }

// DependencyCreatedEvent is published after an edge is added to the graph.
type DependencyCreatedEvent struct {
	DependencyID uuid.UUID
	From         uuid.UUID
	To           uuid.UUID
	Kind         graph.Kind
	Timestamp    time.Time
}

func (e DependencyCreatedEvent) EventType() string { return EventTypeDependencyCreated }
func (e DependencyCreatedEvent) TaskID() uuid.UUID { return e.To }

// DependencyRemovedEvent is published after an edge is removed from the graph.
type DependencyRemovedEvent struct {
	DependencyID uuid.UUID
	From         uuid.UUID
	To           uuid.UUID
	Timestamp    time.Time
}

func (e DependencyRemovedEvent) EventType() string { return EventTypeDependencyRemoved }
func (e DependencyRemovedEvent) TaskID() uuid.UUID { return e.To }
