// Package engine coordinates task status changes with the dependency
// graph. The coordinator owns an in-memory graph hydrated from the store
// and serializes every mutation through one exclusive critical section:
// creating an edge may force the downstream task into Blocked, finishing
// a task re-evaluates its Blocked dependents, and a Blocked task cannot
// resume until every gating predecessor is terminal.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/cpaika/depflow/internal/events"
	"github.com/cpaika/depflow/internal/graph"
	"github.com/cpaika/depflow/internal/store"
	"github.com/cpaika/depflow/internal/task"
)

// Coordinator arbitrates all graph and status mutations. Propagation
// touches multiple tasks as one logical transaction, so every operation
// holds the same lock and never observes a half-updated graph.
type Coordinator struct {
	mu     sync.Mutex
	graph  *graph.Graph
	store  store.TaskStore
	bus    *events.Bus
	logger *log.Logger
}

// New creates a coordinator over the given store with an empty graph.
// Call Restore to hydrate persisted edges.
func New(st store.TaskStore, bus *events.Bus, logger *log.Logger) *Coordinator {
	return &Coordinator{
		graph:  graph.New(),
		store:  st,
		bus:    bus,
		logger: logger,
	}
}

// CreateDependency adds an edge meaning `to` may not proceed until `from`
// reaches a terminal status. It fails if either task is unknown, if the
// edge already exists, or if it would close a cycle, leaving the graph
// untouched. On success a FinishToStart edge from an unfinished task
// forces `to` into Blocked, provided its current status allows that move.
func (c *Coordinator) CreateDependency(ctx context.Context, from, to uuid.UUID, kind graph.Kind) (*graph.Dependency, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fromTask, err := c.store.GetTask(ctx, from)
	if err != nil {
		return nil, err
	}
	toTask, err := c.store.GetTask(ctx, to)
	if err != nil {
		return nil, err
	}

	return c.createEdgeLocked(ctx, fromTask, toTask, kind)
}

// RemoveDependency deletes the edge and re-evaluates the freed task: if it
// was Blocked and nothing gates it anymore, it returns to Todo without
// waiting for the former predecessor to finish.
func (c *Coordinator) RemoveDependency(ctx context.Context, dependencyID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dep, ok := c.graph.Get(dependencyID)
	if !ok {
		return fmt.Errorf("%w: %s", graph.ErrDependencyNotFound, dependencyID)
	}
	return c.removeEdgeLocked(ctx, dep)
}

// SetStatus moves a task to the requested status, enforcing the transition
// table. Setting the current status again is a no-op. Leaving Blocked for
// Todo or InProgress requires every gating predecessor to be terminal;
// cancellation is always available. Reaching a terminal status
// re-evaluates Blocked dependents before returning.
func (c *Coordinator) SetStatus(ctx context.Context, id uuid.UUID, next task.Status) (*task.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == next {
		return t, nil
	}
	if err := task.ValidateTransition(t.Status, next); err != nil {
		return nil, err
	}

	if t.Status == task.StatusBlocked && (next == task.StatusTodo || next == task.StatusInProgress) {
		ok, unmet, err := c.canProceedLocked(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &UnmetDependenciesError{TaskID: id, Unmet: unmet}
		}
	}

	prev := t.Status
	t.Status = next
	task.Normalize(t)
	if err := c.store.UpdateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update task %s: %w", id, err)
	}

	c.bus.Publish(events.TopicTask, events.StatusChangedEvent{
		ID: id, From: prev, To: next, Timestamp: time.Now().UTC(),
	})
	c.logger.Info("status changed", "task", id, "from", prev, "to", next)

	if next.Terminal() {
		if _, err := c.propagateLocked(ctx, id); err != nil {
			return t, fmt.Errorf("status updated but propagation failed: %w", err)
		}
	}

	return t, nil
}

// UpdateTask persists edited task fields. A status change rides the same
// validation and propagation as SetStatus; other fields only need the
// update to be a legal evolution of the stored row.
func (c *Coordinator) UpdateTask(ctx context.Context, updated *task.Task) (*task.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.store.GetTask(ctx, updated.ID)
	if err != nil {
		return nil, err
	}
	if err := task.ValidateUpdate(current, updated); err != nil {
		return nil, err
	}

	if current.Status == task.StatusBlocked &&
		(updated.Status == task.StatusTodo || updated.Status == task.StatusInProgress) {
		ok, unmet, err := c.canProceedLocked(ctx, updated.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &UnmetDependenciesError{TaskID: updated.ID, Unmet: unmet}
		}
	}

	prev := current.Status
	task.Normalize(updated)
	if err := c.store.UpdateTask(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to update task %s: %w", updated.ID, err)
	}

	if updated.Status != prev {
		c.bus.Publish(events.TopicTask, events.StatusChangedEvent{
			ID: updated.ID, From: prev, To: updated.Status, Timestamp: time.Now().UTC(),
		})
		c.logger.Info("status changed", "task", updated.ID, "from", prev, "to", updated.Status)
		if updated.Status.Terminal() {
			if _, err := c.propagateLocked(ctx, updated.ID); err != nil {
				return updated, fmt.Errorf("task updated but propagation failed: %w", err)
			}
		}
	}

	return updated, nil
}

// DeleteTask removes a task together with every edge touching it, then
// re-evaluates the dependents those edges were holding back.
func (c *Coordinator) DeleteTask(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	outgoing := c.graph.OutgoingEdges(id)
	incoming := c.graph.IncomingEdges(id)

	// Dependency rows cascade with the task row; mirror that in the graph
	if err := c.store.DeleteTask(ctx, id); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, edge := range append(incoming, outgoing...) {
		_, _ = c.graph.Remove(edge.ID)
		c.bus.Publish(events.TopicDependency, events.DependencyRemovedEvent{
			DependencyID: edge.ID,
			From:         edge.FromTaskID,
			To:           edge.ToTaskID,
			Timestamp:    now,
		})
	}

	for _, edge := range outgoing {
		if _, err := c.reevaluateLocked(ctx, edge.ToTaskID); err != nil {
			return err
		}
	}

	c.logger.Info("task deleted", "task", id)
	return nil
}

// OnStatusChanged runs propagation for a task whose status was changed
// outside SetStatus, such as an import or a direct store write. Only
// terminal statuses have downstream effects. Returns the ids of the tasks
// that came unblocked.
func (c *Coordinator) OnStatusChanged(ctx context.Context, id uuid.UUID, newStatus task.Status) ([]uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !newStatus.Terminal() {
		return nil, nil
	}
	return c.propagateLocked(ctx, id)
}

// CanProceed reports whether every gating predecessor of the task is
// terminal. Tasks without dependencies can always proceed.
func (c *Coordinator) CanProceed(ctx context.Context, taskID uuid.UUID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ok, _, err := c.canProceedLocked(ctx, taskID)
	return ok, err
}

// SetParent routes the parent relationship through the graph: the child
// holds exactly one FinishToStart edge from its parent, so an unfinished
// parent blocks the child the same way any other dependency would. Any
// previous parent edge is removed first.
func (c *Coordinator) SetParent(ctx context.Context, childID, parentID uuid.UUID) (*graph.Dependency, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if childID == parentID {
		return nil, fmt.Errorf("%w: %s", graph.ErrSelfDependency, childID)
	}

	child, err := c.store.GetTask(ctx, childID)
	if err != nil {
		return nil, err
	}
	parent, err := c.store.GetTask(ctx, parentID)
	if err != nil {
		return nil, err
	}

	// Refuse before removing the old edge so a rejected call leaves the
	// previous parent intact. Removing an incoming edge of the child
	// cannot change this reachability, only its outgoing paths matter.
	if c.graph.HasPath(childID, parentID) {
		return nil, fmt.Errorf("%w: %s -> %s", graph.ErrCycle, parentID, childID)
	}

	if child.ParentTaskID != nil && *child.ParentTaskID != parentID {
		if edge, ok := c.graph.Find(*child.ParentTaskID, childID); ok {
			if err := c.removeEdgeLocked(ctx, edge); err != nil {
				return nil, err
			}
		}
	}

	// Reuse an existing edge between the pair, replacing it when its kind
	// does not carry blocking semantics
	dep, ok := c.graph.Find(parentID, childID)
	if ok && dep.Kind != graph.KindFinishToStart {
		if err := c.removeEdgeLocked(ctx, dep); err != nil {
			return nil, err
		}
		ok = false
	}
	if !ok {
		fresh, err := c.store.GetTask(ctx, childID)
		if err != nil {
			return nil, err
		}
		dep, err = c.createEdgeLocked(ctx, parent, fresh, graph.KindFinishToStart)
		if err != nil {
			return nil, err
		}
	}

	fresh, err := c.store.GetTask(ctx, childID)
	if err != nil {
		return nil, err
	}
	fresh.ParentTaskID = &parentID
	task.Normalize(fresh)
	if err := c.store.UpdateTask(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to update parent of task %s: %w", childID, err)
	}

	return dep, nil
}

// ClearParent removes the parent relationship and its backing edge,
// re-evaluating the child the same as any other edge removal.
func (c *Coordinator) ClearParent(ctx context.Context, childID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	child, err := c.store.GetTask(ctx, childID)
	if err != nil {
		return err
	}
	if child.ParentTaskID == nil {
		return nil
	}

	if edge, ok := c.graph.Find(*child.ParentTaskID, childID); ok {
		if err := c.removeEdgeLocked(ctx, edge); err != nil {
			return err
		}
	}

	fresh, err := c.store.GetTask(ctx, childID)
	if err != nil {
		return err
	}
	fresh.ParentTaskID = nil
	task.Normalize(fresh)
	if err := c.store.UpdateTask(ctx, fresh); err != nil {
		return fmt.Errorf("failed to update parent of task %s: %w", childID, err)
	}
	return nil
}

// Restore re-admits persisted edges into the in-memory graph, typically at
// startup. Edges that fail structural checks are logged and skipped so one
// corrupt row cannot prevent hydration.
func (c *Coordinator) Restore(deps []*graph.Dependency) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, dep := range deps {
		if err := c.graph.Restore(dep); err != nil {
			c.logger.Warn("skipping dependency during restore", "dependency", dep.ID, "error", err)
		}
	}
}

// Reconcile repairs blocking state after hydration: Blocked tasks whose
// dependencies are all satisfied return to Todo, and Todo tasks gated by
// an unfinished predecessor become Blocked. Drift can occur when a
// previous process stopped between a dependency write and the matching
// status write.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tasks, err := c.store.ListTasks(ctx, store.Filters{})
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	for _, t := range tasks {
		ok, _, err := c.canProceedLocked(ctx, t.ID)
		if err != nil {
			return err
		}
		switch {
		case t.Status == task.StatusBlocked && ok:
			if err := c.unblockLocked(ctx, t); err != nil {
				return err
			}
		case t.Status == task.StatusTodo && !ok:
			t.Status = task.StatusBlocked
			task.Normalize(t)
			if err := c.store.UpdateTask(ctx, t); err != nil {
				return fmt.Errorf("failed to block task %s: %w", t.ID, err)
			}
			c.bus.Publish(events.TopicTask, events.StatusChangedEvent{
				ID: t.ID, From: task.StatusTodo, To: task.StatusBlocked, Timestamp: time.Now().UTC(),
			})
			c.logger.Info("task blocked during reconcile", "task", t.ID)
		}
	}
	return nil
}

// Dependencies returns the edges the task waits on.
func (c *Coordinator) Dependencies(taskID uuid.UUID) []*graph.Dependency {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.IncomingEdges(taskID)
}

// Dependents returns the edges waiting on the task.
func (c *Coordinator) Dependents(taskID uuid.UUID) []*graph.Dependency {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.OutgoingEdges(taskID)
}

// Edges returns every edge in the graph.
func (c *Coordinator) Edges() []*graph.Dependency {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.Edges()
}

// Order returns every stored task id in dependency order.
func (c *Coordinator) Order(ctx context.Context) ([]uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tasks, err := c.store.ListTasks(ctx, store.Filters{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	universe := make([]uuid.UUID, 0, len(tasks))
	for _, t := range tasks {
		universe = append(universe, t.ID)
	}
	return c.graph.Order(universe)
}

// CriticalPath returns the dependency chain with the largest total
// estimated hours.
func (c *Coordinator) CriticalPath(ctx context.Context) ([]uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tasks, err := c.store.ListTasks(ctx, store.Filters{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	estimates := make(map[uuid.UUID]float64, len(tasks))
	for _, t := range tasks {
		estimates[t.ID] = t.EstimatedHours
	}
	return c.graph.CriticalPath(estimates), nil
}

// createEdgeLocked inserts and persists the edge, then applies the
// blocking side effect. The graph and store are rolled back together on
// failure so a rejected call never leaves a partial mutation.
func (c *Coordinator) createEdgeLocked(ctx context.Context, fromTask, toTask *task.Task, kind graph.Kind) (*graph.Dependency, error) {
	dep, err := c.graph.Insert(fromTask.ID, toTask.ID, kind)
	if err != nil {
		return nil, err
	}

	if err := c.store.SaveDependency(ctx, dep); err != nil {
		_, _ = c.graph.Remove(dep.ID)
		return nil, fmt.Errorf("failed to persist dependency: %w", err)
	}

	now := time.Now().UTC()

	// An unfinished predecessor blocks the downstream task, when its
	// current status allows the move. Review and Done tasks stay put.
	if kind == graph.KindFinishToStart && !fromTask.Status.Terminal() &&
		toTask.Status != task.StatusBlocked && task.CanTransition(toTask.Status, task.StatusBlocked) {
		prev := toTask.Status
		toTask.Status = task.StatusBlocked
		task.Normalize(toTask)
		if err := c.store.UpdateTask(ctx, toTask); err != nil {
			_, _ = c.graph.Remove(dep.ID)
			if derr := c.store.DeleteDependency(ctx, dep.ID); derr != nil {
				c.logger.Error("failed to roll back dependency", "dependency", dep.ID, "error", derr)
			}
			return nil, fmt.Errorf("failed to block task %s: %w", toTask.ID, err)
		}
		c.bus.Publish(events.TopicTask, events.StatusChangedEvent{
			ID: toTask.ID, From: prev, To: task.StatusBlocked, Timestamp: now,
		})
		c.bus.Publish(events.TopicTask, events.TaskBlockedEvent{
			ID: toTask.ID, DependencyID: dep.ID, Timestamp: now,
		})
		c.logger.Info("task blocked", "task", toTask.ID, "dependency", dep.ID)
	}

	c.bus.Publish(events.TopicDependency, events.DependencyCreatedEvent{
		DependencyID: dep.ID,
		From:         dep.FromTaskID,
		To:           dep.ToTaskID,
		Kind:         dep.Kind,
		Timestamp:    now,
	})
	c.logger.Debug("dependency created", "from", dep.FromTaskID, "to", dep.ToTaskID, "kind", dep.Kind)

	return dep, nil
}

// removeEdgeLocked deletes the edge from the graph and the store, then
// re-evaluates the freed task.
func (c *Coordinator) removeEdgeLocked(ctx context.Context, dep *graph.Dependency) error {
	removed, err := c.graph.Remove(dep.ID)
	if err != nil {
		return err
	}

	if err := c.store.DeleteDependency(ctx, dep.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		if rerr := c.graph.Restore(removed); rerr != nil {
			c.logger.Error("failed to restore edge after failed delete", "dependency", dep.ID, "error", rerr)
		}
		return fmt.Errorf("failed to delete dependency: %w", err)
	}

	c.bus.Publish(events.TopicDependency, events.DependencyRemovedEvent{
		DependencyID: dep.ID,
		From:         dep.FromTaskID,
		To:           dep.ToTaskID,
		Timestamp:    time.Now().UTC(),
	})
	c.logger.Debug("dependency removed", "from", dep.FromTaskID, "to", dep.ToTaskID)

	_, err = c.reevaluateLocked(ctx, dep.ToTaskID)
	return err
}

// propagateLocked re-evaluates every Blocked successor of the task and
// returns the ids of those that came unblocked. Each successor re-checks
// all of its predecessors, not only the one that just changed, so a task
// with several unmet dependencies stays Blocked until the last one
// finishes.
func (c *Coordinator) propagateLocked(ctx context.Context, taskID uuid.UUID) ([]uuid.UUID, error) {
	var freed []uuid.UUID
	for _, succID := range c.graph.Successors(taskID) {
		unblocked, err := c.reevaluateLocked(ctx, succID)
		if err != nil {
			return freed, err
		}
		if unblocked {
			freed = append(freed, succID)
		}
	}
	return freed, nil
}

// reevaluateLocked unblocks the task if it is Blocked and nothing gates
// it anymore. Tasks in any other status are left alone.
func (c *Coordinator) reevaluateLocked(ctx context.Context, taskID uuid.UUID) (bool, error) {
	t, err := c.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if t.Status != task.StatusBlocked {
		return false, nil
	}
	ok, _, err := c.canProceedLocked(ctx, taskID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := c.unblockLocked(ctx, t); err != nil {
		return false, err
	}
	return true, nil
}

// unblockLocked transitions a Blocked task back to Todo and publishes the
// change.
func (c *Coordinator) unblockLocked(ctx context.Context, t *task.Task) error {
	prev := t.Status
	t.Status = task.StatusTodo
	task.Normalize(t)
	if err := c.store.UpdateTask(ctx, t); err != nil {
		return fmt.Errorf("failed to unblock task %s: %w", t.ID, err)
	}

	now := time.Now().UTC()
	c.bus.Publish(events.TopicTask, events.StatusChangedEvent{
		ID: t.ID, From: prev, To: task.StatusTodo, Timestamp: now,
	})
	c.bus.Publish(events.TopicTask, events.TaskUnblockedEvent{ID: t.ID, Timestamp: now})
	c.logger.Info("task unblocked", "task", t.ID)
	return nil
}

// canProceedLocked reports whether every FinishToStart predecessor of the
// task is terminal and returns the ids of those that are not. Other edge
// kinds order the graph but carry no blocking semantics.
func (c *Coordinator) canProceedLocked(ctx context.Context, taskID uuid.UUID) (bool, []uuid.UUID, error) {
	var unmet []uuid.UUID
	for _, edge := range c.graph.IncomingEdges(taskID) {
		if edge.Kind != graph.KindFinishToStart {
			continue
		}
		pred, err := c.store.GetTask(ctx, edge.FromTaskID)
		if err != nil {
			// An edge pointing at a deleted task no longer gates
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return false, nil, err
		}
		if !pred.Status.Terminal() {
			unmet = append(unmet, pred.ID)
		}
	}
	return len(unmet) == 0, unmet, nil
}
