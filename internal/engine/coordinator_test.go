package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cpaika/depflow/internal/events"
	"github.com/cpaika/depflow/internal/graph"
	"github.com/cpaika/depflow/internal/store"
	"github.com/cpaika/depflow/internal/task"
)

func testCoordinator(t *testing.T) (*Coordinator, *store.SQLiteStore, *events.Bus) {
	t.Helper()
	st, err := store.NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	bus := events.NewBus()
	t.Cleanup(bus.Close)

	return New(st, bus, log.New(io.Discard)), st, bus
}

// seedTask writes a task fixture directly, bypassing transition checks.
func seedTask(t *testing.T, st store.Store, title string, status task.Status) *task.Task {
	t.Helper()
	tk := task.New(title, "")
	tk.Status = status
	if status == task.StatusDone {
		now := time.Now().UTC()
		tk.CompletedAt = &now
	}
	if err := st.SaveTask(context.Background(), tk); err != nil {
		t.Fatalf("failed to seed task %q: %v", title, err)
	}
	return tk
}

func statusOf(t *testing.T, st store.Store, id uuid.UUID) task.Status {
	t.Helper()
	tk, err := st.GetTask(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to get task %s: %v", id, err)
	}
	return tk.Status
}

func drainEvents(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func countEvents(evs []events.Event, eventType string) int {
	n := 0
	for _, ev := range evs {
		if ev.EventType() == eventType {
			n++
		}
	}
	return n
}

func TestCreateDependencyBlocksDependent(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusTodo)
	t2 := seedTask(t, st, "T2", task.StatusTodo)

	dep, err := c.CreateDependency(ctx, t1.ID, t2.ID, graph.KindFinishToStart)
	if err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}
	if dep.FromTaskID != t1.ID || dep.ToTaskID != t2.ID {
		t.Errorf("dependency endpoints = %s -> %s, want %s -> %s", dep.FromTaskID, dep.ToTaskID, t1.ID, t2.ID)
	}

	if got := statusOf(t, st, t2.ID); got != task.StatusBlocked {
		t.Errorf("dependent status = %s, want Blocked", got)
	}
	if got := statusOf(t, st, t1.ID); got != task.StatusTodo {
		t.Errorf("predecessor status = %s, want Todo", got)
	}
}

func TestCreateDependencyOnFinishedPredecessor(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	done := seedTask(t, st, "Done work", task.StatusDone)
	next := seedTask(t, st, "Next", task.StatusTodo)

	if _, err := c.CreateDependency(ctx, done.ID, next.ID, graph.KindFinishToStart); err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}
	if got := statusOf(t, st, next.ID); got != task.StatusTodo {
		t.Errorf("dependent status = %s, want Todo (predecessor already terminal)", got)
	}
}

func TestCreateDependencyTaskNotFound(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	known := seedTask(t, st, "Known", task.StatusTodo)

	if _, err := c.CreateDependency(ctx, uuid.New(), known.ID, graph.KindFinishToStart); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown predecessor error = %v, want ErrNotFound", err)
	}
	if _, err := c.CreateDependency(ctx, known.ID, uuid.New(), graph.KindFinishToStart); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown dependent error = %v, want ErrNotFound", err)
	}
}

func TestCreateDependencyRejectsStructuralErrors(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusTodo)
	t2 := seedTask(t, st, "T2", task.StatusTodo)
	if _, err := c.CreateDependency(ctx, t1.ID, t2.ID, graph.KindFinishToStart); err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}

	t.Run("self dependency", func(t *testing.T) {
		if _, err := c.CreateDependency(ctx, t1.ID, t1.ID, graph.KindFinishToStart); !errors.Is(err, graph.ErrSelfDependency) {
			t.Errorf("error = %v, want ErrSelfDependency", err)
		}
	})

	t.Run("duplicate edge", func(t *testing.T) {
		if _, err := c.CreateDependency(ctx, t1.ID, t2.ID, graph.KindStartToStart); !errors.Is(err, graph.ErrDuplicateDependency) {
			t.Errorf("error = %v, want ErrDuplicateDependency", err)
		}
	})

	t.Run("cycle leaves everything untouched", func(t *testing.T) {
		if _, err := c.CreateDependency(ctx, t2.ID, t1.ID, graph.KindFinishToStart); !errors.Is(err, graph.ErrCycle) {
			t.Fatalf("error = %v, want ErrCycle", err)
		}
		if len(c.Dependencies(t1.ID)) != 0 {
			t.Error("rejected edge should not appear in the graph")
		}
		if got := statusOf(t, st, t1.ID); got != task.StatusTodo {
			t.Errorf("rejected edge should not block anything, status = %s", got)
		}
	})
}

func TestCompletionUnblocksDependent(t *testing.T) {
	c, st, bus := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusTodo)
	t2 := seedTask(t, st, "T2", task.StatusTodo)
	if _, err := c.CreateDependency(ctx, t1.ID, t2.ID, graph.KindFinishToStart); err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}
	taskCh := bus.Subscribe(events.TopicTask, 64)

	updated, err := c.SetStatus(ctx, t1.ID, task.StatusDone)
	if err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if updated.CompletedAt == nil {
		t.Error("completing a task should stamp CompletedAt")
	}
	if got := statusOf(t, st, t2.ID); got != task.StatusTodo {
		t.Errorf("dependent status = %s, want Todo", got)
	}

	evs := drainEvents(taskCh)
	if countEvents(evs, events.EventTypeTaskUnblocked) != 1 {
		t.Errorf("expected exactly 1 unblocked event, got %d", countEvents(evs, events.EventTypeTaskUnblocked))
	}
	// T1 Todo -> Done and T2 Blocked -> Todo
	if countEvents(evs, events.EventTypeStatusChanged) != 2 {
		t.Errorf("expected 2 status change events, got %d", countEvents(evs, events.EventTypeStatusChanged))
	}
}

func TestCancellationUnblocksDependent(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusTodo)
	t2 := seedTask(t, st, "T2", task.StatusTodo)
	if _, err := c.CreateDependency(ctx, t1.ID, t2.ID, graph.KindFinishToStart); err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}

	if _, err := c.SetStatus(ctx, t1.ID, task.StatusCancelled); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if got := statusOf(t, st, t2.ID); got != task.StatusTodo {
		t.Errorf("dependent status = %s, want Todo after predecessor cancelled", got)
	}
}

func TestMultiPredecessorGate(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusTodo)
	t2 := seedTask(t, st, "T2", task.StatusTodo)
	t3 := seedTask(t, st, "T3", task.StatusTodo)
	for _, pred := range []*task.Task{t1, t2} {
		if _, err := c.CreateDependency(ctx, pred.ID, t3.ID, graph.KindFinishToStart); err != nil {
			t.Fatalf("CreateDependency() error = %v", err)
		}
	}

	if _, err := c.SetStatus(ctx, t1.ID, task.StatusDone); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if got := statusOf(t, st, t3.ID); got != task.StatusBlocked {
		t.Errorf("status after one of two predecessors done = %s, want Blocked", got)
	}

	if _, err := c.SetStatus(ctx, t2.ID, task.StatusDone); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if got := statusOf(t, st, t3.ID); got != task.StatusTodo {
		t.Errorf("status after all predecessors done = %s, want Todo", got)
	}
}

func TestSingleUnblockPerSatisfaction(t *testing.T) {
	c, st, bus := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusTodo)
	t2 := seedTask(t, st, "T2", task.StatusTodo)
	if _, err := c.CreateDependency(ctx, t1.ID, t2.ID, graph.KindFinishToStart); err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}
	taskCh := bus.Subscribe(events.TopicTask, 64)

	if _, err := c.SetStatus(ctx, t1.ID, task.StatusDone); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	// Reopening the finished task must not re-trigger unblocking
	if _, err := c.SetStatus(ctx, t1.ID, task.StatusInProgress); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	if got := statusOf(t, st, t2.ID); got != task.StatusTodo {
		t.Errorf("dependent status = %s, want Todo", got)
	}
	evs := drainEvents(taskCh)
	if got := countEvents(evs, events.EventTypeTaskUnblocked); got != 1 {
		t.Errorf("expected exactly 1 unblocked event, got %d", got)
	}
}

func TestBlockedResumeRequiresSatisfiedGates(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusTodo)
	t2 := seedTask(t, st, "T2", task.StatusTodo)
	if _, err := c.CreateDependency(ctx, t1.ID, t2.ID, graph.KindFinishToStart); err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}

	_, err := c.SetStatus(ctx, t2.ID, task.StatusInProgress)
	if !errors.Is(err, ErrDependenciesNotMet) {
		t.Fatalf("resume error = %v, want ErrDependenciesNotMet", err)
	}
	var unmet *UnmetDependenciesError
	if !errors.As(err, &unmet) {
		t.Fatalf("error %v should carry UnmetDependenciesError detail", err)
	}
	if len(unmet.Unmet) != 1 || unmet.Unmet[0] != t1.ID {
		t.Errorf("unmet predecessors = %v, want [%s]", unmet.Unmet, t1.ID)
	}
	if got := statusOf(t, st, t2.ID); got != task.StatusBlocked {
		t.Errorf("rejected resume must not change status, got %s", got)
	}

	// Cancellation is the manual escape hatch from Blocked
	if _, err := c.SetStatus(ctx, t2.ID, task.StatusCancelled); err != nil {
		t.Errorf("cancel error = %v, want nil", err)
	}
}

func TestSetStatusInvalidTransition(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusTodo)

	_, err := c.SetStatus(ctx, t1.ID, task.StatusReview)
	if !errors.Is(err, task.ErrInvalidTransition) {
		t.Fatalf("SetStatus() error = %v, want ErrInvalidTransition", err)
	}
	if got := statusOf(t, st, t1.ID); got != task.StatusTodo {
		t.Errorf("rejected transition must not change status, got %s", got)
	}
}

func TestSetStatusIdentityIsNoOp(t *testing.T) {
	c, st, bus := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusTodo)
	taskCh := bus.Subscribe(events.TopicTask, 16)

	updated, err := c.SetStatus(ctx, t1.ID, task.StatusTodo)
	if err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if updated.Status != task.StatusTodo {
		t.Errorf("status = %s, want Todo", updated.Status)
	}
	if evs := drainEvents(taskCh); len(evs) != 0 {
		t.Errorf("identity transition should publish nothing, got %d events", len(evs))
	}
}

func TestRemoveDependencyUnblocks(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusTodo)
	t2 := seedTask(t, st, "T2", task.StatusTodo)
	dep, err := c.CreateDependency(ctx, t1.ID, t2.ID, graph.KindFinishToStart)
	if err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}

	if err := c.RemoveDependency(ctx, dep.ID); err != nil {
		t.Fatalf("RemoveDependency() error = %v", err)
	}
	if got := statusOf(t, st, t2.ID); got != task.StatusTodo {
		t.Errorf("freed task status = %s, want Todo without T1 completing", got)
	}

	if err := c.RemoveDependency(ctx, dep.ID); !errors.Is(err, graph.ErrDependencyNotFound) {
		t.Errorf("second removal error = %v, want ErrDependencyNotFound", err)
	}
}

func TestRemoveDependencyKeepsRemainingGates(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusTodo)
	t2 := seedTask(t, st, "T2", task.StatusTodo)
	t3 := seedTask(t, st, "T3", task.StatusTodo)
	first, err := c.CreateDependency(ctx, t1.ID, t3.ID, graph.KindFinishToStart)
	if err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}
	if _, err := c.CreateDependency(ctx, t2.ID, t3.ID, graph.KindFinishToStart); err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}

	if err := c.RemoveDependency(ctx, first.ID); err != nil {
		t.Fatalf("RemoveDependency() error = %v", err)
	}
	if got := statusOf(t, st, t3.ID); got != task.StatusBlocked {
		t.Errorf("status = %s, want Blocked while the second gate remains", got)
	}
}

func TestReAddingDependencyReBlocks(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusTodo)
	t2 := seedTask(t, st, "T2", task.StatusTodo)
	dep, err := c.CreateDependency(ctx, t1.ID, t2.ID, graph.KindFinishToStart)
	if err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}
	if err := c.RemoveDependency(ctx, dep.ID); err != nil {
		t.Fatalf("RemoveDependency() error = %v", err)
	}
	if got := statusOf(t, st, t2.ID); got != task.StatusTodo {
		t.Fatalf("status = %s, want Todo after removal", got)
	}

	if _, err := c.CreateDependency(ctx, t1.ID, t2.ID, graph.KindFinishToStart); err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}
	if got := statusOf(t, st, t2.ID); got != task.StatusBlocked {
		t.Errorf("status = %s, want Blocked after re-adding the edge", got)
	}
}

func TestNonFinishToStartEdgesDoNotBlock(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusTodo)
	t2 := seedTask(t, st, "T2", task.StatusTodo)
	if _, err := c.CreateDependency(ctx, t1.ID, t2.ID, graph.KindStartToStart); err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}

	if got := statusOf(t, st, t2.ID); got != task.StatusTodo {
		t.Errorf("status = %s, want Todo (StartToStart carries no blocking)", got)
	}
	ok, err := c.CanProceed(ctx, t2.ID)
	if err != nil {
		t.Fatalf("CanProceed() error = %v", err)
	}
	if !ok {
		t.Error("CanProceed() = false, want true for non-gating edge kinds")
	}
}

func TestCanProceed(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusTodo)
	t2 := seedTask(t, st, "T2", task.StatusTodo)
	lone := seedTask(t, st, "Lone", task.StatusTodo)
	if _, err := c.CreateDependency(ctx, t1.ID, t2.ID, graph.KindFinishToStart); err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}

	if ok, _ := c.CanProceed(ctx, lone.ID); !ok {
		t.Error("task without dependencies should always proceed")
	}
	if ok, _ := c.CanProceed(ctx, t2.ID); ok {
		t.Error("task gated by an unfinished predecessor should not proceed")
	}
	if _, err := c.SetStatus(ctx, t1.ID, task.StatusDone); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if ok, _ := c.CanProceed(ctx, t2.ID); !ok {
		t.Error("task should proceed once its predecessor is terminal")
	}
}

func TestOnStatusChangedHook(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusTodo)
	t2 := seedTask(t, st, "T2", task.StatusTodo)
	if _, err := c.CreateDependency(ctx, t1.ID, t2.ID, graph.KindFinishToStart); err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}

	// Simulate an outside writer finishing T1 without going through SetStatus
	done, err := st.GetTask(ctx, t1.ID)
	if err != nil {
		t.Fatalf("failed to get task: %v", err)
	}
	done.Status = task.StatusDone
	task.Normalize(done)
	if err := st.UpdateTask(ctx, done); err != nil {
		t.Fatalf("failed to update task: %v", err)
	}
	if got := statusOf(t, st, t2.ID); got != task.StatusBlocked {
		t.Fatalf("status = %s, want Blocked before the hook runs", got)
	}

	freed, err := c.OnStatusChanged(ctx, t1.ID, task.StatusDone)
	if err != nil {
		t.Fatalf("OnStatusChanged() error = %v", err)
	}
	if len(freed) != 1 || freed[0] != t2.ID {
		t.Errorf("OnStatusChanged() freed %v, want [%s]", freed, t2.ID)
	}
	if got := statusOf(t, st, t2.ID); got != task.StatusTodo {
		t.Errorf("status = %s, want Todo after the hook", got)
	}

	// Non-terminal changes have no downstream effects
	freed, err = c.OnStatusChanged(ctx, t1.ID, task.StatusInProgress)
	if err != nil {
		t.Errorf("OnStatusChanged() error = %v", err)
	}
	if len(freed) != 0 {
		t.Errorf("OnStatusChanged() freed %v for a non-terminal change, want none", freed)
	}
}

func TestSetParent(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	parent := seedTask(t, st, "Parent", task.StatusTodo)
	other := seedTask(t, st, "Other parent", task.StatusTodo)
	child := seedTask(t, st, "Child", task.StatusTodo)

	dep, err := c.SetParent(ctx, child.ID, parent.ID)
	if err != nil {
		t.Fatalf("SetParent() error = %v", err)
	}
	if dep.FromTaskID != parent.ID || dep.ToTaskID != child.ID {
		t.Errorf("parent edge = %s -> %s, want %s -> %s", dep.FromTaskID, dep.ToTaskID, parent.ID, child.ID)
	}
	if dep.Kind != graph.KindFinishToStart {
		t.Errorf("parent edge kind = %s, want FinishToStart", dep.Kind)
	}

	got, err := st.GetTask(ctx, child.ID)
	if err != nil {
		t.Fatalf("failed to get child: %v", err)
	}
	if got.ParentTaskID == nil || *got.ParentTaskID != parent.ID {
		t.Errorf("ParentTaskID = %v, want %s", got.ParentTaskID, parent.ID)
	}
	if got.Status != task.StatusBlocked {
		t.Errorf("child status = %s, want Blocked under an unfinished parent", got.Status)
	}

	t.Run("reparenting replaces the edge", func(t *testing.T) {
		if _, err := c.SetParent(ctx, child.ID, other.ID); err != nil {
			t.Fatalf("SetParent() error = %v", err)
		}
		deps := c.Dependencies(child.ID)
		if len(deps) != 1 || deps[0].FromTaskID != other.ID {
			t.Errorf("child should hold exactly one parent edge from %s, got %v", other.ID, deps)
		}
		got, err := st.GetTask(ctx, child.ID)
		if err != nil {
			t.Fatalf("failed to get child: %v", err)
		}
		if got.ParentTaskID == nil || *got.ParentTaskID != other.ID {
			t.Errorf("ParentTaskID = %v, want %s", got.ParentTaskID, other.ID)
		}
	})

	t.Run("self parent rejected", func(t *testing.T) {
		if _, err := c.SetParent(ctx, child.ID, child.ID); !errors.Is(err, graph.ErrSelfDependency) {
			t.Errorf("error = %v, want ErrSelfDependency", err)
		}
	})

	t.Run("cycle rejected and previous parent kept", func(t *testing.T) {
		// other is child's parent; making child the parent of other's
		// ancestor chain would loop
		if _, err := c.SetParent(ctx, other.ID, child.ID); !errors.Is(err, graph.ErrCycle) {
			t.Fatalf("error = %v, want ErrCycle", err)
		}
		got, err := st.GetTask(ctx, child.ID)
		if err != nil {
			t.Fatalf("failed to get child: %v", err)
		}
		if got.ParentTaskID == nil || *got.ParentTaskID != other.ID {
			t.Errorf("rejected call should keep ParentTaskID = %s, got %v", other.ID, got.ParentTaskID)
		}
	})

	t.Run("clear parent unblocks", func(t *testing.T) {
		if err := c.ClearParent(ctx, child.ID); err != nil {
			t.Fatalf("ClearParent() error = %v", err)
		}
		got, err := st.GetTask(ctx, child.ID)
		if err != nil {
			t.Fatalf("failed to get child: %v", err)
		}
		if got.ParentTaskID != nil {
			t.Errorf("ParentTaskID = %v, want nil", got.ParentTaskID)
		}
		if got.Status != task.StatusTodo {
			t.Errorf("child status = %s, want Todo after clearing parent", got.Status)
		}
		if len(c.Dependencies(child.ID)) != 0 {
			t.Error("parent edge should be gone")
		}
	})
}

func TestUpdateTask(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusTodo)
	t2 := seedTask(t, st, "T2", task.StatusTodo)
	if _, err := c.CreateDependency(ctx, t1.ID, t2.ID, graph.KindFinishToStart); err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}

	t.Run("field edit", func(t *testing.T) {
		edit := t1.Clone()
		edit.Title = "T1 renamed"
		edit.EstimatedHours = 8
		updated, err := c.UpdateTask(ctx, edit)
		if err != nil {
			t.Fatalf("UpdateTask() error = %v", err)
		}
		if updated.Title != "T1 renamed" {
			t.Errorf("title = %s, want renamed", updated.Title)
		}
	})

	t.Run("created at immutable", func(t *testing.T) {
		edit := t1.Clone()
		edit.CreatedAt = edit.CreatedAt.Add(time.Hour)
		if _, err := c.UpdateTask(ctx, edit); !errors.Is(err, task.ErrCreatedAtChanged) {
			t.Errorf("error = %v, want ErrCreatedAtChanged", err)
		}
	})

	t.Run("status change propagates", func(t *testing.T) {
		current, err := st.GetTask(ctx, t1.ID)
		if err != nil {
			t.Fatalf("failed to get task: %v", err)
		}
		current.Status = task.StatusDone
		if _, err := c.UpdateTask(ctx, current); err != nil {
			t.Fatalf("UpdateTask() error = %v", err)
		}
		if got := statusOf(t, st, t2.ID); got != task.StatusTodo {
			t.Errorf("dependent status = %s, want Todo", got)
		}
	})
}

func TestDeleteTaskFreesDependents(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusTodo)
	t2 := seedTask(t, st, "T2", task.StatusTodo)
	if _, err := c.CreateDependency(ctx, t1.ID, t2.ID, graph.KindFinishToStart); err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}

	if err := c.DeleteTask(ctx, t1.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}

	if _, err := st.GetTask(ctx, t1.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("deleted task lookup error = %v, want ErrNotFound", err)
	}
	if got := statusOf(t, st, t2.ID); got != task.StatusTodo {
		t.Errorf("dependent status = %s, want Todo after predecessor deleted", got)
	}
	if len(c.Dependencies(t2.ID)) != 0 {
		t.Error("edges touching the deleted task should be gone")
	}

	if err := c.DeleteTask(ctx, t1.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestRestoreAndReconcile(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusDone)
	t2 := seedTask(t, st, "T2", task.StatusBlocked)
	t3 := seedTask(t, st, "T3", task.StatusTodo)
	t4 := seedTask(t, st, "T4", task.StatusTodo)

	// Persisted edges from a previous run: T2 waits on finished T1 (stale
	// Blocked), T4 waits on unfinished T3 (stale Todo)
	if err := st.SaveDependency(ctx, graph.NewDependency(t1.ID, t2.ID, graph.KindFinishToStart)); err != nil {
		t.Fatalf("failed to save dependency: %v", err)
	}
	if err := st.SaveDependency(ctx, graph.NewDependency(t3.ID, t4.ID, graph.KindFinishToStart)); err != nil {
		t.Fatalf("failed to save dependency: %v", err)
	}

	deps, err := st.ListDependencies(ctx)
	if err != nil {
		t.Fatalf("failed to list dependencies: %v", err)
	}
	c.Restore(deps)
	if len(c.Edges()) != 2 {
		t.Fatalf("expected 2 restored edges, got %d", len(c.Edges()))
	}

	if err := c.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if got := statusOf(t, st, t2.ID); got != task.StatusTodo {
		t.Errorf("stale Blocked task = %s, want Todo", got)
	}
	if got := statusOf(t, st, t4.ID); got != task.StatusBlocked {
		t.Errorf("stale Todo task = %s, want Blocked", got)
	}
}

func TestRestoreSkipsCorruptEdges(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	t1 := seedTask(t, st, "T1", task.StatusTodo)
	t2 := seedTask(t, st, "T2", task.StatusTodo)

	// The store's uniqueness is per direction, so opposing rows can exist
	// after a crash even though together they form a loop
	if err := st.SaveDependency(ctx, graph.NewDependency(t1.ID, t2.ID, graph.KindFinishToStart)); err != nil {
		t.Fatalf("failed to save dependency: %v", err)
	}
	if err := st.SaveDependency(ctx, graph.NewDependency(t2.ID, t1.ID, graph.KindFinishToStart)); err != nil {
		t.Fatalf("failed to save dependency: %v", err)
	}

	deps, err := st.ListDependencies(ctx)
	if err != nil {
		t.Fatalf("failed to list dependencies: %v", err)
	}
	c.Restore(deps)

	if got := len(c.Edges()); got != 1 {
		t.Errorf("expected 1 surviving edge after skipping the loop closer, got %d", got)
	}
}

func TestOrderAndCriticalPath(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	a := seedTask(t, st, "A", task.StatusTodo)
	b := seedTask(t, st, "B", task.StatusTodo)
	last := seedTask(t, st, "C", task.StatusTodo)
	a.EstimatedHours, b.EstimatedHours, last.EstimatedHours = 1, 2, 3
	for _, tk := range []*task.Task{a, b, last} {
		if err := st.SaveTask(ctx, tk); err != nil {
			t.Fatalf("failed to save task: %v", err)
		}
	}
	if _, err := c.CreateDependency(ctx, a.ID, b.ID, graph.KindFinishToStart); err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}
	if _, err := c.CreateDependency(ctx, b.ID, last.ID, graph.KindFinishToStart); err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}

	order, err := c.Order(ctx)
	if err != nil {
		t.Fatalf("Order() error = %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("order length = %d, want 3", len(order))
	}
	pos := make(map[uuid.UUID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos[a.ID] > pos[b.ID] || pos[b.ID] > pos[last.ID] {
		t.Errorf("order %v does not respect the chain", order)
	}

	path, err := c.CriticalPath(ctx)
	if err != nil {
		t.Fatalf("CriticalPath() error = %v", err)
	}
	want := []uuid.UUID{a.ID, b.ID, last.ID}
	if len(path) != len(want) {
		t.Fatalf("critical path length = %d, want %d", len(path), len(want))
	}
	for i := range want {
		if path[i] != want[i] {
			t.Errorf("critical path[%d] = %s, want %s", i, path[i], want[i])
		}
	}
}

func TestConcurrentCompletionsUnblockAll(t *testing.T) {
	c, st, _ := testCoordinator(t)
	ctx := context.Background()

	const pairs = 16
	roots := make([]*task.Task, pairs)
	dependents := make([]*task.Task, pairs)
	for i := range roots {
		roots[i] = seedTask(t, st, fmt.Sprintf("root %d", i), task.StatusTodo)
		dependents[i] = seedTask(t, st, fmt.Sprintf("dependent %d", i), task.StatusTodo)
		if _, err := c.CreateDependency(ctx, roots[i].ID, dependents[i].ID, graph.KindFinishToStart); err != nil {
			t.Fatalf("CreateDependency() error = %v", err)
		}
	}

	var g errgroup.Group
	for i := range roots {
		id := roots[i].ID
		g.Go(func() error {
			if _, err := c.SetStatus(ctx, id, task.StatusInProgress); err != nil {
				return err
			}
			_, err := c.SetStatus(ctx, id, task.StatusDone)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent completions failed: %v", err)
	}

	for i := range dependents {
		if got := statusOf(t, st, dependents[i].ID); got != task.StatusTodo {
			t.Errorf("dependent %d status = %s, want Todo", i, got)
		}
	}
}
