package store

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/cpaika/depflow/internal/graph"
	"github.com/cpaika/depflow/internal/recurring"
	"github.com/cpaika/depflow/internal/task"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 100ms)
	MaxInterval         time.Duration // Maximum retry interval (default 10s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 2min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// ResilientStore wraps a Store with exponential backoff retry and circuit
// breaker protection. Transient failures (locked database, I/O hiccups) are
// retried; missing rows and cancelled contexts are not.
type ResilientStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker
	retry RetryConfig
}

// NewResilientStore wraps the given store.
func NewResilientStore(inner Store, retry RetryConfig, logger *log.Logger) *ResilientStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "store",
		MaxRequests: 3, // Allow 3 test requests in half-open state
		Interval:    0, // Don't clear counts automatically
		Timeout:     30 * time.Second, // Stay open for 30s before testing recovery
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip circuit after 5 consecutive failures
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Missing rows and cancellation are results, not storage failures
			if err == nil {
				return true
			}
			if errors.Is(err, ErrNotFound) {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})

	return &ResilientStore{
		inner: inner,
		cb:    cb,
		retry: retry,
	}
}

// execute runs op with circuit breaker protection and exponential backoff.
func (r *ResilientStore) execute(ctx context.Context, op func() error) error {
	operation := func() error {
		// Check context first - fail fast if cancelled
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		_, err := r.cb.Execute(func() (interface{}, error) {
			return nil, op()
		})
		if err != nil {
			// Circuit is open - don't retry
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}

			// A missing row will still be missing on the next attempt
			if errors.Is(err, ErrNotFound) {
				return backoff.Permanent(err)
			}

			// Context cancelled - stop retrying
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}

			// Other errors will be retried
			return err
		}

		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.retry.InitialInterval
	policy.MaxInterval = r.retry.MaxInterval
	policy.MaxElapsedTime = r.retry.MaxElapsedTime
	policy.Multiplier = r.retry.Multiplier
	policy.RandomizationFactor = r.retry.RandomizationFactor

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

func (r *ResilientStore) GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	var t *task.Task
	err := r.execute(ctx, func() error {
		var opErr error
		t, opErr = r.inner.GetTask(ctx, id)
		return opErr
	})
	return t, err
}

func (r *ResilientStore) UpdateTask(ctx context.Context, t *task.Task) error {
	return r.execute(ctx, func() error {
		return r.inner.UpdateTask(ctx, t)
	})
}

func (r *ResilientStore) ListTasks(ctx context.Context, f Filters) ([]*task.Task, error) {
	var tasks []*task.Task
	err := r.execute(ctx, func() error {
		var opErr error
		tasks, opErr = r.inner.ListTasks(ctx, f)
		return opErr
	})
	return tasks, err
}

func (r *ResilientStore) SaveTask(ctx context.Context, t *task.Task) error {
	return r.execute(ctx, func() error {
		return r.inner.SaveTask(ctx, t)
	})
}

func (r *ResilientStore) DeleteTask(ctx context.Context, id uuid.UUID) error {
	return r.execute(ctx, func() error {
		return r.inner.DeleteTask(ctx, id)
	})
}

func (r *ResilientStore) SaveDependency(ctx context.Context, dep *graph.Dependency) error {
	return r.execute(ctx, func() error {
		return r.inner.SaveDependency(ctx, dep)
	})
}

func (r *ResilientStore) DeleteDependency(ctx context.Context, id uuid.UUID) error {
	return r.execute(ctx, func() error {
		return r.inner.DeleteDependency(ctx, id)
	})
}

func (r *ResilientStore) ListDependencies(ctx context.Context) ([]*graph.Dependency, error) {
	var deps []*graph.Dependency
	err := r.execute(ctx, func() error {
		var opErr error
		deps, opErr = r.inner.ListDependencies(ctx)
		return opErr
	})
	return deps, err
}

func (r *ResilientStore) SaveTemplate(ctx context.Context, tpl *recurring.Template) error {
	return r.execute(ctx, func() error {
		return r.inner.SaveTemplate(ctx, tpl)
	})
}

func (r *ResilientStore) GetTemplate(ctx context.Context, id uuid.UUID) (*recurring.Template, error) {
	var tpl *recurring.Template
	err := r.execute(ctx, func() error {
		var opErr error
		tpl, opErr = r.inner.GetTemplate(ctx, id)
		return opErr
	})
	return tpl, err
}

func (r *ResilientStore) ListTemplates(ctx context.Context, activeOnly bool) ([]*recurring.Template, error) {
	var templates []*recurring.Template
	err := r.execute(ctx, func() error {
		var opErr error
		templates, opErr = r.inner.ListTemplates(ctx, activeOnly)
		return opErr
	})
	return templates, err
}

func (r *ResilientStore) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	return r.execute(ctx, func() error {
		return r.inner.DeleteTemplate(ctx, id)
	})
}

// Close closes the underlying store without retry.
func (r *ResilientStore) Close() error {
	return r.inner.Close()
}
