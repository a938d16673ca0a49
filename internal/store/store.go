// Package store persists tasks, dependency edges, and recurring templates
// in SQLite. The workflow engine consumes the narrow TaskStore interface;
// commands that hydrate or administer the full dataset use Store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cpaika/depflow/internal/graph"
	"github.com/cpaika/depflow/internal/recurring"
	"github.com/cpaika/depflow/internal/task"
)

// ErrNotFound is returned when a task, dependency, or template does not
// exist. Match with errors.Is.
var ErrNotFound = errors.New("not found")

// Filters narrows ListTasks results. Zero-value fields are ignored.
type Filters struct {
	Status             *task.Status
	AssignedResourceID *uuid.UUID
	GoalID             *uuid.UUID
	Overdue            bool
	Limit              int
}

// TaskStore is the slice of persistence the workflow engine needs: reading
// tasks, writing status changes, and persisting dependency edges.
type TaskStore interface {
	GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error)
	UpdateTask(ctx context.Context, t *task.Task) error
	DeleteTask(ctx context.Context, id uuid.UUID) error
	ListTasks(ctx context.Context, f Filters) ([]*task.Task, error)
	SaveDependency(ctx context.Context, dep *graph.Dependency) error
	DeleteDependency(ctx context.Context, id uuid.UUID) error
}

// Store is the full persistence interface.
type Store interface {
	TaskStore

	SaveTask(ctx context.Context, t *task.Task) error

	ListDependencies(ctx context.Context) ([]*graph.Dependency, error)

	SaveTemplate(ctx context.Context, tpl *recurring.Template) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*recurring.Template, error)
	ListTemplates(ctx context.Context, activeOnly bool) ([]*recurring.Template, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID) error

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys, and busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	// Create parent directories
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// Open SQLite with connection string for WAL mode, busy timeout.
	// Foreign keys go through _pragma so every pooled connection enables them.
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Allow 2 connections: one for primary queries, one for subqueries
	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewMemoryStore creates an in-memory SQLite store for testing.
// Uses a shared cache so multiple connections see the same database.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	// Use file::memory:?cache=shared to allow multiple connections to the same in-memory DB
	connStr := "file::memory:?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	// Allow 2 connections for subquery parallelism
	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
