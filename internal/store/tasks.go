package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cpaika/depflow/internal/task"
)

// timeLayout is RFC 3339 with fixed nanosecond width so stored values sort
// lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const taskColumns = `id, title, description, status, priority, metadata,
	assigned_resource_id, goal_id, parent_task_id, estimated_hours, actual_hours,
	scheduled_date, due_date, completed_at, created_at, updated_at`

// SaveTask inserts or updates a task.
// Uses ON CONFLICT to make saves idempotent; created_at survives updates.
func (s *SQLiteStore) SaveTask(ctx context.Context, t *task.Task) error {
	// Begin transaction with serializable isolation (BEGIN IMMEDIATE)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	metadata, err := marshalMetadata(t.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, status, priority, metadata,
			assigned_resource_id, goal_id, parent_task_id, estimated_hours, actual_hours,
			scheduled_date, due_date, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			status = excluded.status,
			priority = excluded.priority,
			metadata = excluded.metadata,
			assigned_resource_id = excluded.assigned_resource_id,
			goal_id = excluded.goal_id,
			parent_task_id = excluded.parent_task_id,
			estimated_hours = excluded.estimated_hours,
			actual_hours = excluded.actual_hours,
			scheduled_date = excluded.scheduled_date,
			due_date = excluded.due_date,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at
	`, t.ID.String(), t.Title, t.Description, string(t.Status), string(t.Priority), metadata,
		nullID(t.AssignedResourceID), nullID(t.GoalID), nullID(t.ParentTaskID),
		t.EstimatedHours, t.ActualHours,
		nullTime(t.ScheduledDate), nullTime(t.DueDate), nullTime(t.CompletedAt),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = ?
	`, id.String())

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}

	return t, nil
}

// UpdateTask overwrites all mutable fields of an existing task.
func (s *SQLiteStore) UpdateTask(ctx context.Context, t *task.Task) error {
	// Begin transaction with serializable isolation (BEGIN IMMEDIATE)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	metadata, err := marshalMetadata(t.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, status = ?, priority = ?, metadata = ?,
			assigned_resource_id = ?, goal_id = ?, parent_task_id = ?,
			estimated_hours = ?, actual_hours = ?,
			scheduled_date = ?, due_date = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, t.Title, t.Description, string(t.Status), string(t.Priority), metadata,
		nullID(t.AssignedResourceID), nullID(t.GoalID), nullID(t.ParentTaskID),
		t.EstimatedHours, t.ActualHours,
		nullTime(t.ScheduledDate), nullTime(t.DueDate), nullTime(t.CompletedAt),
		formatTime(t.UpdatedAt), t.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	// Check if task was found
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: task %s", ErrNotFound, t.ID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListTasks returns tasks matching the filters, newest first.
func (s *SQLiteStore) ListTasks(ctx context.Context, f Filters) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any

	if f.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*f.Status))
	}
	if f.AssignedResourceID != nil {
		query += " AND assigned_resource_id = ?"
		args = append(args, f.AssignedResourceID.String())
	}
	if f.GoalID != nil {
		query += " AND goal_id = ?"
		args = append(args, f.GoalID.String())
	}
	if f.Overdue {
		query += " AND due_date IS NOT NULL AND due_date < ? AND status NOT IN (?, ?)"
		args = append(args, formatTime(time.Now().UTC()),
			string(task.StatusDone), string(task.StatusCancelled))
	}

	query += " ORDER BY created_at DESC"

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// DeleteTask removes a task. Dependency edges referencing it cascade.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: task %s", ErrNotFound, id)
	}

	return nil
}

// rowScanner lets scanTask work with both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	t := &task.Task{}
	var id, status, priority, metadata string
	var createdAt, updatedAt string
	var assignedResource, goalID, parentID sql.NullString
	var scheduledDate, dueDate, completedAt sql.NullString

	err := row.Scan(&id, &t.Title, &t.Description, &status, &priority, &metadata,
		&assignedResource, &goalID, &parentID, &t.EstimatedHours, &t.ActualHours,
		&scheduledDate, &dueDate, &completedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	t.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid task id %q: %w", id, err)
	}

	parsedStatus, err := task.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	t.Status = parsedStatus

	parsedPriority, err := task.ParsePriority(priority)
	if err != nil {
		return nil, err
	}
	t.Priority = parsedPriority

	if err := json.Unmarshal([]byte(metadata), &t.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	if t.AssignedResourceID, err = parseNullID(assignedResource); err != nil {
		return nil, err
	}
	if t.GoalID, err = parseNullID(goalID); err != nil {
		return nil, err
	}
	if t.ParentTaskID, err = parseNullID(parentID); err != nil {
		return nil, err
	}

	if t.ScheduledDate, err = parseNullTime(scheduledDate); err != nil {
		return nil, err
	}
	if t.DueDate, err = parseNullTime(dueDate); err != nil {
		return nil, err
	}
	if t.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}

	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return t, nil
}

func marshalMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func parseNullID(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", s.String, err)
	}
	return &id, nil
}
