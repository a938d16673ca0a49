package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cpaika/depflow/internal/graph"
)

// SaveDependency inserts or updates a dependency edge. The unique
// (from_task_id, to_task_id) constraint rejects a second edge between the
// same pair under a different id.
func (s *SQLiteStore) SaveDependency(ctx context.Context, dep *graph.Dependency) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dependencies (id, from_task_id, to_task_id, kind, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			from_task_id = excluded.from_task_id,
			to_task_id = excluded.to_task_id,
			kind = excluded.kind
	`, dep.ID.String(), dep.FromTaskID.String(), dep.ToTaskID.String(),
		string(dep.Kind), formatTime(dep.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save dependency %s -> %s: %w",
			dep.FromTaskID, dep.ToTaskID, err)
	}

	return nil
}

// DeleteDependency removes a dependency edge by id.
func (s *SQLiteStore) DeleteDependency(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dependencies WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete dependency: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: dependency %s", ErrNotFound, id)
	}

	return nil
}

// ListDependencies returns all dependency edges, oldest first.
func (s *SQLiteStore) ListDependencies(ctx context.Context) ([]*graph.Dependency, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_task_id, to_task_id, kind, created_at
		FROM dependencies
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	var deps []*graph.Dependency
	for rows.Next() {
		var id, from, to, kind, createdAt string
		if err := rows.Scan(&id, &from, &to, &kind, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}

		dep := &graph.Dependency{}
		if dep.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid dependency id %q: %w", id, err)
		}
		if dep.FromTaskID, err = uuid.Parse(from); err != nil {
			return nil, fmt.Errorf("invalid task id %q: %w", from, err)
		}
		if dep.ToTaskID, err = uuid.Parse(to); err != nil {
			return nil, fmt.Errorf("invalid task id %q: %w", to, err)
		}
		if dep.Kind, err = graph.ParseKind(kind); err != nil {
			return nil, err
		}
		if dep.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}

		deps = append(deps, dep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependencies: %w", err)
	}

	return deps, nil
}
