package store

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		assigned_resource_id TEXT,
		goal_id TEXT,
		parent_task_id TEXT,
		estimated_hours REAL NOT NULL DEFAULT 0,
		actual_hours REAL NOT NULL DEFAULT 0,
		scheduled_date TEXT,
		due_date TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_goal_id ON tasks(goal_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);

	CREATE TABLE IF NOT EXISTS dependencies (
		id TEXT PRIMARY KEY,
		from_task_id TEXT NOT NULL,
		to_task_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (from_task_id, to_task_id),
		FOREIGN KEY (from_task_id) REFERENCES tasks(id) ON DELETE CASCADE,
		FOREIGN KEY (to_task_id) REFERENCES tasks(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_dependencies_from ON dependencies(from_task_id);
	CREATE INDEX IF NOT EXISTS idx_dependencies_to ON dependencies(to_task_id);

	CREATE TABLE IF NOT EXISTS recurring_templates (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		assigned_resource_id TEXT,
		estimated_hours REAL NOT NULL DEFAULT 0,
		rule TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		last_generated TEXT,
		next_occurrence TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_recurring_templates_active ON recurring_templates(active);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
