package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/cpaika/depflow/internal/recurring"
	"github.com/cpaika/depflow/internal/task"
)

// SaveTemplate inserts or updates a recurring template. The recurrence rule
// is stored as a JSON document.
func (s *SQLiteStore) SaveTemplate(ctx context.Context, tpl *recurring.Template) error {
	rule, err := json.Marshal(tpl.Rule)
	if err != nil {
		return fmt.Errorf("failed to encode recurrence rule: %w", err)
	}

	metadata, err := marshalMetadata(tpl.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO recurring_templates (id, title, description, priority, metadata,
			assigned_resource_id, estimated_hours, rule, active,
			last_generated, next_occurrence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			priority = excluded.priority,
			metadata = excluded.metadata,
			assigned_resource_id = excluded.assigned_resource_id,
			estimated_hours = excluded.estimated_hours,
			rule = excluded.rule,
			active = excluded.active,
			last_generated = excluded.last_generated,
			next_occurrence = excluded.next_occurrence,
			updated_at = excluded.updated_at
	`, tpl.ID.String(), tpl.Title, tpl.Description, string(tpl.Priority), metadata,
		nullID(tpl.AssignedResourceID), tpl.EstimatedHours, string(rule), boolToInt(tpl.Active),
		nullTime(tpl.LastGenerated), nullTime(tpl.NextOccurrence),
		formatTime(tpl.CreatedAt), formatTime(tpl.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}

	return nil
}

// GetTemplate retrieves a recurring template by ID.
func (s *SQLiteStore) GetTemplate(ctx context.Context, id uuid.UUID) (*recurring.Template, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, priority, metadata, assigned_resource_id,
			estimated_hours, rule, active, last_generated, next_occurrence,
			created_at, updated_at
		FROM recurring_templates
		WHERE id = ?
	`, id.String())

	tpl, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: template %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query template: %w", err)
	}

	return tpl, nil
}

// ListTemplates returns recurring templates, oldest first. With activeOnly
// set, deactivated templates are skipped.
func (s *SQLiteStore) ListTemplates(ctx context.Context, activeOnly bool) ([]*recurring.Template, error) {
	query := `
		SELECT id, title, description, priority, metadata, assigned_resource_id,
			estimated_hours, rule, active, last_generated, next_occurrence,
			created_at, updated_at
		FROM recurring_templates`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var templates []*recurring.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, tpl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	return templates, nil
}

// DeleteTemplate removes a recurring template.
func (s *SQLiteStore) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recurring_templates WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: template %s", ErrNotFound, id)
	}

	return nil
}

func scanTemplate(row rowScanner) (*recurring.Template, error) {
	tpl := &recurring.Template{}
	var id, priority, metadata, rule string
	var createdAt, updatedAt string
	var active int
	var assignedResource sql.NullString
	var lastGenerated, nextOccurrence sql.NullString

	err := row.Scan(&id, &tpl.Title, &tpl.Description, &priority, &metadata,
		&assignedResource, &tpl.EstimatedHours, &rule, &active,
		&lastGenerated, &nextOccurrence, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if tpl.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid template id %q: %w", id, err)
	}

	parsedPriority, err := task.ParsePriority(priority)
	if err != nil {
		return nil, err
	}
	tpl.Priority = parsedPriority

	if err := json.Unmarshal([]byte(metadata), &tpl.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(rule), &tpl.Rule); err != nil {
		return nil, fmt.Errorf("failed to decode recurrence rule: %w", err)
	}

	tpl.Active = active != 0

	if tpl.AssignedResourceID, err = parseNullID(assignedResource); err != nil {
		return nil, err
	}
	if tpl.LastGenerated, err = parseNullTime(lastGenerated); err != nil {
		return nil, err
	}
	if tpl.NextOccurrence, err = parseNullTime(nextOccurrence); err != nil {
		return nil, err
	}
	if tpl.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if tpl.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return tpl, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
