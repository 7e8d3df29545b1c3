package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/envoyrun/envoy/pkg/envoy"
)

// CreateTask inserts a new scheduled task.
func (s *Store) CreateTask(ctx context.Context, t *envoy.ScheduledTask) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_tasks (id, name, description, cron, enabled, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, t.Cron, t.Enabled, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("store: create task: %w", err)
	}
	return nil
}

// GetTask fetches a scheduled task by name.
func (s *Store) GetTask(ctx context.Context, name string) (*envoy.ScheduledTask, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, cron, enabled, created_at, updated_at FROM scheduled_tasks WHERE name = ?`, name)
	var t envoy.ScheduledTask
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Cron, &t.Enabled, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get task: %w", err)
	}
	return &t, nil
}

// GetTaskByID fetches a scheduled task by id, used where the caller already
// holds the id (e.g. the scheduler's job registry) rather than the name.
func (s *Store) GetTaskByID(ctx context.Context, id string) (*envoy.ScheduledTask, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, cron, enabled, created_at, updated_at FROM scheduled_tasks WHERE id = ?`, id)
	var t envoy.ScheduledTask
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Cron, &t.Enabled, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get task by id: %w", err)
	}
	return &t, nil
}

// ListTasks returns every scheduled task.
func (s *Store) ListTasks(ctx context.Context) ([]*envoy.ScheduledTask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, cron, enabled, created_at, updated_at FROM scheduled_tasks ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	defer rows.Close()

	var out []*envoy.ScheduledTask
	for rows.Next() {
		var t envoy.ScheduledTask
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Cron, &t.Enabled, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan task: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// UpdateTask applies a partial update to a scheduled task.
func (s *Store) UpdateTask(ctx context.Context, name string, description, cron *string, enabled *bool) (*envoy.ScheduledTask, error) {
	existing, err := s.GetTask(ctx, name)
	if err != nil {
		return nil, err
	}
	if description != nil {
		existing.Description = *description
	}
	if cron != nil {
		existing.Cron = *cron
	}
	if enabled != nil {
		existing.Enabled = *enabled
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE scheduled_tasks SET description = ?, cron = ?, enabled = ?, updated_at = ? WHERE name = ?`,
		existing.Description, existing.Cron, existing.Enabled, time.Now().UTC(), name)
	if err != nil {
		return nil, fmt.Errorf("store: update task: %w", err)
	}
	return existing, nil
}

// DeleteTask removes a scheduled task and, by ON DELETE CASCADE, its runs.
func (s *Store) DeleteTask(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_tasks WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("store: delete task: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
