package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/envoyrun/envoy/pkg/envoy"
)

// HasRunningRun reports whether taskID has a TaskRun with status=running,
// the concurrency guard backing §4.H's "at most one run with status=running".
func (s *Store) HasRunningRun(ctx context.Context, taskID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM task_runs WHERE task_id = ? AND status = ? LIMIT 1`, taskID, envoy.RunRunning).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("store: check running run: %w", err)
	}
	return true, nil
}

// StartRun creates a new TaskRun with status=running.
func (s *Store) StartRun(ctx context.Context, taskID string) (*envoy.TaskRun, error) {
	now := time.Now().UTC()
	run := &envoy.TaskRun{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Status:    envoy.RunRunning,
		StartedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_runs (id, task_id, status, result, output, started_at) VALUES (?, ?, ?, '', '[]', ?)`,
		run.ID, run.TaskID, run.Status, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("store: start run: %w", err)
	}
	return run, nil
}

// FinishRun completes a TaskRun with a terminal status, the final assistant
// text, and the serialized structured trace.
func (s *Store) FinishRun(ctx context.Context, runID string, status envoy.RunStatus, result string, trace []envoy.TraceEntry) error {
	out, err := marshalTrace(trace)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE task_runs SET status = ?, result = ?, output = ?, finished_at = ? WHERE id = ?`,
		status, result, out, now, runID)
	if err != nil {
		return fmt.Errorf("store: finish run: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalTrace(trace []envoy.TraceEntry) (string, error) {
	b, err := json.Marshal(trace)
	if err != nil {
		return "", fmt.Errorf("store: marshal trace: %w", err)
	}
	return string(b), nil
}

// ListRuns returns a task's runs, most recent first, bounded by limit (0 means
// no limit).
func (s *Store) ListRuns(ctx context.Context, taskID string, limit int) ([]*envoy.TaskRun, error) {
	query := `SELECT id, task_id, status, result, output, started_at, finished_at FROM task_runs WHERE task_id = ? ORDER BY started_at DESC`
	args := []any{taskID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []*envoy.TaskRun
	for rows.Next() {
		var r envoy.TaskRun
		var finishedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.TaskID, &r.Status, &r.Result, &r.Output, &r.StartedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			r.FinishedAt = &t
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
