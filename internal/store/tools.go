package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/envoyrun/envoy/pkg/envoy"
)

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
// modernc.org/sqlite surfaces this as a plain error whose message contains
// "UNIQUE constraint failed"; matching on that text avoids depending on the
// cgo-based mattn/go-sqlite3 driver purely for its typed error values.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

// CreateTool inserts a new custom tool. Returns ErrAlreadyExists if the name is
// already taken (CustomTool.Name is globally unique per §3).
func (s *Store) CreateTool(ctx context.Context, t *envoy.CustomTool) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	var integrationID any
	if t.IntegrationID != "" {
		integrationID = t.IntegrationID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO custom_tools (id, name, description, input_schema, code, enabled, integration_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, t.InputSchema, t.Code, t.Enabled, integrationID, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("store: create tool: %w", err)
	}
	return nil
}

// GetTool fetches a custom tool by name.
func (s *Store) GetTool(ctx context.Context, name string) (*envoy.CustomTool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, input_schema, code, enabled, COALESCE(integration_id, ''), created_at, updated_at
		 FROM custom_tools WHERE name = ?`, name)
	var t envoy.CustomTool
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.InputSchema, &t.Code, &t.Enabled, &t.IntegrationID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get tool: %w", err)
	}
	return &t, nil
}

// ListTools returns every custom tool (standalone and integration-scoped).
func (s *Store) ListTools(ctx context.Context) ([]*envoy.CustomTool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, input_schema, code, enabled, COALESCE(integration_id, ''), created_at, updated_at
		 FROM custom_tools ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list tools: %w", err)
	}
	defer rows.Close()

	var out []*envoy.CustomTool
	for rows.Next() {
		var t envoy.CustomTool
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.InputSchema, &t.Code, &t.Enabled, &t.IntegrationID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan tool: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// UpdateTool applies a partial update. Each *string/*bool field is applied only
// when non-nil, matching the meta-tool's "description?, input_schema?, code?,
// enabled?" conditional-update contract (§4.I).
func (s *Store) UpdateTool(ctx context.Context, name string, description, inputSchema, code *string, enabled *bool) error {
	existing, err := s.GetTool(ctx, name)
	if err != nil {
		return err
	}
	if description != nil {
		existing.Description = *description
	}
	if inputSchema != nil {
		existing.InputSchema = *inputSchema
	}
	if code != nil {
		existing.Code = *code
	}
	if enabled != nil {
		existing.Enabled = *enabled
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE custom_tools SET description = ?, input_schema = ?, code = ?, enabled = ?, updated_at = ? WHERE name = ?`,
		existing.Description, existing.InputSchema, existing.Code, existing.Enabled, time.Now().UTC(), name)
	if err != nil {
		return fmt.Errorf("store: update tool: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTool removes a custom tool by name.
func (s *Store) DeleteTool(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM custom_tools WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("store: delete tool: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
