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

// CreateIntegration inserts a new integration.
func (s *Store) CreateIntegration(ctx context.Context, in *envoy.Integration) error {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	in.CreatedAt, in.UpdatedAt = now, now

	schema, err := json.Marshal(in.ConfigSchema)
	if err != nil {
		return fmt.Errorf("store: marshal config schema: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO integrations (id, name, description, config_schema, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.Name, in.Description, string(schema), in.Enabled, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("store: create integration: %w", err)
	}
	return nil
}

func scanIntegration(row interface {
	Scan(dest ...any) error
}) (*envoy.Integration, error) {
	var in envoy.Integration
	var schema string
	if err := row.Scan(&in.ID, &in.Name, &in.Description, &schema, &in.Enabled, &in.CreatedAt, &in.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(schema), &in.ConfigSchema); err != nil {
		in.ConfigSchema = nil
	}
	return &in, nil
}

// GetIntegration fetches an integration by name.
func (s *Store) GetIntegration(ctx context.Context, name string) (*envoy.Integration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, config_schema, enabled, created_at, updated_at FROM integrations WHERE name = ?`, name)
	in, err := scanIntegration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get integration: %w", err)
	}
	return in, nil
}

// ListIntegrations returns every integration.
func (s *Store) ListIntegrations(ctx context.Context) ([]*envoy.Integration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, config_schema, enabled, created_at, updated_at FROM integrations ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list integrations: %w", err)
	}
	defer rows.Close()

	var out []*envoy.Integration
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan integration: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// DeleteIntegration removes an integration and, by ON DELETE CASCADE, its tools.
func (s *Store) DeleteIntegration(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM integrations WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("store: delete integration: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIntegrationTools returns the custom tools owned by a given integration ID.
func (s *Store) ListIntegrationTools(ctx context.Context, integrationID string) ([]*envoy.CustomTool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, input_schema, code, enabled, COALESCE(integration_id, ''), created_at, updated_at
		 FROM custom_tools WHERE integration_id = ? ORDER BY name ASC`, integrationID)
	if err != nil {
		return nil, fmt.Errorf("store: list integration tools: %w", err)
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
