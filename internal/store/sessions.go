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

// CreateSession inserts a new session with the default title, generating an ID
// if one isn't supplied.
func (s *Store) CreateSession(ctx context.Context, id string) (*envoy.Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, conversation_state, created_at, updated_at) VALUES (?, 'New chat', '[]', ?, ?)`,
		id, now, now)
	if err != nil {
		return nil, fmt.Errorf("store: create session: %w", err)
	}
	return &envoy.Session{ID: id, Title: "New chat", CreatedAt: now, UpdatedAt: now}, nil
}

// GetSession fetches a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*envoy.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, created_at, updated_at FROM sessions WHERE id = ?`, id)
	var sess envoy.Session
	if err := row.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	return &sess, nil
}

// ListSessions returns all sessions, most recently updated first.
func (s *Store) ListSessions(ctx context.Context) ([]*envoy.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, created_at, updated_at FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []*envoy.Session
	for rows.Next() {
		var sess envoy.Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		out = append(out, &sess)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and, by ON DELETE CASCADE, its messages.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTitleIfDefault sets a session's title from content unless it has already
// been set away from the default (first-user-message title assignment, §3).
func (s *Store) SetTitleIfDefault(ctx context.Context, id, content string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ?, updated_at = ? WHERE id = ? AND title = 'New chat'`,
		envoy.TitleFromMessage(content), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store: set title: %w", err)
	}
	_ = res
	return nil
}

// GetConversationState returns the authoritative structured message list for a
// session. A missing or unparseable column degrades to an empty slice, per
// spec's tolerance for corrupt state rather than raising an error.
func (s *Store) GetConversationState(ctx context.Context, sessionID string) ([]envoy.ConvTurn, error) {
	row := s.db.QueryRowContext(ctx, `SELECT conversation_state FROM sessions WHERE id = ?`, sessionID)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get conversation state: %w", err)
	}
	var turns []envoy.ConvTurn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil, nil // corrupt/unparseable: tolerate as empty
	}
	return turns, nil
}

// SetConversationState persists the full structured message list for a
// session. The write is all-or-nothing: the column either reflects the
// previous turn or this one, never a partial turn.
func (s *Store) SetConversationState(ctx context.Context, sessionID string, turns []envoy.ConvTurn) error {
	raw, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("store: marshal conversation state: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET conversation_state = ?, updated_at = ? WHERE id = ?`,
		string(raw), time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("store: set conversation state: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage appends one transcript row (the secondary append-only log used
// only for the UI's reopened-session history listing).
func (s *Store) AppendMessage(ctx context.Context, msg *envoy.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}
	return nil
}

// ListMessages returns a session's transcript in chronological order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]*envoy.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY created_at ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	var out []*envoy.Message
	for rows.Next() {
		var m envoy.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
