// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists vault sessions and messages.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeranaias/gyankosh/internal/model"
)

// =============================================================================
// POSTGRES STORE
// =============================================================================

const pgSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	title      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS messages (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq          BIGINT NOT NULL,
	role         TEXT NOT NULL,
	content      TEXT NOT NULL,
	document_ref TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);
`

// PGStore is the PostgreSQL backend for shared vaults.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPostgres connects to the DSN, verifies the connection, and ensures
// the schema exists.
func NewPostgres(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PGStore{db: pool}
	if err := s.createSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) createSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, pgSchemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PGStore) Close() error {
	s.db.Close()
	return nil
}

// =============================================================================
// SESSIONS
// =============================================================================

// CreateSession creates a session owned by ownerID.
func (s *PGStore) CreateSession(ctx context.Context, ownerID, title string) (*model.Session, error) {
	if ownerID == "" {
		return nil, ErrUnauthenticated
	}
	if title == "" {
		title = model.DefaultTitle
	}

	session := &model.Session{
		ID:      model.NewSessionID(),
		OwnerID: ownerID,
		Title:   title,
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO sessions (id, owner_id, title)
		 VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		session.ID, ownerID, title,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return session, nil
}

// GetSession returns a session by id.
func (s *PGStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	session := &model.Session{ID: sessionID}

	err := s.db.QueryRow(ctx,
		`SELECT owner_id, title, created_at, updated_at
		 FROM sessions WHERE id = $1`, sessionID,
	).Scan(&session.OwnerID, &session.Title, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	return session, nil
}

// ListSessions returns the owner's sessions, most recently updated first.
func (s *PGStore) ListSessions(ctx context.Context, ownerID string) ([]model.Session, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, owner_id, title, created_at, updated_at
		 FROM sessions WHERE owner_id = $1
		 ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var session model.Session
		if err := rows.Scan(&session.ID, &session.OwnerID, &session.Title, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// RenameSession updates a session title.
func (s *PGStore) RenameSession(ctx context.Context, sessionID, title string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE sessions SET title = $1, updated_at = NOW() WHERE id = $2`,
		title, sessionID)
	if err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteSession removes a session; messages follow via ON DELETE CASCADE.
func (s *PGStore) DeleteSession(ctx context.Context, sessionID string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// =============================================================================
// MESSAGES
// =============================================================================

// LoadMessages returns a session's messages ordered by seq.
func (s *PGStore) LoadMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, session_id, seq, role, content, document_ref, created_at
		 FROM messages WHERE session_id = $1
		 ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Seq, &msg.Role, &msg.Content, &msg.DocumentRef, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// AppendMessage inserts a message with an auto-incremented seq and bumps
// the session's updated_at.
func (s *PGStore) AppendMessage(ctx context.Context, sessionID string, role model.Role, content, documentRef string) (*model.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	defer tx.Rollback(ctx)

	msg := &model.Message{
		ID:          model.NewMessageID(),
		SessionID:   sessionID,
		Role:        role,
		Content:     content,
		DocumentRef: documentRef,
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO messages (id, session_id, seq, role, content, document_ref)
		 VALUES ($1, $2, COALESCE((SELECT MAX(seq) FROM messages WHERE session_id = $2), 0) + 1, $3, $4, $5)
		 RETURNING seq, created_at`,
		msg.ID, sessionID, role.String(), content, documentRef,
	).Scan(&msg.Seq, &msg.CreatedAt)
	if err != nil {
		// A foreign key violation here means the session is gone.
		if isForeignKeyViolation(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("append message: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE sessions SET updated_at = NOW() WHERE id = $1`, sessionID); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// UpdateMessageContent overwrites a message's content. Last write wins.
func (s *PGStore) UpdateMessageContent(ctx context.Context, messageID, content string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE messages SET content = $1 WHERE id = $2`,
		content, messageID)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// isForeignKeyViolation reports whether err is a PostgreSQL foreign key
// violation (SQLSTATE 23503).
func isForeignKeyViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23503"
	}
	return false
}

// Compile-time interface check.
var _ Store = (*PGStore)(nil)
