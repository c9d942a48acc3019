// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists vault sessions and messages.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/gyankosh/internal/model"
)

// =============================================================================
// SCHEMA
// =============================================================================

// SQLite schema for the conversation vault
const schemaSQL = `
-- Sessions table: one row per conversation thread
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    owner_id   TEXT NOT NULL,
    title      TEXT NOT NULL,
    created_at INTEGER NOT NULL,  -- Unix nanoseconds
    updated_at INTEGER NOT NULL   -- Unix nanoseconds
);

CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner_id, updated_at);

-- Messages table: session history, ordered by seq within a session
CREATE TABLE IF NOT EXISTS messages (
    id           TEXT PRIMARY KEY,
    session_id   TEXT NOT NULL,
    seq          INTEGER NOT NULL,
    role         TEXT NOT NULL,
    content      TEXT NOT NULL,
    document_ref TEXT NOT NULL DEFAULT '',
    created_at   INTEGER NOT NULL, -- Unix nanoseconds
    FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);
`

// =============================================================================
// SQLITE STORE
// =============================================================================

// SQLiteStore is the embedded single-user vault backend.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (creating if necessary) the vault database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON", // Cascade deletes depend on this
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// =============================================================================
// SESSIONS
// =============================================================================

// CreateSession creates a session owned by ownerID.
func (s *SQLiteStore) CreateSession(ctx context.Context, ownerID, title string) (*model.Session, error) {
	if ownerID == "" {
		return nil, ErrUnauthenticated
	}
	if title == "" {
		title = model.DefaultTitle
	}

	now := time.Now()
	session := &model.Session{
		ID:        model.NewSessionID(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, owner_id, title, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.OwnerID, session.Title,
		now.UnixNano(), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return session, nil
}

// GetSession returns a session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	var (
		session            model.Session
		createdNS, updatedNS int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, created_at, updated_at
		 FROM sessions WHERE id = ?`, sessionID,
	).Scan(&session.ID, &session.OwnerID, &session.Title, &createdNS, &updatedNS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	session.CreatedAt = time.Unix(0, createdNS)
	session.UpdatedAt = time.Unix(0, updatedNS)
	return &session, nil
}

// ListSessions returns the owner's sessions, most recently updated first.
func (s *SQLiteStore) ListSessions(ctx context.Context, ownerID string) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, title, created_at, updated_at
		 FROM sessions WHERE owner_id = ?
		 ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var (
			session              model.Session
			createdNS, updatedNS int64
		)
		if err := rows.Scan(&session.ID, &session.OwnerID, &session.Title, &createdNS, &updatedNS); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		session.CreatedAt = time.Unix(0, createdNS)
		session.UpdatedAt = time.Unix(0, updatedNS)
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// RenameSession updates a session title.
func (s *SQLiteStore) RenameSession(ctx context.Context, sessionID, title string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now().UnixNano(), sessionID)
	if err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	return checkFound(res, ErrSessionNotFound)
}

// DeleteSession removes a session and, via the cascade, its messages.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return checkFound(res, ErrSessionNotFound)
}

// =============================================================================
// MESSAGES
// =============================================================================

// LoadMessages returns a session's messages ordered by seq.
func (s *SQLiteStore) LoadMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, seq, role, content, document_ref, created_at
		 FROM messages WHERE session_id = ?
		 ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var (
			msg       model.Message
			createdNS int64
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Seq, &msg.Role, &msg.Content, &msg.DocumentRef, &createdNS); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt = time.Unix(0, createdNS)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// AppendMessage inserts a message with store-assigned id, seq, and
// timestamp, and bumps the session's updated_at.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID string, role model.Role, content, documentRef string) (*model.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sessions WHERE id = ?`, sessionID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	if exists == 0 {
		return nil, ErrSessionNotFound
	}

	now := time.Now()
	msg := &model.Message{
		ID:          model.NewMessageID(),
		SessionID:   sessionID,
		Role:        role,
		Content:     content,
		DocumentRef: documentRef,
		CreatedAt:   now,
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO messages (id, session_id, seq, role, content, document_ref, created_at)
		 VALUES (?, ?, COALESCE((SELECT MAX(seq) FROM messages WHERE session_id = ?), 0) + 1, ?, ?, ?, ?)
		 RETURNING seq`,
		msg.ID, sessionID, sessionID, role.String(), content, documentRef, now.UnixNano(),
	).Scan(&msg.Seq)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`,
		now.UnixNano(), sessionID); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// UpdateMessageContent overwrites a message's content. Last write wins.
func (s *SQLiteStore) UpdateMessageContent(ctx context.Context, messageID, content string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = ? WHERE id = ?`,
		content, messageID)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return checkFound(res, ErrMessageNotFound)
}

// checkFound maps a zero-row update/delete to the given sentinel.
func checkFound(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)
