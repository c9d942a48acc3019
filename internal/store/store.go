// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists vault sessions and messages.
package store

import (
	"context"
	"errors"

	"github.com/jeranaias/gyankosh/internal/config"
	"github.com/jeranaias/gyankosh/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUnauthenticated is returned when a write requires a vault owner
	// and none is present (vault locked or never initialized).
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrSessionNotFound is returned for operations on unknown sessions.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMessageNotFound is returned for updates to unknown messages.
	ErrMessageNotFound = errors.New("message not found")

	// ErrInvalidRole is returned when appending a message whose role is
	// neither user nor assistant.
	ErrInvalidRole = errors.New("invalid message role")
)

// =============================================================================
// STORE CONTRACT
// =============================================================================

// Store is the durable source of truth for conversation state.
//
// Implementations must make every successful write durable before
// returning; callers rely on that to survive process restarts between
// streaming checkpoints.
type Store interface {
	// CreateSession creates a session owned by ownerID. An empty ownerID
	// fails with ErrUnauthenticated.
	CreateSession(ctx context.Context, ownerID, title string) (*model.Session, error)

	// GetSession returns a session by id, or ErrSessionNotFound.
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)

	// ListSessions returns the owner's sessions, most recently updated
	// first.
	ListSessions(ctx context.Context, ownerID string) ([]model.Session, error)

	// RenameSession updates a session title, or ErrSessionNotFound.
	RenameSession(ctx context.Context, sessionID, title string) error

	// DeleteSession removes a session and all of its messages.
	DeleteSession(ctx context.Context, sessionID string) error

	// LoadMessages returns a session's messages in display order.
	// An unknown or empty session yields an empty slice, not an error;
	// the caller cannot distinguish the two and must not need to.
	LoadMessages(ctx context.Context, sessionID string) ([]model.Message, error)

	// AppendMessage inserts a message and returns it with the
	// store-assigned id, seq, and timestamp. The id is the stable key
	// for later UpdateMessageContent calls.
	AppendMessage(ctx context.Context, sessionID string, role model.Role, content, documentRef string) (*model.Message, error)

	// UpdateMessageContent overwrites a message's content. Last write
	// wins; calling repeatedly with growing snapshots of the same text
	// is the expected checkpointing pattern.
	UpdateMessageContent(ctx context.Context, messageID, content string) error

	// Close releases the underlying database handles.
	Close() error
}

// Open returns the Store for the configured backend: PostgreSQL when a
// DSN is set, the embedded SQLite vault otherwise.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.UsesPostgres() {
		return NewPostgres(ctx, cfg.Vault.PostgresDSN)
	}
	path, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	return NewSQLite(path)
}
