// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for vault sessions and messages.
package model

import (
	"time"

	"github.com/jeranaias/gyankosh/internal/util"
)

// =============================================================================
// SESSION TYPE
// =============================================================================

// DefaultTitle is used until the first user message supplies one.
const DefaultTitle = "New chat"

// TitlePreviewRunes is the maximum title length derived from a message.
const TitlePreviewRunes = 50

// Session is one conversation thread in the vault. A session owns its
// messages; deleting the session deletes them.
type Session struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TitleFromContent derives a session title from message content:
// a single-line, rune-safe preview.
func TitleFromContent(content string) string {
	title := util.Preview(content, TitlePreviewRunes)
	if title == "" {
		return DefaultTitle
	}
	return title
}

// IsUntitled reports whether the session still carries the default title.
func (s *Session) IsUntitled() bool {
	return s.Title == "" || s.Title == DefaultTitle
}
