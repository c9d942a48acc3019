// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for vault sessions and messages.
package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/gyankosh/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// RoleSystem frames gateway requests (continuation seeds, grounding
	// context). System messages are never persisted to the vault.
	RoleSystem Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Gyankosh"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether the role is one of the persistable roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one persisted message in a session.
//
// ID and CreatedAt are assigned by the store at insert time; ID is the
// stable key for checkpoint updates. Seq breaks creation-time ties so
// ordering is deterministic within a session.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`

	// DocumentRef optionally ties the message to a vault document the
	// answer was grounded in. Empty when the exchange was free-form.
	DocumentRef string `json:"document_ref,omitempty"`
}

// Preview returns a single-line truncated preview of the message content.
func (m *Message) Preview(maxRunes int) string {
	return util.Preview(m.Content, maxRunes)
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// EstimateTokens gives a rough token estimate (~4 characters per token).
func (m *Message) EstimateTokens() int {
	return (len(m.Content) + 3) / 4
}

// =============================================================================
// STATISTICS TYPE
// =============================================================================

// Statistics holds timing and token count information for one exchange.
type Statistics struct {
	StartTime      time.Time
	FirstTokenTime time.Time
	EndTime        time.Time

	PromptTokens     int
	CompletionTokens int

	// Derived metrics (computed on Finalize)
	TTFT            time.Duration
	TotalDuration   time.Duration
	TokensPerSecond float64
}

// NewStatistics creates a new Statistics with the start time set.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime: time.Now(),
	}
}

// RecordFirstToken records when the first token was received.
// Subsequent calls are no-ops.
func (s *Statistics) RecordFirstToken() {
	if s.FirstTokenTime.IsZero() {
		s.FirstTokenTime = time.Now()
		s.TTFT = s.FirstTokenTime.Sub(s.StartTime)
	}
}

// Finalize computes the final statistics.
func (s *Statistics) Finalize(tokenCount int) {
	s.EndTime = time.Now()
	s.CompletionTokens = tokenCount
	s.TotalDuration = s.EndTime.Sub(s.StartTime)

	if s.TotalDuration > 0 {
		s.TokensPerSecond = float64(tokenCount) / s.TotalDuration.Seconds()
	}
}

// Format returns a formatted one-line summary of the statistics.
func (s *Statistics) Format() string {
	return fmt.Sprintf("%s | %d tokens | %.1f tok/s | TTFT %dms",
		formatDuration(s.TotalDuration),
		s.CompletionTokens,
		s.TokensPerSecond,
		s.TTFT.Milliseconds())
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// =============================================================================
// ID GENERATION
// =============================================================================

// NewMessageID creates a unique message identifier.
func NewMessageID() string {
	return "msg_" + randomHex(8)
}

// NewSessionID creates a unique session identifier. Sessions use UUIDs
// so shared-vault deployments can merge histories without collisions;
// message ids stay short since they only need to be unique per vault.
func NewSessionID() string {
	return uuid.NewString()
}

// NewOwnerID creates a unique vault owner identifier.
func NewOwnerID() string {
	return "usr_" + randomHex(8)
}

func randomHex(n int) string {
	bytes := make([]byte, n)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
