// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	core "github.com/jeranaias/gyankosh/internal/chat"
	"github.com/jeranaias/gyankosh/internal/model"
	"github.com/jeranaias/gyankosh/internal/realtime"
)

// =============================================================================
// EXCHANGE MESSAGES
// =============================================================================

// ExchangeStartedMsg is emitted once Submit has persisted the question
// and opened the event channel.
type ExchangeStartedMsg struct {
	Events <-chan core.Event
}

// ExchangeEventMsg wraps one controller event. Events carries the
// channel forward so the pump can re-arm itself.
type ExchangeEventMsg struct {
	Event  core.Event
	Events <-chan core.Event
}

// ExchangeClosedMsg is emitted when the event channel closes after a
// terminal event.
type ExchangeClosedMsg struct{}

// SubmitFailedMsg is emitted when Submit itself rejects the message.
type SubmitFailedMsg struct {
	Err error
}

// =============================================================================
// RENDER MESSAGES
// =============================================================================

// RenderTickMsg drives the throttled repaint loop while streaming.
type RenderTickMsg struct{}

// =============================================================================
// SESSION MESSAGES
// =============================================================================

// SessionsLoadedMsg carries the owner's sessions for the picker.
type SessionsLoadedMsg struct {
	Sessions []model.Session
}

// SessionSwitchedMsg is emitted after the controller has loaded the
// chosen session's messages.
type SessionSwitchedMsg struct {
	Session *model.Session
}

// SessionDeletedMsg is emitted after a session row is removed.
type SessionDeletedMsg struct {
	ID string
}

// =============================================================================
// NOTICE MESSAGES
// =============================================================================

// ToastExpiredMsg clears a transient notice. Seq guards against an old
// timer clearing a newer toast.
type ToastExpiredMsg struct {
	Seq int
}

// ClipboardMsg reports the outcome of a copy-to-clipboard attempt.
type ClipboardMsg struct {
	Err error
}

// ErrorMsg carries a background failure into the update loop.
type ErrorMsg struct {
	Err error
}

// NotificationMsg wraps one realtime broker event for the owner topic.
// Ch carries the subscription forward so the pump can re-arm itself.
type NotificationMsg struct {
	Event realtime.Event
	Ch    <-chan realtime.Event
}
