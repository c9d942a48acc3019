// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	"github.com/jeranaias/gyankosh/internal/model"
)

// =============================================================================
// MESSAGE RECONCILER
// =============================================================================

// Reconciler merges the durable message list of the current session with
// at most one in-flight answer buffer into a single display-ordered view.
//
// The buffer wins over its durable row while the stream is active; once
// the answer is finalized and the durable list refreshed, the durable
// content is authoritative. Switching sessions discards the buffer
// unconditionally: an in-flight answer keeps checkpointing to the store,
// but it never follows the user into another session's view.
type Reconciler struct {
	mu        sync.Mutex
	sessionID string
	durable   []model.Message
	buf       *answerBuffer
	revision  uint64
}

// answerBuffer is the single in-flight answer.
type answerBuffer struct {
	messageID string
	content   string
	active    bool
	revision  uint64
}

// NewReconciler creates an empty reconciler with no session selected.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// =============================================================================
// SESSION AND DURABLE STATE
// =============================================================================

// SetSession switches the view to sessionID. A real switch clears the
// durable list (until the next SetDurable) and drops any in-flight
// buffer; selecting the already-current session is a no-op so a redraw
// never kills a live answer.
func (r *Reconciler) SetSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sessionID == r.sessionID {
		return
	}
	r.sessionID = sessionID
	r.durable = nil
	r.buf = nil
	r.revision++
}

// SetDurable replaces the durable list with a fresh load from the store.
// Loads that raced with a session switch are ignored: stale results for
// a session the user already left must not clobber the current view.
func (r *Reconciler) SetDurable(sessionID string, msgs []model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sessionID != r.sessionID {
		return
	}
	r.durable = make([]model.Message, len(msgs))
	copy(r.durable, msgs)
	r.revision++
}

// AppendDurable adds one just-persisted message to the durable view
// without a full reload.
func (r *Reconciler) AppendDurable(msg model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.SessionID != r.sessionID {
		return
	}
	r.durable = append(r.durable, msg)
	r.revision++
}

// =============================================================================
// IN-FLIGHT BUFFER
// =============================================================================

// BeginStream installs the in-flight buffer for messageID in the current
// session, replacing any previous buffer. Returns the new revision.
func (r *Reconciler) BeginStream(messageID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.revision++
	r.buf = &answerBuffer{
		messageID: messageID,
		active:    true,
		revision:  r.revision,
	}
	return r.revision
}

// UpdateBuffer replaces the buffer content with the full accumulated
// answer so far. Updates for anything but the current buffer are dropped:
// after a session switch discarded the buffer, late deltas from the
// still-running stream must not resurrect it.
func (r *Reconciler) UpdateBuffer(messageID, content string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.buf == nil || r.buf.messageID != messageID {
		return r.revision
	}
	r.revision++
	r.buf.content = content
	r.buf.revision = r.revision
	return r.revision
}

// MarkFinalized flips the buffer to inactive: the durable row now wins
// for its id. The buffer still renders if the durable list has not
// caught up yet.
func (r *Reconciler) MarkFinalized(messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.buf == nil || r.buf.messageID != messageID {
		return
	}
	r.buf.active = false
	r.revision++
}

// ClearBuffer drops the in-flight buffer.
func (r *Reconciler) ClearBuffer() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.buf == nil {
		return
	}
	r.buf = nil
	r.revision++
}

// =============================================================================
// VIEW
// =============================================================================

// Messages returns the reconciled display list: the durable messages
// with the in-flight buffer merged in. No id appears twice. A session
// whose durable load returned nothing still shows the one in-flight
// answer rather than an empty state.
func (r *Reconciler) Messages() []model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Message, len(r.durable))
	copy(out, r.durable)

	if r.buf == nil {
		return out
	}

	for i := range out {
		if out[i].ID == r.buf.messageID {
			if r.buf.active {
				out[i].Content = r.buf.content
			}
			return out
		}
	}

	// Buffer has no durable row in view yet; show it as a trailing
	// assistant message.
	return append(out, model.Message{
		ID:        r.buf.messageID,
		SessionID: r.sessionID,
		Role:      model.RoleAssistant,
		Content:   r.buf.content,
	})
}

// Revision returns the monotonic view revision. It changes on every
// mutation, so UIs can skip repaints when nothing moved.
func (r *Reconciler) Revision() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revision
}

// SessionID returns the session the view is bound to.
func (r *Reconciler) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// Streaming reports whether an active in-flight buffer exists.
func (r *Reconciler) Streaming() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf != nil && r.buf.active
}
