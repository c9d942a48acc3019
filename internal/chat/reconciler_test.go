// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"

	"github.com/jeranaias/gyankosh/internal/model"
)

func durableMessages(sessionID string, contents ...string) []model.Message {
	msgs := make([]model.Message, len(contents))
	for i, content := range contents {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		msgs[i] = model.Message{
			ID:        model.NewMessageID(),
			SessionID: sessionID,
			Role:      role,
			Content:   content,
			Seq:       int64(i + 1),
		}
	}
	return msgs
}

func TestReconciler_BufferWinsWhileStreaming(t *testing.T) {
	r := NewReconciler()
	r.SetSession("ses-a")

	msgs := durableMessages("ses-a", "what is dharma?", "")
	r.SetDurable("ses-a", msgs)
	placeholderID := msgs[1].ID

	r.BeginStream(placeholderID)
	r.UpdateBuffer(placeholderID, "Dharma is")
	r.UpdateBuffer(placeholderID, "Dharma is duty")

	view := r.Messages()
	if len(view) != 2 {
		t.Fatalf("view has %d messages, want 2", len(view))
	}
	if view[1].Content != "Dharma is duty" {
		t.Errorf("buffered content = %q, want streamed text", view[1].Content)
	}
	if view[0].Content != "what is dharma?" {
		t.Errorf("durable user message disturbed: %q", view[0].Content)
	}
	// Same id must not appear twice.
	seen := map[string]bool{}
	for _, m := range view {
		if seen[m.ID] {
			t.Fatalf("duplicate id %s in view", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestReconciler_DurableWinsAfterFinalize(t *testing.T) {
	r := NewReconciler()
	r.SetSession("ses-a")

	msgs := durableMessages("ses-a", "q", "the complete durable answer")
	r.SetDurable("ses-a", msgs)

	r.BeginStream(msgs[1].ID)
	r.UpdateBuffer(msgs[1].ID, "a stale shorter buffe")
	r.MarkFinalized(msgs[1].ID)

	view := r.Messages()
	if view[1].Content != "the complete durable answer" {
		t.Errorf("content = %q, want durable to win after finalize", view[1].Content)
	}
}

func TestReconciler_BufferOnlyView(t *testing.T) {
	r := NewReconciler()
	r.SetSession("ses-a")
	r.SetDurable("ses-a", nil)

	r.BeginStream("msg-live")
	r.UpdateBuffer("msg-live", "first words")

	view := r.Messages()
	if len(view) != 1 {
		t.Fatalf("view has %d messages, want the in-flight answer alone", len(view))
	}
	if view[0].Role != model.RoleAssistant || view[0].Content != "first words" {
		t.Errorf("view[0] = %+v", view[0])
	}
}

func TestReconciler_SwitchDiscardsBuffer(t *testing.T) {
	r := NewReconciler()
	r.SetSession("ses-a")
	aMsgs := durableMessages("ses-a", "question", "")
	r.SetDurable("ses-a", aMsgs)
	r.BeginStream(aMsgs[1].ID)
	r.UpdateBuffer(aMsgs[1].ID, "half an answ")

	// Away to B: the buffer must die with the switch.
	r.SetSession("ses-b")
	if got := r.Messages(); len(got) != 0 {
		t.Fatalf("session B shows %d messages, want 0", len(got))
	}

	// Late deltas from the still-running stream must not resurrect it.
	before := r.Revision()
	r.UpdateBuffer(aMsgs[1].ID, "half an answer that kept going")
	if r.Revision() != before {
		t.Error("late delta mutated the view after the buffer was discarded")
	}

	// Back to A: exactly the durable messages, nothing buffered.
	r.SetSession("ses-a")
	r.SetDurable("ses-a", aMsgs)
	view := r.Messages()
	if len(view) != 2 {
		t.Fatalf("view has %d messages, want 2 durable", len(view))
	}
	if view[1].Content != "" {
		t.Errorf("placeholder content = %q, want untouched durable value", view[1].Content)
	}
	if r.Streaming() {
		t.Error("reconciler reports streaming after switch-and-back")
	}
}

func TestReconciler_StaleDurableLoadIgnored(t *testing.T) {
	r := NewReconciler()
	r.SetSession("ses-b")

	// A slow load for the session the user already left.
	r.SetDurable("ses-a", durableMessages("ses-a", "old", "stuff"))

	if got := r.Messages(); len(got) != 0 {
		t.Errorf("stale load leaked %d messages into the current view", len(got))
	}
}

func TestReconciler_AppendDurableChecksSession(t *testing.T) {
	r := NewReconciler()
	r.SetSession("ses-a")

	r.AppendDurable(model.Message{ID: "m1", SessionID: "ses-b", Role: model.RoleUser, Content: "x"})
	if got := r.Messages(); len(got) != 0 {
		t.Errorf("message for another session appended, view has %d", len(got))
	}

	r.AppendDurable(model.Message{ID: "m2", SessionID: "ses-a", Role: model.RoleUser, Content: "y"})
	if got := r.Messages(); len(got) != 1 {
		t.Errorf("view has %d messages, want 1", len(got))
	}
}

func TestReconciler_SameSessionSetKeepsBuffer(t *testing.T) {
	r := NewReconciler()
	r.SetSession("ses-a")
	r.BeginStream("msg-live")
	r.UpdateBuffer("msg-live", "streaming")

	// A redraw reselecting the current session is not a switch.
	r.SetSession("ses-a")
	if !r.Streaming() {
		t.Error("reselecting the current session killed the live buffer")
	}
}

func TestReconciler_RevisionAdvancesOnMutation(t *testing.T) {
	r := NewReconciler()
	last := r.Revision()

	step := func(name string, mutate func()) {
		mutate()
		if got := r.Revision(); got <= last {
			t.Errorf("%s: revision %d did not advance past %d", name, got, last)
		} else {
			last = got
		}
	}

	step("SetSession", func() { r.SetSession("ses-a") })
	step("SetDurable", func() { r.SetDurable("ses-a", durableMessages("ses-a", "q")) })
	step("BeginStream", func() { r.BeginStream("m-live") })
	step("UpdateBuffer", func() { r.UpdateBuffer("m-live", "text") })
	step("MarkFinalized", func() { r.MarkFinalized("m-live") })
	step("ClearBuffer", func() { r.ClearBuffer() })
}

func TestReconciler_ViewIsACopy(t *testing.T) {
	r := NewReconciler()
	r.SetSession("ses-a")
	r.SetDurable("ses-a", durableMessages("ses-a", "original"))

	view := r.Messages()
	view[0].Content = "mutated by caller"

	if got := r.Messages()[0].Content; got != "original" {
		t.Errorf("caller mutation leaked into reconciler: %q", got)
	}
}
