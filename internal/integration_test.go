// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package internal provides integration tests for the complete gyankosh
// system:
// - Vault identity (init, unlock, owner scoping)
// - Durable session storage
// - Streamed exchanges with live reconciliation
// - Interruption recovery and continuation
// - Change notifications
// - Transcript export
// - Configuration round-trips
package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jeranaias/gyankosh/internal/auth"
	core "github.com/jeranaias/gyankosh/internal/chat"
	"github.com/jeranaias/gyankosh/internal/cloud"
	"github.com/jeranaias/gyankosh/internal/config"
	"github.com/jeranaias/gyankosh/internal/export"
	"github.com/jeranaias/gyankosh/internal/model"
	"github.com/jeranaias/gyankosh/internal/realtime"
	"github.com/jeranaias/gyankosh/internal/store"
	"github.com/jeranaias/gyankosh/internal/telemetry"
)

const (
	testPassphrase = "sat-chit-ananda-vault"
	eventTimeout   = 10 * time.Second
)

// =============================================================================
// TEST UTILITIES
// =============================================================================

// newVault initializes and unlocks a fresh vault identity in a temp dir.
func newVault(t *testing.T) (*auth.Manager, string) {
	t.Helper()
	dir := t.TempDir()

	mgr, err := auth.NewManager(dir, 30*time.Minute)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := mgr.Init("Integration Owner", testPassphrase, false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := mgr.Unlock(testPassphrase, ""); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	return mgr, dir
}

// openVaultStore opens the store the way main does: through config.
func openVaultStore(t *testing.T, dir string) store.Store {
	t.Helper()
	cfg := config.Default()
	cfg.Vault.DataDir = dir

	st, err := store.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// sseHandler returns a gateway handler that streams the given chunks and
// finishes cleanly.
func sseHandler(chunks ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := startSSE(w)
		for _, chunk := range chunks {
			writeDelta(w, f, chunk)
		}
		writeFinish(w, f)
	}
}

func startSSE(w http.ResponseWriter) http.Flusher {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	f, _ := w.(http.Flusher)
	if f != nil {
		f.Flush()
	}
	return f
}

func writeDelta(w http.ResponseWriter, f http.Flusher, content string) {
	payload, _ := json.Marshal(content)
	fmt.Fprintf(w, "data: {\"id\":\"gen-1\",\"choices\":[{\"delta\":{\"content\":%s},\"finish_reason\":\"\"}]}\n\n", payload)
	if f != nil {
		f.Flush()
	}
}

func writeFinish(w http.ResponseWriter, f http.Flusher) {
	fmt.Fprint(w, "data: {\"id\":\"gen-1\",\"choices\":[{\"delta\":{\"content\":\"\"},\"finish_reason\":\"stop\"}]}\n\n")
	fmt.Fprint(w, "data: [DONE]\n\n")
	if f != nil {
		f.Flush()
	}
}

func newController(t *testing.T, st store.Store, mgr *auth.Manager, handler http.HandlerFunc, opts ...core.Option) *core.Controller {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := cloud.NewClient("test-key").WithBaseURL(srv.URL).WithMaxRetries(1)
	cfg := core.DefaultConfig()
	cfg.CheckpointInterval = time.Hour

	ctrl := core.NewController(st, client, mgr, cfg, opts...)
	t.Cleanup(func() { ctrl.Close() })
	return ctrl
}

// drain collects every event from an exchange until the channel closes.
func drain(t *testing.T, ch <-chan core.Event) []core.Event {
	t.Helper()
	var events []core.Event
	deadline := time.After(eventTimeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("event channel never closed; got %d events", len(events))
		}
	}
}

func finalEvent(t *testing.T, events []core.Event) core.Event {
	t.Helper()
	for _, ev := range events {
		if ev.Kind == core.EventDone || ev.Kind == core.EventAborted {
			return ev
		}
	}
	t.Fatal("no terminal event in exchange")
	return core.Event{}
}

// =============================================================================
// FULL LIFECYCLE
// =============================================================================

// TestVaultExchangeLifecycle walks the whole system: identity, exchange,
// durable persistence, usage accounting, and export.
func TestVaultExchangeLifecycle(t *testing.T) {
	ctx := context.Background()
	mgr, dir := newVault(t)
	st := openVaultStore(t, dir)

	tracker, err := telemetry.NewUsageTracker(dir)
	if err != nil {
		t.Fatalf("NewUsageTracker: %v", err)
	}

	const answer = "Dharma upholds the cosmic order."
	ctrl := newController(t, st, mgr,
		sseHandler("Dharma upholds ", "the cosmic ", "order."),
		core.WithUsage(tracker))

	ch, err := ctrl.Submit(ctx, "What is dharma?")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	final := finalEvent(t, drain(t, ch))
	if final.Kind != core.EventDone {
		t.Fatalf("final event = %v, err = %v", final.Kind, final.Err)
	}
	if final.Message == nil || final.Message.Content != answer {
		t.Fatalf("final message = %+v, want content %q", final.Message, answer)
	}

	// The session and both messages must be durable under the owner.
	owner, err := mgr.CurrentOwner()
	if err != nil {
		t.Fatalf("CurrentOwner: %v", err)
	}
	sessions, err := st.ListSessions(ctx, owner)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	msgs, err := st.LoadMessages(ctx, sessions[0].ID)
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != model.RoleUser || msgs[0].Content != "What is dharma?" {
		t.Errorf("user message = %+v", msgs[0])
	}
	if msgs[1].Role != model.RoleAssistant || msgs[1].Content != answer {
		t.Errorf("assistant message = %+v", msgs[1])
	}

	// Usage accounting saw exactly one exchange.
	totals := tracker.Totals()
	if totals.Exchanges != 1 {
		t.Errorf("usage exchanges = %d, want 1", totals.Exchanges)
	}
	if totals.Aborted != 0 {
		t.Errorf("usage aborted = %d, want 0", totals.Aborted)
	}

	// The exported transcript carries the full conversation.
	opts := export.DefaultOptions()
	opts.OutputDir = filepath.Join(dir, "exports")
	path, err := export.ExportToFile(&sessions[0], msgs, export.NewMarkdownExporter(opts), opts)
	if err != nil {
		t.Fatalf("ExportToFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	for _, want := range []string{"What is dharma?", answer, sessions[0].ID} {
		if !strings.Contains(string(data), want) {
			t.Errorf("export missing %q", want)
		}
	}
}

// =============================================================================
// INTERRUPTION AND CONTINUATION
// =============================================================================

// TestInterruptedAnswerIsDurableAndResumable stops an exchange
// mid-stream, verifies the partial answer was saved with its marker,
// then continues the conversation and checks the marker never reaches
// the gateway.
func TestInterruptedAnswerIsDurableAndResumable(t *testing.T) {
	ctx := context.Background()
	mgr, dir := newVault(t)
	st := openVaultStore(t, dir)

	var call int32
	var continuationBody atomic.Value
	handler := func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&call, 1)
		if n == 1 {
			// First exchange: two deltas, then hold the stream open
			// until the client walks away.
			f := startSSE(w)
			writeDelta(w, f, "Karma yoga ")
			writeDelta(w, f, "is the path")
			<-r.Context().Done()
			return
		}
		// Continuation: capture what history the gateway was shown.
		body, _ := io.ReadAll(r.Body)
		continuationBody.Store(string(body))

		f := startSSE(w)
		writeDelta(w, f, " of selfless action.")
		writeFinish(w, f)
	}

	ctrl := newController(t, st, mgr, handler)

	ch, err := ctrl.Submit(ctx, "What is karma yoga?")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Wait until both deltas landed, then stop.
	deadline := time.After(eventTimeout)
	deltas := 0
	for deltas < 2 {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatal("channel closed before deltas arrived")
			}
			if ev.Kind == core.EventDelta {
				deltas++
			}
		case <-deadline:
			t.Fatal("timed out waiting for deltas")
		}
	}
	ctrl.Stop()

	final := finalEvent(t, drain(t, ch))
	if final.Kind != core.EventAborted || !final.Stopped {
		t.Fatalf("final = %+v, want stopped abort", final)
	}

	marker := core.DefaultConfig().StopMarker
	sess := ctrl.CurrentSession()
	if sess == nil {
		t.Fatal("no current session after stop")
	}
	msgs, err := st.LoadMessages(ctx, sess.ID)
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	partial := msgs[len(msgs)-1]
	if partial.Role != model.RoleAssistant {
		t.Fatalf("last message role = %s", partial.Role)
	}
	if !strings.HasSuffix(partial.Content, marker) {
		t.Errorf("partial answer %q missing stop marker", partial.Content)
	}
	if !strings.Contains(partial.Content, "Karma yoga is the path") {
		t.Errorf("partial answer %q missing streamed text", partial.Content)
	}

	// Continue the answer. The gateway must see the partial text but
	// never the marker.
	ch, err = ctrl.Submit(ctx, "continue")
	if err != nil {
		t.Fatalf("Submit(continue): %v", err)
	}
	final = finalEvent(t, drain(t, ch))
	if final.Kind != core.EventDone {
		t.Fatalf("continuation final = %v, err = %v", final.Kind, final.Err)
	}

	sent, _ := continuationBody.Load().(string)
	if sent == "" {
		t.Fatal("continuation request never reached the gateway")
	}
	if strings.Contains(sent, "[stopped]") {
		t.Error("stop marker leaked into the gateway request")
	}
	if !strings.Contains(sent, "Karma yoga is the path") {
		t.Error("partial answer missing from the gateway history")
	}

	msgs, err = st.LoadMessages(ctx, sess.ID)
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("got %d messages after continuation, want 4", len(msgs))
	}
	if got := msgs[3].Content; got != " of selfless action." {
		t.Errorf("continuation answer = %q", got)
	}
}

// =============================================================================
// CHANGE NOTIFICATIONS
// =============================================================================

// TestBrokerSeesDurableWrites subscribes to a session and verifies the
// controller announces both the user message and the finalized answer.
func TestBrokerSeesDurableWrites(t *testing.T) {
	ctx := context.Background()
	mgr, dir := newVault(t)
	st := openVaultStore(t, dir)

	broker := realtime.NewBroker()
	t.Cleanup(broker.Close)

	ctrl := newController(t, st, mgr,
		sseHandler("Moksha is ", "liberation."),
		core.WithBroker(broker))

	// First exchange creates the session so there is a topic to watch.
	ch, err := ctrl.Submit(ctx, "What is moksha?")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	drain(t, ch)

	sess := ctrl.CurrentSession()
	if sess == nil {
		t.Fatal("no session after first exchange")
	}
	events, unsubscribe := broker.Subscribe(sess.ID)
	defer unsubscribe()

	ch, err = ctrl.Submit(ctx, "Elaborate.")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	drain(t, ch)

	var inserted []realtime.MessageInserted
	timeout := time.After(eventTimeout)
	for len(inserted) < 2 {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("broker closed after %d events", len(inserted))
			}
			if mi, isInsert := ev.(realtime.MessageInserted); isInsert {
				inserted = append(inserted, mi)
			}
		case <-timeout:
			t.Fatalf("timed out after %d inserted events, want 2", len(inserted))
		}
	}

	if inserted[0].Message.Role != model.RoleUser {
		t.Errorf("first event role = %s, want user", inserted[0].Message.Role)
	}
	if inserted[1].Message.Role != model.RoleAssistant {
		t.Errorf("second event role = %s, want assistant", inserted[1].Message.Role)
	}
	if inserted[1].Message.Content != "Moksha is liberation." {
		t.Errorf("announced answer = %q", inserted[1].Message.Content)
	}
}

// =============================================================================
// OWNER SCOPING
// =============================================================================

// TestSessionsAreOwnerScoped verifies one owner never sees another
// owner's sessions.
func TestSessionsAreOwnerScoped(t *testing.T) {
	ctx := context.Background()
	_, dir := newVault(t)
	st := openVaultStore(t, dir)

	if _, err := st.CreateSession(ctx, "owner-a", "a's notes"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := st.CreateSession(ctx, "owner-b", "b's notes"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	forA, err := st.ListSessions(ctx, "owner-a")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(forA) != 1 || forA[0].Title != "a's notes" {
		t.Errorf("owner-a sessions = %+v", forA)
	}
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// TestConfigRoundTripWithEnvOverrides saves, reloads, and overrides a
// configuration the way startup does.
func TestConfigRoundTripWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := config.Default()
	cfg.Gateway.Model = "openrouter/custom"
	cfg.Stream.CheckpointSeconds = 7
	cfg.Vault.DataDir = dir

	if err := config.SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML: %v", err)
	}

	loaded, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Gateway.Model != "openrouter/custom" {
		t.Errorf("model = %q", loaded.Gateway.Model)
	}
	if loaded.Stream.CheckpointSeconds != 7 {
		t.Errorf("checkpoint seconds = %d", loaded.Stream.CheckpointSeconds)
	}

	t.Setenv("GYANKOSH_MODEL", "openrouter/override")
	t.Setenv("GYANKOSH_GATEWAY_KEY", "sk-test-override")
	loaded.ApplyEnvOverrides()
	if loaded.Gateway.Model != "openrouter/override" {
		t.Errorf("env override model = %q", loaded.Gateway.Model)
	}
	if loaded.Gateway.APIKey != "sk-test-override" {
		t.Errorf("env override key = %q", loaded.Gateway.APIKey)
	}

	if err := loaded.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

// TestLockedVaultRefusesOwner verifies a locked vault never yields an
// owner id, which is what keeps the TUI and CLI from touching sessions.
func TestLockedVaultRefusesOwner(t *testing.T) {
	mgr, _ := newVault(t)

	if err := mgr.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if _, err := mgr.CurrentOwner(); err == nil {
		t.Fatal("locked vault returned an owner")
	}

	if err := mgr.Unlock(testPassphrase, ""); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, err := mgr.CurrentOwner(); err != nil {
		t.Fatalf("CurrentOwner after unlock: %v", err)
	}
}
