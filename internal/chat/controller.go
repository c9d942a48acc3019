// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/gyankosh/internal/cloud"
	"github.com/jeranaias/gyankosh/internal/config"
	"github.com/jeranaias/gyankosh/internal/model"
	"github.com/jeranaias/gyankosh/internal/realtime"
	"github.com/jeranaias/gyankosh/internal/store"
	"github.com/jeranaias/gyankosh/internal/telemetry"
	"github.com/jeranaias/gyankosh/internal/util"
)

// =============================================================================
// CONSTANTS AND ERRORS
// =============================================================================

const (
	// sessionTitleRunes bounds the auto-generated session title taken
	// from the first user message.
	sessionTitleRunes = 48

	// eventBuffer sizes the per-exchange event channel. The reader is
	// expected to drain until close; the buffer only absorbs bursts.
	eventBuffer = 256

	// persistTimeout bounds the background store writes (checkpoints,
	// final flush, partial-answer save).
	persistTimeout = 5 * time.Second
)

var (
	// ErrExchangeActive is returned by Submit while an exchange is in
	// flight. Submissions are rejected, never queued.
	ErrExchangeActive = errors.New("an exchange is already in flight")

	// ErrEmptyMessage is returned for a whitespace-only submission.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("controller is closed")
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// OwnerProvider hands the controller the vault owner identity when a new
// session has to be created. *auth.Manager satisfies it.
type OwnerProvider interface {
	CurrentOwner() (string, error)
}

// OwnerFunc adapts a plain function to OwnerProvider.
type OwnerFunc func() (string, error)

// CurrentOwner implements OwnerProvider.
func (f OwnerFunc) CurrentOwner() (string, error) { return f() }

// =============================================================================
// CONFIG
// =============================================================================

// Config carries the controller tunables.
type Config struct {
	// CheckpointInterval is how often a grown partial answer is flushed
	// to the store while streaming.
	CheckpointInterval time.Duration

	// StopMarker is appended to the persisted partial answer when an
	// exchange is stopped or the connection drops.
	StopMarker string

	// SeedRunes / MinSeedRunes bound the continuation seed, see
	// ResumptionPolicy.
	SeedRunes    int
	MinSeedRunes int

	// HistoryLimit caps how many prior messages are sent with a request.
	HistoryLimit int
}

// DefaultConfig returns the controller defaults.
func DefaultConfig() Config {
	return Config{
		CheckpointInterval: 3 * time.Second,
		StopMarker:         "\n\n[stopped]",
		SeedRunes:          2000,
		MinSeedRunes:       200,
		HistoryLimit:       40,
	}
}

// FromConfig derives controller settings from the application config.
func FromConfig(cfg *config.Config) Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}
	if cfg.Stream.CheckpointSeconds > 0 {
		out.CheckpointInterval = time.Duration(cfg.Stream.CheckpointSeconds) * time.Second
	}
	if cfg.Stream.StopMarker != "" {
		out.StopMarker = cfg.Stream.StopMarker
	}
	if cfg.Stream.SeedRunes > 0 {
		out.SeedRunes = cfg.Stream.SeedRunes
	}
	if cfg.Stream.MinSeedRunes > 0 {
		out.MinSeedRunes = cfg.Stream.MinSeedRunes
	}
	return out
}

// =============================================================================
// EVENTS
// =============================================================================

// EventKind discriminates the per-exchange events.
type EventKind int

const (
	// EventStage reports a stage transition.
	EventStage EventKind = iota
	// EventDelta carries one arrived delta plus the full content so far.
	EventDelta
	// EventDone ends a completed exchange. Terminal.
	EventDone
	// EventAborted ends a stopped or failed exchange. Terminal.
	EventAborted
	// EventWarning reports a non-fatal problem (failed final flush).
	EventWarning
)

// Event is one notification on the channel returned by Submit. After a
// terminal event the channel is closed; callers must drain until then.
type Event struct {
	Kind  EventKind
	Stage Stage

	// Delta is the newly arrived text; Content is the full answer so far.
	Delta   string
	Content string

	// Revision is the reconciler view revision after applying the delta.
	Revision uint64

	// Message is the finalized durable message on EventDone when the
	// final write succeeded.
	Message *model.Message

	// Stopped distinguishes a user stop from a connection failure on
	// EventAborted.
	Stopped bool
	Err     error
}

// =============================================================================
// CANCEL MANAGEMENT
// =============================================================================

// cancelManager guards the retained stream cancel function. It must be
// held as a pointer so the mutex is never copied.
type cancelManager struct {
	mu sync.Mutex
	fn context.CancelFunc
}

func newCancelManager() *cancelManager {
	return &cancelManager{}
}

func (cm *cancelManager) set(fn context.CancelFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.fn = fn
}

// cancel invokes and keeps the stored function so a later clear still
// releases the context. Safe to call with nothing set.
func (cm *cancelManager) cancel() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.fn != nil {
		cm.fn()
	}
}

// clear cancels (contexts must never leak) and drops the function.
func (cm *cancelManager) clear() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.fn != nil {
		cm.fn()
		cm.fn = nil
	}
}

func (cm *cancelManager) idle() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.fn == nil
}

// =============================================================================
// CONTROLLER
// =============================================================================

// exchange is the per-submission state. It is owned by the controller
// mutex; the accumulator only ever grows and only the stream goroutine
// appends to it.
type exchange struct {
	sessionID   string
	assistantID string
	userText    string

	events     chan Event
	ticker     *time.Ticker
	tickerDone chan struct{}

	start      time.Time
	firstToken time.Time

	acc         strings.Builder
	tokens      int
	inputTokens int
	lastFlushed int

	// finished marks the terminal transition (finalize or abort) as
	// taken; every later delta, tick, or duplicate abort is a no-op.
	finished bool
	stopped  bool
}

// Controller runs streamed exchanges against the store and gateway, one
// at a time.
type Controller struct {
	mu sync.Mutex

	store     store.Store
	client    *cloud.Client
	owner     OwnerProvider
	cfg       Config
	policy    *ResumptionPolicy
	rec       *Reconciler
	cache     *store.HistoryCache
	usage     *telemetry.UsageTracker
	broker    *realtime.Broker
	cancelMgr *cancelManager

	stage   Stage
	session *model.Session
	ex      *exchange

	// lastCheckpoint is the latest assistant content known to be
	// durable, marker-free; it feeds the continuation seed.
	lastCheckpoint string

	closed bool
}

// Option configures optional collaborators.
type Option func(*Controller)

// WithUsage records per-exchange usage on the given tracker.
func WithUsage(u *telemetry.UsageTracker) Option {
	return func(c *Controller) { c.usage = u }
}

// WithBroker publishes message-inserted events after durable writes.
func WithBroker(b *realtime.Broker) Option {
	return func(c *Controller) { c.broker = b }
}

// NewController creates a controller in StageIdle with no session bound.
func NewController(st store.Store, client *cloud.Client, owner OwnerProvider, cfg Config, opts ...Option) *Controller {
	def := DefaultConfig()
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = def.CheckpointInterval
	}
	if cfg.StopMarker == "" {
		cfg.StopMarker = def.StopMarker
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}

	c := &Controller{
		store:     st,
		client:    client,
		owner:     owner,
		cfg:       cfg,
		policy:    NewResumptionPolicy(cfg.SeedRunes, cfg.MinSeedRunes),
		rec:       NewReconciler(),
		cache:     store.NewHistoryCache(0, 0),
		cancelMgr: newCancelManager(),
		stage:     StageIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// SESSION SELECTION
// =============================================================================

// CurrentSession returns a copy of the bound session, or nil.
func (c *Controller) CurrentSession() *model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	sess := *c.session
	return &sess
}

// SwitchSession binds the controller to an existing session and loads
// its durable history, served from the history cache when fresh. Any
// in-flight answer buffer is discarded from the view; a still-running
// exchange keeps checkpointing to the store but no longer renders.
func (c *Controller) SwitchSession(ctx context.Context, sessionID string) error {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	msgs, cached := c.cache.Get(sessionID)
	if !cached {
		msgs, err = c.store.LoadMessages(ctx, sessionID)
		if err != nil {
			return err
		}
		c.cache.Put(sessionID, msgs)
	}

	c.rec.SetSession(sessionID)
	c.rec.SetDurable(sessionID, msgs)

	c.mu.Lock()
	c.session = sess
	c.lastCheckpoint = lastAssistantContent(msgs, c.cfg.StopMarker)
	c.mu.Unlock()
	return nil
}

// ClearSession detaches from the current session; the next Submit
// creates a fresh one.
func (c *Controller) ClearSession() {
	c.rec.SetSession("")
	c.mu.Lock()
	c.session = nil
	c.lastCheckpoint = ""
	c.mu.Unlock()
}

// Messages returns the reconciled display list for the bound session.
func (c *Controller) Messages() []model.Message {
	return c.rec.Messages()
}

// Revision returns the reconciler view revision for repaint skipping.
func (c *Controller) Revision() uint64 {
	return c.rec.Revision()
}

// lastAssistantContent finds the newest non-empty assistant message and
// strips a trailing stop marker so an interrupted answer seeds cleanly.
func lastAssistantContent(msgs []model.Message, marker string) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != model.RoleAssistant || msgs[i].Content == "" {
			continue
		}
		return strings.TrimSuffix(msgs[i].Content, marker)
	}
	return ""
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit starts one exchange for text. The user message is durable
// before the network request goes out; a session is created when none is
// bound. The returned channel delivers stage changes, deltas, and one
// terminal event, then closes. The caller must drain it.
func (c *Controller) Submit(ctx context.Context, text string) (<-chan Event, error) {
	return c.submit(ctx, text, "")
}

// SubmitWithRef is Submit with a vault document reference attached to
// the user message.
func (c *Controller) SubmitWithRef(ctx context.Context, text, documentRef string) (<-chan Event, error) {
	return c.submit(ctx, text, documentRef)
}

func (c *Controller) submit(ctx context.Context, text, documentRef string) (<-chan Event, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.stage != StageIdle {
		c.mu.Unlock()
		return nil, ErrExchangeActive
	}
	c.stage = StagePreparing
	sess := c.session
	c.mu.Unlock()

	if sess == nil {
		created, err := c.createSession(ctx, trimmed)
		if err != nil {
			c.revertToIdle()
			return nil, err
		}
		sess = created
	}

	userMsg, err := c.store.AppendMessage(ctx, sess.ID, model.RoleUser, trimmed, documentRef)
	if err != nil {
		c.revertToIdle()
		return nil, fmt.Errorf("persist user message: %w", err)
	}
	c.publish(realtime.MessageInserted{SessionID: sess.ID, Message: *userMsg})

	// The placeholder row is the stable target for every checkpoint of
	// this answer.
	placeholder, err := c.store.AppendMessage(ctx, sess.ID, model.RoleAssistant, "", "")
	if err != nil {
		c.revertToIdle()
		return nil, fmt.Errorf("persist answer placeholder: %w", err)
	}
	c.cache.Invalidate(sess.ID)

	c.mu.Lock()
	c.rec.AppendDurable(*userMsg)
	c.rec.AppendDurable(*placeholder)
	c.rec.BeginStream(placeholder.ID)

	reqMsgs := c.buildRequestLocked(trimmed, placeholder.ID)

	streamCtx, cancel := context.WithCancel(ctx)
	c.cancelMgr.set(cancel)

	ex := &exchange{
		sessionID:   sess.ID,
		assistantID: placeholder.ID,
		userText:    trimmed,
		events:      make(chan Event, eventBuffer),
		ticker:      time.NewTicker(c.cfg.CheckpointInterval),
		tickerDone:  make(chan struct{}),
		start:       time.Now(),
		inputTokens: estimateTokens(reqMsgs),
	}
	c.ex = ex
	c.stage = StageAwaitingFirstToken
	ticker, tickerDone := ex.ticker, ex.tickerDone
	c.mu.Unlock()

	go c.watchCheckpoints(ex, ticker, tickerDone)
	go c.run(streamCtx, ex, reqMsgs)
	return ex.events, nil
}

func (c *Controller) createSession(ctx context.Context, firstMessage string) (*model.Session, error) {
	ownerID, err := c.owner.CurrentOwner()
	if err != nil {
		return nil, fmt.Errorf("resolve owner: %w", err)
	}
	sess, err := c.store.CreateSession(ctx, ownerID, util.Preview(firstMessage, sessionTitleRunes))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	c.rec.SetSession(sess.ID)
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	return sess, nil
}

func (c *Controller) revertToIdle() {
	c.mu.Lock()
	if c.stage == StagePreparing {
		c.stage = StageIdle
	}
	c.mu.Unlock()
}

// buildRequestLocked assembles the gateway request: an optional
// continuation seed, then the capped durable history ending with the
// just-persisted user message. Caller holds c.mu.
func (c *Controller) buildRequestLocked(userText, placeholderID string) []cloud.ChatMessage {
	var out []cloud.ChatMessage

	if c.policy.ShouldContinue(userText) {
		if seed, ok := c.policy.ContinuationSeed(c.lastCheckpoint); ok {
			out = append(out, cloud.NewSystemMessage(ContinuationPrompt(seed)))
		}
	}

	history := c.rec.Messages()
	if limit := c.cfg.HistoryLimit; len(history) > limit {
		history = history[len(history)-limit:]
	}
	for _, m := range history {
		if m.ID == placeholderID || strings.TrimSpace(m.Content) == "" {
			continue
		}
		switch m.Role {
		case model.RoleUser:
			out = append(out, cloud.NewUserMessage(m.Content))
		case model.RoleAssistant:
			// Interrupted answers carry the stop marker in the store;
			// the gateway gets the clean content.
			out = append(out, cloud.NewAssistantMessage(strings.TrimSuffix(m.Content, c.cfg.StopMarker)))
		}
	}
	return out
}

func estimateTokens(msgs []cloud.ChatMessage) int {
	total := 0
	for _, m := range msgs {
		total += (len(m.Content) + 3) / 4
	}
	return total
}

// =============================================================================
// STREAM LOOP
// =============================================================================

// run owns the stream read and the event channel. It is the only sender
// on ex.events and the only closer.
func (c *Controller) run(ctx context.Context, ex *exchange, msgs []cloud.ChatMessage) {
	defer close(ex.events)

	c.emit(ctx, ex, Event{Kind: EventStage, Stage: StageAwaitingFirstToken})

	stream, err := c.client.OpenStream(ctx, msgs)
	if err != nil {
		c.abort(ex, false, err)
		c.emitAborted(ctx, ex, err)
		return
	}
	defer stream.Close()

	for {
		delta, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			c.abort(ex, false, err)
			c.emitAborted(ctx, ex, err)
			return
		}
		if delta == "" {
			continue
		}
		c.handleDelta(ctx, ex, delta)
	}

	c.finalize(ctx, ex)
}

func (c *Controller) handleDelta(ctx context.Context, ex *exchange, delta string) {
	c.mu.Lock()
	if ex.finished {
		c.mu.Unlock()
		return
	}
	var stageEv *Event
	if ex.firstToken.IsZero() {
		ex.firstToken = time.Now()
		c.stage = StageStreaming
		stageEv = &Event{Kind: EventStage, Stage: StageStreaming}
	}
	ex.acc.WriteString(delta)
	ex.tokens++
	content := ex.acc.String()
	rev := c.rec.UpdateBuffer(ex.assistantID, content)
	c.mu.Unlock()

	if stageEv != nil {
		c.emit(ctx, ex, *stageEv)
	}
	c.emit(ctx, ex, Event{Kind: EventDelta, Delta: delta, Content: content, Revision: rev})
}

// finalize runs the clean end-of-stream path: one full-content write
// (retried once), durable refresh, usage record, back to idle.
func (c *Controller) finalize(ctx context.Context, ex *exchange) {
	c.mu.Lock()
	if ex.finished {
		c.mu.Unlock()
		return
	}
	ex.finished = true
	c.stage = StageFinalizing
	c.stopTimersLocked(ex)
	content := ex.acc.String()
	sameSession := c.session != nil && c.session.ID == ex.sessionID
	c.mu.Unlock()

	c.emit(ctx, ex, Event{Kind: EventStage, Stage: StageFinalizing})

	var finalMsg *model.Message
	flushErr := c.flushFinal(ex.assistantID, content)
	if flushErr != nil {
		// The in-flight buffer stays active so the full answer remains
		// visible even though the durable row is behind.
		log.Printf("WARNING: final answer write failed for %s, keeping in-memory copy: %v", ex.assistantID, flushErr)
		c.emit(ctx, ex, Event{Kind: EventWarning, Err: flushErr})
	} else {
		msg := model.Message{
			ID:        ex.assistantID,
			SessionID: ex.sessionID,
			Role:      model.RoleAssistant,
			Content:   content,
		}
		finalMsg = &msg
		c.cache.Invalidate(ex.sessionID)
		if sameSession {
			c.refreshDurable(ex.sessionID)
		}
		c.publish(realtime.MessageInserted{SessionID: ex.sessionID, Message: msg})
	}

	c.recordUsage(ex, false)

	c.mu.Lock()
	if content != "" {
		c.lastCheckpoint = content
	}
	c.clearExchangeLocked(ex)
	c.mu.Unlock()

	c.emit(ctx, ex, Event{Kind: EventDone, Content: content, Message: finalMsg})
}

// abort runs the stop / connection-failure path. It is synchronous: when
// it returns, the partial answer is persisted (best effort) and the
// controller is idle again. Safe to call twice; only the first wins.
func (c *Controller) abort(ex *exchange, stopped bool, cause error) {
	c.mu.Lock()
	if ex.finished {
		c.mu.Unlock()
		return
	}
	ex.finished = true
	ex.stopped = stopped
	c.stage = StageAborted
	c.stopTimersLocked(ex)
	c.cancelMgr.cancel()
	content := ex.acc.String()
	sameSession := c.session != nil && c.session.ID == ex.sessionID
	c.mu.Unlock()

	if cause != nil {
		log.Printf("WARNING: stream aborted for session %s: %v", ex.sessionID, cause)
	}

	if content != "" {
		pctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		err := c.store.UpdateMessageContent(pctx, ex.assistantID, content+c.cfg.StopMarker)
		cancel()
		if err != nil {
			log.Printf("WARNING: could not save partial answer for %s: %v", ex.assistantID, err)
		} else {
			c.cache.Invalidate(ex.sessionID)
			c.publish(realtime.MessageInserted{SessionID: ex.sessionID, Message: model.Message{
				ID:        ex.assistantID,
				SessionID: ex.sessionID,
				Role:      model.RoleAssistant,
				Content:   content + c.cfg.StopMarker,
			}})
		}
		c.mu.Lock()
		c.lastCheckpoint = content
		c.mu.Unlock()
	}

	if sameSession {
		c.refreshDurable(ex.sessionID)
	}

	c.recordUsage(ex, true)

	c.mu.Lock()
	c.clearExchangeLocked(ex)
	c.mu.Unlock()
}

// emitAborted sends the terminal event for a stopped or failed exchange.
func (c *Controller) emitAborted(ctx context.Context, ex *exchange, cause error) {
	c.mu.Lock()
	stopped := ex.stopped
	content := ex.acc.String()
	c.mu.Unlock()

	ev := Event{Kind: EventAborted, Content: content, Stopped: stopped}
	if !stopped {
		ev.Err = cause
	}
	c.emit(ctx, ex, ev)
}

// flushFinal writes the complete answer, retrying once.
func (c *Controller) flushFinal(messageID, content string) error {
	for attempt := 0; attempt < 2; attempt++ {
		pctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		err := c.store.UpdateMessageContent(pctx, messageID, content)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == 0 {
			log.Printf("WARNING: final answer write failed, retrying: %v", err)
			continue
		}
		return err
	}
	return nil
}

// refreshDurable reloads the session from the store and hands the result
// to the reconciler, clearing the buffer once the durable list is
// authoritative. On load failure the buffer stays so nothing visible is
// lost.
func (c *Controller) refreshDurable(sessionID string) {
	pctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	msgs, err := c.store.LoadMessages(pctx, sessionID)
	cancel()
	if err != nil {
		log.Printf("WARNING: could not refresh session %s: %v", sessionID, err)
		return
	}
	c.cache.Put(sessionID, msgs)
	c.rec.SetDurable(sessionID, msgs)
	c.rec.ClearBuffer()
}

// clearExchangeLocked is the single place an exchange detaches from the
// controller: timers are already stopped, the cancel handle is released,
// and the stage returns to idle. Caller holds c.mu.
func (c *Controller) clearExchangeLocked(ex *exchange) {
	if c.ex == ex {
		c.ex = nil
		c.stage = StageIdle
	}
	c.cancelMgr.clear()
}

func (c *Controller) stopTimersLocked(ex *exchange) {
	if ex.ticker != nil {
		ex.ticker.Stop()
		ex.ticker = nil
	}
	if ex.tickerDone != nil {
		close(ex.tickerDone)
		ex.tickerDone = nil
	}
}

// =============================================================================
// CHECKPOINTS
// =============================================================================

func (c *Controller) watchCheckpoints(ex *exchange, ticker *time.Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.checkpoint(ex)
		}
	}
}

// checkpoint flushes the accumulated answer if it has grown since the
// last flush. A failed write is only logged: the content keeps growing,
// so the next tick retries naturally.
func (c *Controller) checkpoint(ex *exchange) {
	c.mu.Lock()
	if ex.finished || c.stage != StageStreaming {
		c.mu.Unlock()
		return
	}
	content := ex.acc.String()
	if len(content) <= ex.lastFlushed {
		c.mu.Unlock()
		return
	}
	messageID, sessionID := ex.assistantID, ex.sessionID
	c.mu.Unlock()

	pctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	err := c.store.UpdateMessageContent(pctx, messageID, content)
	cancel()
	if err != nil {
		log.Printf("WARNING: checkpoint write failed for %s: %v", messageID, err)
		return
	}
	c.cache.Invalidate(sessionID)

	c.mu.Lock()
	if len(content) > ex.lastFlushed {
		ex.lastFlushed = len(content)
	}
	if !ex.finished {
		c.lastCheckpoint = content
	}
	c.mu.Unlock()
}

// =============================================================================
// STOP, STATUS, TEARDOWN
// =============================================================================

// Stop aborts the in-flight exchange. It returns after the partial
// answer (plus stop marker) is persisted and the controller is idle; a
// Stop with nothing running is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	ex := c.ex
	if ex == nil || ex.finished {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.abort(ex, true, nil)
}

// Status returns an advisory snapshot for progress displays.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{Stage: c.stage}
	if c.session != nil {
		st.SessionID = c.session.ID
	}
	if c.ex != nil {
		st.Elapsed = time.Since(c.ex.start)
		if !c.ex.firstToken.IsZero() {
			st.TimeToFirstToken = c.ex.firstToken.Sub(c.ex.start)
		}
	}
	if c.usage != nil {
		st.Estimated = c.usage.EstimateDuration()
	}
	return st
}

// Stage returns the current lifecycle stage.
func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Close stops any in-flight exchange with the same best-effort partial
// persistence as Stop and rejects further submissions.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	ex := c.ex
	c.mu.Unlock()

	if ex != nil {
		c.abort(ex, true, nil)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Controller) publish(ev realtime.Event) {
	if c.broker != nil {
		c.broker.Publish(ev)
	}
}

func (c *Controller) recordUsage(ex *exchange, aborted bool) {
	if c.usage == nil {
		return
	}
	c.mu.Lock()
	rec := telemetry.ExchangeUsage{
		SessionID:     ex.sessionID,
		Model:         c.client.Model(),
		PromptPreview: ex.userText,
		InputTokens:   ex.inputTokens,
		OutputTokens:  ex.tokens,
		Duration:      time.Since(ex.start),
		Aborted:       aborted,
	}
	if !ex.firstToken.IsZero() {
		rec.TimeToFirstToken = ex.firstToken.Sub(ex.start)
	}
	c.mu.Unlock()

	if err := c.usage.Record(rec); err != nil {
		log.Printf("WARNING: could not record usage: %v", err)
	}
}

// emit delivers one event. Sends block while the exchange context is
// live (the reader drains by contract); after cancellation the final
// events fall back to a non-blocking send so an absent reader cannot
// hang teardown.
func (c *Controller) emit(ctx context.Context, ex *exchange, ev Event) {
	select {
	case ex.events <- ev:
	case <-ctx.Done():
		select {
		case ex.events <- ev:
		default:
		}
	}
}
