// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	core "github.com/jeranaias/gyankosh/internal/chat"
	"github.com/jeranaias/gyankosh/internal/realtime"
	"github.com/jeranaias/gyankosh/internal/store"
	"github.com/jeranaias/gyankosh/internal/ui/styles"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// renderInterval throttles streaming repaints to ~30fps. Deltas can
	// arrive far faster than that; the view only rebuilds when the
	// reconciler revision moved since the last paint.
	renderInterval = 33 * time.Millisecond

	// toastDuration is how long transient notices stay on screen.
	toastDuration = 4 * time.Second

	// Chrome line counts used by handleResize: header, status, input
	// box with border, help bar.
	headerHeight = 1
	statusHeight = 1
	inputHeight  = 3
	helpHeight   = 1
)

// =============================================================================
// STATE
// =============================================================================

// State is the screen the model is showing.
type State int

const (
	// StateReady accepts input for the next question.
	StateReady State = iota
	// StateStreaming has an exchange in flight.
	StateStreaming
	// StatePicker shows the session list overlay.
	StatePicker
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctrl  *core.Controller
	store store.Store
	owner core.OwnerProvider

	theme *styles.Theme
	keys  KeyMap

	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model

	state  State
	width  int
	height int

	// events is the in-flight exchange channel; nil between exchanges.
	events <-chan core.Event

	// notify is the owner-topic broker subscription; nil when the screen
	// runs without one (tests, locked-down setups).
	notify <-chan realtime.Event

	// lastRev is the reconciler revision last painted into the viewport.
	lastRev uint64

	// stopMarker matches the controller config so interrupted answers
	// render their marker as a styled note instead of raw text.
	stopMarker string

	// md renders finalized answers as markdown; nil until first use and
	// rebuilt when the width changes.
	md      *glamour.TermRenderer
	mdWidth int

	picker picker

	toast    string
	toastErr bool
	toastSeq int

	showHelp bool
	quitting bool
}

// New builds the chat model around an already-constructed controller.
// cfg must be the same config the controller was built with.
func New(ctrl *core.Controller, st store.Store, owner core.OwnerProvider, cfg core.Config) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask your vault..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 30,
	}

	marker := cfg.StopMarker
	if marker == "" {
		marker = core.DefaultConfig().StopMarker
	}

	return Model{
		ctrl:       ctrl,
		store:      st,
		owner:      owner,
		theme:      styles.NewTheme(),
		keys:       DefaultKeyMap(),
		viewport:   vp,
		input:      ti,
		spin:       sp,
		state:      StateReady,
		width:      80,
		height:     24,
		stopMarker: marker,
	}
}

// WithNotifications attaches an owner-topic broker subscription so the
// screen can surface out-of-band changes (config reloads) as toasts.
func (m Model) WithNotifications(ch <-chan realtime.Event) Model {
	m.notify = ch
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if m.notify != nil {
		return tea.Batch(textinput.Blink, waitNotification(m.notify))
	}
	return textinput.Blink
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleResize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.state != StateStreaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case ExchangeStartedMsg:
		m.state = StateStreaming
		m.events = msg.Events
		m.refreshChat()
		return m, tea.Batch(waitEvent(msg.Events), renderTickCmd(), m.spin.Tick)

	case ExchangeEventMsg:
		cmd := m.handleEvent(msg.Event)
		return m, tea.Batch(cmd, waitEvent(msg.Events))

	case ExchangeClosedMsg:
		m.state = StateReady
		m.events = nil
		m.refreshChat()
		return m, nil

	case SubmitFailedMsg:
		return m, m.submitFailedToast(msg.Err)

	case RenderTickMsg:
		if m.state != StateStreaming {
			return m, nil
		}
		if rev := m.ctrl.Revision(); rev != m.lastRev {
			m.refreshChat()
		}
		return m, renderTickCmd()

	case SessionsLoadedMsg:
		m.openPicker(msg.Sessions)
		return m, nil

	case SessionSwitchedMsg:
		m.state = StateReady
		m.refreshChat()
		m.viewport.GotoBottom()
		return m, nil

	case SessionDeletedMsg:
		if cur := m.ctrl.CurrentSession(); cur != nil && cur.ID == msg.ID {
			m.ctrl.ClearSession()
			m.refreshChat()
		}
		// Stay in the picker with a fresh list.
		return m, loadSessionsCmd(m.store, m.owner)

	case ToastExpiredMsg:
		if msg.Seq == m.toastSeq {
			m.toast = ""
			m.toastErr = false
		}
		return m, nil

	case ClipboardMsg:
		if msg.Err != nil {
			return m, m.setToast("copy failed: "+msg.Err.Error(), true)
		}
		return m, m.setToast("answer copied", false)

	case ErrorMsg:
		return m, m.setToast(msg.Err.Error(), true)

	case NotificationMsg:
		var cmd tea.Cmd
		if _, ok := msg.Event.(realtime.ProfileUpdated); ok {
			cmd = m.setToast("config reloaded (some changes apply on restart)", false)
		}
		return m, tea.Batch(cmd, waitNotification(msg.Ch))
	}

	return m, nil
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.state == StatePicker {
		return m.handlePickerKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if m.state == StateStreaming {
			// Persist the partial answer before the program exits.
			return m, tea.Sequence(stopCmd(m.ctrl), tea.Quit)
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Stop):
		if m.state == StateStreaming {
			return m, stopCmd(m.ctrl)
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		return m, submitCmd(m.ctrl, text)

	case key.Matches(msg, m.keys.Continue):
		return m, submitCmd(m.ctrl, "continue")

	case key.Matches(msg, m.keys.NewSession):
		if m.state == StateStreaming {
			return m, m.setToast("finish or stop the current answer first", true)
		}
		m.ctrl.ClearSession()
		m.refreshChat()
		return m, m.setToast("new chat", false)

	case key.Matches(msg, m.keys.Sessions):
		if m.state == StateStreaming {
			return m, m.setToast("finish or stop the current answer first", true)
		}
		return m, loadSessionsCmd(m.store, m.owner)

	case key.Matches(msg, m.keys.CopyAnswer):
		return m, copyAnswerCmd(m.ctrl)

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.LineUp(1)
		return m, nil
	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.LineDown(1)
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	case key.Matches(msg, m.keys.GotoTop):
		m.viewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.GotoBottom):
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// EVENT HANDLING
// =============================================================================

// handleEvent applies one controller event. Repainting is left to the
// render tick except for terminal events, which paint immediately.
func (m *Model) handleEvent(ev core.Event) tea.Cmd {
	switch ev.Kind {
	case core.EventStage:
		if ev.Stage == core.StageFinalizing {
			m.refreshChat()
		}
		return nil

	case core.EventDelta:
		// The revision-gated tick picks this up.
		return nil

	case core.EventDone:
		m.refreshChat()
		return nil

	case core.EventAborted:
		m.refreshChat()
		if ev.Stopped {
			return m.setToast("stopped — partial answer saved", false)
		}
		return m.setToast("connection error — partial answer saved", true)

	case core.EventWarning:
		return m.setToast("could not save the answer; it stays on screen", true)
	}
	return nil
}

func (m *Model) submitFailedToast(err error) tea.Cmd {
	switch {
	case errors.Is(err, core.ErrExchangeActive):
		return m.setToast("an answer is already streaming; press esc to stop it", true)
	case errors.Is(err, core.ErrEmptyMessage):
		return nil
	default:
		return m.setToast(err.Error(), true)
	}
}

// =============================================================================
// LAYOUT AND REPAINT
// =============================================================================

func (m *Model) handleResize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)

	vpHeight := height - headerHeight - statusHeight - inputHeight - helpHeight
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = width
	m.viewport.Height = vpHeight

	// Prompt takes 2 cells, box border and padding take 4.
	m.input.Width = width - 8
	if m.input.Width < 10 {
		m.input.Width = 10
	}

	m.refreshChat()
}

// refreshChat rebuilds the viewport from the reconciled message view.
// The scroll position sticks to the bottom unless the user scrolled up.
func (m *Model) refreshChat() {
	atBottom := m.viewport.AtBottom()
	m.lastRev = m.ctrl.Revision()
	m.viewport.SetContent(m.renderMessages())
	if atBottom || m.state == StateStreaming {
		m.viewport.GotoBottom()
	}
}

func (m *Model) setToast(text string, isErr bool) tea.Cmd {
	m.toast = text
	m.toastErr = isErr
	m.toastSeq++
	seq := m.toastSeq
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return ToastExpiredMsg{Seq: seq}
	})
}

// =============================================================================
// COMMANDS
// =============================================================================

// waitEvent blocks for the next controller event. It re-arms itself by
// carrying the channel through ExchangeEventMsg.
func waitEvent(ch <-chan core.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return ExchangeClosedMsg{}
		}
		return ExchangeEventMsg{Event: ev, Events: ch}
	}
}

// waitNotification blocks for the next broker event; the pump stops for
// good once the subscription channel closes.
func waitNotification(ch <-chan realtime.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return NotificationMsg{Event: ev, Ch: ch}
	}
}

func renderTickCmd() tea.Cmd {
	return tea.Tick(renderInterval, func(time.Time) tea.Msg {
		return RenderTickMsg{}
	})
}

func submitCmd(ctrl *core.Controller, text string) tea.Cmd {
	return func() tea.Msg {
		ch, err := ctrl.Submit(context.Background(), text)
		if err != nil {
			return SubmitFailedMsg{Err: err}
		}
		return ExchangeStartedMsg{Events: ch}
	}
}

// stopCmd runs the synchronous Stop off the update loop; the partial
// answer is durable by the time it returns.
func stopCmd(ctrl *core.Controller) tea.Cmd {
	return func() tea.Msg {
		ctrl.Stop()
		return nil
	}
}

func copyAnswerCmd(ctrl *core.Controller) tea.Cmd {
	return func() tea.Msg {
		content := lastAssistantContent(ctrl.Messages())
		if content == "" {
			return ClipboardMsg{Err: errors.New("no answer to copy")}
		}
		return ClipboardMsg{Err: copyToClipboard(content)}
	}
}

func loadSessionsCmd(st store.Store, owner core.OwnerProvider) tea.Cmd {
	return func() tea.Msg {
		ownerID, err := owner.CurrentOwner()
		if err != nil {
			return ErrorMsg{Err: err}
		}
		sessions, err := st.ListSessions(context.Background(), ownerID)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return SessionsLoadedMsg{Sessions: sessions}
	}
}
