// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat REPL with input history.
//
// The REPL drives the same streaming controller as the TUI: answers
// checkpoint to the vault while they stream, Ctrl+C stops the current
// answer and keeps the partial, and "continue" resumes it. Line editing
// and history come from liner.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"

	core "github.com/jeranaias/gyankosh/internal/chat"
	"github.com/jeranaias/gyankosh/internal/config"
	"github.com/jeranaias/gyankosh/internal/model"
	"github.com/jeranaias/gyankosh/internal/store"
	"github.com/jeranaias/gyankosh/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI with history loaded from the config dir.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads one line with history navigation.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// REPL STATE
// =============================================================================

// replState carries what the slash commands operate on.
type replState struct {
	app   *App
	ctrl  *core.Controller
	start time.Time

	// listed caches the numbering from the last /sessions output so
	// /switch and /delete accept an index in place of an id.
	listed []model.Session
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChat runs the interactive chat REPL.
func HandleChat(args Args) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	ctx := context.Background()
	app, cleanup, err := BuildApp(ctx, args)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := app.RequireUnlocked(); err != nil {
		return err
	}

	ctrl := app.NewController()
	defer ctrl.Close()

	// Resume: an explicit --session wins, otherwise pick up the most
	// recently updated conversation. /new starts a fresh one.
	if args.Subcommand != "" {
		if err := ctrl.SwitchSession(ctx, args.Subcommand); err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				return NewNotFoundError("session", args.Subcommand)
			}
			return err
		}
	} else if owner, oerr := app.Auth.CurrentOwner(); oerr == nil {
		if sessions, lerr := app.Store.ListSessions(ctx, owner); lerr == nil && len(sessions) > 0 {
			ctrl.SwitchSession(ctx, sessions[0].ID)
		}
	}

	state := &replState{app: app, ctrl: ctrl, start: time.Now()}

	if !args.Quiet {
		printWelcome(state)
	}

	repl := NewChatCLI()
	defer repl.Close()

	// Ctrl+C during streaming stops the stream; at the prompt liner
	// turns it into ErrPromptAborted instead.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if ctrl.Stage().Active() {
				ctrl.Stop()
			}
		}
	}()

	for {
		input, err := repl.ReadInput(PromptStyle.Render("gyankosh> "))
		if err != nil {
			// Ctrl+C (ErrPromptAborted) or Ctrl+D: leave gracefully.
			fmt.Println()
			printExitSummary(state)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			keep, err := handleSlashCommand(ctx, state, repl, input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !keep {
				printExitSummary(state)
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			printExitSummary(state)
			return nil
		}

		if err := streamExchange(ctx, state, input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
	}
}

// =============================================================================
// EXCHANGE STREAMING
// =============================================================================

// streamExchange submits one message and prints deltas as they arrive.
// Output stays plain while streaming; the transcript is already on
// screen when the answer finishes, so nothing is re-rendered.
func streamExchange(ctx context.Context, state *replState, input string) error {
	events, err := state.ctrl.Submit(ctx, input)
	if err != nil {
		if errors.Is(err, core.ErrExchangeActive) {
			return fmt.Errorf("an answer is already streaming; press Ctrl+C to stop it")
		}
		return err
	}

	fmt.Println()
	start := time.Now()

	var final core.Event
	for ev := range events {
		switch ev.Kind {
		case core.EventDelta:
			fmt.Print(ev.Delta)
		case core.EventWarning:
			if ev.Err != nil {
				fmt.Fprintf(os.Stderr, "\n%s %v\n", WarningStyle.Render("[Warning]"), ev.Err)
			}
		case core.EventDone, core.EventAborted:
			final = ev
		}
	}
	fmt.Println()

	switch final.Kind {
	case core.EventAborted:
		if final.Stopped {
			fmt.Println(WarningStyle.Render("stopped — partial answer saved"))
			fmt.Println(DimStyle.Render(`Send "continue" to resume the answer.`))
		} else {
			fmt.Println(ErrorStyle.Render("connection error — partial answer saved"))
			if final.Err != nil {
				fmt.Println(DimStyle.Render(final.Err.Error()))
			}
			fmt.Println(DimStyle.Render(`Send "continue" to resume the answer.`))
		}
	case core.EventDone:
		if state.app.Cfg.UI.ShowStats {
			fmt.Println(DimStyle.Render(fmt.Sprintf("%s · %s",
				state.app.Client.Model(), time.Since(start).Round(100*time.Millisecond))))
		}
	}
	fmt.Println()
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (keepRunning, error); keepRunning=false exits the REPL.
func handleSlashCommand(ctx context.Context, state *replState, repl *ChatCLI, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		printReplHelp()
		return true, nil

	case "/sessions", "/ls":
		return true, listSessionsRepl(ctx, state)

	case "/switch", "/sw":
		return true, switchSessionRepl(ctx, state, args)

	case "/new", "/n":
		state.ctrl.ClearSession()
		fmt.Println(SuccessStyle.Render("[OK]") + " Fresh conversation; the next message starts a new session.")
		return true, nil

	case "/rename":
		return true, renameSessionRepl(ctx, state, strings.Join(args, " "))

	case "/delete", "/del":
		return true, deleteSessionRepl(ctx, state, repl, args)

	case "/continue", "/cont":
		return true, streamExchange(ctx, state, "continue")

	case "/status", "/s":
		printReplStatus(state)
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// listSessionsRepl prints the owner's sessions with stable numbering.
func listSessionsRepl(ctx context.Context, state *replState) error {
	owner, err := state.app.Auth.CurrentOwner()
	if err != nil {
		return err
	}
	sessions, err := state.app.Store.ListSessions(ctx, owner)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println(DimStyle.Render("No sessions yet."))
		return nil
	}

	state.listed = sessions
	cur := state.ctrl.CurrentSession()

	fmt.Println()
	for i, s := range sessions {
		marker := "  "
		if cur != nil && cur.ID == s.ID {
			marker = AccentStyle.Render("▸ ")
		}
		fmt.Printf("%s%s %-40s %s %s\n",
			marker,
			DimStyle.Render(fmt.Sprintf("%2d.", i+1)),
			util.Preview(s.Title, 40),
			DimStyle.Render(s.UpdatedAt.Local().Format("2006-01-02 15:04")),
			DimStyle.Render(s.ID))
	}
	fmt.Println()
	fmt.Println(DimStyle.Render("/switch N opens one, /delete N removes one"))
	return nil
}

// resolveSessionArg turns a /switch or /delete argument into a session:
// an index into the last /sessions listing, or a session id.
func resolveSessionArg(ctx context.Context, state *replState, arg string) (*model.Session, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(state.listed) {
			return nil, fmt.Errorf("no session numbered %d; run /sessions first", n)
		}
		s := state.listed[n-1]
		return &s, nil
	}

	sess, err := state.app.Store.GetSession(ctx, arg)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, fmt.Errorf("session not found: %s", arg)
		}
		return nil, err
	}
	return sess, nil
}

func switchSessionRepl(ctx context.Context, state *replState, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: /switch <number|session-id>")
	}
	if state.ctrl.Stage().Active() {
		return fmt.Errorf("an answer is streaming; stop it before switching")
	}

	sess, err := resolveSessionArg(ctx, state, args[0])
	if err != nil {
		return err
	}
	if err := state.ctrl.SwitchSession(ctx, sess.ID); err != nil {
		return err
	}

	msgs := state.ctrl.Messages()
	fmt.Printf("%s Switched to %s (%d messages)\n",
		SuccessStyle.Render("[OK]"),
		ValueStyle.Render(util.Preview(sess.Title, 40)),
		len(msgs))

	// Show the tail so the conversation has context on screen.
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		if last.Role == model.RoleAssistant && last.Content != "" {
			fmt.Println()
			fmt.Println(DimStyle.Render(util.Preview(last.Content, 200)))
		}
	}
	fmt.Println()
	return nil
}

func renameSessionRepl(ctx context.Context, state *replState, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("usage: /rename <new title>")
	}
	cur := state.ctrl.CurrentSession()
	if cur == nil {
		return fmt.Errorf("no active session to rename")
	}
	if err := state.app.Store.RenameSession(ctx, cur.ID, title); err != nil {
		return err
	}
	fmt.Printf("%s Renamed to %s\n", SuccessStyle.Render("[OK]"), ValueStyle.Render(title))
	return nil
}

func deleteSessionRepl(ctx context.Context, state *replState, repl *ChatCLI, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: /delete <number|session-id>")
	}
	if state.ctrl.Stage().Active() {
		return fmt.Errorf("an answer is streaming; stop it before deleting")
	}

	sess, err := resolveSessionArg(ctx, state, args[0])
	if err != nil {
		return err
	}

	answer, err := repl.line.Prompt(fmt.Sprintf("Delete %q and all its messages? [y/N] ", util.Preview(sess.Title, 40)))
	if err != nil || !strings.EqualFold(strings.TrimSpace(answer), "y") {
		fmt.Println(DimStyle.Render("Not deleted."))
		return nil
	}

	if err := state.app.Store.DeleteSession(ctx, sess.ID); err != nil {
		return err
	}
	if cur := state.ctrl.CurrentSession(); cur != nil && cur.ID == sess.ID {
		state.ctrl.ClearSession()
	}
	state.listed = nil
	fmt.Printf("%s Deleted %s\n", SuccessStyle.Render("[OK]"), util.Preview(sess.Title, 40))
	return nil
}

// =============================================================================
// DISPLAY
// =============================================================================

func printWelcome(state *replState) {
	cfg := state.app.Cfg

	fmt.Println()
	fmt.Println(TitleStyle.Render("gyankosh chat"))
	fmt.Println(RenderSeparator(30))
	fmt.Println(labelValue("Model", cfg.Gateway.Model))

	backend := "sqlite"
	if cfg.UsesPostgres() {
		backend = "postgres"
	}
	fmt.Println(labelValue("Vault", backend))

	if cur := state.ctrl.CurrentSession(); cur != nil {
		fmt.Println(labelValue("Session", util.Preview(cur.Title, 50)))
	} else {
		fmt.Println(labelValue("Session", "new (created on first message)"))
	}

	fmt.Println()
	fmt.Println(DimStyle.Render("Type a message and press Enter. /help lists commands, Ctrl+C stops a streaming answer."))
	fmt.Println()
}

func printReplHelp() {
	commands := []struct {
		cmd  string
		desc string
	}{
		{"/sessions", "List saved sessions"},
		{"/switch <n|id>", "Open another session"},
		{"/new", "Start a fresh conversation"},
		{"/rename <title>", "Rename the current session"},
		{"/delete <n|id>", "Delete a session"},
		{"/continue", "Resume an interrupted answer"},
		{"/status", "Session and usage overview"},
		{"/help", "Show this help"},
		{"/quit", "Exit chat"},
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render("Commands"))
	fmt.Println(RenderSeparator(20))
	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			AccentStyle.Render(fmt.Sprintf("%-16s", c.cmd)),
			DimStyle.Render(c.desc))
	}
	fmt.Println()
	fmt.Println(DimStyle.Render("Ctrl+C stops a streaming answer; the partial stays saved. Ctrl+D exits."))
	fmt.Println()
}

func printReplStatus(state *replState) {
	fmt.Println()
	fmt.Println(TitleStyle.Render("Session Status"))
	fmt.Println(RenderSeparator(20))

	if cur := state.ctrl.CurrentSession(); cur != nil {
		fmt.Println(labelValue("Session", util.Preview(cur.Title, 50)))
		fmt.Println(labelValue("ID", cur.ID))
		fmt.Println(labelValue("Messages", fmt.Sprintf("%d", len(state.ctrl.Messages()))))
	} else {
		fmt.Println(labelValue("Session", "none yet"))
	}

	fmt.Println(labelValue("Model", state.app.Cfg.Gateway.Model))
	fmt.Println(labelValue("Elapsed", time.Since(state.start).Round(time.Second).String()))

	if state.app.Usage != nil {
		t := state.app.Usage.Totals()
		fmt.Println()
		fmt.Println(labelValue("Exchanges", fmt.Sprintf("%d (%d stopped)", t.Exchanges, t.Aborted)))
		fmt.Println(labelValue("Tokens", fmt.Sprintf("%d in / %d out", t.InputTokens, t.OutputTokens)))
	}
	fmt.Println()
}

func printExitSummary(state *replState) {
	if cur := state.ctrl.CurrentSession(); cur != nil {
		fmt.Println(DimStyle.Render(fmt.Sprintf(
			"Saved in %q · resume with: gyankosh chat --session %s",
			util.Preview(cur.Title, 40), cur.ID)))
	}
	fmt.Println(DimStyle.Render(fmt.Sprintf("Chatted for %s.", time.Since(state.start).Round(time.Second))))
}
