// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command.
//
// `gyankosh ask "question"` sends a single question to the gateway and
// prints the answer. Without --session the exchange is ephemeral:
// nothing touches the vault and a locked vault is fine. With --session
// the question is appended to that session through the same streaming
// controller the TUI uses, so checkpoints and stop semantics apply.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"

	core "github.com/jeranaias/gyankosh/internal/chat"
	"github.com/jeranaias/gyankosh/internal/cloud"
	"github.com/jeranaias/gyankosh/internal/config"
	"github.com/jeranaias/gyankosh/internal/store"
	"github.com/jeranaias/gyankosh/internal/telemetry"
	"github.com/jeranaias/gyankosh/internal/util"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

var (
	mdRenderer     *glamour.TermRenderer
	mdRendererOnce sync.Once
)

// markdownRenderer returns the shared glamour renderer, or nil when
// initialization failed (callers fall back to plain text).
func markdownRenderer(width int) *glamour.TermRenderer {
	mdRendererOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err == nil {
			mdRenderer = r
		}
	})
	return mdRenderer
}

// displayAnswer prints a finished answer: glamour-rendered markdown on a
// TTY, plain text when piped or when rendering fails. Streaming output
// never goes through here; only complete answers get rendered.
func displayAnswer(content string, cfg *config.Config) {
	if !IsStdoutTTY() {
		fmt.Println(content)
		return
	}

	width := cfg.UI.MarkdownWidth
	if width <= 0 {
		width = DefaultTerminalWidth
	}
	if w := GetTerminalWidth(); w < width {
		width = w
	}

	r := markdownRenderer(width)
	if r == nil {
		fmt.Println(content)
		return
	}
	rendered, err := r.Render(content)
	if err != nil {
		fmt.Println(content)
		return
	}
	fmt.Print(rendered)
}

// docGroundingPrompt is the system message for --doc on the ephemeral
// path. (The controller stores the reference on the message itself.)
func docGroundingPrompt(ref string) string {
	return "The user is asking about a document in their knowledge vault. " +
		"Ground your answer in the document referenced as: " + ref
}

// =============================================================================
// ASK HANDLER
// =============================================================================

// HandleAsk handles the ask command.
func HandleAsk(args Args) error {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return NewValidationErrorWithExample("question", "", "ask needs a question",
			`gyankosh ask "What is dharma?"`)
	}

	ctx := context.Background()
	app, cleanup, err := BuildApp(ctx, args)
	if err != nil {
		return err
	}
	defer cleanup()

	if args.Subcommand != "" {
		return askInSession(ctx, app, args, query)
	}
	return askEphemeral(ctx, app, args, query)
}

// askEphemeral sends the question directly to the gateway without
// touching the vault.
func askEphemeral(ctx context.Context, app *App, args Args, query string) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	var msgs []cloud.ChatMessage
	if args.DocRef != "" {
		msgs = append(msgs, cloud.NewSystemMessage(docGroundingPrompt(args.DocRef)))
	}
	msgs = append(msgs, cloud.NewUserMessage(query))

	start := time.Now()
	resp, err := app.Client.Chat(ctx, msgs)
	if err != nil {
		if args.JSON {
			NewJSONErrorResponse("ask", err).Print()
		}
		return err
	}
	elapsed := time.Since(start)
	content := resp.GetContent()

	if app.Usage != nil {
		app.Usage.Record(telemetry.ExchangeUsage{
			Timestamp:     time.Now(),
			Model:         app.Client.Model(),
			PromptPreview: util.Preview(query, 80),
			InputTokens:   resp.Usage.PromptTokens,
			OutputTokens:  resp.Usage.CompletionTokens,
			Duration:      elapsed,
		})
	}

	if args.JSON {
		return NewJSONResponse("ask", AskData{
			Answer:       content,
			Model:        app.Client.Model(),
			DocumentRef:  args.DocRef,
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			DurationMs:   elapsed.Milliseconds(),
		}).Print()
	}

	displayAnswer(content, app.Cfg)

	if app.Cfg.UI.ShowStats && !args.Quiet {
		fmt.Println(DimStyle.Render(fmt.Sprintf("%s · %d tokens · %s",
			app.Client.Model(), resp.Usage.TotalTokens, elapsed.Round(100*time.Millisecond))))
	}
	return nil
}

// askInSession appends the question to an existing session through the
// streaming controller, so the answer is checkpointed to the vault and
// Ctrl+C saves the partial.
func askInSession(ctx context.Context, app *App, args Args, query string) error {
	if err := app.RequireUnlocked(); err != nil {
		return err
	}

	ctrl := app.NewController()
	defer ctrl.Close()

	if err := ctrl.SwitchSession(ctx, args.Subcommand); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return NewNotFoundError("session", args.Subcommand)
		}
		return err
	}

	events, err := ctrl.SubmitWithRef(ctx, query, args.DocRef)
	if err != nil {
		return err
	}

	// Ctrl+C stops the stream; the checkpointed partial stays saved.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer func() {
		signal.Stop(sigCh)
		close(sigCh)
	}()
	go func() {
		if _, ok := <-sigCh; ok {
			ctrl.Stop()
		}
	}()

	// On a TTY the full answer renders at the end; piped output streams
	// deltas as they arrive.
	streamPlain := !args.JSON && !IsStdoutTTY()
	start := time.Now()

	var final core.Event
	for ev := range events {
		switch ev.Kind {
		case core.EventDelta:
			if streamPlain {
				fmt.Print(ev.Delta)
			}
		case core.EventDone, core.EventAborted:
			final = ev
		}
	}
	if streamPlain {
		fmt.Println()
	}
	elapsed := time.Since(start)

	switch final.Kind {
	case core.EventDone:
		if args.JSON {
			return NewJSONResponse("ask", AskData{
				Answer:      final.Content,
				Model:       app.Client.Model(),
				SessionID:   args.Subcommand,
				DocumentRef: args.DocRef,
				DurationMs:  elapsed.Milliseconds(),
			}).Print()
		}
		if !streamPlain {
			displayAnswer(final.Content, app.Cfg)
		}
		return nil

	case core.EventAborted:
		if !streamPlain && !args.JSON && final.Content != "" {
			displayAnswer(final.Content, app.Cfg)
		}
		if final.Stopped {
			fmt.Fprintln(os.Stderr, WarningStyle.Render("stopped — partial answer saved"))
			if args.JSON {
				return NewJSONResponse("ask", AskData{
					Answer:     final.Content,
					Model:      app.Client.Model(),
					SessionID:  args.Subcommand,
					DurationMs: elapsed.Milliseconds(),
				}).Print()
			}
			return nil
		}
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("connection error — partial answer saved"))
		if args.JSON {
			NewJSONErrorResponse("ask", final.Err).Print()
		}
		return final.Err

	default:
		return fmt.Errorf("stream ended without a final event")
	}
}
