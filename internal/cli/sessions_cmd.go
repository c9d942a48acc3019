// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// sessions_cmd.go - Session management: list, show, rename, delete.

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/gyankosh/internal/model"
	"github.com/jeranaias/gyankosh/internal/store"
	"github.com/jeranaias/gyankosh/internal/util"
)

// HandleSessions handles the sessions command and its subcommands.
func HandleSessions(args Args) error {
	ctx := context.Background()
	app, cleanup, err := BuildApp(ctx, args)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := app.RequireUnlocked(); err != nil {
		return err
	}

	p := NewArgParser(args.Raw)
	switch p.Subcommand() {
	case "", "list", "ls", "l":
		return sessionsList(ctx, app, args)
	case "show":
		return sessionsShow(ctx, app, args, p.Positional(1))
	case "rename":
		return sessionsRename(ctx, app, p.Positional(1), p.Flag("title"))
	case "delete", "rm":
		return sessionsDelete(ctx, app, p.Positional(1), p.BoolFlag("yes"))
	default:
		return NewValidationErrorWithExample("subcommand", p.Subcommand(),
			"expected list, show, rename, or delete",
			"gyankosh sessions rename <id> --title \"Vedanta notes\"")
	}
}

func sessionsList(ctx context.Context, app *App, args Args) error {
	owner, err := app.Auth.CurrentOwner()
	if err != nil {
		return err
	}
	sessions, err := app.Store.ListSessions(ctx, owner)
	if err != nil {
		return err
	}

	if args.JSON {
		rows := make([]SessionData, 0, len(sessions))
		for _, s := range sessions {
			rows = append(rows, SessionData{
				ID:        s.ID,
				Title:     s.Title,
				CreatedAt: s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
				UpdatedAt: s.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			})
		}
		return NewJSONResponse("sessions", rows).Print()
	}

	if len(sessions) == 0 {
		fmt.Println(DimStyle.Render("No sessions yet. Start one with `gyankosh chat`."))
		return nil
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render(fmt.Sprintf("Sessions (%d)", len(sessions))))
	fmt.Println(RenderSeparator(60))
	for _, s := range sessions {
		fmt.Printf("  %-42s %s  %s\n",
			ValueStyle.Render(util.Preview(s.Title, 40)),
			DimStyle.Render(s.UpdatedAt.Local().Format("2006-01-02 15:04")),
			AccentStyle.Render(s.ID))
	}
	fmt.Println()
	return nil
}

func sessionsShow(ctx context.Context, app *App, args Args, id string) error {
	if id == "" {
		return NewValidationError("session id", "", "show needs a session id")
	}

	sess, err := app.Store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return NewNotFoundError("session", id)
		}
		return err
	}

	msgs, err := app.Store.LoadMessages(ctx, sess.ID)
	if err != nil {
		return err
	}

	if args.JSON {
		type messageRow struct {
			Role        string `json:"role"`
			Content     string `json:"content"`
			DocumentRef string `json:"document_ref,omitempty"`
			CreatedAt   string `json:"created_at"`
		}
		rows := make([]messageRow, 0, len(msgs))
		for _, m := range msgs {
			rows = append(rows, messageRow{
				Role:        string(m.Role),
				Content:     m.Content,
				DocumentRef: m.DocumentRef,
				CreatedAt:   m.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			})
		}
		return NewJSONResponse("sessions", map[string]interface{}{
			"session": SessionData{
				ID:        sess.ID,
				Title:     sess.Title,
				CreatedAt: sess.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
				UpdatedAt: sess.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
				Messages:  len(msgs),
			},
			"messages": rows,
		}).Print()
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render(sess.Title))
	fmt.Println(DimStyle.Render(fmt.Sprintf("%s · %d messages · updated %s",
		sess.ID, len(msgs), sess.UpdatedAt.Local().Format("2006-01-02 15:04"))))
	fmt.Println(RenderSeparator(60))

	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		label := "You"
		style := AccentStyle
		if m.Role == model.RoleAssistant {
			label = "Gyankosh"
			style = TitleStyle
		}
		fmt.Println()
		fmt.Println(style.Render(label) + DimStyle.Render("  "+m.CreatedAt.Local().Format("15:04")))
		fmt.Println(m.Content)
	}
	fmt.Println()
	return nil
}

func sessionsRename(ctx context.Context, app *App, id, title string) error {
	if id == "" || strings.TrimSpace(title) == "" {
		return NewValidationErrorWithExample("arguments", "",
			"rename needs a session id and --title",
			"gyankosh sessions rename <id> --title \"Vedanta notes\"")
	}

	if err := app.Store.RenameSession(ctx, id, strings.TrimSpace(title)); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return NewNotFoundError("session", id)
		}
		return err
	}

	fmt.Printf("%s Renamed %s to %s\n",
		SuccessStyle.Render("[OK]"), AccentStyle.Render(id), ValueStyle.Render(title))
	return nil
}

func sessionsDelete(ctx context.Context, app *App, id string, confirmed bool) error {
	if id == "" {
		return NewValidationError("session id", "", "delete needs a session id")
	}

	sess, err := app.Store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return NewNotFoundError("session", id)
		}
		return err
	}

	if !confirmed {
		if err := RequiresTTY("confirm deletion"); err != nil {
			return fmt.Errorf("refusing to delete without --yes on a non-interactive run")
		}
		answer, err := ReadLine(fmt.Sprintf("Delete %q and all its messages? [y/N] ", util.Preview(sess.Title, 40)))
		if err != nil || !strings.EqualFold(answer, "y") {
			fmt.Println(DimStyle.Render("Not deleted."))
			return nil
		}
	}

	if err := app.Store.DeleteSession(ctx, sess.ID); err != nil {
		return err
	}

	fmt.Printf("%s Deleted %s\n", SuccessStyle.Render("[OK]"), util.Preview(sess.Title, 40))
	return nil
}
