// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jeranaias/gyankosh/internal/export"
	"github.com/jeranaias/gyankosh/internal/store"
)

// =============================================================================
// EXPORT COMMAND
// =============================================================================

// HandleExport writes a session transcript to a file.
//
//	gyankosh export <session-id> [--format md|json|html] [--out DIR]
func HandleExport(args Args) error {
	sessionID := args.Subcommand
	if sessionID == "" {
		return NewValidationErrorWithExample("session-id", "", "session id is required",
			"gyankosh export <session-id> --format md")
	}

	exporter, err := buildExporter(args)
	if err != nil {
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

	sess, err := app.Store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return NewNotFoundError("session", sessionID)
		}
		return err
	}

	msgs, err := app.Store.LoadMessages(ctx, sess.ID)
	if err != nil {
		return err
	}

	opts := export.DefaultOptions()
	opts.OutputDir = args.OutDir

	path, err := export.ExportToFile(sess, msgs, exporter, opts)
	if err != nil {
		return NewCommandError("export", "write transcript", err.Error(), err)
	}

	info, statErr := os.Stat(path)
	size := int64(0)
	if statErr == nil {
		size = info.Size()
	}

	if args.JSON {
		return NewJSONResponse("export", ExportData{
			SessionID: sess.ID,
			Format:    args.Format,
			Path:      path,
			Bytes:     size,
		}).Print()
	}

	if !args.Quiet {
		fmt.Printf("%s %s\n", SuccessStyle.Render("[OK]"),
			fmt.Sprintf("Exported %q (%d messages)", sess.Title, len(msgs)))
	}
	fmt.Println(path)
	return nil
}

// buildExporter maps the --format flag to an exporter.
func buildExporter(args Args) (export.Exporter, error) {
	opts := export.DefaultOptions()
	opts.OutputDir = args.OutDir

	e, err := export.ForFormat(args.Format, opts)
	if err != nil {
		return nil, NewValidationErrorWithExample("format", args.Format,
			"unknown export format", "gyankosh export <session-id> --format json")
	}
	return e, nil
}
