// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the gyankosh command-line surface: argument
// parsing, the one-shot ask command, the interactive chat REPL, and the
// management commands for sessions, auth, config, status, and export.
//
// The TUI is launched from main when no command is given; everything
// else routes through Parse and the Handle* functions here. Handlers
// return errors rather than exiting so main can map them to exit codes
// with GetExitCode.
package cli
