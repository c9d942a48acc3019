// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command routing and usage text.

package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdSessions
	CmdAuth
	CmdConfig
	CmdStatus
	CmdExport
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	JSON    bool
	NoColor bool
	Model   string

	// Ask
	Query  string
	DocRef string

	// Export
	Format string
	OutDir string

	// Subcommand and remainder for sessions/auth/config/export.
	Subcommand string
	Raw        []string
}

const usageText = `gyankosh - a personal knowledge vault with streaming AI chat

Gyankosh keeps every conversation in a durable local vault. Answers
stream in live, survive interruptions through periodic checkpoints, and
can be resumed with a plain "continue".

Usage:
  gyankosh                        Start the TUI (default)
  gyankosh ask "question"         Ask a single question
    --doc REF                     Ground the answer in a vault document
    --model NAME                  Override the configured model
    --session ID                  Append to an existing session
    --json                        Machine-readable output
  gyankosh chat                   Interactive chat (REPL)
    --session ID                  Resume an existing session
  gyankosh sessions [subcommand]  Manage saved sessions
    list                          List sessions (default)
    show <id>                     Print a session transcript
    rename <id> --title TEXT      Rename a session
    delete <id> [--yes]           Delete a session and its messages
  gyankosh auth [subcommand]      Vault identity and lock
    init                          Create the vault identity
    unlock [--totp CODE]          Unlock the vault
    lock                          Relock immediately
    status                        Show lock state
    totp                          Enroll a TOTP second factor
    set-key                       Store the gateway API key encrypted
  gyankosh config [subcommand]    Configuration
    show                          Print the active configuration
    get <key>                     Print one value
    set <key> <value>             Change a value
    path                          Print the config file path
  gyankosh status                 Gateway, vault, and usage overview
  gyankosh export <id>            Export a session transcript
    --format md|json|html         Output format (default: md)
    --out DIR                     Output directory (default: .)
  gyankosh version                Print version information
  gyankosh help                   Show this help

Global Flags:
  -q, --quiet     Minimal output
  --json          Output in JSON format
  --no-color      Disable colored output
  --model NAME    Override the configured model

Examples:
  gyankosh                                  Open the TUI
  gyankosh ask "What is moksha?"            One-shot question
  gyankosh ask "Summarize" --doc notes/gita.md
  gyankosh chat                             Chat with history and sessions
  gyankosh sessions list --json             Sessions for scripting
  gyankosh export <id> --format html        Shareable transcript
  gyankosh auth unlock                      Unlock before writing
  gyankosh config set stream.checkpoint_seconds 5

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("gyankosh version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses os.Args and returns the command and parsed arguments.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses the given argument list. Split from Parse for tests.
func ParseArgs(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	// No command: open the TUI.
	if len(remaining) == 0 {
		return CmdTUI, args
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	args.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, args

	case "ask":
		parseAskArgs(&args, remaining)
		return CmdAsk, args

	case "chat":
		parseChatArgs(&args, remaining)
		return CmdChat, args

	case "sessions", "session":
		if len(remaining) > 0 {
			args.Subcommand = remaining[0]
		}
		return CmdSessions, args

	case "auth":
		if len(remaining) > 0 {
			args.Subcommand = remaining[0]
		}
		return CmdAuth, args

	case "config":
		if len(remaining) > 0 {
			args.Subcommand = remaining[0]
		}
		return CmdConfig, args

	case "status", "s":
		return CmdStatus, args

	case "export":
		parseExportArgs(&args, remaining)
		return CmdExport, args

	case "version", "-v", "--version":
		return CmdVersion, args

	case "help", "-h", "--help":
		return CmdHelp, args

	default:
		// Unknown word: treat the whole line as an ask question so
		// `gyankosh what is dharma` does the obvious thing.
		parseAskArgs(&args, append([]string{cmd}, remaining...))
		return CmdAsk, args
	}
}

// parseGlobalFlags extracts global flags and returns the remaining args.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	i := 0
	for i < len(argv) {
		arg := argv[i]

		switch arg {
		case "-q", "--quiet":
			args.Quiet = true
		case "--json":
			args.JSON = true
		case "--no-color":
			args.NoColor = true
		case "--model":
			if i+1 < len(argv) {
				i++
				args.Model = argv[i]
			}
		default:
			if strings.HasPrefix(arg, "--model=") {
				args.Model = strings.TrimPrefix(arg, "--model=")
			} else {
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, args
}

// parseAskArgs parses ask-specific flags; everything else joins the question.
func parseAskArgs(args *Args, remaining []string) {
	var query []string

	i := 0
	for i < len(remaining) {
		arg := remaining[i]

		switch arg {
		case "-d", "--doc":
			if i+1 < len(remaining) {
				i++
				args.DocRef = remaining[i]
			}
		case "-m", "--model":
			if i+1 < len(remaining) {
				i++
				args.Model = remaining[i]
			}
		case "--session":
			if i+1 < len(remaining) {
				i++
				args.Subcommand = remaining[i]
			}
		case "--json":
			args.JSON = true
		default:
			switch {
			case strings.HasPrefix(arg, "--doc="):
				args.DocRef = strings.TrimPrefix(arg, "--doc=")
			case strings.HasPrefix(arg, "--model="):
				args.Model = strings.TrimPrefix(arg, "--model=")
			case strings.HasPrefix(arg, "--session="):
				args.Subcommand = strings.TrimPrefix(arg, "--session=")
			case !strings.HasPrefix(arg, "-"):
				query = append(query, arg)
			}
		}
		i++
	}

	args.Query = strings.Join(query, " ")
}

// parseChatArgs parses chat-specific flags.
func parseChatArgs(args *Args, remaining []string) {
	for i := 0; i < len(remaining); i++ {
		arg := remaining[i]

		switch arg {
		case "--session":
			if i+1 < len(remaining) {
				i++
				args.Subcommand = remaining[i]
			}
		case "-m", "--model":
			if i+1 < len(remaining) {
				i++
				args.Model = remaining[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--session="):
				args.Subcommand = strings.TrimPrefix(arg, "--session=")
			case strings.HasPrefix(arg, "--model="):
				args.Model = strings.TrimPrefix(arg, "--model=")
			}
		}
	}
}

// parseExportArgs parses export flags; the first positional is the session id.
func parseExportArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining)
	args.Subcommand = p.Positional(0)
	args.Format = p.FlagOrDefault("format", "md")
	args.OutDir = p.FlagOrDefault("out", ".")
	if p.BoolFlag("json") {
		args.JSON = true
	}
}
