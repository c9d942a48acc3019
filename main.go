// gyankosh - a personal knowledge vault with streaming AI chat.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	core "github.com/jeranaias/gyankosh/internal/chat"
	"github.com/jeranaias/gyankosh/internal/cli"
	"github.com/jeranaias/gyankosh/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	if args.NoColor {
		cli.ForceColorsEnabled(false)
	}

	switch cmd {
	case cli.CmdTUI:
		runTUI(args)
	case cli.CmdAsk:
		cli.HandleErrorAndExit(cli.HandleAsk(args), args.JSON)
	case cli.CmdChat:
		cli.HandleErrorAndExit(cli.HandleChat(args), args.JSON)
	case cli.CmdSessions:
		cli.HandleErrorAndExit(cli.HandleSessions(args), args.JSON)
	case cli.CmdAuth:
		cli.HandleErrorAndExit(cli.HandleAuth(args), args.JSON)
	case cli.CmdConfig:
		cli.HandleErrorAndExit(cli.HandleConfig(args), args.JSON)
	case cli.CmdStatus:
		cli.HandleErrorAndExit(cli.HandleStatus(args), args.JSON)
	case cli.CmdExport:
		cli.HandleErrorAndExit(cli.HandleExport(args), args.JSON)
	case cli.CmdVersion:
		cli.PrintVersion()
	case cli.CmdHelp:
		cli.PrintUsage()
	default:
		runTUI(args)
	}
}

// runTUI starts the full-screen interface.
func runTUI(args cli.Args) {
	ctx := context.Background()

	app, cleanup, err := cli.BuildApp(ctx, args)
	if err != nil {
		cli.HandleErrorAndExit(err, args.JSON)
	}
	defer cleanup()

	// The screen can do nothing against a locked vault; fail fast with
	// the unlock hint instead.
	if err := app.RequireUnlocked(); err != nil {
		cli.HandleErrorAndExit(err, args.JSON)
	}

	ctrl := app.NewController()
	defer ctrl.Close()

	stopWatch := app.WatchConfig()
	defer stopWatch()

	m := chat.New(ctrl, app.Store, app.Auth, core.FromConfig(app.Cfg))

	// Resume the most recently touched session, same as `gyankosh chat`.
	if owner, err := app.Auth.CurrentOwner(); err == nil {
		if sessions, err := app.Store.ListSessions(ctx, owner); err == nil && len(sessions) > 0 {
			_ = ctrl.SwitchSession(ctx, sessions[0].ID)
		}
		notify, unsubscribe := app.Broker.Subscribe(owner)
		defer unsubscribe()
		m = m.WithNotifications(notify)
	}

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if app.Cfg.UI.MouseEnabled {
		opts = append(opts, tea.WithMouseCellMotion())
	}

	p := tea.NewProgram(m, opts...)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running gyankosh: %v\n", err)
		os.Exit(1)
	}
}
