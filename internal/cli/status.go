// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Gateway, vault, and usage overview.

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/gyankosh/internal/cloud"
)

// gatewayCheckTimeout bounds the reachability probe so status never hangs.
const gatewayCheckTimeout = 5 * time.Second

// HandleStatus handles the status command.
func HandleStatus(args Args) error {
	ctx := context.Background()
	app, cleanup, err := BuildApp(ctx, args)
	if err != nil {
		return err
	}
	defer cleanup()

	data := collectStatus(ctx, app)

	if args.JSON {
		return NewJSONResponse("status", data).Print()
	}

	printStatus(data)
	return nil
}

func collectStatus(ctx context.Context, app *App) StatusData {
	var data StatusData

	// Gateway: configured model plus a bounded reachability probe.
	data.Gateway.BaseURL = app.Cfg.Gateway.BaseURL
	data.Gateway.Model = app.Cfg.Gateway.Model
	data.Gateway.KeySet = app.Client.IsConfigured()
	if data.Gateway.KeySet {
		if err := CheckGateway(ctx, app.Client); err != nil {
			data.Gateway.Reachable = false
			data.Gateway.CheckError = err.Error()
		} else {
			data.Gateway.Reachable = true
		}
	}

	// Vault.
	data.Vault.Backend = "sqlite"
	if app.Cfg.UsesPostgres() {
		data.Vault.Backend = "postgres"
	} else if path, err := app.Cfg.DatabasePath(); err == nil {
		data.Vault.Path = path
	}
	data.Vault.Unlocked = app.Auth.Unlocked()
	if id := app.Auth.Identity(); id != nil {
		data.Vault.TOTPSet = id.TOTPEnabled()
		data.Vault.Encrypted = id.GatewayKey != ""
	}
	if owner, err := app.Auth.CurrentOwner(); err == nil {
		data.Vault.Owner = owner
		if sessions, lerr := app.Store.ListSessions(ctx, owner); lerr == nil {
			data.Vault.Sessions = len(sessions)
			total := 0
			for _, s := range sessions {
				if msgs, merr := app.Store.LoadMessages(ctx, s.ID); merr == nil {
					total += len(msgs)
				}
			}
			data.Vault.Messages = total
		}
	}

	// Usage.
	if app.Usage != nil {
		t := app.Usage.Totals()
		data.Usage = StatusUsageInfo{
			Exchanges:    t.Exchanges,
			Aborted:      t.Aborted,
			InputTokens:  t.InputTokens,
			OutputTokens: t.OutputTokens,
			TotalTimeMs:  t.TotalDuration.Milliseconds(),
		}
	}

	return data
}

func printStatus(data StatusData) {
	fmt.Println()
	fmt.Println(TitleStyle.Render("gyankosh status"))
	fmt.Println(RenderSeparator(40))

	fmt.Println()
	fmt.Println(LabelStyle.Render("  Gateway"))
	fmt.Println(labelValue("endpoint", data.Gateway.BaseURL))
	fmt.Println(labelValue("model", data.Gateway.Model))
	switch {
	case !data.Gateway.KeySet:
		fmt.Println(labelValue("key", WarningStyle.Render("not configured")))
		fmt.Println(DimStyle.Render("    Store one with `gyankosh auth set-key` or set GYANKOSH_GATEWAY_KEY."))
	case data.Gateway.Reachable:
		fmt.Println(labelValue("reachable", SuccessStyle.Render("yes")))
	default:
		fmt.Println(labelValue("reachable", ErrorStyle.Render("no")))
		if data.Gateway.CheckError != "" {
			fmt.Println(DimStyle.Render("    " + data.Gateway.CheckError))
		}
	}

	fmt.Println()
	fmt.Println(LabelStyle.Render("  Vault"))
	fmt.Println(labelValue("backend", data.Vault.Backend))
	if data.Vault.Path != "" {
		fmt.Println(labelValue("path", data.Vault.Path))
	}
	if data.Vault.Unlocked {
		fmt.Println(labelValue("lock", SuccessStyle.Render("unlocked")))
		fmt.Println(labelValue("sessions", fmt.Sprintf("%d (%d messages)", data.Vault.Sessions, data.Vault.Messages)))
	} else {
		fmt.Println(labelValue("lock", WarningStyle.Render("locked")))
	}
	fmt.Println(labelValue("totp", yesNo(data.Vault.TOTPSet)))

	if data.Usage.Exchanges > 0 {
		fmt.Println()
		fmt.Println(LabelStyle.Render("  Usage"))
		fmt.Println(labelValue("exchanges", fmt.Sprintf("%d (%d stopped)", data.Usage.Exchanges, data.Usage.Aborted)))
		fmt.Println(labelValue("tokens", fmt.Sprintf("%d in / %d out", data.Usage.InputTokens, data.Usage.OutputTokens)))
		fmt.Println(labelValue("time", (time.Duration(data.Usage.TotalTimeMs) * time.Millisecond).Round(time.Second).String()))
	}
	fmt.Println()
}

// CheckGateway probes the gateway once with a bounded timeout.
func CheckGateway(ctx context.Context, client *cloud.Client) error {
	if !client.IsConfigured() {
		return cloud.ErrNotConfigured
	}
	probeCtx, cancel := context.WithTimeout(ctx, gatewayCheckTimeout)
	defer cancel()
	_, err := client.ListModels(probeCtx)
	return err
}
