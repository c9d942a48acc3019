// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// helpers.go - Shared wiring for CLI commands.
//
// Every command needs some subset of config, auth manager, vault store,
// gateway client, and usage tracker. App bundles them so each handler
// builds exactly once and cleans up once.

package cli

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jeranaias/gyankosh/internal/auth"
	core "github.com/jeranaias/gyankosh/internal/chat"
	"github.com/jeranaias/gyankosh/internal/cloud"
	"github.com/jeranaias/gyankosh/internal/config"
	"github.com/jeranaias/gyankosh/internal/realtime"
	"github.com/jeranaias/gyankosh/internal/store"
	"github.com/jeranaias/gyankosh/internal/telemetry"
)

// App bundles the wired dependencies for a command.
type App struct {
	Cfg    *config.Config
	Auth   *auth.Manager
	Store  store.Store
	Client *cloud.Client
	Usage  *telemetry.UsageTracker
	Broker *realtime.Broker
}

// LoadConfig loads the configuration and applies the --model override.
func LoadConfig(args Args) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if args.Model != "" {
		cfg.Gateway.Model = args.Model
	}
	return cfg, nil
}

// NewAuthManager builds the vault auth manager from config.
func NewAuthManager(cfg *config.Config) (*auth.Manager, error) {
	dir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}
	unlockFor := time.Duration(cfg.Auth.UnlockMinutes) * time.Minute
	return auth.NewManager(dir, unlockFor)
}

// ResolveGatewayKey returns the gateway API key using the standard
// precedence: a plaintext key from env or config wins; otherwise the
// key sealed in the vault identity is decrypted, which needs an
// unlocked vault. Empty means not configured.
func ResolveGatewayKey(cfg *config.Config, mgr *auth.Manager) string {
	key := cfg.Gateway.APIKey
	if key != "" && !strings.HasPrefix(key, auth.EncryptedPrefix) {
		return key
	}
	if mgr != nil {
		if k, err := mgr.GatewayKey(); err == nil && k != "" {
			return k
		}
	}
	return ""
}

// NewGatewayClient builds the completion gateway client from config.
func NewGatewayClient(cfg *config.Config, mgr *auth.Manager) *cloud.Client {
	client := cloud.NewClient(ResolveGatewayKey(cfg, mgr)).
		WithBaseURL(cfg.Gateway.BaseURL).
		WithModel(cfg.Gateway.Model).
		WithMaxRetries(cfg.Gateway.MaxRetries).
		WithRequestsPerMinute(cfg.Gateway.RequestsPerMinute)
	return client
}

// BuildApp wires the full dependency set for interactive commands.
// The returned cleanup closes the store; call it when the command ends.
func BuildApp(ctx context.Context, args Args) (*App, func(), error) {
	cfg, err := LoadConfig(args)
	if err != nil {
		return nil, nil, err
	}

	mgr, err := NewAuthManager(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open vault identity: %w", err)
	}

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open vault: %w", err)
	}

	app := &App{
		Cfg:    cfg,
		Auth:   mgr,
		Store:  st,
		Client: NewGatewayClient(cfg, mgr),
		Broker: realtime.NewBroker(),
	}

	// Usage tracking is best-effort; a broken stats file never blocks chat.
	if dir, derr := cfg.DataDir(); derr == nil {
		if tracker, terr := telemetry.NewUsageTracker(dir); terr == nil {
			app.Usage = tracker
		}
	}

	cleanup := func() {
		app.Broker.Close()
		st.Close()
	}
	return app, cleanup, nil
}

// NewController builds a streaming controller over the app's store and
// gateway client. The auth manager doubles as the owner provider.
func (a *App) NewController() *core.Controller {
	opts := []core.Option{
		core.WithBroker(a.Broker),
	}
	if a.Usage != nil {
		opts = append(opts, core.WithUsage(a.Usage))
	}
	return core.NewController(a.Store, a.Client, a.Auth, core.FromConfig(a.Cfg), opts...)
}

// WatchConfig hot-reloads the config file while a long-running surface
// is up, announcing each reload as a ProfileUpdated on the owner topic.
// Best effort: when the watcher cannot start the app just runs without
// hot reload. The returned closer stops watching.
func (a *App) WatchConfig() func() {
	w, err := config.NewWatcher(time.Second)
	if err != nil {
		log.Printf("WARNING: config hot reload unavailable: %v", err)
		return func() {}
	}
	w.OnReload(func(_ *config.Config) {
		ownerID, oerr := a.Auth.CurrentOwner()
		if oerr != nil {
			return
		}
		a.Broker.Publish(realtime.ProfileUpdated{OwnerID: ownerID})
	})
	if err := w.Watch(); err != nil {
		log.Printf("WARNING: config hot reload unavailable: %v", err)
		w.Close()
		return func() {}
	}
	return func() { w.Close() }
}

// RequireUnlocked fails fast when the vault is locked, so commands that
// write can give one clear message instead of a deep store error.
func (a *App) RequireUnlocked() error {
	if !a.Auth.Initialized() {
		return auth.ErrNotInitialized
	}
	if !a.Auth.Unlocked() {
		return auth.ErrLocked
	}
	return nil
}
