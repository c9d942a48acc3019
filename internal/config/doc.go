// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for gyankosh.
//
// Configuration is read from ~/.gyankosh/config.toml, merged over built-in
// defaults, then overridden by GYANKOSH_* environment variables (a
// project-local .env file is honored). Validation rejects out-of-range
// values with a field-by-field error list.
//
// # Sections
//
//   - [vault]   durable store location: SQLite file or Postgres DSN
//   - [gateway] AI completion gateway endpoint, model, key, pacing
//   - [stream]  checkpoint cadence and continuation seeding bounds
//   - [auth]    vault lock policy (passphrase, optional TOTP)
//   - [ui]      rendering preferences
//
// # Usage
//
//	cfg := config.Global()           // lazy-loaded singleton
//	err := config.ReloadGlobal()     // re-read from disk
//	v, err := cfg.Get("gateway.model")
//	err = cfg.Set("stream.checkpoint_seconds", "5")
//
// A Watcher built on fsnotify reloads the global config when the file
// changes on disk, debounced against editor write bursts.
package config
