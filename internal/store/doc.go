// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists vault sessions and messages.
//
// The package exposes a single Store contract with two backends: an
// embedded SQLite database (the default, zero-setup path) and PostgreSQL
// for shared vaults. Every successful write is durable when the call
// returns; streaming checkpoints layer their own buffering above this
// package, never inside it.
//
// Message ordering within a session is by the server-assigned seq column,
// which also breaks creation-timestamp ties. Sessions own their messages:
// deleting a session cascades to its messages in both backends.
package store
