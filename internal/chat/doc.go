// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat drives a streamed conversation against the vault store.
//
// The Controller runs one exchange at a time through an explicit stage
// machine: the user message is persisted first, the gateway stream is
// read on a single goroutine, partial answers are checkpointed to the
// store on a ticker, and a stop or network failure persists whatever
// arrived plus a stop marker. The Reconciler merges the durable message
// list with the at-most-one in-flight answer so every UI (TUI, REPL)
// renders the same view. The ResumptionPolicy recognizes "continue"-style
// requests and seeds the next exchange with the tail of the interrupted
// answer.
//
// Both frontends consume the same per-exchange event channel; nothing in
// this package knows about Bubble Tea or terminals.
package chat
