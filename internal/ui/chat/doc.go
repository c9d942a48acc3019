// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the interactive TUI on top of the exchange
// controller. The model never touches the stream or the store directly:
// it submits through the controller, drains the per-exchange event
// channel via commands, and repaints from the controller's reconciled
// message view, throttled to a fixed frame interval.
package chat
