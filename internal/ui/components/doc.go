// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable rendering pieces for the TUI:
// syntax-highlighted code blocks and inline code spans extracted from
// assistant answers.
package components
