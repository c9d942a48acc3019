// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions shared across gyankosh.
//
// This package contains common helpers for crash-safe file writing and
// Unicode-aware string handling.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TailRunes: UTF-8 safe trailing slice
//   - Preview: single-line preview for titles and lists
//   - TruncateWidth: display-width truncation (CJK aware)
//
// # Usage
//
//	// Derive a session title from the first message
//	title := util.Preview(firstMessage, 50)
//
//	// Write state atomically to prevent data loss
//	err := util.AtomicWriteFile(path, data, 0600)
package util
