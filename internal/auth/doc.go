// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth manages the vault owner identity and the vault lock.
//
// The vault has exactly one owner. Identity state (owner id, passphrase
// salt, encrypted gateway key, optional TOTP secret) lives in
// identity.json under the config directory. The passphrase never touches
// disk: a PBKDF2-derived AES-256-GCM key encrypts everything sensitive,
// and a fixed check value verifies the passphrase via the GCM auth tag.
//
// Unlocking writes a short-lived unlock file (0600) holding the derived
// key so sibling command invocations can reuse it until it expires or
// `gyankosh auth lock` removes it. Store and gateway calls require an
// unlocked vault; a locked vault surfaces as an authentication error.
package auth
