// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the gyankosh TUI.
// All colors use Lip Gloss AdaptiveColor so the palette works on both
// light and dark terminals without configuration.
package styles
