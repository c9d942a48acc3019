// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders a vault session transcript to a shareable
// format: Markdown, JSON, or a self-contained HTML page. Exports are
// faithful to the stored conversation, including the stop marker on
// interrupted answers, and are written atomically so a crash never
// leaves a half-written file.
package export
