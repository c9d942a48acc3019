// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// Finalized answers render through glamour; streaming answers stay plain
// so the transcript never reflows mid-stream. The renderer is rebuilt
// when the viewport width changes and is dropped entirely if glamour
// fails, in which case answers fall back to the plain pipeline.

// renderMarkdown renders a finalized answer as markdown at the given
// width. Returns false when glamour is unavailable or rendering fails.
func (m *Model) renderMarkdown(content string, width int) (string, bool) {
	if width < 20 {
		return "", false
	}

	if m.md == nil || m.mdWidth != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			m.md = nil
			return "", false
		}
		m.md = r
		m.mdWidth = width
	}

	out, err := m.md.Render(content)
	if err != nil {
		return "", false
	}

	// Glamour pads with blank lines top and bottom; the transcript
	// supplies its own spacing.
	return strings.Trim(out, "\n"), true
}
