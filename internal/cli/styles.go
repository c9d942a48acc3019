// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared lipgloss styles for CLI output.

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/gyankosh/internal/ui/styles"
)

// CLI output styles, shared by all command handlers. The palette comes
// from the UI styles package so CLI and TUI output match.
var (
	// TitleStyle is for command output titles and section headers.
	TitleStyle = lipgloss.NewStyle().
			Foreground(styles.Saffron).
			Bold(true)

	// LabelStyle is for field labels in key-value output.
	LabelStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	// ValueStyle is for field values in key-value output.
	ValueStyle = lipgloss.NewStyle().
			Foreground(styles.TextPrimary)

	// SuccessStyle is for success confirmations.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald).
			Bold(true)

	// ErrorStyle is for error output.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	// WarningStyle is for warnings and degraded states.
	WarningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber).
			Bold(true)

	// DimStyle is for secondary detail the eye can skip.
	DimStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	// PromptStyle is for the REPL prompt.
	PromptStyle = lipgloss.NewStyle().
			Foreground(styles.Saffron).
			Bold(true)

	// AccentStyle is for inline highlights like session IDs.
	AccentStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan)

	separatorStyle = lipgloss.NewStyle().
			Foreground(styles.OverlayDim)
)

// RenderSeparator returns a horizontal rule of the given width.
func RenderSeparator(width int) string {
	if width <= 0 {
		width = 40
	}
	return separatorStyle.Render(strings.Repeat("─", width))
}

// labelValue formats one aligned "Label: value" row.
func labelValue(label, value string) string {
	return "  " + LabelStyle.Render(padRight(label+":", 14)) + " " + ValueStyle.Render(value)
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
