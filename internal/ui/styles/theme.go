// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// THEME
// =============================================================================

// Theme holds every pre-built style the chat view needs. Build one with
// NewTheme at startup and call SetSize when the terminal resizes; styles
// that depend on width are rebuilt there.
type Theme struct {
	Profile termenv.Profile
	Width   int
	Height  int

	// Chrome
	Header    lipgloss.Style
	HeaderTag lipgloss.Style
	StatusBar lipgloss.Style
	HelpBar   lipgloss.Style
	InputBox  lipgloss.Style

	// Messages
	UserBubble    lipgloss.Style
	UserLabel     lipgloss.Style
	Assistant     lipgloss.Style
	AssistantName lipgloss.Style
	Timestamp     lipgloss.Style
	StopNote      lipgloss.Style
	Cursor        lipgloss.Style

	// Session picker
	PickerTitle    lipgloss.Style
	PickerItem     lipgloss.Style
	PickerSelected lipgloss.Style
	PickerHint     lipgloss.Style

	// Transient notices
	Toast      lipgloss.Style
	ToastError lipgloss.Style
}

// NewTheme builds the default theme, detecting the terminal color profile.
func NewTheme() *Theme {
	t := &Theme{
		Profile: termenv.ColorProfile(),
		Width:   80,
		Height:  24,
	}
	t.build()
	return t
}

// SetSize updates width-dependent styles after a terminal resize.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
	t.build()
}

func (t *Theme) build() {
	t.Header = lipgloss.NewStyle().
		Foreground(Saffron).
		Bold(true).
		Background(SurfaceDim).
		Width(t.Width).
		Padding(0, 1)

	t.HeaderTag = lipgloss.NewStyle().
		Foreground(TextMuted).
		Background(SurfaceDim)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Width(t.Width).
		Padding(0, 1)

	t.HelpBar = lipgloss.NewStyle().
		Foreground(TextMuted).
		Width(t.Width).
		Padding(0, 1)

	t.InputBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1).
		Width(max(t.Width-2, 20))

	bubbleWidth := t.Width * 2 / 3
	if bubbleWidth < 24 {
		bubbleWidth = 24
	}

	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		Background(UserBubbleBg).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1).
		MaxWidth(bubbleWidth)

	t.UserLabel = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.Assistant = lipgloss.NewStyle().
		Foreground(TextPrimary).
		MarginLeft(1).
		MaxWidth(max(t.Width-4, 20))

	t.AssistantName = lipgloss.NewStyle().
		Foreground(Indigo).
		Bold(true)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.StopNote = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)

	t.Cursor = lipgloss.NewStyle().
		Foreground(Saffron).
		Blink(true)

	t.PickerTitle = lipgloss.NewStyle().
		Foreground(Saffron).
		Bold(true).
		Padding(0, 1)

	t.PickerItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Padding(0, 2)

	t.PickerSelected = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SelectionBg).
		Bold(true).
		Padding(0, 2)

	t.PickerHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Padding(0, 1)

	t.Toast = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true).
		Padding(0, 1)

	t.ToastError = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true).
		Padding(0, 1)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
