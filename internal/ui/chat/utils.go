// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/atotto/clipboard"

	"github.com/jeranaias/gyankosh/internal/model"
	"github.com/jeranaias/gyankosh/internal/util"
)

// =============================================================================
// TEXT HELPERS
// =============================================================================

// wrapText word-wraps prose to the given rune width. Words longer than
// a line are broken. Existing newlines are preserved.
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = wrapLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func wrapLine(line string, width int) string {
	words := strings.Fields(line)
	if len(words) == 0 {
		return ""
	}

	var out strings.Builder
	lineLen := 0
	for _, w := range words {
		wlen := utf8.RuneCountInString(w)

		if wlen > width {
			if lineLen > 0 {
				out.WriteByte('\n')
			}
			runes := []rune(w)
			for len(runes) > width {
				out.WriteString(string(runes[:width]))
				out.WriteByte('\n')
				runes = runes[width:]
			}
			out.WriteString(string(runes))
			lineLen = len(runes)
			continue
		}

		if lineLen > 0 && lineLen+1+wlen > width {
			out.WriteByte('\n')
			lineLen = 0
		}
		if lineLen > 0 {
			out.WriteByte(' ')
			lineLen++
		}
		out.WriteString(w)
		lineLen += wlen
	}
	return out.String()
}

// truncate shortens s to maxRunes for list rows.
func truncate(s string, maxRunes int) string {
	return util.Preview(s, maxRunes)
}

// =============================================================================
// TIME FORMATTING
// =============================================================================

// formatTimestamp renders a message time for the transcript.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("15:04")
}

// relTime renders how long ago a session was touched.
func relTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Local().Format("2006-01-02")
	}
}

// fmtDuration renders elapsed and estimated times for the status bar.
func fmtDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}

// =============================================================================
// CLIPBOARD AND MESSAGES
// =============================================================================

// copyToClipboard puts text on the system clipboard.
func copyToClipboard(text string) error {
	return clipboard.WriteAll(text)
}

// lastAssistantContent returns the newest non-empty assistant answer
// from a reconciled view, or "".
func lastAssistantContent(msgs []model.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant && msgs[i].Content != "" {
			return msgs[i].Content
		}
	}
	return ""
}
