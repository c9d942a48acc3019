// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jeranaias/gyankosh/internal/model"
)

func TestWrapTextShortLineUnchanged(t *testing.T) {
	if got := wrapText("hello world", 40); got != "hello world" {
		t.Errorf("wrapText = %q", got)
	}
}

func TestWrapTextWrapsAtWidth(t *testing.T) {
	got := wrapText("the four aims of life are dharma artha kama moksha", 20)
	for _, line := range strings.Split(got, "\n") {
		if n := utf8.RuneCountInString(line); n > 20 {
			t.Errorf("line %q is %d runes, want <= 20", line, n)
		}
	}
	joined := strings.ReplaceAll(got, "\n", " ")
	if joined != "the four aims of life are dharma artha kama moksha" {
		t.Errorf("wrapping altered words: %q", joined)
	}
}

func TestWrapTextBreaksLongWords(t *testing.T) {
	got := wrapText(strings.Repeat("x", 25), 10)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if lines[0] != strings.Repeat("x", 10) || lines[2] != strings.Repeat("x", 5) {
		t.Errorf("bad word break: %q", lines)
	}
}

func TestWrapTextPreservesParagraphs(t *testing.T) {
	got := wrapText("first\n\nsecond", 40)
	if got != "first\n\nsecond" {
		t.Errorf("wrapText = %q", got)
	}
}

func TestWrapTextRuneSafe(t *testing.T) {
	// Devanagari text must never be split mid-rune.
	in := strings.Repeat("जारी ", 10)
	got := wrapText(in, 8)
	if !utf8.ValidString(got) {
		t.Fatal("wrapText produced invalid UTF-8")
	}
	for _, line := range strings.Split(got, "\n") {
		if n := utf8.RuneCountInString(line); n > 8 {
			t.Errorf("line %q is %d runes, want <= 8", line, n)
		}
	}
}

func TestRelTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"seconds", now.Add(-20 * time.Second), "just now"},
		{"minutes", now.Add(-5 * time.Minute), "5m ago"},
		{"hours", now.Add(-3 * time.Hour), "3h ago"},
		{"days", now.Add(-49 * time.Hour), "2d ago"},
		{"zero", time.Time{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := relTime(tt.t); got != tt.want {
				t.Errorf("relTime = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFmtDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{450 * time.Millisecond, "450ms"},
		{1200 * time.Millisecond, "1.2s"},
		{65 * time.Second, "1m05s"},
	}
	for _, tt := range tests {
		if got := fmtDuration(tt.d); got != tt.want {
			t.Errorf("fmtDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatTimestampZero(t *testing.T) {
	if got := formatTimestamp(time.Time{}); got != "" {
		t.Errorf("formatTimestamp(zero) = %q, want empty", got)
	}
}

func TestLastAssistantContent(t *testing.T) {
	msgs := []model.Message{
		{Role: model.RoleUser, Content: "q1"},
		{Role: model.RoleAssistant, Content: "a1"},
		{Role: model.RoleUser, Content: "q2"},
		{Role: model.RoleAssistant, Content: ""},
	}
	// The newest assistant row is an empty placeholder; skip it.
	if got := lastAssistantContent(msgs); got != "a1" {
		t.Errorf("lastAssistantContent = %q, want a1", got)
	}
	if got := lastAssistantContent(nil); got != "" {
		t.Errorf("lastAssistantContent(nil) = %q, want empty", got)
	}
}
