// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for vault sessions and messages.
package model

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleUser, true},
		{RoleAssistant, true},
		{RoleSystem, false},
		{Role("tool"), false},
		{Role(""), false},
	}

	for _, tt := range tests {
		if got := tt.role.Valid(); got != tt.want {
			t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestRole_DisplayName(t *testing.T) {
	if got := RoleUser.DisplayName(); got != "You" {
		t.Errorf("RoleUser.DisplayName() = %q", got)
	}
	if got := RoleAssistant.DisplayName(); got != "Gyankosh" {
		t.Errorf("RoleAssistant.DisplayName() = %q", got)
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessage_Preview(t *testing.T) {
	m := &Message{Content: "line one\nline two with more text than fits"}
	preview := m.Preview(20)

	if strings.Contains(preview, "\n") {
		t.Errorf("Preview contains newline: %q", preview)
	}
	if len([]rune(preview)) > 20 {
		t.Errorf("Preview too long: %d runes", len([]rune(preview)))
	}
}

func TestMessage_IsEmpty(t *testing.T) {
	m := &Message{}
	if !m.IsEmpty() {
		t.Error("empty message should report IsEmpty")
	}
	m.Content = "text"
	if m.IsEmpty() {
		t.Error("non-empty message should not report IsEmpty")
	}
}

func TestNewMessageID_Format(t *testing.T) {
	id := NewMessageID()
	if !strings.HasPrefix(id, "msg_") {
		t.Errorf("message id missing prefix: %q", id)
	}
	if len(id) != len("msg_")+16 {
		t.Errorf("message id wrong length: %q", id)
	}
}

func TestNewMessageID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewMessageID()
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestTitleFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty falls back to default", "", DefaultTitle},
		{"whitespace falls back to default", "  \n\t ", DefaultTitle},
		{"short content kept", "What is dharma?", "What is dharma?"},
		{"newlines collapsed", "first\nsecond", "first second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TitleFromContent(tt.content); got != tt.want {
				t.Errorf("TitleFromContent(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestTitleFromContent_Truncates(t *testing.T) {
	long := strings.Repeat("ज्ञान ", 40)
	title := TitleFromContent(long)
	if len([]rune(title)) > TitlePreviewRunes {
		t.Errorf("title too long: %d runes", len([]rune(title)))
	}
}

func TestSession_IsUntitled(t *testing.T) {
	s := &Session{Title: DefaultTitle}
	if !s.IsUntitled() {
		t.Error("default title should be untitled")
	}
	s.Title = "Vedic literature notes"
	if s.IsUntitled() {
		t.Error("custom title should not be untitled")
	}
}

// =============================================================================
// STATISTICS TESTS
// =============================================================================

func TestStatistics_RecordFirstToken(t *testing.T) {
	stats := NewStatistics()
	stats.RecordFirstToken()
	first := stats.FirstTokenTime

	time.Sleep(2 * time.Millisecond)
	stats.RecordFirstToken()

	if !stats.FirstTokenTime.Equal(first) {
		t.Error("RecordFirstToken should be a no-op after the first call")
	}
	if stats.TTFT < 0 {
		t.Errorf("negative TTFT: %v", stats.TTFT)
	}
}

func TestStatistics_Finalize(t *testing.T) {
	stats := NewStatistics()
	time.Sleep(2 * time.Millisecond)
	stats.Finalize(100)

	if stats.TotalDuration <= 0 {
		t.Errorf("TotalDuration not set: %v", stats.TotalDuration)
	}
	if stats.CompletionTokens != 100 {
		t.Errorf("CompletionTokens = %d, want 100", stats.CompletionTokens)
	}
	if stats.TokensPerSecond <= 0 {
		t.Errorf("TokensPerSecond not computed: %f", stats.TokensPerSecond)
	}
}

func TestStatistics_Format(t *testing.T) {
	stats := NewStatistics()
	stats.RecordFirstToken()
	stats.Finalize(50)

	out := stats.Format()
	if !strings.Contains(out, "tokens") || !strings.Contains(out, "TTFT") {
		t.Errorf("unexpected stats format: %q", out)
	}
}
