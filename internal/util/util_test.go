// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions shared across gyankosh.
package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "test.txt")
	data := []byte("hello, world!")

	err := AtomicWriteFile(path, data, 0644)
	if err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("Content mismatch: got %q, want %q", string(content), string(data))
	}
}

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "subdir", "deep", "test.txt")

	err := AtomicWriteFile(path, []byte("test data"), 0644)
	if err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("File not created: %v", err)
	}
}

func TestAtomicWriteFile_Overwrites(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "test.txt")

	if err := AtomicWriteFile(path, []byte("initial"), 0644); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("replaced"), 0644); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != "replaced" {
		t.Errorf("Content mismatch: got %q, want %q", string(content), "replaced")
	}
}

func TestAtomicWriteFile_NoTempFileLeftover(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "test.txt")

	if err := AtomicWriteFile(path, []byte("data"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("Temp file left behind: %s", e.Name())
		}
	}
}

// =============================================================================
// STRING HELPER TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxRunes int
		want     string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"truncated with ellipsis", "hello world", 8, "hello..."},
		{"zero max", "hello", 0, ""},
		{"tiny max no ellipsis", "hello", 2, "he"},
		{"unicode devanagari", "ज्ञानकोश एक संग्रह है", 8, "ज्ञानक..."},
		{"empty string", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateRunes(tt.input, tt.maxRunes)
			if got != tt.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q",
					tt.input, tt.maxRunes, got, tt.want)
			}
		})
	}
}

func TestTailRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxRunes int
		want     string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact bound unchanged", "hello", 5, "hello"},
		{"trailing slice", "hello world", 5, "world"},
		{"zero bound", "hello", 0, ""},
		{"unicode tail", "नमस्ते दुनिया", 6, "दुनिया"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TailRunes(tt.input, tt.maxRunes)
			if got != tt.want {
				t.Errorf("TailRunes(%q, %d) = %q, want %q",
					tt.input, tt.maxRunes, got, tt.want)
			}
		})
	}
}

func TestTailRunes_ByteExact(t *testing.T) {
	// A multi-byte string sliced by rune count must still concatenate back
	// with its head to reproduce the original bytes exactly.
	s := "काम को जारी रखो और पूरा करो"
	head := []rune(s)[:5]
	tail := TailRunes(s, RuneLen(s)-5)
	if string(head)+tail != s {
		t.Errorf("head+tail != original: %q + %q", string(head), tail)
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"collapses newlines", "first line\nsecond line", 50, "first line second line"},
		{"collapses runs of spaces", "a   b \t c", 50, "a b c"},
		{"truncates", "one two three four five", 12, "one two t..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Preview(tt.input, tt.max)
			if got != tt.want {
				t.Errorf("Preview(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
		})
	}
}

func TestTruncateWidth(t *testing.T) {
	// CJK characters occupy two columns each.
	got := TruncateWidth("日本語のテキスト", 9)
	if StringWidth(got) > 9 {
		t.Errorf("TruncateWidth produced width %d > 9: %q", StringWidth(got), got)
	}

	if got := TruncateWidth("plain", 10); got != "plain" {
		t.Errorf("TruncateWidth changed a fitting string: %q", got)
	}
}
