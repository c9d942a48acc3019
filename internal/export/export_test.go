// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/gyankosh/internal/model"
)

func testSession() *model.Session {
	created := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	return &model.Session{
		ID:        "sess-test-1",
		OwnerID:   "owner-1",
		Title:     "On the nature of dharma",
		CreatedAt: created,
		UpdatedAt: created.Add(10 * time.Minute),
	}
}

func testMessages() []model.Message {
	base := time.Date(2025, 3, 14, 9, 27, 0, 0, time.UTC)
	return []model.Message{
		{ID: "m1", SessionID: "sess-test-1", Role: model.RoleUser, Content: "What is dharma?", Seq: 1, CreatedAt: base},
		{ID: "m2", SessionID: "sess-test-1", Role: model.RoleAssistant, Content: "Dharma is the principle of cosmic order.\n\n```sanskrit\ndhr — to hold\n```", Seq: 2, CreatedAt: base.Add(time.Minute)},
		{ID: "m3", SessionID: "sess-test-1", Role: model.RoleUser, Content: "Summarize my notes", Seq: 3, CreatedAt: base.Add(2 * time.Minute), DocumentRef: "doc-42"},
		{ID: "m4", SessionID: "sess-test-1", Role: model.RoleAssistant, Content: "Your notes cover three themes\n\n[stopped]", Seq: 4, CreatedAt: base.Add(3 * time.Minute)},
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "hello", "hello"},
		{"spaces", "my session title", "my_session_title"},
		{"slashes", "a/b\\c", "a-b-c"},
		{"shell metacharacters", `q?"<>|`, "q-----"},
		{"empty", "", "session"},
		{"newlines", "a\nb", "a_b"},
		{"control characters", "a\x01b", "a-b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeFilename(tt.input); got != tt.want {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilenameTruncates(t *testing.T) {
	long := strings.Repeat("x", 200)
	got := sanitizeFilename(long)
	if len([]rune(got)) != 50 {
		t.Errorf("expected 50 runes, got %d", len([]rune(got)))
	}
}

func TestMarkdownExport(t *testing.T) {
	e := NewMarkdownExporter(DefaultOptions())
	out, err := e.Export(testSession(), testMessages())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	md := string(out)

	for _, want := range []string{
		"title: On the nature of dharma",
		"session_id: sess-test-1",
		"messages: 4",
		"generator: gyankosh",
		"# On the nature of dharma",
		"## You",
		"## Gyankosh",
		"What is dharma?",
		"Grounded in document `doc-42`",
		"[stopped]",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestMarkdownExportNoMetadata(t *testing.T) {
	opts := DefaultOptions()
	opts.IncludeMetadata = false
	opts.IncludeTimestamps = false

	e := NewMarkdownExporter(opts)
	out, err := e.Export(testSession(), testMessages())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	md := string(out)

	if strings.Contains(md, "session_id:") {
		t.Error("frontmatter present despite IncludeMetadata=false")
	}
	if strings.Contains(md, "(09:27:") {
		t.Error("timestamps present despite IncludeTimestamps=false")
	}
}

func TestMarkdownSkipsEmptyMessages(t *testing.T) {
	msgs := []model.Message{
		{Role: model.RoleUser, Content: "hello", Seq: 1},
		{Role: model.RoleAssistant, Content: "", Seq: 2},
	}

	e := NewMarkdownExporter(DefaultOptions())
	out, err := e.Export(testSession(), msgs)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if strings.Count(string(out), "## ") != 1 {
		t.Errorf("expected 1 message heading, got %d", strings.Count(string(out), "## "))
	}
}

func TestEscapeYAML(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain title", "plain title"},
		{"a: b", "\"a: b\""},
		{"has \"quotes\"", "\"has \\\"quotes\\\"\""},
		{"line\nbreak", "\"line break\""},
	}

	for _, tt := range tests {
		if got := escapeYAML(tt.input); got != tt.want {
			t.Errorf("escapeYAML(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestJSONExportRoundTrip(t *testing.T) {
	e := NewJSONExporter(DefaultOptions())
	out, err := e.Export(testSession(), testMessages())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var doc struct {
		Session struct {
			ID       string `json:"id"`
			Title    string `json:"title"`
			Messages int    `json:"message_count"`
		} `json:"session"`
		Messages []struct {
			Role        string `json:"role"`
			Content     string `json:"content"`
			DocumentRef string `json:"document_ref"`
			Seq         int    `json:"seq"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}

	if doc.Session.ID != "sess-test-1" {
		t.Errorf("session id = %q", doc.Session.ID)
	}
	if doc.Session.Messages != 4 {
		t.Errorf("message_count = %d, want 4", doc.Session.Messages)
	}
	if len(doc.Messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(doc.Messages))
	}
	if doc.Messages[0].Role != "user" || doc.Messages[0].Content != "What is dharma?" {
		t.Errorf("first message = %+v", doc.Messages[0])
	}
	if doc.Messages[2].DocumentRef != "doc-42" {
		t.Errorf("document ref = %q, want doc-42", doc.Messages[2].DocumentRef)
	}
	if !strings.Contains(doc.Messages[3].Content, "[stopped]") {
		t.Error("stop marker stripped from JSON export")
	}
}

func TestHTMLExport(t *testing.T) {
	e := NewHTMLExporter(DefaultOptions())
	out, err := e.Export(testSession(), testMessages())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	page := string(out)

	for _, want := range []string{
		"<!DOCTYPE html>",
		"data-theme=\"dark\"",
		"<title>On the nature of dharma</title>",
		"class=\"message user\"",
		"class=\"message assistant\"",
		"Grounded in doc-42",
		"theme-toggle",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("html missing %q", want)
		}
	}
}

func TestHTMLExportLightTheme(t *testing.T) {
	opts := DefaultOptions()
	opts.Theme = "light"

	e := NewHTMLExporter(opts)
	out, err := e.Export(testSession(), testMessages())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.Contains(string(out), "data-theme=\"light\"") {
		t.Error("light theme not applied")
	}
}

func TestHTMLEscapesContent(t *testing.T) {
	msgs := []model.Message{
		{Role: model.RoleUser, Content: "<script>alert('x')</script>", Seq: 1},
	}

	e := NewHTMLExporter(DefaultOptions())
	out, err := e.Export(testSession(), msgs)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	page := string(out)

	if strings.Contains(page, "<script>alert") {
		t.Error("message content not escaped")
	}
	if !strings.Contains(page, "&lt;script&gt;") {
		t.Error("expected escaped script tag in output")
	}
}

func TestFormatContentCodeBlocks(t *testing.T) {
	content := "Before.\n\n```go\nfmt.Println(\"hi\")\n```\n\nAfter."
	got := formatContent(content)

	if !strings.Contains(got, "<pre><code class=\"language-go\">") {
		t.Errorf("code block not wrapped: %s", got)
	}
	if !strings.Contains(got, "fmt.Println(&#34;hi&#34;)") {
		t.Errorf("code content not escaped: %s", got)
	}
	if !strings.Contains(got, "<p>Before.</p>") || !strings.Contains(got, "<p>After.</p>") {
		t.Errorf("surrounding paragraphs missing: %s", got)
	}
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantExt string
		wantErr bool
	}{
		{"md", ".md", false},
		{"markdown", ".md", false},
		{"json", ".json", false},
		{"html", ".html", false},
		{"pdf", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			e, err := ForFormat(tt.format, DefaultOptions())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ForFormat(%q) failed: %v", tt.format, err)
			}
			if e.FileExtension() != tt.wantExt {
				t.Errorf("extension = %q, want %q", e.FileExtension(), tt.wantExt)
			}
		})
	}
}

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.OutputDir = dir

	path, err := ExportToFile(testSession(), testMessages(), NewMarkdownExporter(opts), opts)
	if err != nil {
		t.Fatalf("ExportToFile failed: %v", err)
	}

	if filepath.Dir(path) != dir {
		t.Errorf("written outside output dir: %s", path)
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "On_the_nature_of_dharma_") {
		t.Errorf("unexpected filename: %s", base)
	}
	if !strings.HasSuffix(base, ".md") {
		t.Errorf("unexpected extension: %s", base)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	if !strings.Contains(string(data), "What is dharma?") {
		t.Error("export content missing")
	}
}

func TestExportToFileCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "exports")
	opts := DefaultOptions()
	opts.OutputDir = dir

	if _, err := ExportToFile(testSession(), testMessages(), NewJSONExporter(opts), opts); err != nil {
		t.Fatalf("ExportToFile failed: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("output dir not created: %v", err)
	}
}
