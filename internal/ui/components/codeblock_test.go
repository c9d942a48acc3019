// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
)

func TestParseCodeBlocksProseOnly(t *testing.T) {
	segments := ParseCodeBlocks("dharma has no single translation")
	if len(segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(segments))
	}
	if segments[0].Block != nil {
		t.Error("prose-only answer produced a code block")
	}
	if segments[0].Text != "dharma has no single translation" {
		t.Errorf("text = %q", segments[0].Text)
	}
}

func TestParseCodeBlocksExtractsFencedBlock(t *testing.T) {
	content := "Here is the query:\n```sql\nSELECT * FROM verses;\n```\nRun it nightly."
	segments := ParseCodeBlocks(content)
	if len(segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(segments))
	}
	block := segments[1].Block
	if block == nil {
		t.Fatal("middle segment is not a code block")
	}
	if block.Language != "sql" {
		t.Errorf("language = %q, want sql", block.Language)
	}
	if !strings.Contains(block.Code, "SELECT * FROM verses;") {
		t.Errorf("code = %q", block.Code)
	}
	if segments[2].Text != "\nRun it nightly." {
		t.Errorf("trailing text = %q", segments[2].Text)
	}
}

func TestParseCodeBlocksUnterminatedFence(t *testing.T) {
	// A streaming answer can end mid-block; the partial code still renders.
	content := "Example:\n```go\nfunc main() {"
	segments := ParseCodeBlocks(content)
	if len(segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(segments))
	}
	block := segments[1].Block
	if block == nil {
		t.Fatal("unterminated fence did not produce a block")
	}
	if block.Language != "go" {
		t.Errorf("language = %q, want go", block.Language)
	}
	if block.Code != "func main() {" {
		t.Errorf("code = %q", block.Code)
	}
}

func TestParseCodeBlocksMultipleBlocks(t *testing.T) {
	content := "```python\nprint(1)\n```\nand\n```python\nprint(2)\n```"
	segments := ParseCodeBlocks(content)
	var blocks int
	for _, s := range segments {
		if s.Block != nil {
			blocks++
		}
	}
	if blocks != 2 {
		t.Errorf("blocks = %d, want 2", blocks)
	}
}

func TestRenderHighlightsAndLabels(t *testing.T) {
	block := &CodeBlock{Language: "go", Code: "package main\n"}
	out := block.Render(60)
	if !strings.Contains(out, "go") {
		t.Error("rendered block missing language label")
	}
	if !strings.Contains(out, "package main") {
		t.Error("rendered block missing code")
	}
}

func TestRenderUnknownLanguageFallsBack(t *testing.T) {
	block := &CodeBlock{Language: "nosuchlang", Code: "???"}
	out := block.Render(40)
	if !strings.Contains(out, "???") {
		t.Error("fallback rendering dropped the code")
	}
}

func TestRenderInlineCode(t *testing.T) {
	out := RenderInlineCode("run `gyankosh chat` to start")
	if !strings.Contains(out, "gyankosh chat") {
		t.Errorf("inline code dropped: %q", out)
	}
	if strings.Contains(out, "`") {
		t.Errorf("backticks leaked into output: %q", out)
	}
}

func TestRenderInlineCodeUnbalancedBackticks(t *testing.T) {
	in := "a stray ` backtick"
	if out := RenderInlineCode(in); out != in {
		t.Errorf("unbalanced backtick altered text: %q", out)
	}
}
