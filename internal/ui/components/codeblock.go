// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromastyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/gyankosh/internal/ui/styles"
)

// =============================================================================
// CODE BLOCK EXTRACTION
// =============================================================================

// CodeBlock is a fenced code block extracted from an answer.
type CodeBlock struct {
	Language string
	Code     string
}

// Segment is one piece of a parsed answer: either plain prose or a code
// block. Parsing preserves order so the view can interleave rendering.
type Segment struct {
	Text  string
	Block *CodeBlock
}

// ParseCodeBlocks splits an answer into prose and fenced code blocks.
// An unterminated fence at the end of a streaming answer is treated as a
// code block in progress so highlighting kicks in before the closing
// fence arrives.
func ParseCodeBlocks(content string) []Segment {
	var segments []Segment
	rest := content
	for {
		start := strings.Index(rest, "```")
		if start == -1 {
			break
		}
		if start > 0 {
			segments = append(segments, Segment{Text: rest[:start]})
		}
		rest = rest[start+3:]

		lang := ""
		if nl := strings.IndexByte(rest, '\n'); nl != -1 {
			lang = strings.TrimSpace(rest[:nl])
			rest = rest[nl+1:]
		} else {
			// Fence opened but no newline yet; wait for more tokens.
			segments = append(segments, Segment{Block: &CodeBlock{Language: rest}})
			return segments
		}

		end := strings.Index(rest, "```")
		if end == -1 {
			segments = append(segments, Segment{Block: &CodeBlock{Language: lang, Code: rest}})
			return segments
		}
		segments = append(segments, Segment{Block: &CodeBlock{Language: lang, Code: rest[:end]}})
		rest = rest[end+3:]
	}
	if rest != "" {
		segments = append(segments, Segment{Text: rest})
	}
	return segments
}

// =============================================================================
// RENDERING
// =============================================================================

var codeFrame = lipgloss.NewStyle().
	Background(styles.SurfaceDim).
	Padding(0, 1)

var codeHeader = lipgloss.NewStyle().
	Foreground(styles.TextMuted).
	Background(styles.SurfaceDim).
	Padding(0, 1)

var inlineCode = lipgloss.NewStyle().
	Foreground(styles.Cyan).
	Background(styles.SurfaceDim)

// Render highlights the block and frames it with a language header.
func (b *CodeBlock) Render(width int) string {
	lang := b.Language
	if lang == "" {
		lang = detectLanguage(b.Code)
	}
	label := lang
	if label == "" {
		label = "text"
	}

	code := strings.TrimRight(b.Code, "\n")
	highlighted, err := highlightCode(code, lang)
	if err != nil {
		highlighted = code
	}

	header := codeHeader.Width(width).Render(label)
	body := codeFrame.Width(width).Render(highlighted)
	return header + "\n" + body
}

// RenderInlineCode styles `span` segments inside prose.
func RenderInlineCode(text string) string {
	var out strings.Builder
	for {
		start := strings.IndexByte(text, '`')
		if start == -1 {
			out.WriteString(text)
			break
		}
		end := strings.IndexByte(text[start+1:], '`')
		if end == -1 {
			out.WriteString(text)
			break
		}
		out.WriteString(text[:start])
		out.WriteString(inlineCode.Render(text[start+1 : start+1+end]))
		text = text[start+end+2:]
	}
	return out.String()
}

// highlightCode runs chroma over the code with a 256-color terminal
// formatter. Unknown languages fall back to plain text.
func highlightCode(code, language string) (string, error) {
	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromastyles.Get("monokai")
	if style == nil {
		style = chromastyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("tokenise: %w", err)
	}
	var sb strings.Builder
	if err := formatter.Format(&sb, style, iterator); err != nil {
		return "", fmt.Errorf("format: %w", err)
	}
	return sb.String(), nil
}

// detectLanguage guesses the language of an unlabeled block from its
// content. Returns "" when chroma cannot tell.
func detectLanguage(code string) string {
	lexer := lexers.Analyse(code)
	if lexer == nil {
		return ""
	}
	return strings.ToLower(lexer.Config().Name)
}
