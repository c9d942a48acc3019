// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/jeranaias/gyankosh/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter renders a session transcript as a Markdown document
// with optional YAML frontmatter.
type MarkdownExporter struct {
	opts *Options
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{opts: opts}
}

// FileExtension returns ".md".
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the Markdown MIME type.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// Export renders the session as Markdown. Message content is emitted
// verbatim, including the stop marker on interrupted answers, so the
// export is a faithful copy of the stored conversation.
func (e *MarkdownExporter) Export(sess *model.Session, msgs []model.Message) ([]byte, error) {
	var sb strings.Builder

	if e.opts.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(sess.Title)))
		sb.WriteString(fmt.Sprintf("session_id: %s\n", sess.ID))
		sb.WriteString(fmt.Sprintf("created: %s\n", formatTimestamp(sess.CreatedAt)))
		sb.WriteString(fmt.Sprintf("updated: %s\n", formatTimestamp(sess.UpdatedAt)))
		sb.WriteString(fmt.Sprintf("messages: %d\n", len(msgs)))
		sb.WriteString("generator: gyankosh\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", sess.Title))

	for i, msg := range msgs {
		if msg.Content == "" {
			continue
		}

		label := roleLabel(msg.Role)
		if e.opts.IncludeTimestamps {
			sb.WriteString(fmt.Sprintf("## %s (%s)\n\n", label, formatShortTimestamp(msg.CreatedAt)))
		} else {
			sb.WriteString(fmt.Sprintf("## %s\n\n", label))
		}

		if msg.DocumentRef != "" {
			sb.WriteString(fmt.Sprintf("> Grounded in document `%s`\n\n", msg.DocumentRef))
		}

		sb.WriteString(msg.Content)
		sb.WriteString("\n")

		if i < len(msgs)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// escapeYAML quotes a string for a YAML scalar value when it contains
// characters that would break frontmatter parsing.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#\"'\n[]{}") {
		escaped := strings.ReplaceAll(s, "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", " ")
		return "\"" + escaped + "\""
	}
	return s
}
