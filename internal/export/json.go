// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeranaias/gyankosh/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter renders a session transcript as indented JSON, suitable
// for re-importing or feeding to other tools.
type JSONExporter struct {
	opts *Options
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{opts: opts}
}

// FileExtension returns ".json".
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the JSON MIME type.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}

// jsonDoc is the top-level export document.
type jsonDoc struct {
	Session  jsonSession   `json:"session"`
	Messages []jsonMessage `json:"messages"`
}

type jsonSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  int       `json:"message_count"`
}

type jsonMessage struct {
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	DocumentRef string    `json:"document_ref,omitempty"`
	Seq         int64     `json:"seq"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Export renders the session as indented JSON. Timestamps are included
// only when the options ask for them.
func (e *JSONExporter) Export(sess *model.Session, msgs []model.Message) ([]byte, error) {
	doc := jsonDoc{
		Session: jsonSession{
			ID:        sess.ID,
			Title:     sess.Title,
			CreatedAt: sess.CreatedAt.UTC(),
			UpdatedAt: sess.UpdatedAt.UTC(),
			Messages:  len(msgs),
		},
		Messages: make([]jsonMessage, 0, len(msgs)),
	}

	for _, msg := range msgs {
		jm := jsonMessage{
			Role:        string(msg.Role),
			Content:     msg.Content,
			DocumentRef: msg.DocumentRef,
			Seq:         msg.Seq,
		}
		if e.opts.IncludeTimestamps {
			jm.CreatedAt = msg.CreatedAt.UTC()
		}
		doc.Messages = append(doc.Messages, jm)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return append(data, '\n'), nil
}
