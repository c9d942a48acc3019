// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/gyankosh/internal/model"
	"github.com/jeranaias/gyankosh/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a session transcript to a target format.
type Exporter interface {
	// Export renders the session and its messages.
	Export(sess *model.Session, msgs []model.Message) ([]byte, error)

	// FileExtension returns the extension for the format (e.g. ".md").
	FileExtension() string

	// MimeType returns the MIME type for the format.
	MimeType() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where files are written. Default: current directory.
	OutputDir string

	// IncludeMetadata adds a header with session id, dates, and counts.
	IncludeMetadata bool

	// IncludeTimestamps adds per-message timestamps.
	IncludeTimestamps bool

	// Theme selects "light" or "dark" for HTML export. Default: dark.
	Theme string
}

// DefaultOptions returns the default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		Theme:             "dark",
	}
}

// ForFormat returns the exporter for a format name ("md", "markdown",
// "json", "html").
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch format {
	case "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	case "html":
		return NewHTMLExporter(opts), nil
	default:
		return nil, fmt.Errorf("unknown export format: %q (expected md, json, or html)", format)
	}
}

// =============================================================================
// EXPORT TO FILE
// =============================================================================

// ExportToFile renders a session and writes it under opts.OutputDir.
// Returns the output path. The write is atomic: rename over a temp file
// in the same directory, fsynced first.
func ExportToFile(sess *model.Session, msgs []model.Message, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(sess, msgs)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	stamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s%s", sanitizeFilename(sess.Title), stamp, exporter.FileExtension())

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	outputPath := filepath.Join(opts.OutputDir, filename)
	if err := util.AtomicWriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}

	return outputPath, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// sanitizeFilename replaces characters that break filenames on any
// supported platform and bounds the length.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(s)
	if len(runes) > maxLen {
		s = string(runes[:maxLen])
	}

	replacer := map[rune]rune{
		'/': '-', '\\': '-', ':': '-', '*': '-', '?': '-',
		'"': '-', '<': '-', '>': '-', '|': '-',
		' ': '_', '\t': '_', '\n': '_', '\r': '_',
	}

	var result []rune
	for _, r := range s {
		if repl, found := replacer[r]; found {
			result = append(result, repl)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "session"
	}
	return string(result)
}

// formatTimestamp formats a timestamp for metadata display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}

// roleLabel returns the display label for a message role.
func roleLabel(role model.Role) string {
	switch role {
	case model.RoleUser:
		return "You"
	case model.RoleAssistant:
		return "Gyankosh"
	case model.RoleSystem:
		return "System"
	default:
		return string(role)
	}
}
