// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
)

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

const (
	// dataPrefix marks the SSE lines that carry chunk payloads.
	dataPrefix = "data:"

	// doneSentinel is the payload that terminates a stream.
	doneSentinel = "[DONE]"

	// MaxLineSize is the maximum allowed size for a single SSE line (64KB).
	MaxLineSize = 64 * 1024
)

// =============================================================================
// STREAM CHUNK
// =============================================================================

// StreamChunk is one parsed streaming event from the gateway.
type StreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Content returns the content delta from the first choice.
func (c *StreamChunk) Content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// Finished reports whether the chunk carries a finish signal.
func (c *StreamChunk) Finished() bool {
	return len(c.Choices) > 0 && c.Choices[0].FinishReason != ""
}

// =============================================================================
// STREAM DECODER
// =============================================================================

// StreamDecoder turns raw gateway response bytes into a sequence of
// content deltas.
//
// The decoder buffers bytes until a complete newline-delimited line is
// available, so frames split anywhere (mid-line, mid-JSON, even inside
// a multi-byte character) reassemble exactly as if the stream had
// arrived in one piece. Blank lines and ":" comment lines are skipped.
// A line whose payload fails to parse is dropped silently: well-formed
// servers resend the content correctly framed, and losing one fragment
// beats aborting the whole answer.
type StreamDecoder struct {
	reader    *bufio.Reader
	finished  bool
	malformed int
}

// NewStreamDecoder wraps a raw response body.
func NewStreamDecoder(r io.Reader) *StreamDecoder {
	return &StreamDecoder{
		reader: bufio.NewReaderSize(r, 4096),
	}
}

// Next returns the next non-empty content delta.
//
// io.EOF signals normal end of stream: the "[DONE]" sentinel, a chunk
// carrying a finish_reason, or the server closing the connection. Any
// other error is an abort condition (network failure or cancellation)
// and must be distinguished from io.EOF by the caller.
func (d *StreamDecoder) Next() (string, error) {
	if d.finished {
		return "", io.EOF
	}

	for {
		line, err := d.readLine()
		if err != nil {
			d.finished = true
			if err == io.EOF {
				return "", io.EOF
			}
			return "", err
		}

		payload, ok := dataPayload(line)
		if !ok {
			continue // Blank line, comment, or unrecognized field
		}

		if bytes.Equal(payload, []byte(doneSentinel)) {
			d.finished = true
			return "", io.EOF
		}

		var chunk StreamChunk
		if err := json.Unmarshal(payload, &chunk); err != nil {
			// Likely a frame split across packets; the content arrives
			// again correctly framed.
			d.malformed++
			continue
		}

		content := chunk.Content()
		if chunk.Finished() {
			d.finished = true
			if content != "" {
				return content, nil
			}
			return "", io.EOF
		}

		if content != "" {
			return content, nil
		}
	}
}

// readLine reads one newline-delimited line, reassembling it across
// however many reads the transport splits it into. The trailing newline
// and any carriage return are stripped.
func (d *StreamDecoder) readLine() ([]byte, error) {
	var line []byte
	for {
		part, err := d.reader.ReadSlice('\n')
		line = append(line, part...)
		if len(line) > MaxLineSize {
			return nil, fmt.Errorf("stream line too large: %d bytes", len(line))
		}
		if err == bufio.ErrBufferFull {
			continue // Line spans multiple buffer fills
		}
		if err != nil {
			if err == io.EOF && len(bytes.TrimRight(line, "\r\n")) > 0 {
				// Final line without trailing newline
				return bytes.TrimRight(line, "\r\n"), nil
			}
			return nil, err
		}
		return bytes.TrimRight(line, "\r\n"), nil
	}
}

// Malformed returns the count of silently dropped undecodable lines.
func (d *StreamDecoder) Malformed() int {
	return d.malformed
}

// dataPayload extracts the payload from a "data:" line. Returns false
// for blank lines, ":" comments, and lines with other field names.
func dataPayload(line []byte) ([]byte, bool) {
	if len(line) == 0 {
		return nil, false
	}
	if line[0] == ':' {
		return nil, false // SSE comment / keep-alive
	}
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return nil, false
	}
	payload := line[len(dataPrefix):]
	if len(payload) > 0 && payload[0] == ' ' {
		payload = payload[1:]
	}
	return payload, true
}

// =============================================================================
// STREAM
// =============================================================================

// Stream is one open streaming exchange: the live response body plus
// the decoder reading from it. Close releases the connection; it is
// safe to call after Next has returned io.EOF and mandatory after an
// abort.
type Stream struct {
	body    io.ReadCloser
	decoder *StreamDecoder
	model   string
}

func newStream(body io.ReadCloser, model string) *Stream {
	return &Stream{
		body:    body,
		decoder: NewStreamDecoder(body),
		model:   model,
	}
}

// Next returns the next content delta. See StreamDecoder.Next for the
// io.EOF vs abort contract.
func (s *Stream) Next() (string, error) {
	return s.decoder.Next()
}

// Model returns the model the request was issued against.
func (s *Stream) Model() string {
	return s.model
}

// Close closes the underlying response body and logs any frames the
// decoder had to drop.
func (s *Stream) Close() error {
	if n := s.decoder.Malformed(); n > 0 {
		log.Printf("stream closed with %d malformed frame(s) dropped", n)
	}
	return s.body.Close()
}

// =============================================================================
// STREAM ERRORS
// =============================================================================

// StreamError wraps a mid-stream failure together with the content that
// had arrived before it, so callers can persist partial answers.
type StreamError struct {
	Partial string // Content received before the error
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}
