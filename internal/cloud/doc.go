// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the AI gateway integration for vault chat.
//
// The gateway speaks the OpenRouter-style chat completions protocol:
// JSON requests, and for streaming responses a text/event-stream body
// whose "data: " lines each carry a JSON chunk with content deltas.
// This package implements the client (request framing, auth headers,
// retry with backoff, client-side rate pacing) and the StreamDecoder
// that turns the raw response bytes into a sequence of content deltas,
// tolerant of frames split across network packets.
package cloud
