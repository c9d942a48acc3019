// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for vault sessions and messages.
//
// A Session is one conversation thread owned by a vault owner; it owns its
// Messages. Messages are ordered by creation time, ties broken by a
// monotonic sequence number assigned at insert. Message content is mutable
// only while its exchange is still streaming; once finalized it is immutable.
//
// Statistics carries per-exchange timing (time to first token, total
// duration, token throughput) used for display and for the estimated-time
// heuristic. It is never persisted with the message itself.
package model
