// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry records per-exchange usage for gyankosh.
//
// Every completed or aborted exchange leaves a record: token counts,
// wall-clock duration, and time to first token. The tracker keeps a
// bounded history on disk and answers two questions the UI asks:
// "how long will this reply probably take?" (median of recent completed
// exchanges) and "what have I spent so far?" (aggregate totals for the
// status and stats commands).
package telemetry
