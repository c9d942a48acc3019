// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "time"

// =============================================================================
// EXCHANGE STAGES
// =============================================================================

// Stage is the controller's position in the exchange lifecycle.
type Stage int

const (
	// StageIdle means no exchange is in flight.
	StageIdle Stage = iota

	// StagePreparing covers the durable writes that precede the network
	// request: session creation, the user message, the answer placeholder.
	StagePreparing

	// StageAwaitingFirstToken means the request is out and nothing has
	// come back yet.
	StageAwaitingFirstToken

	// StageStreaming means deltas are arriving.
	StageStreaming

	// StageFinalizing covers the full-content write and durable refresh
	// after a clean end of stream.
	StageFinalizing

	// StageAborted covers the partial-answer persistence after a stop or
	// a broken connection. The controller returns to StageIdle as soon as
	// that work is done.
	StageAborted
)

// String returns the stage name used in logs and status lines.
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StagePreparing:
		return "preparing"
	case StageAwaitingFirstToken:
		return "waiting"
	case StageStreaming:
		return "streaming"
	case StageFinalizing:
		return "finalizing"
	case StageAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Active reports whether the stage belongs to an in-flight exchange.
func (s Stage) Active() bool {
	return s != StageIdle
}

// =============================================================================
// STATUS
// =============================================================================

// Status is an advisory snapshot for progress displays. None of it is
// load-bearing; UIs poll it for spinners and ETA hints.
type Status struct {
	Stage     Stage
	SessionID string

	// Elapsed is time since submit for the running exchange, zero when idle.
	Elapsed time.Duration

	// Estimated is the expected total duration of the exchange, derived
	// from the median of recent completed exchanges. Zero when there is
	// no usable history.
	Estimated time.Duration

	// TimeToFirstToken is set once the first delta arrives.
	TimeToFirstToken time.Duration
}
