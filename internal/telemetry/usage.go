// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jeranaias/gyankosh/internal/util"
)

// =============================================================================
// USAGE TRACKER
// =============================================================================

const (
	// maxRecords bounds the on-disk history. Oldest records fall off.
	maxRecords = 200

	// estimateWindow is how many recent completed exchanges feed the
	// duration estimate.
	estimateWindow = 20

	// minEstimateSamples is the floor below which no estimate is offered.
	minEstimateSamples = 3

	promptPreviewRunes = 80

	usageFileName = "usage.json"
)

// ExchangeUsage is the record left behind by a single exchange.
type ExchangeUsage struct {
	Timestamp        time.Time     `json:"timestamp"`
	SessionID        string        `json:"session_id"`
	Model            string        `json:"model"`
	PromptPreview    string        `json:"prompt_preview"`
	InputTokens      int           `json:"input_tokens"`
	OutputTokens     int           `json:"output_tokens"`
	Duration         time.Duration `json:"duration_ns"`
	TimeToFirstToken time.Duration `json:"ttft_ns"`
	Aborted          bool          `json:"aborted,omitempty"`
}

// Totals aggregates the tracked history for status output.
type Totals struct {
	Exchanges     int
	Aborted       int
	InputTokens   int
	OutputTokens  int
	TotalDuration time.Duration
}

// UsageTracker keeps a bounded exchange history, persisted as a single
// JSON file so it survives restarts.
type UsageTracker struct {
	mu      sync.Mutex
	path    string
	records []ExchangeUsage
}

// NewUsageTracker loads (or creates) the usage history under dir.
// A corrupt history file is abandoned rather than blocking startup.
func NewUsageTracker(dir string) (*UsageTracker, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".gyankosh")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create telemetry dir: %w", err)
	}

	t := &UsageTracker{path: filepath.Join(dir, usageFileName)}

	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read usage history: %w", err)
	}
	if err := json.Unmarshal(data, &t.records); err != nil {
		log.Printf("WARNING: usage history unreadable, starting fresh: %v", err)
		t.records = nil
	}
	return t, nil
}

// Path returns the history file location.
func (t *UsageTracker) Path() string {
	return t.path
}

// =============================================================================
// RECORDING
// =============================================================================

// Record appends one exchange record and persists the trimmed history.
func (t *UsageTracker) Record(u ExchangeUsage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now()
	}
	u.PromptPreview = util.Preview(u.PromptPreview, promptPreviewRunes)

	t.records = append(t.records, u)
	if len(t.records) > maxRecords {
		t.records = t.records[len(t.records)-maxRecords:]
	}
	return t.saveLocked()
}

// Reset discards the tracked history, on disk included.
func (t *UsageTracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records = nil
	return t.saveLocked()
}

func (t *UsageTracker) saveLocked() error {
	data, err := json.MarshalIndent(t.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode usage history: %w", err)
	}
	if err := util.AtomicWriteFile(t.path, data, 0644); err != nil {
		return fmt.Errorf("write usage history: %w", err)
	}
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// EstimateDuration predicts how long the next exchange will take: the
// median over the last estimateWindow completed (non-aborted) exchanges.
// Returns 0 until enough history exists to say anything useful.
func (t *UsageTracker) EstimateDuration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	var durations []time.Duration
	for i := len(t.records) - 1; i >= 0 && len(durations) < estimateWindow; i-- {
		r := t.records[i]
		if r.Aborted || r.Duration <= 0 {
			continue
		}
		durations = append(durations, r.Duration)
	}
	if len(durations) < minEstimateSamples {
		return 0
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	mid := len(durations) / 2
	if len(durations)%2 == 1 {
		return durations[mid]
	}
	return (durations[mid-1] + durations[mid]) / 2
}

// Totals aggregates the whole tracked window.
func (t *UsageTracker) Totals() Totals {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out Totals
	for _, r := range t.records {
		out.Exchanges++
		if r.Aborted {
			out.Aborted++
		}
		out.InputTokens += r.InputTokens
		out.OutputTokens += r.OutputTokens
		out.TotalDuration += r.Duration
	}
	return out
}

// Recent returns up to n records, most recent first.
func (t *UsageTracker) Recent(n int) []ExchangeUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n <= 0 || n > len(t.records) {
		n = len(t.records)
	}
	out := make([]ExchangeUsage, n)
	for i := 0; i < n; i++ {
		out[i] = t.records[len(t.records)-1-i]
	}
	return out
}
