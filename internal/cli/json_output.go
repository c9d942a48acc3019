// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - Standardized JSON output for scripting.
//
// Every command that accepts --json emits one JSONResponse on stdout so
// pipelines can rely on a single envelope shape. Human-readable noise
// goes to stderr in JSON mode.

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// JSONResponse is the standardized response envelope for all commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully.
	Success bool `json:"success"`

	// Data contains the command-specific response data.
	Data interface{} `json:"data"`

	// Error carries the message when Success is false, null otherwise.
	Error *string `json:"error"`

	// Timestamp is when the response was generated (RFC3339, UTC).
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed.
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print outputs the JSON response to stdout.
func (r *JSONResponse) Print() error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// String returns the JSON response as a string.
func (r *JSONResponse) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"marshal response: %s","timestamp":"%s"}`,
			err.Error(), time.Now().UTC().Format(time.RFC3339))
	}
	return string(data)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// AskData is the payload for `ask --json`.
type AskData struct {
	Answer       string `json:"answer"`
	Model        string `json:"model"`
	SessionID    string `json:"session_id,omitempty"`
	DocumentRef  string `json:"document_ref,omitempty"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	DurationMs   int64  `json:"duration_ms"`
}

// SessionData is one session row for `sessions list --json`.
type SessionData struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	Messages  int    `json:"messages,omitempty"`
}

// StatusData is the payload for `status --json`.
type StatusData struct {
	Gateway StatusGatewayInfo `json:"gateway"`
	Vault   StatusVaultInfo   `json:"vault"`
	Usage   StatusUsageInfo   `json:"usage"`
}

// StatusGatewayInfo describes gateway configuration and reachability.
type StatusGatewayInfo struct {
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	KeySet     bool   `json:"key_configured"`
	Reachable  bool   `json:"reachable"`
	CheckError string `json:"check_error,omitempty"`
}

// StatusVaultInfo describes the durable store.
type StatusVaultInfo struct {
	Backend   string `json:"backend"` // "sqlite" or "postgres"
	Path      string `json:"path,omitempty"`
	Unlocked  bool   `json:"unlocked"`
	Owner     string `json:"owner,omitempty"`
	Sessions  int    `json:"sessions"`
	Messages  int    `json:"messages,omitempty"`
	TOTPSet   bool   `json:"totp_enrolled"`
	Encrypted bool   `json:"key_encrypted"`
}

// StatusUsageInfo summarizes tracked exchange history.
type StatusUsageInfo struct {
	Exchanges    int   `json:"exchanges"`
	Aborted      int   `json:"aborted"`
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	TotalTimeMs  int64 `json:"total_time_ms"`
}

// VersionData is the payload for `version --json`.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

// ExportData is the payload for `export --json`.
type ExportData struct {
	SessionID string `json:"session_id"`
	Format    string `json:"format"`
	Path      string `json:"path"`
	Bytes     int64  `json:"bytes"`
}
