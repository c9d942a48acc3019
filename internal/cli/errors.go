// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for all CLI commands.
//
// Handlers always return errors; main displays them once and exits with
// the code from GetExitCode. No handler prints an error and swallows it.

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/gyankosh/internal/cloud"
	"github.com/jeranaias/gyankosh/internal/store"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error.
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments.
	ExitUsageError = 2
	// ExitConfigError indicates a configuration error.
	ExitConfigError = 3
	// ExitAuthError indicates the vault is locked or a key was rejected.
	ExitAuthError = 4
	// ExitNetworkError indicates a gateway or connectivity error.
	ExitNetworkError = 5
	// ExitNotFoundError indicates a session or resource was not found.
	ExitNotFoundError = 6
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // command that failed ("sessions", "export")
	Action  string // action being performed ("rename", "write")
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents invalid user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string // "session", "document", "config key"
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NewValidationErrorWithExample creates a validation error with an example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason, Example: example}
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError displays an error in a consistent format. In JSON mode a
// structured error object goes to stdout for scripting; otherwise a
// styled line goes to stderr.
func DisplayError(err error, jsonMode bool) {
	if err == nil {
		return
	}

	if jsonMode {
		DisplayErrorJSON(err)
		return
	}

	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())

	// A locked vault is the most common failure; point at the fix.
	if errors.Is(err, store.ErrUnauthenticated) {
		fmt.Fprintf(os.Stderr, "%s\n", DimStyle.Render("Run `gyankosh auth unlock` first."))
	}
	if errors.Is(err, cloud.ErrNotConfigured) {
		fmt.Fprintf(os.Stderr, "%s\n", DimStyle.Render("Set a gateway key with `gyankosh auth set-key` or GYANKOSH_GATEWAY_KEY."))
	}
}

// DisplayErrorJSON outputs an error as JSON.
func DisplayErrorJSON(err error) {
	output := map[string]interface{}{
		"error":   err.Error(),
		"success": false,
	}

	var cmdErr *CommandError
	var valErr *ValidationError
	var nfErr *NotFoundError

	switch {
	case errors.As(err, &cmdErr):
		output["error_type"] = "command_error"
		output["command"] = cmdErr.Command
		output["action"] = cmdErr.Action
		output["reason"] = cmdErr.Reason
		if cmdErr.Err != nil {
			output["underlying_error"] = cmdErr.Err.Error()
		}

	case errors.As(err, &valErr):
		output["error_type"] = "validation_error"
		output["field"] = valErr.Field
		output["value"] = valErr.Value
		output["reason"] = valErr.Reason

	case errors.As(err, &nfErr):
		output["error_type"] = "not_found_error"
		output["resource"] = nfErr.Resource
		output["id"] = nfErr.ID

	default:
		output["error_type"] = "generic_error"
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(output)
}

// HandleErrorAndExit displays an error and exits with its code. For
// fatal errors in main.
func HandleErrorAndExit(err error, jsonMode bool) {
	if err == nil {
		return
	}
	DisplayError(err, jsonMode)
	os.Exit(GetExitCode(err))
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Typed errors first.
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return ExitUsageError
	}

	var nfErr *NotFoundError
	if errors.As(err, &nfErr) {
		return ExitNotFoundError
	}

	var ttyErr *TTYRequiredError
	if errors.As(err, &ttyErr) {
		return ExitUsageError
	}

	// Domain sentinels.
	switch {
	case errors.Is(err, store.ErrUnauthenticated):
		return ExitAuthError
	case errors.Is(err, cloud.ErrAuthFailed):
		return ExitAuthError
	case errors.Is(err, store.ErrSessionNotFound), errors.Is(err, store.ErrMessageNotFound):
		return ExitNotFoundError
	case errors.Is(err, cloud.ErrNotConfigured):
		return ExitConfigError
	}

	var rateErr *cloud.RateLimitError
	if errors.As(err, &rateErr) {
		return ExitNetworkError
	}

	var gwErr *cloud.GatewayError
	if errors.As(err, &gwErr) {
		return ExitNetworkError
	}

	// Last resort: sniff the message.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "config"):
		return ExitConfigError
	case strings.Contains(msg, "passphrase"), strings.Contains(msg, "totp"), strings.Contains(msg, "locked"):
		return ExitAuthError
	case strings.Contains(msg, "connection"), strings.Contains(msg, "timeout"),
		strings.Contains(msg, "unreachable"), strings.Contains(msg, "dial"):
		return ExitNetworkError
	}

	return ExitGeneralError
}
