// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/jeranaias/brainbox/internal/config"
	"github.com/jeranaias/brainbox/internal/model"
	"github.com/jeranaias/brainbox/internal/queue"
	"github.com/jeranaias/brainbox/internal/replay"
	"github.com/jeranaias/brainbox/internal/retry"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitStorageError  = 4
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError is a failed command with context.
type CommandError struct {
	Command string // e.g. "enqueue"
	Action  string // e.g. "read message"
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError is invalid user input.
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

// NewCommandError wraps err with the command and action that failed.
func NewCommandError(command, action string, err error) error {
	return &CommandError{Command: command, Action: action, Err: err}
}

// NewValidationError creates a validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NewValidationErrorWithExample creates a validation error with an example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason, Example: example}
}

// ErrMissingArgument reports a required argument that was not given.
func ErrMissingArgument(argName, usage string) error {
	return NewValidationErrorWithExample(argName, "", "required argument missing", usage)
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as JSON in JSON mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		DisplayErrorJSON(w, err)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

// DisplayErrorJSON writes a structured error object.
func DisplayErrorJSON(w io.Writer, err error) {
	out := map[string]interface{}{
		"success":    false,
		"error":      err.Error(),
		"error_type": errorType(err),
		"exit_code":  GetExitCode(err),
	}

	var cmdErr *CommandError
	var valErr *ValidationError
	var cfgErrs config.ValidateErrors
	switch {
	case errors.As(err, &valErr):
		out["field"] = valErr.Field
		out["reason"] = valErr.Reason
		if valErr.Example != "" {
			out["example"] = valErr.Example
		}
	case errors.As(err, &cfgErrs):
		fields := make([]string, 0, len(cfgErrs))
		for _, e := range cfgErrs {
			fields = append(fields, e.Field)
		}
		out["fields"] = fields
	case errors.As(err, &cmdErr):
		out["command"] = cmdErr.Command
		out["action"] = cmdErr.Action
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}

func errorType(err error) string {
	switch GetExitCode(err) {
	case ExitUsageError:
		return "validation_error"
	case ExitConfigError:
		return "config_error"
	case ExitStorageError:
		return "storage_error"
	case ExitNetworkError:
		return "network_error"
	case ExitNotFoundError:
		return "not_found_error"
	case ExitTimeoutError:
		return "timeout_error"
	default:
		return "generic_error"
	}
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		valErr  *ValidationError
		cfgErrs config.ValidateErrors
		cfgErr  config.ValidationError
		httpErr *replay.HTTPError
		netErr  net.Error
	)
	switch {
	case errors.As(err, &valErr),
		errors.Is(err, retry.ErrNotEligible),
		errors.Is(err, model.ErrMissingID),
		errors.Is(err, model.ErrMissingChatID),
		errors.Is(err, model.ErrInvalidRole),
		errors.Is(err, model.ErrInvalidParts):
		return ExitUsageError
	case errors.As(err, &cfgErrs), errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.Is(err, queue.ErrNotFound), errors.Is(err, replay.ErrChatGone):
		return ExitNotFoundError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &httpErr), errors.As(err, &netErr):
		return ExitNetworkError
	case errors.Is(err, queue.ErrStoreClosed), errors.Is(err, queue.ErrCorruptRecord):
		return ExitStorageError
	default:
		return ExitGeneralError
	}
}
