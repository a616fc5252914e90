// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes shared by all weaver commands.
//
// Handlers always return errors; main decides how to display them and
// which exit code to use.

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/localagentweaver/weaver/internal/api"
	"github.com/localagentweaver/weaver/internal/config"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates the backend rejected our credentials
	ExitAuthError = 4
	// ExitNetworkError indicates the backend could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitTaskFailed indicates at least one tracked task failed
	ExitTaskFailed = 9
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "docs", "models")
	Action  string // Action being performed (e.g., "upload", "install")
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError is returned for malformed command lines.
type UsageError struct {
	Message string
	Example string
}

func (e *UsageError) Error() string {
	if e.Example != "" {
		return fmt.Sprintf("%s\nExample: %s", e.Message, e.Example)
	}
	return e.Message
}

// ConfigError wraps a configuration load or save failure.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TasksFailedError reports how many tracked tasks did not complete.
type TasksFailedError struct {
	Failed    int
	Cancelled int
}

func (e *TasksFailedError) Error() string {
	switch {
	case e.Failed > 0 && e.Cancelled > 0:
		return fmt.Sprintf("%d task(s) failed, %d cancelled", e.Failed, e.Cancelled)
	case e.Cancelled > 0:
		return fmt.Sprintf("%d task(s) cancelled", e.Cancelled)
	default:
		return fmt.Sprintf("%d task(s) failed", e.Failed)
	}
}

// =============================================================================
// CONSTRUCTION HELPERS
// =============================================================================

// wrap attaches command context to err. nil stays nil.
func wrap(command, action string, err error) error {
	if err == nil {
		return nil
	}
	return &CommandError{Command: command, Action: action, Err: err}
}

func usagef(format string, a ...interface{}) error {
	return &UsageError{Message: fmt.Sprintf(format, a...)}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode determines the appropriate exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}

	var cfgErr *ConfigError
	var cfgValidation config.ValidateErrors
	if errors.As(err, &cfgErr) || errors.As(err, &cfgValidation) {
		return ExitConfigError
	}

	var failed *TasksFailedError
	if errors.As(err, &failed) {
		return ExitTaskFailed
	}

	switch api.KindOf(err) {
	case api.KindUnauthorized, api.KindForbidden:
		return ExitAuthError
	case api.KindUnavailable:
		return ExitNetworkError
	case api.KindTimeout:
		return ExitTimeoutError
	case api.KindNotFound:
		return ExitNotFoundError
	case api.KindInvalidRequest:
		return ExitUsageError
	}

	return ExitGeneralError
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as JSON when jsonMode is set.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		// The task list already went out as the command's response.
		var failed *TasksFailedError
		if errors.As(err, &failed) {
			return
		}
		displayErrorJSON(w, err)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
	if api.IsUnauthorized(err) {
		fmt.Fprintln(w, DimStyle.Render("Run 'weaver login' to refresh your token."))
	}
	if api.IsUnavailable(err) {
		fmt.Fprintln(w, DimStyle.Render("Is the backend running? Check 'weaver config get server.url'."))
	}
}

func displayErrorJSON(w io.Writer, err error) {
	output := map[string]interface{}{
		"success":    false,
		"error":      err.Error(),
		"error_type": "generic_error",
		"exit_code":  GetExitCode(err),
	}

	var apiErr *api.APIError
	var cmdErr *CommandError
	var usageErr *UsageError
	switch {
	case errors.As(err, &apiErr):
		output["error_type"] = "api_error"
		output["kind"] = apiErr.Kind.String()
		if apiErr.Status != 0 {
			output["status"] = apiErr.Status
		}
	case errors.As(err, &usageErr):
		output["error_type"] = "usage_error"
	case errors.As(err, &cmdErr):
		output["error_type"] = "command_error"
	}
	if errors.As(err, &cmdErr) {
		output["command"] = cmdErr.Command
		output["action"] = cmdErr.Action
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output)
}
