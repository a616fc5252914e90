// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output support for scripting.
//
// Every command accepts --json and then prints exactly one JSONResponse on
// stdout. Human-readable progress goes to stderr in that mode.

package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/localagentweaver/weaver/internal/api"
	"github.com/localagentweaver/weaver/internal/tasks"
)

// JSONResponse is the standardized response format for all CLI commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC 3339 time the response was generated
	Timestamp string `json:"timestamp"`

	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response to w with indentation.
func (r *JSONResponse) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// StatusData is returned by "weaver status".
type StatusData struct {
	URL       string     `json:"url"`
	Reachable bool       `json:"reachable"`
	Error     string     `json:"error,omitempty"`
	LoggedIn  bool       `json:"logged_in"`
	User      *api.User  `json:"user,omitempty"`
	ExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	Expired   bool       `json:"token_expired"`
}

// ConfigGetData is returned by "weaver config get".
type ConfigGetData struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// TasksData is returned by commands that track backend tasks.
type TasksData struct {
	Group string       `json:"group"`
	Tasks []tasks.Task `json:"tasks"`

	// Lists reloaded after a task completed
	Models    []api.InstalledModel `json:"models,omitempty"`
	Unlisted  []string             `json:"unlisted,omitempty"`
	Documents []api.Document       `json:"documents,omitempty"`
}
