// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorKind categorizes API errors for handling.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUnavailable
	KindTimeout
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindInvalidRequest
	KindServer
	KindInvalidResponse
)

// String returns a short name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidRequest:
		return "invalid_request"
	case KindServer:
		return "server_error"
	case KindInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// APIError is returned by every Client method that fails.
type APIError struct {
	Kind    ErrorKind
	Status  int    // HTTP status code, 0 if no response was received
	Method  string // HTTP method of the failed request
	Path    string // request path
	Message string
	Cause   error
}

func (e *APIError) Error() string {
	var b strings.Builder
	if e.Method != "" {
		fmt.Fprintf(&b, "%s %s: ", e.Method, e.Path)
	}
	b.WriteString(e.Message)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// kindForStatus maps an HTTP status code onto an ErrorKind.
func kindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized:
		return KindUnauthorized
	case code == http.StatusForbidden:
		return KindForbidden
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusConflict:
		return KindConflict
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code == http.StatusBadGateway || code == http.StatusServiceUnavailable:
		return KindUnavailable
	case code >= 500:
		return KindServer
	case code >= 400:
		return KindInvalidRequest
	default:
		return KindUnknown
	}
}

// transportError wraps a failure that happened before any response arrived.
func transportError(method, path string, err error) *APIError {
	kind := KindUnavailable
	msg := "backend unreachable"
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
		msg = "request timed out"
	} else if errors.Is(err, context.Canceled) {
		kind = KindTimeout
		msg = "request cancelled"
	}
	return &APIError{Kind: kind, Method: method, Path: path, Message: msg, Cause: err}
}

// errorBody is the FastAPI error envelope. Detail is either a string or a
// list of validation errors.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationDetail struct {
	Loc []interface{} `json:"loc"`
	Msg string        `json:"msg"`
}

// detailMessage extracts a readable message from an error response body.
func detailMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}

	var s string
	if err := json.Unmarshal(eb.Detail, &s); err == nil {
		return s
	}

	var details []validationDetail
	if err := json.Unmarshal(eb.Detail, &details); err == nil && len(details) > 0 {
		msgs := make([]string, 0, len(details))
		for _, d := range details {
			if len(d.Loc) > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", d.Loc[len(d.Loc)-1], d.Msg))
			} else {
				msgs = append(msgs, d.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return string(eb.Detail)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// KindOf returns the ErrorKind of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsUnauthorized reports whether the backend rejected the credentials.
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}

// IsNotFound reports whether the requested resource does not exist.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsUnavailable reports whether the backend could not be reached.
func IsUnavailable(err error) bool {
	k := KindOf(err)
	return k == KindUnavailable || k == KindTimeout
}
