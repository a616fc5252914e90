// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"fmt"
	"math"
	"time"
)

// =============================================================================
// TASK STATUS
// =============================================================================

// Status is the client-observed state of a backend task.
type Status string

const (
	// StatusPending indicates the backend accepted the task but has not started it
	StatusPending Status = "pending"

	// StatusRunning indicates the backend is working on the task
	StatusRunning Status = "running"

	// StatusCompleted indicates the task finished successfully
	StatusCompleted Status = "completed"

	// StatusFailed indicates the backend reported an error
	StatusFailed Status = "failed"

	// StatusCancelled indicates the task was cancelled by the user
	StatusCancelled Status = "cancelled"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsActive reports whether a task in this status is still polled.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusRunning
}

// IsTerminal reports whether no further transition can leave this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ParseStatus maps a backend status string onto a Status.
// Backends are not consistent about naming, so a few aliases are accepted.
func ParseStatus(raw string) (Status, error) {
	switch raw {
	case "pending", "queued", "waiting", "":
		return StatusPending, nil
	case "running", "in_progress", "processing", "downloading", "pulling":
		return StatusRunning, nil
	case "completed", "complete", "success", "succeeded", "done":
		return StatusCompleted, nil
	case "failed", "error":
		return StatusFailed, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	default:
		return "", fmt.Errorf("unknown task status %q", raw)
	}
}

// canTransition reports whether from -> to is a legal transition.
// Repeating the same active status is allowed so that progress updates merge.
func canTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	switch from {
	case StatusPending:
		return to == StatusPending || to == StatusRunning || to.IsTerminal()
	case StatusRunning:
		return to == StatusRunning || to.IsTerminal()
	default:
		return false
	}
}

// =============================================================================
// TASK
// =============================================================================

// Task is the local projection of a server-side asynchronous job.
// Values handed out by the Monitor are copies; mutating them has no effect.
type Task struct {
	// ID is the opaque identifier assigned by the backend
	ID string `json:"id"`

	// Group names the monitor tracking this task (e.g., "install", "documents")
	Group string `json:"group"`

	// Subject names what the task operates on (model name or file name)
	Subject string `json:"subject"`

	// Status is the current state
	Status Status `json:"status"`

	// Progress is the completion fraction in [0,1]
	Progress float64 `json:"progress"`

	// Message is a human-readable status line
	Message string `json:"message,omitempty"`

	// Error is the failure text reported by the backend
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Percent returns the progress as a whole percentage for display.
func (t Task) Percent() int {
	return int(math.Round(t.Progress * 100))
}

// Summary returns a one-line summary of the task.
func (t Task) Summary() string {
	id := t.ID
	if len(id) > 8 {
		id = id[:8]
	}
	summary := fmt.Sprintf("[%s] %s - %s", id, t.Subject, t.Status)
	switch {
	case t.Status == StatusFailed && t.Error != "":
		summary += ": " + t.Error
	case t.Status.IsActive():
		summary += fmt.Sprintf(" (%d%%)", t.Percent())
	}
	return summary
}

// Duration returns the time between creation and the last update.
func (t Task) Duration() time.Duration {
	if t.CreatedAt.IsZero() || t.UpdatedAt.Before(t.CreatedAt) {
		return 0
	}
	return t.UpdatedAt.Sub(t.CreatedAt)
}

// =============================================================================
// SNAPSHOT MERGE
// =============================================================================

// Snapshot is one status report from the backend for a task.
type Snapshot struct {
	Status Status

	// Progress is the raw value as reported; it is normalized on merge.
	Progress float64

	Message string
	Error   string
}

// apply merges a snapshot into the task and returns the previous status.
// Terminal tasks are left untouched. A backend reporting "pending" for a
// task that is already running does not move it backwards.
func (t *Task) apply(s Snapshot, now time.Time) (Status, bool) {
	prev := t.Status
	if prev.IsTerminal() {
		return prev, false
	}

	next := s.Status
	if prev == StatusRunning && next == StatusPending {
		next = StatusRunning
	}
	if !canTransition(prev, next) {
		return prev, false
	}

	t.Status = next
	t.Progress = NormalizeProgress(s.Progress)
	if next == StatusCompleted {
		t.Progress = 1
	}
	if s.Message != "" {
		t.Message = s.Message
	}
	if s.Error != "" {
		t.Error = s.Error
	}
	t.UpdatedAt = now
	return prev, true
}

// NormalizeProgress converts a raw progress value into a fraction in [0,1].
// Values up to 1 are taken as fractions, larger values as percentages.
func NormalizeProgress(v float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v > 1 {
		v = v / 100
	}
	if v > 1 {
		return 1
	}
	return v
}
