// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"math"
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw     string
		want    Status
		wantErr bool
	}{
		{"pending", StatusPending, false},
		{"", StatusPending, false},
		{"running", StatusRunning, false},
		{"downloading", StatusRunning, false},
		{"completed", StatusCompleted, false},
		{"success", StatusCompleted, false},
		{"failed", StatusFailed, false},
		{"canceled", StatusCancelled, false},
		{"exploded", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseStatus(tc.raw)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseStatus(%q) error = %v, wantErr %v", tc.raw, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusRunning} {
		if !s.IsActive() || s.IsTerminal() {
			t.Errorf("%s should be active and not terminal", s)
		}
	}
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		if s.IsActive() || !s.IsTerminal() {
			t.Errorf("%s should be terminal and not active", s)
		}
	}
}

func TestNormalizeProgress(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"fraction", 0.4, 0.4},
		{"one is a fraction", 1, 1},
		{"percentage", 40, 0.4},
		{"full percentage", 100, 1},
		{"over 100", 250, 1},
		{"negative", -3, 0},
		{"nan", math.NaN(), 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeProgress(tc.in); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("NormalizeProgress(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestTaskApplyTransitions(t *testing.T) {
	now := time.Now()
	task := &Task{ID: "t1", Status: StatusPending}

	if _, changed := task.apply(Snapshot{Status: StatusRunning, Progress: 0.25}, now); !changed {
		t.Fatal("pending -> running should apply")
	}
	if task.Percent() != 25 {
		t.Errorf("Percent() = %d, want 25", task.Percent())
	}

	// A stale "pending" report must not move a running task backwards.
	task.apply(Snapshot{Status: StatusPending, Progress: 0.5}, now)
	if task.Status != StatusRunning {
		t.Errorf("status = %s, want running", task.Status)
	}
	if task.Percent() != 50 {
		t.Errorf("Percent() = %d, want 50", task.Percent())
	}

	// Progress is stored as reported even when it goes down.
	task.apply(Snapshot{Status: StatusRunning, Progress: 0.3}, now)
	if task.Percent() != 30 {
		t.Errorf("Percent() = %d, want 30", task.Percent())
	}

	task.apply(Snapshot{Status: StatusFailed, Error: "disk full"}, now)
	if task.Status != StatusFailed || task.Error != "disk full" {
		t.Fatalf("expected failed with error, got %s %q", task.Status, task.Error)
	}

	// Terminal states are never left.
	if _, changed := task.apply(Snapshot{Status: StatusRunning}, now); changed {
		t.Error("failed task should not accept further snapshots")
	}
	if task.Status != StatusFailed {
		t.Errorf("status = %s, want failed", task.Status)
	}
}

func TestTaskApplyCompletedForcesFullProgress(t *testing.T) {
	task := &Task{ID: "t1", Status: StatusRunning, Progress: 0.7}
	task.apply(Snapshot{Status: StatusCompleted}, time.Now())
	if task.Progress != 1 {
		t.Errorf("Progress = %v, want 1", task.Progress)
	}
}

func TestTaskSummary(t *testing.T) {
	task := Task{ID: "0123456789abcdef", Subject: "llama3", Status: StatusRunning, Progress: 0.4}
	want := "[01234567] llama3 - running (40%)"
	if got := task.Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}

	task.Status = StatusFailed
	task.Error = "not found"
	want = "[01234567] llama3 - failed: not found"
	if got := task.Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}
