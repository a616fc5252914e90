// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/localagentweaver/weaver/internal/tasks"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("history store closed")

// Entry is one recorded task.
type Entry struct {
	TaskID     string       `json:"task_id"`
	Group      string       `json:"group"`
	Subject    string       `json:"subject"`
	Status     tasks.Status `json:"status"`
	Progress   float64      `json:"progress"`
	Message    string       `json:"message,omitempty"`
	Error      string       `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Duration returns how long the task ran.
func (e Entry) Duration() time.Duration {
	if e.FinishedAt.Before(e.CreatedAt) {
		return 0
	}
	return e.FinishedAt.Sub(e.CreatedAt)
}

// History is a SQLite-backed record of finished tasks.
// It implements tasks.Recorder and is safe for concurrent use.
type History struct {
	mu sync.RWMutex
	db *sql.DB
}

// OpenHistory opens (or creates) the history database at path.
func OpenHistory(path string) (*History, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps :memory: alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &History{db: db}, nil
}

// Close closes the database.
func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}

// Record stores a task that reached a terminal state. Recording the same
// task again replaces the earlier row. Active tasks are rejected.
func (h *History) Record(t tasks.Task) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return ErrClosed
	}
	if !t.Status.IsTerminal() {
		return fmt.Errorf("record %s: task is still %s", t.ID, t.Status)
	}

	finished := t.UpdatedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	_, err := h.db.Exec(`
		INSERT INTO task_history (task_id, task_group, subject, status, progress, message, error, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_group, task_id) DO UPDATE SET
			subject = excluded.subject,
			status = excluded.status,
			progress = excluded.progress,
			message = excluded.message,
			error = excluded.error,
			finished_at = excluded.finished_at`,
		t.ID, t.Group, t.Subject, string(t.Status), t.Progress, t.Message, t.Error,
		t.CreatedAt.UnixMilli(), finished.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", t.ID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. An empty group matches all.
func (h *History) Recent(ctx context.Context, group string, limit int) ([]Entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT task_id, task_group, subject, status, progress, message, error, created_at, finished_at
		FROM task_history
		WHERE (? = '' OR task_group = ?)
		ORDER BY finished_at DESC, id DESC
		LIMIT ?`, group, group, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			status            string
			created, finished int64
		)
		if err := rows.Scan(&e.TaskID, &e.Group, &e.Subject, &status, &e.Progress, &e.Message, &e.Error, &created, &finished); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Status = tasks.Status(status)
		e.CreatedAt = time.UnixMilli(created)
		e.FinishedAt = time.UnixMilli(finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune keeps the newest keep entries and deletes the rest.
// It returns the number of deleted rows.
func (h *History) Prune(ctx context.Context, keep int) (int64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return 0, ErrClosed
	}
	if keep < 0 {
		keep = 0
	}

	res, err := h.db.ExecContext(ctx, `
		DELETE FROM task_history
		WHERE id NOT IN (
			SELECT id FROM task_history ORDER BY finished_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}
