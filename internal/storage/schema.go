// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

// historySchema creates the task history table.
const historySchema = `
CREATE TABLE IF NOT EXISTS task_history (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    task_id      TEXT NOT NULL,
    task_group   TEXT NOT NULL,
    subject      TEXT NOT NULL,
    status       TEXT NOT NULL,
    progress     REAL NOT NULL DEFAULT 0,
    message      TEXT NOT NULL DEFAULT '',
    error        TEXT NOT NULL DEFAULT '',
    created_at   INTEGER NOT NULL,
    finished_at  INTEGER NOT NULL,
    UNIQUE (task_group, task_id)
);

CREATE INDEX IF NOT EXISTS idx_task_history_finished ON task_history(finished_at);
CREATE INDEX IF NOT EXISTS idx_task_history_group ON task_history(task_group);
`
