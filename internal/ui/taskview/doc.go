// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package taskview renders a tasks.Monitor as a Bubble Tea dialog.
//
// The dialog lists every tracked task with a spinner while pending, a
// progress bar while running, and a final mark once the task is done.
// Rows refresh whenever the monitor publishes an event. Closing the dialog
// prunes finished tasks and closes the monitor, which stops its poll loop.
package taskview
