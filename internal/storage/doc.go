// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage keeps a local SQLite history of finished background tasks.
//
// The backend forgets install tasks once they finish, so the client records
// every task that reaches a terminal state. `weaver tasks history` reads it.
//
// # Usage
//
//	hist, err := storage.OpenHistory(path)
//	if err != nil {
//	    return err
//	}
//	defer hist.Close()
//
//	mon := tasks.NewMonitor(src, tasks.Options{Recorder: hist})
package storage
