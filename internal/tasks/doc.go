// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks tracks long-running backend jobs from the client side.
//
// The backend runs model downloads and document vectorization
// asynchronously and exposes their state through status endpoints. A
// Monitor keeps a local list of such jobs and polls the backend while any
// of them is still pending or running.
//
// # Key Types
//
//   - Task: local projection of a backend job (status, progress, message)
//   - Monitor: tracks the tasks of one group and runs the poll loop
//   - Source: backend operations of a group (create, fetch, cancel)
//   - InstallSource, DocumentSource, ProjectStatusSource: Source implementations
//
// # Lifecycle
//
// Tasks move pending -> running -> completed | failed | cancelled. Terminal
// states are never left and terminal tasks are never polled again. The poll
// loop starts when the first task is tracked and exits by itself once no
// task is active; Close stops it unconditionally.
//
// # Usage
//
//	mon := tasks.NewMonitor(tasks.NewInstallSource(client), tasks.Options{
//	    Group:       "install",
//	    OnCompleted: func(t tasks.Task) { refreshModels() },
//	})
//	defer mon.Close()
//
//	task, err := mon.Start(ctx, tasks.Request{Subject: "llama3"})
//	for ev := range mon.Subscribe() {
//	    fmt.Println(ev.Task.Summary())
//	}
package tasks
