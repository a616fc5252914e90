// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and execution for weaver.
//
// Every command receives an Env holding the effective configuration, the
// backend client and the logger. Output goes through Env.emit so that
// --json produces one JSONResponse per invocation.
//
// # Usage
//
//	args := cli.ParseArgs(os.Args[1:])
//	if err := cli.Run(ctx, args); err != nil {
//	    cli.DisplayError(os.Stderr, err, args.JSON)
//	    os.Exit(cli.GetExitCode(err))
//	}
//
// # Commands Overview
//
// Account: login, logout, status.
// Projects and documents: projects, docs (upload, watch, watch-dir).
// Models: models (list, popular, install, status, cancel).
// Teams: teams, agents.
// Chat: chat (interactive), ask (single question).
// Other: config, tasks history, version.
//
// Long-running work (model installs, document processing) is followed by a
// tasks.Monitor and shown in the task dialog on a terminal, or as plain
// progress lines with --no-tui, --json or redirected output.
package cli
