// weaver - terminal client for the LocalAgentWeaver backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/localagentweaver/weaver/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	args := cli.ParseArgs(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Run(ctx, args)
	stop()

	if err != nil {
		// In JSON mode the error object replaces the command output.
		var w io.Writer = os.Stderr
		if args.JSON {
			w = os.Stdout
		}
		cli.DisplayError(w, err, args.JSON)
		os.Exit(cli.GetExitCode(err))
	}
}
