// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/localagentweaver/weaver/internal/storage"
	"github.com/localagentweaver/weaver/internal/util"
)

// HandleTasks handles "weaver tasks history [--group G] [--limit N]".
func HandleTasks(ctx context.Context, env *Env) error {
	p := NewArgParser(env.Args.Raw)

	switch p.Subcommand() {
	case "", "history":
		limit := p.FlagIntOrDefault("limit", 20)
		if limit <= 0 {
			return usagef("--limit must be positive")
		}
		group := p.Flag("group")
		if group != "" && group != installGroup && group != documentsGroup {
			return usagef("unknown group %q (%s, %s)", group, installGroup, documentsGroup)
		}

		hist, err := env.openHistory()
		if err != nil {
			return wrap("tasks", "history", err)
		}
		if hist == nil {
			return &UsageError{Message: "task history is disabled (tasks.history_limit = 0)"}
		}
		defer hist.Close()

		entries, err := hist.Recent(ctx, group, limit)
		if err != nil {
			return wrap("tasks", "history", err)
		}
		if entries == nil {
			entries = []storage.Entry{}
		}
		return env.emit("tasks history", entries, func(w io.Writer) {
			printHistory(w, entries)
		})

	default:
		return usagef("unknown tasks subcommand %q (history)", p.Subcommand())
	}
}

func printHistory(w io.Writer, entries []storage.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No finished tasks recorded yet."))
		return
	}
	t := newTable(10, 28, 10, 9, 16)
	for _, e := range entries {
		detail := e.Message
		if e.Error != "" {
			detail = e.Error
		}
		t.add(e.Group, e.Subject, RenderTaskStatus(e.Status), util.FormatDuration(e.Duration()),
			util.FormatAgo(e.FinishedAt), detail)
	}
	t.write(w, "GROUP", "SUBJECT", "STATUS", "TOOK", "FINISHED", "DETAIL")
}
