// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - Model commands.
//
// Command: models [subcommand] [--provider P]
//
// Subcommands:
//   list (default)        Models installed on the provider
//   popular               Curated models worth installing
//   install <name>...     Install models and follow the downloads
//   status <task_id>      One-off status of an install task
//   cancel <task_id>      Cancel an install task
//
// The provider defaults to chat.provider (ollama).

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/localagentweaver/weaver/internal/api"
	"github.com/localagentweaver/weaver/internal/tasks"
	"github.com/localagentweaver/weaver/internal/util"
)

const installGroup = "install"

// HandleModels handles "weaver models".
func HandleModels(ctx context.Context, env *Env) error {
	p := NewArgParser(env.Args.Raw)
	provider := p.FlagOrDefault("provider", env.Config.Chat.Provider)
	if provider == "" {
		provider = tasks.DefaultProvider
	}

	switch p.Subcommand() {
	case "", "list", "ls":
		models, err := env.Client.ListModels(ctx, provider)
		if err != nil {
			return wrap("models", "list", err)
		}
		return env.emit("models list", models, func(w io.Writer) {
			printInstalledModels(w, provider, models)
		})

	case "popular":
		models, err := env.Client.PopularModels(ctx, provider)
		if err != nil {
			return wrap("models", "popular", err)
		}
		return env.emit("models popular", models, func(w io.Writer) {
			printPopularModels(w, models)
		})

	case "install", "pull":
		names := p.PositionalFrom(1)
		if len(names) == 0 {
			return &UsageError{Message: "no model given", Example: "weaver models install llama3.2:3b"}
		}
		return installModels(ctx, env, provider, names)

	case "status":
		id := p.Positional(1)
		if id == "" {
			return &UsageError{Message: "task id is required", Example: "weaver models status 1f0c..."}
		}
		task, err := env.Client.InstallStatus(ctx, id)
		if err != nil {
			return wrap("models", "status", err)
		}
		return env.emit("models status", task, func(w io.Writer) {
			fmt.Fprintf(w, "%s%s\n", RenderLabel("Model"), task.ModelName)
			fmt.Fprintf(w, "%s%s\n", RenderLabel("Status"), task.Status)
			fmt.Fprintf(w, "%s%d%%\n", RenderLabel("Progress"), int(tasks.NormalizeProgress(task.Progress)*100))
			if task.Message != "" {
				fmt.Fprintf(w, "%s%s\n", RenderLabel("Message"), task.Message)
			}
			if task.Error != "" {
				fmt.Fprintf(w, "%s%s\n", RenderLabel("Error"), ErrorStyle.Render(task.Error))
			}
		})

	case "cancel":
		id := p.Positional(1)
		if id == "" {
			return &UsageError{Message: "task id is required", Example: "weaver models cancel 1f0c..."}
		}
		if err := env.Client.CancelInstall(ctx, id); err != nil {
			return wrap("models", "cancel", err)
		}
		return env.emit("models cancel", map[string]string{"cancelled": id}, func(w io.Writer) {
			fmt.Fprintf(w, "Cancellation requested for %s.\n", id)
		})

	default:
		return usagef("unknown models subcommand %q (list, popular, install, status, cancel)", p.Subcommand())
	}
}

// installModels starts one install per name and follows them all.
func installModels(ctx context.Context, env *Env, provider string, names []string) error {
	hist, err := env.openHistory()
	if err != nil {
		env.Log.Warn().Err(err).Msg("task history unavailable")
	}
	defer env.closeHistory(hist)

	refresh := &modelRefresh{env: env, provider: provider}
	mon := env.newMonitor(ctx, installGroup, tasks.NewInstallSource(env.Client),
		env.Config.Tasks.InstallPollInterval(), hist, refresh.completed)

	notStarted := 0
	for _, name := range names {
		_, err := mon.Start(ctx, tasks.Request{
			Subject: name,
			Params:  map[string]string{"provider": provider},
		})
		if err != nil {
			env.notef("%s %v", ErrorStyle.Render("✗"), err)
			notStarted++
		}
	}
	if len(mon.List()) == 0 {
		mon.Close()
		return finishTasks(env, "models install", TasksData{Group: installGroup}, notStarted)
	}

	rows, err := followTasks(ctx, env, mon, "Installing models")
	if err != nil {
		return wrap("models", "install", err)
	}
	data := TasksData{Group: installGroup, Tasks: rows}
	refresh.fill(&data)
	return finishTasks(env, "models install", data, notStarted)
}

func printInstalledModels(w io.Writer, provider string, models []api.InstalledModel) {
	if len(models) == 0 {
		fmt.Fprintf(w, "%s\n", DimStyle.Render("No models installed on "+provider+". Try 'weaver models popular'."))
		return
	}
	t := newTable(36, 10)
	for _, m := range models {
		size := "-"
		if m.Size > 0 {
			size = util.FormatBytes(m.Size)
		}
		t.add(m.Name, size, util.FormatAgo(m.ModifiedAt.Time))
	}
	t.write(w, "NAME", "SIZE", "MODIFIED")
}

func printPopularModels(w io.Writer, models []api.ModelInfo) {
	if len(models) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No suggestions from the backend."))
		return
	}
	t := newTable(28, 12, 8)
	for _, m := range models {
		name := m.Name
		if m.Recommended {
			name += " ★"
		}
		desc := m.Description
		if len(m.Tags) > 0 {
			desc += " [" + strings.Join(m.Tags, ", ") + "]"
		}
		t.add(name, m.Category, m.SizeEstimate, desc)
	}
	t.write(w, "NAME", "CATEGORY", "SIZE", "DESCRIPTION")
}
