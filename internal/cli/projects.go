// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// projects.go - Project commands.
//
// Command: projects [subcommand]
//
// Subcommands:
//   list (default)                     List your projects
//   show <id>                          Show one project with its documents
//   create <name> [--description D]    Create a project
//   update <id> [--name N] [--description D] [--chunking S]
//   use <id>                           Make a project the default (chat.project_id)
//   delete <id> [--yes]                Delete a project

package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/localagentweaver/weaver/internal/api"
	"github.com/localagentweaver/weaver/internal/util"
)

// HandleProjects handles "weaver projects".
func HandleProjects(ctx context.Context, env *Env) error {
	p := NewArgParser(env.Args.Raw, "yes", "y")

	switch p.Subcommand() {
	case "", "list", "ls":
		projects, err := env.Client.ListProjects(ctx)
		if err != nil {
			return wrap("projects", "list", err)
		}
		return env.emit("projects list", projects, func(w io.Writer) {
			printProjects(w, projects, env.Config.Chat.ProjectID)
		})

	case "show":
		id, err := ParseIntWithValidation(p.Positional(1), "project id")
		if err != nil {
			return &UsageError{Message: err.Error(), Example: "weaver projects show 3"}
		}
		return showProject(ctx, env, id)

	case "create", "new":
		name := JoinPositionalArgs(p, 1)
		if name == "" {
			return &UsageError{Message: "project name is required", Example: `weaver projects create "Contracts 2025"`}
		}
		project, err := env.Client.CreateProject(ctx, api.ProjectCreate{
			Name:        name,
			Description: p.Flag("description"),
		})
		if err != nil {
			return wrap("projects", "create", err)
		}
		return env.emit("projects create", project, func(w io.Writer) {
			fmt.Fprintf(w, "%s Created project %d (%s)\n", SuccessStyle.Render("✓"), project.ID, project.Name)
		})

	case "update", "rename":
		id, err := ParseIntWithValidation(p.Positional(1), "project id")
		if err != nil {
			return &UsageError{Message: err.Error(), Example: `weaver projects update 3 --name "Contracts 2026"`}
		}
		var upd api.ProjectUpdate
		if p.HasFlag("name") {
			name := p.Flag("name")
			upd.Name = &name
		} else if name := JoinPositionalArgs(p, 2); name != "" {
			upd.Name = &name
		}
		if p.HasFlag("description") {
			desc := p.Flag("description")
			upd.Description = &desc
		}
		if s := p.Flag("chunking"); s != "" {
			upd.ChunkingStrategy = &s
		}
		if upd.Name == nil && upd.Description == nil && upd.ChunkingStrategy == nil {
			return &UsageError{Message: "nothing to update", Example: "weaver projects update 3 --description \"signed only\""}
		}
		project, err := env.Client.UpdateProject(ctx, id, upd)
		if err != nil {
			return wrap("projects", "update", err)
		}
		return env.emit("projects update", project, func(w io.Writer) {
			fmt.Fprintf(w, "%s Updated project %d (%s)\n", SuccessStyle.Render("✓"), project.ID, project.Name)
		})

	case "use":
		id, err := ParseIntWithValidation(p.Positional(1), "project id")
		if err != nil {
			return &UsageError{Message: err.Error(), Example: "weaver projects use 3"}
		}
		project, err := env.Client.GetProject(ctx, id)
		if err != nil {
			return wrap("projects", "use", err)
		}
		env.Config.Chat.ProjectID = project.ID
		if err := env.saveConfig(); err != nil {
			return err
		}
		return env.emit("projects use", project, func(w io.Writer) {
			fmt.Fprintf(w, "Default project is now %d (%s)\n", project.ID, project.Name)
		})

	case "delete", "rm":
		id, err := ParseIntWithValidation(p.Positional(1), "project id")
		if err != nil {
			return &UsageError{Message: err.Error(), Example: "weaver projects delete 3 --yes"}
		}
		ok, err := RequireConfirmation(p.BoolFlag("yes") || p.BoolFlag("y"),
			fmt.Sprintf("delete project %d and all of its documents", id), env.Args.JSON)
		if err != nil {
			return err
		}
		if !ok {
			ShowCancellationMessage(env.Out)
			return nil
		}
		if err := env.Client.DeleteProject(ctx, id); err != nil {
			return wrap("projects", "delete", err)
		}
		if env.Config.Chat.ProjectID == id {
			env.Config.Chat.ProjectID = 0
			if err := env.saveConfig(); err != nil {
				return err
			}
		}
		return env.emit("projects delete", map[string]int{"deleted": id}, func(w io.Writer) {
			fmt.Fprintf(w, "Deleted project %d.\n", id)
		})

	default:
		return usagef("unknown projects subcommand %q (list, show, create, update, use, delete)", p.Subcommand())
	}
}

func printProjects(w io.Writer, projects []api.Project, current int) {
	if len(projects) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No projects yet. Create one with 'weaver projects create NAME'."))
		return
	}
	t := newTable(2, 6, 30, 16)
	for _, pr := range projects {
		mark := ""
		if pr.ID == current {
			mark = "*"
		}
		t.add(mark, strconv.Itoa(pr.ID), pr.Name, util.FormatAgo(pr.UpdatedAt.Time), pr.Description)
	}
	t.write(w, "", "ID", "NAME", "UPDATED", "DESCRIPTION")
}

type projectDetail struct {
	Project   *api.Project   `json:"project"`
	Documents []api.Document `json:"documents"`
}

func showProject(ctx context.Context, env *Env, id int) error {
	project, err := env.Client.GetProject(ctx, id)
	if err != nil {
		return wrap("projects", "show", err)
	}
	docs, err := env.Client.ListDocuments(ctx, id)
	if err != nil {
		return wrap("projects", "show", err)
	}

	return env.emit("projects show", projectDetail{Project: project, Documents: docs}, func(w io.Writer) {
		fmt.Fprintln(w, TitleStyle.Render(project.Name))
		fmt.Fprintf(w, "%s%d\n", RenderLabel("ID"), project.ID)
		if project.Description != "" {
			fmt.Fprintf(w, "%s%s\n", RenderLabel("Description"), project.Description)
		}
		if project.ChunkingStrategy != "" {
			fmt.Fprintf(w, "%s%s\n", RenderLabel("Chunking"), project.ChunkingStrategy)
		}
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Created"), util.FormatAgo(project.CreatedAt.Time))
		fmt.Fprintf(w, "%s%d\n\n", RenderLabel("Documents"), len(docs))
		if len(docs) > 0 {
			printDocuments(w, docs)
		}
	})
}
