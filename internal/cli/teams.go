// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// teams.go - Team and agent commands.
//
// Command: teams [subcommand] [--project ID]
//   list (default) | presets | show <id>
//   create <name> [--description D] [--agents 1,2]
//   create --preset <name>
//   delete <id> [--yes]
//
// Command: agents [subcommand]
//   list (default) | create <name> --role R [--prompt TEXT] | delete <id> [--yes]

package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/localagentweaver/weaver/internal/api"
)

// HandleTeams handles "weaver teams".
func HandleTeams(ctx context.Context, env *Env) error {
	p := NewArgParser(env.Args.Raw, "yes", "y")

	switch p.Subcommand() {
	case "", "list", "ls":
		project, err := env.projectID(p)
		if err != nil {
			return err
		}
		teams, err := env.Client.ListTeams(ctx, project)
		if err != nil {
			return wrap("teams", "list", err)
		}
		return env.emit("teams list", teams, func(w io.Writer) {
			printTeams(w, teams)
		})

	case "presets":
		presets, err := env.Client.ListTeamPresets(ctx)
		if err != nil {
			return wrap("teams", "presets", err)
		}
		return env.emit("teams presets", presets, func(w io.Writer) {
			t := newTable(20, 40)
			for _, pr := range presets {
				t.add(pr.Name, pr.Description, strings.Join(pr.Agents, ", "))
			}
			t.write(w, "PRESET", "DESCRIPTION", "AGENTS")
		})

	case "show":
		id, err := ParseIntWithValidation(p.Positional(1), "team id")
		if err != nil {
			return &UsageError{Message: err.Error(), Example: "weaver teams show 2"}
		}
		team, err := env.Client.GetTeam(ctx, id)
		if err != nil {
			return wrap("teams", "show", err)
		}
		return env.emit("teams show", team, func(w io.Writer) {
			fmt.Fprintln(w, TitleStyle.Render(team.Name))
			if team.Description != "" {
				fmt.Fprintln(w, team.Description)
			}
			printAgents(w, team.Agents)
		})

	case "create", "new":
		project, err := env.projectID(p)
		if err != nil {
			return err
		}
		var team *api.Team
		if preset := p.Flag("preset"); preset != "" {
			team, err = env.Client.InstantiateTeamPreset(ctx, preset, project)
		} else {
			name := JoinPositionalArgs(p, 1)
			if name == "" {
				return &UsageError{Message: "team name or --preset is required", Example: "weaver teams create --preset research"}
			}
			ids, perr := parseIDList(p.Flag("agents"))
			if perr != nil {
				return &UsageError{Message: perr.Error(), Example: "weaver teams create Review --agents 1,4"}
			}
			team, err = env.Client.CreateTeam(ctx, api.TeamCreate{
				Name:        name,
				Description: p.Flag("description"),
				ProjectID:   project,
				AgentIDs:    ids,
			})
		}
		if err != nil {
			return wrap("teams", "create", err)
		}
		return env.emit("teams create", team, func(w io.Writer) {
			fmt.Fprintf(w, "%s Created team %d (%s) with %d agent(s)\n", SuccessStyle.Render("✓"), team.ID, team.Name, len(team.Agents))
		})

	case "delete", "rm":
		id, err := ParseIntWithValidation(p.Positional(1), "team id")
		if err != nil {
			return &UsageError{Message: err.Error(), Example: "weaver teams delete 2 --yes"}
		}
		ok, err := RequireConfirmation(p.BoolFlag("yes") || p.BoolFlag("y"), fmt.Sprintf("delete team %d", id), env.Args.JSON)
		if err != nil {
			return err
		}
		if !ok {
			ShowCancellationMessage(env.Out)
			return nil
		}
		if err := env.Client.DeleteTeam(ctx, id); err != nil {
			return wrap("teams", "delete", err)
		}
		return env.emit("teams delete", map[string]int{"deleted": id}, func(w io.Writer) {
			fmt.Fprintf(w, "Deleted team %d.\n", id)
		})

	default:
		return usagef("unknown teams subcommand %q (list, presets, show, create, delete)", p.Subcommand())
	}
}

// HandleAgents handles "weaver agents".
func HandleAgents(ctx context.Context, env *Env) error {
	p := NewArgParser(env.Args.Raw, "yes", "y")

	switch p.Subcommand() {
	case "", "list", "ls":
		agents, err := env.Client.ListAgents(ctx)
		if err != nil {
			return wrap("agents", "list", err)
		}
		return env.emit("agents list", agents, func(w io.Writer) {
			printAgents(w, agents)
		})

	case "create", "new":
		name := JoinPositionalArgs(p, 1)
		role := p.Flag("role")
		if name == "" || role == "" {
			return &UsageError{Message: "agent name and --role are required", Example: `weaver agents create Critic --role reviewer --prompt "Find flaws."`}
		}
		agent, err := env.Client.CreateAgent(ctx, api.AgentCreate{
			Name:         name,
			Role:         role,
			SystemPrompt: p.Flag("prompt"),
		})
		if err != nil {
			return wrap("agents", "create", err)
		}
		return env.emit("agents create", agent, func(w io.Writer) {
			fmt.Fprintf(w, "%s Created agent %d (%s)\n", SuccessStyle.Render("✓"), agent.ID, agent.Name)
		})

	case "delete", "rm":
		id, err := ParseIntWithValidation(p.Positional(1), "agent id")
		if err != nil {
			return &UsageError{Message: err.Error(), Example: "weaver agents delete 4 --yes"}
		}
		ok, err := RequireConfirmation(p.BoolFlag("yes") || p.BoolFlag("y"), fmt.Sprintf("delete agent %d", id), env.Args.JSON)
		if err != nil {
			return err
		}
		if !ok {
			ShowCancellationMessage(env.Out)
			return nil
		}
		if err := env.Client.DeleteAgent(ctx, id); err != nil {
			return wrap("agents", "delete", err)
		}
		return env.emit("agents delete", map[string]int{"deleted": id}, func(w io.Writer) {
			fmt.Fprintf(w, "Deleted agent %d.\n", id)
		})

	default:
		return usagef("unknown agents subcommand %q (list, create, delete)", p.Subcommand())
	}
}

func printTeams(w io.Writer, teams []api.Team) {
	if len(teams) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No teams. 'weaver teams presets' lists ready-made ones."))
		return
	}
	t := newTable(6, 24)
	for _, tm := range teams {
		names := make([]string, 0, len(tm.Agents))
		for _, a := range tm.Agents {
			names = append(names, a.Name)
		}
		t.add(strconv.Itoa(tm.ID), tm.Name, strings.Join(names, ", "))
	}
	t.write(w, "ID", "TEAM", "AGENTS")
}

func printAgents(w io.Writer, agents []api.Agent) {
	if len(agents) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No agents."))
		return
	}
	t := newTable(6, 20, 16)
	for _, a := range agents {
		t.add(strconv.Itoa(a.ID), a.Name, a.Role, a.SystemPrompt)
	}
	t.write(w, "ID", "NAME", "ROLE", "PROMPT")
}

// parseIDList parses "1,2, 3" into ids. Empty input yields nil.
func parseIDList(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var ids []int
	for _, part := range strings.Split(s, ",") {
		id, err := ParseIntWithValidation(strings.TrimSpace(part), "agent id")
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
