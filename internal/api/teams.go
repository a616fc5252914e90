// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ListTeams returns the teams of a project.
func (c *Client) ListTeams(ctx context.Context, projectID int) ([]Team, error) {
	var teams []Team
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/projects/%d/teams", projectID), nil, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// GetTeam returns one team with its agents.
func (c *Client) GetTeam(ctx context.Context, id int) (*Team, error) {
	var team Team
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/teams/%d", id), nil, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

// CreateTeam creates a team in a project.
func (c *Client) CreateTeam(ctx context.Context, req TeamCreate) (*Team, error) {
	var team Team
	if err := c.do(ctx, http.MethodPost, "/api/teams", req, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

// DeleteTeam deletes a team. Its agents are kept.
func (c *Client) DeleteTeam(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/teams/%d", id), nil, nil)
}

// ListTeamPresets returns the built-in team templates.
func (c *Client) ListTeamPresets(ctx context.Context) ([]TeamPreset, error) {
	var presets []TeamPreset
	if err := c.do(ctx, http.MethodGet, "/api/presets/teams", nil, &presets); err != nil {
		return nil, err
	}
	return presets, nil
}

// InstantiateTeamPreset creates a team (and its agents) from a template.
func (c *Client) InstantiateTeamPreset(ctx context.Context, preset string, projectID int) (*Team, error) {
	var team Team
	path := fmt.Sprintf("/api/presets/teams/%s/instantiate?project_id=%d", url.PathEscape(preset), projectID)
	if err := c.do(ctx, http.MethodPost, path, nil, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

// ListAgents returns every agent.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var agents []Agent
	if err := c.do(ctx, http.MethodGet, "/api/agents", nil, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// CreateAgent creates an agent.
func (c *Client) CreateAgent(ctx context.Context, req AgentCreate) (*Agent, error) {
	var agent Agent
	if err := c.do(ctx, http.MethodPost, "/api/agents", req, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// DeleteAgent deletes an agent.
func (c *Client) DeleteAgent(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/agents/%d", id), nil, nil)
}
