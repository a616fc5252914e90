// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"
)

// ListProjects returns the projects owned by the current user.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var list ProjectList
	if err := c.do(ctx, http.MethodGet, "/api/projects/", nil, &list); err != nil {
		return nil, err
	}
	return list.Projects, nil
}

// GetProject returns one project.
func (c *Client) GetProject(ctx context.Context, id int) (*Project, error) {
	var p Project
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/projects/%d", id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, req ProjectCreate) (*Project, error) {
	var p Project
	if err := c.do(ctx, http.MethodPost, "/api/projects/", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProject applies a partial update.
func (c *Client) UpdateProject(ctx context.Context, id int, req ProjectUpdate) (*Project, error) {
	var p Project
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/projects/%d", id), req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProject deletes a project and everything it owns.
func (c *Client) DeleteProject(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/projects/%d", id), nil, nil)
}
