// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// SendChat sends one message to the project's LLM and returns the reply.
func (c *Client) SendChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Message == "" {
		return nil, errors.New("chat message is empty")
	}
	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat/send", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChatHistory returns the stored conversation of a project.
func (c *Client) ChatHistory(ctx context.Context, projectID int) (*ChatHistory, error) {
	var h ChatHistory
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/chat/history/%d", projectID), nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// =============================================================================
// MODEL INSTALLATION
// =============================================================================

// ListModels returns the models installed for a provider.
func (c *Client) ListModels(ctx context.Context, provider string) ([]InstalledModel, error) {
	var list ModelList
	if err := c.do(ctx, http.MethodGet, "/api/chat/models?provider="+url.QueryEscape(provider), nil, &list); err != nil {
		return nil, err
	}
	return list.Models, nil
}

// PopularModels returns the backend's model catalogue for a provider.
func (c *Client) PopularModels(ctx context.Context, provider string) ([]ModelInfo, error) {
	var models []ModelInfo
	if err := c.do(ctx, http.MethodGet, "/api/chat/models/popular?provider="+url.QueryEscape(provider), nil, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// InstallModel starts a model download on the backend.
func (c *Client) InstallModel(ctx context.Context, req InstallRequest) (*InstallResponse, error) {
	if req.ModelName == "" {
		return nil, errors.New("model name is required")
	}
	var resp InstallResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat/models/install", req, &resp); err != nil {
		return nil, err
	}
	if resp.TaskID == "" {
		return nil, &APIError{Kind: KindInvalidResponse, Method: http.MethodPost, Path: "/api/chat/models/install", Message: "install response carried no task id"}
	}
	return &resp, nil
}

// InstallStatus returns the current state of an install task.
func (c *Client) InstallStatus(ctx context.Context, taskID string) (*InstallTask, error) {
	var task InstallTask
	if err := c.do(ctx, http.MethodGet, "/api/chat/models/install/"+url.PathEscape(taskID), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CancelInstall asks the backend to stop an install task.
func (c *Client) CancelInstall(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodPost, "/api/chat/models/install/"+url.PathEscape(taskID)+"/cancel", nil, nil)
}
