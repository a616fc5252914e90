// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the REST client for the LocalAgentWeaver backend.
//
// The backend owns authentication, projects, documents, teams, chat and
// model installation; this package only speaks its JSON-over-HTTP API
// with a bearer token.
//
// # Key Types
//
//   - Client: resty-based HTTP client with auth, rate limiting and typed errors
//   - APIError: categorized error with the backend's "detail" message
//   - InstallTask, DocumentStatus: task projections consumed by the task monitor
//
// # Usage
//
//	client := api.NewClient(&api.Config{BaseURL: "http://127.0.0.1:8000"})
//	if _, err := client.Login(ctx, "me@example.com", "secret"); err != nil {
//	    return err
//	}
//	resp, err := client.InstallModel(ctx, api.InstallRequest{ModelName: "llama3", Provider: "ollama"})
package api
