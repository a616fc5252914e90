// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"fmt"
	"time"
)

// =============================================================================
// TIMESTAMPS
// =============================================================================

// Time is a timestamp that also accepts the naive ISO-8601 values the
// backend emits (no zone offset). Naive values are taken as UTC.
type Time struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		t.Time = time.Time{}
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid timestamp %s", data)
	}
	raw := string(data[1 : len(data)-1])
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", raw)
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339Nano) + `"`), nil
}

// =============================================================================
// AUTH
// =============================================================================

// User is the account returned by /api/auth/me and /api/auth/register.
type User struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	IsActive  bool   `json:"is_active"`
	CreatedAt Time   `json:"created_at"`
}

// RegisterRequest is the body for /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest is the body for /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Token is the bearer token returned by /api/auth/login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// =============================================================================
// PROJECTS
// =============================================================================

// Project is a workspace owning documents, teams and chat history.
type Project struct {
	ID               int                    `json:"id"`
	Name             string                 `json:"name"`
	Description      string                 `json:"description,omitempty"`
	OwnerID          int                    `json:"owner_id"`
	ChunkingStrategy string                 `json:"chunking_strategy,omitempty"`
	ChunkingConfig   map[string]interface{} `json:"chunking_config,omitempty"`
	CreatedAt        Time                   `json:"created_at"`
	UpdatedAt        Time                   `json:"updated_at"`
}

// ProjectList is the envelope of GET /api/projects.
type ProjectList struct {
	Projects []Project `json:"projects"`
	Total    int       `json:"total"`
}

// ProjectCreate is the body for POST /api/projects.
type ProjectCreate struct {
	Name             string                 `json:"name"`
	Description      string                 `json:"description,omitempty"`
	ChunkingStrategy string                 `json:"chunking_strategy,omitempty"`
	ChunkingConfig   map[string]interface{} `json:"chunking_config,omitempty"`
}

// ProjectUpdate is the body for PUT /api/projects/{id}. Nil fields are unchanged.
type ProjectUpdate struct {
	Name             *string                `json:"name,omitempty"`
	Description      *string                `json:"description,omitempty"`
	ChunkingStrategy *string                `json:"chunking_strategy,omitempty"`
	ChunkingConfig   map[string]interface{} `json:"chunking_config,omitempty"`
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// DocumentChunk is one vectorized slice of a document.
type DocumentChunk struct {
	ID         int    `json:"id"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
	CreatedAt  Time   `json:"created_at"`
}

// Document is an uploaded file and its processing state.
type Document struct {
	ID               int             `json:"id"`
	Filename         string          `json:"filename"`
	OriginalFilename string          `json:"original_filename"`
	FileSize         int64           `json:"file_size"`
	MimeType         string          `json:"mime_type"`
	ProjectID        int             `json:"project_id"`
	IsActive         bool            `json:"is_active"`
	Processed        bool            `json:"processed"`
	Chunks           []DocumentChunk `json:"chunks"`
	CreatedAt        Time            `json:"created_at"`
	UpdatedAt        Time            `json:"updated_at"`
}

// DocumentUploadResponse is returned by the upload endpoint.
type DocumentUploadResponse struct {
	ID               int    `json:"id"`
	Filename         string `json:"filename"`
	OriginalFilename string `json:"original_filename"`
	FileSize         int64  `json:"file_size"`
	MimeType         string `json:"mime_type"`
	Message          string `json:"message"`
}

// DocumentStatus is one row of GET /api/projects/{id}/documents/status.
type DocumentStatus struct {
	DocumentID int    `json:"document_id"`
	Filename   string `json:"filename"`
	Processed  bool   `json:"processed"`
	ChunkCount int    `json:"chunk_count"`
	FileSize   int64  `json:"file_size"`
	CreatedAt  Time   `json:"created_at"`
}

// =============================================================================
// TEAMS & AGENTS
// =============================================================================

// Agent is a configured assistant persona.
type Agent struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	CreatedAt    Time   `json:"created_at"`
	UpdatedAt    Time   `json:"updated_at"`
}

// AgentCreate is the body for POST /api/agents.
type AgentCreate struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// Team groups agents inside a project.
type Team struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	ProjectID   int     `json:"project_id"`
	Agents      []Agent `json:"agents"`
	CreatedAt   Time    `json:"created_at"`
	UpdatedAt   Time    `json:"updated_at"`
}

// TeamCreate is the body for POST /api/teams.
type TeamCreate struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ProjectID   int    `json:"project_id"`
	AgentIDs    []int  `json:"agent_ids,omitempty"`
}

// TeamPreset is a predefined team template.
type TeamPreset struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Agents      []string `json:"agents"`
}

// =============================================================================
// CHAT
// =============================================================================

// ChatRequest is the body for POST /api/chat/send.
type ChatRequest struct {
	Message   string `json:"message"`
	ProjectID int    `json:"project_id"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	Context   string `json:"context,omitempty"`
}

// ChatResponse is the LLM reply.
type ChatResponse struct {
	Message  string                 `json:"message"`
	Provider string                 `json:"provider"`
	Model    string                 `json:"model"`
	Usage    map[string]interface{} `json:"usage,omitempty"`
}

// ChatMessage is one turn of stored history.
type ChatMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp Time   `json:"timestamp"`
}

// ChatHistory is the response of GET /api/chat/history/{project_id}.
type ChatHistory struct {
	ProjectID int           `json:"project_id"`
	Messages  []ChatMessage `json:"messages"`
}

// =============================================================================
// MODELS
// =============================================================================

// InstalledModel is a model available to the backend's LLM provider.
type InstalledModel struct {
	Name       string `json:"name"`
	Size       int64  `json:"size,omitempty"`
	Digest     string `json:"digest,omitempty"`
	ModifiedAt Time   `json:"modified_at"`
}

// ModelList is the envelope of GET /api/chat/models.
type ModelList struct {
	Provider string           `json:"provider"`
	Models   []InstalledModel `json:"models"`
}

// ModelInfo is a catalogue entry from GET /api/chat/models/popular.
type ModelInfo struct {
	Name         string   `json:"name"`
	DisplayName  string   `json:"display_name"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Tags         []string `json:"tags"`
	Recommended  bool     `json:"recommended"`
	SizeEstimate string   `json:"size_estimate"`
}

// InstallRequest is the body for POST /api/chat/models/install.
type InstallRequest struct {
	ModelName string `json:"model_name"`
	Provider  string `json:"provider"`
}

// InstallResponse carries the id of the created install task.
type InstallResponse struct {
	TaskID string `json:"task_id"`
}

// InstallTask is the server projection of a model install task.
// Progress may be a fraction or a percentage depending on the backend version.
type InstallTask struct {
	TaskID    string  `json:"task_id"`
	ModelName string  `json:"model_name"`
	Provider  string  `json:"provider,omitempty"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	Message   string  `json:"message,omitempty"`
	Error     string  `json:"error,omitempty"`
	CreatedAt Time    `json:"created_at"`
	UpdatedAt Time    `json:"updated_at"`
}

// Ack is the generic acknowledgement body.
type Ack struct {
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}
