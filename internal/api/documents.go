// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// MaxUploadSize is the largest file the backend accepts.
const MaxUploadSize = 30 * 1024 * 1024

// UploadExtensions lists the file types the backend can process.
var UploadExtensions = []string{".pdf", ".txt", ".md", ".docx"}

// IsUploadable reports whether the backend accepts files with this name.
func IsUploadable(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range UploadExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// CheckUpload validates a local file against the backend's upload rules
// before any bytes are sent.
func CheckUpload(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if !IsUploadable(path) {
		return fmt.Errorf("unsupported file type %q (allowed: %s)", filepath.Ext(path), strings.Join(UploadExtensions, ", "))
	}
	if info.Size() > MaxUploadSize {
		return fmt.Errorf("%s is larger than %d MB", filepath.Base(path), MaxUploadSize/(1024*1024))
	}
	return nil
}

// ListDocuments returns the documents of a project.
func (c *Client) ListDocuments(ctx context.Context, projectID int) ([]Document, error) {
	var docs []Document
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/projects/%d/documents", projectID), nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// UploadDocument uploads a file into a project. Processing (chunking and
// vectorization) continues on the backend after this call returns.
func (c *Client) UploadDocument(ctx context.Context, projectID int, path string) (*DocumentUploadResponse, error) {
	endpoint := fmt.Sprintf("/api/projects/%d/documents/upload", projectID)

	if err := CheckUpload(path); err != nil {
		return nil, &APIError{Kind: KindInvalidRequest, Method: http.MethodPost, Path: endpoint, Message: "upload rejected", Cause: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, transportError(http.MethodPost, endpoint, err)
	}

	var out DocumentUploadResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetFile("file", path).
		Post(endpoint)
	if err := c.handle(http.MethodPost, endpoint, resp, err, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDocument returns one document including its chunks.
func (c *Client) GetDocument(ctx context.Context, id int) (*Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/documents/%d", id), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// SetDocumentActive toggles whether a document takes part in retrieval.
func (c *Client) SetDocumentActive(ctx context.Context, id int, active bool) (*Document, error) {
	var doc Document
	body := map[string]bool{"is_active": active}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/documents/%d", id), body, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes a document and its chunks.
func (c *Client) DeleteDocument(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/documents/%d", id), nil, nil)
}

// DocumentStatus returns the processing status of every document in a project.
func (c *Client) DocumentStatus(ctx context.Context, projectID int) ([]DocumentStatus, error) {
	var statuses []DocumentStatus
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/projects/%d/documents/status", projectID), nil, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}
