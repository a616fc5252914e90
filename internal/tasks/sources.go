// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/localagentweaver/weaver/internal/api"
)

// ErrCancelUnsupported is returned by sources whose backend cannot stop a task.
var ErrCancelUnsupported = errors.New("backend cannot cancel this task")

// DefaultProvider is used for installs that do not name a provider.
const DefaultProvider = "ollama"

// =============================================================================
// MODEL INSTALLS
// =============================================================================

// InstallAPI is the subset of the backend client used for model installs.
type InstallAPI interface {
	InstallModel(ctx context.Context, req api.InstallRequest) (*api.InstallResponse, error)
	InstallStatus(ctx context.Context, taskID string) (*api.InstallTask, error)
	CancelInstall(ctx context.Context, taskID string) error
}

// InstallSource runs model downloads through the backend install endpoints.
// Request.Subject is the model name; Params["provider"] selects the provider.
type InstallSource struct {
	client InstallAPI
}

// NewInstallSource creates an install source.
func NewInstallSource(client InstallAPI) *InstallSource {
	return &InstallSource{client: client}
}

// Create starts an install.
func (s *InstallSource) Create(ctx context.Context, req Request) (Ticket, error) {
	provider := req.Params["provider"]
	if provider == "" {
		provider = DefaultProvider
	}
	resp, err := s.client.InstallModel(ctx, api.InstallRequest{ModelName: req.Subject, Provider: provider})
	if err != nil {
		return Ticket{}, err
	}
	return Ticket{ID: resp.TaskID, Subject: req.Subject}, nil
}

// Fetch returns the install task's status.
func (s *InstallSource) Fetch(ctx context.Context, id string) (Snapshot, error) {
	task, err := s.client.InstallStatus(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	status, err := ParseStatus(task.Status)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Status:   status,
		Progress: task.Progress,
		Message:  task.Message,
		Error:    task.Error,
	}, nil
}

// Cancel asks the backend to stop the download.
func (s *InstallSource) Cancel(ctx context.Context, id string) error {
	return s.client.CancelInstall(ctx, id)
}

// =============================================================================
// DOCUMENT UPLOADS
// =============================================================================

// DocumentAPI is the subset of the backend client used for document tasks.
type DocumentAPI interface {
	UploadDocument(ctx context.Context, projectID int, path string) (*api.DocumentUploadResponse, error)
	GetDocument(ctx context.Context, id int) (*api.Document, error)
}

// DocumentSource uploads files into a project and follows their processing.
// Request.Subject is the local file path.
type DocumentSource struct {
	client    DocumentAPI
	projectID int
}

// NewDocumentSource creates a document source for one project.
func NewDocumentSource(client DocumentAPI, projectID int) *DocumentSource {
	return &DocumentSource{client: client, projectID: projectID}
}

// Create uploads the file. The backend processes it after the upload returns.
func (s *DocumentSource) Create(ctx context.Context, req Request) (Ticket, error) {
	resp, err := s.client.UploadDocument(ctx, s.projectID, req.Subject)
	if err != nil {
		return Ticket{}, err
	}
	name := resp.OriginalFilename
	if name == "" {
		name = filepath.Base(req.Subject)
	}
	return Ticket{ID: strconv.Itoa(resp.ID), Subject: name}, nil
}

// Fetch maps the document's processed flag onto a task status.
func (s *DocumentSource) Fetch(ctx context.Context, id string) (Snapshot, error) {
	docID, err := strconv.Atoi(id)
	if err != nil {
		return Snapshot{}, fmt.Errorf("invalid document id %q", id)
	}
	doc, err := s.client.GetDocument(ctx, docID)
	if api.IsNotFound(err) {
		return Snapshot{Status: StatusFailed, Error: "document was deleted"}, nil
	}
	if err != nil {
		return Snapshot{}, err
	}
	return documentSnapshot(doc.Processed, len(doc.Chunks)), nil
}

// Cancel is not supported: the backend has no way to stop vectorization.
func (s *DocumentSource) Cancel(context.Context, string) error {
	return ErrCancelUnsupported
}

func documentSnapshot(processed bool, chunks int) Snapshot {
	if processed {
		return Snapshot{Status: StatusCompleted, Progress: 1, Message: fmt.Sprintf("%d chunks", chunks)}
	}
	return Snapshot{Status: StatusRunning, Message: "processing"}
}

// =============================================================================
// PROJECT DOCUMENT STATUS
// =============================================================================

// StatusAPI is the batch document status endpoint.
type StatusAPI interface {
	DocumentStatus(ctx context.Context, projectID int) ([]api.DocumentStatus, error)
}

// ProjectStatusSource follows documents of a project that were uploaded
// elsewhere. One batch request answers every Fetch made within MaxAge, so a
// poll tick costs a single request regardless of how many documents it has.
type ProjectStatusSource struct {
	client    StatusAPI
	projectID int

	// MaxAge is how long a batch result is reused (default: 1s)
	MaxAge time.Duration

	now func() time.Time

	mu        sync.Mutex
	fetchedAt time.Time
	batch     map[string]api.DocumentStatus
	err       error
}

// NewProjectStatusSource creates a read-only source for one project.
func NewProjectStatusSource(client StatusAPI, projectID int) *ProjectStatusSource {
	return &ProjectStatusSource{
		client:    client,
		projectID: projectID,
		MaxAge:    time.Second,
		now:       time.Now,
	}
}

// Pending returns tickets for every document still being processed.
func (s *ProjectStatusSource) Pending(ctx context.Context) ([]Ticket, error) {
	batch, err := s.refresh(ctx, true)
	if err != nil {
		return nil, err
	}
	var out []Ticket
	for id, st := range batch {
		if !st.Processed {
			out = append(out, Ticket{ID: id, Subject: st.Filename})
		}
	}
	sortTickets(out)
	return out, nil
}

// Create is not supported; use DocumentSource to upload.
func (s *ProjectStatusSource) Create(context.Context, Request) (Ticket, error) {
	return Ticket{}, errors.New("project status source is read-only")
}

// Fetch answers from the cached batch, refreshing it when stale.
func (s *ProjectStatusSource) Fetch(ctx context.Context, id string) (Snapshot, error) {
	batch, err := s.refresh(ctx, false)
	if err != nil {
		return Snapshot{}, err
	}
	st, ok := batch[id]
	if !ok {
		return Snapshot{Status: StatusFailed, Error: "document was deleted"}, nil
	}
	return documentSnapshot(st.Processed, st.ChunkCount), nil
}

// Cancel is not supported.
func (s *ProjectStatusSource) Cancel(context.Context, string) error {
	return ErrCancelUnsupported
}

// refresh returns the current batch. Concurrent callers wait on the same
// request rather than issuing their own. A failed request is remembered for
// MaxAge too, so the remaining Fetches of that tick share its error.
func (s *ProjectStatusSource) refresh(ctx context.Context, force bool) (map[string]api.DocumentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := !s.fetchedAt.IsZero() && s.now().Sub(s.fetchedAt) < s.MaxAge
	if !force && fresh {
		if s.err != nil {
			return nil, s.err
		}
		if s.batch != nil {
			return s.batch, nil
		}
	}

	statuses, err := s.client.DocumentStatus(ctx, s.projectID)
	s.fetchedAt = s.now()
	if err != nil {
		s.err = err
		return nil, err
	}
	batch := make(map[string]api.DocumentStatus, len(statuses))
	for _, st := range statuses {
		batch[strconv.Itoa(st.DocumentID)] = st
	}
	s.batch = batch
	s.err = nil
	return batch, nil
}

func sortTickets(ts []Ticket) {
	sort.Slice(ts, func(i, j int) bool {
		ai, aerr := strconv.Atoi(ts[i].ID)
		bi, berr := strconv.Atoi(ts[j].ID)
		if aerr == nil && berr == nil {
			return ai < bi
		}
		return ts[i].ID < ts[j].ID
	})
}
