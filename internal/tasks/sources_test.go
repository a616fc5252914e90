// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localagentweaver/weaver/internal/api"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeInstallAPI struct {
	lastReq   api.InstallRequest
	status    api.InstallTask
	statusErr error
	cancelled []string
}

func (f *fakeInstallAPI) InstallModel(_ context.Context, req api.InstallRequest) (*api.InstallResponse, error) {
	f.lastReq = req
	return &api.InstallResponse{TaskID: "inst-1"}, nil
}

func (f *fakeInstallAPI) InstallStatus(context.Context, string) (*api.InstallTask, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	t := f.status
	return &t, nil
}

func (f *fakeInstallAPI) CancelInstall(_ context.Context, id string) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

type fakeDocumentAPI struct {
	doc    *api.Document
	getErr error
}

func (f *fakeDocumentAPI) UploadDocument(context.Context, int, string) (*api.DocumentUploadResponse, error) {
	return &api.DocumentUploadResponse{ID: 42, OriginalFilename: "report.pdf"}, nil
}

func (f *fakeDocumentAPI) GetDocument(context.Context, int) (*api.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.doc, nil
}

type fakeStatusAPI struct {
	mu       sync.Mutex
	calls    int
	err      error
	statuses []api.DocumentStatus
}

func (f *fakeStatusAPI) DocumentStatus(context.Context, int) ([]api.DocumentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]api.DocumentStatus(nil), f.statuses...), nil
}

func (f *fakeStatusAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// =============================================================================
// INSTALL SOURCE
// =============================================================================

func TestInstallSourceDefaultsProvider(t *testing.T) {
	fake := &fakeInstallAPI{}
	src := NewInstallSource(fake)

	ticket, err := src.Create(context.Background(), Request{Subject: "llama3"})
	require.NoError(t, err)
	assert.Equal(t, Ticket{ID: "inst-1", Subject: "llama3"}, ticket)
	assert.Equal(t, "ollama", fake.lastReq.Provider)

	_, err = src.Create(context.Background(), Request{Subject: "phi3", Params: map[string]string{"provider": "lmstudio"}})
	require.NoError(t, err)
	assert.Equal(t, "lmstudio", fake.lastReq.Provider)
}

func TestInstallSourceFetch(t *testing.T) {
	fake := &fakeInstallAPI{status: api.InstallTask{Status: "downloading", Progress: 55, Message: "pulling layers"}}
	src := NewInstallSource(fake)

	snap, err := src.Fetch(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, snap.Status)
	assert.Equal(t, 55.0, snap.Progress)
	assert.Equal(t, "pulling layers", snap.Message)

	fake.status.Status = "exploded"
	_, err = src.Fetch(context.Background(), "inst-1")
	assert.Error(t, err)
}

func TestInstallSourceCancel(t *testing.T) {
	fake := &fakeInstallAPI{}
	require.NoError(t, NewInstallSource(fake).Cancel(context.Background(), "inst-1"))
	assert.Equal(t, []string{"inst-1"}, fake.cancelled)
}

// =============================================================================
// DOCUMENT SOURCE
// =============================================================================

func TestDocumentSourceLifecycle(t *testing.T) {
	fake := &fakeDocumentAPI{doc: &api.Document{ID: 42, Processed: false}}
	src := NewDocumentSource(fake, 7)
	ctx := context.Background()

	ticket, err := src.Create(ctx, Request{Subject: "/tmp/report.pdf"})
	require.NoError(t, err)
	assert.Equal(t, Ticket{ID: "42", Subject: "report.pdf"}, ticket)

	snap, err := src.Fetch(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, snap.Status)

	fake.doc = &api.Document{ID: 42, Processed: true, Chunks: make([]api.DocumentChunk, 5)}
	snap, err = src.Fetch(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 1.0, snap.Progress)
	assert.Equal(t, "5 chunks", snap.Message)

	assert.ErrorIs(t, src.Cancel(ctx, ticket.ID), ErrCancelUnsupported)
}

func TestDocumentSourceDeletedDocumentFails(t *testing.T) {
	fake := &fakeDocumentAPI{getErr: &api.APIError{Kind: api.KindNotFound, Status: http.StatusNotFound}}
	snap, err := NewDocumentSource(fake, 7).Fetch(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.NotEmpty(t, snap.Error)
}

func TestDocumentSourceTransientError(t *testing.T) {
	fake := &fakeDocumentAPI{getErr: errors.New("connection reset")}
	_, err := NewDocumentSource(fake, 7).Fetch(context.Background(), "42")
	assert.Error(t, err)
}

// =============================================================================
// PROJECT STATUS SOURCE
// =============================================================================

func TestProjectStatusOneRequestPerTick(t *testing.T) {
	fake := &fakeStatusAPI{statuses: []api.DocumentStatus{
		{DocumentID: 1, Filename: "a.md", Processed: false},
		{DocumentID: 2, Filename: "b.md", Processed: false},
		{DocumentID: 3, Filename: "c.md", Processed: true, ChunkCount: 9},
	}}
	src := NewProjectStatusSource(fake, 7)
	src.MaxAge = 50 * time.Millisecond

	pending, err := src.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Ticket{{ID: "1", Subject: "a.md"}, {ID: "2", Subject: "b.md"}}, pending)

	mon := newManualMonitor(t, src, Options{Group: "documents"})
	for _, tk := range pending {
		_, err := mon.Track(tk)
		require.NoError(t, err)
	}

	time.Sleep(60 * time.Millisecond)
	before := fake.callCount()
	mon.Poll(context.Background())
	assert.Equal(t, before+1, fake.callCount())

	fake.mu.Lock()
	fake.statuses[0].Processed = true
	fake.statuses[0].ChunkCount = 4
	fake.mu.Unlock()

	time.Sleep(60 * time.Millisecond)
	mon.Poll(context.Background())

	a, _ := mon.Get("1")
	assert.Equal(t, StatusCompleted, a.Status)
	assert.Equal(t, "4 chunks", a.Message)
	b, _ := mon.Get("2")
	assert.Equal(t, StatusRunning, b.Status)
}

func TestProjectStatusFailedBatchIsShared(t *testing.T) {
	fake := &fakeStatusAPI{statuses: []api.DocumentStatus{
		{DocumentID: 1, Filename: "a.md"},
		{DocumentID: 2, Filename: "b.md"},
		{DocumentID: 3, Filename: "c.md"},
	}}
	src := NewProjectStatusSource(fake, 7)
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return clock }

	pending, err := src.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 3)

	mon := newManualMonitor(t, src, Options{Group: "documents"})
	for _, tk := range pending {
		_, err := mon.Track(tk)
		require.NoError(t, err)
	}

	fake.mu.Lock()
	fake.err = errors.New("502 bad gateway")
	fake.mu.Unlock()
	clock = clock.Add(2 * time.Second)

	events := mon.Subscribe()
	before := fake.callCount()
	mon.Poll(context.Background())
	assert.Equal(t, before+1, fake.callCount(), "one failed request per tick")

	pollErrors := 0
	for len(events) > 0 {
		ev := <-events
		if ev.Kind == EventPollError {
			pollErrors++
			assert.ErrorContains(t, ev.Err, "502")
		}
	}
	assert.Equal(t, 3, pollErrors)
	for _, task := range mon.List() {
		assert.Equal(t, StatusPending, task.Status)
	}

	fake.mu.Lock()
	fake.err = nil
	fake.statuses[1].Processed = true
	fake.mu.Unlock()
	clock = clock.Add(2 * time.Second)

	mon.Poll(context.Background())
	assert.Equal(t, before+2, fake.callCount())
	b, _ := mon.Get("2")
	assert.Equal(t, StatusCompleted, b.Status)
}

func TestProjectStatusMissingDocument(t *testing.T) {
	fake := &fakeStatusAPI{}
	src := NewProjectStatusSource(fake, 7)

	snap, err := src.Fetch(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, snap.Status)

	_, err = src.Create(context.Background(), Request{Subject: "x"})
	assert.Error(t, err)
	assert.ErrorIs(t, src.Cancel(context.Background(), "5"), ErrCancelUnsupported)
}
