// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a minimal in-memory stand-in for the LocalAgentWeaver API.
type fakeBackend struct {
	mu        sync.Mutex
	installs  map[string]*InstallTask
	cancelled []string
	uploads   []string
	authSeen  []string
	requestID []string
}

func newFakeBackend(t *testing.T) (*fakeBackend, *Client) {
	t.Helper()

	fb := &fakeBackend{installs: map[string]*InstallTask{}}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			fb.mu.Lock()
			fb.authSeen = append(fb.authSeen, req.Header.Get("Authorization"))
			fb.requestID = append(fb.requestID, req.Header.Get("X-Request-ID"))
			fb.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Post("/api/auth/login", func(w http.ResponseWriter, req *http.Request) {
		var body LoginRequest
		_ = json.NewDecoder(req.Body).Decode(&body)
		if body.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
			return
		}
		writeJSON(w, http.StatusOK, Token{AccessToken: "tok-123", TokenType: "bearer"})
	})
	r.Get("/api/auth/me", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Authorization") != "Bearer tok-123" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
			return
		}
		_, _ = io.WriteString(w, `{"id":1,"email":"a@b.c","username":"ada","is_active":true,"created_at":"2025-01-02T03:04:05.123456"}`)
	})
	r.Get("/api/projects/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, ProjectList{Projects: []Project{{ID: 7, Name: "alpha"}}, Total: 1})
	})
	r.Post("/api/projects/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"detail": []map[string]interface{}{{"loc": []string{"body", "name"}, "msg": "field required"}},
		})
	})
	r.Post("/api/projects/{id}/documents/upload", func(w http.ResponseWriter, req *http.Request) {
		file, header, err := req.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "No file provided"})
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		fb.mu.Lock()
		fb.uploads = append(fb.uploads, header.Filename)
		fb.mu.Unlock()
		writeJSON(w, http.StatusOK, DocumentUploadResponse{ID: 11, Filename: header.Filename, OriginalFilename: header.Filename, FileSize: int64(len(data))})
	})
	r.Get("/api/documents/{id}", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "id") != "11" {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Document not found"})
			return
		}
		writeJSON(w, http.StatusOK, Document{ID: 11, Filename: "notes.md", Processed: true, Chunks: make([]DocumentChunk, 3)})
	})
	r.Delete("/api/documents/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/api/chat/models", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, ModelList{Provider: req.URL.Query().Get("provider"), Models: []InstalledModel{{Name: "llama3:latest"}}})
	})
	r.Post("/api/chat/models/install", func(w http.ResponseWriter, req *http.Request) {
		var body InstallRequest
		_ = json.NewDecoder(req.Body).Decode(&body)
		fb.mu.Lock()
		fb.installs["t-1"] = &InstallTask{TaskID: "t-1", ModelName: body.ModelName, Provider: body.Provider, Status: "pending"}
		fb.mu.Unlock()
		writeJSON(w, http.StatusOK, InstallResponse{TaskID: "t-1"})
	})
	r.Get("/api/chat/models/install/{id}", func(w http.ResponseWriter, req *http.Request) {
		fb.mu.Lock()
		task, ok := fb.installs[chi.URLParam(req, "id")]
		fb.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Task not found"})
			return
		}
		writeJSON(w, http.StatusOK, task)
	})
	r.Post("/api/chat/models/install/{id}/cancel", func(w http.ResponseWriter, req *http.Request) {
		fb.mu.Lock()
		fb.cancelled = append(fb.cancelled, chi.URLParam(req, "id"))
		fb.mu.Unlock()
		writeJSON(w, http.StatusOK, Ack{Message: "cancelled"})
	})
	r.Post("/api/chat/send", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "LLM provider unavailable"})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client := NewClient(&Config{BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
	return fb, client
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// =============================================================================
// TESTS
// =============================================================================

func TestPing(t *testing.T) {
	_, client := newFakeBackend(t)
	require.NoError(t, client.Ping(context.Background()))
}

func TestLoginStoresToken(t *testing.T) {
	fb, client := newFakeBackend(t)
	ctx := context.Background()

	tok, err := client.Login(ctx, "a@b.c", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok.AccessToken)
	assert.Equal(t, "tok-123", client.Token())

	user, err := client.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Username)
	assert.Equal(t, 2025, user.CreatedAt.Year())
	assert.Equal(t, time.UTC, user.CreatedAt.Location())

	fb.mu.Lock()
	defer fb.mu.Unlock()
	assert.Equal(t, "Bearer tok-123", fb.authSeen[len(fb.authSeen)-1])
	for _, id := range fb.requestID {
		assert.NotEmpty(t, id)
	}
}

func TestLoginRejected(t *testing.T) {
	_, client := newFakeBackend(t)

	_, err := client.Login(context.Background(), "a@b.c", "wrong")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "Incorrect email or password")
	assert.Empty(t, client.Token())
}

func TestValidationDetailIsReadable(t *testing.T) {
	_, client := newFakeBackend(t)

	_, err := client.CreateProject(context.Background(), ProjectCreate{})
	require.Error(t, err)
	assert.Equal(t, KindInvalidRequest, KindOf(err))
	assert.Contains(t, err.Error(), "field required")
}

func TestListProjects(t *testing.T) {
	_, client := newFakeBackend(t)

	projects, err := client.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "alpha", projects[0].Name)
}

func TestUploadDocument(t *testing.T) {
	fb, client := newFakeBackend(t)

	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# hello"), 0o644))

	resp, err := client.UploadDocument(context.Background(), 7, path)
	require.NoError(t, err)
	assert.Equal(t, 11, resp.ID)
	assert.Equal(t, int64(7), resp.FileSize)

	fb.mu.Lock()
	defer fb.mu.Unlock()
	assert.Equal(t, []string{"notes.md"}, fb.uploads)
}

func TestUploadMissingFile(t *testing.T) {
	_, client := newFakeBackend(t)

	_, err := client.UploadDocument(context.Background(), 7, filepath.Join(t.TempDir(), "absent.pdf"))
	require.Error(t, err)
	assert.Equal(t, KindInvalidRequest, KindOf(err))
}

func TestGetDocumentNotFound(t *testing.T) {
	_, client := newFakeBackend(t)
	ctx := context.Background()

	doc, err := client.GetDocument(ctx, 11)
	require.NoError(t, err)
	assert.True(t, doc.Processed)
	assert.Len(t, doc.Chunks, 3)

	_, err = client.GetDocument(ctx, 99)
	assert.True(t, IsNotFound(err))
}

func TestDeleteDocumentNoContent(t *testing.T) {
	_, client := newFakeBackend(t)
	require.NoError(t, client.DeleteDocument(context.Background(), 11))
}

func TestInstallLifecycle(t *testing.T) {
	fb, client := newFakeBackend(t)
	ctx := context.Background()

	resp, err := client.InstallModel(ctx, InstallRequest{ModelName: "llama3", Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "t-1", resp.TaskID)

	task, err := client.InstallStatus(ctx, resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "llama3", task.ModelName)
	assert.Equal(t, "pending", task.Status)

	require.NoError(t, client.CancelInstall(ctx, resp.TaskID))
	fb.mu.Lock()
	assert.Equal(t, []string{"t-1"}, fb.cancelled)
	fb.mu.Unlock()

	_, err = client.InstallStatus(ctx, "nope")
	assert.True(t, IsNotFound(err))
}

func TestInstallRequiresModelName(t *testing.T) {
	_, client := newFakeBackend(t)
	_, err := client.InstallModel(context.Background(), InstallRequest{})
	assert.Error(t, err)
}

func TestListModelsSendsProvider(t *testing.T) {
	_, client := newFakeBackend(t)

	models, err := client.ListModels(context.Background(), "ollama")
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "llama3:latest", models[0].Name)
}

func TestServerErrorKind(t *testing.T) {
	_, client := newFakeBackend(t)

	_, err := client.SendChat(context.Background(), ChatRequest{Message: "hi", ProjectID: 7})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindServer, apiErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "LLM provider unavailable", apiErr.Message)
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(&Config{BaseURL: url, Timeout: time.Second})
	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestInspectToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "a@b.c",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("not-the-server-key"))
	require.NoError(t, err)

	info, err := InspectToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", info.Subject)
	assert.True(t, info.ExpiresAt.Equal(exp))
	assert.False(t, info.Expired(time.Now()))
	assert.True(t, info.Expired(exp.Add(time.Minute)))

	_, err = InspectToken("garbage")
	assert.Error(t, err)
}

func TestCheckUpload(t *testing.T) {
	dir := t.TempDir()

	ok := filepath.Join(dir, "Guide.PDF")
	require.NoError(t, os.WriteFile(ok, []byte("%PDF"), 0o644))
	assert.NoError(t, CheckUpload(ok))

	exe := filepath.Join(dir, "tool.exe")
	require.NoError(t, os.WriteFile(exe, []byte("MZ"), 0o644))
	assert.Error(t, CheckUpload(exe))

	assert.Error(t, CheckUpload(dir))
	assert.False(t, IsUploadable("notes.rtf"))
	assert.True(t, IsUploadable("notes.md"))
}
