// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/localagentweaver/weaver/internal/api"
	"github.com/localagentweaver/weaver/internal/tasks"
)

// =============================================================================
// LIST REFRESH
// =============================================================================

// modelRefresh reloads the installed model list once per completed install.
// The last list seen is reported in the summary.
type modelRefresh struct {
	env      *Env
	provider string

	mu       sync.Mutex
	models   []api.InstalledModel
	unlisted []string
}

func (r *modelRefresh) completed(ctx context.Context, t tasks.Task) {
	logger := r.env.monitorLogger()
	models, err := r.env.Client.ListModels(ctx, r.provider)
	if err != nil {
		logger.Warn().Err(err).Str("provider", r.provider).Msg("model list refresh failed")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = models
	if !hasModel(models, t.Subject) {
		logger.Warn().Str("model", t.Subject).Str("provider", r.provider).
			Msg("install completed but the model is not listed")
		r.unlisted = append(r.unlisted, t.Subject)
	}
}

// fill copies the refreshed list into the command result.
func (r *modelRefresh) fill(data *TasksData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data.Models = r.models
	data.Unlisted = r.unlisted
}

// hasModel matches "llama3" against "llama3:latest" as the backend lists it.
func hasModel(models []api.InstalledModel, name string) bool {
	for _, m := range models {
		if m.Name == name || strings.HasPrefix(m.Name, name+":") {
			return true
		}
	}
	return false
}

// documentRefresh reloads the project's document list once per processed
// document.
type documentRefresh struct {
	env     *Env
	project int

	mu   sync.Mutex
	docs []api.Document
}

func (r *documentRefresh) completed(ctx context.Context, t tasks.Task) {
	docs, err := r.env.Client.ListDocuments(ctx, r.project)
	if err != nil {
		logger := r.env.monitorLogger()
		logger.Warn().Err(err).Int("project", r.project).Str("document", t.Subject).
			Msg("document list refresh failed")
		return
	}
	r.mu.Lock()
	r.docs = docs
	r.mu.Unlock()
}

func (r *documentRefresh) fill(data *TasksData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data.Documents = r.docs
}

// printRefreshed writes the lists reloaded after completions, if any.
func printRefreshed(w io.Writer, d TasksData) {
	if d.Models != nil {
		names := make([]string, 0, len(d.Models))
		for _, m := range d.Models {
			names = append(names, m.Name)
		}
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Installed"), strings.Join(names, ", "))
	}
	for _, name := range d.Unlisted {
		fmt.Fprintf(w, "%s %s finished but is not listed by the backend yet\n", WarningStyle.Render("!"), name)
	}
	if d.Documents != nil {
		processed := 0
		for _, doc := range d.Documents {
			if doc.Processed {
				processed++
			}
		}
		fmt.Fprintf(w, "%s%d (%d processed)\n", RenderLabel("Documents"), len(d.Documents), processed)
	}
}
