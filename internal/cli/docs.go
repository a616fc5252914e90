// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// docs.go - Document commands.
//
// Command: docs [subcommand] [--project ID]
//
// Subcommands:
//   list (default)            List documents of the project
//   status                    Processing status of every document
//   upload <file>...          Upload files and follow their processing
//   watch                     Follow documents that are still processing
//   watch-dir <dir>           Upload every file dropped into dir
//   activate|deactivate <id>  Include or exclude a document from retrieval
//   delete <id> [--yes]       Delete a document
//
// Uploads accept .pdf, .txt, .md and .docx files up to 30 MB.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/localagentweaver/weaver/internal/api"
	"github.com/localagentweaver/weaver/internal/dropdir"
	"github.com/localagentweaver/weaver/internal/tasks"
	"github.com/localagentweaver/weaver/internal/ui/taskview"
	"github.com/localagentweaver/weaver/internal/util"
)

const documentsGroup = "documents"

// HandleDocs handles "weaver docs".
func HandleDocs(ctx context.Context, env *Env) error {
	p := NewArgParser(env.Args.Raw, "yes", "y", "existing")

	switch p.Subcommand() {
	case "", "list", "ls":
		project, err := env.projectID(p)
		if err != nil {
			return err
		}
		docs, err := env.Client.ListDocuments(ctx, project)
		if err != nil {
			return wrap("docs", "list", err)
		}
		return env.emit("docs list", docs, func(w io.Writer) {
			printDocuments(w, docs)
		})

	case "status":
		project, err := env.projectID(p)
		if err != nil {
			return err
		}
		statuses, err := env.Client.DocumentStatus(ctx, project)
		if err != nil {
			return wrap("docs", "status", err)
		}
		return env.emit("docs status", statuses, func(w io.Writer) {
			printDocumentStatus(w, statuses)
		})

	case "upload", "add":
		project, err := env.projectID(p)
		if err != nil {
			return err
		}
		files := p.PositionalFrom(1)
		if len(files) == 0 {
			return &UsageError{Message: "no files given", Example: "weaver docs upload report.pdf notes.md --project 3"}
		}
		return uploadDocuments(ctx, env, project, files)

	case "watch":
		project, err := env.projectID(p)
		if err != nil {
			return err
		}
		return watchDocuments(ctx, env, project)

	case "watch-dir":
		project, err := env.projectID(p)
		if err != nil {
			return err
		}
		dir := p.Positional(1)
		if dir == "" {
			return &UsageError{Message: "no directory given", Example: "weaver docs watch-dir ~/inbox --project 3"}
		}
		return watchDropDir(ctx, env, project, dir, p.BoolFlag("existing"))

	case "activate", "deactivate":
		id, err := ParseIntWithValidation(p.Positional(1), "document id")
		if err != nil {
			return &UsageError{Message: err.Error(), Example: "weaver docs deactivate 12"}
		}
		active := p.Subcommand() == "activate"
		doc, err := env.Client.SetDocumentActive(ctx, id, active)
		if err != nil {
			return wrap("docs", p.Subcommand(), err)
		}
		return env.emit("docs "+p.Subcommand(), doc, func(w io.Writer) {
			fmt.Fprintf(w, "%s is now %s\n", doc.OriginalFilename, map[bool]string{true: "active", false: "inactive"}[doc.IsActive])
		})

	case "delete", "rm":
		id, err := ParseIntWithValidation(p.Positional(1), "document id")
		if err != nil {
			return &UsageError{Message: err.Error(), Example: "weaver docs delete 12 --yes"}
		}
		ok, err := RequireConfirmation(p.BoolFlag("yes") || p.BoolFlag("y"), fmt.Sprintf("delete document %d", id), env.Args.JSON)
		if err != nil {
			return err
		}
		if !ok {
			ShowCancellationMessage(env.Out)
			return nil
		}
		if err := env.Client.DeleteDocument(ctx, id); err != nil {
			return wrap("docs", "delete", err)
		}
		return env.emit("docs delete", map[string]int{"deleted": id}, func(w io.Writer) {
			fmt.Fprintf(w, "Deleted document %d.\n", id)
		})

	default:
		return usagef("unknown docs subcommand %q (list, status, upload, watch, watch-dir, activate, deactivate, delete)", p.Subcommand())
	}
}

// =============================================================================
// LISTING
// =============================================================================

func printDocuments(w io.Writer, docs []api.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No documents."))
		return
	}
	t := newTable(6, 32, 10, 10, 8)
	for _, d := range docs {
		state := "processing"
		if d.Processed {
			state = "ready"
		}
		if !d.IsActive {
			state += " (off)"
		}
		t.add(strconv.Itoa(d.ID), d.OriginalFilename, util.FormatBytes(d.FileSize), state,
			strconv.Itoa(len(d.Chunks)), util.FormatAgo(d.CreatedAt.Time))
	}
	t.write(w, "ID", "FILE", "SIZE", "STATE", "CHUNKS", "UPLOADED")
}

func printDocumentStatus(w io.Writer, statuses []api.DocumentStatus) {
	if len(statuses) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No documents."))
		return
	}
	pending := 0
	t := newTable(6, 32, 12, 8)
	for _, s := range statuses {
		state := SuccessStyle.Render("ready")
		if !s.Processed {
			state = WarningStyle.Render("processing")
			pending++
		}
		t.add(strconv.Itoa(s.DocumentID), s.Filename, state, strconv.Itoa(s.ChunkCount), util.FormatBytes(s.FileSize))
	}
	t.write(w, "ID", "FILE", "STATE", "CHUNKS", "SIZE")
	if pending > 0 {
		fmt.Fprintln(w, DimStyle.Render(fmt.Sprintf("\n%d still processing; 'weaver docs watch' follows them.", pending)))
	}
}

// =============================================================================
// UPLOAD AND WATCH
// =============================================================================

func uploadDocuments(ctx context.Context, env *Env, project int, files []string) error {
	hist, err := env.openHistory()
	if err != nil {
		env.Log.Warn().Err(err).Msg("task history unavailable")
	}
	defer env.closeHistory(hist)

	refresh := &documentRefresh{env: env, project: project}
	mon := env.newMonitor(ctx, documentsGroup, tasks.NewDocumentSource(env.Client, project),
		env.Config.Tasks.DocumentPollInterval(), hist, refresh.completed)

	notStarted := 0
	for _, f := range files {
		if err := api.CheckUpload(f); err != nil {
			env.notef("%s %v", ErrorStyle.Render("✗"), err)
			notStarted++
			continue
		}
		if _, err := mon.Start(ctx, tasks.Request{Subject: f}); err != nil {
			env.notef("%s %s: %v", ErrorStyle.Render("✗"), filepath.Base(f), err)
			notStarted++
		}
	}
	if len(mon.List()) == 0 {
		mon.Close()
		return finishTasks(env, "docs upload", TasksData{Group: documentsGroup}, notStarted)
	}

	rows, err := followTasks(ctx, env, mon, "Processing documents")
	if err != nil {
		return wrap("docs", "upload", err)
	}
	data := TasksData{Group: documentsGroup, Tasks: rows}
	refresh.fill(&data)
	return finishTasks(env, "docs upload", data, notStarted)
}

// watchDocuments follows every document of the project that is not yet
// processed. One status request per tick serves all of them.
func watchDocuments(ctx context.Context, env *Env, project int) error {
	src := tasks.NewProjectStatusSource(env.Client, project)
	src.MaxAge = env.Config.Tasks.DocumentPollInterval() / 2

	pending, err := src.Pending(ctx)
	if err != nil {
		return wrap("docs", "watch", err)
	}
	if len(pending) == 0 {
		return env.emit("docs watch", TasksData{Group: documentsGroup, Tasks: []tasks.Task{}}, func(w io.Writer) {
			fmt.Fprintln(w, "All documents are processed.")
		})
	}

	hist, err := env.openHistory()
	if err != nil {
		env.Log.Warn().Err(err).Msg("task history unavailable")
	}
	defer env.closeHistory(hist)

	refresh := &documentRefresh{env: env, project: project}
	mon := env.newMonitor(ctx, documentsGroup, src, env.Config.Tasks.DocumentPollInterval(), hist, refresh.completed)
	for _, ticket := range pending {
		if _, err := mon.Track(ticket); err != nil {
			mon.Close()
			return wrap("docs", "watch", err)
		}
	}

	rows, err := followTasks(ctx, env, mon, "Processing documents")
	if err != nil {
		return wrap("docs", "watch", err)
	}
	data := TasksData{Group: documentsGroup, Tasks: rows}
	refresh.fill(&data)
	return finishTasks(env, "docs watch", data, 0)
}

// watchDropDir uploads files as they appear in dir until interrupted.
func watchDropDir(ctx context.Context, env *Env, project int, dir string, existing bool) error {
	info, err := os.Stat(dir)
	if err != nil {
		return &UsageError{Message: err.Error()}
	}
	if !info.IsDir() {
		return usagef("%s is not a directory", dir)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	hist, err := env.openHistory()
	if err != nil {
		env.Log.Warn().Err(err).Msg("task history unavailable")
	}
	defer env.closeHistory(hist)

	refresh := &documentRefresh{env: env, project: project}
	mon := env.newMonitor(ctx, documentsGroup, tasks.NewDocumentSource(env.Client, project),
		env.Config.Tasks.DocumentPollInterval(), hist, refresh.completed)

	logger := env.monitorLogger()
	lines := env.lineWriter()
	dialog := UseDialog(env.Args)

	var (
		mu      sync.Mutex
		refused int
	)
	watcher, err := dropdir.New(dir, func(ctx context.Context, path string) error {
		if _, err := mon.Start(ctx, tasks.Request{Subject: path}); err != nil {
			mu.Lock()
			refused++
			mu.Unlock()
			if !dialog {
				fmt.Fprintf(lines, "%s %s: %v\n", ErrorStyle.Render("✗"), filepath.Base(path), err)
			}
			return err
		}
		return nil
	}, dropdir.Options{
		Accept:   api.IsUploadable,
		Existing: existing,
		Logger:   &logger,
	})
	if err != nil {
		mon.Close()
		return wrap("docs", "watch-dir", err)
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	watchErr := make(chan error, 1)
	go func() { watchErr <- watcher.Run(watchCtx) }()

	var rows []tasks.Task
	if dialog {
		rows, err = taskview.Run(mon, taskview.Options{Title: "Watching " + dir})
	} else {
		fmt.Fprintf(lines, "Watching %s (Ctrl-C to stop)\n", dir)
		rows, err = followPlain(ctx, lines, mon, false)
	}
	cancelWatch()
	if werr := <-watchErr; werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		return wrap("docs", "watch-dir", err)
	}

	data := TasksData{Group: documentsGroup, Tasks: rows}
	refresh.fill(&data)
	mu.Lock()
	defer mu.Unlock()
	return finishTasks(env, "docs watch-dir", data, refused)
}
