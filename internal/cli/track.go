// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/localagentweaver/weaver/internal/storage"
	"github.com/localagentweaver/weaver/internal/tasks"
	"github.com/localagentweaver/weaver/internal/ui/taskview"
	"github.com/localagentweaver/weaver/internal/util"
)

// =============================================================================
// MONITOR CONSTRUCTION
// =============================================================================

// completedFunc reloads whatever list a completed task belongs to.
type completedFunc func(ctx context.Context, t tasks.Task)

// newMonitor builds a task monitor for one group. hist and onCompleted may
// be nil. onCompleted runs once per completed task on the poll goroutine.
func (e *Env) newMonitor(ctx context.Context, group string, src tasks.Source, interval time.Duration,
	hist *storage.History, onCompleted completedFunc) *tasks.Monitor {
	logger := e.monitorLogger()
	opts := tasks.Options{
		Group:    group,
		Interval: interval,
		Logger:   &logger,
		OnCompleted: func(t tasks.Task) {
			logger.Debug().Str("task_id", t.ID).Str("subject", t.Subject).
				Dur("took", t.Duration()).Msg("task completed")
			if onCompleted != nil {
				onCompleted(ctx, t)
			}
		},
	}
	if hist != nil {
		opts.Recorder = hist
	}
	return tasks.NewMonitor(src, opts)
}

// monitorLogger silences console logging while the dialog owns the
// terminal. A log file keeps receiving everything.
func (e *Env) monitorLogger() zerolog.Logger {
	if UseDialog(e.Args) && e.Config.Log.File == "" {
		return e.Log.Level(zerolog.Disabled)
	}
	return e.Log
}

// =============================================================================
// FOLLOWING TASKS
// =============================================================================

// followTasks blocks until every task in mon has finished and returns the
// final rows. The dialog is used on a terminal, plain lines otherwise.
// mon is closed on return.
func followTasks(ctx context.Context, env *Env, mon *tasks.Monitor, title string) ([]tasks.Task, error) {
	if UseDialog(env.Args) {
		rows, err := taskview.Run(mon, taskview.Options{Title: title, AutoClose: true})
		if err != nil {
			return rows, fmt.Errorf("task dialog: %w", err)
		}
		return rows, nil
	}

	return followPlain(ctx, env.lineWriter(), mon, true)
}

// lineWriter is where plain progress lines go.
func (e *Env) lineWriter() io.Writer {
	if e.Args.JSON {
		return e.Err
	}
	return e.Out
}

// followPlain prints one line per state change. Progress lines are
// throttled to 10% steps. With untilIdle it returns once no task is
// active; otherwise it runs until ctx is done.
func followPlain(ctx context.Context, w io.Writer, mon *tasks.Monitor, untilIdle bool) ([]tasks.Task, error) {
	events := mon.Subscribe()
	defer mon.Close()

	printed := make(map[string]lineState)
	show := func(t tasks.Task) {
		next := lineState{status: t.Status, bucket: t.Percent() / 10}
		if prev, ok := printed[t.ID]; ok && prev == next {
			return
		}
		printed[t.ID] = next
		fmt.Fprintln(w, formatTaskLine(t))
	}

	for _, t := range mon.List() {
		show(t)
	}

	// Events are dropped for slow readers, so the list is re-read on a
	// timer as well.
	check := time.NewTicker(mon.Interval())
	defer check.Stop()

	for !untilIdle || mon.Active() > 0 {
		select {
		case <-ctx.Done():
			if !untilIdle {
				return mon.List(), nil
			}
			return mon.List(), ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return mon.List(), nil
			}
			switch ev.Kind {
			case tasks.EventAdded, tasks.EventUpdated:
				show(ev.Task)
			case tasks.EventPollError:
				fmt.Fprintf(w, "%s %s: %v\n", WarningStyle.Render("!"), ev.Task.Subject, ev.Err)
			}
		case <-check.C:
			for _, t := range mon.List() {
				show(t)
			}
		}
	}

	rows := mon.List()
	for _, t := range rows {
		show(t)
	}
	return rows, nil
}

type lineState struct {
	status tasks.Status
	bucket int
}

// formatTaskLine renders one task as a single plain line.
func formatTaskLine(t tasks.Task) string {
	line := fmt.Sprintf("[%s] %s %s", t.Group, util.PadRight(t.Subject, 28), util.PadRight(t.Status.String(), 9))
	switch {
	case t.Status == tasks.StatusFailed && t.Error != "":
		line += " " + t.Error
	case t.Status.IsActive():
		line += fmt.Sprintf(" %3d%%", t.Percent())
		if t.Message != "" {
			line += " " + t.Message
		}
	case t.Message != "":
		line += " " + t.Message
	}
	return line
}

// =============================================================================
// SUMMARY
// =============================================================================

// finishTasks reports the outcome of followed tasks and turns failures into
// a TasksFailedError. notStarted counts requests the backend refused.
func finishTasks(env *Env, command string, data TasksData, notStarted int) error {
	if data.Tasks == nil {
		data.Tasks = []tasks.Task{}
	}
	rows := data.Tasks
	failed := notStarted
	var cancelled, completed int
	for _, t := range rows {
		switch t.Status {
		case tasks.StatusFailed:
			failed++
		case tasks.StatusCancelled:
			cancelled++
		case tasks.StatusCompleted:
			completed++
		}
	}

	if err := env.emit(command, data, func(w io.Writer) {
		if UseDialog(env.Args) {
			for _, t := range rows {
				fmt.Fprintf(w, "%s %s\n", RenderTaskStatus(t.Status), t.Summary())
			}
		}
		printRefreshed(w, data)
	}); err != nil {
		return err
	}

	if !env.Args.JSON {
		fmt.Fprintln(env.Out, DimStyle.Render(fmt.Sprintf("%d completed, %d failed, %d cancelled", completed, failed, cancelled)))
	}
	if failed > 0 || cancelled > 0 {
		return &TasksFailedError{Failed: failed, Cancelled: cancelled}
	}
	return nil
}
