// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package taskview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/localagentweaver/weaver/internal/tasks"
	"github.com/localagentweaver/weaver/internal/util"
)

const (
	subjectWidth  = 28
	actionTimeout = 30 * time.Second
)

// Options configures the dialog.
type Options struct {
	// Title shown above the task list (e.g., "Installing models")
	Title string

	// AutoClose quits the dialog once every task has finished
	AutoClose bool

	Keys *KeyMap
}

// =============================================================================
// MESSAGES
// =============================================================================

type eventMsg tasks.Event

type eventsClosedMsg struct{}

type cancelDoneMsg struct {
	id  string
	err error
}

type pollDoneMsg struct{}

func waitForEvent(ch <-chan tasks.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the task dialog.
type Model struct {
	mon       *tasks.Monitor
	events    <-chan tasks.Event
	title     string
	autoClose bool
	keys      KeyMap

	spinner spinner.Model
	bar     progress.Model

	rows     []tasks.Task
	selected int
	width    int
	status   string
	closed   bool
}

// New creates a dialog bound to mon. The dialog owns the monitor from now
// on: closing the dialog closes the monitor.
func New(mon *tasks.Monitor, opts Options) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(brandPrimary)

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 30

	keys := DefaultKeyMap()
	if opts.Keys != nil {
		keys = *opts.Keys
	}
	title := opts.Title
	if title == "" {
		title = "Background tasks"
	}

	m := &Model{
		mon:       mon,
		events:    mon.Subscribe(),
		title:     title,
		autoClose: opts.AutoClose,
		keys:      keys,
		spinner:   s,
		bar:       bar,
	}
	m.refresh()
	return m
}

// Run shows the dialog until the user closes it (or, with AutoClose, until
// every task has finished). It returns the rows as last displayed.
func Run(mon *tasks.Monitor, opts Options) ([]tasks.Task, error) {
	m := New(mon, opts)
	defer m.shutdown()

	_, err := tea.NewProgram(m).Run()
	return m.Tasks(), err
}

// Tasks returns the rows currently displayed.
func (m *Model) Tasks() []tasks.Task {
	return append([]tasks.Task(nil), m.rows...)
}

// Closed reports whether the dialog has been closed.
func (m *Model) Closed() bool {
	return m.closed
}

// Init starts the spinner and the event pump.
func (m *Model) Init() tea.Cmd {
	if m.autoClose && m.allFinished() {
		m.shutdown()
		return tea.Quit
	}
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		barWidth := msg.Width - subjectWidth - 24
		if barWidth < 10 {
			barWidth = 10
		}
		if barWidth > 50 {
			barWidth = 50
		}
		m.bar.Width = barWidth
		return m, nil

	case spinner.TickMsg:
		// Events can be dropped under load; the spinner tick doubles as a
		// resync.
		m.refresh()
		if m.autoClose && m.allFinished() {
			return m.close()
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.refresh()
		if msg.Kind == tasks.EventPollError {
			m.status = fmt.Sprintf("%s: status check failed, retrying", msg.Task.Subject)
		}
		if m.autoClose && m.allFinished() {
			return m.close()
		}
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		return m, nil

	case cancelDoneMsg:
		switch {
		case errors.Is(msg.err, tasks.ErrCancelUnsupported):
			m.status = "this task cannot be cancelled"
		case errors.Is(msg.err, tasks.ErrTaskFinished):
			m.status = "task already finished"
		case msg.err != nil:
			m.status = "cancel failed: " + util.FirstLine(msg.err.Error())
		default:
			m.status = "cancelled"
		}
		m.refresh()
		return m, nil

	case pollDoneMsg:
		m.refresh()
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Close):
		return m.close()

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.rows)-1 {
			m.selected++
		}

	case key.Matches(msg, m.keys.Cancel):
		t, ok := m.current()
		if !ok {
			return m, nil
		}
		if t.Status.IsTerminal() {
			m.status = "task already finished"
			return m, nil
		}
		m.status = "cancelling " + t.Subject + "..."
		return m, m.cancelCmd(t.ID)

	case key.Matches(msg, m.keys.Refresh):
		m.status = ""
		return m, m.pollCmd()

	case key.Matches(msg, m.keys.Dismiss):
		t, ok := m.current()
		if !ok {
			return m, nil
		}
		if err := m.mon.Remove(t.ID); err != nil {
			m.status = "only finished tasks can be dismissed"
			return m, nil
		}
		m.status = ""
		m.refresh()
	}

	return m, nil
}

func (m *Model) cancelCmd(id string) tea.Cmd {
	mon := m.mon
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return cancelDoneMsg{id: id, err: mon.Cancel(ctx, id)}
	}
}

func (m *Model) pollCmd() tea.Cmd {
	mon := m.mon
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		mon.Poll(ctx)
		return pollDoneMsg{}
	}
}

// close prunes finished rows, stops the monitor and quits.
func (m *Model) close() (tea.Model, tea.Cmd) {
	m.shutdown()
	return m, tea.Quit
}

func (m *Model) shutdown() {
	if m.closed {
		return
	}
	m.closed = true
	m.mon.Prune()
	m.mon.Close()
}

func (m *Model) refresh() {
	m.rows = m.mon.List()
	if m.selected >= len(m.rows) {
		m.selected = len(m.rows) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *Model) current() (tasks.Task, bool) {
	if m.selected < 0 || m.selected >= len(m.rows) {
		return tasks.Task{}, false
	}
	return m.rows[m.selected], true
}

func (m *Model) allFinished() bool {
	if len(m.rows) == 0 {
		return false
	}
	for _, t := range m.rows {
		if t.Status.IsActive() {
			return false
		}
	}
	return true
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the dialog.
func (m *Model) View() string {
	var b strings.Builder

	active := 0
	for _, t := range m.rows {
		if t.Status.IsActive() {
			active++
		}
	}
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d active", active)))
	b.WriteString("\n")

	var rows strings.Builder
	if len(m.rows) == 0 {
		rows.WriteString(dimStyle.Render("No tasks"))
	}
	for i, t := range m.rows {
		if i > 0 {
			rows.WriteString("\n")
		}
		rows.WriteString(m.renderRow(t, i == m.selected))
	}
	b.WriteString(boxStyle.Render(rows.String()))
	b.WriteString("\n")

	b.WriteString(dimStyle.Render(m.keys.HelpLine()))
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(warningStyle.Render(m.status))
	}
	b.WriteString("\n")
	return b.String()
}

func (m *Model) renderRow(t tasks.Task, selected bool) string {
	cursor := "  "
	subject := util.PadRight(t.Subject, subjectWidth)
	if selected {
		cursor = "> "
		subject = selectedStyle.Render(subject)
	}

	var icon, detail string
	switch t.Status {
	case tasks.StatusPending:
		icon = m.spinner.View()
		detail = dimStyle.Render("waiting")
	case tasks.StatusRunning:
		icon = m.spinner.View()
		detail = m.bar.ViewAs(t.Progress)
		if t.Message != "" {
			detail += " " + dimStyle.Render(util.TruncateWidth(t.Message, 30))
		}
	case tasks.StatusCompleted:
		icon = successStyle.Render("✓")
		detail = successStyle.Render("done")
		if t.Message != "" {
			detail += " " + dimStyle.Render(t.Message)
		}
	case tasks.StatusFailed:
		icon = errorStyle.Render("✗")
		reason := t.Error
		if reason == "" {
			reason = t.Message
		}
		detail = errorStyle.Render("failed")
		if reason != "" {
			detail += errorStyle.Render(": " + util.TruncateWidth(util.FirstLine(reason), 50))
		}
	case tasks.StatusCancelled:
		icon = warningStyle.Render("⊘")
		detail = warningStyle.Render("cancelled")
	}

	return cursor + icon + " " + subject + " " + detail
}
