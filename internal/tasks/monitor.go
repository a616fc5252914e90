// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/localagentweaver/weaver/internal/metrics"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrTaskNotFound is returned for ids the monitor does not track
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskFinished is returned when acting on a task in a terminal state
	ErrTaskFinished = errors.New("task already finished")

	// ErrMonitorClosed is returned by Start after Close
	ErrMonitorClosed = errors.New("task monitor closed")
)

// =============================================================================
// SOURCE
// =============================================================================

// Request describes a task to create on the backend.
type Request struct {
	// Subject is the model name or file path the task operates on
	Subject string

	// Params carries source-specific options (e.g., "provider")
	Params map[string]string
}

// Ticket is what the backend returns when a task is created.
type Ticket struct {
	ID      string
	Subject string
}

// Source is the backend side of one task group.
type Source interface {
	// Create starts a task on the backend.
	Create(ctx context.Context, req Request) (Ticket, error)

	// Fetch returns the current server-side state of a task.
	Fetch(ctx context.Context, id string) (Snapshot, error)

	// Cancel asks the backend to stop a task. Cancellation is advisory.
	Cancel(ctx context.Context, id string) error
}

// Recorder persists tasks that reached a terminal state.
type Recorder interface {
	Record(t Task) error
}

// =============================================================================
// EVENTS
// =============================================================================

// EventKind classifies a monitor event.
type EventKind int

const (
	EventAdded EventKind = iota
	EventUpdated
	EventRemoved
	EventPollError
)

// Event notifies subscribers about a change to one task.
type Event struct {
	Kind EventKind
	Task Task
	Err  error
}

// =============================================================================
// MONITOR
// =============================================================================

// Options configures a Monitor.
type Options struct {
	// Group labels the tasks and metrics of this monitor (e.g., "install")
	Group string

	// Interval between poll ticks (default: 2s)
	Interval time.Duration

	// OnCompleted is called once for every task that transitions into
	// StatusCompleted. It runs on the poll goroutine, outside the lock.
	OnCompleted func(Task)

	// Recorder receives tasks once they become terminal (optional)
	Recorder Recorder

	// Logger for poll failures and transitions (default: no-op)
	Logger *zerolog.Logger
}

// Monitor tracks outstanding backend tasks of one group and keeps their
// local state in sync by polling. The poll loop is started lazily when a
// task is added and exits on its own once no task is active.
//
// The Monitor is safe for concurrent use.
type Monitor struct {
	source      Source
	group       string
	interval    time.Duration
	onCompleted func(Task)
	recorder    Recorder
	log         zerolog.Logger
	now         func() time.Time

	mu      sync.Mutex
	tasks   []*Task
	index   map[string]*Task
	polling bool
	closed  bool
	stop    chan struct{}
	wg      sync.WaitGroup

	subMu sync.Mutex
	subs  []chan Event
}

// NewMonitor creates a monitor for the given source.
func NewMonitor(source Source, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Group == "" {
		opts.Group = "tasks"
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "TaskMonitor").Str("group", opts.Group).Logger()
	}
	return &Monitor{
		source:      source,
		group:       opts.Group,
		interval:    opts.Interval,
		onCompleted: opts.OnCompleted,
		recorder:    opts.Recorder,
		log:         logger,
		now:         time.Now,
		index:       make(map[string]*Task),
		stop:        make(chan struct{}),
	}
}

// Group returns the monitor's group label.
func (m *Monitor) Group() string {
	return m.group
}

// Interval returns the poll interval.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// =============================================================================
// PUBLIC OPERATIONS
// =============================================================================

// Start creates a task on the backend and begins tracking it as pending.
// Nothing is inserted when creation fails.
func (m *Monitor) Start(ctx context.Context, req Request) (Task, error) {
	if m.isClosed() {
		return Task{}, ErrMonitorClosed
	}

	ticket, err := m.source.Create(ctx, req)
	if err != nil {
		return Task{}, fmt.Errorf("start %s: %w", req.Subject, err)
	}
	if ticket.Subject == "" {
		ticket.Subject = req.Subject
	}
	return m.Track(ticket)
}

// Track begins tracking a task that was created elsewhere.
// Tracking an id that is already known returns the existing task.
func (m *Monitor) Track(ticket Ticket) (Task, error) {
	if ticket.ID == "" {
		return Task{}, errors.New("track: empty task id")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Task{}, ErrMonitorClosed
	}
	if existing, ok := m.index[ticket.ID]; ok {
		t := *existing
		m.mu.Unlock()
		return t, nil
	}

	now := m.now()
	task := &Task{
		ID:        ticket.ID,
		Group:     m.group,
		Subject:   ticket.Subject,
		Status:    StatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.tasks = append(m.tasks, task)
	m.index[task.ID] = task
	snapshot := *task
	m.ensurePollingLocked()
	active := m.activeCountLocked()
	m.mu.Unlock()

	metrics.SetActiveTasks(m.group, active)
	m.log.Debug().Str("task_id", snapshot.ID).Str("subject", snapshot.Subject).Msg("tracking task")
	m.publish(Event{Kind: EventAdded, Task: snapshot})
	return snapshot, nil
}

// List returns copies of all tracked tasks in insertion order.
func (m *Monitor) List() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, *t)
	}
	return out
}

// Get returns a copy of the task with the given id.
func (m *Monitor) Get(id string) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.index[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Active returns the number of tasks still being polled.
func (m *Monitor) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeCountLocked()
}

// Polling reports whether the poll loop is currently running.
func (m *Monitor) Polling() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polling
}

// Cancel asks the backend to cancel a task and marks it cancelled locally
// as soon as the request succeeds. On failure local state is unchanged.
// ErrTaskFinished is returned when the task reached a terminal state first,
// including while the cancel request was in flight.
func (m *Monitor) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	t, ok := m.index[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	if t.Status.IsTerminal() {
		m.mu.Unlock()
		return ErrTaskFinished
	}
	m.mu.Unlock()

	if err := m.source.Cancel(ctx, id); err != nil {
		return fmt.Errorf("cancel %s: %w", id, err)
	}

	m.mu.Lock()
	// The task may have finished while the cancel request was in flight;
	// its final status stands.
	if t.Status.IsTerminal() {
		final := t.Status
		m.mu.Unlock()
		return fmt.Errorf("cancel %s: %w (%s)", id, ErrTaskFinished, final)
	}
	t.Status = StatusCancelled
	t.Message = "cancelled"
	t.UpdatedAt = m.now()
	snapshot := *t
	active := m.activeCountLocked()
	m.mu.Unlock()

	metrics.IncTransition(m.group, string(StatusCancelled))
	metrics.SetActiveTasks(m.group, active)
	m.record(snapshot)
	m.log.Info().Str("task_id", id).Msg("task cancelled")
	m.publish(Event{Kind: EventUpdated, Task: snapshot})
	return nil
}

// Remove drops a terminal task from the list (dismissing its row).
func (m *Monitor) Remove(id string) error {
	m.mu.Lock()
	t, ok := m.index[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	if !t.Status.IsTerminal() {
		m.mu.Unlock()
		return fmt.Errorf("remove %s: task is still %s", id, t.Status)
	}
	snapshot := *t
	m.removeLocked(id)
	m.mu.Unlock()

	m.publish(Event{Kind: EventRemoved, Task: snapshot})
	return nil
}

// Prune removes every terminal task and returns how many were removed.
// Active tasks stay tracked and keep polling.
func (m *Monitor) Prune() int {
	m.mu.Lock()
	var removed []Task
	kept := m.tasks[:0]
	for _, t := range m.tasks {
		if t.Status.IsTerminal() {
			removed = append(removed, *t)
			delete(m.index, t.ID)
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(m.tasks); i++ {
		m.tasks[i] = nil
	}
	m.tasks = kept
	m.mu.Unlock()

	for _, t := range removed {
		m.publish(Event{Kind: EventRemoved, Task: t})
	}
	return len(removed)
}

// Close stops the poll loop and waits for an in-flight tick to finish.
// Subscriber channels are closed. Close is idempotent.
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.stop)
	m.mu.Unlock()

	m.wg.Wait()

	m.subMu.Lock()
	for _, ch := range m.subs {
		close(ch)
	}
	m.subs = nil
	m.subMu.Unlock()
}

// Subscribe returns a channel receiving task events. Events are dropped
// for subscribers that fall behind. The channel is closed by Close.
func (m *Monitor) Subscribe() <-chan Event {
	ch := make(chan Event, 64)
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if m.isClosed() {
		close(ch)
		return ch
	}
	m.subs = append(m.subs, ch)
	return ch
}

// =============================================================================
// POLL LOOP
// =============================================================================

// ensurePollingLocked starts the poll loop if it is not running.
// Must be called with m.mu held.
func (m *Monitor) ensurePollingLocked() {
	if m.polling || m.closed {
		return
	}
	m.polling = true
	m.wg.Add(1)
	go m.loop()
	m.log.Debug().Dur("interval", m.interval).Msg("poll loop started")
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-m.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-m.stop:
			m.mu.Lock()
			m.polling = false
			m.mu.Unlock()
			return
		case <-ticker.C:
			m.Poll(ctx)

			m.mu.Lock()
			if m.closed || m.activeCountLocked() == 0 {
				m.polling = false
				m.mu.Unlock()
				m.log.Debug().Msg("poll loop stopped")
				return
			}
			m.mu.Unlock()
		}
	}
}

type pollResult struct {
	id   string
	snap Snapshot
	err  error
}

// Poll runs one tick: a concurrent status fetch for every active task,
// then a merge of all results. A failed fetch leaves its task unchanged
// and does not affect the others.
func (m *Monitor) Poll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.tasks))
	for _, t := range m.tasks {
		if t.Status.IsActive() {
			ids = append(ids, t.ID)
		}
	}
	m.mu.Unlock()

	if len(ids) == 0 {
		return
	}

	results := make([]pollResult, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			snap, err := m.source.Fetch(ctx, id)
			results[i] = pollResult{id: id, snap: snap, err: err}
		}(i, id)
	}
	wg.Wait()

	var (
		events    []Event
		completed []Task
		finished  []Task
	)

	m.mu.Lock()
	now := m.now()
	for _, r := range results {
		t, ok := m.index[r.id]
		if !ok {
			continue
		}
		if r.err != nil {
			metrics.IncPoll(m.group, "error")
			events = append(events, Event{Kind: EventPollError, Task: *t, Err: r.err})
			continue
		}
		metrics.IncPoll(m.group, "ok")

		prev, changed := t.apply(r.snap, now)
		if !changed {
			continue
		}
		snapshot := *t
		events = append(events, Event{Kind: EventUpdated, Task: snapshot})
		if prev != t.Status {
			metrics.IncTransition(m.group, string(t.Status))
		}
		if t.Status.IsTerminal() {
			finished = append(finished, snapshot)
		}
		if t.Status == StatusCompleted && prev != StatusCompleted {
			completed = append(completed, snapshot)
		}
	}
	active := m.activeCountLocked()
	m.mu.Unlock()

	metrics.SetActiveTasks(m.group, active)

	for _, ev := range events {
		if ev.Kind == EventPollError {
			m.log.Warn().Err(ev.Err).Str("task_id", ev.Task.ID).Msg("status fetch failed; keeping last known state")
		} else if ev.Task.Status.IsTerminal() {
			m.log.Info().Str("task_id", ev.Task.ID).Str("status", ev.Task.Status.String()).Msg("task finished")
		}
		m.publish(ev)
	}
	for _, t := range finished {
		m.record(t)
	}
	if m.onCompleted != nil {
		for _, t := range completed {
			m.onCompleted(t)
		}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Monitor) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Monitor) activeCountLocked() int {
	n := 0
	for _, t := range m.tasks {
		if t.Status.IsActive() {
			n++
		}
	}
	return n
}

func (m *Monitor) removeLocked(id string) {
	delete(m.index, id)
	for i, t := range m.tasks {
		if t.ID == id {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return
		}
	}
}

func (m *Monitor) record(t Task) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Record(t); err != nil {
		m.log.Warn().Err(err).Str("task_id", t.ID).Msg("failed to record task history")
	}
}

// publish delivers an event to every subscriber without blocking.
func (m *Monitor) publish(ev Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
