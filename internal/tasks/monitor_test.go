// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// FAKE SOURCE
// =============================================================================

type fakeSource struct {
	mu        sync.Mutex
	nextID    int
	createErr error
	cancelErr error
	snaps     map[string][]Snapshot
	fetchErr  map[string]error
	fetches   map[string]int
	cancels   []string
	onCancel  func(id string)
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		snaps:    make(map[string][]Snapshot),
		fetchErr: make(map[string]error),
		fetches:  make(map[string]int),
	}
}

func (f *fakeSource) Create(_ context.Context, req Request) (Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return Ticket{}, f.createErr
	}
	f.nextID++
	return Ticket{ID: fmt.Sprintf("task-%d", f.nextID), Subject: req.Subject}, nil
}

// Fetch pops the next queued snapshot; the last one repeats.
func (f *fakeSource) Fetch(_ context.Context, id string) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[id]++
	if err := f.fetchErr[id]; err != nil {
		return Snapshot{}, err
	}
	queue := f.snaps[id]
	if len(queue) == 0 {
		return Snapshot{Status: StatusPending}, nil
	}
	next := queue[0]
	if len(queue) > 1 {
		f.snaps[id] = queue[1:]
	}
	return next, nil
}

func (f *fakeSource) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	if f.cancelErr != nil {
		f.mu.Unlock()
		return f.cancelErr
	}
	f.cancels = append(f.cancels, id)
	hook := f.onCancel
	f.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	return nil
}

func (f *fakeSource) queue(id string, snaps ...Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[id] = append(f.snaps[id], snaps...)
}

func (f *fakeSource) failFetch(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr[id] = err
}

func (f *fakeSource) fetchCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[id]
}

type memRecorder struct {
	mu    sync.Mutex
	tasks []Task
}

func (r *memRecorder) Record(t Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, t)
	return nil
}

// newManualMonitor returns a monitor whose timer never fires during a test,
// so ticks are driven explicitly through Poll.
func newManualMonitor(t *testing.T, src Source, opts Options) *Monitor {
	t.Helper()
	if opts.Interval == 0 {
		opts.Interval = time.Hour
	}
	m := NewMonitor(src, opts)
	t.Cleanup(m.Close)
	return m
}

// =============================================================================
// START / LIST
// =============================================================================

func TestMonitor_StartInsertsPendingTask(t *testing.T) {
	src := newFakeSource()
	m := newManualMonitor(t, src, Options{Group: "install"})

	task, err := m.Start(context.Background(), Request{Subject: "llama3"})
	require.NoError(t, err)

	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, "llama3", task.Subject)
	assert.Equal(t, "install", task.Group)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, 0.0, task.Progress)

	list := m.List()
	require.Len(t, list, 1)
	assert.Equal(t, task.ID, list[0].ID)
	assert.True(t, m.Polling())
}

func TestMonitor_StartFailureInsertsNothing(t *testing.T) {
	src := newFakeSource()
	src.createErr = errors.New("backend unavailable")
	m := newManualMonitor(t, src, Options{})

	_, err := m.Start(context.Background(), Request{Subject: "llama3"})
	require.Error(t, err)
	assert.ErrorIs(t, err, src.createErr)
	assert.Empty(t, m.List())
	assert.False(t, m.Polling())
}

func TestMonitor_ListKeepsInsertionOrder(t *testing.T) {
	src := newFakeSource()
	m := newManualMonitor(t, src, Options{})

	for _, name := range []string{"a", "b", "c"} {
		_, err := m.Start(context.Background(), Request{Subject: name})
		require.NoError(t, err)
	}

	list := m.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{list[0].Subject, list[1].Subject, list[2].Subject})
}

func TestMonitor_TrackIsIdempotent(t *testing.T) {
	m := newManualMonitor(t, newFakeSource(), Options{})

	first, err := m.Track(Ticket{ID: "doc-7", Subject: "report.pdf"})
	require.NoError(t, err)
	second, err := m.Track(Ticket{ID: "doc-7", Subject: "other.pdf"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, m.List(), 1)
}

// =============================================================================
// POLLING
// =============================================================================

func TestMonitor_InstallScenario(t *testing.T) {
	src := newFakeSource()
	var refreshes int
	m := newManualMonitor(t, src, Options{
		Group:       "install",
		OnCompleted: func(Task) { refreshes++ },
	})

	task, err := m.Start(context.Background(), Request{Subject: "llama3"})
	require.NoError(t, err)
	src.queue(task.ID,
		Snapshot{Status: StatusRunning, Progress: 0.4, Message: "pulling layers"},
		Snapshot{Status: StatusCompleted, Progress: 1},
	)

	m.Poll(context.Background())
	got, ok := m.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, 40, got.Percent())
	assert.Equal(t, "pulling layers", got.Message)
	assert.Equal(t, 0, refreshes)

	m.Poll(context.Background())
	got, _ = m.Get(task.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 1, refreshes)

	// Terminal: no further status requests, no further refreshes.
	fetches := src.fetchCount(task.ID)
	m.Poll(context.Background())
	m.Poll(context.Background())
	assert.Equal(t, fetches, src.fetchCount(task.ID))
	assert.Equal(t, 1, refreshes)

	assert.Equal(t, 1, m.Prune())
	assert.Empty(t, m.List())
}

func TestMonitor_PercentageProgressIsNormalized(t *testing.T) {
	src := newFakeSource()
	m := newManualMonitor(t, src, Options{})

	task, err := m.Start(context.Background(), Request{Subject: "report.pdf"})
	require.NoError(t, err)
	src.queue(task.ID, Snapshot{Status: StatusRunning, Progress: 65})

	m.Poll(context.Background())
	got, _ := m.Get(task.ID)
	assert.InDelta(t, 0.65, got.Progress, 1e-9)
}

func TestMonitor_PartialFailureIsolation(t *testing.T) {
	src := newFakeSource()
	m := newManualMonitor(t, src, Options{})

	broken, err := m.Start(context.Background(), Request{Subject: "broken"})
	require.NoError(t, err)
	healthy, err := m.Start(context.Background(), Request{Subject: "healthy"})
	require.NoError(t, err)

	src.failFetch(broken.ID, errors.New("connection reset"))
	src.queue(healthy.ID, Snapshot{Status: StatusRunning, Progress: 0.5})

	m.Poll(context.Background())

	b, _ := m.Get(broken.ID)
	h, _ := m.Get(healthy.ID)
	assert.Equal(t, StatusPending, b.Status, "failed fetch keeps last known state")
	assert.Equal(t, StatusRunning, h.Status)
	assert.Equal(t, 50, h.Percent())

	// The broken task is retried on the next tick.
	m.Poll(context.Background())
	assert.Equal(t, 2, src.fetchCount(broken.ID))
}

func TestMonitor_OnCompletedOncePerTask(t *testing.T) {
	src := newFakeSource()
	var mu sync.Mutex
	refreshed := map[string]int{}
	m := newManualMonitor(t, src, Options{OnCompleted: func(task Task) {
		mu.Lock()
		refreshed[task.ID]++
		mu.Unlock()
	}})

	a, _ := m.Start(context.Background(), Request{Subject: "a"})
	b, _ := m.Start(context.Background(), Request{Subject: "b"})
	src.queue(a.ID, Snapshot{Status: StatusCompleted})
	src.queue(b.ID, Snapshot{Status: StatusRunning}, Snapshot{Status: StatusCompleted})

	for i := 0; i < 4; i++ {
		m.Poll(context.Background())
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{a.ID: 1, b.ID: 1}, refreshed)
}

func TestMonitor_FailedTaskKeepsMessage(t *testing.T) {
	src := newFakeSource()
	m := newManualMonitor(t, src, Options{})

	task, _ := m.Start(context.Background(), Request{Subject: "nope"})
	src.queue(task.ID, Snapshot{Status: StatusFailed, Error: "model not found"})
	m.Poll(context.Background())

	got, _ := m.Get(task.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "model not found", got.Error)

	require.NoError(t, m.Remove(task.ID))
	assert.Empty(t, m.List())
}

// =============================================================================
// CANCEL
// =============================================================================

func TestMonitor_CancelWhileRunning(t *testing.T) {
	src := newFakeSource()
	m := newManualMonitor(t, src, Options{})

	task, _ := m.Start(context.Background(), Request{Subject: "llama3"})
	src.queue(task.ID, Snapshot{Status: StatusRunning, Progress: 0.2})
	m.Poll(context.Background())

	require.NoError(t, m.Cancel(context.Background(), task.ID))
	got, _ := m.Get(task.ID)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, []string{task.ID}, src.cancels)

	fetches := src.fetchCount(task.ID)
	m.Poll(context.Background())
	assert.Equal(t, fetches, src.fetchCount(task.ID), "cancelled task must not be polled")

	assert.ErrorIs(t, m.Cancel(context.Background(), task.ID), ErrTaskFinished)
}

func TestMonitor_CancelRacingCompletion(t *testing.T) {
	src := newFakeSource()
	m := newManualMonitor(t, src, Options{})

	task, _ := m.Start(context.Background(), Request{Subject: "llama3"})
	src.queue(task.ID, Snapshot{Status: StatusRunning, Progress: 0.9})
	m.Poll(context.Background())

	// The install finishes on the backend before the cancel reply arrives.
	src.onCancel = func(id string) {
		src.mu.Lock()
		src.snaps[id] = []Snapshot{{Status: StatusCompleted, Progress: 1}}
		src.mu.Unlock()
		m.Poll(context.Background())
	}

	err := m.Cancel(context.Background(), task.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskFinished)
	assert.Contains(t, err.Error(), "completed")

	got, _ := m.Get(task.ID)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestMonitor_CancelFailureLeavesState(t *testing.T) {
	src := newFakeSource()
	m := newManualMonitor(t, src, Options{})

	task, _ := m.Start(context.Background(), Request{Subject: "llama3"})
	src.cancelErr = errors.New("502 bad gateway")

	err := m.Cancel(context.Background(), task.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, src.cancelErr)

	got, _ := m.Get(task.ID)
	assert.Equal(t, StatusPending, got.Status)
}

func TestMonitor_CancelUnknownTask(t *testing.T) {
	m := newManualMonitor(t, newFakeSource(), Options{})
	assert.ErrorIs(t, m.Cancel(context.Background(), "missing"), ErrTaskNotFound)
}

// =============================================================================
// PRUNE / CLOSE
// =============================================================================

func TestMonitor_PruneKeepsActiveTasks(t *testing.T) {
	src := newFakeSource()
	m := newManualMonitor(t, src, Options{})

	running, _ := m.Start(context.Background(), Request{Subject: "running"})
	done, _ := m.Start(context.Background(), Request{Subject: "done"})
	src.queue(running.ID, Snapshot{Status: StatusRunning, Progress: 0.1})
	src.queue(done.ID, Snapshot{Status: StatusCompleted})
	m.Poll(context.Background())

	assert.Equal(t, 1, m.Prune())

	list := m.List()
	require.Len(t, list, 1)
	assert.Equal(t, running.ID, list[0].ID)
	assert.Equal(t, StatusRunning, list[0].Status)

	before := src.fetchCount(running.ID)
	m.Poll(context.Background())
	assert.Equal(t, before+1, src.fetchCount(running.ID))
}

func TestMonitor_TimerStartsAndStops(t *testing.T) {
	src := newFakeSource()
	m := NewMonitor(src, Options{Interval: 10 * time.Millisecond})
	defer m.Close()

	assert.False(t, m.Polling())

	task, err := m.Start(context.Background(), Request{Subject: "llama3"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return src.fetchCount(task.ID) > 0 }, time.Second, 5*time.Millisecond)

	src.queue(task.ID, Snapshot{Status: StatusCompleted})
	require.Eventually(t, func() bool { return !m.Polling() }, time.Second, 5*time.Millisecond)

	stopped := src.fetchCount(task.ID)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, src.fetchCount(task.ID), "no requests after the loop stopped")

	// A new task restarts the loop.
	next, err := m.Start(context.Background(), Request{Subject: "mistral"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return src.fetchCount(next.ID) > 0 }, time.Second, 5*time.Millisecond)
}

func TestMonitor_CloseStopsTimer(t *testing.T) {
	src := newFakeSource()
	m := NewMonitor(src, Options{Interval: 10 * time.Millisecond})

	task, err := m.Start(context.Background(), Request{Subject: "forever"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return src.fetchCount(task.ID) > 0 }, time.Second, 5*time.Millisecond)

	m.Close()
	assert.False(t, m.Polling())

	after := src.fetchCount(task.ID)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, src.fetchCount(task.ID))

	_, err = m.Start(context.Background(), Request{Subject: "late"})
	assert.ErrorIs(t, err, ErrMonitorClosed)

	m.Close() // idempotent
}

// =============================================================================
// EVENTS / HISTORY
// =============================================================================

func TestMonitor_SubscribeAndRecord(t *testing.T) {
	src := newFakeSource()
	rec := &memRecorder{}
	m := newManualMonitor(t, src, Options{Recorder: rec})

	events := m.Subscribe()
	task, _ := m.Start(context.Background(), Request{Subject: "llama3"})

	ev := <-events
	assert.Equal(t, EventAdded, ev.Kind)
	assert.Equal(t, task.ID, ev.Task.ID)

	src.queue(task.ID, Snapshot{Status: StatusCompleted})
	m.Poll(context.Background())

	ev = <-events
	assert.Equal(t, EventUpdated, ev.Kind)
	assert.Equal(t, StatusCompleted, ev.Task.Status)

	rec.mu.Lock()
	require.Len(t, rec.tasks, 1)
	assert.Equal(t, StatusCompleted, rec.tasks[0].Status)
	rec.mu.Unlock()
}
