// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dropdir

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu    sync.Mutex
	paths []string
}

func (c *collector) handle(_ context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, filepath.Base(path))
	return nil
}

func (c *collector) got() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

func startWatcher(t *testing.T, dir string, c *collector, opts Options) {
	t.Helper()
	opts.Debounce = 50 * time.Millisecond
	w, err := New(dir, c.handle, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	// Give fsnotify a moment to register the directory.
	time.Sleep(50 * time.Millisecond)
}

func TestNewFileIsDelivered(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}
	startWatcher(t, dir, c, Options{})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# notes"), 0o644))

	require.Eventually(t, func() bool {
		return len(c.got()) == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"notes.md"}, c.got())
}

func TestFilteredAndHiddenFilesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}
	startWatcher(t, dir, c, Options{Accept: func(p string) bool { return strings.HasSuffix(p, ".pdf") }})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.exe"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.pdf"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "paper.pdf.part"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "paper.pdf"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		return len(c.got()) >= 1
	}, 2*time.Second, 20*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []string{"paper.pdf"}, c.got())
}

func TestExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.txt"), []byte("x"), 0o644))

	c := &collector{}
	startWatcher(t, dir, c, Options{Existing: true})

	require.Eventually(t, func() bool {
		return len(c.got()) == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"old.txt"}, c.got())
}

func TestNewRejectsMissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent"), (&collector{}).handle, Options{})
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = New(file, (&collector{}).handle, Options{})
	assert.Error(t, err)

	_, err = New(t.TempDir(), nil, Options{})
	assert.Error(t, err)
}

func TestIgnored(t *testing.T) {
	assert.True(t, ignored("/x/.DS_Store"))
	assert.True(t, ignored("/x/~lock.docx"))
	assert.True(t, ignored("/x/a.crdownload"))
	assert.False(t, ignored("/x/report.docx"))
}
