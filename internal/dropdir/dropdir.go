// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dropdir watches a directory and hands every new file to a callback
// once it has stopped changing.
package dropdir

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Handler receives a settled file. Returning an error logs it; the file is
// offered again only if it changes.
type Handler func(ctx context.Context, path string) error

// Options configures a Watcher.
type Options struct {
	// Debounce is how long a file must be quiet before it is handed over
	// (default: 500ms)
	Debounce time.Duration

	// Accept filters files by path (default: accept all)
	Accept func(path string) bool

	// Existing also hands over files already present when Run starts
	Existing bool

	Logger *zerolog.Logger
}

// Watcher is a debounced drop folder.
type Watcher struct {
	dir      string
	handler  Handler
	debounce time.Duration
	accept   func(string) bool
	existing bool
	log      zerolog.Logger

	mu      sync.Mutex
	pending map[string]time.Time
	seen    map[string]fileStamp
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

// New creates a watcher for dir.
func New(dir string, handler Handler, opts Options) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("drop folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("drop folder: %s is not a directory", dir)
	}
	if handler == nil {
		return nil, errors.New("drop folder: nil handler")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "DropDir").Str("dir", dir).Logger()
	}
	return &Watcher{
		dir:      dir,
		handler:  handler,
		debounce: opts.Debounce,
		accept:   opts.Accept,
		existing: opts.Existing,
		log:      logger,
		pending:  make(map[string]time.Time),
		seen:     make(map[string]fileStamp),
	}, nil
}

// Run watches until ctx is cancelled. Subdirectories are not watched.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("drop folder: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("drop folder: watch %s: %w", w.dir, err)
	}

	if w.existing {
		entries, err := os.ReadDir(w.dir)
		if err != nil {
			return fmt.Errorf("drop folder: %w", err)
		}
		now := time.Now()
		for _, e := range entries {
			if !e.IsDir() {
				w.touch(filepath.Join(w.dir, e.Name()), now.Add(-w.debounce))
			}
		}
	}

	w.log.Info().Msg("watching drop folder")

	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.touch(event.Name, time.Now())
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.forget(event.Name)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")

		case now := <-ticker.C:
			for _, path := range w.settled(now) {
				w.deliver(ctx, path)
			}
		}
	}
}

func (w *Watcher) tick() time.Duration {
	t := w.debounce / 5
	if t < 10*time.Millisecond {
		t = 10 * time.Millisecond
	}
	return t
}

// touch records activity on a path.
func (w *Watcher) touch(path string, at time.Time) {
	if ignored(path) || (w.accept != nil && !w.accept(path)) {
		return
	}
	w.mu.Lock()
	w.pending[path] = at
	w.mu.Unlock()
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	delete(w.seen, path)
	w.mu.Unlock()
}

// settled returns pending paths that have been quiet for the debounce period.
func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			out = append(out, path)
			delete(w.pending, path)
		}
	}
	return out
}

func (w *Watcher) deliver(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	stamp := fileStamp{size: info.Size(), modTime: info.ModTime()}

	w.mu.Lock()
	if prev, ok := w.seen[path]; ok && prev == stamp {
		w.mu.Unlock()
		return
	}
	w.seen[path] = stamp
	w.mu.Unlock()

	w.log.Debug().Str("file", filepath.Base(path)).Msg("file settled")
	if err := w.handler(ctx, path); err != nil {
		w.log.Error().Err(err).Str("file", filepath.Base(path)).Msg("drop folder handler failed")
	}
}

// ignored skips hidden files and partial downloads.
func ignored(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return true
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".tmp", ".part", ".crdownload", ".swp":
		return true
	}
	return false
}
