// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package archive

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SpoolWatcher watches a spool directory and imports epoch files dropped
// into it.
//
// # Description
//
// Watches one flat directory. File events are debounced so a burst of
// drops (an rsync of a whole archive, say) triggers one import sweep, not
// one per file. Files are imported in name order, which matches epoch
// order for Exporter-written files; duplicates are tolerated so replaying
// the same spool is harmless.
//
// # Debouncing
//
// Events are collected into a buffer. When the debounce window expires
// without new events, the batch is deduplicated and imported.
//
// # Thread Safety
//
// Safe for concurrent use. Imports run on a single goroutine.
type SpoolWatcher struct {
	dir      string
	importer *Importer
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	paths    chan string
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// SpoolWatcherOptions configures the SpoolWatcher.
type SpoolWatcherOptions struct {
	// DebounceWindow is how long to wait for more events before importing.
	// Default: 250ms
	DebounceWindow time.Duration

	// BufferSize is the size of the event buffer channel.
	// Default: 256
	BufferSize int

	// Logger for import activity. nil disables logging.
	Logger *slog.Logger
}

// DefaultSpoolWatcherOptions returns sensible defaults.
func DefaultSpoolWatcherOptions() SpoolWatcherOptions {
	return SpoolWatcherOptions{
		DebounceWindow: 250 * time.Millisecond,
		BufferSize:     256,
	}
}

// NewSpoolWatcher creates a watcher over dir feeding the importer.
//
// # Inputs
//
//   - dir: Spool directory. Must exist.
//   - importer: Receives each dropped file.
//   - opts: Optional configuration (nil uses defaults).
//
// # Outputs
//
//   - *SpoolWatcher: Ready-to-use watcher (call Start to begin).
//   - error: Non-nil if inputs are invalid or the watcher could not be
//     created.
func NewSpoolWatcher(dir string, importer *Importer, opts *SpoolWatcherOptions) (*SpoolWatcher, error) {
	if dir == "" {
		return nil, errors.New("spool directory must not be empty")
	}
	if importer == nil {
		return nil, errors.New("importer must not be nil")
	}
	if opts == nil {
		defaults := DefaultSpoolWatcherOptions()
		opts = &defaults
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &SpoolWatcher{
		dir:      dir,
		importer: importer,
		watcher:  watcher,
		debounce: opts.DebounceWindow,
		logger:   opts.Logger,
		paths:    make(chan string, opts.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Start sweeps the spool once, then begins watching for new files.
//
// # Description
//
// The initial sweep picks up files dropped while the ledger was down.
// After it, two goroutines run until Stop or context cancellation: an
// event processor filtering fsnotify events, and the debounce loop that
// performs imports.
func (w *SpoolWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil // Already watching
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	summary, err := w.importer.ImportDir(ctx, w.dir)
	if err != nil {
		return err
	}
	if w.logger != nil && summary != (ImportSummary{}) {
		w.logger.Info("spool sweep complete",
			slog.Int("imported", summary.Imported),
			slog.Int("duplicates", summary.Duplicates),
			slog.Int("failed", summary.Failed))
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	return nil
}

// Stop stops the watcher. Safe to call multiple times.
func (w *SpoolWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching returns true if the watcher is currently active.
func (w *SpoolWatcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// processEvents filters fsnotify events down to epoch file drops.
func (w *SpoolWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Renames cover the Exporter's temp-and-rename writes.
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}

			select {
			case w.paths <- event.Name:
			default:
				// Buffer full; the next sweep of the directory will
				// still find the file.
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("spool watcher error", slog.String("error", err.Error()))
			}
		}
	}
}

// debounceLoop batches dropped paths and imports them after the window
// closes.
func (w *SpoolWatcher) debounceLoop(ctx context.Context) {
	batch := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 {
			paths := make([]string, 0, len(batch))
			for path := range batch {
				paths = append(paths, path)
			}
			sort.Strings(paths)
			for _, path := range paths {
				if err := w.importer.ImportFile(ctx, path); err != nil {
					if w.logger != nil && !errors.Is(err, context.Canceled) {
						w.logger.Warn("spool import failed",
							slog.String("path", path),
							slog.String("error", err.Error()))
					}
				}
			}
			clear(batch)
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case path := <-w.paths:
			batch[path] = struct{}{}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			flush()
		}
	}
}
