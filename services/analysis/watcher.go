// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchedExtensions are the source extensions that trigger analysis.
var watchedExtensions = []string{".res", ".resi"}

// skippedDirs are never descended into while installing watches.
var skippedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"lib":          true,
}

// defaultDebounce coalesces editor save bursts into one run.
const defaultDebounce = 300 * time.Millisecond

// Watcher triggers analysis for source files saved under a project tree.
//
// Description:
//
//	Installs recursive filesystem watches, filters for source writes,
//	debounces per file, and feeds the service's AnalyzeFile. Newly
//	created directories are watched as they appear. Start blocks until
//	the context is cancelled and should run in a goroutine.
//
// Thread Safety:
//
//	Safe for concurrent use. Start should only be called once.
type Watcher struct {
	root     string
	svc      *Service
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides the per-file debounce window.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over a project tree.
func NewWatcher(root string, svc *Service, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     root,
		svc:      svc,
		watcher:  fsw,
		debounce: defaultDebounce,
		logger:   slog.Default(),
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. Blocks until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	if err := w.addTree(w.root); err != nil {
		slog.Warn("Failed to install watches",
			"root", w.root,
			"error", err)
	}

	w.logger.Info("Watching for source changes",
		slog.String("root", w.root),
		slog.Duration("debounce", w.debounce),
	)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Source watcher error",
				slog.Any("error", err))

		case <-ctx.Done():
			w.logger.Debug("Source watcher stopping")
			return
		}
	}
}

// handleEvent filters and debounces a single fsnotify event.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Debug("Failed to watch new directory",
					slog.String("path", event.Name),
					slog.Any("error", err))
			}
			return
		}
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	if !watchedSource(event.Name) {
		return
	}

	w.schedule(ctx, event.Name)
}

// schedule resets the per-file debounce timer.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if err := w.svc.AnalyzeFile(ctx, path); err != nil {
			w.logger.Warn("Analysis after save failed",
				slog.String("file", path),
				slog.Any("error", err))
		}
	})
}

// addTree installs watches on a directory and its descendants, skipping
// dependency and build-output trees.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr
		}
		if !d.IsDir() {
			return nil
		}
		if skippedDirs[d.Name()] && path != root {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Debug("Failed to watch directory",
				slog.String("path", path),
				slog.Any("error", err))
		}
		return nil
	})
}

// Stop stops the watcher and releases resources. Safe to call multiple
// times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

// watchedSource reports whether a path has a watched source extension.
func watchedSource(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range watchedExtensions {
		if ext == want {
			return true
		}
	}
	return false
}
