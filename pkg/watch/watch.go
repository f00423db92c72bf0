// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch reports file changes under a set of paths in debounced
// batches.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler receives one debounced batch of changed paths, sorted and
// without duplicates. Paths may no longer exist.
type Handler func(paths []string)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the tree must be quiet before a batch is sent.
	// Default: 200ms
	Debounce time.Duration

	// Ignore are glob patterns matched against each path segment.
	// Default: .git, node_modules, *.swp, *~
	Ignore []string

	// Logger receives watch errors. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns editor-friendly defaults.
func DefaultOptions() Options {
	return Options{
		Debounce: 200 * time.Millisecond,
		Ignore:   []string{".git", "node_modules", "*.swp", "*~"},
	}
}

// Watcher batches fsnotify events for a set of files and directories.
//
// Directories are watched recursively, including ones created later.
//
// Thread Safety: Add must not be called concurrently with Run.
type Watcher struct {
	fs      *fsnotify.Watcher
	handler Handler
	opts    Options
	logger  *slog.Logger

	// trees are directories watched in full; files are single files
	// watched through their parent.
	trees map[string]struct{}
	files map[string]struct{}
}

// New creates a Watcher. Zero-valued options take their defaults.
func New(handler Handler, opts Options) (*Watcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("watch: handler is required")
	}
	defaults := DefaultOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = defaults.Debounce
	}
	if opts.Ignore == nil {
		opts.Ignore = defaults.Ignore
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		fs:      fsw,
		handler: handler,
		opts:    opts,
		logger:  logger,
		trees:   make(map[string]struct{}),
		files:   make(map[string]struct{}),
	}, nil
}

// Add watches path: a file, or a directory and everything below it.
func (w *Watcher) Add(path string) error {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		// Editors replace files by rename, which drops a file watch; watch
		// the parent and filter instead.
		w.files[path] = struct{}{}
		return w.fs.Add(filepath.Dir(path))
	}
	return w.addTree(path)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			w.logger.Debug("Skipping unwatchable path", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path) {
			return filepath.SkipDir
		}
		w.trees[filepath.Clean(path)] = struct{}{}
		return w.fs.Add(path)
	})
}

// ignored reports whether any segment of path matches an ignore pattern.
func (w *Watcher) ignored(path string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		for _, pattern := range w.opts.Ignore {
			if ok, _ := filepath.Match(pattern, seg); ok {
				return true
			}
		}
	}
	return false
}

// Run delivers batches until ctx ends, then releases the watcher. A batch
// still pending at cancellation is dropped.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("Cannot watch new directory", slog.String("path", event.Name), slog.String("error", err.Error()))
					}
					continue
				}
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}

		case <-timerC:
			timer, timerC = nil, nil
			w.handler(drain(pending))

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watch error", slog.String("error", err.Error()))
		}
	}
}

// relevant drops chmod-only events, ignored paths and siblings of
// singly watched files.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod || w.ignored(event.Name) {
		return false
	}
	name := filepath.Clean(event.Name)
	if _, ok := w.trees[filepath.Dir(name)]; ok {
		return true
	}
	_, ok := w.files[name]
	return ok
}

// drain empties pending into a sorted slice.
func drain(pending map[string]struct{}) []string {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
		delete(pending, p)
	}
	sort.Strings(paths)
	return paths
}
