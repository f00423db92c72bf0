// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache persists CRLF verdicts in BadgerDB.
//
// Verdicts are keyed by git blob SHA. The webhook server sees the same
// blobs on every synchronize event of a pull request, and a CI job can
// restore the cache directory between runs; either way a file that has
// been checked once is never fetched again.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrInvalidConfig indicates a Config that cannot be opened.
var ErrInvalidConfig = errors.New("invalid cache config")

// Config holds configuration for the verdict store.
type Config struct {
	// Dir is the BadgerDB directory. Required unless InMemory is true.
	Dir string `yaml:"dir"`

	// InMemory keeps the store in RAM only. Useful for testing.
	InMemory bool `yaml:"-"`

	// TTL expires verdicts after this long. Zero keeps them forever.
	// Default: 30 days
	TTL time.Duration `yaml:"ttl" validate:"min=0"`

	// GCInterval is how often value log garbage collection runs.
	// Zero disables it.
	// Default: 10 minutes
	GCInterval time.Duration `yaml:"gc_interval" validate:"min=0"`

	// Logger receives BadgerDB's internal messages. Nil silences them.
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns production defaults with no directory set.
func DefaultConfig() Config {
	return Config{
		TTL:        30 * 24 * time.Hour,
		GCInterval: 10 * time.Minute,
	}
}

// Enabled reports whether a store should be opened for c.
func (c Config) Enabled() bool {
	return c.InMemory || c.Dir != ""
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// openDB opens BadgerDB for cfg, creating the directory if needed.
func openDB(cfg Config) (*badger.DB, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: dir is required", ErrInvalidConfig)
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}

	// Verdicts are cheap to recompute; losing the tail on a crash is fine.
	opts = opts.WithSyncWrites(false).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// =============================================================================
// Garbage Collection
// =============================================================================

// gcRunner runs periodic value log garbage collection.
type gcRunner struct {
	db       *badger.DB
	interval time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func startGC(db *badger.DB, interval time.Duration, logger *slog.Logger) *gcRunner {
	r := &gcRunner{
		db:       db,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *gcRunner) stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *gcRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			// ErrNoRewrite means nothing needed collecting.
			if err := r.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) && r.logger != nil {
				r.logger.Warn("Verdict cache GC failed", slog.String("error", err.Error()))
			}
		}
	}
}
