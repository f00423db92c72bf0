// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startWatcher runs a watcher on root and returns the batch channel.
func startWatcher(t *testing.T, root string) <-chan []string {
	t.Helper()
	batches := make(chan []string, 16)
	w, err := New(func(paths []string) { batches <- paths }, Options{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Add(root))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return batches
}

func nextBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
		return nil
	}
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root)

	path := filepath.Join(root, "a.md")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("line\r\n"), 0o644))
	}

	assert.Equal(t, []string{path}, nextBatch(t, batches))
}

func TestWatcher_NewDirectoriesAreWatched(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root)

	sub := filepath.Join(root, "docs")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the event loop time to add the new directory.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(sub, "b.md")
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))

	assert.Contains(t, nextBatch(t, batches), path)
}

func TestWatcher_SingleFileIgnoresSiblings(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "target.md")
	require.NoError(t, os.WriteFile(target, []byte("x\n"), 0o644))

	batches := make(chan []string, 16)
	w, err := New(func(paths []string) { batches <- paths }, Options{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Add(target))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(root, "sibling.md"), []byte("y\n"), 0o644))
	require.NoError(t, os.WriteFile(target, []byte("z\r\n"), 0o644))

	assert.Equal(t, []string{target}, nextBatch(t, batches))
}

func TestWatcher_IgnoredPaths(t *testing.T) {
	w := &Watcher{opts: DefaultOptions()}
	assert.True(t, w.ignored("repo/.git/index"))
	assert.True(t, w.ignored("docs/a.md.swp"))
	assert.True(t, w.ignored("web/node_modules/x/y.js"))
	assert.False(t, w.ignored("docs/a.md"))
}

func TestNew_RequiresHandler(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

func TestDrain_SortedAndEmptied(t *testing.T) {
	pending := map[string]struct{}{"b": {}, "a": {}}
	assert.Equal(t, []string{"a", "b"}, drain(pending))
	assert.Empty(t, pending)
}
