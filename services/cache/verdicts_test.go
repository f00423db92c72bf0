// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/eolblocker/services/eol"
)

func openInMemory(t *testing.T) *VerdictStore {
	t.Helper()
	store, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestVerdictStore_RoundTrip(t *testing.T) {
	store := openInMemory(t)
	ctx := context.Background()

	_, found, err := store.Lookup(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Store(ctx, "abc", true))
	require.NoError(t, store.Store(ctx, "def", false))

	crlf, found, err := store.Lookup(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, crlf)

	crlf, found, err = store.Lookup(ctx, "def")
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, crlf)
}

func TestVerdictStore_Overwrite(t *testing.T) {
	store := openInMemory(t)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, "abc", true))
	require.NoError(t, store.Store(ctx, "abc", false))

	crlf, found, err := store.Lookup(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, crlf)
}

func TestVerdictStore_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Dir = dir

	store, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, store.Store(context.Background(), "blob", true))
	require.NoError(t, store.Close())

	store, err = Open(cfg)
	require.NoError(t, err)
	defer store.Close()

	crlf, found, err := store.Lookup(context.Background(), "blob")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, crlf)
}

func TestVerdictStore_CancelledContext(t *testing.T) {
	store := openInMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := store.Lookup(ctx, "abc")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Store(ctx, "abc", true), context.Canceled)
}

func TestVerdictStore_CloseTwice(t *testing.T) {
	store, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open(DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.False(t, DefaultConfig().Enabled())
	assert.Equal(t, 30*24*time.Hour, DefaultConfig().TTL)
}

func TestVerdictStore_ServesValidator(t *testing.T) {
	store := openInMemory(t)
	fetches := 0
	fetcher := fetchFunc(func(ctx context.Context, locator string) (string, error) {
		fetches++
		return "x\r\n", nil
	})
	v := eol.NewValidator(fetcher, eol.WithVerdictCache(store), eol.WithConcurrency(1))
	files := []eol.ChangedFile{{Filename: "a.md", ContentLocator: "loc", SHA: "sha-1"}}

	for i := 0; i < 3; i++ {
		result, err := v.Validate(context.Background(), files, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.md"}, result.ErrorFiles)
	}
	assert.Equal(t, 1, fetches)
}

type fetchFunc func(ctx context.Context, locator string) (string, error)

func (f fetchFunc) FetchContent(ctx context.Context, locator string) (string, error) {
	return f(ctx, locator)
}
