// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/eolblocker/cmd/eolblocker/config"
	"github.com/AleutianAI/eolblocker/services/cache"
	"github.com/AleutianAI/eolblocker/services/gate"
	"github.com/AleutianAI/eolblocker/services/github"
)

func testDispatcher(t *testing.T, f *fakeGitHub) *gateDispatcher {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.RepoToken = "tok"
	cfg.GitHub.APIURL = f.srv.URL
	return &gateDispatcher{cfg: &cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil)), httpClient: f.srv.Client()}
}

func TestGateDispatcher_ReportsFailure(t *testing.T) {
	f := newFakeGitHub(t, [2]string{"a.md", "x\r\n"})
	d := testDispatcher(t, f)

	err := d.Dispatch(context.Background(), &github.PullRequestEvent{
		Action: "opened", Owner: "octo", Repo: "docs", Number: 7, HeadBranch: "feature",
	}, "delivery-1")

	require.NoError(t, err)
	require.Len(t, f.comments, 1)
	assert.Contains(t, f.comments[0], "git checkout feature\n")
	assert.Equal(t, []string{gate.DefaultLabel}, f.added)
}

func TestGateDispatcher_DisabledLabel(t *testing.T) {
	f := newFakeGitHub(t, [2]string{"a.md", "clean\n"})
	d := testDispatcher(t, f)
	d.cfg.DisableLabel = true

	err := d.Dispatch(context.Background(), &github.PullRequestEvent{Owner: "octo", Repo: "docs", Number: 7}, "d")

	require.NoError(t, err)
	assert.Empty(t, f.removed)
}

func TestGateDispatcher_InvalidEvent(t *testing.T) {
	f := newFakeGitHub(t)
	d := testDispatcher(t, f)

	err := d.Dispatch(context.Background(), &github.PullRequestEvent{Owner: "octo", Repo: "docs"}, "d")
	assert.ErrorIs(t, err, github.ErrInvalidConfig)
}

func TestGateDispatcher_ListFailure(t *testing.T) {
	f := newFakeGitHub(t)
	d := testDispatcher(t, f)

	// #8 is not served by the fake.
	err := d.Dispatch(context.Background(), &github.PullRequestEvent{Owner: "octo", Repo: "docs", Number: 8}, "d")
	assert.ErrorIs(t, err, gate.ErrListFiles)
}

func TestGateDispatcher_SharedVerdictCache(t *testing.T) {
	f := newFakeGitHub(t, [2]string{"a.md", "x\r\n"}, [2]string{"b.md", "ok\n"})
	d := testDispatcher(t, f)

	store, err := cache.Open(cache.Config{InMemory: true})
	require.NoError(t, err)
	defer store.Close()
	d.options = []gate.Option{gate.WithVerdictCache(store)}

	event := &github.PullRequestEvent{Owner: "octo", Repo: "docs", Number: 7, HeadBranch: "feature"}
	require.NoError(t, d.Dispatch(context.Background(), event, "first"))
	require.NoError(t, d.Dispatch(context.Background(), event, "second"))

	assert.Equal(t, 2, f.rawHits)
	assert.Len(t, f.comments, 2)
}

func TestOpenVerdictCache(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.DefaultConfig()
	opts, closeFn := openVerdictCache(&cfg, logger)
	assert.Empty(t, opts)
	closeFn()

	cfg.Cache.Dir = t.TempDir()
	opts, closeFn = openVerdictCache(&cfg, logger)
	assert.Len(t, opts, 1)
	closeFn()
}
