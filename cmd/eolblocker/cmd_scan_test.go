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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/eolblocker/services/eol"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestScan_FindsCRLF(t *testing.T) {
	root := writeTree(t, map[string]string{
		"README.md":      "ok\n",
		"docs/bad.md":    "bad\r\n",
		"img/logo.png":   "\r\n",
		".git/config":    "[core]\r\n",
		"docs/other.txt": "fine\n",
	})
	te := newTestEnv(nil)

	code := te.run("scan", root)

	assert.Equal(t, CLIExitFindings, code)
	out := te.stdout.String()
	assert.Contains(t, out, "ERROR: 1 file(s) contain CRLF line endings")
	assert.Contains(t, out, "  - docs/bad.md\n")
	assert.NotContains(t, out, ".git")
	assert.Contains(t, out, "SUMMARY: inspected=3 excluded=1 crlf=1")
}

func TestScan_CleanTree(t *testing.T) {
	root := writeTree(t, map[string]string{"a.md": "a\n", "b/c.md": "c\n"})
	te := newTestEnv(nil)

	assert.Equal(t, CLIExitSuccess, te.run("scan", root))
	assert.Contains(t, te.stdout.String(), "OK: No CRLF line endings found")
}

func TestScan_CustomExclude(t *testing.T) {
	root := writeTree(t, map[string]string{"logo.png": "\r\n", "gen/out.md": "\r\n"})
	te := newTestEnv(nil)

	code := te.run("scan", "--exclude", "**/gen/**", root)

	assert.Equal(t, CLIExitFindings, code)
	assert.Contains(t, te.stdout.String(), "logo.png")
	assert.NotContains(t, te.stdout.String(), "out.md")
}

func TestScan_Errors(t *testing.T) {
	te := newTestEnv(nil)
	assert.Equal(t, CLIExitError, te.run("scan", "--exclude", "a/[b", "."))

	te = newTestEnv(nil)
	assert.Equal(t, CLIExitError, te.run("scan", filepath.Join(t.TempDir(), "absent")))
}

func TestCollectLocalFiles_RelativeToRoot(t *testing.T) {
	root := writeTree(t, map[string]string{"b.md": "", "a/z.md": "", "a/y.md": ""})

	files, err := collectLocalFiles([]string{root})
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, f.Filename)
		assert.Equal(t, eol.StatusModified, f.Status)
	}
	assert.Equal(t, []string{"a/y.md", "a/z.md", "b.md"}, names)
	assert.Equal(t, filepath.Join(root, "a", "y.md"), files[0].ContentLocator)
}

func TestCollectLocalFiles_SingleFile(t *testing.T) {
	root := writeTree(t, map[string]string{"a.md": ""})
	path := filepath.Join(root, "a.md")

	files, err := collectLocalFiles([]string{path})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, path, files[0].ContentLocator)
}

func TestFileFetcher(t *testing.T) {
	root := writeTree(t, map[string]string{"a.md": "x\r\ny"})

	content, err := fileFetcher{}.FetchContent(context.Background(), filepath.Join(root, "a.md"))
	require.NoError(t, err)
	assert.Equal(t, "x\r\ny", content)

	_, err = fileFetcher{}.FetchContent(context.Background(), filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, eol.ErrFetch)
}

func TestScan_LeavesFilesUntouched(t *testing.T) {
	root := writeTree(t, map[string]string{"bad.md": "a\r\nb\r\n"})
	te := newTestEnv(nil)

	assert.Equal(t, CLIExitFindings, te.run("scan", root))
	assert.Equal(t, CLIExitError, te.run("scan", "--fix", root))

	data, err := os.ReadFile(filepath.Join(root, "bad.md"))
	require.NoError(t, err)
	assert.Equal(t, "a\r\nb\r\n", string(data))
}

func TestChangedLocalFiles(t *testing.T) {
	root := writeTree(t, map[string]string{"docs/a.md": "x"})

	files := changedLocalFiles(root, []string{
		filepath.Join(root, "docs", "a.md"),
		filepath.Join(root, "docs"),
		filepath.Join(root, "deleted.md"),
	})

	require.Len(t, files, 1)
	assert.Equal(t, "docs/a.md", files[0].Filename)
}

func TestScan_WatchRescansChangedFiles(t *testing.T) {
	root := writeTree(t, map[string]string{"a.md": "clean\n"})
	te := newTestEnv(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- run(ctx, []string{"scan", "--watch", "--debounce", "20ms", root}, te.environment) }()

	// Let the initial scan finish and the watch start.
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "new.md"), []byte("bad\r\n"), 0o644))
	time.Sleep(500 * time.Millisecond)
	cancel()

	select {
	case code := <-done:
		assert.Equal(t, CLIExitSuccess, code)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	out := te.stdout.String()
	assert.Contains(t, out, "OK: No CRLF line endings found")
	assert.Contains(t, out, "Watching for changes")
	assert.Contains(t, out, "  - new.md\n")
}
