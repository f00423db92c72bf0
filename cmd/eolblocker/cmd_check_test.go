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
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/eolblocker/services/gate"
)

// fakeGitHub serves one pull request (octo/docs#7) with raw file content.
type fakeGitHub struct {
	srv   *httptest.Server
	files map[string]string
	order []string

	mu       sync.Mutex
	comments []string
	added    []string
	removed  []string
	labelSet bool
	rawHits  int
}

func newFakeGitHub(t *testing.T, files ...[2]string) *fakeGitHub {
	t.Helper()
	f := &fakeGitHub{files: map[string]string{}}
	for _, kv := range files {
		f.files[kv[0]] = kv[1]
		f.order = append(f.order, kv[0])
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/docs/pulls/7/files", func(w http.ResponseWriter, r *http.Request) {
		entries := make([]map[string]string, 0, len(f.order))
		for _, name := range f.order {
			entries = append(entries, map[string]string{
				"filename": name,
				"status":   "modified",
				"raw_url":  f.srv.URL + "/raw/" + name,
				"sha":      fmt.Sprintf("%x", len(name)) + "-" + strings.ReplaceAll(name, "/", "_"),
			})
		}
		_ = json.NewEncoder(w).Encode(entries)
	})
	mux.HandleFunc("/repos/octo/docs/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number":7,"head":{"ref":"fetched-branch","sha":"abc123"}}`)
	})
	mux.HandleFunc("/raw/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.rawHits++
		f.mu.Unlock()
		content, ok := f.files[strings.TrimPrefix(r.URL.Path, "/raw/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, content)
	})
	mux.HandleFunc("/repos/octo/docs/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Body string `json:"body"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.comments = append(f.comments, body.Body)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":1}`)
	})
	mux.HandleFunc("/repos/octo/docs/issues/7/labels", func(w http.ResponseWriter, r *http.Request) {
		var names []string
		_ = json.NewDecoder(r.Body).Decode(&names)
		f.mu.Lock()
		f.added = append(f.added, names...)
		f.mu.Unlock()
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/repos/octo/docs/issues/7/labels/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.removed = append(f.removed, strings.TrimPrefix(r.URL.Path, "/repos/octo/docs/issues/7/labels/"))
		if !f.labelSet {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Label does not exist"}`)
			return
		}
		fmt.Fprint(w, `[]`)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

const pullRequestEvent = `{
  "action": "synchronize",
  "number": 7,
  "pull_request": {"number": 7, "head": {"ref": "patch-1", "sha": "abc123"}},
  "repository": {"name": "docs", "owner": {"login": "octo"}}
}`

// actionsEnv returns the variables a pull_request workflow step sees.
func actionsEnv(t *testing.T, f *fakeGitHub) (map[string]string, string, string) {
	t.Helper()
	dir := t.TempDir()
	eventPath := filepath.Join(dir, "event.json")
	require.NoError(t, os.WriteFile(eventPath, []byte(pullRequestEvent), 0600))
	summary := filepath.Join(dir, "summary.md")
	output := filepath.Join(dir, "output.txt")

	return map[string]string{
		"INPUT_REPOTOKEN":     "tok",
		"GITHUB_API_URL":      f.srv.URL,
		"GITHUB_REPOSITORY":   "octo/docs",
		"GITHUB_EVENT_PATH":   eventPath,
		"GITHUB_STEP_SUMMARY": summary,
		"GITHUB_OUTPUT":       output,
	}, summary, output
}

func TestCheck_FailsOnCRLF(t *testing.T) {
	f := newFakeGitHub(t,
		[2]string{"readme.md", "ok\n"},
		[2]string{"docs/bad.md", "bad\r\n"},
		[2]string{"logo.png", "\r\n"},
	)
	vars, summary, output := actionsEnv(t, f)
	te := newTestEnv(vars)

	code := te.run("check")

	assert.Equal(t, CLIExitFindings, code)
	require.Len(t, f.comments, 1)
	assert.Contains(t, f.comments[0], "- docs/bad.md\n")
	assert.Contains(t, f.comments[0], "git checkout patch-1\n")
	assert.Equal(t, []string{gate.DefaultLabel}, f.added)

	out, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "passed=false\ncrlf_count=1\ncrlf_files=[\"docs/bad.md\"]\n", string(out))

	sum, err := os.ReadFile(summary)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(sum), "## EOL Blocker\n\n"))
	assert.Contains(t, string(sum), "- docs/bad.md")

	assert.Contains(t, te.stdout.String(), "ERROR: 1 file(s) contain CRLF line endings")
	assert.Contains(t, te.stdout.String(), "SUMMARY: inspected=2 excluded=1 removed=0 crlf=1")
	assert.NotContains(t, te.stderr.String(), "Error:")
}

func TestCheck_CleanRunRemovesLabel(t *testing.T) {
	f := newFakeGitHub(t, [2]string{"a.md", "one\ntwo\n"})
	f.labelSet = true
	vars, _, output := actionsEnv(t, f)
	te := newTestEnv(vars)

	code := te.run("check")

	assert.Equal(t, CLIExitSuccess, code)
	assert.Empty(t, f.comments)
	assert.Equal(t, []string{gate.DefaultLabel}, f.removed)

	out, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "passed=true\ncrlf_count=0\ncrlf_files=[]\n", string(out))
	assert.Contains(t, te.stdout.String(), "OK: No CRLF line endings found")
}

func TestCheck_CleanRunWithoutLabel(t *testing.T) {
	f := newFakeGitHub(t, [2]string{"a.md", "one\n"})
	vars, _, _ := actionsEnv(t, f)
	te := newTestEnv(vars)

	assert.Equal(t, CLIExitSuccess, te.run("check"))
	assert.Equal(t, []string{gate.DefaultLabel}, f.removed)
}

func TestCheck_DryRunPublishesNothing(t *testing.T) {
	f := newFakeGitHub(t, [2]string{"a.md", "x\r\n"})
	vars, _, _ := actionsEnv(t, f)
	te := newTestEnv(vars)

	code := te.run("check", "--dry-run")

	assert.Equal(t, CLIExitFindings, code)
	assert.Empty(t, f.comments)
	assert.Empty(t, f.added)
	assert.Contains(t, te.stdout.String(), "git rm --cached a.md")
}

func TestCheck_ExcludeInputOverridesDefaults(t *testing.T) {
	f := newFakeGitHub(t,
		[2]string{"logo.png", "\r\n"},
		[2]string{"vendor/lib.md", "\r\n"},
	)
	vars, _, _ := actionsEnv(t, f)
	vars["INPUT_EXCLUDEFILES"] = "vendor/**"
	te := newTestEnv(vars)

	assert.Equal(t, CLIExitFindings, te.run("check", "--dry-run"))
	assert.Contains(t, te.stdout.String(), "  - logo.png\n")
	assert.NotContains(t, te.stdout.String(), "vendor/lib.md")
}

func TestCheck_PRFlag(t *testing.T) {
	f := newFakeGitHub(t, [2]string{"a.md", "x\r\n"})
	te := newTestEnv(map[string]string{
		"INPUT_REPOTOKEN":   "tok",
		"GITHUB_API_URL":    f.srv.URL,
		"GITHUB_REPOSITORY": "octo/docs",
	})

	code := te.run("check", "--pr", "7", "--branch", "topic")

	assert.Equal(t, CLIExitFindings, code)
	require.Len(t, f.comments, 1)
	assert.Contains(t, f.comments[0], "git checkout topic\n")
}

func TestCheck_PRFlagLooksUpHeadBranch(t *testing.T) {
	f := newFakeGitHub(t, [2]string{"a.md", "x\r\n"})
	te := newTestEnv(map[string]string{
		"INPUT_REPOTOKEN":   "tok",
		"GITHUB_API_URL":    f.srv.URL,
		"GITHUB_REPOSITORY": "octo/docs",
	})

	code := te.run("check", "--pr", "7")

	assert.Equal(t, CLIExitFindings, code)
	require.Len(t, f.comments, 1)
	assert.Contains(t, f.comments[0], "git checkout fetched-branch\n")
	assert.NotContains(t, f.comments[0], "git checkout \n")
}

func TestCheck_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		args []string
		want string
	}{
		{
			name: "missing token",
			vars: map[string]string{"GITHUB_EVENT_PATH": "/nonexistent"},
			want: "repo_token",
		},
		{
			name: "no event and no pr",
			vars: map[string]string{"INPUT_REPOTOKEN": "t"},
			want: "github.event_path",
		},
		{
			name: "pr without repository",
			vars: map[string]string{"INPUT_REPOTOKEN": "t"},
			args: []string{"--pr", "3"},
			want: "github.repository",
		},
		{
			name: "malformed exclude",
			vars: map[string]string{"INPUT_REPOTOKEN": "t", "INPUT_EXCLUDEFILES": "a/[b"},
			want: "exclude_files",
		},
		{
			name: "unreadable event",
			vars: map[string]string{"INPUT_REPOTOKEN": "t", "GITHUB_EVENT_PATH": "/nonexistent/event.json"},
			want: "load event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEnv(tt.vars)
			code := te.run(append([]string{"check"}, tt.args...)...)
			assert.Equal(t, CLIExitError, code)
			assert.Contains(t, te.stderr.String(), tt.want)
		})
	}
}

func TestCheck_ListFailureIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"boom"}`)
	}))
	defer srv.Close()

	te := newTestEnv(map[string]string{
		"INPUT_REPOTOKEN":   "t",
		"GITHUB_API_URL":    srv.URL,
		"GITHUB_REPOSITORY": "octo/docs",
	})
	assert.Equal(t, CLIExitError, te.run("check", "--pr", "7"))
}
