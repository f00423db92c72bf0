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
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/eolblocker/cmd/eolblocker/config"
)

// testEnv is an environment with captured streams and a fixed variable map.
type testEnv struct {
	*environment
	vars   map[string]string
	stdin  *bytes.Buffer
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestEnv(vars map[string]string) *testEnv {
	if vars == nil {
		vars = map[string]string{}
	}
	te := &testEnv{vars: vars, stdin: &bytes.Buffer{}, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	te.environment = &environment{
		getenv: func(key string) string { return te.vars[key] },
		stdin:  te.stdin,
		stdout: te.stdout,
		stderr: te.stderr,
	}
	return te
}

func (te *testEnv) run(args ...string) int {
	return run(context.Background(), args, te.environment)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, CLIExitSuccess},
		{"findings", &ExitError{Code: CLIExitFindings, Err: errors.New("crlf")}, CLIExitFindings},
		{"wrapped", fmt.Errorf("outer: %w", &ExitError{Code: CLIExitFindings}), CLIExitFindings},
		{"plain error", errors.New("unknown flag"), CLIExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestExitError_Error(t *testing.T) {
	assert.Equal(t, "exit 2", (&ExitError{Code: 2}).Error())
	inner := errors.New("bad")
	err := &ExitError{Code: 2, Err: inner}
	assert.Equal(t, "bad", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestRun_UnknownCommand(t *testing.T) {
	te := newTestEnv(nil)
	assert.Equal(t, CLIExitError, te.run("frobnicate"))
	assert.Contains(t, te.stderr.String(), "Error:")
}

func TestRun_Render(t *testing.T) {
	te := newTestEnv(nil)
	code := te.run("render", "--branch", "patch-1", "test.md", "subfolder/test2.md")

	assert.Equal(t, CLIExitSuccess, code)
	out := te.stdout.String()
	assert.Contains(t, out, "- test.md\n- subfolder/test2.md\n")
	assert.Contains(t, out, "git checkout patch-1\n")
	assert.Contains(t, out, "git rm --cached test.md subfolder/test2.md\n")
}

func TestRun_RenderRequiresBranch(t *testing.T) {
	te := newTestEnv(nil)
	assert.Equal(t, CLIExitError, te.run("render", "a.md"))
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	te := newTestEnv(map[string]string{"INPUT_REPOTOKEN": "t"})

	cfg, err := loadConfig(te.environment, &rootOptions{logLevel: "debug", jsonLogs: true})
	if assert.NoError(t, err) {
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.True(t, cfg.Log.JSON)
	}

	_, err = loadConfig(te.environment, &rootOptions{logLevel: "shouting"})
	assert.ErrorIs(t, err, config.ErrConfiguration)
	assert.Equal(t, CLIExitError, exitCode(err))
}

func TestNewLogger_ActionsAnnotations(t *testing.T) {
	te := newTestEnv(map[string]string{"INPUT_REPOTOKEN": "t", "GITHUB_ACTIONS": "true"})
	cfg, err := loadConfig(te.environment, &rootOptions{})
	if !assert.NoError(t, err) {
		return
	}

	logger := newLogger(te.environment, cfg)
	logger.Warn("Skipping file: content fetch failed", "file", "docs/a.md")
	logger.Info("not annotated")
	assert.NoError(t, logger.Close())

	assert.Equal(t, "::warning file=docs/a.md::Skipping file: content fetch failed\n", te.stdout.String())
	assert.Contains(t, te.stderr.String(), "not annotated")
}
