// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads eolblocker settings from an optional YAML file,
// GitHub Actions inputs and runner variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/eolblocker/pkg/logging"
	"github.com/AleutianAI/eolblocker/pkg/telemetry"
	"github.com/AleutianAI/eolblocker/services/cache"
	"github.com/AleutianAI/eolblocker/services/eol"
	"github.com/AleutianAI/eolblocker/services/gate"
)

// ErrConfiguration is matched by every ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports a missing or invalid setting. It is fatal
// before any content is fetched.
type ConfigurationError struct {
	// Field is the setting at fault, e.g. "repo_token".
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// Config is the complete eolblocker configuration.
type Config struct {
	// RepoToken authenticates GitHub API and content requests. Required.
	RepoToken string `yaml:"repo_token" validate:"required"`

	// ExcludeFiles is a semicolon-separated glob list. When non-empty it
	// replaces the default image patterns.
	ExcludeFiles string `yaml:"exclude_files" validate:"exclude_globs"`

	// Label is added to failing pull requests and removed from passing ones.
	// Default: gate.DefaultLabel
	Label string `yaml:"label"`

	// DisableLabel turns labelling off entirely.
	DisableLabel bool `yaml:"disable_label"`

	// IncludeRemoved also inspects files deleted by the pull request.
	IncludeRemoved bool `yaml:"include_removed"`

	// Concurrency is the number of simultaneous content fetches.
	// Default: eol.DefaultConcurrency
	Concurrency int `yaml:"concurrency" validate:"min=1,max=32"`

	// Cache persists verdicts by blob SHA. Disabled while Dir is empty.
	Cache     cache.Config     `yaml:"cache"`
	Fetch     FetchConfig      `yaml:"fetch"`
	GitHub    GitHubConfig     `yaml:"github"`
	Log       LogConfig        `yaml:"log"`
	Server    ServerConfig     `yaml:"server"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// FetchConfig tunes content retrieval.
type FetchConfig struct {
	// MaxAttempts bounds retries. 1 means no retry.
	MaxAttempts int `yaml:"max_attempts" validate:"min=1,max=5"`

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration `yaml:"initial_backoff" validate:"min=0"`

	// RequestsPerSecond paces requests. 0 disables pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`

	// Timeout bounds each request.
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
}

// GitHubConfig locates the repository, event and runner files.
type GitHubConfig struct {
	// APIURL is the REST endpoint (GITHUB_API_URL).
	APIURL string `yaml:"api_url" validate:"omitempty,url"`

	// Repository is "owner/repo" (GITHUB_REPOSITORY).
	Repository string `yaml:"repository" validate:"omitempty,owner_repo"`

	// EventPath is the event payload file (GITHUB_EVENT_PATH).
	EventPath string `yaml:"event_path"`

	// StepSummary is the job summary file (GITHUB_STEP_SUMMARY).
	StepSummary string `yaml:"step_summary"`

	// OutputPath is the step output file (GITHUB_OUTPUT).
	OutputPath string `yaml:"output_path"`
}

// LogConfig configures pkg/logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"loglevel"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Addr          string        `yaml:"addr" validate:"required"`
	WebhookSecret string        `yaml:"webhook_secret"`
	RunTimeout    time.Duration `yaml:"run_timeout" validate:"min=0"`
}

// DefaultConfig returns the defaults applied before the file and
// environment are read.
func DefaultConfig() Config {
	retry := eol.DefaultRetryConfig()
	return Config{
		Label:       gate.DefaultLabel,
		Concurrency: eol.DefaultConcurrency,
		Cache:       cache.DefaultConfig(),
		Fetch: FetchConfig{
			MaxAttempts:    retry.MaxAttempts,
			InitialBackoff: retry.InitialBackoff,
			Timeout:        30 * time.Second,
		},
		GitHub: GitHubConfig{APIURL: "https://api.github.com"},
		Log:    LogConfig{Level: "info"},
		Server: ServerConfig{
			Addr:       ":8080",
			RunTimeout: 5 * time.Minute,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Patterns returns the parsed exclusion patterns; nil means the default set.
func (c *Config) Patterns() eol.PatternSet {
	return eol.ParsePatternList(c.ExcludeFiles)
}

// EffectiveLabel returns the label to manage, or "" when disabled.
func (c *Config) EffectiveLabel() string {
	if c.DisableLabel {
		return ""
	}
	return c.Label
}

// LogLevel returns the parsed log level. Validate has already rejected
// unknown names.
func (c *Config) LogLevel() logging.Level {
	level, _ := logging.ParseLevel(c.Log.Level)
	return level
}

// OwnerRepo splits GitHub.Repository.
func (c *Config) OwnerRepo() (owner, repo string) {
	owner, repo, _ = strings.Cut(c.GitHub.Repository, "/")
	return owner, repo
}

// RetryConfig converts FetchConfig to the fetcher's retry settings.
func (c *Config) RetryConfig() eol.RetryConfig {
	retry := eol.DefaultRetryConfig()
	retry.MaxAttempts = c.Fetch.MaxAttempts
	if c.Fetch.InitialBackoff > 0 {
		retry.InitialBackoff = c.Fetch.InitialBackoff
		if retry.MaxBackoff < retry.InitialBackoff {
			retry.MaxBackoff = retry.InitialBackoff
		}
	}
	return retry
}

// FetcherConfig builds the content fetcher configuration.
func (c *Config) FetcherConfig() eol.FetcherConfig {
	return eol.FetcherConfig{
		Token:             c.RepoToken,
		Timeout:           c.Fetch.Timeout,
		Retry:             c.RetryConfig(),
		RequestsPerSecond: c.Fetch.RequestsPerSecond,
	}
}
