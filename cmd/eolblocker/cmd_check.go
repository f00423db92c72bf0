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
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/eolblocker/cmd/eolblocker/config"
	"github.com/AleutianAI/eolblocker/pkg/ux"
	"github.com/AleutianAI/eolblocker/services/gate"
	"github.com/AleutianAI/eolblocker/services/github"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

type checkOptions struct {
	dryRun bool
	number int
	branch string
}

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

func newCheckCmd(env *environment, root *rootOptions) *cobra.Command {
	opts := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a pull request for CRLF line endings",
		Long: `Check the files changed by a pull request for CRLF line endings.

Inside GitHub Actions the pull request is read from GITHUB_EVENT_PATH and
the repoToken input (INPUT_REPOTOKEN) authenticates API calls. The report
is appended to the job summary and the verdict is written to the step
outputs passed, crlf_count and crlf_files.

Examples:
  eolblocker check
  eolblocker check --pr 42 --branch feature/docs --dry-run

Exit Codes:
  0 = No CRLF line endings found
  1 = At least one file contains CRLF
  2 = Error (configuration, event, or GitHub API failure)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), env, root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false,
		"Report to the terminal only; do not comment or label")
	cmd.Flags().IntVar(&opts.number, "pr", 0,
		"Pull request number (instead of reading GITHUB_EVENT_PATH)")
	cmd.Flags().StringVar(&opts.branch, "branch", "",
		"Head branch name used in the report (overrides the event)")
	return cmd
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// pullRequestTarget identifies the pull request under check.
type pullRequestTarget struct {
	Owner      string
	Repo       string
	Number     int
	HeadBranch string
}

func runCheck(ctx context.Context, env *environment, root *rootOptions, opts *checkOptions) error {
	cfg, err := loadConfig(env, root)
	if err != nil {
		return err
	}

	logger := newLogger(env, cfg)
	defer logger.Close()

	_, stopTelemetry, err := startTelemetry(ctx, cfg.Telemetry, logger)
	if err != nil {
		return err
	}
	defer stopTelemetry()

	target, err := resolveTarget(cfg, opts)
	if err != nil {
		logger.Error("Cannot determine pull request", slog.String("error", err.Error()))
		return &ExitError{Code: CLIExitError, Err: err}
	}

	logger.Info("Starting EOL check",
		slog.String("repository", target.Owner+"/"+target.Repo),
		slog.Int("pull_request", target.Number),
		slog.String("head_branch", target.HeadBranch),
		slog.Bool("token_present", cfg.RepoToken != ""),
		slog.Bool("dry_run", opts.dryRun),
	)

	client, err := github.NewClient(github.ClientConfig{
		Token:   cfg.RepoToken,
		Owner:   target.Owner,
		Repo:    target.Repo,
		Number:  target.Number,
		BaseURL: cfg.GitHub.APIURL,
		Fetch:   cfg.FetcherConfig(),
	})
	if err != nil {
		return &ExitError{Code: CLIExitError, Err: err}
	}

	if target.HeadBranch == "" {
		if target.HeadBranch, err = client.HeadBranch(ctx); err != nil {
			logger.Error("Cannot determine head branch", slog.String("error", err.Error()))
			return &ExitError{Code: CLIExitError, Err: err}
		}
	}

	var sink gate.ReportingSink
	if !opts.dryRun {
		sink = client
	}

	gateOpts, closeCache := openVerdictCache(cfg, logger.Slog())
	defer closeCache()
	gateOpts = append(gateOpts, gate.WithLogger(logger.Slog()), gate.WithConcurrency(cfg.Concurrency))

	g, err := gate.New(client, sink, gate.Config{
		HeadBranch:     target.HeadBranch,
		Patterns:       cfg.Patterns(),
		Label:          cfg.EffectiveLabel(),
		IncludeRemoved: cfg.IncludeRemoved,
	}, gateOpts...)
	if err != nil {
		return &ExitError{Code: CLIExitError, Err: err}
	}

	outcome, err := g.Run(ctx)
	if err != nil {
		logger.Error("Check could not complete", slog.String("error", err.Error()))
		return &ExitError{Code: CLIExitError, Err: err}
	}

	publishActionResults(cfg, outcome, logger.Slog())
	printOutcome(ux.NewPrinter(env.stdout), outcome)

	if outcome.Failed {
		n := len(outcome.Result.ErrorFiles)
		logger.Error("CRLF line endings found", slog.Int("files", n))
		return &ExitError{Code: CLIExitFindings, Err: fmt.Errorf("%d file(s) contain CRLF line endings", n)}
	}
	return nil
}

// resolveTarget picks the pull request from --pr or the Actions event file.
func resolveTarget(cfg *config.Config, opts *checkOptions) (*pullRequestTarget, error) {
	owner, repo := cfg.OwnerRepo()

	if opts.number > 0 {
		if owner == "" || repo == "" {
			return nil, &config.ConfigurationError{
				Field: "github.repository",
				Err:   errors.New("required with --pr (set GITHUB_REPOSITORY=owner/repo)"),
			}
		}
		return &pullRequestTarget{Owner: owner, Repo: repo, Number: opts.number, HeadBranch: opts.branch}, nil
	}

	if cfg.GitHub.EventPath == "" {
		return nil, &config.ConfigurationError{
			Field: "github.event_path",
			Err:   errors.New("not set; run inside a pull_request workflow or pass --pr"),
		}
	}
	event, err := github.LoadEvent(cfg.GitHub.EventPath)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}

	target := &pullRequestTarget{
		Owner:      event.Owner,
		Repo:       event.Repo,
		Number:     event.Number,
		HeadBranch: event.HeadBranch,
	}
	if target.Owner == "" || target.Repo == "" {
		target.Owner, target.Repo = owner, repo
	}
	if opts.branch != "" {
		target.HeadBranch = opts.branch
	}
	return target, nil
}
