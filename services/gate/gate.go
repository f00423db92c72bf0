// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gate runs one EOL check for a pull request and reports the
// verdict back to the hosting platform.
//
// The platform is reached only through PullRequestSource and ReportingSink,
// so the gate can be driven by the GitHub adapter, a webhook, or a test fake.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/eolblocker/services/eol"
)

var tracer = otel.Tracer("eolblocker.gate")

// DefaultLabel is applied to pull requests that fail the check.
const DefaultLabel = "eol-blocker"

// =============================================================================
// Platform Capabilities
// =============================================================================

// PullRequestSource lists a pull request's changed files and fetches
// their stored content.
type PullRequestSource interface {
	ListChangedFiles(ctx context.Context) ([]eol.ChangedFile, error)
	eol.ContentFetcher
}

// ReportingSink publishes the verdict on the pull request.
//
// RemoveLabel returns an error matching ErrLabelNotFound when the label
// is not present.
type ReportingSink interface {
	PostComment(ctx context.Context, body string) error
	AddLabel(ctx context.Context, name string) error
	RemoveLabel(ctx context.Context, name string) error
}

// =============================================================================
// Gate
// =============================================================================

// Config holds the per-run settings.
type Config struct {
	// HeadBranch is the pull request's source branch, used in the report.
	HeadBranch string

	// Patterns are the exclusion globs. Empty means eol.DefaultPatterns.
	Patterns eol.PatternSet

	// Label is added on failure and removed on success. Empty disables
	// labelling.
	Label string

	// IncludeRemoved inspects files the pull request deletes. They have no
	// content at the head commit, so by default they are skipped.
	IncludeRemoved bool
}

// Gate runs the check for one pull request.
//
// Thread Safety: Run may be called concurrently; each call is independent.
type Gate struct {
	source    PullRequestSource
	sink      ReportingSink
	config    Config
	validator *eol.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Gate.
type Option func(*gateOptions)

type gateOptions struct {
	logger      *slog.Logger
	concurrency int
	cache       eol.VerdictCache
}

// WithLogger sets the logger passed through to the validator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *gateOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConcurrency sets the validator's fetch concurrency.
func WithConcurrency(n int) Option {
	return func(o *gateOptions) { o.concurrency = n }
}

// WithVerdictCache lets the validator reuse verdicts for blobs it has
// already seen.
func WithVerdictCache(c eol.VerdictCache) Option {
	return func(o *gateOptions) { o.cache = c }
}

// New creates a Gate.
//
// Description:
//
//	The source is required. A nil sink makes the gate report-only: the
//	verdict and rendered report are returned but nothing is published.
//	Patterns are validated up front so a malformed glob fails before any
//	content is fetched.
//
// Inputs:
//
//	source - Changed files and content for the pull request
//	sink - Comment and label publisher, or nil
//	config - Per-run settings
//	opts - Logger, concurrency and cache options
//
// Outputs:
//
//	*Gate - Ready to Run
//	error - ErrInvalidInput or eol.ErrInvalidPattern
func New(source PullRequestSource, sink ReportingSink, config Config, opts ...Option) (*Gate, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: source is required", ErrInvalidInput)
	}
	if err := eol.ValidatePatterns(config.Patterns); err != nil {
		return nil, err
	}

	o := gateOptions{logger: slog.Default(), concurrency: eol.DefaultConcurrency}
	for _, opt := range opts {
		opt(&o)
	}

	validatorOpts := []eol.ValidatorOption{
		eol.WithConcurrency(o.concurrency),
		eol.WithLogger(o.logger),
	}
	if o.cache != nil {
		validatorOpts = append(validatorOpts, eol.WithVerdictCache(o.cache))
	}

	return &Gate{
		source:    source,
		sink:      sink,
		config:    config,
		validator: eol.NewValidator(source, validatorOpts...),
		logger:    o.logger,
		now:       time.Now,
	}, nil
}

// Run checks the pull request and publishes the verdict.
//
// Description:
//
//	Lists the changed files, validates them, and then either posts the
//	report and adds the label, or removes the label. Publishing problems
//	are collected in Outcome.ReportingErrors and never change the verdict.
//	A missing label on a clean run is not a problem.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//
// Outputs:
//
//	*Outcome - The verdict and everything published
//	error - Non-nil when the file list could not be obtained or the
//	        validation was cancelled
//
// Thread Safety: Safe for concurrent use.
func (g *Gate) Run(ctx context.Context) (*Outcome, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}

	runID := uuid.NewString()
	logger := g.logger.With(slog.String("run_id", runID))
	start := g.now()

	ctx, span := tracer.Start(ctx, "Gate.Run", trace.WithAttributes(
		attribute.String("gate.run_id", runID),
		attribute.String("gate.head_branch", g.config.HeadBranch),
	))
	defer span.End()

	files, err := g.source.ListChangedFiles(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list files failed")
		return nil, fmt.Errorf("%w: %w", ErrListFiles, err)
	}

	files, removed := g.filterRemoved(files)
	logger.Info("Checking pull request files",
		slog.Int("files", len(files)),
		slog.Int("removed_skipped", removed),
	)

	result, err := g.validator.Validate(ctx, files, g.config.Patterns)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	outcome := &Outcome{
		RunID:          runID,
		Result:         result,
		RemovedSkipped: removed,
	}

	if result.Clean() {
		g.reportClean(ctx, logger, outcome)
	} else {
		outcome.Failed = true
		outcome.Report = eol.RenderReport(result.ErrorFiles, g.config.HeadBranch)
		g.reportFailure(ctx, logger, outcome)
	}

	outcome.Duration = g.now().Sub(start)
	span.SetAttributes(
		attribute.Bool("gate.failed", outcome.Failed),
		attribute.Int("gate.crlf_files", len(result.ErrorFiles)),
		attribute.Int("gate.reporting_errors", len(outcome.ReportingErrors)),
	)

	logger.Info("Check complete",
		slog.Bool("passed", !outcome.Failed),
		slog.Int("crlf_files", len(result.ErrorFiles)),
		slog.Int("inspected", result.Inspected),
		slog.Int("excluded", result.Excluded),
		slog.Int("fetch_failures", len(result.Failures)),
		slog.Duration("duration", outcome.Duration),
	)
	return outcome, nil
}

func (g *Gate) filterRemoved(files []eol.ChangedFile) ([]eol.ChangedFile, int) {
	if g.config.IncludeRemoved {
		return files, 0
	}
	kept := make([]eol.ChangedFile, 0, len(files))
	for _, f := range files {
		if f.Status == eol.StatusRemoved {
			continue
		}
		kept = append(kept, f)
	}
	return kept, len(files) - len(kept)
}

func (g *Gate) reportFailure(ctx context.Context, logger *slog.Logger, outcome *Outcome) {
	if g.sink == nil {
		return
	}

	if err := g.sink.PostComment(ctx, outcome.Report); err != nil {
		outcome.addReportingError(logger, OpPostComment, err)
	} else {
		outcome.CommentPosted = true
	}

	if g.config.Label == "" {
		return
	}
	if err := g.sink.AddLabel(ctx, g.config.Label); err != nil {
		outcome.addReportingError(logger, OpAddLabel, err)
	} else {
		outcome.LabelAdded = true
	}
}

func (g *Gate) reportClean(ctx context.Context, logger *slog.Logger, outcome *Outcome) {
	if g.sink == nil || g.config.Label == "" {
		return
	}

	err := g.sink.RemoveLabel(ctx, g.config.Label)
	switch {
	case err == nil:
		outcome.LabelRemoved = true
	case errors.Is(err, ErrLabelNotFound):
		logger.Debug("Label not present", slog.String("label", g.config.Label))
	default:
		outcome.addReportingError(logger, OpRemoveLabel, err)
	}
}
