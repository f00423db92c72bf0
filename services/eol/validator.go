// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eol

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of simultaneous fetches.
const DefaultConcurrency = 4

// MaxConcurrency caps WithConcurrency.
const MaxConcurrency = 32

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator checks a batch of changed files for CRLF line endings.
//
// Description:
//
//	Applies the exclusion filter, fetches every remaining file once, and
//	collects the names of files containing CRLF. A file whose content
//	cannot be fetched is logged and recorded as a failure; the batch goes on.
//
// Thread Safety: Safe for concurrent use.
type Validator struct {
	fetcher     ContentFetcher
	cache       VerdictCache
	concurrency int
	logger      *slog.Logger
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithConcurrency sets the maximum number of simultaneous fetches.
// Values are clamped to [1, MaxConcurrency].
func WithConcurrency(n int) ValidatorOption {
	return func(v *Validator) {
		switch {
		case n < 1:
			v.concurrency = 1
		case n > MaxConcurrency:
			v.concurrency = MaxConcurrency
		default:
			v.concurrency = n
		}
	}
}

// WithLogger sets the logger for per-file verdicts and warnings.
func WithLogger(logger *slog.Logger) ValidatorOption {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithVerdictCache consults c before fetching a file with a known blob SHA,
// and records fresh verdicts in it.
func WithVerdictCache(c VerdictCache) ValidatorOption {
	return func(v *Validator) { v.cache = c }
}

// NewValidator creates a validator that reads content through fetcher.
func NewValidator(fetcher ContentFetcher, opts ...ValidatorOption) *Validator {
	v := &Validator{
		fetcher:     fetcher,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// fileOutcome is the per-index result slot written by one worker.
type fileOutcome struct {
	inspected bool
	cached    bool
	crlf      bool
	err       error
}

// Validate returns the files in the batch that contain CRLF.
//
// Description:
//
//	Files are considered in input order. Excluded files are never fetched.
//	A filename that appears more than once is inspected only for its first
//	occurrence. Fetches run concurrently, but ErrorFiles follows input
//	order, not completion order.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	files - The pull request's changed files
//	patterns - Exclusion globs; nil or empty means DefaultPatterns
//
// Outputs:
//
//	*ValidationResult - Offending filenames plus fetch failures
//	error - Non-nil only for invalid input or cancellation of the batch
//
// Thread Safety: Safe for concurrent use.
func (v *Validator) Validate(ctx context.Context, files []ChangedFile, patterns PatternSet) (*ValidationResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if v.fetcher == nil {
		return nil, fmt.Errorf("%w: validator has no content fetcher", ErrInvalidInput)
	}

	patterns = patterns.orDefault()
	ctx, span := startValidateSpan(ctx, len(files), len(patterns))
	defer span.End()

	outcomes := make([]fileOutcome, len(files))
	seen := make(map[string]struct{}, len(files))
	result := &ValidationResult{
		ErrorFiles: make([]string, 0),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)

	for i, file := range files {
		if gCtx.Err() != nil {
			break
		}
		if _, dup := seen[file.Filename]; dup {
			v.logger.Debug("Duplicate file entry ignored", slog.String("file", file.Filename))
			continue
		}
		seen[file.Filename] = struct{}{}

		if IsExcluded(file.Filename, patterns) {
			result.Excluded++
			v.logger.Info("File excluded", slog.String("file", file.Filename))
			continue
		}

		i, file := i, file
		g.Go(func() error {
			out, err := v.inspect(gCtx, file)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}

	// Every worker has returned once Wait does; nothing writes to outcomes
	// after this point.
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, out := range outcomes {
		switch {
		case out.err != nil:
			v.logger.Warn("Skipping file: content fetch failed",
				slog.String("file", files[i].Filename),
				slog.String("error", out.err.Error()),
			)
			result.Failures = append(result.Failures, FileFailure{
				Filename: files[i].Filename,
				Err:      out.err,
				Message:  out.err.Error(),
			})
		case out.inspected:
			result.Inspected++
			if out.cached {
				result.Cached++
			}
			if out.crlf {
				result.ErrorFiles = append(result.ErrorFiles, files[i].Filename)
			}
		}
	}

	setValidateSpanResult(span, result)
	recordValidateMetrics(ctx, result)

	return result, nil
}

// inspect produces the outcome for one file. It returns an error only when
// the batch context has ended.
func (v *Validator) inspect(ctx context.Context, file ChangedFile) (fileOutcome, error) {
	useCache := v.cache != nil && file.SHA != ""
	if useCache {
		crlf, found, err := v.cache.Lookup(ctx, file.SHA)
		switch {
		case err != nil:
			v.logger.Debug("Verdict cache lookup failed",
				slog.String("file", file.Filename),
				slog.String("error", err.Error()),
			)
		case found:
			v.logVerdict(file.Filename, crlf, -1, true)
			return fileOutcome{inspected: true, cached: true, crlf: crlf}, nil
		}
	}

	content, err := v.fetcher.FetchContent(ctx, file.ContentLocator)
	if err != nil {
		if ctx.Err() != nil {
			return fileOutcome{}, ctx.Err()
		}
		return fileOutcome{err: err}, nil
	}

	crlf := ContainsCRLF(content)
	line := 0
	if crlf {
		line = FirstCRLFLine(content)
	}
	v.logVerdict(file.Filename, crlf, line, false)

	if useCache {
		if err := v.cache.Store(ctx, file.SHA, crlf); err != nil {
			v.logger.Debug("Verdict cache store failed",
				slog.String("file", file.Filename),
				slog.String("error", err.Error()),
			)
		}
	}
	return fileOutcome{inspected: true, crlf: crlf}, nil
}

func (v *Validator) logVerdict(filename string, crlf bool, firstLine int, cached bool) {
	attrs := []any{slog.String("file", filename)}
	if cached {
		attrs = append(attrs, slog.Bool("cached", true))
	}
	if !crlf {
		v.logger.Info("File has no CRLF", attrs...)
		return
	}
	if firstLine > 0 {
		attrs = append(attrs, slog.Int("first_crlf_line", firstLine))
	}
	v.logger.Info("File contains CRLF", attrs...)
}
