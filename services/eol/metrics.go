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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for eol operations.
var (
	tracer = otel.Tracer("eolblocker.eol")
	meter  = otel.Meter("eolblocker.eol")
)

// Metrics for eol operations.
var (
	fetchLatency   metric.Float64Histogram
	fetchFailures  metric.Int64Counter
	filesInspected metric.Int64Counter
	filesExcluded  metric.Int64Counter
	crlfFiles      metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		fetchLatency, err = meter.Float64Histogram(
			"eol_fetch_duration_seconds",
			metric.WithDescription("Duration of file content retrieval"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fetchFailures, err = meter.Int64Counter(
			"eol_fetch_failures_total",
			metric.WithDescription("Total number of failed content retrievals"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filesInspected, err = meter.Int64Counter(
			"eol_files_inspected_total",
			metric.WithDescription("Total number of files fetched and scanned for CRLF"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filesExcluded, err = meter.Int64Counter(
			"eol_files_excluded_total",
			metric.WithDescription("Total number of files skipped by exclusion patterns"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		crlfFiles, err = meter.Int64Counter(
			"eol_crlf_files_total",
			metric.WithDescription("Total number of files found to contain CRLF"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startValidateSpan creates a span for a validation run.
func startValidateSpan(ctx context.Context, fileCount, patternCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Validator.Validate",
		trace.WithAttributes(
			attribute.Int("eol.file_count", fileCount),
			attribute.Int("eol.pattern_count", patternCount),
		),
	)
}

// setValidateSpanResult sets the result attributes on a validation span.
func setValidateSpanResult(span trace.Span, result *ValidationResult) {
	span.SetAttributes(
		attribute.Int("eol.inspected", result.Inspected),
		attribute.Int("eol.excluded", result.Excluded),
		attribute.Int("eol.crlf_files", len(result.ErrorFiles)),
		attribute.Int("eol.fetch_failures", len(result.Failures)),
		attribute.Int("eol.cached", result.Cached),
	)
}

// startFetchSpan creates a span for a single content retrieval.
func startFetchSpan(ctx context.Context, locator string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "HTTPFetcher.FetchContent",
		trace.WithAttributes(
			attribute.String("eol.locator", locator),
		),
	)
}

// setFetchSpanResult records attempts and outcome on a fetch span.
func setFetchSpanResult(span trace.Span, attempts int, err error) {
	span.SetAttributes(attribute.Int("eol.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// recordFetchMetrics records metrics for one content retrieval.
func recordFetchMetrics(ctx context.Context, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	fetchLatency.Record(ctx, duration.Seconds(), attrs)
	if !success {
		fetchFailures.Add(ctx, 1)
	}
}

// recordValidateMetrics records per-run totals.
func recordValidateMetrics(ctx context.Context, result *ValidationResult) {
	if err := initMetrics(); err != nil {
		return
	}

	filesInspected.Add(ctx, int64(result.Inspected))
	filesExcluded.Add(ctx, int64(result.Excluded))
	crlfFiles.Add(ctx, int64(len(result.ErrorFiles)))
}
