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
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// MaxRetryAttempts caps RetryConfig.MaxAttempts.
const MaxRetryAttempts = 5

// RetryConfig bounds repeated fetch attempts.
//
// The zero value and DefaultRetryConfig both mean a single attempt.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts including the first.
	// Values below 1 are treated as 1; values above MaxRetryAttempts are
	// rejected by Validate.
	// Default: 1
	MaxAttempts int

	// InitialBackoff is the wait before the first retry.
	// Default: 500ms
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between retries.
	// Default: 5s
	MaxBackoff time.Duration

	// BackoffFactor multiplies the wait after each retry.
	// Default: 2.0
	BackoffFactor float64

	// JitterFactor is the maximum jitter as a fraction of backoff (0-1).
	// Default: 0.2
	JitterFactor float64
}

// DefaultRetryConfig returns a single-attempt configuration with sane
// backoff values for when MaxAttempts is raised.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    1,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
		JitterFactor:   0.2,
	}
}

// Validate checks the retry configuration.
func (c RetryConfig) Validate() error {
	if c.MaxAttempts > MaxRetryAttempts {
		return fmt.Errorf("%w: max attempts %d exceeds %d", ErrInvalidInput, c.MaxAttempts, MaxRetryAttempts)
	}
	if c.MaxAttempts > 1 {
		if c.InitialBackoff <= 0 {
			return fmt.Errorf("%w: initial backoff must be positive", ErrInvalidInput)
		}
		if c.MaxBackoff < c.InitialBackoff {
			return fmt.Errorf("%w: max backoff below initial backoff", ErrInvalidInput)
		}
		if c.BackoffFactor < 1.0 {
			return fmt.Errorf("%w: backoff factor below 1", ErrInvalidInput)
		}
	}
	return nil
}

// attempts returns MaxAttempts clamped to [1, MaxRetryAttempts].
func (c RetryConfig) attempts() int {
	switch {
	case c.MaxAttempts < 1:
		return 1
	case c.MaxAttempts > MaxRetryAttempts:
		return MaxRetryAttempts
	default:
		return c.MaxAttempts
	}
}

// retryableFunc performs one attempt.
type retryableFunc func(ctx context.Context, attempt int) error

// isRetryable reports whether err warrants another attempt.
func isRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	return false
}

// retry runs fn until it succeeds, returns a non-retryable error, the
// context ends, or the attempt budget is spent. It returns the number of
// attempts made and the last error.
func retry(ctx context.Context, config RetryConfig, fn retryableFunc) (int, error) {
	maxAttempts := config.attempts()
	backoff := config.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}
		if !isRetryable(lastErr) || attempt == maxAttempts {
			return attempt, lastErr
		}

		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(calculateBackoff(backoff, config.JitterFactor)):
		}

		backoff = nextBackoff(backoff, config.BackoffFactor, config.MaxBackoff)
	}
	return maxAttempts, lastErr
}

// calculateBackoff applies +/- jitter to base.
func calculateBackoff(base time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return base
	}
	jitter := (rand.Float64()*2 - 1) * jitterFactor
	return time.Duration(float64(base) * (1.0 + jitter))
}

// nextBackoff grows current by factor, capped at max.
func nextBackoff(current time.Duration, factor float64, max time.Duration) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		return max
	}
	return next
}
