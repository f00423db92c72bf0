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
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// CONTENT FETCHER
// =============================================================================

// ContentFetcher retrieves the stored bytes of a single file.
//
// Implementations must return content exactly as held by the hosting
// platform, without line-ending normalisation.
type ContentFetcher interface {
	// FetchContent returns the file content at locator.
	// Errors wrap ErrFetch.
	FetchContent(ctx context.Context, locator string) (string, error)
}

// HTTPClient is the subset of *http.Client used by HTTPFetcher.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultMaxContentBytes is the largest file the fetcher will read (100 MiB,
// the hosting platform's own per-file ceiling).
const DefaultMaxContentBytes = 100 << 20

// FetcherConfig configures an HTTPFetcher.
type FetcherConfig struct {
	// Token is sent as a bearer token when non-empty.
	Token string

	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// HTTPClient performs requests. Default: a client with Timeout.
	HTTPClient HTTPClient

	// Timeout bounds each request when HTTPClient is nil.
	// Default: 30s
	Timeout time.Duration

	// Retry bounds repeated attempts. Default: single attempt.
	Retry RetryConfig

	// RequestsPerSecond paces outgoing requests. Zero disables pacing.
	RequestsPerSecond float64

	// MaxContentBytes caps the size of a fetched file.
	// Default: DefaultMaxContentBytes
	MaxContentBytes int64
}

// HTTPFetcher fetches file content over HTTP.
//
// Description:
//
//	Two locator shapes are understood. Contents-API URLs
//	(".../repos/{owner}/{repo}/contents/{path}") return JSON with base64
//	content, which is decoded. Any other URL is treated as raw content and
//	returned byte for byte.
//
// Thread Safety: Safe for concurrent use.
type HTTPFetcher struct {
	client    HTTPClient
	token     string
	userAgent string
	retry     RetryConfig
	limiter   *rate.Limiter
	maxBytes  int64
}

// NewHTTPFetcher creates a fetcher from config.
func NewHTTPFetcher(config FetcherConfig) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    config.HTTPClient,
		token:     config.Token,
		userAgent: config.UserAgent,
		retry:     config.Retry,
		maxBytes:  config.MaxContentBytes,
	}
	if f.client == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		f.client = &http.Client{Timeout: timeout}
	}
	if f.userAgent == "" {
		f.userAgent = "eolblocker"
	}
	if f.maxBytes <= 0 {
		f.maxBytes = DefaultMaxContentBytes
	}
	if config.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return f
}

// contentsPayload is the contents-API response for a file.
type contentsPayload struct {
	Type        string `json:"type"`
	Encoding    string `json:"encoding"`
	Content     string `json:"content"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}

// FetchContent retrieves and, if needed, decodes the content at locator.
//
// Description:
//
//	Performs up to Retry.MaxAttempts requests. Retries happen only for
//	transport errors, 429 and 5xx responses. Decode errors are final.
//
// Inputs:
//
//	ctx - Context for cancellation
//	locator - Raw-content URL or contents-API URL
//
// Outputs:
//
//	string - The stored file content
//	error - *FetchError on failure
//
// Thread Safety: Safe for concurrent use.
func (f *HTTPFetcher) FetchContent(ctx context.Context, locator string) (string, error) {
	if ctx == nil {
		return "", fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if locator == "" {
		return "", NewFetchError(locator, 0, fmt.Errorf("%w: empty locator", ErrInvalidInput))
	}

	ctx, span := startFetchSpan(ctx, locator)
	defer span.End()
	start := time.Now()

	var content string
	attempts, err := retry(ctx, f.retry, func(ctx context.Context, _ int) error {
		var fetchErr error
		content, fetchErr = f.fetchOnce(ctx, locator)
		return fetchErr
	})

	setFetchSpanResult(span, attempts, err)
	recordFetchMetrics(ctx, time.Since(start), err == nil)

	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = NewFetchError(locator, 0, err)
		}
		return "", err
	}
	return content, nil
}

// fetchOnce performs a single retrieval, following a contents-API
// download_url when the file was too large to inline.
func (f *HTTPFetcher) fetchOnce(ctx context.Context, locator string) (string, error) {
	api := isContentsAPI(locator)

	body, err := f.get(ctx, locator, api)
	if err != nil {
		return "", err
	}
	if !api {
		return string(body), nil
	}

	var payload contentsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", NewFetchError(locator, 0, fmt.Errorf("%w: %v", ErrDecode, err))
	}
	if payload.Type != "" && payload.Type != "file" {
		return "", NewFetchError(locator, 0, fmt.Errorf("%w: entry is a %s, not a file", ErrDecode, payload.Type))
	}

	switch payload.Encoding {
	case "base64":
		decoded, err := decodeBase64(payload.Content)
		if err != nil {
			return "", NewFetchError(locator, 0, fmt.Errorf("%w: %v", ErrDecode, err))
		}
		return string(decoded), nil
	case "none", "":
		if payload.Content == "" && payload.DownloadURL != "" {
			raw, err := f.get(ctx, payload.DownloadURL, false)
			if err != nil {
				return "", err
			}
			return string(raw), nil
		}
		return payload.Content, nil
	default:
		return "", NewFetchError(locator, 0, fmt.Errorf("%w: unsupported encoding %q", ErrDecode, payload.Encoding))
	}
}

// get issues one GET request and returns the body of a 2xx response.
func (f *HTTPFetcher) get(ctx context.Context, locator string, api bool) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, NewFetchError(locator, 0, fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	if api {
		req.Header.Set("Accept", "application/vnd.github+json")
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, NewFetchError(locator, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, NewFetchError(locator, resp.StatusCode,
			fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(snippet))))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, NewFetchError(locator, resp.StatusCode, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, NewFetchError(locator, resp.StatusCode,
			fmt.Errorf("content exceeds %d bytes", f.maxBytes))
	}
	return body, nil
}

// isContentsAPI reports whether locator addresses the contents API.
func isContentsAPI(locator string) bool {
	u, err := url.Parse(locator)
	if err != nil {
		return false
	}
	return strings.Contains(u.Path, "/repos/") && strings.Contains(u.Path, "/contents/")
}

// decodeBase64 decodes API content, which arrives wrapped at 60 columns.
func decodeBase64(s string) ([]byte, error) {
	s = strings.NewReplacer("\n", "", "\r", "").Replace(s)
	return base64.StdEncoding.DecodeString(s)
}
