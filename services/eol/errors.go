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
	"errors"
	"fmt"
)

// Sentinel errors for the eol package.
var (
	// ErrInvalidInput indicates a nil context or malformed argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrFetch indicates file content could not be retrieved.
	ErrFetch = errors.New("fetch failed")

	// ErrDecode indicates a content payload could not be decoded.
	ErrDecode = errors.New("decode failed")

	// ErrInvalidPattern indicates a malformed exclusion glob.
	ErrInvalidPattern = errors.New("invalid exclusion pattern")

	// ErrInvalidPatch indicates a unified diff that could not be parsed.
	ErrInvalidPatch = errors.New("invalid patch")
)

// FetchError describes a failed content retrieval.
//
// It matches ErrFetch with errors.Is, and ErrDecode when the payload
// arrived but could not be decoded.
type FetchError struct {
	// Locator is the URL that was requested.
	Locator string

	// StatusCode is the HTTP status, or 0 for transport errors.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// NewFetchError creates a FetchError.
func NewFetchError(locator string, statusCode int, err error) *FetchError {
	return &FetchError{Locator: locator, StatusCode: statusCode, Err: err}
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Locator, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Locator, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports ErrFetch for every FetchError.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

// Retryable reports whether a repeat of the request may succeed.
//
// Transport errors, 429 and 5xx are retryable. Decode errors, malformed
// requests and other 4xx responses are not.
func (e *FetchError) Retryable() bool {
	if errors.Is(e.Err, ErrDecode) || errors.Is(e.Err, ErrInvalidInput) {
		return false
	}
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == 429:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}
