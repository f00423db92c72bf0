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

// =============================================================================
// FILE STATUS
// =============================================================================

// FileStatus is the platform's change status for a pull request file.
//
// It is carried through validation untouched; detection does not depend on it.
type FileStatus string

const (
	StatusAdded     FileStatus = "added"
	StatusModified  FileStatus = "modified"
	StatusRemoved   FileStatus = "removed"
	StatusRenamed   FileStatus = "renamed"
	StatusCopied    FileStatus = "copied"
	StatusChanged   FileStatus = "changed"
	StatusUnchanged FileStatus = "unchanged"
)

// =============================================================================
// CHANGED FILE
// =============================================================================

// ChangedFile is one file touched by a pull request.
//
// Thread Safety: Immutable after creation.
type ChangedFile struct {
	// Filename is the repository-relative path, unique within a pull request.
	Filename string `json:"filename"`

	// ContentLocator is the URL used to retrieve the file's stored bytes.
	// Either a raw-content URL or a contents-API URL.
	ContentLocator string `json:"content_locator"`

	// Status is the platform change status.
	Status FileStatus `json:"status,omitempty"`

	// SHA is the blob SHA reported by the platform, if any.
	SHA string `json:"sha,omitempty"`
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// FileFailure records a file whose content could not be inspected.
type FileFailure struct {
	// Filename is the file that failed.
	Filename string `json:"filename"`

	// Err is the fetch error.
	Err error `json:"-"`

	// Message is Err rendered as text for serialisation.
	Message string `json:"message"`
}

// ValidationResult is the outcome of one validation run.
//
// Thread Safety: Immutable after Validate returns.
type ValidationResult struct {
	// ErrorFiles are the filenames whose content contains CRLF, in input order.
	ErrorFiles []string `json:"error_files"`

	// Failures are files that could not be fetched. They are neither clean
	// nor offending.
	Failures []FileFailure `json:"failures,omitempty"`

	// Inspected is the number of files fetched and scanned.
	Inspected int `json:"inspected"`

	// Excluded is the number of files skipped by exclusion patterns.
	Excluded int `json:"excluded"`

	// Cached is the number of inspected files whose verdict came from a
	// VerdictCache instead of a fetch.
	Cached int `json:"cached,omitempty"`
}

// Clean returns true if no file contains CRLF.
func (r *ValidationResult) Clean() bool {
	return len(r.ErrorFiles) == 0
}

// HasFailures returns true if any file could not be fetched.
func (r *ValidationResult) HasFailures() bool {
	return len(r.Failures) > 0
}
