// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gate

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates a nil context or missing dependency.
	ErrInvalidInput = errors.New("invalid input")

	// ErrListFiles indicates the changed-file list could not be obtained.
	ErrListFiles = errors.New("list changed files failed")

	// ErrReporting indicates a comment or label could not be published.
	ErrReporting = errors.New("reporting failed")

	// ErrLabelNotFound is returned by ReportingSink.RemoveLabel when the
	// label is not on the pull request.
	ErrLabelNotFound = errors.New("label not found")
)

// Reporting operations named in ReportingError.
const (
	OpPostComment = "post_comment"
	OpAddLabel    = "add_label"
	OpRemoveLabel = "remove_label"
)

// ReportingError describes a failed publishing step.
type ReportingError struct {
	Op  string
	Err error
}

func (e *ReportingError) Error() string {
	return fmt.Sprintf("reporting %s: %v", e.Op, e.Err)
}

func (e *ReportingError) Unwrap() error { return e.Err }

// Is matches ErrReporting.
func (e *ReportingError) Is(target error) bool { return target == ErrReporting }
