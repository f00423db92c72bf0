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
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/AleutianAI/eolblocker/services/eol"
)

// Outcome is the result of one Gate.Run.
type Outcome struct {
	// RunID identifies the run in logs.
	RunID string `json:"run_id"`

	// Result is the validator's verdict.
	Result *eol.ValidationResult `json:"result"`

	// Failed is true when at least one file contains CRLF.
	Failed bool `json:"failed"`

	// Report is the rendered comment body; empty when the run passed.
	Report string `json:"report,omitempty"`

	// RemovedSkipped counts deleted files that were not inspected.
	RemovedSkipped int `json:"removed_skipped"`

	CommentPosted bool `json:"comment_posted"`
	LabelAdded    bool `json:"label_added"`
	LabelRemoved  bool `json:"label_removed"`

	// ReportingErrors holds publishing failures. They never affect Failed.
	ReportingErrors []*ReportingError `json:"-"`

	Duration time.Duration `json:"duration"`
}

func (o *Outcome) addReportingError(logger *slog.Logger, op string, err error) {
	re := &ReportingError{Op: op, Err: err}
	o.ReportingErrors = append(o.ReportingErrors, re)
	logger.Warn("Could not publish result",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// ActionOutput is a single GitHub Actions step output.
type ActionOutput struct {
	Name  string
	Value string
}

// ActionOutputs returns the step outputs for this outcome, in a fixed order:
// passed, crlf_count, crlf_files. crlf_files is a JSON array.
func (o *Outcome) ActionOutputs() []ActionOutput {
	files := []string{}
	if o.Result != nil && o.Result.ErrorFiles != nil {
		files = o.Result.ErrorFiles
	}
	encoded, err := json.Marshal(files)
	if err != nil {
		encoded = []byte("[]")
	}
	return []ActionOutput{
		{Name: "passed", Value: strconv.FormatBool(!o.Failed)},
		{Name: "crlf_count", Value: strconv.Itoa(len(files))},
		{Name: "crlf_files", Value: string(encoded)},
	}
}
