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
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/AleutianAI/eolblocker/cmd/eolblocker/config"
	"github.com/AleutianAI/eolblocker/services/gate"
)

// publishActionResults writes the job summary and step outputs when the
// runner provides their files. Failures are logged; they never change the
// verdict.
func publishActionResults(cfg *config.Config, outcome *gate.Outcome, logger *slog.Logger) {
	if path := cfg.GitHub.StepSummary; path != "" {
		if err := appendFile(path, stepSummary(outcome)); err != nil {
			logger.Warn("Could not write job summary", slog.String("error", err.Error()))
		}
	}
	if path := cfg.GitHub.OutputPath; path != "" {
		if err := appendFile(path, formatOutputs(outcome.ActionOutputs())); err != nil {
			logger.Warn("Could not write step outputs", slog.String("error", err.Error()))
		}
	}
}

// stepSummary renders the Markdown appended to GITHUB_STEP_SUMMARY.
func stepSummary(outcome *gate.Outcome) string {
	var sb strings.Builder
	sb.WriteString("## EOL Blocker\n\n")
	if outcome.Failed {
		sb.WriteString(outcome.Report)
		if !strings.HasSuffix(outcome.Report, "\n") {
			sb.WriteString("\n")
		}
	} else {
		fmt.Fprintf(&sb, "No CRLF line endings found in %d inspected file(s).\n", outcome.Result.Inspected)
	}
	if failures := outcome.Result.Failures; len(failures) > 0 {
		sb.WriteString("\n**Not inspected** (content could not be fetched):\n\n")
		for _, f := range failures {
			fmt.Fprintf(&sb, "- `%s`\n", f.Filename)
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

// formatOutputs renders step outputs in the GITHUB_OUTPUT file format.
// Multi-line values use a random heredoc delimiter.
func formatOutputs(outputs []gate.ActionOutput) string {
	var sb strings.Builder
	for _, o := range outputs {
		if !strings.ContainsAny(o.Value, "\r\n") {
			fmt.Fprintf(&sb, "%s=%s\n", o.Name, o.Value)
			continue
		}
		delimiter := "ghadelimiter_" + uuid.NewString()
		fmt.Fprintf(&sb, "%s<<%s\n%s\n%s\n", o.Name, delimiter, o.Value, delimiter)
	}
	return sb.String()
}

func appendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
