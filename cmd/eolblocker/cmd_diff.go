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
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/eolblocker/pkg/ux"
	"github.com/AleutianAI/eolblocker/services/eol"
)

func newDiffCmd(env *environment) *cobra.Command {
	var exclude string
	cmd := &cobra.Command{
		Use:   "diff [patch-file|-]",
		Short: "Check the added lines of a unified diff for CRLF",
		Long: `Check a unified diff for added lines that end in CRLF.

Only lines the patch adds are inspected, so a patch that converts a file
to LF passes. Reads standard input when no file (or "-") is given, which
makes it usable as a pre-push hook.

Examples:
  git diff --cached | eolblocker diff
  git diff origin/main... > change.patch && eolblocker diff change.patch

Exit Codes:
  0 = No added CRLF lines
  1 = At least one added line ends in CRLF
  2 = Error (bad pattern, unreadable or malformed patch)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runDiff(env, path, exclude)
		},
	}
	cmd.Flags().StringVar(&exclude, "exclude", "",
		"Semicolon-separated exclusion globs (replaces the default image patterns)")
	return cmd
}

func runDiff(env *environment, path, exclude string) error {
	patterns := eol.ParsePatternList(exclude)
	if err := eol.ValidatePatterns(patterns); err != nil {
		return &ExitError{Code: CLIExitError, Err: err}
	}

	var (
		patch []byte
		err   error
	)
	if path == "-" {
		patch, err = io.ReadAll(env.stdin)
	} else {
		patch, err = os.ReadFile(path)
	}
	if err != nil {
		return &ExitError{Code: CLIExitError, Err: fmt.Errorf("read patch: %w", err)}
	}

	findings, err := eol.ScanPatch(patch, patterns)
	if err != nil {
		return &ExitError{Code: CLIExitError, Err: err}
	}

	p := ux.NewPrinter(env.stdout)
	if len(findings) == 0 {
		p.Success("No added lines end in CRLF")
		return nil
	}

	lines := 0
	p.Error("Added lines end in CRLF:")
	for _, f := range findings {
		p.Item(f.Filename, "lines "+joinInts(f.Lines))
		lines += len(f.Lines)
	}
	p.Counts(
		ux.CountPair{Label: "files", Value: len(findings)},
		ux.CountPair{Label: "lines", Value: lines},
	)
	return &ExitError{Code: CLIExitFindings, Err: fmt.Errorf("%d file(s) add CRLF lines", len(findings))}
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
