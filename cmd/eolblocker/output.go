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

	"github.com/AleutianAI/eolblocker/pkg/ux"
	"github.com/AleutianAI/eolblocker/services/eol"
	"github.com/AleutianAI/eolblocker/services/gate"
)

// printOutcome writes the terminal summary of a pull request check.
func printOutcome(p *ux.Printer, outcome *gate.Outcome) {
	p.Title("EOL Blocker")
	printResult(p, outcome.Result)

	if outcome.Failed {
		p.Box("Report", outcome.Report, true)
	}
	for _, re := range outcome.ReportingErrors {
		p.Warning("Could not publish result: " + re.Error())
	}

	p.Counts(
		ux.CountPair{Label: "inspected", Value: outcome.Result.Inspected},
		ux.CountPair{Label: "excluded", Value: outcome.Result.Excluded},
		ux.CountPair{Label: "removed", Value: outcome.RemovedSkipped},
		ux.CountPair{Label: "crlf", Value: len(outcome.Result.ErrorFiles)},
	)
}

// printResult writes the verdict and file lists shared by check and scan.
func printResult(p *ux.Printer, result *eol.ValidationResult) {
	if result.Clean() {
		p.Success("No CRLF line endings found")
	} else {
		p.Error(fmt.Sprintf("%d file(s) contain CRLF line endings", len(result.ErrorFiles)))
		for _, f := range result.ErrorFiles {
			p.Item(f, "")
		}
	}

	if result.HasFailures() {
		p.Warning(fmt.Sprintf("%d file(s) not inspected", len(result.Failures)))
		for _, f := range result.Failures {
			p.Item(f.Filename, f.Message)
		}
	}
}
