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
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// PatchFinding is a file whose added lines end in CRLF.
type PatchFinding struct {
	// Filename is the new-side path with the "b/" prefix removed.
	Filename string `json:"filename"`

	// Lines are the new-file line numbers of the offending added lines.
	Lines []int `json:"lines"`
}

// ScanPatch finds added lines ending in CRLF in a unified diff.
//
// Description:
//
//	Only lines the patch adds are inspected, so a change that fixes CRLF
//	lines is not reported. Deleted files and paths matched by patterns
//	are skipped. A final added line marked "\ No newline at end of file"
//	ends in a lone CR, which is not a CRLF.
//
// Inputs:
//
//	patch - Unified diff text, as produced by git diff
//	patterns - Exclusion globs; nil selects DefaultPatterns
//
// Outputs:
//
//	[]PatchFinding - Offending files in patch order, never nil
//	error - ErrInvalidPatch if the diff cannot be parsed
func ScanPatch(patch []byte, patterns PatternSet) ([]PatchFinding, error) {
	fileDiffs, err := diff.ParseMultiFileDiff(patch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	// The parser strips CR from every line it reads, so hunk bodies come
	// from the raw patch. Hunks appear in the same order in both.
	raw := strings.Split(string(patch), "\n")
	cursor := 0

	findings := make([]PatchFinding, 0)
	for _, fd := range fileDiffs {
		var lines []int
		for _, h := range fd.Hunks {
			cursor = nextHunkHeader(raw, cursor)
			if cursor == len(raw) {
				return nil, fmt.Errorf("%w: hunk header for %s not found", ErrInvalidPatch, fd.NewName)
			}
			var found []int
			found, cursor = crlfAddedLines(raw, cursor+1, h)
			lines = append(lines, found...)
		}

		name := patchFilename(fd)
		if name == "" || IsExcluded(name, patterns) || len(lines) == 0 {
			continue
		}
		findings = append(findings, PatchFinding{Filename: name, Lines: lines})
	}
	return findings, nil
}

// patchFilename returns the new-side path, or "" for a deletion.
func patchFilename(fd *diff.FileDiff) string {
	name := strings.TrimRight(fd.NewName, "\r")
	if name == "" || name == "/dev/null" {
		return ""
	}
	return strings.TrimPrefix(name, "b/")
}

// nextHunkHeader returns the index of the next "@@" line at or after i,
// or len(raw).
func nextHunkHeader(raw []string, i int) int {
	for ; i < len(raw); i++ {
		if strings.HasPrefix(raw[i], "@@ ") {
			return i
		}
	}
	return len(raw)
}

// crlfAddedLines reads the body of h from raw starting at i. It returns
// the new-file line numbers of added lines ending in CRLF and the index
// just past the body.
func crlfAddedLines(raw []string, i int, h *diff.Hunk) ([]int, int) {
	var lines []int
	orig, added := h.OrigLines, h.NewLines
	newLine := int(h.NewStartLine)

	for ; i < len(raw) && (orig > 0 || added > 0); i++ {
		line := raw[i]
		if line == "" || line == "\r" {
			// Context line whose leading space was trimmed.
			orig--
			added--
			newLine++
			continue
		}
		switch line[0] {
		case '+':
			// A line followed by "\ No newline at end of file" has no LF,
			// so a trailing CR there is a lone CR.
			noEOL := i+1 < len(raw) && strings.HasPrefix(raw[i+1], `\`)
			if strings.HasSuffix(line, "\r") && !noEOL {
				lines = append(lines, newLine)
			}
			added--
			newLine++
		case '-':
			orig--
		case ' ':
			orig--
			added--
			newLine++
		case '\\':
		default:
			return lines, i
		}
	}
	return lines, i
}
