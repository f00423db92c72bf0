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

import "strings"

// crlf is the Windows line terminator.
const crlf = "\r\n"

// ContainsCRLF reports whether content holds at least one CR immediately
// followed by LF.
//
// A single CRLF anywhere is enough, so mixed-ending files are reported.
// The check keeps no state between calls.
func ContainsCRLF(content string) bool {
	return strings.Contains(content, crlf)
}

// FirstCRLFLine returns the 1-based line number of the first CRLF, or 0.
func FirstCRLFLine(content string) int {
	idx := strings.Index(content, crlf)
	if idx < 0 {
		return 0
	}
	return strings.Count(content[:idx], "\n") + 1
}
