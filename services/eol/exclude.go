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

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludePattern skips common image formats.
const DefaultExcludePattern = "**/**.{png,jpg,jpeg,gif,bmp}"

// PatternListSeparator separates globs in the excludeFiles setting.
const PatternListSeparator = ";"

// PatternSet is an ordered list of doublestar glob patterns.
type PatternSet []string

// DefaultPatterns returns the built-in exclusion set.
//
// A fresh slice is returned on every call so callers may append to it.
func DefaultPatterns() PatternSet {
	return PatternSet{DefaultExcludePattern}
}

// orDefault substitutes the default set for an empty one.
func (p PatternSet) orDefault() PatternSet {
	if len(p) == 0 {
		return DefaultPatterns()
	}
	return p
}

// ParsePatternList splits a semicolon-delimited pattern string.
//
// Description:
//
//	Whitespace around each entry is trimmed and empty entries are dropped,
//	so "a;;b; " yields [a b]. An empty or blank input yields nil, which
//	IsExcluded treats as the default set.
//
// Inputs:
//
//	s - The raw configuration value (e.g., "**/**.png;docs/**")
//
// Outputs:
//
//	PatternSet - The parsed patterns, or nil
func ParsePatternList(s string) PatternSet {
	var out PatternSet
	for _, part := range strings.Split(s, PatternListSeparator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ValidatePatterns checks every pattern for glob syntax errors.
//
// Returns an error wrapping ErrInvalidPattern naming the first bad pattern.
func ValidatePatterns(patterns PatternSet) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
	}
	return nil
}

// IsExcluded reports whether path matches any exclusion pattern.
//
// Description:
//
//	Uses doublestar semantics: '*' matches within a path segment, '**'
//	matches across segments, and '{a,b}' is an alternation group. Matching
//	is case-sensitive and runs against the full repository-relative path
//	using '/' separators regardless of OS.
//
//	An empty or nil patterns argument means DefaultPatterns. Caller patterns
//	replace the default set; they are never merged with it.
//
// Inputs:
//
//	path - Repository-relative file path (e.g., "docs/img/logo.png")
//	patterns - Exclusion globs, or nil for the default set
//
// Outputs:
//
//	bool - True if the file must be skipped
//
// Thread Safety: Safe for concurrent use.
func IsExcluded(path string, patterns PatternSet) bool {
	for _, pattern := range patterns.orDefault() {
		// Match only errors on malformed patterns; those never match.
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}
