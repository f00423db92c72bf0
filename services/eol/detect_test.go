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
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	crlfFileContents  = "This file has\r\nWindows-style line-endings.\r\n"
	lfFileContents    = "This file has\nUnix-style line-endings.\n"
	mixedFileContents = "This file has both\nWindows-style and \r\nUnix-style line endings.\r\n"
)

func TestContainsCRLF(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty", "", false},
		{"lf only", "a\nb\n", false},
		{"crlf only", crlfFileContents, true},
		{"unix file", lfFileContents, false},
		{"mixed", "a\nb\r\nc\n", true},
		{"mixed fixture", mixedFileContents, true},
		{"bare cr", "a\rb\r", false},
		{"lf then cr", "a\n\rb", false},
		{"crlf at end without newline after", "last line\r\n", true},
		{"single crlf", "\r\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsCRLF(tt.content))
		})
	}
}

func TestContainsCRLF_ConsecutiveCallsKeepNoState(t *testing.T) {
	// A stateful matcher would report false on the second call.
	assert.True(t, ContainsCRLF("first\r\nfile\r\n"))
	assert.True(t, ContainsCRLF("second\r\n"))
	assert.False(t, ContainsCRLF("third\n"))
	assert.True(t, ContainsCRLF("fourth\r\n"))
	assert.True(t, ContainsCRLF("fourth\r\n"))
}

func TestFirstCRLFLine(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"", 0},
		{"a\nb\n", 0},
		{"a\r\n", 1},
		{"a\nb\r\nc\n", 2},
		{"a\nb\nc\nd\r\n", 4},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FirstCRLFLine(tt.content), "content %q", tt.content)
	}
}
