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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pullRequestPaths is a realistic docs pull request file list.
var pullRequestPaths = []string{
	"api-reference/beta/api/linkedresource-delete.md",
	"api-reference/beta/api/linkedresource-get.md",
	"api-reference/beta/api/opentypeextension-post-opentypeextension.md",
	"api-reference/beta/resources/todo.md",
	"api-reference/beta/toc.yml",
	"concepts/images/todo-api-entities.png",
	"concepts/overview-major-services.md",
	"concepts/toc.yml",
	".gitignore",
	"LICENSE",
	"images/image.jpg",
	"README.md",
	"image.jpg",
	"images/image.bmp",
	"images/image.jpeg",
	"images/image.gif",
	"image.PNG",
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func TestIsExcluded_DefaultPatterns(t *testing.T) {
	for _, path := range pullRequestPaths {
		want := containsAny(path, ".png", ".jpg", ".jpeg", ".gif", ".bmp")
		assert.Equal(t, want, IsExcluded(path, nil), "path %q", path)
	}
}

func TestIsExcluded_EmptySetMeansDefault(t *testing.T) {
	assert.True(t, IsExcluded("image.png", PatternSet{}))
	assert.True(t, IsExcluded("image.png", DefaultPatterns()))
	assert.False(t, IsExcluded("doc.md", DefaultPatterns()))
}

func TestIsExcluded_CaseSensitive(t *testing.T) {
	assert.False(t, IsExcluded("IMAGE.PNG", DefaultPatterns()))
	assert.False(t, IsExcluded("image.PNG", nil))
	assert.False(t, IsExcluded("photos/Shot.JPG", nil))
}

func TestIsExcluded_CustomPatternsOverrideDefault(t *testing.T) {
	custom := PatternSet{"**/**.png", "**/**.gif"}

	for _, path := range pullRequestPaths {
		want := containsAny(path, ".png", ".gif")
		assert.Equal(t, want, IsExcluded(path, custom), "path %q", path)
	}

	// jpg is in the default set but not in the override.
	assert.False(t, IsExcluded("images/image.jpg", custom))
}

func TestIsExcluded_GlobSemantics(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"docs/*", "docs/a.md", true},
		{"docs/*", "docs/sub/a.md", false},
		{"docs/**", "docs/sub/a.md", true},
		{"**/*.{md,txt}", "a/b/c.txt", true},
		{"**/*.{md,txt}", "a/b/c.yml", false},
		{"vendor/**", "vendor/x/y/z.go", true},
		{"*.md", "dir/README.md", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"_"+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExcluded(tt.path, PatternSet{tt.pattern}))
		})
	}
}

func TestIsExcluded_MalformedPatternNeverMatches(t *testing.T) {
	assert.False(t, IsExcluded("docs/a.md", PatternSet{"docs/[a"}))
	assert.True(t, IsExcluded("docs/a.md", PatternSet{"docs/[a", "docs/*"}))
}

func TestParsePatternList(t *testing.T) {
	tests := []struct {
		input string
		want  PatternSet
	}{
		{"", nil},
		{"   ", nil},
		{";;", nil},
		{"**/**.png", PatternSet{"**/**.png"}},
		{"**/**.png;**/**.gif", PatternSet{"**/**.png", "**/**.gif"}},
		{" **/**.png ; ; docs/** ", PatternSet{"**/**.png", "docs/**"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePatternList(tt.input))
		})
	}
}

func TestValidatePatterns(t *testing.T) {
	require.NoError(t, ValidatePatterns(DefaultPatterns()))
	require.NoError(t, ValidatePatterns(nil))

	err := ValidatePatterns(PatternSet{"ok/**", "bad/[x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPattern)
	assert.Contains(t, err.Error(), "bad/[x")
}

func TestDefaultPatterns_ReturnsFreshSlice(t *testing.T) {
	p := DefaultPatterns()
	p[0] = "mutated"
	assert.Equal(t, DefaultExcludePattern, DefaultPatterns()[0])
}
