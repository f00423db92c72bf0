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
)

const expectedReport = "## EOL Blocker Validation Failed\n" +
	"\n" +
	"The following files in this pull request have Windows-style line endings:\n" +
	"\n" +
	"- test.md\n" +
	"- subfolder/test2.md\n" +
	"\n" +
	"### How to fix\n" +
	"\n" +
	"This is typically caused by uploading files directly to GitHub using the **Add file** -> **Upload files** button on GitHub.com. To fix these errors and unblock your pull request, you will need to use the [git command-line tool](https://git-scm.com/). Note that if you use [GitHub Desktop](https://desktop.github.com/), you may not have git installed. You can check by choosing the **Repository** -> **Open in Command Prompt** menu item. If you are prompted with **Unable to locate Git**, you can choose **Install Git** for instructions.\n" +
	"\n" +
	"With your command-line interface (CLI) open in the root of the repository, run the following commands.\n" +
	"\n" +
	"```\n" +
	"git checkout patch-1\n" +
	"git pull origin\n" +
	"git rm --cached test.md subfolder/test2.md\n" +
	"git add test.md subfolder/test2.md\n" +
	"git commit -a -m \"Fix line endings\"\n" +
	"git push\n" +
	"```\n" +
	"\n" +
	"For assistance, please contact the admins of this repository."

func TestRenderReport_ExactTemplate(t *testing.T) {
	got := RenderReport([]string{"test.md", "subfolder/test2.md"}, "patch-1")
	assert.Equal(t, expectedReport, got)
}

func TestRenderReport_ListsAndJoinsFiles(t *testing.T) {
	got := RenderReport([]string{"a.md", "b.md"}, "patch-1")

	assert.Contains(t, got, "\n- a.md\n- b.md\n\n### How to fix")
	assert.Contains(t, got, "git checkout patch-1\n")
	assert.Contains(t, got, "git rm --cached a.md b.md\n")
	assert.Contains(t, got, "git add a.md b.md\n")
	assert.True(t, strings.HasPrefix(got, ReportHeader))
	assert.True(t, strings.HasSuffix(got, ReportFooter))
}

func TestRenderReport_Idempotent(t *testing.T) {
	files := []string{"a.md", "b.md"}
	first := RenderReport(files, "patch-1")
	second := RenderReport(files, "patch-1")
	assert.Equal(t, first, second)
}

func TestRenderReport_PreservesOrder(t *testing.T) {
	got := RenderReport([]string{"z.md", "a.md"}, "main")
	assert.Contains(t, got, "- z.md\n- a.md\n")
	assert.Contains(t, got, "git add z.md a.md\n")
}

func TestRenderReport_NoEscaping(t *testing.T) {
	got := RenderReport([]string{"my file.md"}, "feature/x y")
	assert.Contains(t, got, "git checkout feature/x y\n")
	assert.Contains(t, got, "git rm --cached my file.md\n")
}
