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

// Fixed report text. Changing any of these changes every posted comment.
const (
	ReportHeader = "## EOL Blocker Validation Failed\n\n" +
		"The following files in this pull request have Windows-style line endings:\n"

	ReportFixIntro = "### How to fix\n\n" +
		"This is typically caused by uploading files directly to GitHub using the " +
		"**Add file** -> **Upload files** button on GitHub.com. To fix these errors and " +
		"unblock your pull request, you will need to use the " +
		"[git command-line tool](https://git-scm.com/). Note that if you use " +
		"[GitHub Desktop](https://desktop.github.com/), you may not have git installed. " +
		"You can check by choosing the **Repository** -> **Open in Command Prompt** menu item. " +
		"If you are prompted with **Unable to locate Git**, you can choose **Install Git** " +
		"for instructions.\n\n" +
		"With your command-line interface (CLI) open in the root of the repository, " +
		"run the following commands."

	ReportFooter = "For assistance, please contact the admins of this repository."
)

// RenderReport builds the pull request comment for the offending files.
//
// Description:
//
//	The output is fully determined by its arguments. Filenames are listed
//	as bullets and joined with single spaces in the git commands, in the
//	order given. Neither filenames nor headBranch are escaped, so a path
//	containing spaces yields commands that must be quoted by hand.
//
// Inputs:
//
//	errorFiles - Offending filenames, in validation order
//	headBranch - The pull request's source branch
//
// Outputs:
//
//	string - Markdown comment body, without a trailing newline
func RenderReport(errorFiles []string, headBranch string) string {
	var sb strings.Builder

	sb.WriteString(ReportHeader)
	sb.WriteString("\n")
	for _, file := range errorFiles {
		sb.WriteString("- ")
		sb.WriteString(file)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString(ReportFixIntro)
	sb.WriteString("\n\n")

	joined := strings.Join(errorFiles, " ")
	sb.WriteString("```\n")
	sb.WriteString("git checkout " + headBranch + "\n")
	sb.WriteString("git pull origin\n")
	sb.WriteString("git rm --cached " + joined + "\n")
	sb.WriteString("git add " + joined + "\n")
	sb.WriteString("git commit -a -m \"Fix line endings\"\n")
	sb.WriteString("git push\n")
	sb.WriteString("```\n\n")

	sb.WriteString(ReportFooter)

	return sb.String()
}
