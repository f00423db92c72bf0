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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/eolblocker/services/eol"
)

func newRenderCmd(env *environment) *cobra.Command {
	var branch string
	cmd := &cobra.Command{
		Use:   "render --branch BRANCH file...",
		Short: "Print the pull request comment for the given files",
		Long: `Print the Markdown comment eolblocker posts on a failing pull request,
for previewing the wording.

Example:
  eolblocker render --branch patch-1 test.md subfolder/test2.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(env.stdout, eol.RenderReport(args, branch))
			return err
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "Head branch name used in the fix commands")
	_ = cmd.MarkFlagRequired("branch")
	return cmd
}
