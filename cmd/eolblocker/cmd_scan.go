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
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/eolblocker/pkg/logging"
	"github.com/AleutianAI/eolblocker/pkg/ux"
	"github.com/AleutianAI/eolblocker/pkg/watch"
	"github.com/AleutianAI/eolblocker/services/eol"
)

type scanOptions struct {
	exclude     string
	concurrency int
	watch       bool
	debounce    time.Duration
}

func newScanCmd(env *environment, root *rootOptions) *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan [path...]",
		Short: "Scan local files for CRLF line endings",
		Long: `Scan files in the working tree with the same exclusion rules as check.

Directories are walked recursively; .git is skipped. With no arguments the
current directory is scanned as the repository root. No GitHub access or
token is needed.

Files are only read, never rewritten. --watch keeps running and rescans
files as they change.

Examples:
  eolblocker scan
  eolblocker scan docs README.md --exclude "**/*.svg;vendor/**"
  eolblocker scan --watch docs

Exit Codes:
  0 = No CRLF line endings found
  1 = At least one file contains CRLF
  2 = Error (bad pattern, unreadable path)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), env, root, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.exclude, "exclude", "",
		"Semicolon-separated exclusion globs (replaces the default image patterns)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", eol.DefaultConcurrency,
		"Number of files read in parallel")
	cmd.Flags().BoolVar(&opts.watch, "watch", false,
		"Rescan files as they change until interrupted")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 200*time.Millisecond,
		"Quiet period before a --watch rescan")
	return cmd
}

func runScan(ctx context.Context, env *environment, root *rootOptions, opts *scanOptions, args []string) error {
	patterns := eol.ParsePatternList(opts.exclude)
	if err := eol.ValidatePatterns(patterns); err != nil {
		return &ExitError{Code: CLIExitError, Err: err}
	}

	level, err := logging.ParseLevel(root.logLevel)
	if err != nil {
		return &ExitError{Code: CLIExitError, Err: err}
	}
	if root.logLevel == "" {
		level = logging.LevelWarn
	}
	logger := logging.New(logging.Config{Level: level, Service: serviceName, JSON: root.jsonLogs, Output: env.stderr})
	defer logger.Close()

	if len(args) == 0 {
		args = []string{"."}
	}
	files, err := collectLocalFiles(args)
	if err != nil {
		return &ExitError{Code: CLIExitError, Err: err}
	}

	v := eol.NewValidator(fileFetcher{}, eol.WithConcurrency(opts.concurrency), eol.WithLogger(logger.Slog()))
	p := ux.NewPrinter(env.stdout)

	result, err := scanFiles(ctx, p, v, files, patterns)
	if err != nil {
		return &ExitError{Code: CLIExitError, Err: err}
	}

	if opts.watch {
		return watchScan(ctx, p, v, args, patterns, opts, logger.Slog())
	}
	if result.Clean() {
		return nil
	}
	return &ExitError{Code: CLIExitFindings, Err: fmt.Errorf("%d file(s) contain CRLF line endings", len(result.ErrorFiles))}
}

// scanFiles validates files and prints the verdict and counts.
func scanFiles(ctx context.Context, p *ux.Printer, v *eol.Validator, files []eol.ChangedFile, patterns eol.PatternSet) (*eol.ValidationResult, error) {
	result, err := v.Validate(ctx, files, patterns)
	if err != nil {
		return nil, err
	}
	printResult(p, result)
	p.Counts(
		ux.CountPair{Label: "inspected", Value: result.Inspected},
		ux.CountPair{Label: "excluded", Value: result.Excluded},
		ux.CountPair{Label: "crlf", Value: len(result.ErrorFiles)},
	)
	return result, nil
}

// =============================================================================
// --watch
// =============================================================================

// watchScan rescans changed files until interrupted. Findings never end
// the loop, so the exit code is 0 unless watching fails.
func watchScan(ctx context.Context, p *ux.Printer, v *eol.Validator, args []string, patterns eol.PatternSet, opts *scanOptions, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	base := scanBase(args)
	w, err := watch.New(func(paths []string) {
		files := changedLocalFiles(base, paths)
		if len(files) == 0 {
			return
		}
		p.Status(ux.IconBullet, fmt.Sprintf("Rescanning %d changed file(s)", len(files)))
		if _, err := scanFiles(ctx, p, v, files, patterns); err != nil && ctx.Err() == nil {
			logger.Warn("Rescan failed", slog.String("error", err.Error()))
		}
	}, watch.Options{Debounce: opts.debounce, Logger: logger})
	if err != nil {
		return &ExitError{Code: CLIExitError, Err: err}
	}
	for _, arg := range args {
		if err := w.Add(arg); err != nil {
			return &ExitError{Code: CLIExitError, Err: fmt.Errorf("watch %s: %w", arg, err)}
		}
	}

	p.Status(ux.IconBullet, "Watching for changes (Ctrl+C to stop)")
	return w.Run(ctx)
}

// changedLocalFiles turns watch paths into changed files, dropping paths
// that were removed or are not regular files.
func changedLocalFiles(base string, paths []string) []eol.ChangedFile {
	files := make([]eol.ChangedFile, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, localFile(base, path))
	}
	return files
}

// collectLocalFiles expands args into changed files in a stable order.
//
// A single directory argument is treated as the repository root, so
// filenames are relative to it and exclusion globs match as they would on
// GitHub. With several arguments, filenames are relative to the working
// directory. Filenames always use '/' separators.
func collectLocalFiles(args []string) ([]eol.ChangedFile, error) {
	base := scanBase(args)

	var files []eol.ChangedFile
	add := func(path string) {
		files = append(files, localFile(base, path))
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		for _, path := range found {
			add(path)
		}
	}
	return files, nil
}

// scanBase returns the directory filenames are made relative to.
func scanBase(args []string) string {
	if len(args) == 1 {
		if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
			return args[0]
		}
	}
	return "."
}

// localFile names path relative to base when it lies below it.
func localFile(base, path string) eol.ChangedFile {
	name := filepath.Clean(path)
	if rel, err := filepath.Rel(base, path); err == nil && !strings.HasPrefix(rel, "..") {
		name = rel
	}
	return eol.ChangedFile{
		Filename:       filepath.ToSlash(name),
		ContentLocator: path,
		Status:         eol.StatusModified,
	}
}

// fileFetcher reads content from the local filesystem. The locator is
// the file path.
type fileFetcher struct{}

func (fileFetcher) FetchContent(ctx context.Context, locator string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(locator)
	if err != nil {
		return "", eol.NewFetchError(locator, 0, err)
	}
	return string(data), nil
}
