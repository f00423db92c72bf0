// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command eolblocker fails pull requests that add files with CRLF line
// endings.
//
// Usage:
//
//	eolblocker check              # GitHub Actions step
//	eolblocker serve              # GitHub webhook server
//	eolblocker scan [path...]     # local working tree
//	git diff | eolblocker diff    # added lines of a patch
//	eolblocker render --branch B file...
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/eolblocker/cmd/eolblocker/config"
	"github.com/AleutianAI/eolblocker/pkg/logging"
	"github.com/AleutianAI/eolblocker/pkg/telemetry"
)

// serviceName tags logs, traces and metrics.
const serviceName = "eolblocker"

// environment is the process boundary: variables and standard streams.
type environment struct {
	getenv config.Getenv
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func osEnvironment() *environment {
	return &environment{getenv: os.Getenv, stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
}

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	jsonLogs   bool
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], osEnvironment()))
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, env *environment) int {
	root := newRootCmd(env)
	root.SetArgs(args)
	root.SetOut(env.stdout)
	root.SetErr(env.stderr)

	err := root.ExecuteContext(ctx)
	code := exitCode(err)
	if err != nil && code == CLIExitError {
		fmt.Fprintf(env.stderr, "Error: %v\n", err)
	}
	return code
}

func newRootCmd(env *environment) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "eolblocker",
		Short: "Block pull requests that introduce CRLF line endings",
		Long: `eolblocker inspects the files changed by a pull request and fails the
check when any of them contains a CRLF ("\r\n") line ending.

Offending pull requests get a comment listing the files with instructions
to fix them, and a label that is removed again once the check passes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Path to a YAML config file (optional)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().BoolVar(&opts.jsonLogs, "json", false,
		"Write logs as JSON")

	root.AddCommand(
		newCheckCmd(env, opts),
		newServeCmd(env, opts),
		newScanCmd(env, opts),
		newDiffCmd(env),
		newRenderCmd(env),
	)
	return root
}

// loadConfig reads the config file and environment, applying flag
// overrides. Failures are ExitError-wrapped configuration errors.
func loadConfig(env *environment, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath, env.getenv)
	if err != nil {
		return nil, &ExitError{Code: CLIExitError, Err: err}
	}
	if opts.logLevel != "" {
		if _, err := logging.ParseLevel(opts.logLevel); err != nil {
			return nil, &ExitError{Code: CLIExitError, Err: &config.ConfigurationError{Field: "log-level", Err: err}}
		}
		cfg.Log.Level = opts.logLevel
	}
	if opts.jsonLogs {
		cfg.Log.JSON = true
	}
	return cfg, nil
}

// newLogger builds the process logger. Inside GitHub Actions, warnings
// and errors are also emitted as workflow annotations on stdout.
func newLogger(env *environment, cfg *config.Config) *logging.Logger {
	lc := logging.Config{
		Level:   cfg.LogLevel(),
		LogDir:  cfg.Log.Dir,
		Service: serviceName,
		JSON:    cfg.Log.JSON,
		Output:  env.stderr,
	}
	if env.getenv("GITHUB_ACTIONS") == "true" {
		lc.Exporter = logging.NewActionsExporter(env.stdout)
	}
	return logging.New(lc)
}

// startTelemetry installs providers and returns a shutdown that logs
// instead of failing.
func startTelemetry(ctx context.Context, cfg telemetry.Config, logger *logging.Logger) (*telemetry.Providers, func(), error) {
	providers, err := telemetry.Init(ctx, cfg)
	if err != nil {
		return nil, nil, &ExitError{Code: CLIExitError, Err: fmt.Errorf("telemetry: %w", err)}
	}
	return providers, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(sctx); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err.Error())
		}
	}, nil
}
