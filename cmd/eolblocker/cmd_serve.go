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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/eolblocker/cmd/eolblocker/config"
	"github.com/AleutianAI/eolblocker/pkg/telemetry"
	"github.com/AleutianAI/eolblocker/services/gate"
	"github.com/AleutianAI/eolblocker/services/github"
	"github.com/AleutianAI/eolblocker/services/webhook"
)

// shutdownGrace bounds how long serve waits for in-flight checks.
const shutdownGrace = 30 * time.Second

type serveOptions struct {
	addr    string
	metrics bool
	debug   bool
}

func newServeCmd(env *environment, root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the GitHub webhook server",
		Long: `Run an HTTP server that checks pull requests on GitHub webhook
deliveries.

Routes:
  GET  /health
  GET  /metrics              (Prometheus, unless --metrics=false)
  POST /v1/webhook/github    (pull_request events)

Deliveries are verified against EOLBLOCKER_WEBHOOK_SECRET when set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), env, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "",
		"Listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", true,
		"Expose Prometheus metrics at /metrics")
	cmd.Flags().BoolVar(&opts.debug, "debug", false,
		"Enable gin debug mode")
	return cmd
}

func runServe(ctx context.Context, env *environment, root *rootOptions, opts *serveOptions) error {
	cfg, err := loadConfig(env, root)
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.metrics {
		cfg.Telemetry.MetricExporter = telemetry.ExporterPrometheus
	}

	logger := newLogger(env, cfg)
	defer logger.Close()

	providers, stopTelemetry, err := startTelemetry(ctx, cfg.Telemetry, logger)
	if err != nil {
		return err
	}
	defer stopTelemetry()

	if opts.debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Wipes the sealed webhook secret and its key on the way out.
	defer memguard.Purge()

	// Closed after handlers.Drain has stopped every in-flight check.
	cacheOpts, closeCache := openVerdictCache(cfg, logger.Slog())
	defer closeCache()

	handlers := webhook.NewHandlers(webhook.Config{
		Secret:     cfg.Server.WebhookSecret,
		RunTimeout: cfg.Server.RunTimeout,
	}, &gateDispatcher{cfg: cfg, logger: logger.Slog(), options: cacheOpts}, logger.Slog())

	router := webhook.NewRouter(handlers, serviceName, providers.MetricsHandler())

	if cfg.Server.WebhookSecret == "" {
		logger.Warn("Webhook signature verification disabled; set EOLBLOCKER_WEBHOOK_SECRET")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting webhook server", slog.String("address", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return &ExitError{Code: CLIExitError, Err: fmt.Errorf("listen: %w", err)}
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down webhook server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", slog.String("error", err.Error()))
	}
	if err := handlers.Drain(shutdownCtx); err != nil {
		logger.Warn("In-flight checks did not finish", slog.String("error", err.Error()))
	}
	return nil
}

// =============================================================================
// Dispatcher
// =============================================================================

// gateDispatcher runs one gate per accepted webhook delivery.
type gateDispatcher struct {
	cfg    *config.Config
	logger *slog.Logger

	// options are appended to every gate, e.g. the shared verdict cache.
	options []gate.Option

	// httpClient overrides the client used for GitHub calls, for tests.
	httpClient *http.Client
}

var _ webhook.Dispatcher = (*gateDispatcher)(nil)

// Dispatch checks the pull request named by event.
func (d *gateDispatcher) Dispatch(ctx context.Context, event *github.PullRequestEvent, deliveryID string) error {
	logger := d.logger.With(
		slog.String("delivery_id", deliveryID),
		slog.String("repository", event.Owner+"/"+event.Repo),
		slog.Int("pull_request", event.Number),
	)

	client, err := github.NewClient(github.ClientConfig{
		Token:      d.cfg.RepoToken,
		Owner:      event.Owner,
		Repo:       event.Repo,
		Number:     event.Number,
		BaseURL:    d.cfg.GitHub.APIURL,
		HTTPClient: d.httpClient,
		Fetch:      d.cfg.FetcherConfig(),
	})
	if err != nil {
		return err
	}

	g, err := gate.New(client, client, gate.Config{
		HeadBranch:     event.HeadBranch,
		Patterns:       d.cfg.Patterns(),
		Label:          d.cfg.EffectiveLabel(),
		IncludeRemoved: d.cfg.IncludeRemoved,
	}, append([]gate.Option{gate.WithLogger(logger), gate.WithConcurrency(d.cfg.Concurrency)}, d.options...)...)
	if err != nil {
		return err
	}

	outcome, err := g.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("Webhook check finished",
		slog.String("run_id", outcome.RunID),
		slog.Bool("passed", !outcome.Failed),
		slog.Int("reporting_errors", len(outcome.ReportingErrors)),
	)
	return nil
}
