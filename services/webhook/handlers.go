// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package webhook receives GitHub pull_request webhooks and dispatches an
// EOL check for each relevant event.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/gin-gonic/gin"
	gh "github.com/google/go-github/v66/github"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/eolblocker/pkg/telemetry"
	"github.com/AleutianAI/eolblocker/services/github"
)

// Header names set by GitHub on webhook deliveries.
const (
	headerEvent     = "X-GitHub-Event"
	headerDelivery  = "X-GitHub-Delivery"
	headerSignature = "X-Hub-Signature-256"
)

// maxPayloadBytes is GitHub's webhook payload ceiling.
const maxPayloadBytes = 25 << 20

// DefaultRunTimeout bounds a single dispatched check.
const DefaultRunTimeout = 5 * time.Minute

// abortGrace bounds how long Drain waits for cancelled checks to return.
const abortGrace = 5 * time.Second

// checkedActions are the pull_request actions that change file content
// or reopen a pull request. Title and body edits do not.
var checkedActions = map[string]bool{
	"opened":      true,
	"reopened":    true,
	"synchronize": true,
}

// Dispatcher runs a check for one pull request event.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *github.PullRequestEvent, deliveryID string) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, event *github.PullRequestEvent, deliveryID string) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, event *github.PullRequestEvent, deliveryID string) error {
	return f(ctx, event, deliveryID)
}

// Config configures Handlers.
type Config struct {
	// Secret verifies X-Hub-Signature-256. Empty disables verification.
	Secret string

	// RunTimeout bounds each dispatched check.
	// Default: DefaultRunTimeout
	RunTimeout time.Duration
}

// ErrorResponse is the JSON body of a rejected request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// AcceptedResponse is the JSON body of a dispatched delivery.
type AcceptedResponse struct {
	DeliveryID string `json:"delivery_id"`
	Status     string `json:"status"`
}

// Handlers serves the webhook endpoints.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	// secret is sealed while idle and opened only to check a signature.
	// Nil when verification is disabled.
	secret     *memguard.Enclave
	timeout    time.Duration
	dispatcher Dispatcher
	logger     *slog.Logger
	inflight   sync.WaitGroup

	// runs is cancelled by Drain to stop checks that outlive shutdown.
	runs       context.Context
	cancelRuns context.CancelFunc
}

// NewHandlers creates Handlers that send accepted events to dispatcher.
func NewHandlers(config Config, dispatcher Dispatcher, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := config.RunTimeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	var secret *memguard.Enclave
	if config.Secret != "" {
		// NewEnclave wipes the slice it is given.
		secret = memguard.NewEnclave([]byte(config.Secret))
	}
	runs, cancelRuns := context.WithCancel(context.Background())
	return &Handlers{
		secret:     secret,
		timeout:    timeout,
		dispatcher: dispatcher,
		logger:     logger,
		runs:       runs,
		cancelRuns: cancelRuns,
	}
}

// NewRouter builds the gin engine with tracing middleware and all routes.
// metrics may be nil, in which case /metrics is not registered.
func NewRouter(h *Handlers, serviceName string, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	RegisterRoutes(r, h, metrics)
	return r
}

// RegisterRoutes adds the health, metrics and webhook routes to r.
func RegisterRoutes(r gin.IRouter, h *Handlers, metrics http.Handler) {
	r.GET("/health", h.HandleHealth)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	v1 := r.Group("/v1")
	v1.POST("/webhook/github", h.HandleGitHubWebhook)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleGitHubWebhook handles POST /v1/webhook/github.
//
// Description:
//
//	Verifies the payload signature, filters to pull request events whose
//	action can change file content, and dispatches the check in the
//	background so GitHub's delivery timeout is never hit.
//
// Response:
//
//	200 OK: ping acknowledged
//	202 Accepted: AcceptedResponse, check dispatched
//	204 No Content: event or action ignored
//	400 Bad Request: unreadable or malformed payload
//	401 Unauthorized: signature mismatch
//
// Thread Safety: Safe for concurrent use.
func (h *Handlers) HandleGitHubWebhook(c *gin.Context) {
	deliveryID := c.GetHeader(headerDelivery)
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	eventType := c.GetHeader(headerEvent)
	logger := h.logger.With(
		slog.String("delivery_id", deliveryID),
		slog.String("event", eventType),
	)
	if traceID := telemetry.TraceID(c.Request.Context()); traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes+1))
	if err != nil || len(body) > maxPayloadBytes {
		logger.Warn("Unreadable webhook payload", slog.Int("bytes", len(body)))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable payload", Code: "INVALID_PAYLOAD"})
		return
	}

	if h.secret != nil {
		if err := h.verifySignature(c.GetHeader(headerSignature), body); err != nil {
			logger.Warn("Webhook signature rejected", slog.String("error", err.Error()))
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "signature mismatch", Code: "INVALID_SIGNATURE"})
			return
		}
	}

	switch eventType {
	case "ping":
		c.JSON(http.StatusOK, gin.H{"status": "pong"})
		return
	case "pull_request", "pull_request_target":
	default:
		logger.Debug("Ignoring event")
		c.Status(http.StatusNoContent)
		return
	}

	event, err := github.ParsePullRequestEvent(body)
	if err != nil {
		logger.Warn("Malformed pull request event", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed event", Code: "INVALID_EVENT"})
		return
	}
	if !checkedActions[event.Action] {
		logger.Debug("Ignoring action", slog.String("action", event.Action))
		c.Status(http.StatusNoContent)
		return
	}

	logger.Info("Dispatching check",
		slog.String("repository", event.Owner+"/"+event.Repo),
		slog.Int("pull_request", event.Number),
		slog.String("action", event.Action),
	)

	// The run outlives the request; keep its trace context but not its
	// cancellation.
	ctx := context.WithoutCancel(c.Request.Context())
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		runCtx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()
		stop := context.AfterFunc(h.runs, cancel)
		defer stop()
		if err := h.dispatcher.Dispatch(runCtx, event, deliveryID); err != nil {
			level := slog.LevelError
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				level = slog.LevelWarn
			}
			logger.Log(runCtx, level, "Check failed", slog.String("error", err.Error()))
		}
	}()

	c.JSON(http.StatusAccepted, AcceptedResponse{DeliveryID: deliveryID, Status: "accepted"})
}

// verifySignature checks an X-Hub-Signature-256 header against body. The
// secret is decrypted into locked memory for the duration of the check.
func (h *Handlers) verifySignature(signature string, body []byte) error {
	key, err := h.secret.Open()
	if err != nil {
		return fmt.Errorf("open webhook secret: %w", err)
	}
	defer key.Destroy()
	return gh.ValidateSignature(signature, body, key.Bytes())
}

// Wait blocks until every dispatched check has returned or ctx ends.
func (h *Handlers) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain waits for dispatched checks like Wait. If ctx ends first, the
// remaining checks are cancelled and Drain waits up to abortGrace for them
// to return, so shared resources can be released safely afterwards.
//
// The returned error is nil only when every check finished on its own.
func (h *Handlers) Drain(ctx context.Context) error {
	err := h.Wait(ctx)
	h.cancelRuns()
	if err == nil {
		return nil
	}

	abortCtx, cancel := context.WithTimeout(context.Background(), abortGrace)
	defer cancel()
	if waitErr := h.Wait(abortCtx); waitErr != nil {
		return fmt.Errorf("checks still running after cancel: %w", waitErr)
	}
	return fmt.Errorf("in-flight checks cancelled: %w", err)
}
