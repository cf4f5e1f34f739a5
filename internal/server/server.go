// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the operational HTTP surface of the status sync
// service: health, Prometheus metrics and a manual reconciliation trigger.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drl/statussync/internal/lock"
	"github.com/drl/statussync/internal/reconcile"
)

// Pinger checks a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Runner triggers reconciliation passes and remembers the last one.
type Runner interface {
	TriggerNow(ctx context.Context) (*reconcile.RunResult, error)
	LastRun() *reconcile.RunResult
}

// Checks are the backing services reported by /health. Nil checks are
// skipped.
type Checks struct {
	Postgres Pinger
	Redis    Pinger
	Provider Pinger
}

// Handler serves the operational endpoints.
type Handler struct {
	checks   Checks
	runner   Runner
	gatherer prometheus.Gatherer
}

// NewHandler creates the operational handler.
func NewHandler(checks Checks, runner Runner, gatherer prometheus.Gatherer) *Handler {
	return &Handler{
		checks:   checks,
		runner:   runner,
		gatherer: gatherer,
	}
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status            string               `json:"status"`
	Postgres          string               `json:"postgres"`
	Redis             string               `json:"redis"`
	Provider          string               `json:"provider"`
	ProviderReachable bool                 `json:"provider_reachable"`
	LastRun           *reconcile.RunResult `json:"last_run,omitempty"`
}

// Routes builds the chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.ServeHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	r.Post("/reconcile", h.ServeReconcile)

	return r
}

// ServeHealth reports backing-service health and the last run summary.
// Postgres or Redis failures make the service unhealthy. A provider that
// fails its ping, or failed every listing call in the last run, only
// degrades it.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:            "healthy",
		Postgres:          check(ctx, h.checks.Postgres),
		Redis:             check(ctx, h.checks.Redis),
		Provider:          check(ctx, h.checks.Provider),
		ProviderReachable: true,
	}
	if h.runner != nil {
		resp.LastRun = h.runner.LastRun()
		resp.ProviderReachable = resp.LastRun.ProviderReachable()
	}

	code := http.StatusOK
	switch {
	case resp.Postgres != "ok" || resp.Redis != "ok":
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	case resp.Provider != "ok" || !resp.ProviderReachable:
		resp.Status = "degraded"
	}

	writeJSON(w, code, resp)
}

// ServeReconcile runs one pass synchronously and returns its result. The
// pass is not cancelled when the client goes away; the scheduler's run
// deadline still bounds it.
func (h *Handler) ServeReconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.TriggerNow(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "reconciliation already running"})
		return
	case err != nil:
		slog.Error("manual reconciliation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func check(ctx context.Context, p Pinger) string {
	if p == nil {
		return "ok"
	}
	if err := p.Ping(ctx); err != nil {
		return err.Error()
	}
	return "ok"
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

// loggingMiddleware logs request information using slog.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// Serve starts the HTTP server on the given port. The returned channel is
// closed once the listener is bound. The server shuts down when ctx is
// cancelled.
func Serve(ctx context.Context, port int, handler *Handler) (<-chan struct{}, error) {
	server := &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("http server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	go func() {
		slog.Info("http server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	return ready, nil
}
