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

// Registered-letter status sync service
//
// Entry point for the long-running service. It:
//  1. Loads configuration from config.yaml
//  2. Connects to PostgreSQL and Redis
//  3. Starts the reconciliation scheduler (one locked pass per interval)
//  4. Serves /health, /metrics and POST /reconcile
//  5. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/drl/statussync/internal/app"
	"github.com/drl/statussync/internal/config"
	"github.com/drl/statussync/internal/metrics"
	"github.com/drl/statussync/internal/server"
)

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting status sync service",
		"provider", cfg.Provider.BaseURL,
		"interval", cfg.Interval,
		"max_duration", cfg.MaxDuration,
		"publish_status_events", cfg.PublishStatusEvents,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise service", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Register(reg)

	// --- Scheduler ---
	sched := a.Scheduler(true, 0)

	// --- HTTP Server ---
	handler := server.NewHandler(server.Checks{
		Postgres: a.Pool,
		Redis:    a.Publisher,
		Provider: a.Provider,
	}, sched, reg)
	ready, err := server.Serve(ctx, cfg.Port, handler)
	if err != nil {
		slog.Error("failed to start http server", "error", err)
		os.Exit(1)
	}
	<-ready

	sched.Start(ctx)

	// --- Graceful Shutdown ---
	<-ctx.Done()
	slog.Info("received shutdown signal")

	// Stop waits for an in-flight pass; its context is already cancelled,
	// so it returns after the current item.
	sched.Stop()

	slog.Info("status sync service stopped")
}
