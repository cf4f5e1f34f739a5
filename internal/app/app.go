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

// Package app wires the status sync components from configuration. Both
// the long-running server and the one-shot CLI build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/drl/statussync/internal/config"
	"github.com/drl/statussync/internal/events"
	"github.com/drl/statussync/internal/letters"
	"github.com/drl/statussync/internal/lock"
	"github.com/drl/statussync/internal/provider"
	"github.com/drl/statussync/internal/reconcile"
	"github.com/drl/statussync/internal/scheduler"
	"github.com/drl/statussync/internal/tenant"
)

// App holds the connected components.
type App struct {
	Config    *config.Config
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Store     *letters.Store
	Provider  *provider.Client
	Publisher *events.Publisher
	Locker    *lock.Locker
	Worker    *reconcile.Worker
}

// New connects to PostgreSQL and Redis and builds the reconciliation
// worker. Call Close when done.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	// --- Connect to PostgreSQL ---
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("create Postgres pool: %w", err)
	}
	a.Pool = pool

	if err := pool.Ping(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	slog.Info("connected to PostgreSQL")

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	a.Redis = redis.NewClient(opt)

	a.Publisher = events.NewPublisher(a.Redis, cfg.StatusEventsQueue)
	if err := a.Publisher.Ping(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}
	slog.Info("connected to Redis")

	// --- Letter Store (Postgres) ---
	a.Store, err = letters.NewStore(ctx, pool)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initialise letter store: %w", err)
	}

	// --- Provider client (OAuth2 client credentials) ---
	httpClient := provider.NewHTTPClient(ctx, provider.AuthConfig{
		ClientID:     cfg.Provider.ClientID,
		ClientSecret: cfg.Provider.ClientSecret,
		TokenURL:     cfg.Provider.TokenURL,
		Scopes:       cfg.Provider.Scopes,
		Timeout:      cfg.Provider.Timeout,
	})
	a.Provider = provider.NewClient(httpClient, cfg.Provider.BaseURL)

	a.Locker = lock.NewLocker(a.Redis, cfg.LockKey)

	// A nil *events.Publisher must not end up inside the interface.
	var statusPublisher reconcile.StatusPublisher
	if cfg.PublishStatusEvents {
		statusPublisher = a.Publisher
	}

	a.Worker = reconcile.NewWorker(reconcile.WorkerConfig{
		Selector:  tenant.NewSelector(a.Store),
		Store:     a.Store,
		Provider:  a.Provider,
		Publisher: statusPublisher,
	})

	return a, nil
}

// Scheduler builds a scheduler for the worker. withLock false disables the
// cross-instance run lock; a zero maxDuration uses the configured one.
func (a *App) Scheduler(withLock bool, maxDuration time.Duration) *scheduler.Scheduler {
	if maxDuration <= 0 {
		maxDuration = a.Config.MaxDuration
	}
	cfg := scheduler.Config{
		Worker:      a.Worker,
		Interval:    a.Config.Interval,
		MaxDuration: maxDuration,
	}
	if withLock {
		cfg.Locker = a.Locker
	}
	return scheduler.New(cfg)
}

// Close releases the Redis and Postgres connections.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Warn("failed to close Redis client", "error", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
