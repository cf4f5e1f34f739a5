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

// Package scheduler runs reconciliation passes on an interval. Each pass
// holds the run lock so only one instance reconciles at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/drl/statussync/internal/lock"
	"github.com/drl/statussync/internal/metrics"
	"github.com/drl/statussync/internal/reconcile"
)

const (
	// lockGrace is added to the run deadline to form the lock TTL.
	lockGrace = 30 * time.Second

	releaseTimeout = 5 * time.Second
)

// Reconciler performs one reconciliation pass.
type Reconciler interface {
	Reconcile(ctx context.Context) *reconcile.RunResult
}

// Scheduler triggers reconciliation passes.
type Scheduler struct {
	worker      Reconciler
	locker      *lock.Locker
	interval    time.Duration
	maxDuration time.Duration

	running sync.Mutex

	mu   sync.RWMutex
	last *reconcile.RunResult

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds the configuration for the scheduler. A nil Locker disables
// cross-instance locking.
type Config struct {
	Worker      Reconciler
	Locker      *lock.Locker
	Interval    time.Duration
	MaxDuration time.Duration
}

// New creates a scheduler.
func New(cfg Config) *Scheduler {
	maxDuration := cfg.MaxDuration
	if maxDuration <= 0 {
		maxDuration = cfg.Interval * 8 / 10
	}
	return &Scheduler{
		worker:      cfg.Worker,
		locker:      cfg.Locker,
		interval:    cfg.Interval,
		maxDuration: maxDuration,
	}
}

// Start runs a pass immediately and then on every tick until Stop is
// called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.tick(loopCtx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				slog.Info("reconciliation scheduler stopping")
				return
			case <-ticker.C:
				s.tick(loopCtx)
			}
		}
	}()

	slog.Info("reconciliation scheduler started",
		"interval", s.interval,
		"max_duration", s.maxDuration,
	)
}

// Stop shuts down the loop and waits for an in-flight pass to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.TriggerNow(ctx); err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			slog.Info("reconciliation skipped, run lock is held")
			return
		}
		slog.Error("reconciliation pass failed", "error", err)
	}
}

// TriggerNow runs one locked pass and returns its result. It returns
// lock.ErrNotAcquired when a pass is already running here or elsewhere.
func (s *Scheduler) TriggerNow(ctx context.Context) (*reconcile.RunResult, error) {
	if !s.running.TryLock() {
		metrics.LockSkipsTotal.Inc()
		return nil, lock.ErrNotAcquired
	}
	defer s.running.Unlock()

	var lease *lock.Lease
	if s.locker != nil {
		var err error
		lease, err = s.locker.Acquire(ctx, s.maxDuration+lockGrace)
		if err != nil {
			if errors.Is(err, lock.ErrNotAcquired) {
				metrics.LockSkipsTotal.Inc()
				return nil, err
			}
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			slog.Warn("failed to release run lock", "error", err)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.maxDuration)
	defer cancel()

	result := s.worker.Reconcile(runCtx)

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	return result, nil
}

// LastRun returns the result of the most recent pass, or nil.
func (s *Scheduler) LastRun() *reconcile.RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// MaxDuration returns the deadline applied to each pass.
func (s *Scheduler) MaxDuration() time.Duration { return s.maxDuration }
