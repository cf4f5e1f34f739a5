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

// Package metrics defines the Prometheus metrics exported by the status
// sync service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_runs_total",
			Help: "Total number of reconciliation runs",
		},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconcile_run_duration_seconds",
			Help:    "Duration of reconciliation runs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	ResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_responses_total",
			Help: "Provider responses processed, by outcome",
		},
		[]string{"outcome"},
	)

	TenantListFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_tenant_list_failures_total",
			Help: "Tenants whose pending responses could not be listed",
		},
	)

	LockSkipsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_lock_skips_total",
			Help: "Runs skipped because another instance held the run lock",
		},
	)

	LastSuccessfulRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconcile_last_successful_run_timestamp_seconds",
			Help: "Unix time of the last run that completed without a tenant selection error",
		},
	)
)

// Register registers all metrics with the given registerer.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		RunsTotal,
		RunDuration,
		ResponsesTotal,
		TenantListFailuresTotal,
		LockSkipsTotal,
		LastSuccessfulRun,
	)
}

// ObserveRun records a finished run.
func ObserveRun(elapsed time.Duration, ok bool) {
	RunsTotal.Inc()
	RunDuration.Observe(elapsed.Seconds())
	if ok {
		LastSuccessfulRun.SetToCurrentTime()
	}
}
