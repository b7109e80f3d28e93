// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

// Package metrics exposes Prometheus collectors for the sync engine:
// upstream request throughput and latency, sync cycle outcomes, store
// collection sizes, retry queue depth, and circuit breaker state.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream client metrics

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitlab_requests_total",
			Help: "Total GitLab API requests by resource and outcome",
		},
		[]string{"resource", "outcome"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gitlab_request_duration_seconds",
			Help:    "GitLab API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)

	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gitlab_circuit_breaker_state",
			Help: "Upstream circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Sync cycle metrics

	SyncCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_cycles_total",
			Help: "Completed sync cycles by kind (bootstrap, short_poll, long_poll)",
		},
		[]string{"kind"},
	)

	SyncCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_cycle_duration_seconds",
			Help:    "Duration of a full sync cycle in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)

	SyncScopeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_scope_errors_total",
			Help: "Scope-local fetch failures swallowed at the cycle boundary",
		},
		[]string{"resource"},
	)

	// Store metrics

	StoreRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "store_records",
			Help: "Records currently held per store collection",
		},
		[]string{"collection"},
	)

	// Retry queue metrics

	RetryQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "retry_queue_depth",
			Help: "Pending commands per retry queue",
		},
		[]string{"queue"},
	)

	RetryCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_commands_total",
			Help: "Drained retry commands by queue and outcome",
		},
		[]string{"queue", "outcome"},
	)

	// Persistence metrics

	SnapshotSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_saves_total",
			Help: "Store snapshot persistence attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveRequest records one upstream request.
func ObserveRequest(resource string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	UpstreamRequests.WithLabelValues(resource, outcome).Inc()
	UpstreamRequestDuration.WithLabelValues(resource).Observe(d.Seconds())
}

// ObserveCycle records one completed sync cycle.
func ObserveCycle(kind string, d time.Duration) {
	SyncCycles.WithLabelValues(kind).Inc()
	SyncCycleDuration.WithLabelValues(kind).Observe(d.Seconds())
}
