// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

// Package metrics exposes Prometheus instrumentation for the sync worker.
// Metrics are served on /metrics by the local HTTP adapter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache tier metrics
	TierHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_tier_hits_total",
			Help: "Total cache tier lookup hits",
		},
		[]string{"tier"},
	)

	TierMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_tier_misses_total",
			Help: "Total cache tier lookup misses",
		},
		[]string{"tier"},
	)

	TierEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_tier_entries",
			Help: "Current number of entries per cache tier",
		},
		[]string{"tier"},
	)

	TiersEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_tiers_evicted_total",
			Help: "Total stale cache tiers evicted during activation",
		},
	)

	// Install / activate metrics
	InstallAssetsPrimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "install_assets_primed_total",
			Help: "Total assets successfully primed during install",
		},
	)

	InstallAssetFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "install_asset_failures_total",
			Help: "Total assets that failed to prime during install (best-effort, non-fatal)",
		},
	)

	// Interception router metrics
	RequestsIntercepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_intercepted_total",
			Help: "Total requests handled by the interception router",
		},
		[]string{"strategy", "outcome"}, // outcome: network, cache, offline_shell, synthesized_503, passthrough, error
	)

	// Mutation queue metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mutation_queue_depth",
			Help: "Current number of queued offline mutations",
		},
	)

	MutationsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mutations_enqueued_total",
			Help: "Total mutations appended to the offline queue",
		},
		[]string{"entity_type"},
	)

	// Reconciliation metrics
	ReconcileRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_runs_total",
			Help: "Total drain invocations",
		},
	)

	ReconcileSynced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_synced_total",
			Help: "Total mutations successfully replayed against the remote API",
		},
	)

	ReconcileFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_failures_total",
			Help: "Total per-item reconciliation failures",
		},
		[]string{"entity_type"},
	)

	// Circuit breaker metrics (remote API client)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state: 0=closed, 1=open, 2=half-open",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Push metrics
	PushReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_events_received_total",
			Help: "Total push events received from the transport",
		},
	)

	PushMalformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_events_malformed_total",
			Help: "Total push events with absent or unparsable payloads (default notification shown)",
		},
	)

	NotificationsDisplayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_displayed_total",
			Help: "Total notifications handed to display",
		},
	)

	NotificationClicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_clicks_total",
			Help: "Total notification interactions by action",
		},
		[]string{"action"},
	)

	// WebSocket metrics
	WSClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_clients_connected",
			Help: "Currently attached UI clients",
		},
	)
)

// RecordStrategyOutcome increments the interception counter for a strategy result.
func RecordStrategyOutcome(strategy, outcome string) {
	RequestsIntercepted.WithLabelValues(strategy, outcome).Inc()
}

// RecordTierHit increments the hit counter for a tier's logical name.
func RecordTierHit(tier string) {
	TierHits.WithLabelValues(tier).Inc()
}

// RecordTierMiss increments the miss counter for a tier's logical name.
func RecordTierMiss(tier string) {
	TierMisses.WithLabelValues(tier).Inc()
}
