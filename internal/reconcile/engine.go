// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

// Package reconcile replays the offline mutation queue against the remote
// Daybook API once connectivity returns.
//
// Draining is always explicit: the UI or a connectivity-restored signal
// invokes it, never the interception router. Items are independent entities,
// so a failed item is skipped and reported instead of aborting the run, and
// removal-on-success makes re-running a partially failed drain retry only the
// remainder.
package reconcile

import (
	"context"
	"sync"

	"github.com/goccy/go-json"

	"github.com/daybook-hq/daybook/internal/logging"
	"github.com/daybook-hq/daybook/internal/metrics"
	"github.com/daybook-hq/daybook/internal/queue"
)

// Failure reports one mutation the remote API did not accept. The item stays
// queued for the next drain.
type Failure struct {
	TempID     string           `json:"temp_id"`
	EntityType queue.EntityType `json:"entity_type"`
	Error      string           `json:"error"`
}

// Result summarizes one drain run for user-facing retry messaging.
type Result struct {
	SyncedCount int       `json:"synced_count"`
	Failures    []Failure `json:"failures"`
}

// Engine drains the mutation queue against the remote API.
type Engine struct {
	queue  queue.Queue
	client RemoteAPI

	// mu serializes drains within this process. Overlapping drains from a
	// second worker instance are not deduplicated; the remote API's own
	// idempotency is relied upon for that case.
	mu sync.Mutex
}

// NewEngine creates a reconciliation engine.
func NewEngine(q queue.Queue, client RemoteAPI) *Engine {
	return &Engine{queue: q, client: client}
}

// Drain replays a stable snapshot of the queue in FIFO creation order.
//
// For each item the tempID is stripped from the payload and the remainder is
// POSTed to the item's collection endpoint, serially to bound load on the
// remote. Success removes the item; failure records it and moves on. The
// returned error covers only the snapshot read itself.
func (e *Engine) Drain(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	metrics.ReconcileRuns.Inc()

	snapshot, err := e.queue.List(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{Failures: []Failure{}}
	for _, item := range snapshot {
		payload := stripTempID(item.Payload)

		if err := e.client.Create(ctx, item.EntityType, payload); err != nil {
			logging.Warn().
				Err(err).
				Str("temp_id", item.TempID).
				Str("entity_type", string(item.EntityType)).
				Msg("reconciliation item failed, leaving queued")
			metrics.ReconcileFailures.WithLabelValues(string(item.EntityType)).Inc()
			result.Failures = append(result.Failures, Failure{
				TempID:     item.TempID,
				EntityType: item.EntityType,
				Error:      err.Error(),
			})
			continue
		}

		// Removal after remote acknowledgment is what makes a re-run skip
		// already-synced items.
		if err := e.queue.Remove(ctx, item.TempID); err != nil {
			logging.Error().
				Err(err).
				Str("temp_id", item.TempID).
				Msg("synced mutation could not be removed; next drain may resubmit it")
			result.Failures = append(result.Failures, Failure{
				TempID:     item.TempID,
				EntityType: item.EntityType,
				Error:      err.Error(),
			})
			continue
		}

		result.SyncedCount++
		metrics.ReconcileSynced.Inc()
	}

	logging.Info().
		Int("synced", result.SyncedCount).
		Int("failed", len(result.Failures)).
		Msg("drain complete")
	return result, nil
}

// stripTempID removes the temporary local identifier from a mutation payload
// before it is sent to the remote API. Payloads that are not JSON objects are
// forwarded untouched.
func stripTempID(payload json.RawMessage) json.RawMessage {
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil {
		return payload
	}

	_, hadCamel := obj["tempId"]
	_, hadSnake := obj["temp_id"]
	if !hadCamel && !hadSnake {
		return payload
	}

	delete(obj, "tempId")
	delete(obj, "temp_id")

	stripped, err := json.Marshal(obj)
	if err != nil {
		return payload
	}
	return stripped
}
