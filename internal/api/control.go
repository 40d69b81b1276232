// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/daybook-hq/daybook/internal/logging"
	"github.com/daybook-hq/daybook/internal/queue"
	"github.com/daybook-hq/daybook/internal/validation"
)

// enqueueRequest is the control-plane shape for appending a mutation.
type enqueueRequest struct {
	EntityType string          `json:"entity_type" validate:"required,oneof=reading tag"`
	Payload    json.RawMessage `json:"payload" validate:"required"`
}

// handleEnqueue appends a mutation to the offline queue. This is the UI's
// write path when the network is down: it must succeed locally with no
// network at all.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}

	tempID, err := s.deps.Queue.Enqueue(r.Context(), queue.EntityType(req.EntityType), req.Payload)
	if err != nil {
		logging.Error().Err(err).Msg("enqueue failed")
		writeError(w, http.StatusInternalServerError, "could not queue mutation")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"temp_id": tempID})
}

// handleQueueList returns the pending mutations in FIFO order.
func (s *Server) handleQueueList(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Queue.List(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("queue list failed")
		writeError(w, http.StatusInternalServerError, "could not read queue")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(items),
		"mutations": items,
	})
}

// handleDiscard drops one queued mutation by tempID without syncing it.
// Discarding an absent entry succeeds, matching the queue's idempotent
// removal semantics.
func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	tempID := chi.URLParam(r, "tempID")
	if tempID == "" {
		writeError(w, http.StatusBadRequest, "tempID is required")
		return
	}

	if err := s.deps.Queue.Remove(r.Context(), tempID); err != nil {
		logging.Error().Err(err).Str("temp_id", tempID).Msg("queue discard failed")
		writeError(w, http.StatusInternalServerError, "could not discard mutation")
		return
	}

	logging.Info().Str("temp_id", tempID).Msg("queued mutation discarded by user")
	w.WriteHeader(http.StatusNoContent)
}

// handleDrain runs one reconciliation pass and reports per-item results for
// user-facing retry messaging.
func (s *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Drainer.Drain(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("drain failed")
		writeError(w, http.StatusInternalServerError, "drain failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// statusResponse summarizes worker state for the UI's status panel.
type statusResponse struct {
	CacheVersion       int      `json:"cache_version"`
	Epoch              int64    `json:"epoch"`
	Tiers              []string `json:"tiers"`
	QueueDepth         int      `json:"queue_depth"`
	LastNetworkFailure string   `json:"last_network_failure,omitempty"`
}

// handleStatus reports the cache generation, control epoch, live tiers,
// queue depth, and the last observed network failure.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	depth, err := s.deps.Queue.Len(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("status queue depth failed")
		writeError(w, http.StatusInternalServerError, "could not read queue")
		return
	}

	tiers, err := s.deps.Store.Names()
	if err != nil {
		logging.Error().Err(err).Msg("status tier enumeration failed")
		writeError(w, http.StatusInternalServerError, "could not read cache tiers")
		return
	}
	if tiers == nil {
		tiers = []string{}
	}

	resp := statusResponse{
		CacheVersion: s.deps.Config.Origin.CacheVersion,
		Epoch:        s.Epoch(),
		Tiers:        tiers,
		QueueDepth:   depth,
	}
	if s.deps.Probe != nil {
		if last := s.deps.Probe.LastFailure(); !last.IsZero() {
			resp.LastNetworkFailure = last.UTC().Format(time.RFC3339)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
