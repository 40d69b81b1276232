// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package api

import (
	"io"
	"net/http"

	"github.com/daybook-hq/daybook/internal/logging"
	"github.com/daybook-hq/daybook/internal/worker"
)

// maxProxyBody bounds request bodies the proxy materializes.
const maxProxyBody = 32 << 20 // 32 MB

// handleProxy forwards one intercepted app request through the active
// Router generation. Before the first activation there is no router; the UI
// gets the same retryable 503 shape the strategies synthesize.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	router := s.router.Load()
	if router == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "worker is not ready yet",
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	req := &worker.Request{
		Method: r.Method,
		URL:    r.URL,
		Header: r.Header,
		Body:   body,
	}

	resp, err := router.Handle(r.Context(), req)
	if err != nil {
		// Only the bypass path propagates errors; nothing may be
		// synthesized for it.
		logging.Debug().Err(err).Str("path", r.URL.Path).Msg("bypass request failed")
		writeError(w, http.StatusBadGateway, "upstream request failed")
		return
	}

	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		logging.Debug().Err(err).Msg("proxy response write failed")
	}
}
