// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/daybook-hq/daybook/internal/logging"
)

// writeJSON renders a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Debug().Err(err).Msg("response encode failed")
	}
}

// writeError renders the control-plane error shape.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
