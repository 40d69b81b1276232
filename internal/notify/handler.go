// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package notify

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/daybook-hq/daybook/internal/logging"
)

// Handler upgrades HTTP requests to notification WebSocket connections.
type Handler struct {
	hub            *Hub
	allowedOrigins []string
}

// NewHandler creates the WebSocket attach handler. allowedOrigins is the
// same allowlist the control endpoints use; "*" allows any origin.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{hub: hub, allowedOrigins: allowedOrigins}
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkOrigin validates the Origin header against the allowlist. Browser
// WebSockets always send Origin; an absent header means a non-browser
// client and is rejected.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("websocket attach rejected: missing Origin header")
		return false
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("websocket attach rejected: origin not allowed")
	return false
}

// ServeHTTP upgrades the connection, registers the client with the hub, and
// starts its pumps. The client's initial URL comes from the `url` query
// parameter so click routing works before the first navigate message.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, r.URL.Query().Get("url"))
	h.hub.Register <- client
	client.Start()
}
