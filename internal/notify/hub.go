// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

// Package notify connects attached UI clients over WebSocket. The hub plays
// two roles for the push layer: it is the display surface notifications are
// handed to, and it is the registry of open clients the click router can
// focus or open.
package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/daybook-hq/daybook/internal/logging"
	"github.com/daybook-hq/daybook/internal/metrics"
	"github.com/daybook-hq/daybook/internal/push"
)

// Message types exchanged with UI clients.
const (
	// Server to client.
	MessageTypeNotification = "notification"
	MessageTypeFocus        = "focus"
	MessageTypeOpenWindow   = "open_window"
	MessageTypePong         = "pong"

	// Client to server.
	MessageTypeNavigate = "navigate"
	MessageTypeClick    = "click"
	MessageTypePing     = "ping"
)

// Message is one WebSocket frame in either direction.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// ClickHandler routes a notification interaction. The push click router
// implements it.
type ClickHandler interface {
	Route(ctx context.Context, click push.Click) error
}

// Hub maintains the set of attached clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	clickMu sync.RWMutex
	clicks  ClickHandler
}

// NewHub creates a hub with no clients attached.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// SetClickHandler wires the click router in. Set once at startup, before
// clients attach; the hub drops click messages until a handler is present.
func (h *Hub) SetClickHandler(handler ClickHandler) {
	h.clickMu.Lock()
	h.clicks = handler
	h.clickMu.Unlock()
}

// Run starts the hub and blocks until the context is canceled. Lifecycle
// events take priority over broadcasts, so the client set is consistent
// before any message goes out.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAllClients()
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.broadcastToClients(msg)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WSClientsConnected.Set(float64(count))
	logging.Info().Int("total_clients", count).Msg("ui client attached")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WSClientsConnected.Set(float64(count))
	logging.Info().Int("total_clients", count).Msg("ui client detached")
}

// broadcastToClients delivers one message to every attached client in ID
// order. A client with a full send buffer is dropped rather than blocking
// the hub.
func (h *Hub) broadcastToClients(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sortedClientsLocked()

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- msg:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
	if len(toRemove) > 0 {
		metrics.WSClientsConnected.Set(float64(len(h.clients)))
		logging.Warn().Int("dropped", len(toRemove)).Msg("dropped slow ui clients")
	}
}

// sortedClientsLocked returns the clients in ID order. Caller holds h.mu.
func (h *Hub) sortedClientsLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	return clients
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClientsLocked() {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSClientsConnected.Set(0)
	logging.Info().Msg("closed all ui clients during shutdown")
}

// ClientCount reports the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Display hands a notification to every attached client. It implements
// push.Notifier; the enqueue onto each client is complete before it
// returns, which is what lets the receiver ack the push event afterward.
// Zero attached clients is not an error: the notification simply has no
// surface right now.
func (h *Hub) Display(_ context.Context, n *push.Notification) error {
	h.broadcastToClients(Message{Type: MessageTypeNotification, Data: n})
	return nil
}

// Clients implements push.ClientRegistry over the attached client set.
func (h *Hub) Clients(_ context.Context) []push.ClientInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]push.ClientInfo, 0, len(h.clients))
	for _, client := range h.sortedClientsLocked() {
		out = append(out, push.ClientInfo{ID: client.StringID(), URL: client.CurrentURL()})
	}
	return out
}

// Focus implements push.ClientRegistry: it tells one client to bring
// itself to the foreground.
func (h *Hub) Focus(_ context.Context, clientID string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.StringID() == clientID {
			select {
			case client.send <- Message{Type: MessageTypeFocus}:
				return nil
			default:
				return fmt.Errorf("client %s send buffer full", clientID)
			}
		}
	}
	return fmt.Errorf("client %s is not attached", clientID)
}

// OpenWindow implements push.ClientRegistry: it asks the attached clients
// to open a new window at the URL. With no client attached there is nothing
// to open through; that is logged, not an error, the click is already
// consumed.
func (h *Hub) OpenWindow(_ context.Context, url string) error {
	h.mu.RLock()
	count := len(h.clients)
	h.mu.RUnlock()

	if count == 0 {
		logging.Warn().Str("url", url).Msg("no attached client to open window")
		return nil
	}

	h.broadcastToClients(Message{Type: MessageTypeOpenWindow, Data: map[string]string{"url": url}})
	return nil
}

// routeClick forwards one client interaction to the click handler.
func (h *Hub) routeClick(ctx context.Context, click push.Click) {
	h.clickMu.RLock()
	handler := h.clicks
	h.clickMu.RUnlock()

	if handler == nil {
		logging.Warn().Msg("notification click before click handler wired, dropping")
		return
	}
	if err := handler.Route(ctx, click); err != nil {
		logging.Error().Err(err).Str("action", click.Action).Msg("notification click routing failed")
	}
}
