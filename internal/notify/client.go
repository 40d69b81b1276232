// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package notify

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/daybook-hq/daybook/internal/logging"
	"github.com/daybook-hq/daybook/internal/push"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// clientIDCounter hands out monotonically increasing client IDs, which gives
// broadcasts and shutdown a stable iteration order.
var clientIDCounter atomic.Uint64

// Client is the middleman between one WebSocket connection and the hub. It
// tracks the URL its UI currently shows, reported via navigate messages, so
// the click router can find an already-open client for a target URL.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Message

	mu  sync.RWMutex
	url string
}

// navigateData is the payload of a navigate message.
type navigateData struct {
	URL string `json:"url"`
}

// clickData is the payload of a click message.
type clickData struct {
	Action       string            `json:"action"`
	Notification push.Notification `json:"notification"`
}

// NewClient creates a client for an upgraded connection. The initial URL is
// what the UI loaded before the socket attached; it is updated by navigate
// messages from then on.
func NewClient(hub *Hub, conn *websocket.Conn, initialURL string) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Message, 256),
		url:  initialURL,
	}
}

// StringID returns the client's identifier as used by the registry.
func (c *Client) StringID() string {
	return strconv.FormatUint(c.id, 10)
}

// CurrentURL returns the URL the client last reported showing.
func (c *Client) CurrentURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url
}

func (c *Client) setURL(url string) {
	c.mu.Lock()
	c.url = url
	c.mu.Unlock()
}

// Start begins the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump consumes messages from the UI until the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Msg("unexpected websocket close")
			}
			break
		}

		switch msg.Type {
		case MessageTypeNavigate:
			var nav navigateData
			if err := json.Unmarshal(msg.Data, &nav); err != nil {
				logging.Warn().Err(err).Msg("malformed navigate message")
				continue
			}
			c.setURL(nav.URL)

		case MessageTypeClick:
			var click clickData
			if err := json.Unmarshal(msg.Data, &click); err != nil {
				logging.Warn().Err(err).Msg("malformed click message")
				continue
			}
			c.hub.routeClick(context.Background(), push.Click{
				Action:       click.Action,
				Notification: &click.Notification,
			})

		case MessageTypePing:
			select {
			case c.send <- Message{Type: MessageTypePong}:
			default:
			}
		}
	}
}

// writePump pushes hub messages and keepalive pings to the UI.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logging.Error().Err(err).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
