// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package push

import (
	"context"

	"github.com/daybook-hq/daybook/internal/logging"
	"github.com/daybook-hq/daybook/internal/metrics"
)

// ClientInfo describes one attached UI client and the URL it currently shows.
type ClientInfo struct {
	ID  string
	URL string
}

// ClientRegistry is the set of attached UI clients the click router can
// navigate. The notify hub implements it.
type ClientRegistry interface {
	// Clients lists the currently attached clients.
	Clients(ctx context.Context) []ClientInfo

	// Focus brings an existing client to the foreground.
	Focus(ctx context.Context, clientID string) error

	// OpenWindow opens a new client at the given URL.
	OpenWindow(ctx context.Context, url string) error
}

// Click is one notification interaction.
type Click struct {
	// Action is the button pressed, or empty for a plain body click.
	Action string

	// Notification is the model the interaction belongs to.
	Notification *Notification
}

// ClickRouter maps a notification interaction onto a navigation.
type ClickRouter struct {
	registry ClientRegistry
}

// NewClickRouter creates a click router over a client registry.
func NewClickRouter(registry ClientRegistry) *ClickRouter {
	return &ClickRouter{registry: registry}
}

// Route handles one interaction. A close action dismisses with no further
// effect. Anything else focuses an already-open client showing the target
// URL, or opens a new one when none is, so an open app never gets a
// duplicate window.
func (c *ClickRouter) Route(ctx context.Context, click Click) error {
	action := click.Action
	if action == "" {
		action = ActionOpen
	}
	metrics.NotificationClicks.WithLabelValues(action).Inc()

	if action == ActionClose {
		logging.Debug().Msg("notification dismissed")
		return nil
	}

	target := click.Notification.TargetURL()

	for _, client := range c.registry.Clients(ctx) {
		if client.URL == target {
			logging.Debug().
				Str("client_id", client.ID).
				Str("url", target).
				Msg("focusing existing client")
			return c.registry.Focus(ctx, client.ID)
		}
	}

	logging.Debug().Str("url", target).Msg("opening new client")
	return c.registry.OpenWindow(ctx, target)
}
