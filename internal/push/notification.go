// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

// Package push receives push payloads from the transport, normalizes them
// into displayable notifications, and routes notification interactions back
// to an attached UI client.
package push

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/daybook-hq/daybook/internal/metrics"
)

// Default notification content, shown whenever the inbound payload is absent
// or unparsable.
const (
	DefaultTitle = "Daybook"
	DefaultBody  = "You have a new update."
	DefaultIcon  = "/icons/icon-192.png"
	DefaultBadge = "/icons/icon-192.png"
	DefaultTag   = "daybook-notification"
	DefaultURL   = "/"

	// ActionClose dismisses the notification with no navigation.
	ActionClose = "close"
	// ActionOpen navigates to the notification's target URL.
	ActionOpen = "open"
)

// Action is one interactive button on a notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// NotificationData carries the navigation target and arrival time.
type NotificationData struct {
	URL           string    `json:"url"`
	DateOfArrival time.Time `json:"date_of_arrival"`
}

// Notification is the display model handed to the notifier. It is ephemeral:
// derived per push event, never persisted.
type Notification struct {
	Title              string           `json:"title"`
	Body               string           `json:"body"`
	Icon               string           `json:"icon"`
	Badge              string           `json:"badge"`
	Tag                string           `json:"tag"`
	RequireInteraction bool             `json:"require_interaction"`
	Data               NotificationData `json:"data"`
	Actions            []Action         `json:"actions"`
}

// TargetURL returns the navigation target for a click, defaulting to the
// app root when the payload carried none.
func (n *Notification) TargetURL() string {
	if n.Data.URL == "" {
		return DefaultURL
	}
	return n.Data.URL
}

// inboundPayload is the wire shape of a push payload. Every field is
// optional; Normalize supplies the defaults.
type inboundPayload struct {
	Title              string   `json:"title"`
	Body               string   `json:"body"`
	Icon               string   `json:"icon"`
	Badge              string   `json:"badge"`
	Tag                string   `json:"tag"`
	RequireInteraction bool     `json:"requireInteraction"`
	Data               *struct {
		URL string `json:"url"`
	} `json:"data"`
	Actions []Action `json:"actions"`
}

// defaultNotification returns the fixed fallback model.
func defaultNotification(now time.Time) *Notification {
	return &Notification{
		Title: DefaultTitle,
		Body:  DefaultBody,
		Icon:  DefaultIcon,
		Badge: DefaultBadge,
		Tag:   DefaultTag,
		Data: NotificationData{
			URL:           DefaultURL,
			DateOfArrival: now,
		},
		Actions: []Action{
			{Action: ActionOpen, Title: "Open"},
			{Action: ActionClose, Title: "Dismiss"},
		},
	}
}

// Normalize turns a raw push payload into a displayable notification. It
// never fails: an absent or unparsable payload yields the default model, and
// every missing field of a parsable payload is filled in. A malformed push
// must still produce a visible notification.
func Normalize(payload []byte) *Notification {
	now := time.Now().UTC()
	n := defaultNotification(now)

	if len(payload) == 0 {
		metrics.PushMalformed.Inc()
		return n
	}

	var in inboundPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		metrics.PushMalformed.Inc()
		return n
	}

	if in.Title != "" {
		n.Title = in.Title
	}
	if in.Body != "" {
		n.Body = in.Body
	}
	if in.Icon != "" {
		n.Icon = in.Icon
	}
	if in.Badge != "" {
		n.Badge = in.Badge
	}
	if in.Tag != "" {
		n.Tag = in.Tag
	}
	n.RequireInteraction = in.RequireInteraction
	if in.Data != nil && in.Data.URL != "" {
		n.Data.URL = in.Data.URL
	}
	if len(in.Actions) > 0 {
		n.Actions = in.Actions
	}
	return n
}
