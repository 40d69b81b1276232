// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package push

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/daybook-hq/daybook/internal/logging"
	"github.com/daybook-hq/daybook/internal/metrics"
)

// Notifier displays a notification to the user. Display must not return
// until the notification has been handed off: the receiver acks the push
// event only after Display returns, so the transport redelivers if the
// worker dies mid-display.
type Notifier interface {
	Display(ctx context.Context, n *Notification) error
}

// ReceiverConfig holds push receiver settings.
type ReceiverConfig struct {
	// Topic is the subject push payloads arrive on.
	Topic string

	// CloseTimeout bounds handler draining on shutdown.
	CloseTimeout time.Duration

	// Retry tuning for transient display failures.
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
}

// DefaultReceiverConfig returns production defaults.
func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		Topic:                "push.notifications",
		CloseTimeout:         15 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: time.Second,
	}
}

// Receiver consumes push payloads from the transport and displays them.
// It never drops an event silently: a payload that cannot be parsed still
// produces the default notification.
type Receiver struct {
	router   *message.Router
	notifier Notifier
	cfg      ReceiverConfig
}

// NewReceiver builds a message router with one consumer handler on the
// configured topic. Panics in the notifier are recovered and transient
// display failures are retried with backoff before the message is nacked.
func NewReceiver(cfg ReceiverConfig, sub message.Subscriber, notifier Notifier) (*Receiver, error) {
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}

	logger := logging.NewWatermillAdapter()

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create push router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		Multiplier:      2.0,
		Logger:          logger,
	}
	router.AddMiddleware(retry.Middleware)

	r := &Receiver{router: router, notifier: notifier, cfg: cfg}
	router.AddConsumerHandler("push-display", cfg.Topic, sub, r.handle)
	return r, nil
}

// handle processes one push event. Returning nil acks the message; the
// display is therefore awaited inside the handler, never fired and
// forgotten.
func (r *Receiver) handle(msg *message.Message) error {
	metrics.PushReceived.Inc()

	n := Normalize(msg.Payload)

	if err := r.notifier.Display(msg.Context(), n); err != nil {
		logging.Warn().
			Err(err).
			Str("message_uuid", msg.UUID).
			Str("title", n.Title).
			Msg("notification display failed")
		return fmt.Errorf("display notification: %w", err)
	}

	metrics.NotificationsDisplayed.Inc()
	logging.Debug().
		Str("message_uuid", msg.UUID).
		Str("title", n.Title).
		Str("tag", n.Tag).
		Msg("notification displayed")
	return nil
}

// Run starts the receiver and blocks until the context is canceled.
func (r *Receiver) Run(ctx context.Context) error {
	logging.Info().Str("topic", r.cfg.Topic).Msg("push receiver starting")
	return r.router.Run(ctx)
}

// Running returns a channel closed once the router is running. Tests use it
// to publish only after the subscription is live.
func (r *Receiver) Running() chan struct{} {
	return r.router.Running()
}

// Close shuts the router down, draining in-flight handlers.
func (r *Receiver) Close() error {
	return r.router.Close()
}
