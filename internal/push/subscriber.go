// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package push

import (
	"context"
	"fmt"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/daybook-hq/daybook/internal/logging"
)

// SubscriberConfig holds NATS JetStream subscription settings.
type SubscriberConfig struct {
	// URL is the NATS server URL.
	URL string

	// DurableName identifies the JetStream durable consumer, so a restarted
	// worker resumes where it left off instead of replaying or skipping.
	DurableName string

	// MaxDeliver caps redelivery attempts per message.
	MaxDeliver int

	// AckWaitTimeout is how long JetStream waits for an ack before
	// redelivering. Display is awaited inside the handler, so this bounds a
	// hung display.
	AckWaitTimeout time.Duration

	// MaxReconnects and ReconnectWait tune connection recovery.
	MaxReconnects int
	ReconnectWait time.Duration

	// CloseTimeout bounds subscriber shutdown.
	CloseTimeout time.Duration
}

// DefaultSubscriberConfig returns production defaults.
func DefaultSubscriberConfig(url, durableName string) SubscriberConfig {
	return SubscriberConfig{
		URL:            url,
		DurableName:    durableName,
		MaxDeliver:     5,
		AckWaitTimeout: 30 * time.Second,
		MaxReconnects:  -1, // retry forever; push is a long-lived background subscription
		ReconnectWait:  2 * time.Second,
		CloseTimeout:   15 * time.Second,
	}
}

// Subscriber wraps a durable JetStream subscription for push payloads.
type Subscriber struct {
	subscriber message.Subscriber
}

// NewSubscriber connects to NATS and creates a JetStream subscriber. The
// stream is auto-provisioned from the topic name on first use.
func NewSubscriber(cfg SubscriberConfig) (*Subscriber, error) {
	logger := logging.NewWatermillAdapter()

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("push transport disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("push transport reconnected")
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(cfg.MaxDeliver),
		natsgo.AckWait(cfg.AckWaitTimeout),
		// New events only: missed notifications are stale by the time the
		// worker comes back, the durable consumer covers short gaps.
		natsgo.DeliverNew(),
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:            cfg.URL,
		AckWaitTimeout: cfg.AckWaitTimeout,
		CloseTimeout:   cfg.CloseTimeout,
		NatsOptions:    natsOpts,
		Unmarshaler:    &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision:    true,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create push subscriber: %w", err)
	}

	return &Subscriber{subscriber: sub}, nil
}

// Subscribe returns the message channel for a topic.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return s.subscriber.Subscribe(ctx, topic)
}

// Close shuts the subscription down.
func (s *Subscriber) Close() error {
	return s.subscriber.Close()
}
