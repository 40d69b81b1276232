// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package queue

import (
	"context"
	"time"

	"github.com/daybook-hq/daybook/internal/logging"
)

// Sampler periodically refreshes the queue depth gauge so dashboards track
// pending mutations even when no control endpoint is being hit.
type Sampler struct {
	queue    Queue
	interval time.Duration
}

// NewSampler creates a depth sampler. Interval defaults to 30s.
func NewSampler(q Queue, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sampler{queue: q, interval: interval}
}

// Run samples until the context is canceled. Len itself updates the gauge.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.queue.Len(ctx); err != nil {
				logging.Warn().Err(err).Msg("queue depth sample failed")
			}
		}
	}
}
