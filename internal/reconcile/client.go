// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/daybook-hq/daybook/internal/logging"
	"github.com/daybook-hq/daybook/internal/metrics"
	"github.com/daybook-hq/daybook/internal/queue"
)

// RemoteAPI is the slice of the remote Daybook API the reconciliation engine
// needs: create one record in a collection, JSON in, 2xx out.
type RemoteAPI interface {
	Create(ctx context.Context, entityType queue.EntityType, payload json.RawMessage) error
}

// Sentinel errors for the remote client.
var (
	ErrNoRemote       = errors.New("remote API base URL is not configured")
	ErrRemoteRejected = errors.New("remote API rejected the mutation")
)

// collectionPath maps an entity type onto its remote collection endpoint.
func collectionPath(entityType queue.EntityType) (string, error) {
	switch entityType {
	case queue.EntityReading:
		return "/readings", nil
	case queue.EntityTag:
		return "/tags", nil
	}
	return "", fmt.Errorf("%w: %q", queue.ErrUnknownEntityType, entityType)
}

// ClientConfig holds remote API client settings.
type ClientConfig struct {
	// BaseURL is the API root, e.g. https://api.daybook.example.
	BaseURL string

	// Token is an optional bearer token. Authentication is owned remotely;
	// the client only forwards the credential.
	Token string

	// Timeout bounds each call.
	Timeout time.Duration
}

// Client talks to the remote Daybook API with circuit breaker protection.
// When the remote is down, the breaker fails queued items fast; they stay in
// the queue and are retried on the next drain.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[any]
}

// NewClient creates a remote API client.
//
// Breaker tuning: opens after a 60% failure rate with at least 10 calls in a
// one-minute window, allows 3 probes in half-open, recovers after 2 minutes.
func NewClient(cfg ClientConfig) *Client {
	const cbName = "daybook-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		cb:         cb,
	}
}

// breakerStateValue encodes a breaker state for the state gauge.
func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// Create POSTs a mutation payload to its collection endpoint. Any non-2xx
// status is a failure; the caller leaves the item queued.
func (c *Client) Create(ctx context.Context, entityType queue.EntityType, payload json.RawMessage) error {
	if c.cfg.BaseURL == "" {
		return ErrNoRemote
	}

	path, err := collectionPath(entityType)
	if err != nil {
		return err
	}

	_, err = c.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("post %s: %w", path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("%w: %s returned %d: %s", ErrRemoteRejected, path, resp.StatusCode, body)
		}
		return nil, nil
	})
	return err
}
