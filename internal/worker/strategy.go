// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package worker

import (
	"context"
	"net/http"

	"github.com/daybook-hq/daybook/internal/cachestore"
	"github.com/daybook-hq/daybook/internal/logging"
	"github.com/daybook-hq/daybook/internal/metrics"
)

// networkFirst serves navigable routes: freshness matters more than speed,
// but availability must degrade gracefully.
//
// Successful 200 responses are written through into the current routes tier.
// On network failure the last cached entry for the route is served; if none
// exists, the offline fallback shell; if even that was never primed, the
// synthesized 503.
func (r *Router) networkFirst(ctx context.Context, req *Request) *Response {
	key := req.Key()

	resp, err := r.fetcher.Fetch(ctx, req)
	if err == nil {
		if resp.StatusCode == http.StatusOK {
			// Write-through. Concurrent requests racing on the same key are
			// benign: both writers computed the same bytes.
			if putErr := r.navTier.Put(ctx, key, resp.toCached()); putErr != nil {
				logging.Warn().Err(putErr).Str("url", key.URL).Msg("route write-through failed")
			}
		}
		metrics.RecordStrategyOutcome(StrategyNetworkFirst, "network")
		return resp
	}

	logging.Debug().Err(err).Str("url", key.URL).Msg("network failed, falling back to routes tier")

	if cached, ok, getErr := r.navTier.Get(ctx, key); getErr == nil && ok {
		metrics.RecordStrategyOutcome(StrategyNetworkFirst, "cache")
		return fromCached(cached)
	}

	shellKey := cachestore.NewRequestKey(http.MethodGet, r.offlinePath)
	if cached, ok, getErr := r.navTier.Get(ctx, shellKey); getErr == nil && ok {
		metrics.RecordStrategyOutcome(StrategyNetworkFirst, "offline_shell")
		return fromCached(cached)
	}

	metrics.RecordStrategyOutcome(StrategyNetworkFirst, "synthesized_503")
	return synthesizeUnavailable()
}

// cacheFirst serves static assets and previously viewed content: the cached
// entry wins when present, the network fills gaps. Non-document 200 responses
// fetched on a miss are stored into the content tier so previously viewed
// readings and images survive going offline.
func (r *Router) cacheFirst(ctx context.Context, req *Request) *Response {
	key := req.Key()

	for _, tier := range []cachestore.Tier{r.shell, r.navTier, r.content} {
		if cached, ok, err := tier.Get(ctx, key); err == nil && ok {
			metrics.RecordStrategyOutcome(StrategyCacheFirst, "cache")
			return fromCached(cached)
		}
	}

	resp, err := r.fetcher.Fetch(ctx, req)
	if err != nil {
		logging.Debug().Err(err).Str("url", key.URL).Msg("uncached asset unreachable while offline")
		metrics.RecordStrategyOutcome(StrategyCacheFirst, "synthesized_503")
		return synthesizeUnavailable()
	}

	if resp.StatusCode == http.StatusOK && !resp.isDocument() {
		if putErr := r.content.Put(ctx, key, resp.toCached()); putErr != nil {
			logging.Warn().Err(putErr).Str("url", key.URL).Msg("content store failed")
		}
	}

	metrics.RecordStrategyOutcome(StrategyCacheFirst, "network")
	return resp
}
