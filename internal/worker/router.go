// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package worker

import (
	"context"
	"net/http"
	"strings"

	"github.com/daybook-hq/daybook/internal/cachestore"
	"github.com/daybook-hq/daybook/internal/logging"
	"github.com/daybook-hq/daybook/internal/metrics"
)

// Strategy names used for classification results and metrics labels.
const (
	StrategyNetworkFirst = "network_first"
	StrategyCacheFirst   = "cache_first"
	StrategyBypass       = "bypass"
	StrategyNetworkOnly  = "network_only"
)

// Router classifies every intercepted request and dispatches it to a
// strategy. One Router instance exists per activated cache generation; the
// host adapter swaps instances atomically when a new generation claims
// control, so in-flight requests finish on the generation that accepted them.
type Router struct {
	originHost   string
	actionHeader string
	routes       []string
	offlinePath  string
	fetcher      Fetcher

	shell   cachestore.Tier
	navTier cachestore.Tier
	content cachestore.Tier
}

// RouterDeps collects the collaborators a Router generation is built from.
type RouterDeps struct {
	OriginHost   string
	ActionHeader string
	Routes       []string
	OfflinePath  string
	Fetcher      Fetcher
	Shell        cachestore.Tier
	NavRoutes    cachestore.Tier
	Content      cachestore.Tier
}

// NewRouter constructs a Router bound to the current tiers of one cache
// generation.
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		originHost:   deps.OriginHost,
		actionHeader: deps.ActionHeader,
		routes:       deps.Routes,
		offlinePath:  deps.OfflinePath,
		fetcher:      deps.Fetcher,
		shell:        deps.Shell,
		navTier:      deps.NavRoutes,
		content:      deps.Content,
	}
}

// Handle is the single entry point for every outgoing request.
//
// Classification order:
//  1. Cross-origin requests pass straight through.
//  2. Framework action requests (marker header, or multipart form data)
//     pass straight through; their exactly-once semantics are owned by the
//     remote action pathway, so the offline layer must never wrap them.
//  3. Remaining non-GET requests go to the network directly; a network
//     failure is synthesized into a retryable 503 JSON error.
//  4. GET requests matching a navigable route use network-first with cache
//     fallback; every other GET uses cache-first.
//
// An error return only occurs on the bypass path, where no fallback may be
// synthesized.
func (r *Router) Handle(ctx context.Context, req *Request) (*Response, error) {
	if r.isCrossOrigin(req) || r.isFrameworkAction(req) {
		return r.bypass(ctx, req)
	}

	if req.Method != http.MethodGet {
		return r.networkOnly(ctx, req), nil
	}

	if r.matchesNavigableRoute(req.URL.Path) {
		return r.networkFirst(ctx, req), nil
	}
	return r.cacheFirst(ctx, req), nil
}

// isCrossOrigin reports whether the request targets a different origin.
// Origin-relative URLs (empty host) are always same-origin.
func (r *Router) isCrossOrigin(req *Request) bool {
	return req.URL.Host != "" && req.URL.Host != r.originHost
}

// isFrameworkAction recognizes the excluded remote-mutation pathway: the
// configured marker header, or a multipart form submission.
func (r *Router) isFrameworkAction(req *Request) bool {
	if r.actionHeader != "" && req.Header.Get(r.actionHeader) != "" {
		return true
	}
	return strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data")
}

// matchesNavigableRoute matches the path against the navigable route
// prefixes. "/" matches only itself; longer prefixes match themselves and
// their subtrees, so "/readings" also covers "/readings/42".
func (r *Router) matchesNavigableRoute(path string) bool {
	for _, route := range r.routes {
		if path == route {
			return true
		}
		if route != "/" && strings.HasPrefix(path, route+"/") {
			return true
		}
	}
	return false
}

// bypass forwards the request unchanged: no caching, no retry, no
// synthesized error.
func (r *Router) bypass(ctx context.Context, req *Request) (*Response, error) {
	resp, err := r.fetcher.Fetch(ctx, req)
	if err != nil {
		metrics.RecordStrategyOutcome(StrategyBypass, "error")
		return nil, err
	}
	metrics.RecordStrategyOutcome(StrategyBypass, "passthrough")
	return resp, nil
}

// networkOnly executes a mutating request directly. Network failure is
// reported to the caller as a retryable 503, never as an error: the UI layer
// reacts by queueing the mutation offline.
func (r *Router) networkOnly(ctx context.Context, req *Request) *Response {
	resp, err := r.fetcher.Fetch(ctx, req)
	if err != nil {
		logging.Debug().Err(err).Str("path", req.URL.Path).Msg("mutating request failed, synthesizing 503")
		metrics.RecordStrategyOutcome(StrategyNetworkOnly, "synthesized_503")
		return synthesizeUnavailable()
	}
	metrics.RecordStrategyOutcome(StrategyNetworkOnly, "network")
	return resp
}

// synthesizeUnavailable builds the retryable offline error response.
func synthesizeUnavailable() *Response {
	return &Response{
		StatusCode: http.StatusServiceUnavailable,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(`{"error":"Network error, please try again when online"}`),
	}
}
