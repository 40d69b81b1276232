// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package worker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/daybook-hq/daybook/internal/cachestore"
	"github.com/daybook-hq/daybook/internal/logging"
	"github.com/daybook-hq/daybook/internal/metrics"
)

// Claimer is the host adapter hook through which an activated generation
// takes control of open clients. Claim swaps the authoritative Router
// atomically and returns the new control epoch; requests already in flight
// finish on the generation that accepted them.
type Claimer interface {
	Claim(router *Router) (epoch int64)
}

// ControllerConfig collects everything the lifecycle controller needs.
type ControllerConfig struct {
	Store        cachestore.Store
	Fetcher      Fetcher
	Claimer      Claimer
	Version      cachestore.Version
	OriginHost   string
	ActionHeader string

	// AssetManifest lists paths primed into the shell tier at install.
	AssetManifest []string

	// NavigableRoutes lists route prefixes primed into the routes tier and
	// used for strategy classification.
	NavigableRoutes []string

	// OfflineFallbackPath is primed into the routes tier; network-first
	// serves it when a route has no cached entry.
	OfflineFallbackPath string
}

// Controller governs the install -> activate lifecycle of a cache generation.
type Controller struct {
	cfg ControllerConfig

	shell   cachestore.Tier
	nav     cachestore.Tier
	content cachestore.Tier
}

// NewController creates a lifecycle controller for one cache version.
func NewController(cfg ControllerConfig) *Controller {
	return &Controller{cfg: cfg}
}

// Run installs and then immediately activates the current generation. The
// worker never waits for existing clients to close before activating.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Install(ctx); err != nil {
		return err
	}
	return c.Activate(ctx)
}

// Install opens this generation's tiers and primes them: the shell tier from
// the asset manifest, the routes tier from the navigable route list plus the
// offline fallback page.
//
// Population is best-effort and not atomic: a failed asset is logged and
// skipped so that one missing or renamed asset cannot deny all offline
// capability. Install fails only when a tier itself cannot be opened.
func (c *Controller) Install(ctx context.Context) error {
	var err error
	if c.shell, err = c.cfg.Store.Open(cachestore.TierShell, c.cfg.Version); err != nil {
		return fmt.Errorf("open shell tier: %w", err)
	}
	if c.nav, err = c.cfg.Store.Open(cachestore.TierRoutes, c.cfg.Version); err != nil {
		return fmt.Errorf("open routes tier: %w", err)
	}
	if c.content, err = c.cfg.Store.Open(cachestore.TierContent, c.cfg.Version); err != nil {
		return fmt.Errorf("open content tier: %w", err)
	}

	primed, failed := c.prime(ctx, c.shell, c.cfg.AssetManifest)

	routePaths := append(append([]string{}, c.cfg.NavigableRoutes...), c.cfg.OfflineFallbackPath)
	p, f := c.prime(ctx, c.nav, routePaths)
	primed, failed = primed+p, failed+f

	logging.Info().
		Int("version", int(c.cfg.Version)).
		Int("primed", primed).
		Int("failed", failed).
		Msg("install complete")
	return nil
}

// prime fetches each path and stores successful responses into the tier.
func (c *Controller) prime(ctx context.Context, tier cachestore.Tier, paths []string) (primed, failed int) {
	for _, path := range paths {
		u, err := url.Parse(path)
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("skipping unparsable manifest path")
			failed++
			metrics.InstallAssetFailures.Inc()
			continue
		}

		req := &Request{Method: http.MethodGet, URL: u, Header: http.Header{}}
		resp, err := c.cfg.Fetcher.Fetch(ctx, req)
		if err != nil || resp.StatusCode != http.StatusOK {
			logging.Warn().Err(err).Str("path", path).Msg("asset priming failed, continuing install")
			failed++
			metrics.InstallAssetFailures.Inc()
			continue
		}

		if err := tier.Put(ctx, req.Key(), resp.toCached()); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("asset store failed, continuing install")
			failed++
			metrics.InstallAssetFailures.Inc()
			continue
		}

		primed++
		metrics.InstallAssetsPrimed.Inc()
	}
	return primed, failed
}

// Activate evicts every tier whose (logical name, version) does not match
// the current generation, then claims the host adapter so the new Router
// governs requests without a reload.
//
// Eviction failures are logged and non-fatal: a stale tier left behind is
// retried on the next activation. The claim happens strictly after the
// eviction scan, so no routing logic of this generation runs before
// activation completes.
func (c *Controller) Activate(ctx context.Context) error {
	if c.shell == nil || c.nav == nil || c.content == nil {
		return fmt.Errorf("activate before install")
	}

	expected := make(map[string]bool, len(cachestore.LogicalTiers))
	for _, logical := range cachestore.LogicalTiers {
		expected[cachestore.TierName(logical, c.cfg.Version)] = true
	}

	names, err := c.cfg.Store.Names()
	if err != nil {
		return fmt.Errorf("enumerate tiers: %w", err)
	}

	for _, name := range names {
		// Structural comparison: unparsable names are stale by definition.
		logical, v, ok := cachestore.ParseTierName(name)
		if ok && expected[cachestore.TierName(logical, v)] {
			continue
		}
		if err := c.cfg.Store.Delete(name); err != nil {
			logging.Warn().Err(err).Str("tier", name).Msg("stale tier eviction failed, will retry on next activation")
		}
	}

	router := NewRouter(RouterDeps{
		OriginHost:   c.cfg.OriginHost,
		ActionHeader: c.cfg.ActionHeader,
		Routes:       c.cfg.NavigableRoutes,
		OfflinePath:  c.cfg.OfflineFallbackPath,
		Fetcher:      c.cfg.Fetcher,
		Shell:        c.shell,
		NavRoutes:    c.nav,
		Content:      c.content,
	})

	epoch := c.cfg.Claimer.Claim(router)
	logging.Info().
		Int("version", int(c.cfg.Version)).
		Int64("epoch", epoch).
		Msg("activated, clients claimed")
	return nil
}
