// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package worker

import (
	"context"
	"net/http"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/daybook-hq/daybook/internal/cachestore"
)

// fakeClaimer records the claimed router and advances the control epoch.
type fakeClaimer struct {
	epoch  atomic.Int64
	router atomic.Pointer[Router]
}

func (c *fakeClaimer) Claim(router *Router) int64 {
	c.router.Store(router)
	return c.epoch.Add(1)
}

func newTestController(t *testing.T, fetcher Fetcher, v cachestore.Version) (*Controller, cachestore.Store, *fakeClaimer) {
	t.Helper()

	store, err := cachestore.Open(&cachestore.Config{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	claimer := &fakeClaimer{}
	ctrl := NewController(ControllerConfig{
		Store:               store,
		Fetcher:             fetcher,
		Claimer:             claimer,
		Version:             v,
		OriginHost:          "localhost:3000",
		ActionHeader:        "X-Daybook-Action",
		AssetManifest:       []string{"/", "/manifest.json", "/icons/icon-192.png"},
		NavigableRoutes:     []string{"/", "/journal", "/readings"},
		OfflineFallbackPath: "/offline",
	})
	return ctrl, store, claimer
}

func primingFetcher() *fakeFetcher {
	fetcher := newFakeFetcher()
	fetcher.serve("GET", "/", htmlResponse("<html>shell</html>"))
	fetcher.serve("GET", "/manifest.json", &Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(`{"name":"Daybook"}`),
	})
	fetcher.serve("GET", "/icons/icon-192.png", assetResponse("png"))
	fetcher.serve("GET", "/journal", htmlResponse("<html>journal</html>"))
	fetcher.serve("GET", "/readings", htmlResponse("<html>readings</html>"))
	fetcher.serve("GET", "/offline", htmlResponse("<html>offline</html>"))
	return fetcher
}

func TestInstallPrimesManifestIntoTiers(t *testing.T) {
	fetcher := primingFetcher()
	ctrl, _, claimer := newTestController(t, fetcher, 1)
	ctx := context.Background()

	if err := ctrl.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	router := claimer.router.Load()
	if router == nil {
		t.Fatal("activation must claim a router")
	}

	// Every manifest asset is served cache-first with no network call.
	fetcher.offline = true
	before := fetcher.callCount()
	resp, err := router.Handle(ctx, &Request{Method: "GET", URL: mustURL(t, "/icons/icon-192.png"), Header: http.Header{}})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if string(resp.Body) != "png" {
		t.Errorf("expected primed asset, got %q", resp.Body)
	}
	if fetcher.callCount() != before {
		t.Errorf("primed asset lookup must not hit the network")
	}
}

func TestInstallIsBestEffort(t *testing.T) {
	fetcher := primingFetcher()
	// /manifest.json will 404; install must still prime the rest.
	fetcher.mu.Lock()
	delete(fetcher.responses, "GET /manifest.json")
	fetcher.mu.Unlock()

	ctrl, _, claimer := newTestController(t, fetcher, 1)
	ctx := context.Background()

	if err := ctrl.Run(ctx); err != nil {
		t.Fatalf("install must complete despite a failed asset: %v", err)
	}

	router := claimer.router.Load()
	fetcher.offline = true

	resp, err := router.Handle(ctx, &Request{Method: "GET", URL: mustURL(t, "/icons/icon-192.png"), Header: http.Header{}})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if string(resp.Body) != "png" {
		t.Errorf("surviving assets must still be primed, got %q", resp.Body)
	}
}

func TestActivateEvictsStaleGenerations(t *testing.T) {
	fetcher := primingFetcher()
	ctrl, store, _ := newTestController(t, fetcher, 2)
	ctx := context.Background()

	// A previous generation left its tiers behind.
	for _, logical := range cachestore.LogicalTiers {
		if _, err := store.Open(logical, 1); err != nil {
			t.Fatalf("seed stale tier: %v", err)
		}
	}

	if err := ctrl.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	names, err := store.Names()
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	sort.Strings(names)

	want := []string{"content-v2", "routes-v2", "shell-v2"}
	if len(names) != len(want) {
		t.Fatalf("expected exactly one generation per tier, got %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestActivateAdvancesEpochPerGeneration(t *testing.T) {
	fetcher := primingFetcher()
	ctrl, store, claimer := newTestController(t, fetcher, 1)
	ctx := context.Background()

	if err := ctrl.Run(ctx); err != nil {
		t.Fatalf("run v1: %v", err)
	}
	if got := claimer.epoch.Load(); got != 1 {
		t.Fatalf("expected epoch 1 after first activation, got %d", got)
	}
	first := claimer.router.Load()

	next := NewController(ControllerConfig{
		Store:               store,
		Fetcher:             fetcher,
		Claimer:             claimer,
		Version:             2,
		OriginHost:          "localhost:3000",
		ActionHeader:        "X-Daybook-Action",
		AssetManifest:       []string{"/"},
		NavigableRoutes:     []string{"/"},
		OfflineFallbackPath: "/offline",
	})
	if err := next.Run(ctx); err != nil {
		t.Fatalf("run v2: %v", err)
	}

	if got := claimer.epoch.Load(); got != 2 {
		t.Errorf("expected epoch 2 after second activation, got %d", got)
	}
	if claimer.router.Load() == first {
		t.Error("new generation must claim with a new router instance")
	}
}

func TestActivateBeforeInstallFails(t *testing.T) {
	ctrl, _, _ := newTestController(t, newFakeFetcher(), 1)
	if err := ctrl.Activate(context.Background()); err == nil {
		t.Error("activate without install must fail")
	}
}
