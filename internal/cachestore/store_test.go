// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package cachestore

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := Open(&Config{InMemory: true})
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestTierPutGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tier, err := store.Open(TierShell, 1)
	if err != nil {
		t.Fatalf("open tier: %v", err)
	}

	key := NewRequestKey("get", "http://localhost:3000/icons/icon-192.png#frag")
	if key.Method != http.MethodGet {
		t.Errorf("expected canonical GET method, got %q", key.Method)
	}
	if key.URL != "http://localhost:3000/icons/icon-192.png" {
		t.Errorf("expected fragment stripped, got %q", key.URL)
	}

	want := &CachedResponse{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": []string{"image/png"}},
		Body:       []byte("png-bytes"),
	}
	if err := tier.Put(ctx, key, want); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := tier.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.StatusCode != 200 || string(got.Body) != "png-bytes" {
		t.Errorf("unexpected cached response: %+v", got)
	}
	if got.StoredAt.IsZero() {
		t.Error("expected StoredAt to be set on insertion")
	}
	if got.IsDocument() {
		t.Error("png must not be classified as a document")
	}
}

func TestTierMiss(t *testing.T) {
	store := newTestStore(t)

	tier, err := store.Open(TierRoutes, 1)
	if err != nil {
		t.Fatalf("open tier: %v", err)
	}

	_, ok, err := tier.Get(context.Background(), NewRequestKey("GET", "/journal"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("expected miss on empty tier")
	}
}

func TestTierRejectsNonGet(t *testing.T) {
	store := newTestStore(t)

	tier, err := store.Open(TierContent, 1)
	if err != nil {
		t.Fatalf("open tier: %v", err)
	}

	err = tier.Put(context.Background(), NewRequestKey("POST", "/readings"), &CachedResponse{StatusCode: 200})
	if !errors.Is(err, ErrNonGetKey) {
		t.Errorf("expected ErrNonGetKey, got %v", err)
	}
}

func TestStoreNamesAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old, err := store.Open(TierShell, 1)
	if err != nil {
		t.Fatalf("open old tier: %v", err)
	}
	if _, err := store.Open(TierShell, 2); err != nil {
		t.Fatalf("open new tier: %v", err)
	}

	key := NewRequestKey("GET", "/manifest.json")
	if err := old.Put(ctx, key, &CachedResponse{StatusCode: 200, Body: []byte("{}")}); err != nil {
		t.Fatalf("put: %v", err)
	}

	names, err := store.Names()
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 tiers, got %v", names)
	}

	if err := store.Delete("shell-v1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	names, err = store.Names()
	if err != nil {
		t.Fatalf("names after delete: %v", err)
	}
	if len(names) != 1 || names[0] != "shell-v2" {
		t.Errorf("expected only shell-v2 to remain, got %v", names)
	}

	// Entries of the deleted generation are gone.
	_, ok, err := old.Get(ctx, key)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if ok {
		t.Error("expected entry of deleted tier to be gone")
	}
}

func TestTierLen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tier, err := store.Open(TierContent, 3)
	if err != nil {
		t.Fatalf("open tier: %v", err)
	}

	for _, u := range []string{"/readings/1", "/readings/2", "/readings/3"} {
		if err := tier.Put(ctx, NewRequestKey("GET", u), &CachedResponse{StatusCode: 200}); err != nil {
			t.Fatalf("put %s: %v", u, err)
		}
	}

	n, err := tier.Len(ctx)
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 entries, got %d", n)
	}
}

func TestOpenExistingTierIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.Open(TierRoutes, 5)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	key := NewRequestKey("GET", "/journal")
	if err := a.Put(ctx, key, &CachedResponse{StatusCode: 200}); err != nil {
		t.Fatalf("put: %v", err)
	}

	b, err := store.Open(TierRoutes, 5)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok, _ := b.Get(ctx, key); !ok {
		t.Error("expected entry to survive reopen of the same tier")
	}
}

func TestClosedStoreErrors(t *testing.T) {
	store := newTestStore(t)
	tier, err := store.Open(TierShell, 1)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := store.Names(); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Names after close: expected ErrStoreClosed, got %v", err)
	}
	if err := tier.Put(context.Background(), NewRequestKey("GET", "/"), &CachedResponse{}); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Put after close: expected ErrStoreClosed, got %v", err)
	}
}

func TestTierNameRoundTrip(t *testing.T) {
	name := TierName(TierShell, 4)
	if name != "shell-v4" {
		t.Fatalf("TierName = %q, want shell-v4", name)
	}

	logical, v, ok := ParseTierName(name)
	if !ok || logical != TierShell || v != 4 {
		t.Errorf("ParseTierName(%q) = (%q, %d, %v)", name, logical, v, ok)
	}
}

func TestParseTierNameRejectsGarbage(t *testing.T) {
	for _, name := range []string{"", "shell", "shell-", "shell-vx", "-v3", "shell-v-1"} {
		if _, _, ok := ParseTierName(name); ok {
			t.Errorf("ParseTierName(%q) should not parse", name)
		}
	}
}
