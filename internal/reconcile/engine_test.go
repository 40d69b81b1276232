// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package reconcile

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/daybook-hq/daybook/internal/queue"
)

// apiRecorder is an httptest-backed fake of the remote Daybook API.
type apiRecorder struct {
	mu     sync.Mutex
	bodies []string
	paths  []string

	// failWhen rejects a request with 500 when it returns true.
	failWhen func(body string) bool
}

func (a *apiRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		a.mu.Lock()
		a.bodies = append(a.bodies, string(body))
		a.paths = append(a.paths, r.URL.Path)
		fail := a.failWhen != nil && a.failWhen(string(body))
		a.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}
}

func (a *apiRecorder) requestCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.bodies)
}

func newTestEngine(t *testing.T, rec *apiRecorder) (*Engine, *queue.BadgerQueue) {
	t.Helper()

	srv := httptest.NewServer(rec.handler())
	t.Cleanup(srv.Close)

	q, err := queue.Open(&queue.Config{InMemory: true})
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })

	client := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
	return NewEngine(q, client), q
}

func TestDrainSyncsAllAndEmptiesQueue(t *testing.T) {
	rec := &apiRecorder{}
	engine, q := newTestEngine(t, rec)
	ctx := context.Background()

	t1, err := q.Enqueue(ctx, queue.EntityReading, json.RawMessage(`{"text":"first"}`))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	t2, err := q.Enqueue(ctx, queue.EntityReading, json.RawMessage(`{"text":"second"}`))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if t1 == t2 {
		t.Fatal("tempIDs must be unique")
	}

	result, err := engine.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result.SyncedCount != 2 {
		t.Errorf("SyncedCount = %d, want 2", result.SyncedCount)
	}
	if len(result.Failures) != 0 {
		t.Errorf("expected no failures, got %v", result.Failures)
	}

	n, err := q.Len(ctx)
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 0 {
		t.Errorf("queue should be empty after drain, has %d", n)
	}
}

func TestDrainPartialFailureIsolation(t *testing.T) {
	rec := &apiRecorder{failWhen: func(body string) bool {
		return strings.Contains(body, "second")
	}}
	engine, q := newTestEngine(t, rec)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, queue.EntityReading, json.RawMessage(`{"text":"first"}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	bad, err := q.Enqueue(ctx, queue.EntityReading, json.RawMessage(`{"text":"second"}`))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.Enqueue(ctx, queue.EntityReading, json.RawMessage(`{"text":"third"}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	result, err := engine.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}

	if result.SyncedCount != 2 {
		t.Errorf("SyncedCount = %d, want 2", result.SyncedCount)
	}
	if len(result.Failures) != 1 || result.Failures[0].TempID != bad {
		t.Errorf("expected exactly the failed item reported, got %v", result.Failures)
	}

	remaining, err := q.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].TempID != bad {
		t.Errorf("only the failed item should stay queued, got %v", remaining)
	}
}

func TestDrainIsIdempotent(t *testing.T) {
	rec := &apiRecorder{}
	engine, q := newTestEngine(t, rec)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, queue.EntityReading, json.RawMessage(`{"text":"once"}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.Enqueue(ctx, queue.EntityTag, json.RawMessage(`{"name":"once"}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, err := engine.Drain(ctx); err != nil {
		t.Fatalf("first drain: %v", err)
	}
	calls := rec.requestCount()
	if calls != 2 {
		t.Fatalf("expected 2 remote calls, got %d", calls)
	}

	result, err := engine.Drain(ctx)
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if result.SyncedCount != 0 {
		t.Errorf("second drain resubmitted items: SyncedCount = %d", result.SyncedCount)
	}
	if rec.requestCount() != calls {
		t.Errorf("second drain made %d extra remote calls", rec.requestCount()-calls)
	}
}

func TestDrainStripsTempIDFromPayload(t *testing.T) {
	rec := &apiRecorder{}
	engine, q := newTestEngine(t, rec)
	ctx := context.Background()

	payload := json.RawMessage(`{"tempId":"local-123","text":"keep me"}`)
	if _, err := q.Enqueue(ctx, queue.EntityReading, payload); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, err := engine.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.bodies) != 1 {
		t.Fatalf("expected 1 remote call, got %d", len(rec.bodies))
	}
	if strings.Contains(rec.bodies[0], "tempId") {
		t.Errorf("tempId leaked to the remote API: %s", rec.bodies[0])
	}
	if !strings.Contains(rec.bodies[0], "keep me") {
		t.Errorf("payload content lost: %s", rec.bodies[0])
	}
}

func TestDrainRoutesEntityTypesToCollections(t *testing.T) {
	rec := &apiRecorder{}
	engine, q := newTestEngine(t, rec)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, queue.EntityReading, json.RawMessage(`{"text":"r"}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.Enqueue(ctx, queue.EntityTag, json.RawMessage(`{"name":"t"}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, err := engine.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.paths) != 2 || rec.paths[0] != "/readings" || rec.paths[1] != "/tags" {
		t.Errorf("expected FIFO calls to /readings then /tags, got %v", rec.paths)
	}
}

func TestStripTempIDLeavesNonObjectsAlone(t *testing.T) {
	raw := json.RawMessage(`["not","an","object"]`)
	if got := stripTempID(raw); string(got) != string(raw) {
		t.Errorf("non-object payload must pass through, got %s", got)
	}

	noTemp := json.RawMessage(`{"text":"plain"}`)
	if got := stripTempID(noTemp); string(got) != string(noTemp) {
		t.Errorf("payload without tempId must pass through byte-identical, got %s", got)
	}
}

func TestClientWithoutBaseURLFailsFast(t *testing.T) {
	client := NewClient(ClientConfig{})
	err := client.Create(context.Background(), queue.EntityReading, json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected error without a configured remote")
	}
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, Token: "secret", Timeout: 5 * time.Second})
	if err := client.Create(context.Background(), queue.EntityTag, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want Bearer secret", gotAuth)
	}
}
