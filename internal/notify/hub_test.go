// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package notify

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/daybook-hq/daybook/internal/logging"
	"github.com/daybook-hq/daybook/internal/push"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// setupHub creates and starts a hub, stopped with the test.
func setupHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)
	return hub
}

// attachTestClient registers a mock client showing the given URL.
func attachTestClient(hub *Hub, url string) *Client {
	client := &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		send: make(chan Message, 256),
		url:  url,
	}
	hub.Register <- client
	time.Sleep(20 * time.Millisecond)
	return client
}

func receiveMessage(t *testing.T, client *Client) Message {
	t.Helper()
	select {
	case msg := <-client.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("client received no message")
		return Message{}
	}
}

func TestNewHubStartsEmpty(t *testing.T) {
	hub := NewHub()
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestRegisterAndUnregister(t *testing.T) {
	hub := setupHub(t)

	client := attachTestClient(hub, "/journal")
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}

	hub.Unregister <- client
	time.Sleep(20 * time.Millisecond)
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients after unregister, got %d", hub.ClientCount())
	}
	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed after unregister")
	}
}

func TestDisplayReachesAllClients(t *testing.T) {
	hub := setupHub(t)
	c1 := attachTestClient(hub, "/journal")
	c2 := attachTestClient(hub, "/readings")

	n := push.Normalize([]byte(`{"title":"hello"}`))
	if err := hub.Display(context.Background(), n); err != nil {
		t.Fatalf("display: %v", err)
	}

	for _, client := range []*Client{c1, c2} {
		msg := receiveMessage(t, client)
		if msg.Type != MessageTypeNotification {
			t.Errorf("message type = %q, want notification", msg.Type)
		}
		got, ok := msg.Data.(*push.Notification)
		if !ok {
			t.Fatalf("data is %T, want *push.Notification", msg.Data)
		}
		if got.Title != "hello" {
			t.Errorf("title = %q", got.Title)
		}
	}
}

func TestDisplayWithNoClientsSucceeds(t *testing.T) {
	hub := setupHub(t)
	if err := hub.Display(context.Background(), push.Normalize(nil)); err != nil {
		t.Errorf("display with no clients must not fail: %v", err)
	}
}

func TestClientsReportsCurrentURLs(t *testing.T) {
	hub := setupHub(t)
	attachTestClient(hub, "/journal")
	c2 := attachTestClient(hub, "/settings")
	c2.setURL("/tags")

	infos := hub.Clients(context.Background())
	if len(infos) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(infos))
	}
	if infos[0].URL != "/journal" || infos[1].URL != "/tags" {
		t.Errorf("urls = %q, %q", infos[0].URL, infos[1].URL)
	}
}

func TestFocusTargetsOneClient(t *testing.T) {
	hub := setupHub(t)
	c1 := attachTestClient(hub, "/journal")
	c2 := attachTestClient(hub, "/readings")

	if err := hub.Focus(context.Background(), c2.StringID()); err != nil {
		t.Fatalf("focus: %v", err)
	}

	msg := receiveMessage(t, c2)
	if msg.Type != MessageTypeFocus {
		t.Errorf("message type = %q, want focus", msg.Type)
	}
	select {
	case stray := <-c1.send:
		t.Errorf("unrelated client received %v", stray)
	default:
	}
}

func TestFocusUnknownClientFails(t *testing.T) {
	hub := setupHub(t)
	if err := hub.Focus(context.Background(), "999999"); err == nil {
		t.Error("expected error focusing a detached client")
	}
}

func TestOpenWindowBroadcastsURL(t *testing.T) {
	hub := setupHub(t)
	client := attachTestClient(hub, "/journal")

	if err := hub.OpenWindow(context.Background(), "/tags"); err != nil {
		t.Fatalf("open window: %v", err)
	}

	msg := receiveMessage(t, client)
	if msg.Type != MessageTypeOpenWindow {
		t.Errorf("message type = %q, want open_window", msg.Type)
	}
	data, ok := msg.Data.(map[string]string)
	if !ok || data["url"] != "/tags" {
		t.Errorf("data = %v", msg.Data)
	}
}

func TestOpenWindowWithNoClientsIsNoop(t *testing.T) {
	hub := setupHub(t)
	if err := hub.OpenWindow(context.Background(), "/tags"); err != nil {
		t.Errorf("open window with no clients must not fail: %v", err)
	}
}

// TestClickFocusesOpenClient wires the hub to a real click router and checks
// that a click lands on the client already showing the target URL instead of
// opening a duplicate window.
func TestClickFocusesOpenClient(t *testing.T) {
	hub := setupHub(t)
	hub.SetClickHandler(push.NewClickRouter(hub))

	c1 := attachTestClient(hub, "/journal")
	c2 := attachTestClient(hub, "/readings")

	n := push.Normalize([]byte(`{"data":{"url":"/readings"}}`))
	hub.routeClick(context.Background(), push.Click{Action: push.ActionOpen, Notification: n})

	msg := receiveMessage(t, c2)
	if msg.Type != MessageTypeFocus {
		t.Errorf("expected focus on the client at /readings, got %q", msg.Type)
	}
	select {
	case stray := <-c1.send:
		t.Errorf("client at /journal received %v", stray)
	default:
	}
}

func TestClickOpensWindowWhenNotShown(t *testing.T) {
	hub := setupHub(t)
	hub.SetClickHandler(push.NewClickRouter(hub))

	client := attachTestClient(hub, "/journal")

	n := push.Normalize([]byte(`{"data":{"url":"/settings"}}`))
	hub.routeClick(context.Background(), push.Click{Action: push.ActionOpen, Notification: n})

	msg := receiveMessage(t, client)
	if msg.Type != MessageTypeOpenWindow {
		t.Errorf("expected open_window, got %q", msg.Type)
	}
}

func TestShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)

	client := attachTestClient(hub, "/journal")

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	if _, ok := <-client.send; ok {
		t.Error("client send channel should be closed on shutdown")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients after shutdown, got %d", hub.ClientCount())
	}
}
