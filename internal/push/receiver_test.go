// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package push

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// recordingNotifier captures displayed notifications and can fail the first
// N displays to exercise the retry path.
type recordingNotifier struct {
	mu        sync.Mutex
	displayed []*Notification
	failFirst int
	calls     int
	notify    chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{notify: make(chan struct{}, 16)}
}

func (n *recordingNotifier) Display(_ context.Context, notification *Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.calls <= n.failFirst {
		return errors.New("display surface busy")
	}
	n.displayed = append(n.displayed, notification)
	n.notify <- struct{}{}
	return nil
}

func (n *recordingNotifier) displayedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.displayed)
}

func (n *recordingNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func (n *recordingNotifier) last() *Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.displayed) == 0 {
		return nil
	}
	return n.displayed[len(n.displayed)-1]
}

func startTestReceiver(t *testing.T, notifier Notifier) (*gochannel.GoChannel, ReceiverConfig) {
	t.Helper()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	cfg := DefaultReceiverConfig()
	cfg.RetryInitialInterval = 5 * time.Millisecond

	receiver, err := NewReceiver(cfg, pubSub, notifier)
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = receiver.Run(ctx) }()
	t.Cleanup(func() { _ = receiver.Close() })

	select {
	case <-receiver.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("receiver did not start")
	}
	return pubSub, cfg
}

func waitDisplayed(t *testing.T, notifier *recordingNotifier) {
	t.Helper()
	select {
	case <-notifier.notify:
	case <-time.After(5 * time.Second):
		t.Fatal("notification was never displayed")
	}
}

func TestReceiverDisplaysParsedPayload(t *testing.T) {
	notifier := newRecordingNotifier()
	pubSub, cfg := startTestReceiver(t, notifier)

	payload := []byte(`{"title":"Reading synced","body":"All caught up","data":{"url":"/readings"}}`)
	if err := pubSub.Publish(cfg.Topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitDisplayed(t, notifier)
	n := notifier.last()
	if n.Title != "Reading synced" || n.Body != "All caught up" {
		t.Errorf("displayed %q/%q", n.Title, n.Body)
	}
	if n.TargetURL() != "/readings" {
		t.Errorf("TargetURL = %q", n.TargetURL())
	}
}

func TestReceiverMalformedPayloadStillDisplays(t *testing.T) {
	notifier := newRecordingNotifier()
	pubSub, cfg := startTestReceiver(t, notifier)

	if err := pubSub.Publish(cfg.Topic, message.NewMessage(watermill.NewUUID(), []byte("%%not-json%%"))); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitDisplayed(t, notifier)
	n := notifier.last()
	if n.Title != DefaultTitle || n.Body != DefaultBody {
		t.Errorf("malformed payload must display the default notification, got %q/%q", n.Title, n.Body)
	}
}

func TestReceiverRetriesFailedDisplay(t *testing.T) {
	notifier := newRecordingNotifier()
	notifier.failFirst = 2
	pubSub, cfg := startTestReceiver(t, notifier)

	if err := pubSub.Publish(cfg.Topic, message.NewMessage(watermill.NewUUID(), []byte(`{"title":"Retry me"}`))); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitDisplayed(t, notifier)
	if notifier.callCount() != 3 {
		t.Errorf("expected 2 failed attempts then success, got %d calls", notifier.callCount())
	}
	if notifier.displayedCount() != 1 {
		t.Errorf("expected exactly 1 display, got %d", notifier.displayedCount())
	}
}

func TestNewReceiverRequiresNotifier(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	if _, err := NewReceiver(DefaultReceiverConfig(), pubSub, nil); err == nil {
		t.Fatal("expected error for nil notifier")
	}
}
