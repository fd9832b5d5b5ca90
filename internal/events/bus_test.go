/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"sync"
	"testing"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventPlaybackActivated)

	bus.Publish(EventPlaybackActivated, Payload{"key": "feed:s1"})

	select {
	case payload := <-sub:
		if payload["key"] != "feed:s1" {
			t.Fatalf("unexpected payload %+v", payload)
		}
	default:
		t.Fatal("expected an event")
	}
}

func TestBusDoesNotCrossEventTypes(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventPlaybackActivated)

	bus.Publish(EventPlaybackDeactivated, Payload{})

	select {
	case <-sub:
		t.Fatal("subscriber received an event of another type")
	default:
	}
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventPlaybackProgress)

	// Publish must never block, even past the buffer.
	for i := 0; i < 20; i++ {
		bus.Publish(EventPlaybackProgress, Payload{"i": i})
	}

	if got := len(sub); got != cap(sub) {
		t.Fatalf("expected a full buffer of %d, got %d", cap(sub), got)
	}
}

func TestPublishDuringUnsubscribeDoesNotPanic(t *testing.T) {
	// The bridge's forwarders unsubscribe on shutdown while registry retry
	// timers may still be publishing.
	bus := NewBus()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				bus.Publish(EventPlaybackProgress, Payload{})
			}
		}
	}()

	for i := 0; i < 200; i++ {
		sub := bus.Subscribe(EventPlaybackProgress)
		bus.Unsubscribe(EventPlaybackProgress, sub)
	}

	close(done)
	wg.Wait()
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventFeedUpdated)
	bus.Unsubscribe(EventFeedUpdated, sub)

	if _, ok := <-sub; ok {
		t.Fatal("expected a closed channel")
	}

	// Publishing after unsubscribe must not panic.
	bus.Publish(EventFeedUpdated, Payload{})
}
