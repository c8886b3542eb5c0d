/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "testing"

func TestPublishReachesSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(EventBlockBuilt)
	b := bus.Subscribe(EventBlockBuilt)
	other := bus.Subscribe(EventDayRollover)

	bus.Publish(EventBlockBuilt, Payload{"block": "09:00"})

	for _, sub := range []Subscriber{a, b} {
		select {
		case payload := <-sub:
			if payload["block"] != "09:00" {
				t.Errorf("payload = %+v", payload)
			}
		default:
			t.Fatal("subscriber never received the event")
		}
	}
	select {
	case <-other:
		t.Error("rollover subscriber received a block event")
	default:
	}
}

func TestPublishSkipsFullSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventBuildStarted)
	// Fill the subscriber's buffer; further publishes must not block.
	for i := 0; i < cap(sub)+5; i++ {
		bus.Publish(EventBuildStarted, Payload{"i": i})
	}
	if len(sub) != cap(sub) {
		t.Errorf("buffered = %d, want %d", len(sub), cap(sub))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventBuildCompleted)
	bus.Unsubscribe(EventBuildCompleted, sub)

	if _, open := <-sub; open {
		t.Error("channel still open after unsubscribe")
	}
	// Publishing after unsubscribe must not panic on the closed channel.
	bus.Publish(EventBuildCompleted, Payload{})
}
