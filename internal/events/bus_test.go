package events

import (
	"errors"
	"testing"
	"time"
)

func TestNewBus(t *testing.T) {
	bus := NewBus()
	if bus == nil {
		t.Fatal("expected non-nil bus")
	}
	if bus.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", bus.SubscriberCount())
	}
}

func TestBusSubscribe(t *testing.T) {
	bus := NewBus()

	ch1 := bus.Subscribe()
	if bus.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", bus.SubscriberCount())
	}

	ch2 := bus.Subscribe()
	if bus.SubscriberCount() != 2 {
		t.Errorf("expected 2 subscribers, got %d", bus.SubscriberCount())
	}

	if ch1 == nil || ch2 == nil {
		t.Error("expected non-nil channels")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()

	ch := bus.Subscribe()
	if bus.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", bus.SubscriberCount())
	}

	bus.Unsubscribe(ch)
	if bus.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", bus.SubscriberCount())
	}
}

func TestBusPublish(t *testing.T) {
	bus := NewBus()

	ch := bus.Subscribe()

	event := NewPhaseStartEvent("populate")
	bus.Publish(event)

	select {
	case received := <-ch:
		if received.Type != EventPhaseStart {
			t.Errorf("expected type %s, got %s", EventPhaseStart, received.Type)
		}
		if received.Phase != "populate" {
			t.Errorf("expected populate, got %s", received.Phase)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestBusPublishMultipleSubscribers(t *testing.T) {
	bus := NewBus()

	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()

	event := NewHeartbeatEvent("write only", 120, 0)
	bus.Publish(event)

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.Type != EventHeartbeat {
				t.Errorf("subscriber %d: expected type %s, got %s", i, EventHeartbeat, received.Type)
			}
			if received.Data.Writes != 120 {
				t.Errorf("subscriber %d: expected 120 writes, got %d", i, received.Data.Writes)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("subscriber %d: timeout waiting for event", i)
		}
	}
}

func TestBusPublishNonBlocking(t *testing.T) {
	bus := NewBus()
	bus.bufferSize = 1 // Small buffer for testing

	ch := bus.Subscribe()

	// Fill the buffer
	bus.Publish(NewMissingEvent("checker-0", "k1"))
	bus.Publish(NewMissingEvent("checker-0", "k2"))
	bus.Publish(NewMissingEvent("checker-0", "k3"))

	// Should not block - test passes if it completes
	// First event should be received
	select {
	case <-ch:
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for first event")
	}

	if bus.Dropped() != 2 {
		t.Errorf("expected 2 dropped deliveries, got %d", bus.Dropped())
	}
}

func TestBusClose(t *testing.T) {
	bus := NewBus()

	ch := bus.Subscribe()
	bus.Close()

	if bus.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after close, got %d", bus.SubscriberCount())
	}

	// Channel should be closed
	_, ok := <-ch
	if ok {
		t.Error("expected channel to be closed")
	}
}

func TestBusCloseTwiceAndSubscribeAfterClose(t *testing.T) {
	bus := NewBus()
	bus.Close()
	bus.Close()

	ch := bus.Subscribe()
	if _, ok := <-ch; ok {
		t.Error("expected closed channel from closed bus")
	}

	// Publish after close must not panic
	bus.Publish(NewPhaseStartEvent("validate"))
}

func TestNilBusPublish(t *testing.T) {
	var bus *Bus
	bus.Publish(NewPhaseStartEvent("populate"))
}

func TestEventCreation(t *testing.T) {
	t.Run("PhaseEvents", func(t *testing.T) {
		done := NewPhaseCompleteEvent("write only", 1500*time.Millisecond, 12.5)
		if done.Type != EventPhaseComplete {
			t.Errorf("expected %s, got %s", EventPhaseComplete, done.Type)
		}
		if done.Data.Elapsed != "1.5s" {
			t.Errorf("expected 1.5s, got %s", done.Data.Elapsed)
		}
		if done.Data.Rate != 12.5 {
			t.Errorf("expected rate 12.5, got %f", done.Data.Rate)
		}

		failed := NewPhaseFailedEvent("read only", errors.New("boom"))
		if failed.Data.Error != "boom" {
			t.Errorf("expected boom, got %s", failed.Data.Error)
		}
		if NewPhaseFailedEvent("read only", nil).Data.Error != "" {
			t.Error("expected empty error for nil")
		}
	})

	t.Run("IntegrityEvents", func(t *testing.T) {
		m := NewMismatchEvent("checker-1", "k", "want", "got")
		if m.Type != EventMismatch || m.Source != "checker-1" {
			t.Errorf("unexpected mismatch event: %+v", m)
		}
		if m.Data.Expected != "want" || m.Data.Actual != "got" {
			t.Errorf("unexpected mismatch data: %+v", m.Data)
		}

		missing := NewMissingEvent("validate", "k")
		if missing.Type != EventMissing || missing.Data.Key != "k" {
			t.Errorf("unexpected missing event: %+v", missing)
		}
	})
}

func TestBusSubscribeFiltered(t *testing.T) {
	bus := NewBus()

	phases := bus.Subscribe(EventPhaseStart, EventPhaseComplete)
	all := bus.Subscribe()

	bus.Publish(NewHeartbeatEvent("write only", 10, 0))
	bus.Publish(NewPhaseStartEvent("validate"))
	bus.Publish(NewMissingEvent("validate", "k"))
	bus.Publish(NewPhaseCompleteEvent("validate", time.Second, 0))

	var got []EventType
	for len(got) < 2 {
		select {
		case ev := <-phases:
			got = append(got, ev.Type)
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout; received %v", got)
		}
	}
	if got[0] != EventPhaseStart || got[1] != EventPhaseComplete {
		t.Errorf("unexpected filtered events: %v", got)
	}
	select {
	case ev := <-phases:
		t.Errorf("unexpected extra event: %s", ev.Type)
	default:
	}

	if len(all) != 4 {
		t.Errorf("expected 4 events for unfiltered subscriber, got %d", len(all))
	}
	if bus.Dropped() != 0 {
		t.Errorf("filtered events must not count as dropped, got %d", bus.Dropped())
	}
}

func TestBusUnsubscribeUnknown(t *testing.T) {
	bus := NewBus()
	bus.Unsubscribe(make(chan Event))

	ch := bus.Subscribe()
	bus.Unsubscribe(ch)
	bus.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("expected closed channel after unsubscribe")
	}
}
