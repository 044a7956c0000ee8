package events

import (
	"errors"
	"testing"
	"time"
)

func TestBusSubscribe(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	ch := bus.Subscribe()

	bus.Publish(NewRunClaimedEvent("run-1", "proj-1", "nightly"))

	select {
	case received := <-ch:
		if received.EventType() != TypeRunClaimed {
			t.Errorf("expected %s, got %s", TypeRunClaimed, received.EventType())
		}
		if received.Run() != "run-1" {
			t.Errorf("expected run-1, got %s", received.Run())
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestBusSubscribeByType(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	nodeCh := bus.Subscribe(TypeNodeStarted, TypeNodeCompleted)
	allCh := bus.Subscribe()

	bus.Publish(NewRunClaimedEvent("run-1", "proj-1", ""))
	bus.Publish(NewNodeStartedEvent("run-1", "run-1-repo-outline", "repo-outline"))

	// allCh should receive both
	select {
	case <-allCh:
	case <-time.After(100 * time.Millisecond):
		t.Error("allCh should receive run event")
	}
	select {
	case <-allCh:
	case <-time.After(100 * time.Millisecond):
		t.Error("allCh should receive node event")
	}

	// nodeCh should only receive the node event
	select {
	case received := <-nodeCh:
		if received.EventType() != TypeNodeStarted {
			t.Errorf("expected node_started, got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("nodeCh should receive node event")
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := New(5)
	defer bus.Close()

	bus.Subscribe()

	for i := 0; i < 50; i++ {
		bus.Publish(NewNodeCompletedEvent("run-1", "run-1-node", time.Second))
	}

	if bus.DroppedCount() == 0 {
		t.Error("expected dropped events with saturated subscriber")
	}
}

func TestBusPriorityNeverDrops(t *testing.T) {
	bus := New(5)
	defer bus.Close()

	priorityCh := bus.SubscribePriority()

	for i := 0; i < 100; i++ {
		bus.Publish(NewNodeStartedEvent("run-1", "run-1-node", "tool"))
	}

	bus.PublishPriority(NewRunFailedEvent("run-1", errors.New("graph persistence failed")))

	select {
	case received := <-priorityCh:
		failed, ok := received.(RunFailedEvent)
		if !ok {
			t.Fatalf("expected RunFailedEvent, got %T", received)
		}
		if failed.Error != "graph persistence failed" {
			t.Errorf("unexpected error payload: %s", failed.Error)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("priority channel should receive the event")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	// Channel is closed after unsubscribe.
	select {
	case _, open := <-ch:
		if open {
			t.Error("expected closed channel")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("channel should be closed")
	}

	// Publishing after unsubscribe must not panic.
	bus.Publish(NewRunSucceededEvent("run-1", time.Second))
}

func TestBusPublishAfterClose(t *testing.T) {
	bus := New(10)
	ch := bus.Subscribe()
	bus.Close()

	bus.Publish(NewRunSucceededEvent("run-1", time.Second))
	bus.PublishPriority(NewRunFailedEvent("run-1", nil))

	if _, open := <-ch; open {
		t.Error("subscriber channel should be closed")
	}
}
