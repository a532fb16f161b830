package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	if s.Subscribers() != 1 {
		t.Fatalf("subscribers=%d", s.Subscribers())
	}

	evt := PurchaseEvent{Receipt: "rcp_1", Buyer: "0xaaa", Phase: "whitelist", Units: 2, TokenIDs: []uint64{0, 1}}
	s.Publish(evt)

	select {
	case got := <-ch:
		if got.Receipt != "rcp_1" || got.Units != 2 {
			t.Fatalf("unexpected event %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestUnsubscribeOnContextCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	deadline := time.After(time.Second)
	for s.Subscribers() != 0 {
		select {
		case <-deadline:
			t.Fatal("subscriber not removed after cancel")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if _, open := <-ch; open {
		t.Fatal("channel not closed after cancel")
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Subscribe(ctx) // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Publish(PurchaseEvent{Receipt: "rcp"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}
