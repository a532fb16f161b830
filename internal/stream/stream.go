package stream

import (
	"context"
	"sync"
	"time"
)

// PurchaseEvent is the outward-facing record of one committed purchase or
// direct allocation.
type PurchaseEvent struct {
	Receipt   string    `json:"receipt"`
	Buyer     string    `json:"buyer"`
	Phase     string    `json:"phase,omitempty"` // empty for airdrops
	Units     uint64    `json:"units"`
	TokenIDs  []uint64  `json:"token_ids"`
	Paid      string    `json:"paid,omitempty"` // decimal, smallest currency unit
	Timestamp time.Time `json:"timestamp"`
}

// Stream fan-outs purchase events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan PurchaseEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{
		subs: make(map[int]chan PurchaseEvent),
	}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan PurchaseEvent {
	ch := make(chan PurchaseEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt PurchaseEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Subscribers returns the number of active subscribers.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
