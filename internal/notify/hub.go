package notify

import (
	"context"
	"log/slog"
	"sync"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind than this loses events rather than stalling the
// publisher.
const subscriberBuffer = 16

// Hub is an in-process broadcast channel keyed by bill ID. It backs the
// SSE endpoint that pushes live settlement updates to the Mini App.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers interest in a bill's events. The returned cancel
// function must be called to release the subscription.
func (h *Hub) Subscribe(billID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[billID] == nil {
		h.subs[billID] = make(map[chan Event]struct{})
	}
	h.subs[billID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[billID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, billID)
			}
		}
		h.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber of its bill without
// blocking; events to full subscriber buffers are dropped.
func (h *Hub) Publish(_ context.Context, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[event.BillID] {
		select {
		case ch <- event:
		default:
			slog.Warn("subscriber buffer full, dropping event",
				"bill_id", event.BillID, "type", event.Type)
		}
	}
}
