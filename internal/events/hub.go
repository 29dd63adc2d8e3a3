package events

import (
	"context"
	"errors"
	"sync"

	"classroom-quiz-service/internal/domain"
)

// ErrHubClosed is returned by Notify after Close.
var ErrHubClosed = errors.New("event hub closed")

const subscriberBuffer = 32

// Hub fans record-created events out to subscribers. Publishing never blocks:
// a subscriber that falls behind loses its oldest pending event.
type Hub struct {
	mu          sync.Mutex
	closed      bool
	subscribers map[chan domain.RecordCreated]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan domain.RecordCreated]struct{})}
}

// Notify implements app.Notifier.
func (h *Hub) Notify(_ context.Context, event domain.RecordCreated) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
	return nil
}

// Subscribe returns a channel of events. The caller must invoke the returned
// cancel function to avoid leaks.
func (h *Hub) Subscribe() (<-chan domain.RecordCreated, func()) {
	ch := make(chan domain.RecordCreated, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		close(ch)
	} else {
		h.subscribers[ch] = struct{}{}
	}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Close stops delivery and closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
}
