package notify

import (
	"context"
	"sync"
)

// EventQueueUpdated is the only event this system broadcasts. It carries no
// payload: observers re-fetch queue state instead of trusting a pushed diff,
// which keeps pushes trivially consistent under concurrent writes.
const EventQueueUpdated = "queue_updated"

// subscriberBuffer absorbs short bursts per observer before drops kick in.
const subscriberBuffer = 8

// Publisher delivers an event tag to observers, best-effort.
type Publisher interface {
	Publish(ctx context.Context, event string)
}

// Hub fans events out to in-process subscribers (the SSE connections).
// Delivery is at-most-once with no backlog: a subscriber whose buffer is
// full, or who is not connected at publish time, misses the event. Publish
// never blocks, so slow observers cannot back-pressure writers.
type Hub struct {
	mu   sync.Mutex
	subs map[chan string]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan string]struct{})}
}

// Subscribe registers a new observer and returns its event channel.
func (h *Hub) Subscribe() chan string {
	ch := make(chan string, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes the observer and closes its channel.
func (h *Hub) Unsubscribe(ch chan string) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish offers the event to every subscriber, dropping it for any whose
// buffer is full.
func (h *Hub) Publish(ctx context.Context, event string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports how many observers are connected.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Multi forwards each event to every wrapped publisher.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event string) {
	for _, p := range m {
		p.Publish(ctx, event)
	}
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, event string)

func (f PublisherFunc) Publish(ctx context.Context, event string) {
	f(ctx, event)
}
