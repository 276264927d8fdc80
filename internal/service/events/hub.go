package events

import (
	"context"
	"sort"
	"sync"

	"github.com/Kohei-Wada/taskdog-sub001/internal/common/logger"
	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
	"github.com/Kohei-Wada/taskdog-sub001/internal/metrics"
)

// Subscriber receives events. A delivery error drops the subscriber from
// the hub; there are no retries.
type Subscriber interface {
	Deliver(event Event) error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(Event) error

// Deliver implements Subscriber.
func (f SubscriberFunc) Deliver(event Event) error {
	return f(event)
}

// Hub owns the subscriber set and fans published events out to it.
// Publish must be called in commit order (the write path serializes
// mutations); the hub then guarantees each surviving subscriber sees
// events in that same order.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]Subscriber
	clock       core.Clock
	metrics     *metrics.Metrics
}

// NewHub creates an empty hub. A nil clock falls back to the system
// clock; nil metrics record nothing.
func NewHub(clock core.Clock, m *metrics.Metrics) *Hub {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Hub{
		subscribers: make(map[string]Subscriber),
		clock:       clock,
		metrics:     m,
	}
}

// Subscribe registers the subscriber under its client id, replacing any
// previous registration, and greets it with a connected event. The
// greeting goes only to the connecting client.
func (h *Hub) Subscribe(clientID string, sub Subscriber) {
	h.mu.Lock()
	_, replaced := h.subscribers[clientID]
	h.subscribers[clientID] = sub
	h.mu.Unlock()

	if !replaced {
		h.metrics.ClientConnected()
	}

	greeting := Event{
		Type:      TypeConnected,
		Timestamp: h.clock.Now(),
		Payload:   ConnectedPayload{ClientID: clientID},
	}
	if err := sub.Deliver(greeting); err != nil {
		h.Unsubscribe(clientID)
		return
	}
	h.metrics.EventPublished(string(TypeConnected))
}

// Unsubscribe removes the subscriber; unknown ids are ignored.
func (h *Hub) Unsubscribe(clientID string) {
	h.mu.Lock()
	_, present := h.subscribers[clientID]
	delete(h.subscribers, clientID)
	h.mu.Unlock()

	if present {
		h.metrics.ClientDisconnected()
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish stamps and delivers an event to every subscriber except the
// originator named in source.
func (h *Hub) Publish(ctx context.Context, typ Type, source Source, payload any) {
	h.broadcast(ctx, Event{
		Type:           typ,
		Timestamp:      h.clock.Now(),
		SourceClientID: source.ClientID,
		SourceUserName: source.UserName,
		Payload:        payload,
	})
}

type target struct {
	id  string
	sub Subscriber
}

// broadcast snapshots the subscriber set and delivers outside the lock so
// slow subscribers cannot stall connect/disconnect. Failed subscribers
// are removed afterwards.
func (h *Hub) broadcast(ctx context.Context, event Event) {
	h.mu.RLock()
	targets := make([]target, 0, len(h.subscribers))
	for id, sub := range h.subscribers {
		if event.SourceClientID != "" && id == event.SourceClientID {
			continue
		}
		targets = append(targets, target{id: id, sub: sub})
	}
	h.mu.RUnlock()

	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })

	var failed []string
	for _, tg := range targets {
		if err := tg.sub.Deliver(event); err != nil {
			logger.Warn(ctx, "Dropping event subscriber after failed delivery",
				"clientId", tg.id, "type", string(event.Type), "err", err)
			failed = append(failed, tg.id)
		}
	}
	for _, id := range failed {
		h.Unsubscribe(id)
	}

	h.metrics.EventPublished(string(event.Type))
}
