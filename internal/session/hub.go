package session

import (
	"sync"

	"github.com/google/uuid"
)

// Hub fans route change notifications out to connected sessions.
type Hub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]func(route string)
}

// Subscription is a registration on a Hub.
type Subscription struct {
	hub *Hub
	id  uuid.UUID
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]func(string))}
}

// Subscribe registers fn to be called with every emitted route. fn runs on
// the emitter's goroutine and must not block.
func (h *Hub) Subscribe(fn func(route string)) *Subscription {
	id := uuid.New()
	h.mu.Lock()
	h.subs[id] = fn
	h.mu.Unlock()
	return &Subscription{hub: h, id: id}
}

// Remove unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Remove() {
	if s == nil || s.hub == nil {
		return
	}
	s.hub.mu.Lock()
	delete(s.hub.subs, s.id)
	s.hub.mu.Unlock()
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string {
	return s.id.String()
}

// Emit notifies every subscriber that route changed.
func (h *Hub) Emit(route string) {
	h.mu.RLock()
	fns := make([]func(string), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(route)
	}
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
