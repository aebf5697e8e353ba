package browser

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType tags lifecycle notifications published by a Registry.
type EventType string

const (
	EventInstanceCreated EventType = "instance.created"
	EventInstanceReady   EventType = "instance.ready"
	EventInstanceClosed  EventType = "instance.closed"
	EventInstanceError   EventType = "instance.error"
	EventPageOpened      EventType = "page.opened"
	EventPageClosed      EventType = "page.closed"
	EventNavigated       EventType = "page.navigated"
	EventSessionSaved    EventType = "session.saved"
	EventSessionLoaded   EventType = "session.loaded"
)

// Event is one lifecycle notification, tagged with the instance it
// concerns.
type Event struct {
	ID       string    `json:"id"`
	Type     EventType `json:"type"`
	Instance string    `json:"instance"`
	Page     string    `json:"page,omitempty"`
	URL      string    `json:"url,omitempty"`
	Session  string    `json:"session,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	Time     time.Time `json:"time"`
}

const subscriberBuffer = 64

// Hub is a registry-owned publish/subscribe channel for lifecycle events.
// Each Registry owns exactly one Hub; subscribers register explicitly.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Subscription receives events on C until Close.
type Subscription struct {
	C   chan Event
	hub *Hub
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber with a buffered channel.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{C: make(chan Event, subscriberBuffer), hub: h}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Close removes the subscription and closes its channel.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	if _, ok := s.hub.subs[s]; !ok {
		s.hub.mu.Unlock()
		return
	}
	delete(s.hub.subs, s)
	s.hub.mu.Unlock()
	close(s.C)
}

// Publish fans the event out to every subscriber. A slow subscriber with a
// full buffer loses the event rather than blocking publishers.
func (h *Hub) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.C <- ev:
		default:
			slog.Debug("dropping event for slow subscriber", "type", ev.Type, "instance", ev.Instance)
		}
	}
}
