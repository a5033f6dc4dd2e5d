package auth

import (
	"errors"
	"sync"
)

// EventType classifies a session lifecycle event emitted by an identity provider.
type EventType string

const (
	EventSessionRestored  EventType = "session-restored"
	EventSignedIn         EventType = "signed-in"
	EventTokenRefreshed   EventType = "token-refreshed"
	EventUserUpdated      EventType = "user-updated"
	EventSignedOut        EventType = "signed-out"
	EventPasswordRecovery EventType = "password-recovery"
)

// Event is a single session lifecycle notification. Session is nil when no
// identity is active (e.g. after sign-out).
type Event struct {
	Type    EventType
	Session *Session
}

// IsSignIn reports whether the event represents a fresh sign-in rather than a
// refresh, restore or profile update.
func (e Event) IsSignIn() bool {
	return e.Type == EventSignedIn && e.Session != nil
}

// ErrHubStopped is returned by Publish once StopAll has been called.
var ErrHubStopped = errors.New("event hub stopped")

const defaultHubBuffer = 16

// EventHub fans identity events out to subscribers in publish order.
// Providers embed it to implement their Subscribe method.
type EventHub struct {
	mu      sync.Mutex
	subs    map[chan Event]struct{}
	buffer  int
	stopped bool
}

// NewEventHub creates a hub whose subscriber channels hold up to buffer events.
func NewEventHub(buffer int) *EventHub {
	if buffer <= 0 {
		buffer = defaultHubBuffer
	}
	return &EventHub{
		subs:   make(map[chan Event]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a new listener. The returned func unsubscribes and closes the channel.
func (h *EventHub) Subscribe() (func(), <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.buffer)
	if h.stopped {
		close(ch)
		return func() {}, ch
	}
	h.subs[ch] = struct{}{}

	unsub := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; !ok {
			return
		}
		delete(h.subs, ch)
		drainAndClose(ch)
	}
	return unsub, ch
}

// Publish delivers ev to every subscriber. Events are never dropped: a full
// subscriber buffer blocks the publisher, which keeps emission order intact.
func (h *EventHub) Publish(ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return ErrHubStopped
	}
	for ch := range h.subs {
		ch <- ev
	}
	return nil
}

// Subscribers returns the current subscriber count.
func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// StopAll closes every subscriber channel and rejects further publishes.
func (h *EventHub) StopAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopped = true
	for ch := range h.subs {
		drainAndClose(ch)
		delete(h.subs, ch)
	}
}

// drainAndClose removes any buffered events before closing the channel so
// receivers observe a closed channel immediately.
func drainAndClose(ch chan Event) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}
