package harness

import (
	"sync"

	"github.com/google/uuid"

	"github.com/device-next/devicecheck/platform"
	"github.com/device-next/devicecheck/utils"
)

// ListenerHandle is a back-reference to one registered event subscription.
// Owned exclusively by the registry that created it.
type ListenerHandle struct {
	ID      string
	Target  string
	Type    string
	dispose func()
}

// EventListenerRegistry tracks event subscriptions and guarantees their
// removal. One registry per test session; the controller calls RemoveAll on
// every terminal transition and on reset, so no handler can outlive its
// session regardless of which exit path was taken.
type EventListenerRegistry struct {
	mu      sync.Mutex
	source  platform.EventSource
	handles []*ListenerHandle
}

// NewEventListenerRegistry creates a registry subscribing through source.
func NewEventListenerRegistry(source platform.EventSource) *EventListenerRegistry {
	return &EventListenerRegistry{source: source}
}

// Add subscribes handler to (target, eventType) and returns the handle id.
func (r *EventListenerRegistry) Add(target, eventType string, handler func(platform.Event)) string {
	unsubscribe := r.source.Subscribe(target, eventType, handler)
	handle := &ListenerHandle{
		ID:      uuid.NewString(),
		Target:  target,
		Type:    eventType,
		dispose: unsubscribe,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = append(r.handles, handle)
	return handle.ID
}

// Remove disposes a single handle by id. Unknown ids are ignored.
func (r *EventListenerRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, handle := range r.handles {
		if handle.ID == id {
			handle.dispose()
			r.handles = append(r.handles[:i], r.handles[i+1:]...)
			return
		}
	}
}

// RemoveAll disposes every handle in registration order and clears the
// list. Idempotent; safe to call when empty.
func (r *EventListenerRegistry) RemoveAll() {
	r.mu.Lock()
	handles := r.handles
	r.handles = nil
	r.mu.Unlock()

	if len(handles) == 0 {
		return
	}
	utils.Verbose("disposing %d event listener(s)", len(handles))
	for _, handle := range handles {
		handle.dispose()
	}
}

// Count returns the number of live handles (useful for testing).
func (r *EventListenerRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
