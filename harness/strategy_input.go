package harness

import (
	"context"
	"sync"
	"time"

	"github.com/device-next/devicecheck/platform"
)

// DefaultInputRingCapacity caps the recent-event buffer of an input test.
const DefaultInputRingCapacity = 64

// InputEvent is one observed input event, trimmed for summarization.
type InputEvent struct {
	Type string         `json:"type"`
	At   time.Time      `json:"at"`
	Data map[string]any `json:"data,omitempty"`
}

// InputStrategy captures global input events (keyboard, pointer, touch)
// through the session registry and keeps a bounded ring of recent events,
// oldest evicted first. It holds no platform session of its own.
type InputStrategy struct {
	eventTypes []string

	mu     sync.Mutex
	ring   []InputEvent
	head   int
	filled bool
	counts map[string]int
}

// NewInputStrategy captures the given event types with a ring of the given
// capacity. A non-positive capacity falls back to DefaultInputRingCapacity.
func NewInputStrategy(capacity int, eventTypes ...string) *InputStrategy {
	if capacity <= 0 {
		capacity = DefaultInputRingCapacity
	}
	return &InputStrategy{
		eventTypes: eventTypes,
		ring:       make([]InputEvent, capacity),
		counts:     make(map[string]int),
	}
}

func (s *InputStrategy) AcquireSession(context.Context, string) (SessionRef, error) {
	// Input tests hold only listeners, which live in the registry.
	return nil, nil
}

func (s *InputStrategy) ReleaseSession(SessionRef) {}

func (s *InputStrategy) CaptureEvents(registry *EventListenerRegistry) {
	for _, eventType := range s.eventTypes {
		registry.Add(platform.TargetWindow, eventType, s.record)
	}
}

func (s *InputStrategy) record(event platform.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[event.Type]++
	s.ring[s.head] = InputEvent{Type: event.Type, At: time.Now(), Data: event.Payload}
	s.head++
	if s.head == len(s.ring) {
		s.head = 0
		s.filled = true
	}
}

// Recent returns the buffered events in arrival order.
func (s *InputStrategy) Recent() []InputEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.filled {
		out := make([]InputEvent, s.head)
		copy(out, s.ring[:s.head])
		return out
	}
	out := make([]InputEvent, 0, len(s.ring))
	out = append(out, s.ring[s.head:]...)
	out = append(out, s.ring[:s.head]...)
	return out
}

// Summary reports per-type counts and the total number of events seen,
// including those evicted from the ring.
func (s *InputStrategy) Summary() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	counts := make(map[string]int, len(s.counts))
	for eventType, n := range s.counts {
		counts[eventType] = n
		total += n
	}
	return map[string]any{
		"eventCounts": counts,
		"totalEvents": total,
	}
}
