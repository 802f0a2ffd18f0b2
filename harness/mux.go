package harness

import "sync"

// EmitterMux fans recorder events out to any number of attached sinks. The
// harness is constructed once with the mux as its emitter; transports and
// per-run collectors attach and detach as they come and go.
type EmitterMux struct {
	mu    sync.Mutex
	sinks map[int]Emitter
	next  int
}

// NewEmitterMux creates an empty mux. Emitting with no sinks attached is a
// no-op.
func NewEmitterMux() *EmitterMux {
	return &EmitterMux{sinks: make(map[int]Emitter)}
}

// Attach adds a sink and returns a detach function.
func (m *EmitterMux) Attach(sink Emitter) func() {
	m.mu.Lock()
	id := m.next
	m.next++
	m.sinks[id] = sink
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.sinks, id)
		m.mu.Unlock()
	}
}

// Emit forwards the event to every attached sink.
func (m *EmitterMux) Emit(event string, payload any) {
	m.mu.Lock()
	sinks := make([]Emitter, 0, len(m.sinks))
	for _, sink := range m.sinks {
		sinks = append(sinks, sink)
	}
	m.mu.Unlock()

	for _, sink := range sinks {
		sink.Emit(event, payload)
	}
}
