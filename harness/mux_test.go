package harness

import "testing"

func TestEmitterMux_FanOutAndDetach(t *testing.T) {
	mux := NewEmitterMux()

	// No sinks attached: emitting is a no-op.
	mux.Emit("test-started", nil)

	a := &collectEmitter{}
	b := &collectEmitter{}
	detachA := mux.Attach(a)
	mux.Attach(b)

	mux.Emit("test-started", map[string]any{"testName": "camera"})
	if len(a.all()) != 1 || len(b.all()) != 1 {
		t.Fatalf("expected both sinks to receive the event, got %d/%d", len(a.all()), len(b.all()))
	}

	detachA()
	mux.Emit("test-completed", nil)
	if len(a.all()) != 1 {
		t.Errorf("expected detached sink to stop receiving, got %d", len(a.all()))
	}
	if len(b.all()) != 2 {
		t.Errorf("expected attached sink to keep receiving, got %d", len(b.all()))
	}

	// Detach is idempotent.
	detachA()
}
