package harness

import (
	"context"
	"sync"

	"github.com/device-next/devicecheck/platform"
	"github.com/device-next/devicecheck/utils"
)

// StreamHandle is the live capture session held by a StreamManager on
// behalf of exactly one test session.
type StreamHandle struct {
	Generation uint64
	DeviceID   string
	Session    platform.Session
}

// StreamManager owns at most one live device session at a time. Because
// most capture APIs have no cancel primitive, cancellation is done by
// generation stamping: every Acquire bumps a monotonic counter, and a
// result arriving under a stale generation is closed and discarded instead
// of installed. One StreamManager per test session; never shared.
type StreamManager struct {
	mu          sync.Mutex
	api         platform.API
	generation  uint64
	handle      *StreamHandle
	constraints platform.Constraints
}

// NewStreamManager creates a manager backed by api.
func NewStreamManager(api platform.API) *StreamManager {
	return &StreamManager{api: api}
}

// Acquire opens a session matching constraints, releasing any prior handle
// first so at most one session is ever open. If a newer Acquire or a
// Release supersedes this call while the platform is still opening the
// session, the late result is closed on arrival and ErrSuperseded is
// returned.
func (m *StreamManager) Acquire(ctx context.Context, constraints platform.Constraints) (*StreamHandle, error) {
	m.mu.Lock()
	m.releaseLocked()
	m.generation++
	generation := m.generation
	m.constraints = constraints
	m.mu.Unlock()

	session, err := m.api.OpenSession(ctx, constraints)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		if generation != m.generation {
			return nil, ErrSuperseded
		}
		return nil, Classify(ErrorSessionAcquisition, "stream", err)
	}

	if generation != m.generation {
		// Superseded while in flight; the session must not leak.
		utils.Verbose("discarding superseded session (generation %d, current %d)", generation, m.generation)
		session.Close()
		return nil, ErrSuperseded
	}

	m.handle = &StreamHandle{
		Generation: generation,
		DeviceID:   constraints.DeviceID,
		Session:    session,
	}
	return m.handle, nil
}

// Release stops all tracks of the current handle, clears it, and bumps the
// generation so any still-pending acquisition is discarded on arrival.
// Safe to call with no open handle.
func (m *StreamManager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
	m.generation++
}

func (m *StreamManager) releaseLocked() {
	if m.handle == nil {
		return
	}
	for _, track := range m.handle.Session.Tracks() {
		track.Stop()
	}
	m.handle.Session.Close()
	m.handle = nil
}

// SwitchDevice releases the current session and acquires a new one for
// deviceID with the otherwise-unchanged constraints. There is no window in
// which two sessions are open.
func (m *StreamManager) SwitchDevice(ctx context.Context, deviceID string) (*StreamHandle, error) {
	m.mu.Lock()
	constraints := m.constraints
	m.mu.Unlock()

	constraints.DeviceID = deviceID
	return m.Acquire(ctx, constraints)
}

// Active returns the currently held handle, or nil.
func (m *StreamManager) Active() *StreamHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle
}
