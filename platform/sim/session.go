package sim

import (
	"fmt"
	"sync"

	"github.com/device-next/devicecheck/platform"
	"github.com/device-next/devicecheck/types"
)

// Track is a simulated capture track.
type Track struct {
	id   string
	kind types.DeviceKind

	mu      sync.Mutex
	stopped bool
}

func (t *Track) ID() string { return t.id }

func (t *Track) Kind() types.DeviceKind { return t.kind }

func (t *Track) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *Track) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Session is a simulated device session. It records closure so tests can
// assert deterministic teardown.
type Session struct {
	id       string
	deviceID string
	tracks   []*Track

	mu     sync.Mutex
	closed bool
}

func newSession(id string, constraints platform.Constraints) *Session {
	s := &Session{id: id, deviceID: constraints.DeviceID}
	if constraints.Video {
		s.tracks = append(s.tracks, &Track{id: fmt.Sprintf("%s-video", id), kind: types.VideoInput})
	}
	if constraints.Audio {
		s.tracks = append(s.tracks, &Track{id: fmt.Sprintf("%s-audio", id), kind: types.AudioInput})
	}
	return s
}

func (s *Session) ID() string { return s.id }

// DeviceID returns the device the session was opened against.
func (s *Session) DeviceID() string { return s.deviceID }

func (s *Session) Tracks() []platform.Track {
	out := make([]platform.Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, t := range s.tracks {
		t.Stop()
	}
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
