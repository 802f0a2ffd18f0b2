package harness

import (
	"context"

	"github.com/device-next/devicecheck/platform"
	"github.com/device-next/devicecheck/types"
)

// MediaStrategy acquires live capture sessions through a StreamManager.
// Used by the camera, microphone, and speaker tests.
type MediaStrategy struct {
	streams *StreamManager
	base    platform.Constraints
}

// NewMediaStrategy builds a strategy opening sessions of the given kind.
func NewMediaStrategy(streams *StreamManager, kind types.DeviceKind) *MediaStrategy {
	base := platform.Constraints{}
	switch kind {
	case types.VideoInput:
		base.Video = true
	case types.AudioInput, types.AudioOutput:
		base.Audio = true
	}
	return &MediaStrategy{streams: streams, base: base}
}

func (s *MediaStrategy) AcquireSession(ctx context.Context, deviceID string) (SessionRef, error) {
	constraints := s.base
	constraints.DeviceID = deviceID
	handle, err := s.streams.Acquire(ctx, constraints)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

func (s *MediaStrategy) ReleaseSession(SessionRef) {
	s.streams.Release()
}

func (s *MediaStrategy) SwitchSession(ctx context.Context, deviceID string) (SessionRef, error) {
	handle, err := s.streams.SwitchDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// Streams exposes the underlying manager for session inspection.
func (s *MediaStrategy) Streams() *StreamManager {
	return s.streams
}
