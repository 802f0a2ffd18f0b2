// Package platform defines the capability boundary between the diagnostic
// harness and whatever actually owns the hardware. The harness never talks to
// devices directly; it talks to an API implementation (a real host bridge or
// the in-process simulator under platform/sim).
package platform

import (
	"context"
	"errors"

	"github.com/device-next/devicecheck/types"
)

// Sentinel errors implementations wrap so the harness can classify platform
// failures without knowing the implementation.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrDeviceNotFound   = errors.New("device not found")
	ErrNotSupported     = errors.New("not supported")
)

// Constraints selects the device and track kinds for OpenSession.
type Constraints struct {
	DeviceID string
	Audio    bool
	Video    bool
}

// Track is one live capture track inside an open session.
type Track interface {
	ID() string
	Kind() types.DeviceKind
	// Stop ends the track. Stopping an already-stopped track is a no-op.
	Stop()
	Stopped() bool
}

// Session is a live device session returned by OpenSession. Closing a
// session stops all of its tracks.
type Session interface {
	ID() string
	Tracks() []Track
	Close()
}

// Event is a single event delivered by the platform event source.
type Event struct {
	Target  string
	Type    string
	Payload map[string]any
}

// API is the platform capability surface consumed by the harness.
// Implementations must be safe for concurrent use.
type API interface {
	// EnumerateDevices lists devices of one kind. Zero devices is reported
	// as an empty list, not an error.
	EnumerateDevices(ctx context.Context, kind types.DeviceKind) ([]types.DeviceDescriptor, error)

	// CheckPermission queries grant status without prompting.
	CheckPermission(ctx context.Context, category string) (types.PermissionState, error)

	// RequestPermission performs a live grant request, prompting if the
	// platform requires it.
	RequestPermission(ctx context.Context, category string) (types.PermissionState, error)

	// OpenSession opens a live capture session matching the constraints.
	OpenSession(ctx context.Context, constraints Constraints) (Session, error)
}

// EventSource delivers global platform events (input, hardware state,
// device hot-plug). Subscribe returns an unsubscribe function; calling it
// more than once is harmless.
type EventSource interface {
	Subscribe(target, eventType string, handler func(Event)) (unsubscribe func())
}

// Well-known event source targets and types.
const (
	TargetWindow  = "window"
	TargetBattery = "battery"

	EventDeviceChange   = "devicechange"
	EventKeyDown        = "keydown"
	EventKeyUp          = "keyup"
	EventPointerDown    = "pointerdown"
	EventPointerUp      = "pointerup"
	EventPointerMove    = "pointermove"
	EventWheel          = "wheel"
	EventTouchStart     = "touchstart"
	EventTouchMove      = "touchmove"
	EventTouchEnd       = "touchend"
	EventLevelChange    = "levelchange"
	EventChargingChange = "chargingchange"
)
