package harness

import (
	"context"

	"github.com/device-next/devicecheck/types"
)

// SessionRef is an opaque handle to whatever a strategy acquired. A nil ref
// is legal for categories that hold no per-session resource of their own.
type SessionRef any

// DeviceStrategy plugs category-specific acquisition and release logic into
// the generic controller. Three implementations exist: media (wraps the
// StreamManager), input (global listeners + ring buffer), and hardware
// (platform event subscription).
type DeviceStrategy interface {
	AcquireSession(ctx context.Context, deviceID string) (SessionRef, error)
	ReleaseSession(ref SessionRef)
}

// EventCapturer is implemented by strategies that register event listeners
// while the test is running. All subscriptions go through the session's
// registry so the controller can guarantee their disposal.
type EventCapturer interface {
	CaptureEvents(registry *EventListenerRegistry)
}

// SessionSwitcher is implemented by strategies that can move the live
// session to another device without a window where two are open.
type SessionSwitcher interface {
	SwitchSession(ctx context.Context, deviceID string) (SessionRef, error)
}

// Summarizer is implemented by strategies that accumulate observations to
// fold into the recorded result metadata.
type Summarizer interface {
	Summary() map[string]any
}

// Category describes how the controller treats one device category.
type Category struct {
	// Name is the category label used in logs and results.
	Name string
	// Kind is the device kind passed to enumeration.
	Kind types.DeviceKind
	// Permission is the capability category to negotiate. Empty means the
	// category is exempt: Check is skipped and RequestPermission is a no-op.
	Permission string
	// AutoAcquire makes the controller acquire the session as soon as the
	// test reaches ready, the behavior stream-based tests expect.
	AutoAcquire bool
}

// Exempt reports whether the category skips permission negotiation.
func (c Category) Exempt() bool {
	return c.Permission == ""
}
