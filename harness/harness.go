// Package harness implements the device test orchestration framework:
// device discovery with TTL caching, permission negotiation, stream and
// listener lifecycle, and the per-test state machine that ties them
// together. The UI and transport layers sit on top of this package; the
// platform package sits below it.
package harness

import (
	"fmt"
	"time"

	"github.com/device-next/devicecheck/platform"
	"github.com/device-next/devicecheck/types"
)

// Canonical test names, in suite order.
const (
	TestCamera     = "camera"
	TestMicrophone = "microphone"
	TestSpeaker    = "speaker"
	TestKeyboard   = "keyboard"
	TestMouse      = "mouse"
	TestTouch      = "touch"
	TestBattery    = "battery"
)

// Options tunes the shared services and per-controller defaults.
type Options struct {
	DeviceListTTL     time.Duration
	PermissionTTL     time.Duration
	GraceWindow       time.Duration
	InputRingCapacity int
}

// Harness owns the process-wide services (enumeration, permissions,
// recorder) and builds per-test controllers around them. Controllers get
// their own StreamManager and EventListenerRegistry; those are never
// shared.
type Harness struct {
	api      platform.API
	events   platform.EventSource
	enum     *DeviceEnumerationService
	perms    *PermissionManager
	recorder *TestResultRecorder
	opts     Options
}

// New wires a harness over the given platform. A nil emitter records
// results to nowhere.
func New(api platform.API, events platform.EventSource, emitter Emitter, opts Options) *Harness {
	return &Harness{
		api:      api,
		events:   events,
		enum:     NewDeviceEnumerationService(api, opts.DeviceListTTL),
		perms:    NewPermissionManager(api, opts.PermissionTTL),
		recorder: NewTestResultRecorder(emitter),
		opts:     opts,
	}
}

// Enumeration returns the shared enumeration service.
func (h *Harness) Enumeration() *DeviceEnumerationService {
	return h.enum
}

// Permissions returns the shared permission manager.
func (h *Harness) Permissions() *PermissionManager {
	return h.perms
}

// Recorder returns the shared result recorder.
func (h *Harness) Recorder() *TestResultRecorder {
	return h.recorder
}

// TestNames returns the canonical test sequence.
func (h *Harness) TestNames() []string {
	return []string{
		TestCamera, TestMicrophone, TestSpeaker,
		TestKeyboard, TestMouse, TestTouch,
		TestBattery,
	}
}

// Controller builds a fresh controller for testName with its own stream
// manager, listener registry, and category strategy.
func (h *Harness) Controller(testName string) (*TestLifecycleController, error) {
	registry := NewEventListenerRegistry(h.events)
	cfg := ControllerConfig{
		TestName:    testName,
		Enumeration: h.enum,
		Permissions: h.perms,
		Listeners:   registry,
		Recorder:    h.recorder,
		Events:      h.events,
		GraceWindow: h.opts.GraceWindow,
	}

	switch testName {
	case TestCamera:
		cfg.Category = Category{Name: "media", Kind: types.VideoInput, Permission: "camera", AutoAcquire: true}
		cfg.Streams = NewStreamManager(h.api)
		cfg.Strategy = NewMediaStrategy(cfg.Streams, types.VideoInput)
	case TestMicrophone:
		cfg.Category = Category{Name: "media", Kind: types.AudioInput, Permission: "microphone", AutoAcquire: true}
		cfg.Streams = NewStreamManager(h.api)
		cfg.Strategy = NewMediaStrategy(cfg.Streams, types.AudioInput)
	case TestSpeaker:
		// Playback needs no capability grant; the session drives a test tone.
		cfg.Category = Category{Name: "media", Kind: types.AudioOutput, AutoAcquire: true}
		cfg.Streams = NewStreamManager(h.api)
		cfg.Strategy = NewMediaStrategy(cfg.Streams, types.AudioOutput)
	case TestKeyboard:
		cfg.Category = Category{Name: "input", Kind: types.OtherDevice}
		cfg.Strategy = NewInputStrategy(h.opts.InputRingCapacity,
			platform.EventKeyDown, platform.EventKeyUp)
	case TestMouse:
		cfg.Category = Category{Name: "input", Kind: types.OtherDevice}
		cfg.Strategy = NewInputStrategy(h.opts.InputRingCapacity,
			platform.EventPointerDown, platform.EventPointerUp,
			platform.EventPointerMove, platform.EventWheel)
	case TestTouch:
		cfg.Category = Category{Name: "input", Kind: types.OtherDevice}
		cfg.Strategy = NewInputStrategy(h.opts.InputRingCapacity,
			platform.EventTouchStart, platform.EventTouchMove, platform.EventTouchEnd)
	case TestBattery:
		cfg.Category = Category{Name: "hardware", Kind: types.OtherDevice}
		cfg.Strategy = NewHardwareStrategy()
	default:
		return nil, fmt.Errorf("unknown test: %q", testName)
	}

	return NewController(cfg), nil
}
