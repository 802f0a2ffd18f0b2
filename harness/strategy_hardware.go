package harness

import (
	"context"
	"sync"

	"github.com/device-next/devicecheck/platform"
)

// HardwareStrategy observes a hardware event source (battery charge state)
// instead of acquiring a stream. Hardware categories are exempt from
// permission negotiation.
type HardwareStrategy struct {
	mu        sync.Mutex
	level     float64
	hasLevel  bool
	charging  bool
	hasCharge bool
	changes   int
}

// NewHardwareStrategy builds a battery observer.
func NewHardwareStrategy() *HardwareStrategy {
	return &HardwareStrategy{}
}

func (s *HardwareStrategy) AcquireSession(context.Context, string) (SessionRef, error) {
	// The subscription is the session; it lives in the registry.
	return nil, nil
}

func (s *HardwareStrategy) ReleaseSession(SessionRef) {}

func (s *HardwareStrategy) CaptureEvents(registry *EventListenerRegistry) {
	registry.Add(platform.TargetBattery, platform.EventLevelChange, s.observe)
	registry.Add(platform.TargetBattery, platform.EventChargingChange, s.observe)
}

func (s *HardwareStrategy) observe(event platform.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes++
	if level, ok := event.Payload["level"].(float64); ok {
		s.level = level
		s.hasLevel = true
	}
	if charging, ok := event.Payload["charging"].(bool); ok {
		s.charging = charging
		s.hasCharge = true
	}
}

// Summary reports the last observed battery state and how many change
// events arrived during the test.
func (s *HardwareStrategy) Summary() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := map[string]any{
		"stateChanges": s.changes,
	}
	if s.hasLevel {
		summary["level"] = s.level
	}
	if s.hasCharge {
		summary["charging"] = s.charging
	}
	return summary
}
