// Package sim is a deterministic in-process platform used by the CLI demo
// mode and the test suite. Device lists, permission outcomes, session
// failures, and hardware events are all scriptable.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/device-next/devicecheck/platform"
	"github.com/device-next/devicecheck/types"
)

type subscriber struct {
	id      int
	handler func(platform.Event)
}

// Platform implements platform.API and platform.EventSource.
type Platform struct {
	mu sync.Mutex

	devices        map[types.DeviceKind][]types.DeviceDescriptor
	permissions    map[string]types.PermissionStatus
	grantOnRequest map[string]bool
	requestErr     map[string]error

	enumerateErr   error
	openErr        error
	enumerateDelay time.Duration
	openDelay      time.Duration
	requestDelay   time.Duration

	enumerateCalls map[types.DeviceKind]int
	checkCalls     map[string]int
	requestCalls   map[string]int
	openCalls      int

	listeners map[string][]*subscriber
	nextSub   int
	nextSess  int

	sessions []*Session
}

// New creates an empty simulated platform; script it with the Set/Add
// methods before handing it to the harness.
func New() *Platform {
	return &Platform{
		devices:        make(map[types.DeviceKind][]types.DeviceDescriptor),
		permissions:    make(map[string]types.PermissionStatus),
		grantOnRequest: make(map[string]bool),
		requestErr:     make(map[string]error),
		enumerateCalls: make(map[types.DeviceKind]int),
		checkCalls:     make(map[string]int),
		requestCalls:   make(map[string]int),
		listeners:      make(map[string][]*subscriber),
	}
}

// labelPermission maps a device kind to the permission that unlocks its
// labels, mimicking platforms that redact labels pre-grant.
func labelPermission(kind types.DeviceKind) string {
	switch kind {
	case types.VideoInput:
		return "camera"
	case types.AudioInput:
		return "microphone"
	default:
		return ""
	}
}

// --- scripting surface ---

// SetDevices replaces the device list for kind.
func (p *Platform) SetDevices(kind types.DeviceKind, devices ...types.DeviceDescriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.devices[kind] = append([]types.DeviceDescriptor(nil), devices...)
}

// AddDevice appends a device and fires a devicechange event, simulating
// hot-plug.
func (p *Platform) AddDevice(device types.DeviceDescriptor) {
	p.mu.Lock()
	p.devices[device.Kind] = append(p.devices[device.Kind], device)
	p.mu.Unlock()
	p.Emit(platform.TargetWindow, platform.EventDeviceChange, nil)
}

// SetPermission scripts the current grant status for a category.
func (p *Platform) SetPermission(category string, status types.PermissionStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.permissions[category] = status
}

// GrantOnRequest makes the next RequestPermission for category resolve to
// granted (true) or keep the scripted status (false).
func (p *Platform) GrantOnRequest(category string, grant bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.grantOnRequest[category] = grant
}

// FailRequest makes RequestPermission for category return err.
func (p *Platform) FailRequest(category string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requestErr[category] = err
}

// FailEnumeration makes EnumerateDevices return err until cleared.
func (p *Platform) FailEnumeration(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enumerateErr = err
}

// FailOpen makes OpenSession return err until cleared.
func (p *Platform) FailOpen(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openErr = err
}

// SetEnumerateDelay inserts a pause inside EnumerateDevices, for
// coalescing tests.
func (p *Platform) SetEnumerateDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enumerateDelay = d
}

// SetOpenDelay inserts a pause inside OpenSession, for generation-stamping
// tests.
func (p *Platform) SetOpenDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openDelay = d
}

// SetRequestDelay inserts a pause inside RequestPermission.
func (p *Platform) SetRequestDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requestDelay = d
}

// Call counters, for asserting coalescing and idempotence.

func (p *Platform) EnumerateCalls(kind types.DeviceKind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enumerateCalls[kind]
}

func (p *Platform) CheckCalls(category string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkCalls[category]
}

func (p *Platform) RequestCalls(category string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requestCalls[category]
}

func (p *Platform) OpenCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.openCalls
}

// OpenSessions returns the sessions opened so far, including closed ones.
func (p *Platform) OpenSessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Session(nil), p.sessions...)
}

// --- platform.API ---

func (p *Platform) EnumerateDevices(ctx context.Context, kind types.DeviceKind) ([]types.DeviceDescriptor, error) {
	p.mu.Lock()
	p.enumerateCalls[kind]++
	delay := p.enumerateDelay
	err := p.enumerateErr
	devices := append([]types.DeviceDescriptor(nil), p.devices[kind]...)
	redact := false
	if perm := labelPermission(kind); perm != "" {
		redact = p.permissions[perm] != types.PermissionGranted
	}
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if redact {
		for i := range devices {
			devices[i].Label = ""
		}
	}
	return devices, nil
}

func (p *Platform) CheckPermission(_ context.Context, category string) (types.PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkCalls[category]++
	status, ok := p.permissions[category]
	if !ok {
		status = types.PermissionPrompt
	}
	return types.PermissionState{Category: category, Status: status, CheckedAt: time.Now()}, nil
}

func (p *Platform) RequestPermission(ctx context.Context, category string) (types.PermissionState, error) {
	p.mu.Lock()
	p.requestCalls[category]++
	delay := p.requestDelay
	err := p.requestErr[category]
	if err == nil && p.grantOnRequest[category] {
		p.permissions[category] = types.PermissionGranted
	}
	status, ok := p.permissions[category]
	if !ok {
		status = types.PermissionDenied
	}
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return types.PermissionState{}, ctx.Err()
		}
	}
	if err != nil {
		return types.PermissionState{}, err
	}
	return types.PermissionState{Category: category, Status: status, CheckedAt: time.Now()}, nil
}

func (p *Platform) OpenSession(ctx context.Context, constraints platform.Constraints) (platform.Session, error) {
	p.mu.Lock()
	p.openCalls++
	delay := p.openDelay
	err := p.openErr
	p.nextSess++
	id := fmt.Sprintf("session-%d", p.nextSess)
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	session := newSession(id, constraints)
	p.mu.Lock()
	p.sessions = append(p.sessions, session)
	p.mu.Unlock()
	return session, nil
}

// --- platform.EventSource ---

func subKey(target, eventType string) string {
	return target + "\x00" + eventType
}

// Subscribe registers handler for (target, eventType) events.
func (p *Platform) Subscribe(target, eventType string, handler func(platform.Event)) func() {
	p.mu.Lock()
	p.nextSub++
	sub := &subscriber{id: p.nextSub, handler: handler}
	key := subKey(target, eventType)
	p.listeners[key] = append(p.listeners[key], sub)
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		subs := p.listeners[key]
		for i, s := range subs {
			if s.id == sub.id {
				p.listeners[key] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// SubscriberCount reports live subscriptions for (target, eventType).
func (p *Platform) SubscriberCount(target, eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners[subKey(target, eventType)])
}

// Emit dispatches an event synchronously to current subscribers.
func (p *Platform) Emit(target, eventType string, payload map[string]any) {
	p.mu.Lock()
	subs := append([]*subscriber(nil), p.listeners[subKey(target, eventType)]...)
	p.mu.Unlock()

	event := platform.Event{Target: target, Type: eventType, Payload: payload}
	for _, sub := range subs {
		sub.handler(event)
	}
}
