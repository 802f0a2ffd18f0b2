package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/device-next/devicecheck/platform"
	"github.com/device-next/devicecheck/types"
	"github.com/device-next/devicecheck/utils"
)

// DefaultGraceWindow delays surfacing the no-devices UI signal after an
// empty enumeration, to avoid flicker during hot-plug settling. It gates
// only the ShowNoDevicesState flag; the controller's state reaches
// no-devices immediately.
const DefaultGraceWindow = 2 * time.Second

// ControllerConfig wires one TestLifecycleController. Enumeration and
// Permissions are process-wide shared services; Streams and Listeners are
// owned exclusively by this controller.
type ControllerConfig struct {
	TestName    string
	Category    Category
	Strategy    DeviceStrategy
	Enumeration *DeviceEnumerationService
	Permissions *PermissionManager
	Streams     *StreamManager
	Listeners   *EventListenerRegistry
	Recorder    *TestResultRecorder
	Events      platform.EventSource
	GraceWindow time.Duration
}

// TestLifecycleController drives one test session from initialization to a
// terminal outcome: enumerate, negotiate permission, acquire the session,
// capture events, release everything on every exit path.
type TestLifecycleController struct {
	mu sync.Mutex

	name     string
	category Category
	strategy DeviceStrategy
	enum     *DeviceEnumerationService
	perms    *PermissionManager
	streams  *StreamManager
	registry *EventListenerRegistry
	recorder *TestResultRecorder
	events   platform.EventSource
	grace    time.Duration

	// epoch is bumped on every reset; async continuations compare it so a
	// completion that raced a reset is discarded instead of applied.
	epoch uint64

	sess           *TestSession
	devices        []types.DeviceDescriptor
	permission     types.PermissionState
	activeDeviceID string
	sessionRef     SessionRef
	hasSessionRef  bool
	noDevicesAt    time.Time
	graceTimer     *time.Timer
	hotplugWired   bool

	subs    map[uint64]func(Snapshot)
	nextSub uint64
}

// NewController builds a controller for cfg. GraceWindow defaults to
// DefaultGraceWindow when unset.
func NewController(cfg ControllerConfig) *TestLifecycleController {
	grace := cfg.GraceWindow
	if grace <= 0 {
		grace = DefaultGraceWindow
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = NewTestResultRecorder(nil)
	}
	return &TestLifecycleController{
		name:     cfg.TestName,
		category: cfg.Category,
		strategy: cfg.Strategy,
		enum:     cfg.Enumeration,
		perms:    cfg.Permissions,
		streams:  cfg.Streams,
		registry: cfg.Listeners,
		recorder: recorder,
		events:   cfg.Events,
		grace:    grace,
		sess:     newSession(cfg.TestName),
		subs:     make(map[uint64]func(Snapshot)),
	}
}

// TestName returns the name of the test this controller drives.
func (c *TestLifecycleController) TestName() string {
	return c.name
}

// State returns the current lifecycle state.
func (c *TestLifecycleController) State() TestState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.State
}

// Session returns a copy of the current test session record.
func (c *TestLifecycleController) Session() TestSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.sess
}

// Subscribe registers fn to be called with a snapshot after every state
// change. The returned function unsubscribes.
func (c *TestLifecycleController) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Initialize discovers devices and negotiates permission, leaving the
// session in ready, permission-required, or no-devices. Calling it again on
// an error-free, already-initialized session is a no-op. From a terminal
// state it returns ErrInvalidTransition; reset first.
func (c *TestLifecycleController) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.sess.State.Terminal() {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	if c.sess.State != StateUninitialized && c.sess.LastError == nil {
		c.mu.Unlock()
		return nil
	}
	epoch := c.epoch
	c.sess.LastError = nil
	c.stopGraceLocked()
	c.sess.State = StateInitializing
	c.wireHotplugLocked()
	c.mu.Unlock()
	c.publish()

	return c.runInit(ctx, epoch)
}

// runInit performs the enumerate → check → (refresh) → ready sequence.
// Every suspension point is followed by an epoch check so a concurrent
// reset wins.
func (c *TestLifecycleController) runInit(ctx context.Context, epoch uint64) error {
	devices, err := c.enum.Enumerate(ctx, c.category.Kind)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		return c.failLocked(err)
	}
	c.devices = devices
	if len(devices) == 0 {
		c.enterNoDevicesLocked()
		c.mu.Unlock()
		c.publish()
		return nil
	}
	c.mu.Unlock()

	if !c.category.Exempt() {
		state, err := c.perms.Check(ctx, c.category.Permission)

		c.mu.Lock()
		if epoch != c.epoch {
			c.mu.Unlock()
			return nil
		}
		if err != nil {
			return c.failLocked(err)
		}
		c.permission = state
		if !state.Granted() {
			if state.Status == types.PermissionDenied {
				c.sess.LastError = Classify(ErrorPermissionDenied, "controller",
					fmt.Errorf("permission %q denied", c.category.Permission))
			}
			c.sess.State = StatePermissionRequired
			c.mu.Unlock()
			c.publish()
			return nil
		}
		c.mu.Unlock()

		// Labels may only be populated post-grant.
		devices, err = c.enum.Refresh(ctx, c.category.Kind)

		c.mu.Lock()
		if epoch != c.epoch {
			c.mu.Unlock()
			return nil
		}
		if err != nil {
			return c.failLocked(err)
		}
		c.devices = devices
		if len(devices) == 0 {
			c.enterNoDevicesLocked()
			c.mu.Unlock()
			c.publish()
			return nil
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return nil
	}
	if c.activeDeviceID == "" && len(c.devices) > 0 {
		c.activeDeviceID = c.devices[0].ID
	}
	c.sess.State = StateReady
	c.mu.Unlock()
	c.publish()

	if c.category.AutoAcquire {
		return c.acquire(ctx, epoch)
	}
	return nil
}

// RequestPermission delegates a live grant request to the permission
// manager. Valid only from permission-required; a no-op for exempt
// categories. A grant re-enumerates and moves the session to ready.
func (c *TestLifecycleController) RequestPermission(ctx context.Context) error {
	if c.category.Exempt() {
		return nil
	}

	c.mu.Lock()
	if c.sess.State != StatePermissionRequired {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	epoch := c.epoch
	c.mu.Unlock()

	state, err := c.perms.Request(ctx, c.category.Permission)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		if errors.Is(err, platform.ErrDeviceNotFound) {
			// Absence, not denial.
			c.sess.LastError = Classify(ErrorDeviceNotFound, "controller", err)
			c.devices = nil
			c.enterNoDevicesLocked()
		} else {
			c.sess.LastError = err
		}
		c.mu.Unlock()
		c.publish()
		return nil
	}
	c.permission = state
	if !state.Granted() {
		c.sess.LastError = Classify(ErrorPermissionDenied, "controller",
			fmt.Errorf("permission %q %s", c.category.Permission, state.Status))
		c.mu.Unlock()
		c.publish()
		return nil
	}
	c.sess.LastError = nil
	c.sess.State = StateInitializing
	c.mu.Unlock()
	c.publish()

	return c.runInit(ctx, epoch)
}

// Start transitions a ready session to running, acquiring the device
// session through the strategy and beginning event capture.
func (c *TestLifecycleController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.sess.State != StateReady {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	epoch := c.epoch
	c.sess.Attempts++
	c.sess.State = StateRunning
	needsAcquire := !c.hasSessionRef
	c.mu.Unlock()

	c.recorder.Started(c.name)
	c.publish()

	if needsAcquire {
		if err := c.acquire(ctx, epoch); err != nil {
			return err
		}
	}

	if capturer, ok := c.strategy.(EventCapturer); ok {
		capturer.CaptureEvents(c.registry)
	}
	return nil
}

func (c *TestLifecycleController) acquire(ctx context.Context, epoch uint64) error {
	c.mu.Lock()
	deviceID := c.activeDeviceID
	c.mu.Unlock()

	ref, err := c.strategy.AcquireSession(ctx, deviceID)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		if ref != nil {
			c.strategy.ReleaseSession(ref)
		}
		return nil
	}
	if err != nil {
		if errors.Is(err, ErrSuperseded) {
			c.mu.Unlock()
			return nil
		}
		// Unexpected acquisition errors are session-fatal and bypass
		// manual completion.
		if KindOf(err) == ErrorUnknown {
			err = Classify(ErrorUnknown, "controller", err)
		}
		return c.failLocked(err)
	}
	c.sessionRef = ref
	c.hasSessionRef = true
	c.mu.Unlock()
	c.publish()
	return nil
}

// SwitchDevice moves the live session to another enumerated device with no
// window where two sessions are open. Valid from ready or running, and only
// for strategies that support switching.
func (c *TestLifecycleController) SwitchDevice(ctx context.Context, deviceID string) error {
	switcher, ok := c.strategy.(SessionSwitcher)
	if !ok {
		return fmt.Errorf("%s: switching not supported", c.category.Name)
	}

	c.mu.Lock()
	if c.sess.State != StateReady && c.sess.State != StateRunning {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	epoch := c.epoch
	var device types.DeviceDescriptor
	found := false
	for _, d := range c.devices {
		if d.ID == deviceID {
			device = d
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return Classify(ErrorDeviceNotFound, "controller",
			fmt.Errorf("device %q not enumerated", deviceID))
	}

	ref, err := switcher.SwitchSession(ctx, deviceID)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		if ref != nil {
			c.strategy.ReleaseSession(ref)
		}
		return nil
	}
	if err != nil {
		if errors.Is(err, ErrSuperseded) {
			c.mu.Unlock()
			return nil
		}
		return c.failLocked(err)
	}
	c.sessionRef = ref
	c.hasSessionRef = true
	c.activeDeviceID = deviceID
	c.mu.Unlock()

	c.recorder.DeviceChanged(deviceID, device)
	c.publish()
	return nil
}

// Complete records a successful outcome. Valid from running, or from ready
// for tests that never start an active session.
func (c *TestLifecycleController) Complete(metadata map[string]any) error {
	return c.finish(StateCompleted, types.OutcomeCompleted, "", nil, metadata)
}

// Fail records a failed outcome with the given reason.
func (c *TestLifecycleController) Fail(reason error, metadata map[string]any) error {
	if reason != nil && KindOf(reason) == ErrorUnknown {
		reason = Classify(ErrorUnknown, "controller", reason)
	}
	return c.finish(StateFailed, types.OutcomeFailed, "", reason, metadata)
}

// Skip records a skipped outcome with the given reason.
func (c *TestLifecycleController) Skip(reason string, metadata map[string]any) error {
	return c.finish(StateSkipped, types.OutcomeSkipped, reason, nil, metadata)
}

func (c *TestLifecycleController) finish(state TestState, outcome types.Outcome, reason string, failure error, metadata map[string]any) error {
	c.mu.Lock()
	if c.sess.State != StateRunning && c.sess.State != StateReady {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	// From ready, only categories that hold no active session may record an
	// outcome without going through Start.
	if c.sess.State == StateReady && (c.category.AutoAcquire || c.hasSessionRef) {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	if failure != nil {
		c.sess.LastError = failure
	}
	c.terminalLocked(state)
	summary := c.summaryLocked(metadata)
	sess := *c.sess
	c.mu.Unlock()

	c.recorder.Record(&sess, outcome, reason, summary)
	c.publish()
	return nil
}

// failLocked forces a failed terminal transition for an unexpected error.
// Resources are released before the result is recorded. Called with c.mu
// held; returns with it released.
func (c *TestLifecycleController) failLocked(err error) error {
	c.sess.LastError = err
	c.terminalLocked(StateFailed)
	summary := c.summaryLocked(nil)
	sess := *c.sess
	c.mu.Unlock()

	utils.Verbose("test %q failed: %v", c.name, err)
	c.recorder.Record(&sess, types.OutcomeFailed, "", summary)
	c.publish()
	return err
}

// terminalLocked performs the shared terminal bookkeeping: release every
// session resource synchronously, then mark the state.
func (c *TestLifecycleController) terminalLocked(state TestState) {
	c.releaseLocked()
	c.sess.State = state
	c.sess.CompletedAt = time.Now()
}

// releaseLocked tears down the strategy session, the stream, every
// registered listener, and the grace timer.
func (c *TestLifecycleController) releaseLocked() {
	if c.hasSessionRef {
		if c.sessionRef != nil {
			c.strategy.ReleaseSession(c.sessionRef)
		}
		c.sessionRef = nil
		c.hasSessionRef = false
	}
	if c.streams != nil {
		c.streams.Release()
	}
	c.registry.RemoveAll()
	c.hotplugWired = false
	c.stopGraceLocked()
}

func (c *TestLifecycleController) summaryLocked(metadata map[string]any) map[string]any {
	summarizer, ok := c.strategy.(Summarizer)
	if !ok {
		return metadata
	}
	summary := summarizer.Summary()
	for k, v := range metadata {
		summary[k] = v
	}
	return summary
}

// Reset releases all resources, discards the session, and returns to
// uninitialized. Valid from any state.
func (c *TestLifecycleController) Reset() {
	c.mu.Lock()
	c.epoch++
	c.releaseLocked()
	c.sess = newSession(c.name)
	c.devices = nil
	c.permission = types.PermissionState{}
	c.activeDeviceID = ""
	c.noDevicesAt = time.Time{}
	c.mu.Unlock()
	c.publish()
}

// enterNoDevicesLocked records device absence. The controller state flips
// immediately; ShowNoDevicesState follows after the grace window.
func (c *TestLifecycleController) enterNoDevicesLocked() {
	c.sess.LastError = Classify(ErrorDeviceNotFound, "controller",
		fmt.Errorf("no %s devices found", c.category.Kind))
	c.sess.State = StateNoDevices
	c.noDevicesAt = time.Now()
	c.stopGraceLocked()
	epoch := c.epoch
	c.graceTimer = time.AfterFunc(c.grace, func() {
		c.mu.Lock()
		stale := epoch != c.epoch || c.sess.State != StateNoDevices
		c.mu.Unlock()
		if !stale {
			// Re-notify so subscribers observe ShowNoDevicesState.
			c.publish()
		}
	})
}

func (c *TestLifecycleController) stopGraceLocked() {
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
}

// wireHotplugLocked subscribes to platform devicechange events once per
// session. The subscription lives in the session registry, so it is
// disposed on every terminal path like any other listener.
func (c *TestLifecycleController) wireHotplugLocked() {
	if c.hotplugWired || c.events == nil {
		return
	}
	c.hotplugWired = true
	epoch := c.epoch
	c.registry.Add(platform.TargetWindow, platform.EventDeviceChange, func(platform.Event) {
		c.handleDeviceChange(context.Background(), epoch)
	})
}

// handleDeviceChange is the external re-enumeration trigger: the cache is
// refreshed, device-changed is emitted, and a session stuck in no-devices
// resumes initialization if hardware appeared.
func (c *TestLifecycleController) handleDeviceChange(ctx context.Context, epoch uint64) {
	devices, err := c.enum.Refresh(ctx, c.category.Kind)
	if err != nil {
		utils.Verbose("re-enumeration after devicechange failed: %v", err)
		return
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	prev := c.devices
	c.devices = devices
	resume := c.sess.State == StateNoDevices && len(devices) > 0
	if resume {
		c.sess.LastError = nil
		c.stopGraceLocked()
		c.sess.State = StateInitializing
	}
	c.mu.Unlock()

	if changed, ok := diffDeviceLists(prev, devices); ok {
		c.recorder.DeviceChanged(changed.ID, changed)
	}
	c.publish()

	if resume {
		_ = c.runInit(ctx, epoch)
	}
}

// diffDeviceLists finds the device that appeared in, or disappeared from,
// next relative to prev. Additions win when a single event carries both.
func diffDeviceLists(prev, next []types.DeviceDescriptor) (types.DeviceDescriptor, bool) {
	seen := make(map[string]bool, len(prev))
	for _, d := range prev {
		seen[d.ID] = true
	}
	for _, d := range next {
		if !seen[d.ID] {
			return d, true
		}
	}
	kept := make(map[string]bool, len(next))
	for _, d := range next {
		kept[d.ID] = true
	}
	for _, d := range prev {
		if !kept[d.ID] {
			return d, true
		}
	}
	return types.DeviceDescriptor{}, false
}

// Snapshot computes the UI-facing view of the controller.
func (c *TestLifecycleController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *TestLifecycleController) snapshotLocked() Snapshot {
	devices := make([]types.DeviceDescriptor, len(c.devices))
	copy(devices, c.devices)

	snap := Snapshot{
		TestName:           c.name,
		State:              c.sess.State.String(),
		Devices:            devices,
		ActiveDeviceID:     c.activeDeviceID,
		Attempts:           c.sess.Attempts,
		IsLoading:          c.sess.State == StateInitializing,
		HasPermission:      c.category.Exempt() || c.permission.Granted(),
		NeedsPermission:    c.sess.State == StatePermissionRequired,
		HasDevices:         len(c.devices) > 0,
		HasActiveSession:   c.hasSessionRef && c.sessionRef != nil,
		ShowNoDevicesState: c.sess.State == StateNoDevices && time.Since(c.noDevicesAt) >= c.grace,
	}
	if c.sess.LastError != nil {
		snap.CurrentError = c.sess.LastError.Error()
		snap.CurrentErrorKind = KindOf(c.sess.LastError).String()
	}
	return snap
}

// publish delivers a fresh snapshot to every subscriber.
func (c *TestLifecycleController) publish() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
