package harness

import (
	"time"

	"github.com/device-next/devicecheck/types"
	"github.com/device-next/devicecheck/utils"
)

// Event names pushed to the UI/reporting collaborator.
const (
	EventTestStarted   = "test-started"
	EventTestCompleted = "test-completed"
	EventTestFailed    = "test-failed"
	EventTestSkipped   = "test-skipped"
	EventDeviceChanged = "device-changed"
)

// Emitter is the single notification channel between the harness and the
// external UI/reporting collaborator.
type Emitter interface {
	Emit(event string, payload any)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(event string, payload any)

func (f EmitterFunc) Emit(event string, payload any) {
	f(event, payload)
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) Emit(string, any) {}

// DeviceChange is the payload of a device-changed event.
type DeviceChange struct {
	DeviceID string                 `json:"deviceId"`
	Device   types.DeviceDescriptor `json:"device"`
}

// TestResultRecorder standardizes outcome payloads and emits them. One
// recorder is shared by all controllers of a harness.
type TestResultRecorder struct {
	emitter Emitter
}

// NewTestResultRecorder creates a recorder emitting through emitter; a nil
// emitter records to nowhere.
func NewTestResultRecorder(emitter Emitter) *TestResultRecorder {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &TestResultRecorder{emitter: emitter}
}

// Started announces that a test entered the running state.
func (r *TestResultRecorder) Started(testName string) {
	r.emitter.Emit(EventTestStarted, map[string]any{"testName": testName})
}

// Record builds the standardized result for a terminal transition and
// emits it. The caller must have released all session resources first, so
// an observer reacting to the result never sees a dangling live session.
func (r *TestResultRecorder) Record(sess *TestSession, outcome types.Outcome, reason string, metadata map[string]any) types.TestResult {
	completedAt := sess.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	durationMs := completedAt.Sub(sess.StartedAt).Milliseconds()
	if durationMs < 0 {
		durationMs = 0
	}

	result := types.TestResult{
		TestName:   sess.TestName,
		SessionID:  sess.ID,
		Outcome:    outcome,
		DurationMs: durationMs,
		Attempts:   sess.Attempts,
		Metadata:   metadata,
		Reason:     reason,
	}
	if sess.LastError != nil {
		result.Error = sess.LastError.Error()
	}

	utils.Verbose("recording %s result for %q after %dms (%d attempt(s))",
		outcome, sess.TestName, durationMs, sess.Attempts)

	switch outcome {
	case types.OutcomeCompleted:
		r.emitter.Emit(EventTestCompleted, result)
	case types.OutcomeFailed:
		r.emitter.Emit(EventTestFailed, result)
	case types.OutcomeSkipped:
		r.emitter.Emit(EventTestSkipped, result)
	}
	return result
}

// DeviceChanged announces a hot-plug triggered device change.
func (r *TestResultRecorder) DeviceChanged(deviceID string, device types.DeviceDescriptor) {
	r.emitter.Emit(EventDeviceChanged, DeviceChange{DeviceID: deviceID, Device: device})
}
