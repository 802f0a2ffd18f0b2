package harness

import (
	"time"

	"github.com/google/uuid"

	"github.com/device-next/devicecheck/types"
)

// TestState is the lifecycle state of one test session.
type TestState int

const (
	StateUninitialized TestState = iota
	StateInitializing
	StatePermissionRequired
	StateNoDevices
	StateReady
	StateRunning
	StateCompleted
	StateFailed
	StateSkipped
)

func (s TestState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StatePermissionRequired:
		return "permission-required"
	case StateNoDevices:
		return "no-devices"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is a recorded outcome. NoDevices is
// blocking but not terminal; it can be left through an external
// re-enumeration trigger.
func (s TestState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateSkipped
}

// TestSession is the mutable record of one test run. It is created by the
// controller, mutated only by the controller, and replaced wholesale on
// reset.
type TestSession struct {
	ID          string
	TestName    string
	State       TestState
	StartedAt   time.Time
	CompletedAt time.Time
	Attempts    int
	LastError   error
	Metadata    map[string]any
}

func newSession(testName string) *TestSession {
	return &TestSession{
		ID:        uuid.NewString(),
		TestName:  testName,
		State:     StateUninitialized,
		StartedAt: time.Now(),
		Metadata:  make(map[string]any),
	}
}

// Snapshot is the computed view of a controller that a UI binds to. It is a
// value copy; holding one never pins controller internals.
type Snapshot struct {
	TestName           string                   `json:"testName"`
	State              string                   `json:"state"`
	Devices            []types.DeviceDescriptor `json:"devices"`
	ActiveDeviceID     string                   `json:"activeDeviceId,omitempty"`
	Attempts           int                      `json:"attempts"`
	IsLoading          bool                     `json:"isLoading"`
	HasPermission      bool                     `json:"hasPermission"`
	NeedsPermission    bool                     `json:"needsPermission"`
	HasDevices         bool                     `json:"hasDevices"`
	ShowNoDevicesState bool                     `json:"showNoDevicesState"`
	HasActiveSession   bool                     `json:"hasActiveSession"`
	CurrentError       string                   `json:"currentError,omitempty"`
	CurrentErrorKind   string                   `json:"currentErrorKind,omitempty"`
}
