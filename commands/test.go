package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/device-next/devicecheck/harness"
	"github.com/device-next/devicecheck/types"
)

// TestRunRequest drives one diagnostic test non-interactively.
type TestRunRequest struct {
	Test      string        `json:"test"`
	DeviceID  string        `json:"deviceId,omitempty"`
	Duration  time.Duration `json:"-"`
	AutoGrant bool          `json:"autoGrant,omitempty"`
}

// TestRunResponse is the payload returned by TestRunCommand.
type TestRunResponse struct {
	Result   types.TestResult `json:"result"`
	Snapshot harness.Snapshot `json:"snapshot"`
}

// TestRunCommand runs a single test through its full lifecycle: initialize,
// negotiate permission (when AutoGrant is set), start, hold the session
// open for Duration, then complete. The recorded result is collected from
// the harness event channel.
func TestRunCommand(ctx context.Context, req TestRunRequest) *CommandResponse {
	if req.Test == "" {
		return NewErrorResponse(fmt.Errorf("test name is required"))
	}

	ctrl, err := GetHarness().Controller(req.Test)
	if err != nil {
		return NewErrorResponse(err)
	}

	result, err := runController(ctx, ctrl, req)
	if err != nil {
		return NewErrorResponse(err)
	}
	return NewSuccessResponse(TestRunResponse{Result: *result, Snapshot: ctrl.Snapshot()})
}

// runController executes the lifecycle against an already-built controller
// and returns the recorded result.
func runController(ctx context.Context, ctrl *harness.TestLifecycleController, req TestRunRequest) (*types.TestResult, error) {
	deregister := shutdownHook.Register("test-"+ctrl.TestName(), func() error {
		ctrl.Reset()
		return nil
	})
	defer deregister()

	// The event mux is shared; match on the session so concurrent runs of
	// the same test never collect each other's results.
	sessionID := ctrl.Session().ID
	var recorded *types.TestResult
	detach := eventMux.Attach(harness.EmitterFunc(func(event string, payload any) {
		if result, ok := payload.(types.TestResult); ok && result.SessionID == sessionID {
			r := result
			recorded = &r
		}
	}))
	defer detach()

	if err := ctrl.Initialize(ctx); err != nil {
		if recorded != nil {
			// Initialization failed terminally; the failure was recorded.
			return recorded, nil
		}
		return nil, err
	}

	if ctrl.State() == harness.StatePermissionRequired && req.AutoGrant {
		if err := ctrl.RequestPermission(ctx); err != nil {
			return nil, err
		}
	}

	switch ctrl.State() {
	case harness.StateReady:
	case harness.StatePermissionRequired:
		snap := ctrl.Snapshot()
		return nil, fmt.Errorf("permission required: %s", snap.CurrentError)
	case harness.StateNoDevices:
		return nil, fmt.Errorf("no devices found for test %q", ctrl.TestName())
	case harness.StateFailed:
		if recorded != nil {
			return recorded, nil
		}
		return nil, fmt.Errorf("test %q failed during initialization", ctrl.TestName())
	default:
		return nil, fmt.Errorf("unexpected state %q after initialization", ctrl.State())
	}

	if req.DeviceID != "" && req.DeviceID != ctrl.Snapshot().ActiveDeviceID {
		if err := ctrl.SwitchDevice(ctx, req.DeviceID); err != nil {
			return nil, err
		}
	}

	if err := ctrl.Start(ctx); err != nil {
		if recorded != nil {
			return recorded, nil
		}
		return nil, err
	}

	if ctrl.State() == harness.StateRunning {
		if req.Duration > 0 {
			select {
			case <-time.After(req.Duration):
			case <-ctx.Done():
				ctrl.Reset()
				return nil, ctx.Err()
			}
		}
		if err := ctrl.Complete(nil); err != nil {
			return nil, err
		}
	}

	if recorded == nil {
		return nil, fmt.Errorf("test %q produced no result", ctrl.TestName())
	}
	return recorded, nil
}
