package commands

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/device-next/devicecheck/platform/sim"
	"github.com/device-next/devicecheck/types"
	"github.com/device-next/devicecheck/utils"
)

// installSim resets the process-wide harness to a freshly seeded simulator
// and returns the platform for scripting.
func installSim(t *testing.T) *sim.Platform {
	t.Helper()
	plat := sim.New()
	SeedDefaults(plat)
	SetHarness(NewHarness(plat, plat, utils.Config{GraceWindow: 20 * time.Millisecond}))
	t.Cleanup(func() { SetHarness(nil) })
	return plat
}

func TestDevicesCommand(t *testing.T) {
	installSim(t)

	resp := DevicesCommand(context.Background(), "")
	require.Equal(t, "ok", resp.Status, resp.Error)

	data := resp.Data.(map[string]interface{})
	devices := data["devices"].([]types.DeviceDescriptor)
	assert.Len(t, devices, 5, "one device per category plus the battery")
}

func TestDevicesCommand_KindFilter(t *testing.T) {
	installSim(t)

	resp := DevicesCommand(context.Background(), "videoinput")
	require.Equal(t, "ok", resp.Status, resp.Error)
	devices := resp.Data.(map[string]interface{})["devices"].([]types.DeviceDescriptor)
	require.Len(t, devices, 1)
	assert.Equal(t, "cam-0", devices[0].ID)

	resp = DevicesCommand(context.Background(), "telepathy")
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "unknown device kind")
}

func TestPermissionCommands(t *testing.T) {
	installSim(t)

	ctx := context.Background()
	resp := PermissionCheckCommand(ctx, "camera")
	require.Equal(t, "ok", resp.Status, resp.Error)
	state := resp.Data.(types.PermissionState)
	assert.Equal(t, types.PermissionPrompt, state.Status)

	resp = PermissionRequestCommand(ctx, "camera")
	require.Equal(t, "ok", resp.Status, resp.Error)
	state = resp.Data.(types.PermissionState)
	assert.Equal(t, types.PermissionGranted, state.Status)

	resp = PermissionCheckCommand(ctx, "")
	assert.Equal(t, "error", resp.Status)
}

func TestTestRunCommand_CameraWithAutoGrant(t *testing.T) {
	plat := installSim(t)

	resp := TestRunCommand(context.Background(), TestRunRequest{Test: "camera", AutoGrant: true})
	require.Equal(t, "ok", resp.Status, resp.Error)

	payload := resp.Data.(TestRunResponse)
	assert.Equal(t, "camera", payload.Result.TestName)
	assert.Equal(t, types.OutcomeCompleted, payload.Result.Outcome)
	assert.Equal(t, 1, payload.Result.Attempts)
	assert.GreaterOrEqual(t, payload.Result.DurationMs, int64(0))
	assert.Equal(t, "completed", payload.Snapshot.State)

	sessions := plat.OpenSessions()
	require.NotEmpty(t, sessions)
	for _, session := range sessions {
		assert.True(t, session.Closed(), "no session may survive the run")
	}
}

func TestTestRunCommand_PermissionRequiredWithoutGrant(t *testing.T) {
	installSim(t)

	resp := TestRunCommand(context.Background(), TestRunRequest{Test: "camera"})
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "permission required")
}

func TestTestRunCommand_UnknownTest(t *testing.T) {
	installSim(t)

	resp := TestRunCommand(context.Background(), TestRunRequest{Test: "hologram"})
	assert.Equal(t, "error", resp.Status)
}

func TestTestRunCommand_DeviceSelection(t *testing.T) {
	plat := installSim(t)
	plat.SetDevices(types.VideoInput,
		types.DeviceDescriptor{ID: "cam-0", Kind: types.VideoInput, Label: "Integrated Camera"},
		types.DeviceDescriptor{ID: "cam-1", Kind: types.VideoInput, Label: "USB Camera"})

	resp := TestRunCommand(context.Background(), TestRunRequest{Test: "camera", DeviceID: "cam-1", AutoGrant: true})
	require.Equal(t, "ok", resp.Status, resp.Error)

	payload := resp.Data.(TestRunResponse)
	assert.Equal(t, "cam-1", payload.Snapshot.ActiveDeviceID)
	assert.Equal(t, types.OutcomeCompleted, payload.Result.Outcome)
}

func TestTestRunCommand_ReleasesShutdownHook(t *testing.T) {
	installSim(t)

	for i := 0; i < 5; i++ {
		resp := TestRunCommand(context.Background(), TestRunRequest{Test: "battery"})
		require.Equal(t, "ok", resp.Status, resp.Error)
	}

	assert.Zero(t, ShutdownHook().Count(), "finished runs must not leave hooks behind")
}

func TestTestRunCommand_ConcurrentRunsKeepResultsSeparate(t *testing.T) {
	installSim(t)

	const runs = 4
	responses := make([]*CommandResponse, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			responses[n] = TestRunCommand(context.Background(), TestRunRequest{
				Test:     "keyboard",
				Duration: 30 * time.Millisecond,
			})
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, runs)
	for _, resp := range responses {
		require.Equal(t, "ok", resp.Status, resp.Error)
		result := resp.Data.(TestRunResponse).Result
		assert.Equal(t, "keyboard", result.TestName)
		assert.Equal(t, types.OutcomeCompleted, result.Outcome)
		require.NotEmpty(t, result.SessionID)
		assert.False(t, seen[result.SessionID], "each run must collect its own result")
		seen[result.SessionID] = true
	}
}

func TestSuiteCommand_AllComplete(t *testing.T) {
	installSim(t)

	resp := SuiteCommand(context.Background(), SuiteRequest{AutoGrant: true})
	require.Equal(t, "ok", resp.Status, resp.Error)

	summary := resp.Data.(types.SuiteSummary)
	assert.Len(t, summary.Results, 7)
	assert.Equal(t, 7, summary.Completed)
	assert.Zero(t, summary.Failed)
	assert.Zero(t, summary.Skipped)
}

func TestSuiteCommand_BlockedTestsAreSkipped(t *testing.T) {
	plat := installSim(t)
	plat.SetDevices(types.VideoInput) // unplug the camera

	resp := SuiteCommand(context.Background(), SuiteRequest{AutoGrant: true})
	require.Equal(t, "ok", resp.Status, resp.Error)

	summary := resp.Data.(types.SuiteSummary)
	require.Len(t, summary.Results, 7)
	assert.Equal(t, 6, summary.Completed)
	assert.Equal(t, 1, summary.Skipped)

	camera := summary.Results[0]
	assert.Equal(t, "camera", camera.TestName)
	assert.Equal(t, types.OutcomeSkipped, camera.Outcome)
	assert.Contains(t, camera.Reason, "no devices")
}
