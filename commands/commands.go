package commands

import (
	"github.com/device-next/devicecheck/harness"
	"github.com/device-next/devicecheck/platform"
	"github.com/device-next/devicecheck/platform/sim"
	"github.com/device-next/devicecheck/types"
	"github.com/device-next/devicecheck/utils"
)

// CommandResponse represents a standardized response format for all commands
type CommandResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) *CommandResponse {
	return &CommandResponse{
		Status: "ok",
		Data:   data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err error) *CommandResponse {
	return &CommandResponse{
		Status: "error",
		Error:  err.Error(),
	}
}

// testHarness is the process-wide harness instance, set once at startup via
// SetHarness and shared by the CLI and the server.
var (
	testHarness  *harness.Harness
	eventMux     = harness.NewEmitterMux()
	shutdownHook = harness.NewShutdownHook()
)

// ShutdownHook returns the process-wide cleanup registry. Controllers built
// by the run commands register their reset here so an interrupt mid-test
// still releases streams and listeners.
func ShutdownHook() *harness.ShutdownHook {
	return shutdownHook
}

// Cleanup runs all registered shutdown hooks. Called from main on
// SIGINT/SIGTERM.
func Cleanup() {
	if err := shutdownHook.Shutdown(); err != nil {
		utils.Warn("cleanup: %v", err)
	}
}

// SetHarness installs the harness used by all commands. Call once at
// application startup (main.go or server start).
func SetHarness(h *harness.Harness) {
	testHarness = h
}

// GetHarness returns the installed harness, building a simulator-backed
// default on first use so the binary works out of the box without a host
// bridge.
func GetHarness() *harness.Harness {
	if testHarness == nil {
		testHarness = NewSimHarness(utils.Config{})
	}
	return testHarness
}

// Events returns the fan-out point for recorder events. Transports attach
// here to observe test-started/test-completed traffic.
func Events() *harness.EmitterMux {
	return eventMux
}

// NewSimHarness wires a harness over a seeded simulated platform.
func NewSimHarness(cfg utils.Config) *harness.Harness {
	platformSim := sim.New()
	SeedDefaults(platformSim)
	return NewHarness(platformSim, platformSim, cfg)
}

// NewHarness wires a harness over an arbitrary platform implementation.
func NewHarness(api platform.API, events platform.EventSource, cfg utils.Config) *harness.Harness {
	return harness.New(api, events, eventMux, harness.Options{
		DeviceListTTL:     cfg.DeviceListTTL,
		PermissionTTL:     cfg.PermissionTTL,
		GraceWindow:       cfg.GraceWindow,
		InputRingCapacity: cfg.InputRingCapacity,
	})
}

// SeedDefaults scripts the simulator with one device per category and
// grant-on-request permissions, the configuration the demo mode expects.
func SeedDefaults(p *sim.Platform) {
	p.SetDevices(types.VideoInput,
		types.DeviceDescriptor{ID: "cam-0", Kind: types.VideoInput, Label: "Integrated Camera", GroupID: "builtin"})
	p.SetDevices(types.AudioInput,
		types.DeviceDescriptor{ID: "mic-0", Kind: types.AudioInput, Label: "Internal Microphone", GroupID: "builtin"})
	p.SetDevices(types.AudioOutput,
		types.DeviceDescriptor{ID: "spk-0", Kind: types.AudioOutput, Label: "Internal Speakers", GroupID: "builtin"})
	p.SetDevices(types.OtherDevice,
		types.DeviceDescriptor{ID: "hid-0", Kind: types.OtherDevice, Label: "Internal HID", GroupID: "builtin"},
		types.DeviceDescriptor{ID: "bat-0", Kind: types.OtherDevice, Label: "Internal Battery", GroupID: "builtin"})
	p.SetPermission("camera", types.PermissionPrompt)
	p.SetPermission("microphone", types.PermissionPrompt)
	p.GrantOnRequest("camera", true)
	p.GrantOnRequest("microphone", true)
}
