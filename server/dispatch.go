package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/device-next/devicecheck/commands"
)

// HandlerFunc is the signature for JSON-RPC method handlers
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

var errMethodNotFound = errors.New("method not found")

// GetMethodRegistry returns a map of method names to handler functions
// This is used by both the HTTP server and the WebSocket path
func GetMethodRegistry() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"devices.list":        handleDevicesList,
		"permissions.check":   handlePermissionCheck,
		"permissions.request": handlePermissionRequest,
		"test.run":            handleTestRun,
		"suite.run":           handleSuiteRun,
		"server.shutdown":     handleServerShutdown,
	}
}

// Execute dispatches a method call using the registry
func Execute(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	registry := GetMethodRegistry()

	handler, exists := registry[method]
	if !exists {
		return nil, errMethodNotFound
	}

	return handler(ctx, params)
}

// unwrap converts a CommandResponse into a JSON-RPC result or error.
func unwrap(response *commands.CommandResponse) (interface{}, error) {
	if response.Status == "error" {
		return nil, fmt.Errorf("%s", response.Error)
	}
	if response.Data == nil {
		return okResponse, nil
	}
	return response.Data, nil
}

type devicesListParams struct {
	Kind string `json:"kind,omitempty"`
}

func handleDevicesList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p devicesListParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid parameters: %v. Expected fields: kind", err)
		}
	}
	return unwrap(commands.DevicesCommand(ctx, p.Kind))
}

type permissionParams struct {
	Category string `json:"category"`
}

func handlePermissionCheck(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("'params' is required with fields: category")
	}
	var p permissionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid parameters: %v. Expected fields: category", err)
	}
	return unwrap(commands.PermissionCheckCommand(ctx, p.Category))
}

func handlePermissionRequest(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("'params' is required with fields: category")
	}
	var p permissionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid parameters: %v. Expected fields: category", err)
	}
	return unwrap(commands.PermissionRequestCommand(ctx, p.Category))
}

type testRunParams struct {
	Test       string `json:"test"`
	DeviceID   string `json:"deviceId,omitempty"`
	DurationMs int    `json:"durationMs,omitempty"`
	AutoGrant  bool   `json:"autoGrant,omitempty"`
}

func handleTestRun(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("'params' is required with fields: test")
	}
	var p testRunParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid parameters: %v. Expected fields: test, deviceId, durationMs, autoGrant", err)
	}
	req := commands.TestRunRequest{
		Test:      p.Test,
		DeviceID:  p.DeviceID,
		Duration:  time.Duration(p.DurationMs) * time.Millisecond,
		AutoGrant: p.AutoGrant,
	}
	return unwrap(commands.TestRunCommand(ctx, req))
}

type suiteRunParams struct {
	DurationMs int  `json:"durationMs,omitempty"`
	AutoGrant  bool `json:"autoGrant,omitempty"`
}

func handleSuiteRun(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p suiteRunParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid parameters: %v. Expected fields: durationMs, autoGrant", err)
		}
	}
	req := commands.SuiteRequest{
		Duration:  time.Duration(p.DurationMs) * time.Millisecond,
		AutoGrant: p.AutoGrant,
	}
	return unwrap(commands.SuiteCommand(ctx, req))
}

func handleServerShutdown(context.Context, json.RawMessage) (interface{}, error) {
	requestShutdown()
	return okResponse, nil
}
