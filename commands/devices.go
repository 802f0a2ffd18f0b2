package commands

import (
	"context"
	"fmt"

	"github.com/device-next/devicecheck/types"
)

var allKinds = []types.DeviceKind{
	types.VideoInput, types.AudioInput, types.AudioOutput, types.OtherDevice,
}

// DevicesCommand lists discovered devices, optionally filtered by kind.
func DevicesCommand(ctx context.Context, kind string) *CommandResponse {
	h := GetHarness()

	kinds := allKinds
	if kind != "" {
		valid := false
		for _, k := range allKinds {
			if string(k) == kind {
				kinds = []types.DeviceKind{k}
				valid = true
				break
			}
		}
		if !valid {
			return NewErrorResponse(fmt.Errorf("unknown device kind: %q", kind))
		}
	}

	var devices []types.DeviceDescriptor
	for _, k := range kinds {
		found, err := h.Enumeration().Enumerate(ctx, k)
		if err != nil {
			return NewErrorResponse(err)
		}
		devices = append(devices, found...)
	}

	return NewSuccessResponse(map[string]interface{}{
		"devices": devices,
	})
}
