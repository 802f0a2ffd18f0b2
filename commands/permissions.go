package commands

import (
	"context"
	"fmt"
)

// PermissionCheckCommand reports the grant status of one capability
// category without prompting.
func PermissionCheckCommand(ctx context.Context, category string) *CommandResponse {
	if category == "" {
		return NewErrorResponse(fmt.Errorf("category is required"))
	}
	state, err := GetHarness().Permissions().Check(ctx, category)
	if err != nil {
		return NewErrorResponse(err)
	}
	return NewSuccessResponse(state)
}

// PermissionRequestCommand performs a live grant request for one capability
// category. Never served from cache; a cached denial must not suppress the
// retry.
func PermissionRequestCommand(ctx context.Context, category string) *CommandResponse {
	if category == "" {
		return NewErrorResponse(fmt.Errorf("category is required"))
	}
	state, err := GetHarness().Permissions().Request(ctx, category)
	if err != nil {
		return NewErrorResponse(err)
	}
	return NewSuccessResponse(state)
}
