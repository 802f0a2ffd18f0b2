package commands

import (
	"context"
	"time"

	"github.com/device-next/devicecheck/types"
	"github.com/device-next/devicecheck/utils"
)

// SuiteRequest drives the full diagnostic sequence.
type SuiteRequest struct {
	Duration  time.Duration `json:"-"`
	AutoGrant bool          `json:"autoGrant,omitempty"`
}

// SuiteCommand runs every canonical test in order. Tests blocked on
// missing devices or permission are reported as skipped rather than
// aborting the run.
func SuiteCommand(ctx context.Context, req SuiteRequest) *CommandResponse {
	h := GetHarness()
	summary := types.SuiteSummary{}

	for _, name := range h.TestNames() {
		if ctx.Err() != nil {
			return NewErrorResponse(ctx.Err())
		}

		ctrl, err := h.Controller(name)
		if err != nil {
			return NewErrorResponse(err)
		}

		runReq := TestRunRequest{Test: name, Duration: req.Duration, AutoGrant: req.AutoGrant}
		result, err := runController(ctx, ctrl, runReq)
		if err != nil {
			// Blocked, not failed: the test never reached running.
			utils.Verbose("suite: skipping %q: %v", name, err)
			result = &types.TestResult{
				TestName: name,
				Outcome:  types.OutcomeSkipped,
				Attempts: ctrl.Session().Attempts,
				Reason:   err.Error(),
			}
			ctrl.Reset()
		}

		summary.Results = append(summary.Results, *result)
		switch result.Outcome {
		case types.OutcomeCompleted:
			summary.Completed++
		case types.OutcomeFailed:
			summary.Failed++
		case types.OutcomeSkipped:
			summary.Skipped++
		}
	}

	return NewSuccessResponse(summary)
}
