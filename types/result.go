package types

// Outcome is the terminal disposition of one diagnostic test.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// TestResult is the standardized payload recorded for every terminal
// transition and pushed to reporting clients.
type TestResult struct {
	TestName   string         `json:"testName"`
	SessionID  string         `json:"sessionId,omitempty"`
	Outcome    Outcome        `json:"outcome"`
	DurationMs int64          `json:"durationMs"`
	Attempts   int            `json:"attempts"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// SuiteSummary aggregates the results of a full diagnostic run.
type SuiteSummary struct {
	Results   []TestResult `json:"results"`
	Completed int          `json:"completed"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
}
