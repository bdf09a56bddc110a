package domain

import (
	"fmt"
	"time"
)

// ScheduledRun is a pending execution of a test case.
// Lower Priority values are more urgent.
type ScheduledRun struct {
	RunID       int       `json:"run_id"`
	TestCaseID  int       `json:"test_case_id"`
	Priority    int       `json:"priority"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Outcome is the verdict of a single run.
type Outcome string

const (
	OutcomePass  Outcome = "PASS"
	OutcomeFail  Outcome = "FAIL"
	OutcomeError Outcome = "ERROR"
)

const (
	NotesPassed = "Passed"
	NotesFailed = "Failed - check logs"
)

// ExecutionResult is the outcome of executing a ScheduledRun
type ExecutionResult struct {
	TestCaseID int    `json:"test_case_id"`
	Passed     bool   `json:"passed"`
	Notes      string `json:"notes"`
}

// NewExecutionResult builds a result with the standard notes for the verdict.
func NewExecutionResult(testCaseID int, passed bool) ExecutionResult {
	notes := NotesFailed
	if passed {
		notes = NotesPassed
	}
	return ExecutionResult{TestCaseID: testCaseID, Passed: passed, Notes: notes}
}

// Outcome maps the boolean verdict onto PASS/FAIL.
func (r ExecutionResult) Outcome() Outcome {
	if r.Passed {
		return OutcomePass
	}
	return OutcomeFail
}

// RunSummary is the history line for a finished run, e.g. "Run 1: testCase 42 -> FAIL".
func RunSummary(runID, testCaseID int, outcome Outcome) string {
	return fmt.Sprintf("Run %d: testCase %d -> %s", runID, testCaseID, outcome)
}

// RunRecord is a persisted result row.
type RunRecord struct {
	RunID      int             `json:"run_id"`
	BatchID    string          `json:"batch_id"`
	Priority   int             `json:"priority"`
	Outcome    Outcome         `json:"outcome"`
	Result     ExecutionResult `json:"result"`
	ExecutedAt time.Time       `json:"executed_at"`
}
