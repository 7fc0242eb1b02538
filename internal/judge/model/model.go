package model

import (
	"encoding/json"
)

// ExecutionMode selects which test-case set a submission runs against and
// whether the result is persisted.
type ExecutionMode string

const (
	// ModePublic runs public test cases only; nothing is persisted.
	ModePublic ExecutionMode = "public"
	// ModeFull runs public and private test cases and records the
	// submission with user stats.
	ModeFull ExecutionMode = "full"
)

// Valid reports whether m is a known execution mode.
func (m ExecutionMode) Valid() bool {
	return m == ModePublic || m == ModeFull
}

// ExecutePayload is the execute-code job body.
type ExecutePayload struct {
	Runtime   string        `json:"runtime"`
	ProblemID int64         `json:"problem_id"`
	UserID    int64         `json:"user_id"`
	Path      string        `json:"path_to_file"`
	Code      string        `json:"code"` // base64 user code, persisted on full runs
	Mode      ExecutionMode `json:"type"`
	ClassName string        `json:"class_name,omitempty"`
}

// TestResult is one structured harness verdict. Harnesses emit either a
// boolean "passed" or a "status" string; both spellings are accepted.
type TestResult struct {
	Index       int         `json:"index,omitempty"`
	Description string      `json:"description,omitempty"`
	Passed      bool        `json:"passed"`
	Status      string      `json:"status,omitempty"`
	Expected    interface{} `json:"expected,omitempty"`
	Actual      interface{} `json:"actual,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// UnmarshalJSON normalizes Passed from either spelling.
func (t *TestResult) UnmarshalJSON(data []byte) error {
	type alias TestResult
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*t = TestResult(a)
	if t.Status == "passed" {
		t.Passed = true
	}
	return nil
}

// Verdict is the graded outcome of a run, distinct from the boolean success
// used for persistence: a run with no structured results is clean but
// ungraded.
type Verdict string

const (
	VerdictAccepted Verdict = "accepted"
	VerdictRejected Verdict = "rejected"
	VerdictRanClean Verdict = "ran_clean"
	VerdictError    Verdict = "error"
)

// ExecutionResult is the job return value.
type ExecutionResult struct {
	Success          bool         `json:"success"`
	Verdict          Verdict      `json:"verdict"`
	Output           string       `json:"output"`
	Error            string       `json:"error"`
	ExecutionTimeMS  int64        `json:"executionTime"`
	MemoryUsed       int64        `json:"memoryUsed"`
	CPUTimeMS        int64        `json:"cpuTime"`
	ExitCode         int          `json:"exitCode"`
	Status           string       `json:"status"`
	TestResults      []TestResult `json:"testResults"`
	Language         string       `json:"language"`
	Version          string       `json:"version"`
	OriginalLanguage string       `json:"originalLanguage"`
	ProblemID        int64        `json:"problemId"`
	UserID           int64        `json:"userId"`
	ExecutionMethod  string       `json:"executionMethod"` // api or cli
}
