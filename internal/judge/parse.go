package judge

import (
	"encoding/json"
	"strings"

	"codearena/internal/judge/model"
	"codearena/internal/judge/sandbox"
)

// parseTestResults extracts structured harness verdicts from stdout. Output
// that is not JSON, or JSON carrying no verdict list, yields an empty slice;
// a run without structured results is not itself an error.
func parseTestResults(stdout string) []model.TestResult {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return nil
	}
	switch trimmed[0] {
	case '[':
		var list []model.TestResult
		if err := json.Unmarshal([]byte(trimmed), &list); err != nil {
			return nil
		}
		return list
	case '{':
		var wrapper struct {
			Details []model.TestResult `json:"details"`
		}
		if err := json.Unmarshal([]byte(trimmed), &wrapper); err != nil {
			return nil
		}
		return wrapper.Details
	}
	return nil
}

// classify derives success and a verdict from a run. Success means the run
// wrote nothing to stderr and every structured verdict, if any, passed.
func classify(out *sandbox.RunOutput, results []model.TestResult) (bool, model.Verdict) {
	hasErrors := strings.TrimSpace(out.Stderr) != ""
	allPassed := true
	for _, r := range results {
		if !r.Passed {
			allPassed = false
			break
		}
	}
	success := !hasErrors && allPassed

	switch {
	case success && len(results) > 0:
		return true, model.VerdictAccepted
	case success:
		return true, model.VerdictRanClean
	case !hasErrors && len(results) > 0:
		return false, model.VerdictRejected
	default:
		return false, model.VerdictError
	}
}
