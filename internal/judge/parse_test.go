package judge

import (
	"testing"

	"codearena/internal/judge/model"
	"codearena/internal/judge/sandbox"
)

func TestParseTestResultsObjectWithDetails(t *testing.T) {
	stdout := `{"total":2,"passed":1,"failed":1,"errors":0,"details":[
		{"index":0,"description":"Example 1","status":"passed"},
		{"index":1,"description":"Example 2","status":"failed","expected":[0,1],"actual":[1,0]}
	]}`
	results := parseTestResults(stdout)
	if len(results) != 2 {
		t.Fatalf("len = %d, want 2", len(results))
	}
	if !results[0].Passed {
		t.Fatal("status \"passed\" must normalize to Passed")
	}
	if results[1].Passed {
		t.Fatal("failed case must not be Passed")
	}
}

func TestParseTestResultsBareArray(t *testing.T) {
	results := parseTestResults(`[{"passed":true},{"passed":true}]`)
	if len(results) != 2 {
		t.Fatalf("len = %d, want 2", len(results))
	}
}

func TestParseTestResultsNonJSON(t *testing.T) {
	for _, stdout := range []string{"", "hello world\n", "42", "{not json", "[broken"} {
		if got := parseTestResults(stdout); len(got) != 0 {
			t.Fatalf("parseTestResults(%q) = %v, want empty", stdout, got)
		}
	}
}

func TestParseTestResultsObjectWithoutDetails(t *testing.T) {
	if got := parseTestResults(`{"message":"ok"}`); len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func TestClassify(t *testing.T) {
	passed := []model.TestResult{{Passed: true}, {Passed: true}}
	mixed := []model.TestResult{{Passed: true}, {Passed: false}}

	tests := []struct {
		name    string
		out     *sandbox.RunOutput
		results []model.TestResult
		success bool
		verdict model.Verdict
	}{
		{"all passed", &sandbox.RunOutput{}, passed, true, model.VerdictAccepted},
		{"no results clean run", &sandbox.RunOutput{Stdout: "hello"}, nil, true, model.VerdictRanClean},
		{"failed case", &sandbox.RunOutput{}, mixed, false, model.VerdictRejected},
		{"stderr", &sandbox.RunOutput{Stderr: "boom"}, nil, false, model.VerdictError},
		{"stderr beats passing tests", &sandbox.RunOutput{Stderr: "warning: x"}, passed, false, model.VerdictError},
		{"whitespace stderr is clean", &sandbox.RunOutput{Stderr: "  \n"}, passed, true, model.VerdictAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			success, verdict := classify(tt.out, tt.results)
			if success != tt.success || verdict != tt.verdict {
				t.Fatalf("classify = (%v, %s), want (%v, %s)", success, verdict, tt.success, tt.verdict)
			}
		})
	}
}
