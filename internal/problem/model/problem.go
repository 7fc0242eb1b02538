package model

import (
	"encoding/json"
	"time"
)

// Difficulty is the problem difficulty bucket. It doubles as the user_stats
// counter selector on accepted submissions.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Param is a named function parameter. In Problem.Parameters the type is
// canonical; in LanguageParameter.Parameters it is language-specific.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Problem is a coding problem row.
type Problem struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Slug             string     `json:"slug"`
	Description      string     `json:"description"`
	Difficulty       Difficulty `json:"difficulty"`
	FunctionName     string     `json:"function_name"`
	ParametersNumber int        `json:"parameters_number"`
	Parameters       []Param    `json:"parameters"`
	ReturnType       string     `json:"return_type"`
	Topics           []string   `json:"topics,omitempty"`
	Constraints      []string   `json:"constraints,omitempty"`

	// Test case artifacts, one JSON array each, fetched over HTTP during
	// template generation.
	PublicTestCasesURL  string `json:"public_test_cases"`
	PrivateTestCasesURL string `json:"private_test_cases"`

	SubmissionCount int64 `json:"submission_count"`
	AcceptedCount   int64 `json:"accepted_count"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// LanguageParameter is the per-language projection of a problem's signature,
// derived once at problem creation through the canonical type table.
type LanguageParameter struct {
	ID         int64   `json:"id"`
	ProblemID  int64   `json:"problem_id"`
	Language   string  `json:"language"`
	Parameters []Param `json:"parameters"`
	ReturnType string  `json:"return_type"`
}

// BoilerplateSnippet is the starter code shown to users, generated once per
// language at problem creation.
type BoilerplateSnippet struct {
	ID        int64  `json:"id"`
	ProblemID int64  `json:"problem_id"`
	Language  string `json:"language"`
	Code      string `json:"code"`
	Extension string `json:"extension"`
}

// TestCase is a single judge test case as stored in the artifact JSON.
// Input takes any JSON shape: an object maps argument names to values, an
// array lists them positionally, anything else is the single argument. The
// expected value lives under "expected"; older artifacts spell it "output".
type TestCase struct {
	Input       json.RawMessage `json:"input"`
	Expected    json.RawMessage `json:"expected"`
	CaseNo      int             `json:"case_no,omitempty"`
	Description string          `json:"description,omitempty"`
}

func (t *TestCase) UnmarshalJSON(data []byte) error {
	type alias TestCase
	aux := struct {
		*alias
		Output json.RawMessage `json:"output"`
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(t.Expected) == 0 && len(aux.Output) > 0 {
		t.Expected = aux.Output
	}
	return nil
}

// CreateProblemRequest carries the fields needed to create a problem.
type CreateProblemRequest struct {
	Title            string     `json:"title" binding:"required"`
	Description      string     `json:"description" binding:"required"`
	Difficulty       Difficulty `json:"difficulty" binding:"required"`
	FunctionName     string     `json:"function_name" binding:"required"`
	Parameters       []Param    `json:"parameters" binding:"required"`
	ReturnType       string     `json:"return_type" binding:"required"`
	Topics           []string   `json:"topics"`
	Constraints      []string   `json:"constraints"`
	PublicTestCases  []TestCase `json:"public_test_cases" binding:"required"`
	PrivateTestCases []TestCase `json:"private_test_cases" binding:"required"`
}

// UpdateProblemRequest carries a partial patch; nil fields are left as-is.
type UpdateProblemRequest struct {
	Title        *string     `json:"title"`
	Description  *string     `json:"description"`
	Difficulty   *Difficulty `json:"difficulty"`
	FunctionName *string     `json:"function_name"`
	Parameters   []Param     `json:"parameters"`
	Topics       []string    `json:"topics"`
	Constraints  []string    `json:"constraints"`
}
