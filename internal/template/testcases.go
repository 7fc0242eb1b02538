package template

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"codearena/internal/problem/model"
	"codearena/pkg/errors"
)

const maxTestCaseBody = 8 << 20 // 8MB

// TestCaseFetcher dereferences a problem's test-case artifact URL into
// structured test cases. Any failure aborts generation; there is no empty
// fallback.
type TestCaseFetcher struct {
	client *http.Client
}

func NewTestCaseFetcher(timeout time.Duration) *TestCaseFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TestCaseFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch GETs url and decodes a JSON array of test cases. A non-200 status or
// a body that is not a JSON array is a TestCaseFetchFailed error.
func (f *TestCaseFetcher) Fetch(ctx context.Context, url string) ([]model.TestCase, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, errors.TestCaseFetchFailed, "build test case request failed: %v", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, errors.TestCaseFetchFailed,
			"fetch test cases from %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.TestCaseFetchFailed,
			"fetch test cases from %s failed: %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTestCaseBody))
	if err != nil {
		return nil, errors.Wrapf(err, errors.TestCaseFetchFailed, "read test case body failed: %v", err)
	}

	var cases []model.TestCase
	if err := json.Unmarshal(body, &cases); err != nil {
		return nil, errors.Wrapf(err, errors.TestCaseFetchFailed,
			"test case artifact at %s is not a JSON array: %v", url, err)
	}
	return cases, nil
}

// MarshalTestCases serializes test cases for harness embedding. Output is
// deterministic for identical input.
func MarshalTestCases(cases []model.TestCase) (string, error) {
	if cases == nil {
		cases = []model.TestCase{}
	}
	raw, err := json.Marshal(cases)
	if err != nil {
		return "", errors.Wrap(err, errors.InternalServerError)
	}
	return string(raw), nil
}
