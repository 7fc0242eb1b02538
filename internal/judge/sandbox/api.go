// Package sandbox executes materialized source files, preferring a remote
// execution API and falling back to a local CLI when the API is unreachable.
package sandbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"codearena/pkg/errors"
)

// RunOutput is the raw outcome of one execution, method-agnostic.
type RunOutput struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	Signal     string
	WallTimeMS int64
	CPUTimeMS  int64
	MemoryKB   int64
	// CompileOK is false when a compile stage ran and failed.
	CompileOK bool
	Method    string // api or cli
}

// APIConfig holds the connection settings for the execution API.
type APIConfig struct {
	URL            string        `yaml:"url"`
	Timeout        time.Duration `yaml:"timeout"`
	CompileTimeout int           `yaml:"compile_timeout_ms"`
	RunTimeout     int           `yaml:"run_timeout_ms"`
}

// APIClient calls the execution API to run source code. The request carries
// the file content base64-encoded so binary-unsafe sources survive transit.
type APIClient struct {
	url    string
	cfg    APIConfig
	client *http.Client
}

func NewAPIClient(cfg APIConfig) *APIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 35 * time.Second
	}
	if cfg.CompileTimeout <= 0 {
		cfg.CompileTimeout = 10000
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30000
	}
	return &APIClient{
		url:    strings.TrimRight(cfg.URL, "/"),
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type apiFile struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type apiRequest struct {
	Language       string    `json:"language"`
	Version        string    `json:"version"`
	Files          []apiFile `json:"files"`
	CompileTimeout int       `json:"compile_timeout"`
	RunTimeout     int       `json:"run_timeout"`
}

type apiStage struct {
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Code   *int    `json:"code"`
	Signal *string `json:"signal"`
}

type apiResponse struct {
	Run     apiStage  `json:"run"`
	Compile *apiStage `json:"compile"`
	Message string    `json:"message"`
}

// Execute runs one file through the API. Transport failures and non-2xx
// responses return SandboxUnavailable so the caller can fall back to the CLI.
func (c *APIClient) Execute(ctx context.Context, language, version, filename string, content []byte) (*RunOutput, error) {
	body, err := json.Marshal(apiRequest{
		Language: language,
		Version:  version,
		Files: []apiFile{{
			Name:     filename,
			Content:  base64.StdEncoding.EncodeToString(content),
			Encoding: "base64",
		}},
		CompileTimeout: c.cfg.CompileTimeout,
		RunTimeout:     c.cfg.RunTimeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.InternalServerError, "marshal execute request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/v2/execute", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, errors.InternalServerError, "build execute request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, errors.SandboxUnavailable, "execution api unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Newf(errors.SandboxUnavailable, "execution api returned HTTP %d", resp.StatusCode)
	}

	var raw apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, errors.Wrapf(err, errors.SandboxUnavailable, "decode execute response")
	}

	out := &RunOutput{
		Stdout:    raw.Run.Stdout,
		Stderr:    raw.Run.Stderr,
		CompileOK: true,
		Method:    "api",
	}
	if raw.Run.Code != nil {
		out.ExitCode = *raw.Run.Code
	}
	if raw.Run.Signal != nil {
		out.Signal = *raw.Run.Signal
	}
	if raw.Compile != nil && raw.Compile.Code != nil && *raw.Compile.Code != 0 {
		out.CompileOK = false
		if out.Stderr == "" {
			out.Stderr = raw.Compile.Stderr
		}
	}
	return out, nil
}
