// Package judge turns queued execute-code jobs into graded execution results.
// It prefers the remote execution API and falls back to the local CLI, then
// persists full-mode runs and publishes a final status event.
package judge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"codearena/internal/ingest"
	"codearena/internal/judge/model"
	"codearena/internal/judge/repository"
	"codearena/internal/judge/sandbox"
	"codearena/internal/langmap"
	"codearena/internal/queue"
	"codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

// APIExecutor runs a source file through the remote execution API.
type APIExecutor interface {
	Execute(ctx context.Context, language, version, filename string, content []byte) (*sandbox.RunOutput, error)
}

// CLIExecutor runs a materialized source file through the local CLI.
type CLIExecutor interface {
	Run(ctx context.Context, language, path, version string) (*sandbox.RunOutput, error)
}

// Ingestor persists a finished full-mode submission.
type Ingestor interface {
	Ingest(ctx context.Context, sub ingest.Submission) error
}

// Service is the execute-code job handler.
type Service struct {
	api       APIExecutor // nil when no remote sandbox is configured
	cli       CLIExecutor
	ingestor  Ingestor
	publisher repository.StatusEventPublisher // nil disables events
}

func NewService(api APIExecutor, cli CLIExecutor, ingestor Ingestor, publisher repository.StatusEventPublisher) *Service {
	return &Service{api: api, cli: cli, ingestor: ingestor, publisher: publisher}
}

// Handle implements queue.Handler. Malformed payloads, unknown runtimes,
// timeouts, and a missing CLI are terminal; sandbox flakiness and ingestion
// errors are left retryable.
func (s *Service) Handle(ctx context.Context, job *queue.Job) (json.RawMessage, error) {
	var payload model.ExecutePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, queue.NonRetryable(errors.Wrapf(err, errors.InvalidParams, "decode execute payload"))
	}
	if !payload.Mode.Valid() {
		return nil, queue.NonRetryable(errors.Newf(errors.InvalidParams, "unknown execution mode %q", payload.Mode))
	}
	rt, err := langmap.ResolveRuntime(payload.Runtime)
	if err != nil {
		return nil, queue.NonRetryable(err)
	}

	logger.Info(ctx, "executing job",
		zap.String("job_id", job.ID),
		zap.String("runtime", payload.Runtime),
		zap.Int64("problem_id", payload.ProblemID),
		zap.String("mode", string(payload.Mode)),
	)

	out, err := s.execute(ctx, rt, payload.Path)
	if err != nil {
		terminal := errors.Is(err, errors.ExecutionTimeout) ||
			errors.Is(err, errors.SandboxCLIMissing) ||
			errors.Is(err, errors.OutputLimitReached)
		if terminal || job.AttemptsMade >= job.MaxAttempts {
			s.publishFailure(ctx, job.ID, &payload, rt, err)
		}
		if terminal {
			return nil, queue.NonRetryable(err)
		}
		return nil, err
	}

	results := parseTestResults(out.Stdout)
	success, verdict := classify(out, results)

	status := "success"
	if strings.TrimSpace(out.Stderr) != "" {
		status = "error"
	}
	result := &model.ExecutionResult{
		Success:          success,
		Verdict:          verdict,
		Output:           out.Stdout,
		Error:            out.Stderr,
		ExecutionTimeMS:  out.WallTimeMS,
		MemoryUsed:       out.MemoryKB,
		CPUTimeMS:        out.CPUTimeMS,
		ExitCode:         out.ExitCode,
		Status:           status,
		TestResults:      results,
		Language:         rt.SandboxLanguage,
		Version:          rt.Version,
		OriginalLanguage: payload.Runtime,
		ProblemID:        payload.ProblemID,
		UserID:           payload.UserID,
		ExecutionMethod:  out.Method,
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, queue.NonRetryable(errors.Wrapf(err, errors.InternalServerError, "marshal execution result"))
	}

	if payload.Mode == model.ModeFull {
		code, err := base64.StdEncoding.DecodeString(payload.Code)
		if err != nil {
			return nil, queue.NonRetryable(errors.Wrapf(err, errors.UserCodeInvalid, "decode submitted code"))
		}
		sub := ingest.Submission{
			JobID:     job.ID,
			UserID:    payload.UserID,
			ProblemID: payload.ProblemID,
			Code:      string(code),
			Result:    resultJSON,
			Success:   success,
			Runtime:   payload.Runtime,
			Origin:    ingest.OriginJobExecution,
		}
		if err := s.ingestor.Ingest(ctx, sub); err != nil {
			if errors.Is(err, errors.ProblemNotFound) {
				return nil, queue.NonRetryable(err)
			}
			return nil, err
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishFinalStatus(ctx, job.ID, result); err != nil {
			logger.Warn(ctx, "publish final status failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}

	return resultJSON, nil
}

// publishFailure emits a final status event for a job that will not run again.
func (s *Service) publishFailure(ctx context.Context, jobID string, payload *model.ExecutePayload, rt langmap.Runtime, cause error) {
	if s.publisher == nil {
		return
	}
	result := &model.ExecutionResult{
		Success:          false,
		Verdict:          model.VerdictError,
		Error:            cause.Error(),
		Status:           "error",
		Language:         rt.SandboxLanguage,
		Version:          rt.Version,
		OriginalLanguage: payload.Runtime,
		ProblemID:        payload.ProblemID,
		UserID:           payload.UserID,
	}
	if err := s.publisher.PublishFinalStatus(ctx, jobID, result); err != nil {
		logger.Warn(ctx, "publish failure status failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

// execute tries the API first and falls back to the CLI when the API is
// unreachable, answers badly, or fails compilation.
func (s *Service) execute(ctx context.Context, rt langmap.Runtime, path string) (*sandbox.RunOutput, error) {
	if s.api != nil {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, queue.NonRetryable(errors.Wrapf(err, errors.ExecutionFailed, "read source file %s", path))
		}
		out, err := s.api.Execute(ctx, rt.SandboxLanguage, rt.Version, filepath.Base(path), content)
		if err == nil && out.CompileOK {
			return out, nil
		}
		if err != nil {
			logger.Warn(ctx, "execution api failed, falling back to cli", zap.Error(err))
		} else {
			logger.Warn(ctx, "compilation failed on api, falling back to cli", zap.String("path", path))
		}
	}
	if s.cli == nil {
		return nil, errors.New(errors.SandboxUnavailable).WithMessage("no execution backend available")
	}
	return s.cli.Run(ctx, rt.SandboxLanguage, path, rt.Version)
}
