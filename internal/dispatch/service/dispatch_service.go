// Package service schedules code executions: it renders the runnable source
// for a submission, materializes it on disk, and enqueues the execute job.
package service

import (
	"context"
	"strings"
	"time"

	"codearena/internal/common/storage"
	"codearena/internal/filestore"
	judgemodel "codearena/internal/judge/model"
	"codearena/internal/langmap"
	"codearena/internal/problem/model"
	"codearena/internal/queue"
	"codearena/internal/template"
	"codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

// ProblemSource loads problems for scheduling.
type ProblemSource interface {
	GetProblem(ctx context.Context, id int64) (*model.Problem, error)
}

// DispatchService wires template generation, file materialization, and the
// job queue behind the scheduling API.
type DispatchService struct {
	problems    ProblemSource
	generator   *template.Generator
	files       *filestore.Materializer
	queue       *queue.Queue
	objects     storage.ObjectStorage
	bucket      string
	presignTTL  time.Duration
	enqueueOpts *queue.EnqueueOptions
}

func NewDispatchService(
	problems ProblemSource,
	generator *template.Generator,
	files *filestore.Materializer,
	q *queue.Queue,
	objects storage.ObjectStorage,
	bucket string,
	presignTTL time.Duration,
	enqueueOpts *queue.EnqueueOptions,
) *DispatchService {
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}
	return &DispatchService{
		problems:    problems,
		generator:   generator,
		files:       files,
		queue:       q,
		objects:     objects,
		bucket:      bucket,
		presignTTL:  presignTTL,
		enqueueOpts: enqueueOpts,
	}
}

// ExecuteInput describes one execution request.
type ExecuteInput struct {
	ProblemID int64
	UserID    int64
	Runtime   string
	Code      string // base64 user code
	Mode      judgemodel.ExecutionMode
}

// Execute renders and materializes the runnable source, then enqueues the
// execute-code job. Everything that can fail from bad input fails here,
// before a job exists; the worker only sees runnable files.
func (s *DispatchService) Execute(ctx context.Context, in ExecuteInput) (*queue.Job, error) {
	if !in.Mode.Valid() {
		return nil, errors.Newf(errors.InvalidParams, "unknown execution type %q", in.Mode)
	}
	if in.ProblemID <= 0 {
		return nil, errors.New(errors.InvalidParams).WithMessage("problem_id is required")
	}

	rt, err := langmap.ResolveRuntime(in.Runtime)
	if err != nil {
		return nil, err
	}

	problem, err := s.problems.GetProblem(ctx, in.ProblemID)
	if err != nil {
		return nil, err
	}
	if err := s.resolveArtifactURLs(ctx, problem, in.Mode); err != nil {
		return nil, err
	}

	kind := template.KindPublicRun
	if in.Mode == judgemodel.ModeFull {
		kind = template.KindFullRun
	}
	generated, err := s.generator.GenerateRun(ctx, problem, rt, kind, in.Code)
	if err != nil {
		return nil, err
	}

	var path string
	if generated.ClassName != "" {
		path, err = s.files.WriteJava([]byte(generated.Content), generated.ClassName)
	} else {
		path, err = s.files.Write([]byte(generated.Content), generated.Extension)
	}
	if err != nil {
		return nil, err
	}

	payload := judgemodel.ExecutePayload{
		Runtime:   in.Runtime,
		ProblemID: in.ProblemID,
		UserID:    in.UserID,
		Path:      path,
		Code:      in.Code,
		Mode:      in.Mode,
		ClassName: generated.ClassName,
	}
	job, err := s.queue.Enqueue(ctx, payload, s.enqueueOpts)
	if err != nil {
		if rmErr := s.files.Remove(path); rmErr != nil {
			logger.Warn(ctx, "cleanup materialized file failed", zap.String("path", path), zap.Error(rmErr))
		}
		return nil, err
	}

	logger.Info(ctx, "execution scheduled",
		zap.String("job_id", job.ID),
		zap.Int64("problem_id", in.ProblemID),
		zap.String("runtime", in.Runtime),
		zap.String("mode", string(in.Mode)),
	)
	return job, nil
}

// Status returns the externally visible status of a job.
func (s *DispatchService) Status(ctx context.Context, jobID string) (*queue.Status, error) {
	if jobID == "" {
		return nil, errors.New(errors.InvalidParams).WithMessage("job id is required")
	}
	job, err := s.queue.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return queue.StatusOf(job), nil
}

// QueueStats returns per-state queue counts.
func (s *DispatchService) QueueStats(ctx context.Context) (*queue.Counts, error) {
	return s.queue.Counts(ctx)
}

// Pause halts dequeueing; queued jobs keep accumulating.
func (s *DispatchService) Pause(ctx context.Context) error { return s.queue.Pause(ctx) }

// Resume lifts a pause.
func (s *DispatchService) Resume(ctx context.Context) error { return s.queue.Resume(ctx) }

// Retry requeues one failed job.
func (s *DispatchService) Retry(ctx context.Context, jobID string) error {
	return s.queue.RetryJob(ctx, jobID)
}

// Remove deletes a job that has not started yet.
func (s *DispatchService) Remove(ctx context.Context, jobID string) error {
	return s.queue.RemoveJob(ctx, jobID)
}

// Clean removes terminal jobs older than age from the given state.
func (s *DispatchService) Clean(ctx context.Context, age time.Duration, state queue.State) (int, error) {
	return s.queue.Clean(ctx, age, state)
}

// Drain removes every job not currently executing.
func (s *DispatchService) Drain(ctx context.Context) error { return s.queue.Drain(ctx) }

// resolveArtifactURLs turns stored object keys into fetchable URLs. Values
// that already carry a scheme pass through untouched.
func (s *DispatchService) resolveArtifactURLs(ctx context.Context, p *model.Problem, mode judgemodel.ExecutionMode) error {
	resolved, err := s.resolveArtifactURL(ctx, p.PublicTestCasesURL)
	if err != nil {
		return err
	}
	p.PublicTestCasesURL = resolved

	if mode == judgemodel.ModeFull {
		resolved, err = s.resolveArtifactURL(ctx, p.PrivateTestCasesURL)
		if err != nil {
			return err
		}
		p.PrivateTestCasesURL = resolved
	}
	return nil
}

func (s *DispatchService) resolveArtifactURL(ctx context.Context, raw string) (string, error) {
	if raw == "" || strings.Contains(raw, "://") {
		return raw, nil
	}
	if s.objects == nil {
		return "", errors.New(errors.TestCaseURLMissing).WithMessage("object storage is not configured")
	}
	url, err := s.objects.PresignGet(ctx, s.bucket, raw, s.presignTTL)
	if err != nil {
		return "", errors.Wrapf(err, errors.TestCaseFetchFailed, "presign test case artifact %s", raw)
	}
	return url, nil
}
