package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	// DefaultConcurrency bounds the number of jobs processed in parallel.
	DefaultConcurrency = 100
	// DefaultPollInterval is how long an idle worker sleeps between
	// dequeue attempts.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultPromoteInterval is how often due delayed jobs are promoted.
	DefaultPromoteInterval = time.Second
	// DefaultStaleAfter is how long a job may sit active before it is
	// treated as abandoned by a dead worker and requeued.
	DefaultStaleAfter = 5 * time.Minute
)

// Handler processes one job and returns its result payload. A plain error
// triggers retry with backoff while attempts remain; an error wrapped with
// NonRetryable fails the job immediately.
type Handler func(ctx context.Context, job *Job) (json.RawMessage, error)

// WorkerConfig tunes a worker pool.
type WorkerConfig struct {
	Concurrency     int
	PollInterval    time.Duration
	PromoteInterval time.Duration
	// StaleAfter is the visibility timeout for active jobs. It must
	// exceed the longest expected handler run.
	StaleAfter time.Duration
}

// Worker runs a pool of goroutines consuming a queue.
type Worker struct {
	queue   *Queue
	handler Handler
	cfg     WorkerConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(q *Queue, handler Handler, cfg WorkerConfig) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PromoteInterval <= 0 {
		cfg.PromoteInterval = DefaultPromoteInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	return &Worker{queue: q, handler: handler, cfg: cfg}
}

// Start launches the worker pool and the delayed-job promoter. It returns
// immediately; call Stop to drain.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.runLoop(ctx)
	}

	w.wg.Add(1)
	go w.promoteLoop(ctx)
}

// Stop cancels the pool and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Worker) runLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.queue.dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error(ctx, "dequeue failed", zap.String("queue", w.queue.Name()), zap.Error(err))
			w.sleep(ctx, w.cfg.PollInterval)
			continue
		}
		if job == nil {
			w.sleep(ctx, w.cfg.PollInterval)
			continue
		}

		w.process(ctx, job)
	}
}

// process runs the handler for one claimed job. Handler panics are contained
// and treated as failed attempts: a bad job must never take the worker down.
func (w *Worker) process(ctx context.Context, job *Job) {
	result, err := w.invoke(ctx, job)
	if err == nil {
		if result == nil {
			result = json.RawMessage("null")
		}
		if err := w.queue.markCompleted(ctx, job.ID, result); err != nil {
			logger.Error(ctx, "mark completed failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}

	if IsNonRetryable(err) || job.AttemptsMade >= job.MaxAttempts {
		if ferr := w.queue.markFailed(ctx, job.ID, err.Error()); ferr != nil {
			logger.Error(ctx, "mark failed failed", zap.String("job_id", job.ID), zap.Error(ferr))
		}
		logger.Warn(ctx, "job failed",
			zap.String("queue", w.queue.Name()),
			zap.String("job_id", job.ID),
			zap.Int("attempts", job.AttemptsMade),
			zap.Error(err),
		)
		return
	}

	if rerr := w.queue.retryLater(ctx, job, err.Error()); rerr != nil {
		logger.Error(ctx, "schedule retry failed", zap.String("job_id", job.ID), zap.Error(rerr))
		return
	}
	logger.Info(ctx, "job scheduled for retry",
		zap.String("queue", w.queue.Name()),
		zap.String("job_id", job.ID),
		zap.Int("attempts", job.AttemptsMade),
		zap.Error(err),
	)
}

func (w *Worker) invoke(ctx context.Context, job *Job) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return w.handler(ctx, job)
}

func (w *Worker) promoteLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.PromoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.queue.promoteDue(ctx); err != nil && ctx.Err() == nil {
				logger.Error(ctx, "promote delayed jobs failed",
					zap.String("queue", w.queue.Name()), zap.Error(err))
			}
			n, err := w.queue.reclaimStale(ctx, w.cfg.StaleAfter)
			if err != nil && ctx.Err() == nil {
				logger.Error(ctx, "reclaim stale jobs failed",
					zap.String("queue", w.queue.Name()), zap.Error(err))
			}
			if n > 0 {
				logger.Warn(ctx, "requeued jobs abandoned by dead workers",
					zap.String("queue", w.queue.Name()), zap.Int("count", n))
			}
		}
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
