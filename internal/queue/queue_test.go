package queue

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"codearena/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, "execute-code")
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

type testPayload struct {
	ProblemID int64  `json:"problem_id"`
	Code      string `json:"code"`
}

func TestEnqueueAndGetJob(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, testPayload{ProblemID: 3, Code: "x"}, nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.State != StateWaiting {
		t.Errorf("state = %s, want waiting", job.State)
	}
	if job.MaxAttempts != DefaultAttempts {
		t.Errorf("max attempts = %d, want %d", job.MaxAttempts, DefaultAttempts)
	}

	loaded, err := q.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	var payload testPayload
	if err := json.Unmarshal(loaded.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.ProblemID != 3 {
		t.Errorf("payload problem id = %d", payload.ProblemID)
	}
}

func TestEnqueueCustomJobID(t *testing.T) {
	q := newTestQueue(t)
	job, err := q.Enqueue(context.Background(), testPayload{}, &EnqueueOptions{JobID: "job-42"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.ID != "job-42" {
		t.Errorf("id = %q, want job-42", job.ID)
	}
}

func TestGetJobNotFound(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.GetJob(context.Background(), "missing")
	if !errors.Is(err, errors.JobNotFound) {
		t.Fatalf("expected JobNotFound, got %v", err)
	}
}

func TestWorkerCompletesJob(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	handler := func(ctx context.Context, job *Job) (json.RawMessage, error) {
		return json.RawMessage(`{"ok":true}`), nil
	}
	w := NewWorker(q, handler, WorkerConfig{Concurrency: 2, PollInterval: 5 * time.Millisecond, PromoteInterval: 10 * time.Millisecond})
	w.Start(ctx)
	defer w.Stop()

	job, err := q.Enqueue(ctx, testPayload{ProblemID: 1}, nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		j, err := q.GetJob(ctx, job.ID)
		return err == nil && j.State == StateCompleted
	})

	j, _ := q.GetJob(ctx, job.ID)
	if string(j.ReturnValue) != `{"ok":true}` {
		t.Errorf("returnvalue = %s", j.ReturnValue)
	}
	if j.Progress != 100 {
		t.Errorf("progress = %d", j.Progress)
	}
	if j.FinishedOn == nil || j.ProcessedOn == nil {
		t.Error("timestamps not recorded")
	}
}

func TestWorkerRetriesThenFails(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	var attempts atomic.Int32
	handler := func(ctx context.Context, job *Job) (json.RawMessage, error) {
		attempts.Add(1)
		return nil, errors.New(errors.ExecutionFailed).WithMessage("sandbox exploded")
	}
	w := NewWorker(q, handler, WorkerConfig{Concurrency: 1, PollInterval: 5 * time.Millisecond, PromoteInterval: 10 * time.Millisecond})
	w.Start(ctx)
	defer w.Stop()

	job, err := q.Enqueue(ctx, testPayload{}, &EnqueueOptions{Attempts: 2, BackoffBase: time.Millisecond})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		j, err := q.GetJob(ctx, job.ID)
		return err == nil && j.State == StateFailed
	})

	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
	j, _ := q.GetJob(ctx, job.ID)
	if j.FailedReason != "sandbox exploded" {
		t.Errorf("failed reason = %q", j.FailedReason)
	}
}

func TestWorkerNonRetryableFailsImmediately(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	var attempts atomic.Int32
	handler := func(ctx context.Context, job *Job) (json.RawMessage, error) {
		attempts.Add(1)
		return nil, NonRetryable(errors.New(errors.RuntimeNotSupported))
	}
	w := NewWorker(q, handler, WorkerConfig{Concurrency: 1, PollInterval: 5 * time.Millisecond, PromoteInterval: 10 * time.Millisecond})
	w.Start(ctx)
	defer w.Stop()

	job, err := q.Enqueue(ctx, testPayload{}, nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		j, err := q.GetJob(ctx, job.ID)
		return err == nil && j.State == StateFailed
	})

	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestWorkerSurvivesHandlerPanic(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	handler := func(ctx context.Context, job *Job) (json.RawMessage, error) {
		var p testPayload
		_ = json.Unmarshal(job.Payload, &p)
		if p.Code == "boom" {
			panic("bad payload")
		}
		return json.RawMessage(`"ok"`), nil
	}
	w := NewWorker(q, handler, WorkerConfig{Concurrency: 1, PollInterval: 5 * time.Millisecond, PromoteInterval: 10 * time.Millisecond})
	w.Start(ctx)
	defer w.Stop()

	bad, _ := q.Enqueue(ctx, testPayload{Code: "boom"}, &EnqueueOptions{Attempts: 1})
	good, _ := q.Enqueue(ctx, testPayload{Code: "fine"}, nil)

	waitFor(t, 2*time.Second, func() bool {
		b, berr := q.GetJob(ctx, bad.ID)
		g, gerr := q.GetJob(ctx, good.ID)
		return berr == nil && gerr == nil && b.State == StateFailed && g.State == StateCompleted
	})
}

func TestPauseHaltsDequeue(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	var processed atomic.Int32
	handler := func(ctx context.Context, job *Job) (json.RawMessage, error) {
		processed.Add(1)
		return nil, nil
	}
	w := NewWorker(q, handler, WorkerConfig{Concurrency: 1, PollInterval: 5 * time.Millisecond, PromoteInterval: 10 * time.Millisecond})
	w.Start(ctx)
	defer w.Stop()

	if err := q.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	job, _ := q.Enqueue(ctx, testPayload{}, nil)

	time.Sleep(50 * time.Millisecond)
	if processed.Load() != 0 {
		t.Fatal("paused queue processed a job")
	}
	counts, err := q.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if !counts.Paused || counts.Waiting != 1 {
		t.Errorf("counts = %+v", counts)
	}

	if err := q.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		j, err := q.GetJob(ctx, job.ID)
		return err == nil && j.State == StateCompleted
	})
}

func TestRemoveJob(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, _ := q.Enqueue(ctx, testPayload{}, nil)
	if err := q.RemoveJob(ctx, job.ID); err != nil {
		t.Fatalf("RemoveJob: %v", err)
	}
	if _, err := q.GetJob(ctx, job.ID); !errors.Is(err, errors.JobNotFound) {
		t.Errorf("expected JobNotFound after removal, got %v", err)
	}

	delayed, _ := q.Enqueue(ctx, testPayload{}, &EnqueueOptions{Delay: time.Hour})
	if err := q.RemoveJob(ctx, delayed.ID); err != nil {
		t.Fatalf("RemoveJob delayed: %v", err)
	}
}

func TestRemoveJobRejectsActive(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, _ := q.Enqueue(ctx, testPayload{}, nil)
	claimed, err := q.dequeue(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("dequeue: %v %v", claimed, err)
	}

	if err := q.RemoveJob(ctx, job.ID); !errors.Is(err, errors.JobRemoveRejected) {
		t.Fatalf("expected JobRemoveRejected, got %v", err)
	}
	j, err := q.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob after rejected removal: %v", err)
	}
	if j.State != StateActive {
		t.Errorf("state = %s, want active", j.State)
	}
}

func TestReclaimStaleRequeuesAbandonedJob(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, _ := q.Enqueue(ctx, testPayload{ProblemID: 9}, nil)
	if _, err := q.dequeue(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	// Backdate the claim as if the holding worker died mid-run.
	stale := time.Now().Add(-10 * time.Minute).UnixMilli()
	if err := q.rdb.HSet(ctx, q.jobKey(job.ID), "processed_on", stale).Err(); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	n, err := q.reclaimStale(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("reclaimStale: %v", err)
	}
	if n != 1 {
		t.Fatalf("reclaimed = %d, want 1", n)
	}

	j, err := q.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if j.State != StateWaiting {
		t.Errorf("state = %s, want waiting", j.State)
	}
	if j.AttemptsMade != 1 {
		t.Errorf("attempts made = %d, want 1 kept", j.AttemptsMade)
	}
	counts, _ := q.Counts(ctx)
	if counts.Active != 0 || counts.Waiting != 1 {
		t.Errorf("counts = %+v", counts)
	}

	// The requeued job must be claimable again.
	again, err := q.dequeue(ctx)
	if err != nil || again == nil {
		t.Fatalf("dequeue after reclaim: %v %v", again, err)
	}
	if again.ID != job.ID {
		t.Errorf("dequeued %s, want %s", again.ID, job.ID)
	}
}

func TestReclaimStaleLeavesFreshJobs(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	_, _ = q.Enqueue(ctx, testPayload{}, nil)
	if _, err := q.dequeue(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	n, err := q.reclaimStale(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("reclaimStale: %v", err)
	}
	if n != 0 {
		t.Errorf("reclaimed = %d, want 0", n)
	}
	counts, _ := q.Counts(ctx)
	if counts.Active != 1 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestWorkerRequeuesStaleJob(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, _ := q.Enqueue(ctx, testPayload{}, nil)
	if _, err := q.dequeue(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	stale := time.Now().Add(-time.Hour).UnixMilli()
	if err := q.rdb.HSet(ctx, q.jobKey(job.ID), "processed_on", stale).Err(); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	handler := func(ctx context.Context, job *Job) (json.RawMessage, error) {
		return json.RawMessage(`"recovered"`), nil
	}
	w := NewWorker(q, handler, WorkerConfig{
		Concurrency:     1,
		PollInterval:    5 * time.Millisecond,
		PromoteInterval: 10 * time.Millisecond,
		StaleAfter:      time.Minute,
	})
	w.Start(ctx)
	defer w.Stop()

	waitFor(t, 2*time.Second, func() bool {
		j, err := q.GetJob(ctx, job.ID)
		return err == nil && j.State == StateCompleted
	})
}

func TestRetryJobRequiresFailedState(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, _ := q.Enqueue(ctx, testPayload{}, nil)
	if err := q.RetryJob(ctx, job.ID); !errors.Is(err, errors.JobRemoveRejected) {
		t.Fatalf("expected JobRemoveRejected, got %v", err)
	}
}

func TestRetryJobRequeuesFailed(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, _ := q.Enqueue(ctx, testPayload{}, nil)
	if err := q.markFailed(ctx, job.ID, "gone wrong"); err != nil {
		t.Fatalf("markFailed: %v", err)
	}
	if err := q.RetryJob(ctx, job.ID); err != nil {
		t.Fatalf("RetryJob: %v", err)
	}

	j, err := q.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if j.State != StateWaiting {
		t.Errorf("state = %s, want waiting", j.State)
	}
	if j.FailedReason != "" {
		t.Errorf("failed reason not cleared: %q", j.FailedReason)
	}
}

func TestDrain(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	_, _ = q.Enqueue(ctx, testPayload{}, nil)
	_, _ = q.Enqueue(ctx, testPayload{}, &EnqueueOptions{Delay: time.Hour})

	if err := q.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	counts, err := q.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Waiting != 0 || counts.Delayed != 0 {
		t.Errorf("counts after drain = %+v", counts)
	}
}

func TestClean(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, _ := q.Enqueue(ctx, testPayload{}, nil)
	if err := q.markCompleted(ctx, job.ID, json.RawMessage(`null`)); err != nil {
		t.Fatalf("markCompleted: %v", err)
	}

	removed, err := q.Clean(ctx, 0, StateCompleted)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := q.GetJob(ctx, job.ID); !errors.Is(err, errors.JobNotFound) {
		t.Errorf("expected JobNotFound after clean, got %v", err)
	}
}

func TestRetryDelaySchedule(t *testing.T) {
	base := time.Second
	cases := []struct {
		attemptsMade int
		want         time.Duration
	}{
		{1, 0},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
	}
	for _, tc := range cases {
		if got := retryDelay(tc.attemptsMade, base); got != tc.want {
			t.Errorf("retryDelay(%d) = %v, want %v", tc.attemptsMade, got, tc.want)
		}
	}
}

func TestBulkEnqueue(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	jobs, err := q.BulkEnqueue(ctx, []interface{}{testPayload{ProblemID: 1}, testPayload{ProblemID: 2}}, nil)
	if err != nil {
		t.Fatalf("BulkEnqueue: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs", len(jobs))
	}
	counts, _ := q.Counts(ctx)
	if counts.Waiting != 2 {
		t.Errorf("waiting = %d, want 2", counts.Waiting)
	}
}
