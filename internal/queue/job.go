// Package queue implements a durable, at-least-once job queue on Redis.
// Jobs move waiting -> active -> completed/failed, with failed attempts
// parked in a delayed set and promoted back once their backoff expires.
package queue

import (
	"encoding/json"
	"time"
)

// State is a job lifecycle state.
type State string

const (
	StateWaiting   State = "waiting"
	StateDelayed   State = "delayed"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is a unit of work tracked in Redis.
type Job struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Payload      json.RawMessage `json:"payload"`
	State        State           `json:"state"`
	Progress     int             `json:"progress"`
	AttemptsMade int             `json:"attempts_made"`
	MaxAttempts  int             `json:"max_attempts"`
	BackoffBase  time.Duration   `json:"backoff_base"`
	ReturnValue  json.RawMessage `json:"returnvalue,omitempty"`
	FailedReason string          `json:"failed_reason,omitempty"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	ProcessedOn  *time.Time      `json:"processed_on,omitempty"`
	FinishedOn   *time.Time      `json:"finished_on,omitempty"`
}

// EnqueueOptions tunes a single enqueue.
type EnqueueOptions struct {
	// JobID overrides the generated id; useful for idempotent producers.
	JobID string
	// Attempts caps total attempts, handler errors included. Default 3.
	Attempts int
	// BackoffBase is the exponential backoff base. The first retry fires
	// immediately; later retries wait base, 2*base, 4*base... Default 1s.
	BackoffBase time.Duration
	// Delay defers the first attempt.
	Delay time.Duration
}

// Counts is a per-state snapshot of the queue.
type Counts struct {
	Waiting   int64 `json:"waiting"`
	Delayed   int64 `json:"delayed"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Paused    bool  `json:"paused"`
}

// Status is the externally visible job status DTO.
type Status struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Progress     int             `json:"progress"`
	State        State           `json:"state"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	AttemptsMade int             `json:"attempts_made"`
	ProcessedOn  *time.Time      `json:"processed_on,omitempty"`
	FinishedOn   *time.Time      `json:"finished_on,omitempty"`
}

// StatusOf projects a job into its status DTO.
func StatusOf(j *Job) *Status {
	return &Status{
		ID:           j.ID,
		Name:         j.Name,
		Progress:     j.Progress,
		State:        j.State,
		Result:       j.ReturnValue,
		Error:        j.FailedReason,
		AttemptsMade: j.AttemptsMade,
		ProcessedOn:  j.ProcessedOn,
		FinishedOn:   j.FinishedOn,
	}
}

// retryDelay computes the backoff before the next attempt. attemptsMade is
// the number of attempts already finished. The first retry is immediate.
func retryDelay(attemptsMade int, base time.Duration) time.Duration {
	if attemptsMade <= 1 {
		return 0
	}
	return base << (attemptsMade - 2)
}

type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

// NonRetryable marks a handler error as terminal: the job fails immediately
// regardless of remaining attempts.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

// IsNonRetryable reports whether err (or anything it wraps) was marked
// non-retryable.
func IsNonRetryable(err error) bool {
	for err != nil {
		if _, ok := err.(*nonRetryableError); ok {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
