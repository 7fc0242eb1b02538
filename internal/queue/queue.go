package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"codearena/pkg/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultAttempts caps total attempts per job.
	DefaultAttempts = 3
	// DefaultBackoffBase is the exponential backoff base for retries.
	DefaultBackoffBase = time.Second
)

// Queue is a named, Redis-backed job queue.
//
// Key layout under jobs:<name>:
//
//	wait       list of job ids, head is next to run
//	active     list of job ids currently held by workers
//	delayed    zset of job ids scored by ready-time (unix ms)
//	completed  zset of job ids scored by finish-time (unix ms)
//	failed     zset of job ids scored by finish-time (unix ms)
//	paused     flag key, presence halts dequeue
//	job:<id>   hash with the job record
type Queue struct {
	rdb  redis.UniversalClient
	name string
}

func New(rdb redis.UniversalClient, name string) *Queue {
	return &Queue{rdb: rdb, name: name}
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

func (q *Queue) key(suffix string) string {
	return fmt.Sprintf("jobs:%s:%s", q.name, suffix)
}

func (q *Queue) jobKey(id string) string {
	return q.key("job:" + id)
}

// Enqueue adds a job. The payload is serialized to JSON.
func (q *Queue) Enqueue(ctx context.Context, payload interface{}, opts *EnqueueOptions) (*Job, error) {
	jobs, err := q.BulkEnqueue(ctx, []interface{}{payload}, opts)
	if err != nil {
		return nil, err
	}
	return jobs[0], nil
}

// BulkEnqueue adds several jobs sharing the same options. A custom JobID is
// only honored for a single payload.
func (q *Queue) BulkEnqueue(ctx context.Context, payloads []interface{}, opts *EnqueueOptions) ([]*Job, error) {
	if len(payloads) == 0 {
		return nil, errors.New(errors.InvalidParams).WithMessage("no payloads to enqueue")
	}
	var o EnqueueOptions
	if opts != nil {
		o = *opts
	}
	if o.Attempts <= 0 {
		o.Attempts = DefaultAttempts
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = DefaultBackoffBase
	}
	if o.JobID != "" && len(payloads) > 1 {
		return nil, errors.New(errors.InvalidParams).WithMessage("custom job id requires a single payload")
	}

	now := time.Now()
	jobs := make([]*Job, 0, len(payloads))
	pipe := q.rdb.TxPipeline()

	for _, payload := range payloads {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, errors.JobEnqueueFailed)
		}
		id := o.JobID
		if id == "" {
			id = uuid.NewString()
		}

		job := &Job{
			ID:          id,
			Name:        q.name,
			Payload:     raw,
			MaxAttempts: o.Attempts,
			BackoffBase: o.BackoffBase,
			EnqueuedAt:  now,
		}

		fields := map[string]interface{}{
			"name":          q.name,
			"payload":       string(raw),
			"progress":      0,
			"attempts_made": 0,
			"max_attempts":  o.Attempts,
			"backoff_ms":    o.BackoffBase.Milliseconds(),
			"enqueued_at":   now.UnixMilli(),
		}
		if o.Delay > 0 {
			job.State = StateDelayed
			fields["state"] = string(StateDelayed)
			pipe.HSet(ctx, q.jobKey(id), fields)
			pipe.ZAdd(ctx, q.key("delayed"), redis.Z{
				Score:  float64(now.Add(o.Delay).UnixMilli()),
				Member: id,
			})
		} else {
			job.State = StateWaiting
			fields["state"] = string(StateWaiting)
			pipe.HSet(ctx, q.jobKey(id), fields)
			pipe.LPush(ctx, q.key("wait"), id)
		}
		jobs = append(jobs, job)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, errors.JobEnqueueFailed)
	}
	return jobs, nil
}

// GetJob loads a job by id. A missing id is an explicit not-found.
func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	fields, err := q.rdb.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.DatabaseError)
	}
	if len(fields) == 0 {
		return nil, errors.Newf(errors.JobNotFound, "job %s not found", id)
	}
	return jobFromHash(id, fields), nil
}

// Counts returns per-state totals plus the paused flag.
func (q *Queue) Counts(ctx context.Context) (*Counts, error) {
	pipe := q.rdb.Pipeline()
	waiting := pipe.LLen(ctx, q.key("wait"))
	active := pipe.LLen(ctx, q.key("active"))
	delayed := pipe.ZCard(ctx, q.key("delayed"))
	completed := pipe.ZCard(ctx, q.key("completed"))
	failed := pipe.ZCard(ctx, q.key("failed"))
	paused := pipe.Exists(ctx, q.key("paused"))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, errors.DatabaseError)
	}
	return &Counts{
		Waiting:   waiting.Val(),
		Active:    active.Val(),
		Delayed:   delayed.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
		Paused:    paused.Val() > 0,
	}, nil
}

// Pause halts dequeue. Jobs already active finish normally.
func (q *Queue) Pause(ctx context.Context) error {
	if err := q.rdb.Set(ctx, q.key("paused"), "1", 0).Err(); err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}
	return nil
}

// Resume re-enables dequeue.
func (q *Queue) Resume(ctx context.Context) error {
	if err := q.rdb.Del(ctx, q.key("paused")).Err(); err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}
	return nil
}

// IsPaused reports whether dequeue is halted.
func (q *Queue) IsPaused(ctx context.Context) (bool, error) {
	n, err := q.rdb.Exists(ctx, q.key("paused")).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.DatabaseError)
	}
	return n > 0, nil
}

// Drain drops every waiting and delayed job, records included. Active jobs
// are untouched.
func (q *Queue) Drain(ctx context.Context) error {
	waiting, err := q.rdb.LRange(ctx, q.key("wait"), 0, -1).Result()
	if err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}
	delayed, err := q.rdb.ZRange(ctx, q.key("delayed"), 0, -1).Result()
	if err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}

	pipe := q.rdb.TxPipeline()
	for _, id := range waiting {
		pipe.Del(ctx, q.jobKey(id))
	}
	for _, id := range delayed {
		pipe.Del(ctx, q.jobKey(id))
	}
	pipe.Del(ctx, q.key("wait"))
	pipe.Del(ctx, q.key("delayed"))
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}
	return nil
}

// Clean removes completed or failed jobs that finished more than age ago.
// Returns the number of jobs removed.
func (q *Queue) Clean(ctx context.Context, age time.Duration, state State) (int, error) {
	if state != StateCompleted && state != StateFailed {
		return 0, errors.New(errors.InvalidParams).WithMessage("clean supports completed and failed states only")
	}
	cutoff := strconv.FormatInt(time.Now().Add(-age).UnixMilli(), 10)
	setKey := q.key(string(state))

	ids, err := q.rdb.ZRangeByScore(ctx, setKey, &redis.ZRangeBy{Min: "-inf", Max: cutoff}).Result()
	if err != nil {
		return 0, errors.Wrap(err, errors.DatabaseError)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := q.rdb.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, q.jobKey(id))
	}
	pipe.ZRemRangeByScore(ctx, setKey, "-inf", cutoff)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Wrap(err, errors.DatabaseError)
	}
	return len(ids), nil
}

// RetryJob moves a failed job back to the waiting list.
func (q *Queue) RetryJob(ctx context.Context, id string) error {
	job, err := q.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.State != StateFailed {
		return errors.Newf(errors.JobRemoveRejected, "job %s is %s, only failed jobs can be retried", id, job.State)
	}

	pipe := q.rdb.TxPipeline()
	pipe.ZRem(ctx, q.key("failed"), id)
	pipe.HSet(ctx, q.jobKey(id), map[string]interface{}{
		"state":         string(StateWaiting),
		"failed_reason": "",
		"attempts_made": 0,
	})
	pipe.HDel(ctx, q.jobKey(id), "finished_on")
	pipe.LPush(ctx, q.key("wait"), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}
	return nil
}

// removeScript checks the state and deletes in one atomic step so a
// concurrent dequeue cannot claim the job between the two.
var removeScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if state == false then
  return 'missing'
end
if state == 'waiting' then
  redis.call('LREM', KEYS[2], 0, ARGV[1])
  redis.call('DEL', KEYS[1])
  return 'removed'
end
if state == 'delayed' then
  redis.call('ZREM', KEYS[3], ARGV[1])
  redis.call('DEL', KEYS[1])
  return 'removed'
end
return state
`)

// RemoveJob deletes a waiting or delayed job. Active and terminal jobs are
// rejected.
func (q *Queue) RemoveJob(ctx context.Context, id string) error {
	keys := []string{q.jobKey(id), q.key("wait"), q.key("delayed")}
	res, err := removeScript.Run(ctx, q.rdb, keys, id).Text()
	if err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}
	switch res {
	case "removed":
		return nil
	case "missing":
		return errors.Newf(errors.JobNotFound, "job %s not found", id)
	default:
		return errors.Newf(errors.JobRemoveRejected, "job %s is %s and cannot be removed", id, res)
	}
}

// SetProgress records handler progress (0-100) on the job record.
func (q *Queue) SetProgress(ctx context.Context, id string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if err := q.rdb.HSet(ctx, q.jobKey(id), "progress", progress).Err(); err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}
	return nil
}

// dequeue atomically claims the next waiting job. Returns nil when the queue
// is empty or paused.
func (q *Queue) dequeue(ctx context.Context) (*Job, error) {
	paused, err := q.IsPaused(ctx)
	if err != nil || paused {
		return nil, err
	}

	id, err := q.rdb.RPopLPush(ctx, q.key("wait"), q.key("active")).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.DatabaseError)
	}

	now := time.Now()
	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, q.jobKey(id), map[string]interface{}{
		"state":        string(StateActive),
		"processed_on": now.UnixMilli(),
	})
	pipe.HIncrBy(ctx, q.jobKey(id), "attempts_made", 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, errors.DatabaseError)
	}
	return q.GetJob(ctx, id)
}

// markCompleted finishes a job successfully.
func (q *Queue) markCompleted(ctx context.Context, id string, returnValue json.RawMessage) error {
	now := time.Now()
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.key("active"), 0, id)
	pipe.HSet(ctx, q.jobKey(id), map[string]interface{}{
		"state":       string(StateCompleted),
		"returnvalue": string(returnValue),
		"progress":    100,
		"finished_on": now.UnixMilli(),
	})
	pipe.ZAdd(ctx, q.key("completed"), redis.Z{Score: float64(now.UnixMilli()), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}
	return nil
}

// markFailed finishes a job terminally.
func (q *Queue) markFailed(ctx context.Context, id, reason string) error {
	now := time.Now()
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.key("active"), 0, id)
	pipe.HSet(ctx, q.jobKey(id), map[string]interface{}{
		"state":         string(StateFailed),
		"failed_reason": reason,
		"finished_on":   now.UnixMilli(),
	})
	pipe.ZAdd(ctx, q.key("failed"), redis.Z{Score: float64(now.UnixMilli()), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}
	return nil
}

// retryLater parks a failed attempt in the delayed set with backoff.
func (q *Queue) retryLater(ctx context.Context, job *Job, reason string) error {
	delay := retryDelay(job.AttemptsMade, job.BackoffBase)
	readyAt := time.Now().Add(delay)

	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.key("active"), 0, job.ID)
	pipe.HSet(ctx, q.jobKey(job.ID), map[string]interface{}{
		"state":         string(StateDelayed),
		"failed_reason": reason,
	})
	pipe.ZAdd(ctx, q.key("delayed"), redis.Z{Score: float64(readyAt.UnixMilli()), Member: job.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}
	return nil
}

// promoteDue moves delayed jobs whose ready-time has passed back to waiting.
// Returns the number promoted.
func (q *Queue) promoteDue(ctx context.Context) (int, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ids, err := q.rdb.ZRangeByScore(ctx, q.key("delayed"), &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return 0, errors.Wrap(err, errors.DatabaseError)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := q.rdb.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, q.key("delayed"), id)
		pipe.HSet(ctx, q.jobKey(id), "state", string(StateWaiting))
		pipe.LPush(ctx, q.key("wait"), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Wrap(err, errors.DatabaseError)
	}
	return len(ids), nil
}

// reclaimStale moves active jobs whose worker stopped reporting back to the
// waiting list. A job is stale once processed_on is older than olderThan.
// attempts_made is kept, so a job that keeps killing its worker still runs
// out of retry budget. Returns the number reclaimed.
func (q *Queue) reclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	ids, err := q.rdb.LRange(ctx, q.key("active"), 0, -1).Result()
	if err != nil {
		return 0, errors.Wrap(err, errors.DatabaseError)
	}
	cutoff := time.Now().Add(-olderThan).UnixMilli()

	reclaimed := 0
	for _, id := range ids {
		fields, err := q.rdb.HMGet(ctx, q.jobKey(id), "state", "processed_on").Result()
		if err != nil {
			return reclaimed, errors.Wrap(err, errors.DatabaseError)
		}
		state, _ := fields[0].(string)
		processedOn, _ := fields[1].(string)
		if State(state) != StateActive || atoi64(processedOn) == 0 || atoi64(processedOn) > cutoff {
			continue
		}

		pipe := q.rdb.TxPipeline()
		pipe.LRem(ctx, q.key("active"), 0, id)
		pipe.HSet(ctx, q.jobKey(id), "state", string(StateWaiting))
		pipe.HDel(ctx, q.jobKey(id), "processed_on")
		pipe.LPush(ctx, q.key("wait"), id)
		if _, err := pipe.Exec(ctx); err != nil {
			return reclaimed, errors.Wrap(err, errors.DatabaseError)
		}
		reclaimed++
	}
	return reclaimed, nil
}

func jobFromHash(id string, fields map[string]string) *Job {
	job := &Job{
		ID:           id,
		Name:         fields["name"],
		Payload:      json.RawMessage(fields["payload"]),
		State:        State(fields["state"]),
		FailedReason: fields["failed_reason"],
	}
	if v := fields["returnvalue"]; v != "" {
		job.ReturnValue = json.RawMessage(v)
	}
	job.Progress = atoi(fields["progress"])
	job.AttemptsMade = atoi(fields["attempts_made"])
	job.MaxAttempts = atoi(fields["max_attempts"])
	job.BackoffBase = time.Duration(atoi64(fields["backoff_ms"])) * time.Millisecond
	if ms := atoi64(fields["enqueued_at"]); ms > 0 {
		job.EnqueuedAt = time.UnixMilli(ms)
	}
	if ms := atoi64(fields["processed_on"]); ms > 0 {
		t := time.UnixMilli(ms)
		job.ProcessedOn = &t
	}
	if ms := atoi64(fields["finished_on"]); ms > 0 {
		t := time.UnixMilli(ms)
		job.FinishedOn = &t
	}
	return job
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
