package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"

	"codearena/internal/common/db"
	"codearena/internal/problem/model"
	"codearena/pkg/errors"
)

type fakeResult struct{ affected int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

type fakeRow struct {
	difficulty model.Difficulty
	err        error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	if d, ok := dest[0].(*model.Difficulty); ok {
		*d = r.difficulty
	}
	return nil
}

type fakeTx struct {
	queries        []string
	args           [][]interface{}
	insertAffected int64
	difficulty     model.Difficulty
	difficultyErr  error
	rolledBack     bool
	committed      bool
}

func (t *fakeTx) Exec(_ context.Context, query string, args ...interface{}) (db.Result, error) {
	t.queries = append(t.queries, query)
	t.args = append(t.args, args)
	if strings.Contains(query, "INSERT INTO submissions") {
		return fakeResult{affected: t.insertAffected}, nil
	}
	return fakeResult{affected: 1}, nil
}

func (t *fakeTx) Query(context.Context, string, ...interface{}) (db.Rows, error) {
	return nil, nil
}

func (t *fakeTx) QueryRow(_ context.Context, query string, args ...interface{}) db.Row {
	t.queries = append(t.queries, query)
	t.args = append(t.args, args)
	return fakeRow{difficulty: t.difficulty, err: t.difficultyErr}
}

func (t *fakeTx) Commit() error   { t.committed = true; return nil }
func (t *fakeTx) Rollback() error { t.rolledBack = true; return nil }

type fakeDB struct {
	tx *fakeTx
}

func (d *fakeDB) Transaction(_ context.Context, fn func(tx db.Transaction) error) error {
	if err := fn(d.tx); err != nil {
		d.tx.rolledBack = true
		return err
	}
	d.tx.committed = true
	return nil
}

func (d *fakeDB) BeginTx(context.Context, *db.TxOptions) (db.Transaction, error) {
	return d.tx, nil
}
func (d *fakeDB) Exec(context.Context, string, ...interface{}) (db.Result, error) {
	return fakeResult{}, nil
}
func (d *fakeDB) Query(context.Context, string, ...interface{}) (db.Rows, error) {
	return nil, nil
}
func (d *fakeDB) QueryRow(context.Context, string, ...interface{}) db.Row { return fakeRow{} }
func (d *fakeDB) Ping(context.Context) error                              { return nil }
func (d *fakeDB) Close() error                                            { return nil }

func newSubmission() Submission {
	return Submission{
		JobID:     "job-1",
		UserID:    42,
		ProblemID: 7,
		Code:      "function twoSum() {}",
		Result:    json.RawMessage(`{"success":true}`),
		Success:   true,
		Runtime:   "node",
	}
}

func queryIndex(queries []string, fragment string) int {
	for i, q := range queries {
		if strings.Contains(q, fragment) {
			return i
		}
	}
	return -1
}

func TestIngestWritesSubmissionCountersAndStats(t *testing.T) {
	tx := &fakeTx{insertAffected: 1, difficulty: model.DifficultyMedium}
	svc := NewService(&fakeDB{tx: tx})

	if err := svc.Ingest(context.Background(), newSubmission()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !tx.committed {
		t.Fatal("transaction not committed")
	}

	insertIdx := queryIndex(tx.queries, "INSERT INTO submissions")
	if insertIdx < 0 {
		t.Fatal("submission insert missing")
	}
	if got := tx.args[insertIdx][7]; got != OriginJobExecution {
		t.Fatalf("origin = %v, want %q", got, OriginJobExecution)
	}

	counterIdx := queryIndex(tx.queries, "UPDATE problems")
	if counterIdx < 0 {
		t.Fatal("problem counter update missing")
	}
	if got := tx.args[counterIdx][0]; got != 1 {
		t.Fatalf("accepted increment = %v, want 1", got)
	}

	statsIdx := queryIndex(tx.queries, "INSERT INTO user_stats")
	if statsIdx < 0 {
		t.Fatal("user stats upsert missing")
	}
	args := tx.args[statsIdx]
	if args[0] != int64(42) || args[1] != 0 || args[2] != 1 || args[3] != 0 {
		t.Fatalf("stats args = %v, want user 42 medium bucket", args)
	}
}

func TestIngestFailedRunStillCountsSubmission(t *testing.T) {
	tx := &fakeTx{insertAffected: 1, difficulty: model.DifficultyEasy}
	svc := NewService(&fakeDB{tx: tx})

	sub := newSubmission()
	sub.Success = false
	if err := svc.Ingest(context.Background(), sub); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	counterIdx := queryIndex(tx.queries, "UPDATE problems")
	if got := tx.args[counterIdx][0]; got != 0 {
		t.Fatalf("accepted increment = %v, want 0", got)
	}
	// The solve buckets track attempts per difficulty, not acceptance.
	statsIdx := queryIndex(tx.queries, "INSERT INTO user_stats")
	if got := tx.args[statsIdx][1]; got != 1 {
		t.Fatalf("easy bucket = %v, want 1", got)
	}
}

func TestIngestDuplicateJobIsNoOp(t *testing.T) {
	tx := &fakeTx{insertAffected: 0}
	svc := NewService(&fakeDB{tx: tx})

	if err := svc.Ingest(context.Background(), newSubmission()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if idx := queryIndex(tx.queries, "UPDATE problems"); idx >= 0 {
		t.Fatal("counters must not move on duplicate job id")
	}
	if idx := queryIndex(tx.queries, "user_stats"); idx >= 0 {
		t.Fatal("stats must not move on duplicate job id")
	}
}

func TestIngestMissingProblemAborts(t *testing.T) {
	tx := &fakeTx{insertAffected: 1, difficultyErr: sql.ErrNoRows}
	svc := NewService(&fakeDB{tx: tx})

	err := svc.Ingest(context.Background(), newSubmission())
	if !errors.Is(err, errors.ProblemNotFound) {
		t.Fatalf("err = %v, want ProblemNotFound", err)
	}
	if !tx.rolledBack {
		t.Fatal("transaction not rolled back")
	}
}

func TestIngestValidatesInput(t *testing.T) {
	svc := NewService(&fakeDB{tx: &fakeTx{}})

	sub := newSubmission()
	sub.JobID = ""
	if err := svc.Ingest(context.Background(), sub); err == nil {
		t.Fatal("expected error for empty job id")
	}

	sub = newSubmission()
	sub.ProblemID = 0
	if err := svc.Ingest(context.Background(), sub); err == nil {
		t.Fatal("expected error for missing problem id")
	}
}
