package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"codearena/internal/common/db"
	"codearena/internal/common/storage"
	"codearena/internal/problem/model"
	"codearena/internal/problem/repository"
	"codearena/internal/template"
	"codearena/pkg/errors"
)

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

type scanFunc func(dest ...interface{}) error

func (f scanFunc) Scan(dest ...interface{}) error { return f(dest...) }

// fakeDB routes queries by substring and hands out sequential ids.
type fakeDB struct {
	nextID     int64
	queries    []string
	failOn     string
	rolledBack bool
}

func (d *fakeDB) route(query string) db.Row {
	d.queries = append(d.queries, query)
	if d.failOn != "" && strings.Contains(query, d.failOn) {
		return scanFunc(func(...interface{}) error {
			return fmt.Errorf("forced failure on %s", d.failOn)
		})
	}
	d.nextID++
	id := d.nextID
	return scanFunc(func(dest ...interface{}) error {
		if p, ok := dest[0].(*int64); ok {
			*p = id
		}
		for _, target := range dest[1:] {
			if ts, ok := target.(*time.Time); ok {
				*ts = time.Now()
			}
		}
		return nil
	})
}

func (d *fakeDB) QueryRow(_ context.Context, query string, _ ...interface{}) db.Row {
	return d.route(query)
}

func (d *fakeDB) Query(context.Context, string, ...interface{}) (db.Rows, error) {
	return nil, nil
}

func (d *fakeDB) Exec(_ context.Context, query string, _ ...interface{}) (db.Result, error) {
	d.queries = append(d.queries, query)
	return fakeResult{}, nil
}

func (d *fakeDB) Transaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	if err := fn(fakeTx{d}); err != nil {
		d.rolledBack = true
		return err
	}
	return nil
}

func (d *fakeDB) BeginTx(context.Context, *db.TxOptions) (db.Transaction, error) {
	return fakeTx{d}, nil
}
func (d *fakeDB) Ping(context.Context) error { return nil }
func (d *fakeDB) Close() error               { return nil }

type fakeTx struct{ d *fakeDB }

func (t fakeTx) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	return t.d.QueryRow(ctx, query, args...)
}
func (t fakeTx) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	return t.d.Query(ctx, query, args...)
}
func (t fakeTx) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	return t.d.Exec(ctx, query, args...)
}
func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

type fakeObjects struct {
	put     map[string]string
	removed []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{put: make(map[string]string)}
}

func (f *fakeObjects) PutObject(_ context.Context, _, key string, reader storage.ObjectReader, _ int64, _ string) error {
	body, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.put[key] = string(body)
	return nil
}

func (f *fakeObjects) GetObject(context.Context, string, string) (storage.ObjectReader, error) {
	return nil, nil
}

func (f *fakeObjects) PresignGet(_ context.Context, _, key string, _ time.Duration) (string, error) {
	return "http://storage.local/" + key, nil
}

func (f *fakeObjects) StatObject(context.Context, string, string) (storage.ObjectStat, error) {
	return storage.ObjectStat{}, nil
}

func (f *fakeObjects) RemoveObjects(_ context.Context, _ string, keys []string) error {
	f.removed = append(f.removed, keys...)
	return nil
}

func newService(database db.Database, objects storage.ObjectStorage) *ProblemService {
	repo := repository.NewProblemRepository(database)
	gen := template.NewGenerator(repo, template.NewTestCaseFetcher(0), template.NewEngine())
	return NewProblemService(repo, database, objects, "artifacts", gen)
}

func createRequest() *model.CreateProblemRequest {
	return &model.CreateProblemRequest{
		Title:        "Two Sum",
		Description:  "Find two numbers adding to target.",
		Difficulty:   model.DifficultyEasy,
		FunctionName: "twoSum",
		Parameters: []model.Param{
			{Name: "nums", Type: "std::vector<int>"},
			{Name: "target", Type: "int"},
		},
		ReturnType: "std::vector<int>",
		PublicTestCases: []model.TestCase{
			{Input: json.RawMessage(`{"nums":[2,7],"target":9}`), Expected: json.RawMessage(`[0,1]`), CaseNo: 1},
		},
		PrivateTestCases: []model.TestCase{
			{Input: json.RawMessage(`{"nums":[3,3],"target":6}`), Expected: json.RawMessage(`[0,1]`), CaseNo: 1},
		},
	}
}

func countQueries(queries []string, fragment string) int {
	n := 0
	for _, q := range queries {
		if strings.Contains(q, fragment) {
			n++
		}
	}
	return n
}

func TestCreateProblemFansOut(t *testing.T) {
	database := &fakeDB{}
	objects := newFakeObjects()
	svc := newService(database, objects)

	problem, err := svc.CreateProblem(context.Background(), createRequest())
	if err != nil {
		t.Fatalf("CreateProblem: %v", err)
	}

	if problem.Slug != "two-sum" {
		t.Fatalf("slug = %q", problem.Slug)
	}
	if problem.ID == 0 {
		t.Fatal("problem id not assigned")
	}
	if problem.PublicTestCasesURL != "problems/two-sum/public_test_cases.json" {
		t.Fatalf("public key = %q", problem.PublicTestCasesURL)
	}
	if problem.PrivateTestCasesURL != "problems/two-sum/private_test_cases.json" {
		t.Fatalf("private key = %q", problem.PrivateTestCasesURL)
	}

	if body := objects.put[problem.PublicTestCasesURL]; !strings.Contains(body, `"target":9`) {
		t.Fatalf("public artifact = %q", body)
	}
	if body := objects.put[problem.PrivateTestCasesURL]; !strings.Contains(body, `"target":6`) {
		t.Fatalf("private artifact = %q", body)
	}

	// One signature projection and one boilerplate per supported language.
	if n := countQueries(database.queries, "INSERT INTO language_parameters"); n != 5 {
		t.Fatalf("language parameter inserts = %d, want 5", n)
	}
	if n := countQueries(database.queries, "INSERT INTO boilerplate_snippets"); n != 5 {
		t.Fatalf("boilerplate inserts = %d, want 5", n)
	}
}

func TestCreateProblemValidation(t *testing.T) {
	svc := newService(&fakeDB{}, newFakeObjects())

	tests := []struct {
		name   string
		mutate func(*model.CreateProblemRequest)
	}{
		{"empty title", func(r *model.CreateProblemRequest) { r.Title = "" }},
		{"bad difficulty", func(r *model.CreateProblemRequest) { r.Difficulty = "extreme" }},
		{"unknown parameter type", func(r *model.CreateProblemRequest) { r.Parameters[0].Type = "std::deque<int>" }},
		{"unknown return type", func(r *model.CreateProblemRequest) { r.ReturnType = "std::deque<int>" }},
		{"no parameters", func(r *model.CreateProblemRequest) { r.Parameters = nil }},
		{"no public cases", func(r *model.CreateProblemRequest) { r.PublicTestCases = nil }},
		{"no private cases", func(r *model.CreateProblemRequest) { r.PrivateTestCases = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := createRequest()
			tt.mutate(req)
			if _, err := svc.CreateProblem(context.Background(), req); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCreateProblemCleansUpArtifactsOnFailure(t *testing.T) {
	database := &fakeDB{failOn: "language_parameters"}
	objects := newFakeObjects()
	svc := newService(database, objects)

	_, err := svc.CreateProblem(context.Background(), createRequest())
	if err == nil {
		t.Fatal("expected transaction failure")
	}
	if !database.rolledBack {
		t.Fatal("transaction not rolled back")
	}
	if len(objects.removed) != 2 {
		t.Fatalf("removed = %v, want both artifact keys", objects.removed)
	}
}

func TestUpdateProblemValidatesDifficulty(t *testing.T) {
	svc := newService(&fakeDB{}, newFakeObjects())

	bad := model.Difficulty("extreme")
	_, err := svc.UpdateProblem(context.Background(), 1, &model.UpdateProblemRequest{Difficulty: &bad})
	if !errors.Is(err, errors.ValidationFailed) {
		t.Fatalf("err = %v, want ValidationFailed", err)
	}
}
