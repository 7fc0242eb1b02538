package dashboard

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"codearena/internal/common/db"
	"codearena/pkg/errors"

	"github.com/gin-gonic/gin"
)

type fakeRow struct {
	easy, medium, hard int
	err                error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int) = r.easy
	*dest[1].(*int) = r.medium
	*dest[2].(*int) = r.hard
	return nil
}

type fakeDB struct {
	row     fakeRow
	queries []string
	args    [][]interface{}
}

func (d *fakeDB) QueryRow(_ context.Context, query string, args ...interface{}) db.Row {
	d.queries = append(d.queries, query)
	d.args = append(d.args, args)
	return d.row
}

func (d *fakeDB) Query(context.Context, string, ...interface{}) (db.Rows, error) {
	return nil, nil
}
func (d *fakeDB) Exec(context.Context, string, ...interface{}) (db.Result, error) {
	return nil, nil
}
func (d *fakeDB) Transaction(context.Context, func(tx db.Transaction) error) error { return nil }
func (d *fakeDB) BeginTx(context.Context, *db.TxOptions) (db.Transaction, error)  { return nil, nil }
func (d *fakeDB) Ping(context.Context) error                                      { return nil }
func (d *fakeDB) Close() error                                                    { return nil }

func TestGetUserStats(t *testing.T) {
	database := &fakeDB{row: fakeRow{easy: 3, medium: 2, hard: 1}}
	svc := NewService(database)

	stats, err := svc.GetUserStats(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetUserStats: %v", err)
	}
	if stats.UserID != 42 || stats.EasySolved != 3 || stats.MediumSolved != 2 || stats.HardSolved != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(database.args) != 1 || database.args[0][0] != int64(42) {
		t.Errorf("query args = %v", database.args)
	}
}

func TestGetUserStatsUnknownUserIsZeroed(t *testing.T) {
	database := &fakeDB{row: fakeRow{err: sql.ErrNoRows}}
	svc := NewService(database)

	stats, err := svc.GetUserStats(context.Background(), 99)
	if err != nil {
		t.Fatalf("GetUserStats: %v", err)
	}
	if stats.UserID != 99 || stats.EasySolved != 0 || stats.MediumSolved != 0 || stats.HardSolved != 0 {
		t.Errorf("stats = %+v, want zeroed buckets", stats)
	}
}

func TestGetUserStatsRejectsBadID(t *testing.T) {
	svc := NewService(&fakeDB{})
	if _, err := svc.GetUserStats(context.Background(), 0); !errors.Is(err, errors.ValidationFailed) {
		t.Fatalf("err = %v, want ValidationFailed", err)
	}
}

func newTestRouter(database db.Database) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewController(NewService(database)).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestUserStatsEndpoint(t *testing.T) {
	router := newTestRouter(&fakeDB{row: fakeRow{easy: 5}})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/42/stats", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data UserStats `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.UserID != 42 || envelope.Data.EasySolved != 5 {
		t.Errorf("data = %+v", envelope.Data)
	}
}

func TestUserStatsEndpointBadID(t *testing.T) {
	router := newTestRouter(&fakeDB{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/abc/stats", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
