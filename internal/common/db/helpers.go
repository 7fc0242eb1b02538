package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// Querier abstracts database operations for both database and transaction.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}

// GetQuerier returns transaction if provided, otherwise uses the database.
func GetQuerier(database Database, tx Transaction) Querier {
	if tx != nil {
		return tx
	}
	return database
}

// IsNoRows checks if the error is sql.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// UniqueViolation inspects a Postgres unique violation error and returns
// the constraint name.
func UniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint, true
	}
	return "", false
}
