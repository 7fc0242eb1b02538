package db

import (
	"context"
	"database/sql"
)

// Database abstracts a SQL database with connection pooling and transactions.
type Database interface {
	Querier

	// Transaction executes fn within a transaction, committing on nil error
	// and rolling back otherwise.
	Transaction(ctx context.Context, fn func(tx Transaction) error) error

	// BeginTx starts a new transaction with the given options.
	BeginTx(ctx context.Context, opts *TxOptions) (Transaction, error)

	// Ping verifies the connection is still alive.
	Ping(ctx context.Context) error

	// Close closes the database and releases pooled connections.
	Close() error
}

// Transaction abstracts an in-progress database transaction.
type Transaction interface {
	Querier

	Commit() error
	Rollback() error
}

// Rows abstracts an iterable query result set.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Row abstracts a single-row query result.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result abstracts the result of an Exec call.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// TxOptions holds transaction options.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// ConvertTxOptions maps our options to database/sql options.
func ConvertTxOptions(opts *TxOptions) *sql.TxOptions {
	if opts == nil {
		return nil
	}
	return &sql.TxOptions{
		Isolation: opts.Isolation,
		ReadOnly:  opts.ReadOnly,
	}
}
