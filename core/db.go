package core

import (
	"context"
	"database/sql"
)

type (
	DBExecutor interface {
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	// Transactor runs fn inside a single store transaction.
	// Repositories receive the transaction through their variadic exec argument.
	Transactor interface {
		Atomic(ctx context.Context, fn func(exec DBExecutor) error) error
	}
)
