package persistence

import (
	"context"
	"database/sql"
)

// Executor is satisfied by *sql.DB, *sql.Tx and *database.Connection
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// executorFor returns the transaction carried by ctx, or db when there is none
func executorFor(ctx context.Context, db Executor) Executor {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return db
}
