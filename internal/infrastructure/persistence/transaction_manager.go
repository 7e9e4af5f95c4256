package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/bhuvesh-solnce/backend/internal/domain/ports"
	appErrors "github.com/bhuvesh-solnce/backend/pkg/errors"
)

// MySQL server error numbers the persistence layer reacts to
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
	mysqlErrDuplicateEntry  = 1062
)

// txContextKey is the key for storing transaction in context
type txContextKey struct{}

// TxBeginner starts transactions; *sql.DB and *database.Connection satisfy it
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// TransactionManager handles database transactions with retry logic for deadlocks
type TransactionManager struct {
	db TxBeginner
}

// NewTransactionManager creates a new TransactionManager
func NewTransactionManager(db TxBeginner) *TransactionManager {
	return &TransactionManager{db: db}
}

// WithTransaction executes fn within a database transaction.
// The transaction is rolled back if fn returns an error or panics and
// committed if fn returns nil.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return appErrors.NewInternalError("failed to begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w (rollback error: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return appErrors.NewInternalError("failed to commit transaction", err)
	}

	return nil
}

// RunInTx executes fn with a context carrying a new transaction. Repository
// calls made with that context join the transaction. If ctx already carries
// a transaction, fn joins it instead of opening a nested one.
func (tm *TransactionManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ExtractTx(ctx) != nil {
		return fn(ctx)
	}
	return tm.WithTransaction(ctx, func(tx *sql.Tx) error {
		return fn(InjectTx(ctx, tx))
	})
}

// WithRetry runs RunInTx, retrying up to maxRetries times with exponential
// backoff when the transaction fails on a deadlock or lock wait timeout.
// Other errors are returned immediately. Inside an existing transaction fn
// runs once, since the outer transaction is already lost on a deadlock.
func (tm *TransactionManager) WithRetry(ctx context.Context, fn func(ctx context.Context) error, maxRetries int) error {
	if ExtractTx(ctx) != nil {
		return fn(ctx)
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := tm.RunInTx(ctx, fn)
		if err == nil {
			return nil
		}

		lastErr = err
		if !isDeadlock(err) {
			return err
		}

		if attempt < maxRetries-1 {
			backoff := time.Millisecond * time.Duration(100*(1<<uint(attempt)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("transaction failed after %d retries: %w", maxRetries, lastErr)
}

// Retrying returns a Transactor whose transactions go through WithRetry
func (tm *TransactionManager) Retrying(maxRetries int) ports.Transactor {
	return retryingTransactor{tm: tm, maxRetries: maxRetries}
}

type retryingTransactor struct {
	tm         *TransactionManager
	maxRetries int
}

func (r retryingTransactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.tm.WithRetry(ctx, fn, r.maxRetries)
}

// InjectTx injects a transaction into the context
func InjectTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// ExtractTx extracts a transaction from the context
func ExtractTx(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// isDeadlock reports whether err is a MySQL/TiDB deadlock (1213) or lock
// wait timeout (1205). Errors that lost their driver type are matched by text.
func isDeadlock(err error) bool {
	if err == nil {
		return false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrDeadlock || myErr.Number == mysqlErrLockWaitTimeout
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "deadlock") ||
		strings.Contains(errMsg, "lock wait timeout")
}

// isDuplicateEntry reports whether err is a unique key violation
func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry
}
