package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rkbansal/postify/repositories"
	"go.uber.org/zap"
)

type transactionContextKey struct{}

// TransactionManager implements repositories.TransactionManager on a *DB
type TransactionManager struct {
	db     *DB
	logger *zap.Logger
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(db *DB, logger *zap.Logger) repositories.TransactionManager {
	return &TransactionManager{
		db:     db,
		logger: logger,
	}
}

// Begin starts a new transaction. The returned transaction's Context carries
// it, so repositories called with that context join the transaction.
func (tm *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	sqlTx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	tm.logger.Debug("transaction started")

	t := &Transaction{tx: sqlTx, logger: tm.logger}
	t.ctx = context.WithValue(ctx, transactionContextKey{}, t)
	return t, nil
}

// InTransaction executes fn within a transaction, committing on success and
// rolling back on error.
func (tm *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, err := tm.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(tx.Context(), tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			tm.logger.Error("failed to rollback transaction",
				zap.Error(rbErr),
				zap.NamedError("original_error", err),
			)
		}
		return err
	}

	return tx.Commit()
}

// Transaction wraps a *sql.Tx
type Transaction struct {
	tx     *sql.Tx
	ctx    context.Context
	logger *zap.Logger
}

// Commit commits the transaction
func (t *Transaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	t.logger.Debug("transaction committed")
	return nil
}

// Rollback rolls back the transaction. Rolling back a finished transaction is a no-op.
func (t *Transaction) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return nil
		}
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	t.logger.Debug("transaction rolled back")
	return nil
}

// Context returns a context bound to this transaction
func (t *Transaction) Context() context.Context {
	return t.ctx
}

// Executor is satisfied by both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// GetExecutor returns the transaction carried by ctx, or the pool when there is none
func GetExecutor(ctx context.Context, db *DB) Executor {
	if t, ok := ctx.Value(transactionContextKey{}).(*Transaction); ok {
		return t.tx
	}
	return db.DB
}

// boundExecutor resolves the executor for a repository that may have been bound with WithTx
func boundExecutor(ctx context.Context, db *DB, tx repositories.Transaction) Executor {
	if t, ok := tx.(*Transaction); ok && t != nil {
		return t.tx
	}
	return GetExecutor(ctx, db)
}
