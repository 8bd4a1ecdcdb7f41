package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn in a transaction and commits it. Lock waits and commit
// failures roll back and are reported as ErrConflict so callers may retry.
//
// SQLite connections begin IMMEDIATE (see db.Open). MySQL transactions run
// READ COMMITTED so reads issued after a row lock see the latest commit.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	var opts *sql.TxOptions
	if _, ok := db.Driver().(*mysql.MySQLDriver); ok {
		opts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}

	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		if retryable(err) {
			return fmt.Errorf("%w: beginning transaction: %v", ErrConflict, err)
		}
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		if retryable(err) {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", ErrConflict, err)
	}
	return nil
}

// retryable reports lock timeouts and deadlocks from either driver.
func retryable(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// ER_LOCK_WAIT_TIMEOUT, ER_LOCK_DEADLOCK
		return myErr.Number == 1205 || myErr.Number == 1213
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		// SQLITE_BUSY, SQLITE_LOCKED (primary result codes)
		code := liteErr.Code() & 0xff
		return code == 5 || code == 6
	}
	return false
}

// lockItems takes write locks on the given inventory rows in id order.
// The no-op UPDATE is the first write so it locks on both SQLite and MySQL.
func lockItems(ctx context.Context, tx *sql.Tx, ids []int64) error {
	for _, id := range sortedIDs(ids) {
		if _, err := tx.ExecContext(ctx,
			`UPDATE inventory_items SET available_quantity = available_quantity WHERE id = ?`, id,
		); err != nil {
			return fmt.Errorf("locking item %d: %w", id, err)
		}
	}
	return nil
}

// lockBorrowing takes a write lock on a borrowing request row.
func lockBorrowing(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE borrowing_requests SET status = status WHERE id = ?`, id,
	); err != nil {
		return fmt.Errorf("locking borrowing request %d: %w", id, err)
	}
	return nil
}
