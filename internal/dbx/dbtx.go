// Package dbx runs document-store statements inside PostgreSQL transactions.
// A document write holds a transaction-scoped advisory lock keyed by the
// document name, so servers sharing a database queue up per document the
// way processes sharing a data directory queue up on the file lock.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
)

// QueryLockDocument takes the advisory lock of one document name. It is
// released when the surrounding transaction ends.
const QueryLockDocument = `SELECT pg_advisory_xact_lock(hashtext($1))`

// Execer is the handle a locked callback runs statements on.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ Execer = (*sql.Tx)(nil)

// LockDocument runs fn in a transaction holding the advisory lock of name.
// The transaction commits when fn returns nil and rolls back when it returns
// an error or panics.
func LockDocument(ctx context.Context, db *sql.DB, name string, fn func(ctx context.Context, tx Execer) error) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, QueryLockDocument, name); err != nil {
			return fmt.Errorf("lock %s: %w", name, err)
		}
		return fn(ctx, tx)
	})
}

func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	done := false
	defer func() {
		if !done {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	done = true
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
