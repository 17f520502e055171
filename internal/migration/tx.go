package migration

import (
	"context"
	"database/sql"
	"fmt"
)

// txFunc runs inside a transaction opened by withTransaction.
type txFunc func(tx *sql.Tx) error

// withTransaction executes fn within a transaction. If fn returns an error or
// panics the transaction is rolled back, otherwise it is committed.
func withTransaction(ctx context.Context, db DB, fn txFunc) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
