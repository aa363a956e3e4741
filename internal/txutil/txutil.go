// Package txutil provides the single-transaction helper every
// participant handler uses to satisfy the outbox's critical invariant:
// the state-change write and the outbox append must commit or fail
// together (spec.md §4.2, §9).
package txutil

import (
	"context"
	"database/sql"
	"fmt"
)

// Atomic runs fn inside a new transaction on db, committing if fn
// returns nil and rolling back otherwise. Mirrors the claim-transaction
// pattern the other_examples outbox worker uses (begin, defer
// rollback, commit on success).
func Atomic(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
