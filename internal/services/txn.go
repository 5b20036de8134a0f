package services

import (
	"context"

	"fieldquote/backend/internal/db"
)

// runTxn executes fn through the transaction runner with bounded retries.
// Transient transaction conflicts and duplicate key races are retried from
// the top, so fn must be safe to re-run: it may observe state written by the
// transaction it lost to (e.g. a project materialized by a concurrent
// acceptance) and must take the matching path. Exhausted transient conflicts
// surface as ErrConflict.
func runTxn(ctx context.Context, runner db.TxnRunner, maxRetries int, fn func(ctx context.Context) error) error {
	err := db.WithRetries(func() error {
		return runner(ctx, fn)
	}, maxRetries, func(err error) bool {
		return db.IsTransientTxnError(err) || db.IsMongoDuplicateKeyError(err)
	})
	if db.IsTransientTxnError(err) {
		return ErrConflict
	}
	return err
}
