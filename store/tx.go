package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wyrecliff/docvault/docerr"
	"github.com/wyrecliff/docvault/retry"
)

// Postgres error codes classified as transient per the specification:
// deadlock_detected and serialization_failure.
const (
	sqlStateDeadlock     = "40P01"
	sqlStateSerialFail   = "40001"
	sqlStateUniqueViolat = "23505"
)

var transientRetry = retry.Policy{MaxAttempts: 4, Base: 20 * time.Millisecond, Max: 500 * time.Millisecond}

// IsUniqueViolation reports whether err is a unique-constraint violation,
// the normal control-flow signal used for idempotent natural-key upserts.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateUniqueViolat
	}
	return false
}

func isTransientPgErr(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateDeadlock || pgErr.Code == sqlStateSerialFail
	}
	return false
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error. Deadlocks and serialization failures are retried up to 3
// times with jittered backoff before being surfaced as docerr.StoreTransient;
// any other error propagates immediately after rollback.
func (p *Pool) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	var finalErr error
	err := retry.Do(ctx, transientRetry, func(attempt int) (bool, error) {
		tx, err := p.pool.Begin(ctx)
		if err != nil {
			return isTransientPgErr(err), err
		}

		if runErr := fn(ctx, tx); runErr != nil {
			_ = tx.Rollback(ctx)
			return isTransientPgErr(runErr), runErr
		}

		if commitErr := tx.Commit(ctx); commitErr != nil {
			return isTransientPgErr(commitErr), commitErr
		}
		return false, nil
	})
	finalErr = err
	if finalErr == nil {
		return nil
	}
	if isTransientPgErr(finalErr) {
		return docerr.Wrap(docerr.StoreTransient, "transaction failed after retries", finalErr)
	}
	return finalErr
}
