// Package store owns the single pgxpool.Pool shared by every Hotelly
// domain package and the transaction-scope helpers built on top of it.
// Both ingress and worker construct one Store per process (spec §5:
// "connection pools are per-process"); the SQL schema itself, not this
// package, is the source of truth for the inventory and overlap
// invariants — this package only gets callers in and out of
// transactions correctly.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/config"
)

// Store wraps the shared connection pool.
type Store struct {
	Pool *pgxpool.Pool
}

// Open creates and verifies the pool described by cfg.DatabaseURL.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{Pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.Pool.Close() }

// postgres SQLSTATE codes this package recognizes.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
	sqlStateExclusionViolation   = "23P01"
	sqlStateCheckViolation       = "23514"
)

// WithTx runs fn inside a single transaction, committing on success and
// rolling back on any error (including a panic, which is re-raised
// after rollback). Database errors are reclassified into apperr
// classes per spec §7 so callers never need to inspect pgconn.PgError
// themselves: serialization/deadlock -> transient, exclusion violation
// -> invariant violation (SEV0), unique violation -> conflict, check
// violation (e.g. the inv_total >= inv_booked + inv_held guard) ->
// invariant violation.
func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return apperr.Transient(apperr.CodeTransientFailure, "begin transaction failed", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return classify(err)
	}
	return nil
}

// classify reclassifies a raw pgx/pgconn error into an apperr class.
// Errors already tagged by apperr (raised by a domain package inside
// the transaction function) pass through unchanged.
func classify(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return apperr.Transient(apperr.CodeTransientFailure, "database serialization conflict", err)
		case sqlStateExclusionViolation:
			return apperr.Invariant(apperr.CodeExclusionViolation, "room overlap exclusion constraint violated", map[string]any{
				"constraint": pgErr.ConstraintName,
			})
		case sqlStateCheckViolation:
			return apperr.Invariant(apperr.CodeNegativeInventory, "inventory check constraint violated", map[string]any{
				"constraint": pgErr.ConstraintName,
			})
		case sqlStateUniqueViolation:
			return apperr.Conflict(apperr.CodeIdempotentReplay, "unique constraint hit on replay").WithMeta(map[string]any{
				"constraint": pgErr.ConstraintName,
			})
		}
	}

	return apperr.Transient(apperr.CodeTransientFailure, "database operation failed", err)
}

// ForUpdate appends a row-lock clause for the caller's SELECT, the
// mechanism spec §4.4/§4.6 use to serialize concurrent hold creation
// and reservation overlap checks ahead of the DB exclusion constraint
// acting as the absolute guard.
const ForUpdate = "FOR UPDATE"

// IsNoRows reports whether err is pgx.ErrNoRows, the sentinel pgx uses
// for a query that matched zero rows.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
