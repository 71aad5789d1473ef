// Package idempotency implements the three-layer substrate of spec §4.2:
// processed-event dedupe for externally sourced events (webhooks,
// task invocations), a client-facing idempotency-key response cache
// for mutating dashboard endpoints, and documents the unique
// constraints that act as the final line of defense. Every externally
// sourced event passes through MarkProcessed as its first durable
// effect before any downstream side effect.
package idempotency

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hotelly/hotelly/internal/apperr"
)

// Store provides the idempotency substrate over the shared pool.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx, letting
// MarkProcessed run standalone or as the first statement inside a
// caller-managed transaction — spec §4.2 requires the dedupe insert be
// the first durable effect of the handling transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgx.CommandTag, error)
}

// MarkProcessed inserts a receipt for an externally sourced event
// (source, external_id) scoped by property. claimed is false when the
// row already existed, meaning the caller must treat the event as an
// idempotent no-op rather than re-running side effects.
func (s *Store) MarkProcessed(ctx context.Context, propertyID, source, externalID string) (claimed bool, err error) {
	return MarkProcessedWith(ctx, s.pool, propertyID, source, externalID)
}

// MarkProcessedWith runs the same dedupe insert against an
// already-open transaction, so callers can make it the first
// statement of their own unit of work.
func MarkProcessedWith(ctx context.Context, q execer, propertyID, source, externalID string) (bool, error) {
	tag, err := q.Exec(ctx, `
		INSERT INTO processed_events (property_id, source, external_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (property_id, source, external_id) DO NOTHING`,
		propertyID, source, externalID)
	if err != nil {
		return false, apperr.Transient(apperr.CodeTransientFailure, "processed_events insert failed", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CachedResponse is a replayed response for a previously seen
// Idempotency-Key on a mutating endpoint.
type CachedResponse struct {
	StatusCode int
	Body       json.RawMessage
}

// Lookup returns the cached response for (key, endpoint), or nil if
// this key hasn't been seen for this endpoint before.
func (s *Store) Lookup(ctx context.Context, key, endpoint string) (*CachedResponse, error) {
	var cr CachedResponse
	err := s.pool.QueryRow(ctx, `
		SELECT status_code, response_body
		FROM idempotency_keys
		WHERE idempotency_key = $1 AND endpoint = $2`,
		key, endpoint,
	).Scan(&cr.StatusCode, &cr.Body)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.Transient(apperr.CodeTransientFailure, "idempotency_keys lookup failed", err)
	}
	return &cr, nil
}

// StoreResponse persists the response for (key, endpoint) so a replay
// can be served verbatim. Call inside the same transaction as the
// handler's domain mutation, at commit time, never before it commits.
func (s *Store) StoreResponse(ctx context.Context, tx pgx.Tx, key, endpoint string, statusCode int, body json.RawMessage) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO idempotency_keys (idempotency_key, endpoint, status_code, response_body, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (idempotency_key, endpoint) DO NOTHING`,
		key, endpoint, statusCode, body)
	if err != nil {
		return apperr.Transient(apperr.CodeTransientFailure, "idempotency_keys store failed", err)
	}
	return nil
}
