package idempotency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/google/uuid"

	"github.com/hotelly/hotelly/internal/apperr"
)

// OutboxEvent is an append-only domain event emitted inside the
// originating transaction (spec §3). Payload must contain no PII:
// only aggregate ids, provider object ids, amounts in cents, currency,
// dates, room_type_id, adult_count (spec §6).
type OutboxEvent struct {
	ID         string
	PropertyID string
	Kind       string // e.g. "hold.created", "payment.succeeded", "reservation.confirmed"
	Payload    json.RawMessage
	CreatedAt  time.Time
}

// Emit appends an outbox event inside tx, in the same transaction as
// the domain mutation that produced it.
func Emit(ctx context.Context, tx pgx.Tx, propertyID, kind string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperr.Permanent(apperr.CodeSchemaMismatch, "outbox payload does not marshal: "+err.Error())
	}
	id := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (id, property_id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		id, propertyID, kind, body)
	if err != nil {
		return "", apperr.Transient(apperr.CodeTransientFailure, "outbox_events insert failed", err)
	}
	return id, nil
}

// DeliveryStatus is the lifecycle of an outbound WhatsApp delivery
// attempt (spec §4.9).
type DeliveryStatus string

const (
	DeliverySending         DeliveryStatus = "sending"
	DeliverySent            DeliveryStatus = "sent"
	DeliveryFailedPermanent DeliveryStatus = "failed_permanent"
)

// leaseFreshness is how long a "sending" row is considered actively
// held by another attempt before a retry is allowed to take over.
const leaseFreshness = 60 * time.Second

// LeaseOutcome tells the caller what to do with an outbound delivery
// attempt.
type LeaseOutcome int

const (
	LeaseAcquired     LeaseOutcome = iota // proceed with the send
	LeaseAlreadySent                      // 200 already_sent
	LeaseHeldByOther                      // 500 lease_held, let the queue retry
)

// AcquireDeliveryLease implements the delivery guard of spec §4.9:
// unique on (property_id, outbox_event_id), status and attempt_count
// tracked per row, lease freshness derived from updated_at.
func AcquireDeliveryLease(ctx context.Context, pool *pgxpool.Pool, propertyID, outboxEventID string) (LeaseOutcome, error) {
	var status string
	var updatedAt time.Time
	err := pool.QueryRow(ctx, `
		SELECT status, updated_at FROM outbox_deliveries
		WHERE property_id = $1 AND outbox_event_id = $2`,
		propertyID, outboxEventID,
	).Scan(&status, &updatedAt)

	switch {
	case err == pgx.ErrNoRows:
		_, err := pool.Exec(ctx, `
			INSERT INTO outbox_deliveries (property_id, outbox_event_id, status, attempt_count, updated_at)
			VALUES ($1, $2, $3, 1, now())`,
			propertyID, outboxEventID, DeliverySending)
		if err != nil {
			return LeaseHeldByOther, apperr.Transient(apperr.CodeTransientFailure, "outbox_deliveries insert failed", err)
		}
		return LeaseAcquired, nil
	case err != nil:
		return LeaseHeldByOther, apperr.Transient(apperr.CodeTransientFailure, "outbox_deliveries lookup failed", err)
	}

	switch DeliveryStatus(status) {
	case DeliverySent:
		return LeaseAlreadySent, nil
	case DeliverySending:
		if time.Since(updatedAt) < leaseFreshness {
			return LeaseHeldByOther, nil
		}
		// stale lease: take it over
		_, err := pool.Exec(ctx, `
			UPDATE outbox_deliveries
			SET status = $3, attempt_count = attempt_count + 1, updated_at = now()
			WHERE property_id = $1 AND outbox_event_id = $2`,
			propertyID, outboxEventID, DeliverySending)
		if err != nil {
			return LeaseHeldByOther, apperr.Transient(apperr.CodeTransientFailure, "outbox_deliveries lease takeover failed", err)
		}
		return LeaseAcquired, nil
	default: // failed_permanent is terminal; a replay after that is a no-op success
		return LeaseAlreadySent, nil
	}
}

// MarkDeliverySent records a successful send.
func MarkDeliverySent(ctx context.Context, pool *pgxpool.Pool, propertyID, outboxEventID string) error {
	_, err := pool.Exec(ctx, `
		UPDATE outbox_deliveries SET status = $3, sent_at = now(), updated_at = now()
		WHERE property_id = $1 AND outbox_event_id = $2`,
		propertyID, outboxEventID, DeliverySent)
	if err != nil {
		return apperr.Transient(apperr.CodeTransientFailure, "mark delivery sent failed", err)
	}
	return nil
}

// MarkDeliveryFailedPermanent records a terminal failure with a
// sanitized (no-PII) error string.
func MarkDeliveryFailedPermanent(ctx context.Context, pool *pgxpool.Pool, propertyID, outboxEventID, sanitizedErr string) error {
	_, err := pool.Exec(ctx, `
		UPDATE outbox_deliveries SET status = $3, last_error = $4, updated_at = now()
		WHERE property_id = $1 AND outbox_event_id = $2`,
		propertyID, outboxEventID, DeliveryFailedPermanent, sanitizedErr)
	if err != nil {
		return apperr.Transient(apperr.CodeTransientFailure, "mark delivery failed_permanent failed", err)
	}
	return nil
}

// RecordDeliveryTransientError bumps last_error without changing
// status, leaving the lease as "sending" so a later attempt (this
// task's own retry, or a fresh queue attempt after the lease goes
// stale) can take over.
func RecordDeliveryTransientError(ctx context.Context, pool *pgxpool.Pool, propertyID, outboxEventID, sanitizedErr string) error {
	_, err := pool.Exec(ctx, `
		UPDATE outbox_deliveries SET last_error = $3, updated_at = now()
		WHERE property_id = $1 AND outbox_event_id = $2`,
		propertyID, outboxEventID, sanitizedErr)
	if err != nil {
		return apperr.Transient(apperr.CodeTransientFailure, "record delivery transient error failed", err)
	}
	return nil
}
