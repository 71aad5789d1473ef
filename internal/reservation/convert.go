package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/store"
)

// ConvertInput carries what the worker's Stripe event handler already
// resolved: the payment object id and amount, and the hold it is
// converting.
type ConvertInput struct {
	PropertyID         string
	HoldID             string
	ProviderObjectID   string // Stripe payment_intent or checkout session id
	AmountCents        int64
	Currency           string
	GuestEmail         *string
	GuestPhone         *string
	GuestName          string
}

// ConvertOutcome tells the caller (the Stripe task handler) what
// happened, so it can decide whether to also enqueue a send-response
// task.
type ConvertOutcome struct {
	ReservationID  string
	ConversationID *string
	NeedsManual    bool

	// ConfirmedOutboxEventID is the id of the "reservation.confirmed"
	// outbox event emitted by this call, set only the one time Convert
	// actually performs the conversion. A redelivery that finds the
	// hold already converted leaves this nil, signaling callers not to
	// enqueue another reply for an event that was never (re-)emitted.
	ConfirmedOutboxEventID *string
}

// Convert implements spec §4.4 "Convert hold → reservation" steps
// 2-7. Step 1 (receipt dedupe on (stripe, event_id)) is the caller's
// responsibility, immediately before this call, as the first durable
// effect of the handling transaction.
func (e *Engine) Convert(ctx context.Context, in ConvertInput) (*ConvertOutcome, error) {
	var outcome *ConvertOutcome
	err := e.store.WithTx(ctx, func(tx pgx.Tx) error {
		if err := upsertPaymentSucceeded(ctx, tx, in.PropertyID, in.ProviderObjectID, in.AmountCents, in.Currency); err != nil {
			return err
		}

		var roomTypeID string
		var convID *string
		var checkin, checkout time.Time
		var expiresAt time.Time
		var status string
		err := tx.QueryRow(ctx, `
			SELECT room_type_id, conversation_id, checkin, checkout, expires_at, status
			FROM holds WHERE property_id = $1 AND id = $2 FOR UPDATE`,
			in.PropertyID, in.HoldID,
		).Scan(&roomTypeID, &convID, &checkin, &checkout, &expiresAt, &status)
		if err != nil {
			if store.IsNoRows(err) {
				return apperr.Permanent(apperr.CodeNotFound, "hold not found for conversion")
			}
			return apperr.Transient(apperr.CodeTransientFailure, "holds lookup failed", err)
		}
		if status != "active" {
			// Already converted/expired/cancelled: commit as no-op success.
			outcome = &ConvertOutcome{ConversationID: convID}
			return nil
		}

		if time.Now().UTC().After(expiresAt) {
			if err := markPaymentNeedsManual(ctx, tx, in.PropertyID, in.ProviderObjectID); err != nil {
				return err
			}
			if _, err := emitEvent(ctx, tx, in.PropertyID, "payment.late", map[string]any{
				"hold_id": in.HoldID, "provider_object_id": in.ProviderObjectID,
			}); err != nil {
				return err
			}
			outcome = &ConvertOutcome{ConversationID: convID, NeedsManual: true}
			return nil
		}

		for _, night := range nights(checkin, checkout) {
			tag, err := tx.Exec(ctx, `
				UPDATE ari_days SET inv_held = inv_held - 1, inv_booked = inv_booked + 1
				WHERE property_id = $1 AND room_type_id = $2 AND date = $3 AND inv_held >= 1`,
				in.PropertyID, roomTypeID, night)
			if err != nil {
				return apperr.Transient(apperr.CodeTransientFailure, "ari_days convert update failed", err)
			}
			if tag.RowsAffected() != 1 {
				return apperr.Invariant(apperr.CodeNegativeInventory, "convert could not release/book every night", map[string]any{
					"hold_id": in.HoldID, "date": night.Format("2006-01-02"),
				})
			}
		}

		reservationID := uuid.NewString()
		_, err = tx.Exec(ctx, `
			INSERT INTO reservations (id, property_id, status, checkin, checkout, total_cents,
				hold_id, room_type_id, guest_name)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (property_id, hold_id) DO NOTHING`,
			reservationID, in.PropertyID, StatusConfirmed, checkin, checkout, in.AmountCents,
			in.HoldID, roomTypeID, in.GuestName)
		if err != nil {
			return apperr.Transient(apperr.CodeTransientFailure, "reservations insert failed", err)
		}

		// ON CONFLICT DO NOTHING means a replay lands here with the row
		// already present under a different id; re-read the authoritative
		// row so downstream logging/outbox reference the real reservation.
		err = tx.QueryRow(ctx, `SELECT id FROM reservations WHERE property_id = $1 AND hold_id = $2`,
			in.PropertyID, in.HoldID).Scan(&reservationID)
		if err != nil {
			return apperr.Transient(apperr.CodeTransientFailure, "reservations re-read failed", err)
		}

		guestID, err := upsertGuest(ctx, tx, in.PropertyID, in.GuestName, in.GuestEmail, in.GuestPhone)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE reservations SET guest_id = $3 WHERE property_id = $1 AND id = $2`,
			in.PropertyID, reservationID, guestID); err != nil {
			return apperr.Transient(apperr.CodeTransientFailure, "reservations guest_id update failed", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE holds SET status = $3 WHERE property_id = $1 AND id = $2`,
			in.PropertyID, in.HoldID, "converted"); err != nil {
			return apperr.Transient(apperr.CodeTransientFailure, "holds convert status update failed", err)
		}

		if err := writeStatusLog(ctx, tx, reservationID, in.PropertyID, "", StatusConfirmed, "system", "Payment confirmed via convert"); err != nil {
			return err
		}

		if _, err := emitEvent(ctx, tx, in.PropertyID, "payment.succeeded", map[string]any{
			"hold_id": in.HoldID, "provider_object_id": in.ProviderObjectID, "amount_cents": in.AmountCents,
		}); err != nil {
			return err
		}
		confirmedEventID, err := emitEvent(ctx, tx, in.PropertyID, "reservation.confirmed", map[string]any{
			"reservation_id": reservationID, "hold_id": in.HoldID, "room_type_id": roomTypeID,
		})
		if err != nil {
			return err
		}

		outcome = &ConvertOutcome{
			ReservationID:          reservationID,
			ConversationID:         convID,
			ConfirmedOutboxEventID: &confirmedEventID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func upsertPaymentSucceeded(ctx context.Context, tx pgx.Tx, propertyID, providerObjectID string, amountCents int64, currency string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payments (property_id, provider, provider_object_id, status, amount_cents, currency, created_at)
		VALUES ($1, 'stripe', $2, 'succeeded', $3, $4, now())
		ON CONFLICT (property_id, provider, provider_object_id)
		DO UPDATE SET status = 'succeeded'`,
		propertyID, providerObjectID, amountCents, currency)
	if err != nil {
		return apperr.Transient(apperr.CodeTransientFailure, "payments upsert failed", err)
	}
	return nil
}

func markPaymentNeedsManual(ctx context.Context, tx pgx.Tx, propertyID, providerObjectID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE payments SET status = 'needs_manual'
		WHERE property_id = $1 AND provider = 'stripe' AND provider_object_id = $2`,
		propertyID, providerObjectID)
	if err != nil {
		return apperr.Transient(apperr.CodeTransientFailure, "payments needs_manual update failed", err)
	}
	return nil
}

// upsertGuest deduplicates by email then phone within the property
// (spec §4.4 step 6) and returns the guest id.
func upsertGuest(ctx context.Context, tx pgx.Tx, propertyID, name string, email, phone *string) (string, error) {
	if email != nil {
		var id string
		err := tx.QueryRow(ctx, `SELECT id FROM guests WHERE property_id = $1 AND email = $2`, propertyID, *email).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !store.IsNoRows(err) {
			return "", apperr.Transient(apperr.CodeTransientFailure, "guests email lookup failed", err)
		}
	}
	if phone != nil {
		var id string
		err := tx.QueryRow(ctx, `SELECT id FROM guests WHERE property_id = $1 AND phone = $2`, propertyID, *phone).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !store.IsNoRows(err) {
			return "", apperr.Transient(apperr.CodeTransientFailure, "guests phone lookup failed", err)
		}
	}

	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO guests (id, property_id, name, email, phone)
		VALUES ($1, $2, $3, $4, $5)`,
		id, propertyID, name, email, phone)
	if err != nil {
		return "", apperr.Transient(apperr.CodeTransientFailure, "guests insert failed", err)
	}
	return id, nil
}
