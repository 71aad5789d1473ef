package reservation

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/store"
)

// lockReservation reads and FOR UPDATE-locks a reservation row. Every
// transition in this file starts here so the transaction observes a
// consistent snapshot before deciding whether to allow the move.
func lockReservation(ctx context.Context, tx pgx.Tx, propertyID, id string) (*Reservation, error) {
	var r Reservation
	err := tx.QueryRow(ctx, `
		SELECT id, property_id, status, checkin, checkout, total_cents, hold_id, room_type_id,
		       room_id, guest_id, guest_name, guarantee_justification, original_total_cents,
		       adjustment_cents, adjustment_reason
		FROM reservations WHERE property_id = $1 AND id = $2 FOR UPDATE`,
		propertyID, id,
	).Scan(&r.ID, &r.PropertyID, &r.Status, &r.Checkin, &r.Checkout, &r.TotalCents, &r.HoldID,
		&r.RoomTypeID, &r.RoomID, &r.GuestID, &r.GuestName, &r.GuaranteeJustification,
		&r.OriginalTotalCents, &r.AdjustmentCents, &r.AdjustmentReason)
	if err != nil {
		if store.IsNoRows(err) {
			return nil, apperr.Validation(apperr.CodeNotFound, "reservation not found")
		}
		return nil, apperr.Transient(apperr.CodeTransientFailure, "reservations lock failed", err)
	}
	return &r, nil
}

// ConfirmAuto implements the automatic pending_payment -> confirmed
// transition driven by the folio-threshold check (spec §4.6: "auto:
// Σ captured folio / total ≥ confirmation_threshold"). The threshold
// comparison itself is the caller's responsibility (folio totals and
// the property's confirmation_threshold live outside this package);
// this method only performs the gated transition once the caller has
// decided it applies.
func (e *Engine) ConfirmAuto(ctx context.Context, propertyID, reservationID string) error {
	return e.store.WithTx(ctx, func(tx pgx.Tx) error {
		r, err := lockReservation(ctx, tx, propertyID, reservationID)
		if err != nil {
			return err
		}
		if r.Status != StatusPendingPayment {
			return apperr.Conflict(apperr.CodeStateRefused, "reservation is not pending_payment")
		}
		if err := transition(ctx, tx, r, StatusConfirmed, "system", "Payment Threshold Reached"); err != nil {
			return err
		}
		return nil
	})
}

// ConfirmManual implements the manager-triggered manual guarantee
// path (spec §4.6, scenario 6): requires guarantee_justification and
// the manager role, prefixing the log note "Manual Guarantee:".
func (e *Engine) ConfirmManual(ctx context.Context, propertyID, reservationID, changedBy, justification string) error {
	if justification == "" {
		return apperr.Validation(apperr.CodeInvalidInput, "guarantee_justification is required")
	}
	return e.store.WithTx(ctx, func(tx pgx.Tx) error {
		r, err := lockReservation(ctx, tx, propertyID, reservationID)
		if err != nil {
			return err
		}
		if r.Status != StatusPendingPayment {
			return apperr.Conflict(apperr.CodeStateRefused, "reservation is not pending_payment")
		}
		if _, err := tx.Exec(ctx, `UPDATE reservations SET guarantee_justification = $3 WHERE property_id = $1 AND id = $2`,
			propertyID, reservationID, justification); err != nil {
			return apperr.Transient(apperr.CodeTransientFailure, "guarantee_justification update failed", err)
		}
		return transition(ctx, tx, r, StatusConfirmed, changedBy, "Manual Guarantee: "+justification)
	})
}

// Cancel implements pending_payment -> cancelled, releasing booked
// inventory for every remaining night in the same transaction.
func (e *Engine) Cancel(ctx context.Context, propertyID, reservationID, changedBy string) error {
	return e.store.WithTx(ctx, func(tx pgx.Tx) error {
		r, err := lockReservation(ctx, tx, propertyID, reservationID)
		if err != nil {
			return err
		}
		if r.Status != StatusPendingPayment {
			return apperr.Conflict(apperr.CodeStateRefused, "reservation is not pending_payment")
		}
		for _, night := range nights(r.Checkin, r.Checkout) {
			if _, err := tx.Exec(ctx, `
				UPDATE ari_days SET inv_booked = inv_booked - 1
				WHERE property_id = $1 AND room_type_id = $2 AND date = $3 AND inv_booked >= 1`,
				propertyID, r.RoomTypeID, night); err != nil {
				return apperr.Transient(apperr.CodeTransientFailure, "ari_days cancel release failed", err)
			}
		}
		return transition(ctx, tx, r, StatusCancelled, changedBy, "Cancelled by staff")
	})
}

// CheckIn implements confirmed -> in_house (spec §4.6): requires an
// assigned room, today (property-local) ≥ checkin, room clean, and no
// overlapping reservation.
func (e *Engine) CheckIn(ctx context.Context, propertyID, reservationID, changedBy string, today time.Time) error {
	return e.store.WithTx(ctx, func(tx pgx.Tx) error {
		r, err := lockReservation(ctx, tx, propertyID, reservationID)
		if err != nil {
			return err
		}
		if r.Status != StatusConfirmed {
			return apperr.Conflict(apperr.CodeStateRefused, "reservation is not confirmed")
		}
		if r.RoomID == nil {
			return apperr.Validation(apperr.CodeInvalidInput, "reservation has no room assigned")
		}
		if today.Before(r.Checkin) {
			return apperr.Conflict(apperr.CodeStateRefused, "check-in date has not arrived")
		}

		var governanceStatus string
		if err := tx.QueryRow(ctx, `SELECT governance_status FROM rooms WHERE property_id = $1 AND id = $2`,
			propertyID, *r.RoomID).Scan(&governanceStatus); err != nil {
			if store.IsNoRows(err) {
				return apperr.Validation(apperr.CodeNotFound, "assigned room not found")
			}
			return apperr.Transient(apperr.CodeTransientFailure, "rooms lookup failed", err)
		}
		if governanceStatus != "clean" {
			return apperr.Conflict(apperr.CodeRoomNotClean, "room is not clean")
		}

		if err := AssertNoRoomConflict(ctx, tx, *r.RoomID, r.Checkin, r.Checkout, r.ID, true); err != nil {
			return err
		}

		return transition(ctx, tx, r, StatusInHouse, changedBy, "Checked in")
	})
}

// CheckOut implements in_house -> checked_out: requires a zero folio
// balance, marks the room dirty.
func (e *Engine) CheckOut(ctx context.Context, propertyID, reservationID, changedBy string, folioBalanceCents int64) error {
	return e.store.WithTx(ctx, func(tx pgx.Tx) error {
		r, err := lockReservation(ctx, tx, propertyID, reservationID)
		if err != nil {
			return err
		}
		if r.Status != StatusInHouse {
			return apperr.Conflict(apperr.CodeStateRefused, "reservation is not in_house")
		}
		if folioBalanceCents != 0 {
			return apperr.Conflict(apperr.CodeStateRefused, "folio balance is not zero")
		}
		if r.RoomID != nil {
			if _, err := tx.Exec(ctx, `UPDATE rooms SET governance_status = 'dirty' WHERE property_id = $1 AND id = $2`,
				propertyID, *r.RoomID); err != nil {
				return apperr.Transient(apperr.CodeTransientFailure, "rooms governance update failed", err)
			}
		}
		return transition(ctx, tx, r, StatusCheckedOut, changedBy, "Checked out")
	})
}

// AssignRoom sets room_id on a reservation after re-checking for
// overlap, per spec §4.6's "On assignment, modification of dates, and
// check-in" trigger list for assert_no_room_conflict.
func (e *Engine) AssignRoom(ctx context.Context, propertyID, reservationID, roomID string) error {
	return e.store.WithTx(ctx, func(tx pgx.Tx) error {
		r, err := lockReservation(ctx, tx, propertyID, reservationID)
		if err != nil {
			return err
		}
		if err := AssertNoRoomConflict(ctx, tx, roomID, r.Checkin, r.Checkout, r.ID, true); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE reservations SET room_id = $3 WHERE property_id = $1 AND id = $2`,
			propertyID, reservationID, roomID); err != nil {
			return apperr.Transient(apperr.CodeTransientFailure, "reservations room_id update failed", err)
		}
		return nil
	})
}

func transition(ctx context.Context, tx pgx.Tx, r *Reservation, to Status, changedBy, notes string) error {
	if _, err := tx.Exec(ctx, `UPDATE reservations SET status = $3 WHERE property_id = $1 AND id = $2`,
		r.PropertyID, r.ID, to); err != nil {
		return apperr.Transient(apperr.CodeTransientFailure, "reservations status update failed", err)
	}
	return writeStatusLog(ctx, tx, r.ID, r.PropertyID, r.Status, to, changedBy, notes)
}
