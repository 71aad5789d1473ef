// Package reservation implements the reservation lifecycle state
// machine of spec §4.6: the two creation paths (hold-originated
// convert, and staff-created manual), gated transitions each logged
// in the same transaction as the status change, and the room-overlap
// guard that assert_no_room_conflict backs with both a row lock and
// the database's exclusion constraint as the absolute second guard.
package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/idempotency"
	"github.com/hotelly/hotelly/internal/store"
)

// Status is one of the five reservation lifecycle states (spec §3).
// Reservations may only advance.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusConfirmed      Status = "confirmed"
	StatusCancelled      Status = "cancelled"
	StatusInHouse        Status = "in_house"
	StatusCheckedOut     Status = "checked_out"
)

// operationalStatuses are the statuses the room-overlap guard and the
// availability engine treat as occupying the room (spec §3, §4.6).
var operationalStatuses = []Status{StatusPendingPayment, StatusConfirmed, StatusInHouse, StatusCheckedOut}

// Reservation mirrors the reservations table.
type Reservation struct {
	ID                    string
	PropertyID            string
	Status                Status
	Checkin               time.Time
	Checkout              time.Time
	TotalCents            int64
	HoldID                *string
	RoomTypeID            string
	RoomID                *string
	GuestID               *string
	GuestName             string
	GuaranteeJustification *string
	OriginalTotalCents    *int64
	AdjustmentCents       *int64
	AdjustmentReason      *string
}

// Engine executes reservation transactions against the shared pool.
type Engine struct {
	store *store.Store
}

func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// AssertNoRoomConflict implements spec §4.6's central routine. When
// lock is true, matching rows are locked FOR UPDATE so a concurrent
// assignment attempt serializes behind this one; the database
// exclusion constraint remains the absolute second guard and an
// exclusion violation surfacing at runtime is treated by
// internal/store as an operational-critical invariant error, not a
// plain conflict.
func AssertNoRoomConflict(ctx context.Context, tx pgx.Tx, roomID string, checkin, checkout time.Time, excludeReservationID string, lock bool) error {
	query := `
		SELECT id FROM reservations
		WHERE room_id = $1 AND status = ANY($2)
		  AND checkin < $3 AND checkout > $4`
	args := []any{roomID, statusStrings(operationalStatuses), checkout, checkin}
	if excludeReservationID != "" {
		query += " AND id <> $5"
		args = append(args, excludeReservationID)
	}
	if lock {
		query += " FOR UPDATE"
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return apperr.Transient(apperr.CodeTransientFailure, "room overlap check failed", err)
	}
	defer rows.Close()

	if rows.Next() {
		return apperr.Conflict("room_overlap", "room is already booked for an overlapping range")
	}
	return rows.Err()
}

func statusStrings(ss []Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

// nights enumerates [checkin, checkout) in ascending date order, the
// same order internal/inventory iterates in, so two packages mutating
// ari_days against overlapping ranges always lock rows in the same
// (room_type_id, date) order and can't deadlock against each other.
func nights(checkin, checkout time.Time) []time.Time {
	var out []time.Time
	for d := checkin; d.Before(checkout); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// CreateManualInput carries the fields for a staff-created reservation
// (spec §4.6: hold_id NULL, starts in pending_payment, inventory
// booked immediately in the same transaction).
type CreateManualInput struct {
	PropertyID  string
	RoomTypeID  string
	Checkin     time.Time
	Checkout    time.Time
	TotalCents  int64
	GuestID     *string
	GuestName   string
	CreatedBy   string
}

// CreateManual implements the staff POST /reservations path.
func (e *Engine) CreateManual(ctx context.Context, in CreateManualInput) (*Reservation, error) {
	var result *Reservation
	err := e.store.WithTx(ctx, func(tx pgx.Tx) error {
		id := uuid.NewString()

		for _, night := range nights(in.Checkin, in.Checkout) {
			tag, err := tx.Exec(ctx, `
				UPDATE ari_days SET inv_booked = inv_booked + 1
				WHERE property_id = $1 AND room_type_id = $2 AND date = $3
				  AND inv_total >= inv_booked + inv_held + 1`,
				in.PropertyID, in.RoomTypeID, night)
			if err != nil {
				return apperr.Transient(apperr.CodeTransientFailure, "ari_days booking update failed", err)
			}
			if tag.RowsAffected() != 1 {
				return apperr.Conflict(apperr.CodeNoInventory, "insufficient inventory for manual reservation on "+night.Format("2006-01-02"))
			}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO reservations (id, property_id, status, checkin, checkout, total_cents,
				hold_id, room_type_id, guest_id, guest_name)
			VALUES ($1, $2, $3, $4, $5, $6, NULL, $7, $8, $9)`,
			id, in.PropertyID, StatusPendingPayment, in.Checkin, in.Checkout, in.TotalCents,
			in.RoomTypeID, in.GuestID, in.GuestName)
		if err != nil {
			return apperr.Transient(apperr.CodeTransientFailure, "reservations insert failed", err)
		}

		if err := writeStatusLog(ctx, tx, id, in.PropertyID, "", StatusPendingPayment, in.CreatedBy, "Manual reservation created"); err != nil {
			return err
		}

		result = &Reservation{
			ID: id, PropertyID: in.PropertyID, Status: StatusPendingPayment,
			Checkin: in.Checkin, Checkout: in.Checkout, TotalCents: in.TotalCents,
			RoomTypeID: in.RoomTypeID, GuestID: in.GuestID, GuestName: in.GuestName,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func writeStatusLog(ctx context.Context, tx pgx.Tx, reservationID, propertyID string, from, to Status, changedBy, notes string) error {
	var fromPtr *string
	if from != "" {
		s := string(from)
		fromPtr = &s
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO reservation_status_logs (reservation_id, property_id, from_status, to_status, changed_by, changed_at, notes)
		VALUES ($1, $2, $3, $4, $5, now(), $6)`,
		reservationID, propertyID, fromPtr, to, changedBy, notes)
	if err != nil {
		return apperr.Transient(apperr.CodeTransientFailure, "reservation_status_logs insert failed", err)
	}
	return nil
}

// emitEvent is a small helper so call sites read like the spec's
// outbox vocabulary. It returns the outbox event id so callers that
// need to carry it forward (e.g. into a send-response task) don't
// have to re-derive or re-emit it.
func emitEvent(ctx context.Context, tx pgx.Tx, propertyID, kind string, payload map[string]any) (string, error) {
	return idempotency.Emit(ctx, tx, propertyID, kind, payload)
}
