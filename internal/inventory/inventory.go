// Package inventory implements the ARI ledger and the holds engine of
// spec §4.4: creating a hold reserves inventory night by night under a
// guarded UPDATE so no partial hold can ever persist, expiring or
// cancelling a hold releases it, and converting a hold into a
// reservation is the one place inventory moves from held to booked.
package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/idempotency"
	"github.com/hotelly/hotelly/internal/store"
)

// HoldStatus is one of the four terminal-or-active states a hold can
// be in. Holds are created active and terminate in exactly one of
// expired/cancelled/converted — never resurrected (spec §3).
type HoldStatus string

const (
	HoldActive    HoldStatus = "active"
	HoldExpired   HoldStatus = "expired"
	HoldCancelled HoldStatus = "cancelled"
	HoldConverted HoldStatus = "converted"
)

// Hold mirrors the holds table.
type Hold struct {
	ID                   string
	PropertyID           string
	ConversationID        *string
	RoomTypeID           string
	Checkin              time.Time
	Checkout             time.Time
	AdultCount           int
	ChildrenAges         []int
	TotalCents           int64
	Currency             string
	Status               HoldStatus
	ExpiresAt            time.Time
	CreateIdempotencyKey *string
	GuestName            string
	Email                *string
	Phone                *string
}

// CreateHoldInput carries the validated fields to create a hold.
// Construction of this struct is where validation-class errors
// (spec §7) belong — this package assumes occupancy and date bounds
// have already been checked by the HTTP layer.
type CreateHoldInput struct {
	PropertyID           string
	ConversationID       *string
	RoomTypeID           string
	Checkin              time.Time
	Checkout             time.Time
	AdultCount           int
	ChildrenAges         []int
	TotalCents           int64
	Currency             string
	TTL                  time.Duration
	CreateIdempotencyKey string
	GuestName            string
	Email                *string
	Phone                *string
}

// Engine executes the holds/ARI transactions against the shared pool.
type Engine struct {
	store *store.Store
}

func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// nights enumerates [checkin, checkout) in ascending date order —
// iteration order the engine uses everywhere to guarantee a canonical
// lock order across concurrent holds (spec §5).
func nights(checkin, checkout time.Time) []time.Time {
	var out []time.Time
	for d := checkin; d.Before(checkout); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// CreateHold implements spec §4.4 "Create hold".
func (e *Engine) CreateHold(ctx context.Context, in CreateHoldInput) (*Hold, error) {
	if in.CreateIdempotencyKey != "" {
		existing, err := e.findHoldByKey(ctx, in.PropertyID, in.CreateIdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	var result *Hold
	err := e.store.WithTx(ctx, func(tx pgx.Tx) error {
		id := uuid.NewString()
		expiresAt := time.Now().UTC().Add(in.TTL)
		childrenJSON, err := json.Marshal(in.ChildrenAges)
		if err != nil {
			return apperr.Validation(apperr.CodeInvalidInput, "children_ages does not marshal")
		}

		var keyPtr *string
		if in.CreateIdempotencyKey != "" {
			keyPtr = &in.CreateIdempotencyKey
		}

		_, insertErr := tx.Exec(ctx, `
			INSERT INTO holds (id, property_id, conversation_id, room_type_id, checkin, checkout,
				adult_count, children_ages, total_cents, currency, status, expires_at,
				create_idempotency_key, guest_name, email, phone)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			id, in.PropertyID, in.ConversationID, in.RoomTypeID, in.Checkin, in.Checkout,
			in.AdultCount, childrenJSON, in.TotalCents, in.Currency, HoldActive, expiresAt,
			keyPtr, in.GuestName, in.Email, in.Phone)
		if insertErr != nil {
			if isUniqueViolation(insertErr) {
				existing, findErr := e.findHoldByKeyTx(ctx, tx, in.PropertyID, in.CreateIdempotencyKey)
				if findErr != nil {
					return findErr
				}
				result = existing
				return nil
			}
			return apperr.Transient(apperr.CodeTransientFailure, "holds insert failed", insertErr)
		}

		for _, night := range nights(in.Checkin, in.Checkout) {
			if _, err := tx.Exec(ctx, `
				INSERT INTO hold_nights (hold_id, property_id, room_type_id, date, qty)
				VALUES ($1, $2, $3, $4, 1)`,
				id, in.PropertyID, in.RoomTypeID, night); err != nil {
				return apperr.Transient(apperr.CodeTransientFailure, "hold_nights insert failed", err)
			}

			tag, err := tx.Exec(ctx, `
				UPDATE ari_days SET inv_held = inv_held + 1
				WHERE property_id = $1 AND room_type_id = $2 AND date = $3
				  AND inv_total >= inv_booked + inv_held + 1 AND is_blocked = false`,
				in.PropertyID, in.RoomTypeID, night)
			if err != nil {
				return apperr.Transient(apperr.CodeTransientFailure, "ari_days update failed", err)
			}
			if tag.RowsAffected() != 1 {
				return apperr.Conflict(apperr.CodeNoInventory, "no inventory available for "+night.Format("2006-01-02"))
			}
		}

		if _, err := idempotency.Emit(ctx, tx, in.PropertyID, "hold.created", map[string]any{
			"hold_id":      id,
			"room_type_id": in.RoomTypeID,
			"checkin":      in.Checkin.Format("2006-01-02"),
			"checkout":     in.Checkout.Format("2006-01-02"),
			"adult_count":  in.AdultCount,
			"total_cents":  in.TotalCents,
			"currency":     in.Currency,
		}); err != nil {
			return err
		}

		result = &Hold{
			ID: id, PropertyID: in.PropertyID, ConversationID: in.ConversationID,
			RoomTypeID: in.RoomTypeID, Checkin: in.Checkin, Checkout: in.Checkout,
			AdultCount: in.AdultCount, ChildrenAges: in.ChildrenAges, TotalCents: in.TotalCents,
			Currency: in.Currency, Status: HoldActive, ExpiresAt: expiresAt,
			CreateIdempotencyKey: keyPtr, GuestName: in.GuestName, Email: in.Email, Phone: in.Phone,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) findHoldByKey(ctx context.Context, propertyID, key string) (*Hold, error) {
	return scanHold(e.store.Pool.QueryRow(ctx, holdSelectByKeySQL, propertyID, key))
}

func (e *Engine) findHoldByKeyTx(ctx context.Context, tx pgx.Tx, propertyID, key string) (*Hold, error) {
	return scanHold(tx.QueryRow(ctx, holdSelectByKeySQL, propertyID, key))
}

const holdSelectByKeySQL = `
	SELECT id, property_id, conversation_id, room_type_id, checkin, checkout,
	       adult_count, children_ages, total_cents, currency, status, expires_at,
	       create_idempotency_key, guest_name, email, phone
	FROM holds WHERE property_id = $1 AND create_idempotency_key = $2`

func scanHold(row pgx.Row) (*Hold, error) {
	var h Hold
	var childrenJSON []byte
	err := row.Scan(&h.ID, &h.PropertyID, &h.ConversationID, &h.RoomTypeID, &h.Checkin, &h.Checkout,
		&h.AdultCount, &childrenJSON, &h.TotalCents, &h.Currency, &h.Status, &h.ExpiresAt,
		&h.CreateIdempotencyKey, &h.GuestName, &h.Email, &h.Phone)
	if err != nil {
		if store.IsNoRows(err) {
			return nil, nil
		}
		return nil, apperr.Transient(apperr.CodeTransientFailure, "holds scan failed", err)
	}
	if len(childrenJSON) > 0 {
		_ = json.Unmarshal(childrenJSON, &h.ChildrenAges)
	}
	return &h, nil
}

// ExpireHold implements spec §4.4 "Expire hold". Callers are
// responsible for the processed_events dedupe on task_id
// "expire-hold:{hold_id}" before invoking this.
func (e *Engine) ExpireHold(ctx context.Context, propertyID, holdID string) error {
	return e.terminate(ctx, propertyID, holdID, HoldExpired, "hold.expired")
}

// CancelHold implements spec §4.4 "Cancel hold". insertPendingRefund,
// when non-nil, runs in the same transaction per cancellation
// policy.
func (e *Engine) CancelHold(ctx context.Context, propertyID, holdID string, insertPendingRefund func(ctx context.Context, tx pgx.Tx, hold *Hold) error) error {
	return e.terminateWithExtra(ctx, propertyID, holdID, HoldCancelled, "hold.cancelled", insertPendingRefund)
}

func (e *Engine) terminate(ctx context.Context, propertyID, holdID string, to HoldStatus, outboxKind string) error {
	return e.terminateWithExtra(ctx, propertyID, holdID, to, outboxKind, nil)
}

func (e *Engine) terminateWithExtra(ctx context.Context, propertyID, holdID string, to HoldStatus, outboxKind string, extra func(ctx context.Context, tx pgx.Tx, hold *Hold) error) error {
	return e.store.WithTx(ctx, func(tx pgx.Tx) error {
		hold, err := scanHold(tx.QueryRow(ctx, `
			SELECT id, property_id, conversation_id, room_type_id, checkin, checkout,
			       adult_count, children_ages, total_cents, currency, status, expires_at,
			       create_idempotency_key, guest_name, email, phone
			FROM holds WHERE property_id = $1 AND id = $2 FOR UPDATE`,
			propertyID, holdID))
		if err != nil {
			return err
		}
		if hold == nil {
			return apperr.Validation(apperr.CodeNotFound, "hold not found")
		}
		if hold.Status != HoldActive {
			// Already terminal: no-op commit, not an error (spec §4.4
			// "if not active ... commit as no-op").
			return nil
		}
		if to == HoldExpired && time.Now().UTC().Before(hold.ExpiresAt) {
			return nil
		}

		for _, night := range nights(hold.Checkin, hold.Checkout) {
			if _, err := tx.Exec(ctx, `
				UPDATE ari_days SET inv_held = inv_held - 1
				WHERE property_id = $1 AND room_type_id = $2 AND date = $3 AND inv_held >= 1`,
				propertyID, hold.RoomTypeID, night); err != nil {
				return apperr.Transient(apperr.CodeTransientFailure, "ari_days release failed", err)
			}
		}

		if _, err := tx.Exec(ctx, `UPDATE holds SET status = $3 WHERE property_id = $1 AND id = $2`,
			propertyID, holdID, to); err != nil {
			return apperr.Transient(apperr.CodeTransientFailure, "holds status update failed", err)
		}

		if extra != nil {
			if err := extra(ctx, tx, hold); err != nil {
				return err
			}
		}

		if _, err := idempotency.Emit(ctx, tx, propertyID, outboxKind, map[string]any{"hold_id": holdID}); err != nil {
			return err
		}
		return nil
	})
}
