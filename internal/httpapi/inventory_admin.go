package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/store"
)

type inventoryAdminHandlers struct {
	deps *Deps
}

func newInventoryAdminHandlers(deps *Deps) *inventoryAdminHandlers {
	return &inventoryAdminHandlers{deps: deps}
}

type roomTypeDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MaxOccupancy int    `json:"max_occupancy"`
}

// handleListRoomTypes implements GET /room_types, filtering out
// soft-deleted rows (spec's deleted_at pattern).
func (h *inventoryAdminHandlers) handleListRoomTypes(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Store.Pool.Query(r.Context(), `SELECT id, name, max_occupancy FROM room_types WHERE property_id = $1 AND deleted_at IS NULL ORDER BY id`, propertyID(r))
	if err != nil {
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "room_types query failed", err))
		return
	}
	defer rows.Close()

	out := make([]roomTypeDTO, 0)
	for rows.Next() {
		var rt roomTypeDTO
		if err := rows.Scan(&rt.ID, &rt.Name, &rt.MaxOccupancy); err != nil {
			writeError(w, apperr.Transient(apperr.CodeTransientFailure, "room_types scan failed", err))
			return
		}
		out = append(out, rt)
	}
	writeJSON(w, http.StatusOK, out)
}

type createRoomTypeRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MaxOccupancy int    `json:"max_occupancy"`
}

// handleCreateRoomType implements POST /room_types.
func (h *inventoryAdminHandlers) handleCreateRoomType(w http.ResponseWriter, r *http.Request) {
	var req createRoomTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, apperr.Validation(apperr.CodeInvalidInput, "id and name are required"))
		return
	}
	_, err := h.deps.Store.Pool.Exec(r.Context(), `INSERT INTO room_types (property_id, id, name, max_occupancy) VALUES ($1, $2, $3, $4)`,
		propertyID(r), req.ID, req.Name, req.MaxOccupancy)
	if err != nil {
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "room_types insert failed", err))
		return
	}
	writeJSON(w, http.StatusCreated, roomTypeDTO{ID: req.ID, Name: req.Name, MaxOccupancy: req.MaxOccupancy})
}

// handleDeleteRoomType implements DELETE /room_types/{id} as a soft
// delete, leaving historical reservations' foreign keys intact.
func (h *inventoryAdminHandlers) handleDeleteRoomType(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, err := h.deps.Store.Pool.Exec(r.Context(), `UPDATE room_types SET deleted_at = now() WHERE property_id = $1 AND id = $2`, propertyID(r), id)
	if err != nil {
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "room_types soft-delete failed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type roomDTO struct {
	ID               string `json:"id"`
	RoomTypeID       string `json:"room_type_id"`
	GovernanceStatus string `json:"governance_status"`
}

// handleListRooms implements GET /rooms.
func (h *inventoryAdminHandlers) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Store.Pool.Query(r.Context(), `SELECT id, room_type_id, governance_status FROM rooms WHERE property_id = $1 ORDER BY id`, propertyID(r))
	if err != nil {
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "rooms query failed", err))
		return
	}
	defer rows.Close()

	out := make([]roomDTO, 0)
	for rows.Next() {
		var rm roomDTO
		if err := rows.Scan(&rm.ID, &rm.RoomTypeID, &rm.GovernanceStatus); err != nil {
			writeError(w, apperr.Transient(apperr.CodeTransientFailure, "rooms scan failed", err))
			return
		}
		out = append(out, rm)
	}
	writeJSON(w, http.StatusOK, out)
}

type createRoomRequest struct {
	ID         string `json:"id"`
	RoomTypeID string `json:"room_type_id"`
}

// handleCreateRoom implements POST /rooms.
func (h *inventoryAdminHandlers) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	_, err := h.deps.Store.Pool.Exec(r.Context(), `INSERT INTO rooms (property_id, id, room_type_id) VALUES ($1, $2, $3)`,
		propertyID(r), req.ID, req.RoomTypeID)
	if err != nil {
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "rooms insert failed", err))
		return
	}
	writeJSON(w, http.StatusCreated, roomDTO{ID: req.ID, RoomTypeID: req.RoomTypeID, GovernanceStatus: "clean"})
}

type governanceRequest struct {
	Status string `json:"status"`
}

var validGovernanceStatuses = map[string]bool{"dirty": true, "cleaning": true, "clean": true, "maintenance": true}

// handlePatchGovernance implements PATCH /rooms/{id}/governance, the
// gate check-in asserts against (spec §4.6 edge case "room_not_clean").
func (h *inventoryAdminHandlers) handlePatchGovernance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req governanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !validGovernanceStatuses[req.Status] {
		writeError(w, apperr.Validation(apperr.CodeInvalidInput, "invalid governance status"))
		return
	}
	tag, err := h.deps.Store.Pool.Exec(r.Context(), `UPDATE rooms SET governance_status = $1 WHERE property_id = $2 AND id = $3`,
		req.Status, propertyID(r), id)
	if err != nil {
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "rooms governance update failed", err))
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(w, apperr.Permanent(apperr.CodeNotFound, "room not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type rateDTO struct {
	Date                 string `json:"date"`
	RoomTypeID           string `json:"room_type_id"`
	Price1PaxCents       int64  `json:"price_1pax_cents"`
	Price2PaxCents       int64  `json:"price_2pax_cents"`
	Price3PaxCents       *int64 `json:"price_3pax_cents,omitempty"`
	Price4PaxCents       *int64 `json:"price_4pax_cents,omitempty"`
	PriceBucket1ChdCents *int64 `json:"price_bucket1_chd_cents,omitempty"`
	PriceBucket2ChdCents *int64 `json:"price_bucket2_chd_cents,omitempty"`
	PriceBucket3ChdCents *int64 `json:"price_bucket3_chd_cents,omitempty"`
	MinNights            int    `json:"min_nights"`
	MaxNights            *int   `json:"max_nights,omitempty"`
	ClosedToArrival      bool   `json:"closed_to_arrival"`
	ClosedToDeparture    bool   `json:"closed_to_departure"`
	IsBlocked            bool   `json:"is_blocked"`
}

// handleListRates implements GET /rates?room_type_id=...&start=...&end=....
func (h *inventoryAdminHandlers) handleListRates(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := h.deps.Store.Pool.Query(r.Context(), `
		SELECT date, room_type_id, price_1pax_cents, price_2pax_cents, price_3pax_cents, price_4pax_cents,
			price_bucket1_chd_cents, price_bucket2_chd_cents, price_bucket3_chd_cents,
			min_nights, max_nights, closed_to_arrival, closed_to_departure, is_blocked
		FROM room_type_rates WHERE property_id = $1 AND room_type_id = $2 AND date >= $3 AND date < $4 ORDER BY date`,
		propertyID(r), r.URL.Query().Get("room_type_id"), start, end)
	if err != nil {
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "rates query failed", err))
		return
	}
	defer rows.Close()

	out := make([]rateDTO, 0)
	for rows.Next() {
		var rt rateDTO
		var date time.Time
		if err := rows.Scan(&date, &rt.RoomTypeID, &rt.Price1PaxCents, &rt.Price2PaxCents, &rt.Price3PaxCents, &rt.Price4PaxCents,
			&rt.PriceBucket1ChdCents, &rt.PriceBucket2ChdCents, &rt.PriceBucket3ChdCents,
			&rt.MinNights, &rt.MaxNights, &rt.ClosedToArrival, &rt.ClosedToDeparture, &rt.IsBlocked); err != nil {
			writeError(w, apperr.Transient(apperr.CodeTransientFailure, "rates scan failed", err))
			return
		}
		rt.Date = date.Format("2006-01-02")
		out = append(out, rt)
	}
	writeJSON(w, http.StatusOK, out)
}

type upsertRateRequest struct {
	Date                 string `json:"date"`
	RoomTypeID           string `json:"room_type_id"`
	Price1PaxCents       int64  `json:"price_1pax_cents"`
	Price2PaxCents       int64  `json:"price_2pax_cents"`
	Price3PaxCents       *int64 `json:"price_3pax_cents"`
	Price4PaxCents       *int64 `json:"price_4pax_cents"`
	PriceBucket1ChdCents *int64 `json:"price_bucket1_chd_cents"`
	PriceBucket2ChdCents *int64 `json:"price_bucket2_chd_cents"`
	PriceBucket3ChdCents *int64 `json:"price_bucket3_chd_cents"`
	MinNights            int    `json:"min_nights"`
	MaxNights            *int   `json:"max_nights"`
	ClosedToArrival      bool   `json:"closed_to_arrival"`
	ClosedToDeparture    bool   `json:"closed_to_departure"`
	IsBlocked            bool   `json:"is_blocked"`
}

// handleUpsertRate implements PUT /rates: one day's price row for one
// room type, the unit staff actually edit from a rate grid UI.
func (h *inventoryAdminHandlers) handleUpsertRate(w http.ResponseWriter, r *http.Request) {
	var req upsertRateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, apperr.Validation(apperr.CodeInvalidDates, "date must be YYYY-MM-DD"))
		return
	}
	if req.MinNights < 1 {
		req.MinNights = 1
	}

	_, err = h.deps.Store.Pool.Exec(r.Context(), `
		INSERT INTO room_type_rates (property_id, room_type_id, date, price_1pax_cents, price_2pax_cents,
			price_3pax_cents, price_4pax_cents, price_bucket1_chd_cents, price_bucket2_chd_cents,
			price_bucket3_chd_cents, min_nights, max_nights, closed_to_arrival, closed_to_departure, is_blocked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (property_id, room_type_id, date) DO UPDATE SET
			price_1pax_cents = EXCLUDED.price_1pax_cents, price_2pax_cents = EXCLUDED.price_2pax_cents,
			price_3pax_cents = EXCLUDED.price_3pax_cents, price_4pax_cents = EXCLUDED.price_4pax_cents,
			price_bucket1_chd_cents = EXCLUDED.price_bucket1_chd_cents, price_bucket2_chd_cents = EXCLUDED.price_bucket2_chd_cents,
			price_bucket3_chd_cents = EXCLUDED.price_bucket3_chd_cents, min_nights = EXCLUDED.min_nights,
			max_nights = EXCLUDED.max_nights, closed_to_arrival = EXCLUDED.closed_to_arrival,
			closed_to_departure = EXCLUDED.closed_to_departure, is_blocked = EXCLUDED.is_blocked`,
		propertyID(r), req.RoomTypeID, date, req.Price1PaxCents, req.Price2PaxCents,
		req.Price3PaxCents, req.Price4PaxCents, req.PriceBucket1ChdCents, req.PriceBucket2ChdCents,
		req.PriceBucket3ChdCents, req.MinNights, req.MaxNights, req.ClosedToArrival, req.ClosedToDeparture, req.IsBlocked)
	if err != nil {
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "rates upsert failed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type childBucketDTO struct {
	Bucket int `json:"bucket"`
	MinAge int `json:"min_age"`
	MaxAge int `json:"max_age"`
}

// handleListChildPolicies implements GET /child-policies.
func (h *inventoryAdminHandlers) handleListChildPolicies(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Store.Pool.Query(r.Context(), `SELECT bucket, min_age, max_age FROM child_age_buckets WHERE property_id = $1 ORDER BY bucket`, propertyID(r))
	if err != nil {
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "child_age_buckets query failed", err))
		return
	}
	defer rows.Close()

	out := make([]childBucketDTO, 0)
	for rows.Next() {
		var c childBucketDTO
		if err := rows.Scan(&c.Bucket, &c.MinAge, &c.MaxAge); err != nil {
			writeError(w, apperr.Transient(apperr.CodeTransientFailure, "child_age_buckets scan failed", err))
			return
		}
		out = append(out, c)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleUpsertChildPolicy implements PUT /child-policies: one bucket's
// age range. The GiST exclusion constraint on (property_id, age_range)
// is the final guard against overlapping buckets; a violation surfaces
// as an invariant error through internal/store's classification.
func (h *inventoryAdminHandlers) handleUpsertChildPolicy(w http.ResponseWriter, r *http.Request) {
	var req childBucketDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Bucket < 1 || req.Bucket > 3 {
		writeError(w, apperr.Validation(apperr.CodeInvalidInput, "bucket must be 1, 2, or 3"))
		return
	}
	err := h.deps.Store.WithTx(r.Context(), func(tx pgx.Tx) error {
		_, err := tx.Exec(r.Context(), `
			INSERT INTO child_age_buckets (property_id, bucket, min_age, max_age)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (property_id, bucket) DO UPDATE SET min_age = EXCLUDED.min_age, max_age = EXCLUDED.max_age`,
			propertyID(r), req.Bucket, req.MinAge, req.MaxAge)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type cancellationPolicyDTO struct {
	PolicyType                string `json:"policy_type"`
	PenaltyPercent            *int   `json:"penalty_percent,omitempty"`
	FreeUntilDaysBeforeCheckin *int  `json:"free_until_days_before_checkin,omitempty"`
}

// handleGetCancellationPolicy implements GET /cancellation-policy.
func (h *inventoryAdminHandlers) handleGetCancellationPolicy(w http.ResponseWriter, r *http.Request) {
	var c cancellationPolicyDTO
	err := h.deps.Store.Pool.QueryRow(r.Context(), `SELECT policy_type, penalty_percent, free_until_days_before_checkin FROM cancellation_policies WHERE property_id = $1`,
		propertyID(r)).Scan(&c.PolicyType, &c.PenaltyPercent, &c.FreeUntilDaysBeforeCheckin)
	if err != nil {
		if store.IsNoRows(err) {
			writeError(w, apperr.Permanent(apperr.CodeNotFound, "cancellation policy not configured"))
			return
		}
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "cancellation_policies query failed", err))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handlePutCancellationPolicy implements PUT /cancellation-policy: one
// property has at most one policy (primary key is property_id).
func (h *inventoryAdminHandlers) handlePutCancellationPolicy(w http.ResponseWriter, r *http.Request) {
	var c cancellationPolicyDTO
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, err)
		return
	}
	_, err := h.deps.Store.Pool.Exec(r.Context(), `
		INSERT INTO cancellation_policies (property_id, policy_type, penalty_percent, free_until_days_before_checkin)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (property_id) DO UPDATE SET policy_type = EXCLUDED.policy_type,
			penalty_percent = EXCLUDED.penalty_percent, free_until_days_before_checkin = EXCLUDED.free_until_days_before_checkin`,
		propertyID(r), c.PolicyType, c.PenaltyPercent, c.FreeUntilDaysBeforeCheckin)
	if err != nil {
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "cancellation_policies upsert failed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
