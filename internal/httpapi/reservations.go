package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/authz"
	"github.com/hotelly/hotelly/internal/reservation"
	"github.com/hotelly/hotelly/internal/store"
)

const reservationColumns = `id, property_id, status, checkin, checkout, total_cents, hold_id, room_type_id, room_id, guest_id, guest_name, guarantee_justification, original_total_cents, adjustment_cents, adjustment_reason`

func scanReservation(row pgx.Row) (*reservation.Reservation, error) {
	var r reservation.Reservation
	var status string
	if err := row.Scan(&r.ID, &r.PropertyID, &status, &r.Checkin, &r.Checkout, &r.TotalCents, &r.HoldID, &r.RoomTypeID, &r.RoomID, &r.GuestID, &r.GuestName, &r.GuaranteeJustification, &r.OriginalTotalCents, &r.AdjustmentCents, &r.AdjustmentReason); err != nil {
		if store.IsNoRows(err) {
			return nil, apperr.Permanent(apperr.CodeNotFound, "reservation not found")
		}
		return nil, apperr.Transient(apperr.CodeTransientFailure, "reservation read failed", err)
	}
	r.Status = reservation.Status(status)
	return &r, nil
}

type reservationHandlers struct {
	deps *Deps
}

func newReservationHandlers(deps *Deps) *reservationHandlers {
	return &reservationHandlers{deps: deps}
}

// reservationDTO is the full projection shown to staff and above.
type reservationDTO struct {
	ID                     string  `json:"id"`
	PropertyID             string  `json:"property_id"`
	Status                 string  `json:"status"`
	Checkin                string  `json:"checkin"`
	Checkout               string  `json:"checkout"`
	TotalCents             int64   `json:"total_cents"`
	HoldID                 *string `json:"hold_id,omitempty"`
	RoomTypeID             string  `json:"room_type_id"`
	RoomID                 *string `json:"room_id,omitempty"`
	GuestID                *string `json:"guest_id,omitempty"`
	GuestName              string  `json:"guest_name,omitempty"`
	GuaranteeJustification *string `json:"guarantee_justification,omitempty"`
}

// reservationGovernanceDTO is the PII-redacted projection the
// governance role receives: room/dates/status only, per the Open
// Questions decision — no guest name/email/phone.
type reservationGovernanceDTO struct {
	ID         string  `json:"id"`
	PropertyID string  `json:"property_id"`
	Status     string  `json:"status"`
	Checkin    string  `json:"checkin"`
	Checkout   string  `json:"checkout"`
	RoomTypeID string  `json:"room_type_id"`
	RoomID     *string `json:"room_id,omitempty"`
}

func toReservationDTO(r *reservation.Reservation) reservationDTO {
	return reservationDTO{
		ID:                     r.ID,
		PropertyID:             r.PropertyID,
		Status:                 string(r.Status),
		Checkin:                r.Checkin.Format("2006-01-02"),
		Checkout:               r.Checkout.Format("2006-01-02"),
		TotalCents:             r.TotalCents,
		HoldID:                 r.HoldID,
		RoomTypeID:             r.RoomTypeID,
		RoomID:                 r.RoomID,
		GuestID:                r.GuestID,
		GuestName:              r.GuestName,
		GuaranteeJustification: r.GuaranteeJustification,
	}
}

func toReservationGovernanceDTO(r *reservation.Reservation) reservationGovernanceDTO {
	return reservationGovernanceDTO{
		ID:         r.ID,
		PropertyID: r.PropertyID,
		Status:     string(r.Status),
		Checkin:    r.Checkin.Format("2006-01-02"),
		Checkout:   r.Checkout.Format("2006-01-02"),
		RoomTypeID: r.RoomTypeID,
		RoomID:     r.RoomID,
	}
}

// writeReservation picks the PII-redacted or full DTO by the caller's
// resolved role (Open Questions decision 1).
func writeReservation(w http.ResponseWriter, r *reservation.Reservation, role authz.Role) {
	if !authz.Meets(role, authz.RoleStaff) {
		writeJSON(w, http.StatusOK, toReservationGovernanceDTO(r))
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTO(r))
}

type createReservationRequest struct {
	RoomTypeID string  `json:"room_type_id"`
	Checkin    string  `json:"checkin"`
	Checkout   string  `json:"checkout"`
	TotalCents int64   `json:"total_cents"`
	GuestID    *string `json:"guest_id"`
	GuestName  string  `json:"guest_name"`
}

// handleCreateReservation implements staff POST /reservations: a
// manual reservation starting in pending_payment, inventory booked in
// the same transaction (spec §4.6).
func (h *reservationHandlers) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	checkin, checkout, err := parseStayDates(req.Checkin, req.Checkout)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.deps.Reservations.CreateManual(r.Context(), reservation.CreateManualInput{
		PropertyID: propertyID(r),
		RoomTypeID: req.RoomTypeID,
		Checkin:    checkin,
		Checkout:   checkout,
		TotalCents: req.TotalCents,
		GuestID:    req.GuestID,
		GuestName:  req.GuestName,
		CreatedBy:  authz.UserID(r.Context()),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeReservation(w, res, authz.RoleFromContext(r.Context()))
}

type statusActionRequest struct {
	To                    string `json:"to"`
	GuaranteeJustification string `json:"guarantee_justification"`
}

// handlePatchStatus implements PATCH /reservations/{id}/status: the
// manual-confirm path (spec §4.6 edge case 6), requiring
// guarantee_justification when transitioning to confirmed without a
// hold-originated payment.
func (h *reservationHandlers) handlePatchStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req statusActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.To != string(reservation.StatusConfirmed) {
		writeError(w, apperr.Validation(apperr.CodeInvalidInput, "only manual confirm is supported via this endpoint"))
		return
	}
	if req.GuaranteeJustification == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"code": apperr.CodeInvalidInput, "message": "guarantee_justification is required"})
		return
	}
	if err := h.deps.Reservations.ConfirmManual(r.Context(), propertyID(r), id, authz.UserID(r.Context()), req.GuaranteeJustification); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleCheckIn implements POST /reservations/{id}/actions/check-in.
func (h *reservationHandlers) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.deps.Reservations.CheckIn(r.Context(), propertyID(r), id, authz.UserID(r.Context()), time.Now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type checkOutRequest struct {
	FolioBalanceCents int64 `json:"folio_balance_cents"`
}

// handleCheckOut implements POST /reservations/{id}/actions/check-out.
func (h *reservationHandlers) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req checkOutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.deps.Reservations.CheckOut(r.Context(), propertyID(r), id, req.FolioBalanceCents); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleCancel implements POST /reservations/{id}/actions/cancel.
func (h *reservationHandlers) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.deps.Reservations.Cancel(r.Context(), propertyID(r), id, authz.UserID(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type assignRoomRequest struct {
	RoomID string `json:"room_id"`
}

// handleAssignRoom implements POST /reservations/{id}/actions/assign-room.
func (h *reservationHandlers) handleAssignRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req assignRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.deps.Reservations.AssignRoom(r.Context(), propertyID(r), id, req.RoomID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleGetReservation implements GET /reservations/{id}.
func (h *reservationHandlers) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	row := h.deps.Store.Pool.QueryRow(r.Context(), `SELECT `+reservationColumns+` FROM reservations WHERE property_id = $1 AND id = $2`, propertyID(r), id)
	res, err := scanReservation(row)
	if err != nil {
		writeError(w, err)
		return
	}
	writeReservation(w, res, authz.RoleFromContext(r.Context()))
}

// handleListReservations implements GET /reservations: up to 200 of
// the property's reservations, latest checkin first. No status or date
// filters are applied.
func (h *reservationHandlers) handleListReservations(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Store.Pool.Query(r.Context(), `SELECT `+reservationColumns+` FROM reservations WHERE property_id = $1 ORDER BY checkin DESC LIMIT 200`, propertyID(r))
	if err != nil {
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "reservation list query failed", err))
		return
	}
	defer rows.Close()

	role := authz.RoleFromContext(r.Context())
	redact := !authz.Meets(role, authz.RoleStaff)
	out := make([]any, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			writeError(w, err)
			return
		}
		if redact {
			out = append(out, toReservationGovernanceDTO(res))
		} else {
			out = append(out, toReservationDTO(res))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func parseStayDates(checkin, checkout string) (time.Time, time.Time, error) {
	ci, err := time.Parse("2006-01-02", checkin)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validation(apperr.CodeInvalidInput, "checkin must be YYYY-MM-DD")
	}
	co, err := time.Parse("2006-01-02", checkout)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validation(apperr.CodeInvalidInput, "checkout must be YYYY-MM-DD")
	}
	if !co.After(ci) {
		return time.Time{}, time.Time{}, apperr.Validation(apperr.CodeInvalidInput, "checkout must be after checkin")
	}
	return ci, co, nil
}
