package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/authz"
	"github.com/hotelly/hotelly/internal/store"
)

type paymentHandlers struct {
	deps *Deps
}

func newPaymentHandlers(deps *Deps) *paymentHandlers {
	return &paymentHandlers{deps: deps}
}

type paymentDTO struct {
	ID               int64     `json:"id"`
	Provider         string    `json:"provider"`
	ProviderObjectID string    `json:"provider_object_id"`
	HoldID           *string   `json:"hold_id,omitempty"`
	Status           string    `json:"status"`
	AmountCents      int64     `json:"amount_cents"`
	Currency         string    `json:"currency"`
	CreatedAt        time.Time `json:"created_at"`
}

// handleListPayments implements GET /payments: the raw payment
// provider ledger for a property, independent of which reservation
// (if any) a payment eventually converted into.
func (h *paymentHandlers) handleListPayments(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Store.Pool.Query(r.Context(), `
		SELECT id, provider, provider_object_id, hold_id, status, amount_cents, currency, created_at
		FROM payments WHERE property_id = $1 ORDER BY created_at DESC LIMIT 200`,
		propertyID(r))
	if err != nil {
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "payments query failed", err))
		return
	}
	defer rows.Close()

	out := make([]paymentDTO, 0)
	for rows.Next() {
		var d paymentDTO
		if err := rows.Scan(&d.ID, &d.Provider, &d.ProviderObjectID, &d.HoldID, &d.Status, &d.AmountCents, &d.Currency, &d.CreatedAt); err != nil {
			writeError(w, apperr.Transient(apperr.CodeTransientFailure, "payments scan failed", err))
			return
		}
		out = append(out, d)
	}
	writeJSON(w, http.StatusOK, out)
}

type pendingRefundDTO struct {
	ID            int64      `json:"id"`
	ReservationID string     `json:"reservation_id"`
	AmountCents   int64      `json:"amount_cents"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ApprovedBy    *string    `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
}

// handleListRefunds implements GET /payments/refunds: every refund a
// cancellation queued for manual review, newest pending first.
func (h *paymentHandlers) handleListRefunds(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Store.Pool.Query(r.Context(), `
		SELECT id, reservation_id, amount_cents, status, created_at, approved_by, approved_at
		FROM pending_refunds WHERE property_id = $1
		ORDER BY (status = 'pending') DESC, created_at DESC LIMIT 200`,
		propertyID(r))
	if err != nil {
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "refunds query failed", err))
		return
	}
	defer rows.Close()

	out := make([]pendingRefundDTO, 0)
	for rows.Next() {
		var d pendingRefundDTO
		if err := rows.Scan(&d.ID, &d.ReservationID, &d.AmountCents, &d.Status, &d.CreatedAt, &d.ApprovedBy, &d.ApprovedAt); err != nil {
			writeError(w, apperr.Transient(apperr.CodeTransientFailure, "refunds scan failed", err))
			return
		}
		out = append(out, d)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleApproveRefund implements POST /payments/refunds/{id}/approve.
// A refund only ever moves from pending to approved here: nothing in
// this system issues the refund automatically, per the decision that
// money leaving the property always requires an explicit manager
// action (Open Questions decision 3).
func (h *paymentHandlers) handleApproveRefund(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperr.Validation(apperr.CodeInvalidInput, "refund id must be numeric"))
		return
	}
	userID := authz.UserID(r.Context())

	tag, err := h.deps.Store.Pool.Exec(r.Context(), `
		UPDATE pending_refunds SET status = 'approved', approved_by = $1, approved_at = now()
		WHERE property_id = $2 AND id = $3 AND status = 'pending'`,
		userID, propertyID(r), id)
	if err != nil {
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "refund approve failed", err))
		return
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		checkErr := h.deps.Store.Pool.QueryRow(r.Context(), `SELECT true FROM pending_refunds WHERE property_id = $1 AND id = $2`, propertyID(r), id).Scan(&exists)
		if checkErr != nil && store.IsNoRows(checkErr) {
			writeError(w, apperr.Permanent(apperr.CodeNotFound, "refund not found"))
			return
		}
		writeError(w, apperr.Conflict(apperr.CodeStateRefused, "refund is not pending"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
