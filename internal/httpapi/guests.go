package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/store"
)

type guestHandlers struct {
	deps *Deps
}

func newGuestHandlers(deps *Deps) *guestHandlers {
	return &guestHandlers{deps: deps}
}

type guestDTO struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// handleListGuests implements GET /guests.
func (h *guestHandlers) handleListGuests(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Store.Pool.Query(r.Context(), `SELECT id, name, email, phone FROM guests WHERE property_id = $1 ORDER BY created_at DESC LIMIT 200`, propertyID(r))
	if err != nil {
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "guests query failed", err))
		return
	}
	defer rows.Close()

	out := make([]guestDTO, 0)
	for rows.Next() {
		var g guestDTO
		if err := rows.Scan(&g.ID, &g.Name, &g.Email, &g.Phone); err != nil {
			writeError(w, apperr.Transient(apperr.CodeTransientFailure, "guests scan failed", err))
			return
		}
		out = append(out, g)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetGuest implements GET /guests/{id}.
func (h *guestHandlers) handleGetGuest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var g guestDTO
	g.ID = id
	err := h.deps.Store.Pool.QueryRow(r.Context(), `SELECT name, email, phone FROM guests WHERE property_id = $1 AND id = $2`, propertyID(r), id).
		Scan(&g.Name, &g.Email, &g.Phone)
	if err != nil {
		if store.IsNoRows(err) {
			writeError(w, apperr.Permanent(apperr.CodeNotFound, "guest not found"))
			return
		}
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "guests query failed", err))
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type patchGuestRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// handlePatchGuest implements PATCH /guests/{id}: staff correcting a
// profile that the convert path populated from a payment provider.
func (h *guestHandlers) handlePatchGuest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req patchGuestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tag, err := h.deps.Store.Pool.Exec(r.Context(), `
		UPDATE guests SET
			name = COALESCE($1, name),
			email = COALESCE($2, email),
			phone = COALESCE($3, phone)
		WHERE property_id = $4 AND id = $5`,
		req.Name, req.Email, req.Phone, propertyID(r), id)
	if err != nil {
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "guests update failed", err))
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(w, apperr.Permanent(apperr.CodeNotFound, "guest not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
