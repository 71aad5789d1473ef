package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/inventory"
	"github.com/hotelly/hotelly/internal/payment"
	"github.com/hotelly/hotelly/internal/tasks"
)

type holdHandlers struct {
	deps *Deps
}

func newHoldHandlers(deps *Deps) *holdHandlers {
	return &holdHandlers{deps: deps}
}

type holdDTO struct {
	ID           string  `json:"id"`
	PropertyID   string  `json:"property_id"`
	RoomTypeID   string  `json:"room_type_id"`
	Checkin      string  `json:"checkin"`
	Checkout     string  `json:"checkout"`
	AdultCount   int     `json:"adult_count"`
	ChildrenAges []int   `json:"children_ages"`
	TotalCents   int64   `json:"total_cents"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
	ExpiresAt    string  `json:"expires_at"`
	GuestName    string  `json:"guest_name,omitempty"`
	Email        *string `json:"email,omitempty"`
	Phone        *string `json:"phone,omitempty"`
}

func toHoldDTO(h *inventory.Hold) holdDTO {
	return holdDTO{
		ID:           h.ID,
		PropertyID:   h.PropertyID,
		RoomTypeID:   h.RoomTypeID,
		Checkin:      h.Checkin.Format("2006-01-02"),
		Checkout:     h.Checkout.Format("2006-01-02"),
		AdultCount:   h.AdultCount,
		ChildrenAges: h.ChildrenAges,
		TotalCents:   h.TotalCents,
		Currency:     h.Currency,
		Status:       string(h.Status),
		ExpiresAt:    h.ExpiresAt.Format(time.RFC3339),
		GuestName:    h.GuestName,
		Email:        h.Email,
		Phone:        h.Phone,
	}
}

type createHoldRequest struct {
	ConversationID *string `json:"conversation_id"`
	RoomTypeID     string  `json:"room_type_id"`
	Checkin        string  `json:"checkin"`
	Checkout       string  `json:"checkout"`
	AdultCount     int     `json:"adult_count"`
	ChildrenAges   []int   `json:"children_ages"`
	TotalCents     int64   `json:"total_cents"`
	Currency       string  `json:"currency"`
	TTLMinutes     int     `json:"ttl_minutes"`
	GuestName      string  `json:"guest_name"`
	Email          *string `json:"email"`
	Phone          *string `json:"phone"`
}

const defaultHoldTTL = 30 * time.Minute

// handleCreateHold implements POST /holds, honoring the client-supplied
// Idempotency-Key header as the hold's create_idempotency_key (spec
// §4.4, §6 "client-supplied on mutating endpoints").
func (h *holdHandlers) handleCreateHold(w http.ResponseWriter, r *http.Request) {
	var req createHoldRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.AdultCount < 1 || req.AdultCount > 4 {
		writeError(w, apperr.Validation(apperr.CodeInvalidInput, "adult_count must be between 1 and 4"))
		return
	}
	checkin, checkout, err := parseStayDates(req.Checkin, req.Checkout)
	if err != nil {
		writeError(w, err)
		return
	}
	ttl := defaultHoldTTL
	if req.TTLMinutes > 0 {
		ttl = time.Duration(req.TTLMinutes) * time.Minute
	}

	hold, err := h.deps.Inventory.CreateHold(r.Context(), inventory.CreateHoldInput{
		PropertyID:           propertyID(r),
		ConversationID:       req.ConversationID,
		RoomTypeID:           req.RoomTypeID,
		Checkin:              checkin,
		Checkout:             checkout,
		AdultCount:           req.AdultCount,
		ChildrenAges:         req.ChildrenAges,
		TotalCents:           req.TotalCents,
		Currency:             req.Currency,
		TTL:                  ttl,
		CreateIdempotencyKey: r.Header.Get("Idempotency-Key"),
		GuestName:            req.GuestName,
		Email:                req.Email,
		Phone:                req.Phone,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	expireTaskID := tasks.ExpireHoldTaskID(hold.ID)
	expirePayload, _ := json.Marshal(map[string]string{"property_id": hold.PropertyID, "hold_id": hold.ID})
	if _, err := h.deps.TaskClient.Enqueue(r.Context(), expireTaskID, h.deps.Cfg.TaskAudience+"/tasks/expire-hold", expirePayload); err != nil {
		h.deps.Logger.Warn().Err(err).Str("hold_id", hold.ID).Msg("failed to enqueue expire-hold task, hold will rely on a later sweep")
	}

	writeJSON(w, http.StatusCreated, toHoldDTO(hold))
}

// handleCancelHold implements POST /holds/{id}/actions/cancel. Staff
// cancellation never creates a pending_refund on its own — refunds
// only arise from the convert/cancel path when a captured payment
// exists, which this dashboard action does not touch.
func (h *holdHandlers) handleCancelHold(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.deps.Inventory.CancelHold(r.Context(), propertyID(r), id, nil); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type checkoutSessionDTO struct {
	URL string `json:"url"`
}

// handleCreateCheckout implements POST /holds/{id}/actions/create-checkout:
// it looks up the hold's own total and currency so the checkout amount
// can never diverge from what the guest was quoted, then hands off to
// the configured payment provider (spec §4.5).
func (h *holdHandlers) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	prop := propertyID(r)

	var conversationID *string
	var totalCents int64
	var currency string
	err := h.deps.Store.Pool.QueryRow(r.Context(),
		`SELECT conversation_id, total_cents, currency FROM holds WHERE property_id = $1 AND id = $2 AND status = 'active'`,
		prop, id).Scan(&conversationID, &totalCents, &currency)
	if err != nil {
		writeError(w, apperr.Permanent(apperr.CodeNotFound, "hold not found or not active"))
		return
	}

	provider, ok := h.deps.Payments.Get("stripe")
	if !ok {
		writeError(w, apperr.Permanent(apperr.CodeMissingConfig, "stripe provider not configured"))
		return
	}

	convID := ""
	if conversationID != nil {
		convID = *conversationID
	}
	sess, err := payment.CreateCheckout(r.Context(), h.deps.Store.Pool, provider, payment.CheckoutSessionInput{
		PropertyID:     prop,
		HoldID:         id,
		ConversationID: convID,
		AmountCents:    totalCents,
		Currency:       currency,
		SuccessURL:     h.deps.Cfg.CheckoutSuccessURL,
		CancelURL:      h.deps.Cfg.CheckoutCancelURL,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutSessionDTO{URL: sess.URL})
}
