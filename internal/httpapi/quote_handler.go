package httpapi

import (
	"net/http"

	"github.com/hotelly/hotelly/internal/quote"
)

type quoteHandlers struct {
	deps *Deps
}

func newQuoteHandlers(deps *Deps) *quoteHandlers {
	return &quoteHandlers{deps: deps}
}

type quoteRequest struct {
	RoomTypeID   string `json:"room_type_id"`
	Checkin      string `json:"checkin"`
	Checkout     string `json:"checkout"`
	AdultCount   int    `json:"adult_count"`
	ChildrenAges []int  `json:"children_ages"`
}

type quoteResponse struct {
	Ok         bool           `json:"ok"`
	TotalCents int64          `json:"total_cents,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// handleQuote implements POST /reservations/actions/quote: a pure
// read that never mutates inventory, so a quote can be recomputed as
// many times as the conversation needs before a hold commits it.
func (h *quoteHandlers) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	checkin, checkout, err := parseStayDates(req.Checkin, req.Checkout)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.deps.Quote.Quote(r.Context(), quote.Input{
		PropertyID:   propertyID(r),
		RoomTypeID:   req.RoomTypeID,
		Checkin:      checkin,
		Checkout:     checkout,
		AdultCount:   req.AdultCount,
		ChildrenAges: req.ChildrenAges,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if !result.Ok {
		writeJSON(w, http.StatusOK, quoteResponse{Ok: false, Reason: string(result.Reason), Meta: result.Meta})
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{Ok: true, TotalCents: result.TotalCents})
}
