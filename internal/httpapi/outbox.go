package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hotelly/hotelly/internal/apperr"
)

type outboxHandlers struct {
	deps *Deps
}

func newOutboxHandlers(deps *Deps) *outboxHandlers {
	return &outboxHandlers{deps: deps}
}

type outboxEventDTO struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
	Status     *string         `json:"status,omitempty"`
	LastError  *string         `json:"last_error,omitempty"`
	SentAt     *time.Time      `json:"sent_at,omitempty"`
}

// handleListOutbox implements GET /outbox: a paginated read of
// outbox_events joined to their delivery state, for an operator
// confirming whether a WhatsApp reply actually went out.
func (h *outboxHandlers) handleListOutbox(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Store.Pool.Query(r.Context(), `
		SELECT e.id, e.kind, e.payload, e.created_at, d.status, d.last_error, d.sent_at
		FROM outbox_events e
		LEFT JOIN outbox_deliveries d ON d.property_id = e.property_id AND d.outbox_event_id = e.id
		WHERE e.property_id = $1
		ORDER BY e.created_at DESC
		LIMIT 200`,
		propertyID(r))
	if err != nil {
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "outbox query failed", err))
		return
	}
	defer rows.Close()

	out := make([]outboxEventDTO, 0)
	for rows.Next() {
		var d outboxEventDTO
		if err := rows.Scan(&d.ID, &d.Kind, &d.Payload, &d.CreatedAt, &d.Status, &d.LastError, &d.SentAt); err != nil {
			writeError(w, apperr.Transient(apperr.CodeTransientFailure, "outbox scan failed", err))
			return
		}
		out = append(out, d)
	}
	writeJSON(w, http.StatusOK, out)
}
