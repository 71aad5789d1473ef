// Package middleware implements the chi middleware chain shared by both
// the ingress and worker routers.
package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CorrelationIDHeader is the header name propagated end-to-end across
// ingress, the task queue, and the worker (spec §6).
const CorrelationIDHeader = "X-Correlation-Id"

// EventSourceHeader marks a request as originating from the task queue
// rather than a directly-dialed external caller (spec §6).
const EventSourceHeader = "X-Event-Source"

// CorrelationID ensures every request carries an X-Correlation-Id,
// generating one if the caller didn't supply it, and echoes it back on
// the response so a caller that didn't set one can still correlate logs.
type CorrelationID struct {
	logger zerolog.Logger
}

// NewCorrelationID creates the correlation-id middleware.
func NewCorrelationID(logger zerolog.Logger) *CorrelationID {
	return &CorrelationID{logger: logger}
}

// Handler returns the HTTP middleware handler.
func (c *CorrelationID) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(CorrelationIDHeader, id)
		}
		w.Header().Set(CorrelationIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// CorrelationIDFromRequest reads the correlation id set by Handler.
func CorrelationIDFromRequest(r *http.Request) string {
	return r.Header.Get(CorrelationIDHeader)
}
