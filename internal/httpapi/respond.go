// Package httpapi wires every domain engine into the two chi routers
// (ingress, worker) and the dashboard CRUD surface spec.md §6 names.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hotelly/hotelly/internal/apperr"
)

// writeJSON writes v as a JSON body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto the {code, message, meta?} body spec §7
// requires, using apperr's class-to-status mapping. Unclassified errors
// are never given a message derived from the raw error — only apperr
// errors carry a caller-safe Message.
func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	var ae *apperr.Error
	if errors.As(err, &ae) {
		writeJSON(w, status, map[string]any{"code": ae.Code, "message": ae.Message, "meta": ae.Meta})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{"code": "transient_failure", "message": "internal error"})
}

// decodeJSON decodes the request body into v, returning a validation
// error on malformed JSON rather than letting the handler panic.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation(apperr.CodeInvalidInput, "malformed request body: "+err.Error())
	}
	return nil
}

func propertyID(r *http.Request) string {
	return r.URL.Query().Get("property_id")
}
