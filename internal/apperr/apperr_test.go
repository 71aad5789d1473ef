package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusByClass(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation(CodeInvalidDates, "bad dates"), http.StatusBadRequest},
		{"unauthorized", Unauthorized("no token"), http.StatusUnauthorized},
		{"forbidden", Forbidden("needs manager"), http.StatusForbidden},
		{"conflict", Conflict(CodeStateRefused, "already confirmed"), http.StatusConflict},
		{"idempotent_replay", Conflict(CodeIdempotentReplay, "replay"), http.StatusOK},
		{"transient", Transient(CodeTransientFailure, "db deadlock", nil), http.StatusInternalServerError},
		{"permanent", Permanent(CodeContactRefNotFound, "vault empty"), http.StatusOK},
		{"invariant", Invariant(CodeNegativeInventory, "inv_held negative", nil), http.StatusInternalServerError},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, HTTPStatus(c.err))
		})
	}
}

func TestIsTerminalAndTransient(t *testing.T) {
	assert.True(t, IsTerminal(Permanent(CodeSignatureInvalid, "bad sig")))
	assert.True(t, IsTerminal(Conflict(CodeIdempotentReplay, "replay")))
	assert.False(t, IsTerminal(Transient(CodeTransientFailure, "deadlock", nil)))

	assert.True(t, IsTransient(Transient(CodeTransientFailure, "deadlock", nil)))
	assert.False(t, IsTransient(Permanent(CodeSignatureInvalid, "bad sig")))
	// unclassified runtime errors are retried rather than dropped
	assert.True(t, IsTransient(errors.New("unexpected panic recover")))
}

func TestIsInvariantViolation(t *testing.T) {
	assert.True(t, IsInvariantViolation(Invariant(CodeExclusionViolation, "overlap", nil)))
	assert.False(t, IsInvariantViolation(Validation(CodeInvalidInput, "bad")))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transient(CodeTransientFailure, "provider call failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestWithMeta(t *testing.T) {
	err := Validation(CodeOutOfRangeOccupancy, "too many adults").WithMeta(map[string]any{"max": 4})
	assert.Equal(t, 4, err.Meta["max"])
}
