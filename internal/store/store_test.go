package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/hotelly/hotelly/internal/apperr"
)

func TestClassifySerializationFailureIsTransient(t *testing.T) {
	pgErr := &pgconn.PgError{Code: sqlStateSerializationFailure}
	out := classify(pgErr)

	var ae *apperr.Error
	assert.True(t, errors.As(out, &ae))
	assert.Equal(t, apperr.ClassTransient, ae.Class)
}

func TestClassifyExclusionViolationIsInvariant(t *testing.T) {
	pgErr := &pgconn.PgError{Code: sqlStateExclusionViolation, ConstraintName: "reservations_no_room_overlap"}
	out := classify(pgErr)

	var ae *apperr.Error
	assert.True(t, errors.As(out, &ae))
	assert.Equal(t, apperr.ClassInvariant, ae.Class)
	assert.Equal(t, apperr.CodeExclusionViolation, ae.Code)
}

func TestClassifyCheckViolationIsInvariant(t *testing.T) {
	pgErr := &pgconn.PgError{Code: sqlStateCheckViolation, ConstraintName: "ari_inventory_nonnegative"}
	out := classify(pgErr)

	var ae *apperr.Error
	assert.True(t, errors.As(out, &ae))
	assert.Equal(t, apperr.ClassInvariant, ae.Class)
	assert.Equal(t, apperr.CodeNegativeInventory, ae.Code)
}

func TestClassifyUniqueViolationIsConflict(t *testing.T) {
	pgErr := &pgconn.PgError{Code: sqlStateUniqueViolation, ConstraintName: "idempotency_keys_key_unique"}
	out := classify(pgErr)

	var ae *apperr.Error
	assert.True(t, errors.As(out, &ae))
	assert.Equal(t, apperr.ClassConflict, ae.Class)
	assert.Equal(t, apperr.CodeIdempotentReplay, ae.Code)
}

func TestClassifyPassesThroughAppErr(t *testing.T) {
	original := apperr.Validation(apperr.CodeInvalidDates, "checkout before checkin")
	out := classify(original)
	assert.Same(t, original, out)
}

func TestClassifyUnknownErrorIsTransient(t *testing.T) {
	out := classify(errors.New("connection refused"))

	var ae *apperr.Error
	assert.True(t, errors.As(out, &ae))
	assert.Equal(t, apperr.ClassTransient, ae.Class)
}
