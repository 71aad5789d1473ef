// Package apperr implements Hotelly's tagged-result error taxonomy
// (spec §7): every failure is classified into one of six classes, and
// that classification, not a type switch on a Go error chain, drives
// both the HTTP status written to the caller and the retry contract
// task handlers expose to the queue. Errors carry a short stable code
// and optional structured meta; they are never logged with stack
// traces or payload bodies.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Class is one of the six error classes from spec §7.
type Class string

const (
	ClassValidation  Class = "validation"
	ClassAuth        Class = "authorization"
	ClassConflict    Class = "conflict"
	ClassTransient   Class = "transient"
	ClassPermanent   Class = "permanent"
	ClassInvariant   Class = "invariant_violation"
)

// Error is Hotelly's tagged result: a stable code, the class it
// belongs to, a human message, and optional structured meta. It
// implements the error interface so it composes with errors.Is/As and
// fmt.Errorf's %w, but call sites that need to branch on class should
// use As, not string matching on Error().
type Error struct {
	Class   Class
	Code    string
	Message string
	Meta    map[string]any
	Err     error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps an error's class and code onto the status spec §7
// requires. Unknown errors (not constructed via this package) default
// to 500 transient, matching the "generic runtime error" case.
func HTTPStatus(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Class {
	case ClassValidation:
		return http.StatusBadRequest
	case ClassAuth:
		if ae.Code == CodeForbidden {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case ClassConflict:
		if ae.Code == CodeIdempotentReplay {
			return http.StatusOK
		}
		return http.StatusConflict
	case ClassTransient:
		return http.StatusInternalServerError
	case ClassPermanent:
		return http.StatusOK // task contract: terminal success response, see IsTerminal
	case ClassInvariant:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// IsTerminal reports whether a task handler should report this error
// to the queue as a terminal (non-retryable) outcome rather than a
// transient failure the queue should retry (spec §4.8, §7).
func IsTerminal(err error) bool {
	var ae *Error
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.Class {
	case ClassPermanent, ClassConflict, ClassValidation, ClassAuth:
		return true
	default:
		return false
	}
}

// IsTransient reports whether the queue should retry this task.
func IsTransient(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Class == ClassTransient
	}
	// Unclassified errors are treated as transient: spec §7 prefers
	// retrying an unknown runtime error over silently dropping work.
	return true
}

// IsInvariantViolation reports an operational-critical failure (spec
// §7 SEV0: exclusion-constraint hit at runtime, negative inventory
// observation) that must stop the affected path, not just surface an
// error code.
func IsInvariantViolation(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Class == ClassInvariant
}

// Stable error codes referenced across packages.
const (
	CodeInvalidInput      = "invalid_input"
	CodeOutOfRangeOccupancy = "out_of_range_occupancy"
	CodeInvalidDates      = "invalid_dates"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeIdempotentReplay  = "idempotent_replay"
	CodeStateRefused      = "state_refused"
	CodeNoInventory       = "no_inventory"
	CodeRoomNotClean      = "room_not_clean"
	CodeTransientFailure  = "transient_failure"
	CodeSignatureInvalid  = "signature_invalid"
	CodeMissingConfig     = "missing_config"
	CodeContactRefNotFound = "contact_ref_not_found"
	CodeProviderRejected  = "provider_rejected"
	CodeSchemaMismatch    = "schema_mismatch"
	CodeExclusionViolation = "exclusion_violation"
	CodeNegativeInventory = "negative_inventory"
	CodeNotFound          = "not_found"
	CodeAudienceMismatch  = "audience_mismatch"
)

// Validation constructs a ClassValidation error (400/422, no side
// effect).
func Validation(code, message string) *Error {
	return &Error{Class: ClassValidation, Code: code, Message: message}
}

// Unauthorized constructs a ClassAuth error for a missing or invalid
// token (401).
func Unauthorized(message string) *Error {
	return &Error{Class: ClassAuth, Code: CodeUnauthorized, Message: message}
}

// Forbidden constructs a ClassAuth error for an authenticated caller
// lacking the required role (403).
func Forbidden(message string) *Error {
	return &Error{Class: ClassAuth, Code: CodeForbidden, Message: message}
}

// Conflict constructs a ClassConflict error: a state-machine refusal
// or a unique-violation surfaced on replay (409, unless the code is
// CodeIdempotentReplay which maps to 200 with the cached body).
func Conflict(code, message string) *Error {
	return &Error{Class: ClassConflict, Code: code, Message: message}
}

// Transient constructs a ClassTransient error: DB serialization or
// deadlock, provider 5xx/429, network failure. Task contexts report
// this as HTTP 500 so the queue retries.
func Transient(code, message string, cause error) *Error {
	return &Error{Class: ClassTransient, Code: code, Message: message, Err: cause}
}

// Permanent constructs a ClassPermanent error: signature invalid,
// missing config, contact_ref_not_found, provider 4xx (non-429),
// schema mismatch. Terminal; task contexts report this as 200 with
// terminal:true rather than retrying.
func Permanent(code, message string) *Error {
	return &Error{Class: ClassPermanent, Code: code, Message: message}
}

// Invariant constructs a ClassInvariant error: an exclusion-constraint
// hit at runtime or a negative inventory observation. SEV0 — callers
// must stop the affected ingress path and alert, not merely respond.
func Invariant(code, message string, meta map[string]any) *Error {
	return &Error{Class: ClassInvariant, Code: code, Message: message, Meta: meta}
}

// WithMeta attaches structured meta to an error and returns it for
// chaining.
func (e *Error) WithMeta(meta map[string]any) *Error {
	e.Meta = meta
	return e
}
