/*
errors.go - Centralized error types for the validation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every rejected write carries exactly one *Rejection whose message is
  surfaced verbatim to the caller. The Kind places it in the taxonomy.

ERROR CATEGORIES:
  1. decode      - Payload does not match the entity schema
  2. format      - Value present but violates a shape/range rule
  3. transition  - Status change not permitted from the current state
  4. consistency - Declared aggregate does not reconcile with its parts
  5. integrity   - Uniqueness violated, reference missing, or store failure
  6. policy      - Amount-tiered business rule unmet
  7. routing     - Collection has no registered pipeline

USAGE:
  Checks return rejections through the constructors:

    return generic.Rejectf(generic.KindFormat, "paymentMethod",
        "Invalid payment method '%s'. Must be one of: %s", m, allowed)

  Callers classify with errors.Is against the sentinels:

    if errors.Is(err, generic.ErrIntegrity) { ... }

SEE ALSO:
  - pipeline.go: Fail-fast execution that returns the first rejection
  - store.go: Store errors (not found, version conflict)
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrDecode      = errors.New("malformed payload")
	ErrFormat      = errors.New("field format violation")
	ErrTransition  = errors.New("illegal status transition")
	ErrConsistency = errors.New("numeric inconsistency")
	ErrIntegrity   = errors.New("integrity violation")
	ErrPolicy      = errors.New("business rule violation")
	ErrRouting     = errors.New("unknown collection")

	// ErrDocumentNotFound is returned by stores when a key has no record.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrVersionConflict is returned when a compare-and-set commit observes
	// a version other than the one the write was validated against.
	ErrVersionConflict = errors.New("version conflict")
)

// Kind classifies a rejection.
type Kind string

const (
	KindDecode      Kind = "decode"
	KindFormat      Kind = "format"
	KindTransition  Kind = "transition"
	KindConsistency Kind = "consistency"
	KindIntegrity   Kind = "integrity"
	KindPolicy      Kind = "policy"
	KindRouting     Kind = "routing"
)

var kindSentinels = map[Kind]error{
	KindDecode:      ErrDecode,
	KindFormat:      ErrFormat,
	KindTransition:  ErrTransition,
	KindConsistency: ErrConsistency,
	KindIntegrity:   ErrIntegrity,
	KindPolicy:      ErrPolicy,
	KindRouting:     ErrRouting,
}

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// Rejection is the single explanatory outcome of a refused write.
type Rejection struct {
	Kind    Kind
	Field   string // offending field, empty when the rule spans the record
	Message string
	Cause   error // underlying decode or store error, if any
}

func (r *Rejection) Error() string {
	return r.Message
}

func (r *Rejection) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := kindSentinels[r.Kind]; ok {
		errs = append(errs, s)
	}
	if r.Cause != nil {
		errs = append(errs, r.Cause)
	}
	return errs
}

// Reject builds a rejection with a fixed message.
func Reject(kind Kind, field, message string) error {
	return &Rejection{Kind: kind, Field: field, Message: message}
}

// Rejectf builds a rejection with a formatted message.
func Rejectf(kind Kind, field, format string, args ...any) error {
	return &Rejection{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// RejectCause builds a rejection that also wraps the error that caused it.
func RejectCause(kind Kind, field string, cause error, format string, args ...any) error {
	return &Rejection{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// AsRejection extracts the rejection from err, if there is one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// KindOf returns the rejection kind of err, or "" when err is not a rejection.
func KindOf(err error) Kind {
	if r, ok := AsRejection(err); ok {
		return r.Kind
	}
	return ""
}

// IsRejection reports whether err is a normal rejected-write outcome.
func IsRejection(err error) bool {
	_, ok := AsRejection(err)
	return ok
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return IsRejection(err)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDocumentNotFound)
}
