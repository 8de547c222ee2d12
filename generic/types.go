/*
Package generic provides the domain-agnostic write-validation engine.

PURPOSE:
  Every attempted create-or-update of a record is intercepted before it is
  committed. The engine decides accept or reject for that single write and
  never mutates external state itself. Collection packages (finance, roster)
  supply typed record shapes and ordered checks; this package supplies the
  machinery they share.

KEY CONCEPTS IN THIS FILE (types.go):
  - Document:     A stored record (collection, key, JSON payload, version)
  - WriteAttempt: The proposed payload plus, for updates, the previous one
  - Money helpers over decimal.Decimal

DESIGN PRINCIPLES:
  1. Precision: Amounts are decimal.Decimal, never float64
  2. Fail fast: The first failing check is the only reported reason
  3. No side effects: Validation only reads from the store

USAGE:
  d := generic.NewDispatcher()
  finance.Register(d, finance.Deps{Reader: store, Clock: clock, Policy: finance.DefaultPolicy()})
  err := d.Validate(ctx, generic.WriteAttempt{
      Collection: "expenses",
      Key:        "exp-1",
      Proposed:   payload,
  })

SEE ALSO:
  - pipeline.go: Check composition and dispatch
  - statemachine.go: Table-driven status transitions
  - query.go: Typed uniqueness and reference predicates
*/
package generic

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DOCUMENT - A stored record
// =============================================================================

// Document is one record as the store holds it.
type Document struct {
	Collection string
	Key        string
	Data       json.RawMessage
	Version    int64
	UpdatedAt  time.Time
}

// WriteAttempt is a single proposed create-or-update.
// Previous is nil on create.
type WriteAttempt struct {
	Collection string
	Key        string
	Proposed   []byte
	Previous   []byte
}

// IsCreate reports whether the attempt has no previously committed record.
func (w WriteAttempt) IsCreate() bool {
	return len(w.Previous) == 0
}

// =============================================================================
// MONEY
// =============================================================================

// Tolerance is the largest difference at which two currency amounts are
// considered equal.
var Tolerance = decimal.NewFromFloat(0.01)

var precisionDrift = decimal.NewFromFloat(0.001)

// HasCentPrecision reports whether d survives rounding to two decimal places
// without drifting by more than 0.001.
func HasCentPrecision(d decimal.Decimal) bool {
	return d.Sub(d.Round(2)).Abs().LessThanOrEqual(precisionDrift)
}

// Naira formats an amount with two decimals, as quoted in messages.
func Naira(d decimal.Decimal) string {
	return "₦" + d.StringFixed(2)
}

// MustDecimal parses s or panics. For constants only.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
