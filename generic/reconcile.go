package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// NUMERIC RECONCILIATION
// =============================================================================
// Declared aggregates (balance, net pay, gross pay, allocation totals) are
// recomputed from their parts and compared within Tolerance. Nothing here
// touches the store.

// Within reports whether a and b differ by at most Tolerance.
func Within(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// Sum adds amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// SumOf adds the amount of every item.
func SumOf[T any](items []T, amount func(T) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(amount(it))
	}
	return total
}

// Mismatch describes a declared aggregate that does not match its parts.
// Render turns the declared and computed values into the rejection text.
type Mismatch struct {
	Field  string
	Render func(declared, computed decimal.Decimal) string
}

// Reconcile rejects when declared and computed differ by more than Tolerance.
func Reconcile(m Mismatch, declared, computed decimal.Decimal) error {
	if Within(declared, computed) {
		return nil
	}
	return Reject(KindConsistency, m.Field, m.Render(declared, computed))
}

// QuotedMismatch renders "<label> (₦d) <verb> (₦c)" style messages.
func QuotedMismatch(field, format string) Mismatch {
	return Mismatch{
		Field: field,
		Render: func(declared, computed decimal.Decimal) string {
			return fmt.Sprintf(format, Naira(declared), Naira(computed))
		},
	}
}
