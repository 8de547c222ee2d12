/*
Package finance validates the school's money-moving collections.

PURPOSE:
  Expenses, expense categories, student fee payments, fee assignments,
  scholarships, salary runs, bank transactions, inter-account transfers
  and bank accounts. Each collection is a generic.Pipeline of ordered
  checks: amounts, status machine, references, reconciliation, foreign
  keys, then the amount-tiered business rules in Policy.

KEY CONCEPTS IN THIS FILE (policy.go):
  - Policy: the thresholds and ceilings business rules read
  - Method ceilings: cash and POS caps; above both only transfer-like
    methods are accepted
  - Documentation tiers: vendor, purpose and invoice requirements that
    scale with the expense amount

USAGE:
  d := generic.NewDispatcher()
  finance.Register(d, finance.Deps{
      Reader: store,
      Clock:  generic.SystemClock{},
      Policy: finance.DefaultPolicy(),
  })

SEE ALSO:
  - factory/policy.go: Loads a Policy from JSON or YAML
  - generic/statemachine.go: Status tables used by every collection here
*/
package finance

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/finance-gate/generic"
)

// =============================================================================
// POLICY - Amount-tiered business rules
// =============================================================================

// Policy holds every threshold the business rules read.
type Policy struct {
	// Payment-method ceilings
	CashCeiling         decimal.Decimal
	CardCeiling         decimal.Decimal
	TransferLikeMethods []string

	// Expense documentation tiers
	VendorRequiredFrom  decimal.Decimal
	PurposeRequiredFrom decimal.Decimal
	PurposeMinLength    int
	InvoiceRequiredFrom decimal.Decimal

	// Banking limits
	MaxTransferWithoutApproval decimal.Decimal
	MaxSingleTransaction       decimal.Decimal
	OverdraftAlertThreshold    decimal.Decimal
	AccountBalanceFloor        decimal.Decimal

	// ForbidSelfApproval rejects approvals by the record's own submitter.
	ForbidSelfApproval bool
}

// DefaultPolicy returns the thresholds in force when no policy file is given.
func DefaultPolicy() Policy {
	return Policy{
		CashCeiling:                decimal.NewFromInt(500_000),
		CardCeiling:                decimal.NewFromInt(2_000_000),
		TransferLikeMethods:        []string{MethodBankTransfer, MethodOnline, MethodCheque},
		VendorRequiredFrom:         decimal.NewFromInt(50_000),
		PurposeRequiredFrom:        decimal.NewFromInt(100_000),
		PurposeMinLength:           20,
		InvoiceRequiredFrom:        decimal.NewFromInt(500_000),
		MaxTransferWithoutApproval: decimal.NewFromInt(5_000_000),
		MaxSingleTransaction:       decimal.NewFromInt(1_000_000_000),
		OverdraftAlertThreshold:    decimal.NewFromInt(-10_000_000),
		AccountBalanceFloor:        decimal.NewFromInt(-50_000_000),
		ForbidSelfApproval:         true,
	}
}

// Validate checks that the thresholds are coherent.
func (p Policy) Validate() error {
	var errs []string
	if !p.CashCeiling.IsPositive() {
		errs = append(errs, "cash ceiling must be positive")
	}
	if p.CardCeiling.LessThan(p.CashCeiling) {
		errs = append(errs, fmt.Sprintf("card ceiling (%s) must be >= cash ceiling (%s)", p.CardCeiling, p.CashCeiling))
	}
	if len(p.TransferLikeMethods) == 0 {
		errs = append(errs, "at least one transfer-like method is required")
	}
	for _, m := range p.TransferLikeMethods {
		if !PaymentMethods.Contains(m) {
			errs = append(errs, fmt.Sprintf("unknown transfer-like method %q", m))
		}
	}
	if p.PurposeMinLength < 0 {
		errs = append(errs, "purpose minimum length must be non-negative")
	}
	if !p.MaxTransferWithoutApproval.IsPositive() {
		errs = append(errs, "transfer approval threshold must be positive")
	}
	if p.MaxSingleTransaction.LessThan(p.MaxTransferWithoutApproval) {
		errs = append(errs, "maximum single transaction must be >= transfer approval threshold")
	}
	if p.OverdraftAlertThreshold.IsPositive() || p.AccountBalanceFloor.IsPositive() {
		errs = append(errs, "overdraft thresholds must be zero or negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid policy:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// =============================================================================
// PAYMENT METHODS
// =============================================================================

const (
	MethodCash         = "cash"
	MethodBankTransfer = "bank_transfer"
	MethodCheque       = "cheque"
	MethodPOS          = "pos"
	MethodOnline       = "online"
)

// PaymentMethods is accepted on expenses and fee payments.
var PaymentMethods = generic.Enum{MethodCash, MethodBankTransfer, MethodCheque, MethodPOS, MethodOnline}

// SalaryMethods is accepted on salary runs.
var SalaryMethods = generic.Enum{MethodBankTransfer, MethodCash, MethodCheque}

// CheckMethodCeiling rejects amounts too large for the chosen method.
func (p Policy) CheckMethodCeiling(field, method string, amount decimal.Decimal) error {
	switch {
	case method == MethodCash && amount.GreaterThan(p.CashCeiling):
		return generic.Rejectf(generic.KindPolicy, field,
			"Cash payments cannot exceed %s. Use one of: %s", generic.Naira(p.CashCeiling), strings.Join(p.TransferLikeMethods, ", "))
	case method == MethodPOS && amount.GreaterThan(p.CardCeiling):
		return generic.Rejectf(generic.KindPolicy, field,
			"POS payments cannot exceed %s. Use one of: %s", generic.Naira(p.CardCeiling), strings.Join(p.TransferLikeMethods, ", "))
	case amount.GreaterThan(p.CardCeiling) && !generic.Enum(p.TransferLikeMethods).Contains(method):
		return generic.Rejectf(generic.KindPolicy, field,
			"Amounts above %s must be paid by one of: %s", generic.Naira(p.CardCeiling), strings.Join(p.TransferLikeMethods, ", "))
	}
	return nil
}

// CheckSelfApproval rejects approvals made by the submitter.
func (p Policy) CheckSelfApproval(field, entity string, approvedBy *string, submittedBy string) error {
	if !p.ForbidSelfApproval || approvedBy == nil || strings.TrimSpace(submittedBy) == "" {
		return nil
	}
	if strings.TrimSpace(*approvedBy) == strings.TrimSpace(submittedBy) {
		return generic.Rejectf(generic.KindPolicy, field, "Users cannot approve their own %s", entity)
	}
	return nil
}
