package finance

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/finance-gate/generic"
)

// =============================================================================
// PAYMENT - Fees received from a student
// =============================================================================

const (
	PaymentPending   generic.Status = "pending"
	PaymentConfirmed generic.Status = "confirmed"
	PaymentCancelled generic.Status = "cancelled"
	PaymentRefunded  generic.Status = "refunded"
)

// MaxFeeAllocations caps the allocation list of one payment.
const MaxFeeAllocations = 20

// FeeTypes is the allowed set for allocation fee types.
var FeeTypes = generic.Enum{
	"tuition", "uniform", "feeding", "transport", "books", "sports", "development",
	"examination", "pta", "computer", "library", "laboratory", "lesson", "other",
}

type Payment struct {
	StudentID       string          `json:"studentId"`
	StudentName     string          `json:"studentName"`
	ClassID         string          `json:"classId"`
	ClassName       string          `json:"className"`
	FeeAssignmentID string          `json:"feeAssignmentId"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethod   string          `json:"paymentMethod"`
	PaymentDate     string          `json:"paymentDate"`
	FeeAllocations  []FeeAllocation `json:"feeAllocations"`
	Reference       string          `json:"reference"`
	TransactionID   *string         `json:"transactionId,omitempty"`
	PaidBy          *string         `json:"paidBy,omitempty"`
	Status          generic.Status  `json:"status"`
	Notes           *string         `json:"notes,omitempty"`
	ReceiptURL      *string         `json:"receiptUrl,omitempty"`
	RecordedBy      string          `json:"recordedBy"`
	CreatedAt       int64           `json:"createdAt"`
	UpdatedAt       int64           `json:"updatedAt"`
}

type FeeAllocation struct {
	CategoryID   string          `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
	FeeType      string          `json:"feeType"`
	Amount       decimal.Decimal `json:"amount"`
}

func paymentNotes(p Payment) *string { return p.Notes }

// PaymentMachine is the payment lifecycle:
// pending -> {confirmed, cancelled}; confirmed -> {refunded}.
var PaymentMachine = generic.Machine[Payment]{
	Entity:  "payment",
	Plural:  "payments",
	Status:  func(p Payment) generic.Status { return p.Status },
	States:  []generic.Status{PaymentPending, PaymentConfirmed, PaymentCancelled, PaymentRefunded},
	Initial: []generic.Status{PaymentPending, PaymentConfirmed},
	Transitions: map[generic.Status][]generic.Status{
		PaymentPending:   {PaymentConfirmed, PaymentCancelled},
		PaymentConfirmed: {PaymentRefunded},
	},
	Requirements: map[generic.Status][]generic.Requirement[Payment]{
		PaymentCancelled: {
			generic.RequireReason("notes", 1,
				"Cancelled payments must include cancellation reason in notes",
				"Cancelled payments must include cancellation reason in notes", paymentNotes),
		},
		PaymentRefunded: {
			generic.RequireReason("notes", 1,
				"Refunded payments must include refund reason in notes",
				"Refunded payments must include refund reason in notes", paymentNotes),
		},
	},
}

var allocationMismatch = generic.QuotedMismatch("feeAllocations",
	"Payment amount (%s) must match sum of fee allocations (%s)")

// NewPaymentValidator builds the payments pipeline.
func NewPaymentValidator(deps Deps) *generic.Pipeline[Payment] {
	lookup := generic.Lookup{Reader: deps.Reader}
	policy := deps.Policy

	return generic.NewPipeline[Payment]("payment", deps.Clock,
		generic.Step(func(p Payment) error {
			if !p.Amount.IsPositive() {
				return generic.Reject(generic.KindFormat, "amount", "Payment amount must be greater than zero")
			}
			return generic.CentPrecision("amount", "Payment amount", p.Amount)
		}),
		func(_ context.Context, a *generic.Attempt[Payment]) error {
			if !generic.IsValidDate(a.Next.PaymentDate) {
				return generic.Reject(generic.KindFormat, "paymentDate", "Invalid payment date format. Must be YYYY-MM-DD")
			}
			if generic.DateTooFarInFuture(a.Next.PaymentDate, 7, a.Now) {
				return generic.Reject(generic.KindFormat, "paymentDate", "Payment date cannot be more than 7 days in the future")
			}
			return nil
		},
		generic.Step(func(p Payment) error {
			return PaymentMethods.Check("paymentMethod", "payment method", p.PaymentMethod)
		}),
		generic.Step(func(p Payment) error {
			if url := generic.OptionalText(p.ReceiptURL); url != "" && !generic.IsValidURL(url) {
				return generic.Reject(generic.KindFormat, "receiptUrl", "Receipt URL must start with http:// or https://")
			}
			return nil
		}),
		PaymentMachine.Check(),
		generic.Step(checkFeeAllocations),
		generic.Step(func(p Payment) error {
			return generic.Reconcile(allocationMismatch, p.Amount,
				generic.SumOf(p.FeeAllocations, func(f FeeAllocation) decimal.Decimal { return f.Amount }))
		}),
		generic.Step(func(p Payment) error {
			return generic.PaymentReference.Check("reference", p.Reference)
		}),
		func(ctx context.Context, a *generic.Attempt[Payment]) error {
			return lookup.Unique(ctx, CollectionPayments, a.Key,
				generic.Where(generic.Eq("reference", a.Next.Reference)),
				"Payment reference '"+a.Next.Reference+"' already exists")
		},
		func(ctx context.Context, a *generic.Attempt[Payment]) error {
			return lookup.Exists(ctx, CollectionFeeAssignments, a.Next.FeeAssignmentID, "feeAssignmentId",
				"Fee assignment '"+a.Next.FeeAssignmentID+"' not found")
		},
		func(ctx context.Context, a *generic.Attempt[Payment]) error {
			seen := make(map[string]bool)
			for _, alloc := range a.Next.FeeAllocations {
				if seen[alloc.CategoryID] {
					continue
				}
				seen[alloc.CategoryID] = true
				if err := lookup.Exists(ctx, CollectionFeeCategories, alloc.CategoryID, "feeAllocations",
					"Fee category '"+alloc.CategoryID+"' not found"); err != nil {
					return err
				}
			}
			return nil
		},
		generic.Step(func(p Payment) error {
			return policy.CheckMethodCeiling("paymentMethod", p.PaymentMethod, p.Amount)
		}),
	)
}

func checkFeeAllocations(p Payment) error {
	switch {
	case len(p.FeeAllocations) == 0:
		return generic.Reject(generic.KindFormat, "feeAllocations", "Payment must have at least one fee allocation")
	case len(p.FeeAllocations) > MaxFeeAllocations:
		return generic.Rejectf(generic.KindFormat, "feeAllocations",
			"Payment cannot have more than %d fee allocations", MaxFeeAllocations)
	}
	for i, alloc := range p.FeeAllocations {
		n := i + 1
		if err := generic.Required("categoryId", alloc.CategoryID); err != nil {
			return generic.Rejectf(generic.KindFormat, "feeAllocations", "Fee allocation %d must have a category ID", n)
		}
		if err := generic.Required("categoryName", alloc.CategoryName); err != nil {
			return generic.Rejectf(generic.KindFormat, "feeAllocations", "Fee allocation %d must have a category name", n)
		}
		if err := generic.Required("feeType", alloc.FeeType); err != nil {
			return generic.Rejectf(generic.KindFormat, "feeAllocations", "Fee allocation %d must have a fee type", n)
		}
		if !FeeTypes.Contains(alloc.FeeType) {
			return generic.Rejectf(generic.KindFormat, "feeAllocations",
				"Invalid fee type '%s' in allocation %d. Must be one of: %s", alloc.FeeType, n, FeeTypes)
		}
		if !alloc.Amount.IsPositive() {
			return generic.Rejectf(generic.KindFormat, "feeAllocations", "Fee allocation %d amount must be greater than 0", n)
		}
		if err := generic.CentPrecision("feeAllocations", fmt.Sprintf("Fee allocation %d amount", n), alloc.Amount); err != nil {
			return err
		}
	}
	return nil
}
