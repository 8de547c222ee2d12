package finance

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/finance-gate/generic"
)

// =============================================================================
// FEE ASSIGNMENT - What a student owes for one term
// =============================================================================

const (
	FeeUnpaid   = "unpaid"
	FeePartial  = "partial"
	FeePaid     = "paid"
	FeeOverpaid = "overpaid"
)

var (
	Terms               = generic.Enum{"first", "second", "third"}
	FeeStatuses         = generic.Enum{FeeUnpaid, FeePartial, FeePaid, FeeOverpaid}
	AssignmentDiscounts = generic.Enum{"percentage", "fixed_amount", "waiver"}
	hundred             = decimal.NewFromInt(100)
)

// Accepted year range for due dates and scholarship dates.
const (
	minDateYear = 1900
	maxDateYear = 2100
)

type FeeAssignment struct {
	StudentID        string           `json:"studentId"`
	StudentName      string           `json:"studentName"`
	ClassID          string           `json:"classId"`
	FeeStructureID   string           `json:"feeStructureId"`
	AcademicYear     string           `json:"academicYear"`
	Term             string           `json:"term"`
	FeeItems         []FeeItem        `json:"feeItems"`
	OriginalAmount   *decimal.Decimal `json:"originalAmount,omitempty"`
	TotalAmount      decimal.Decimal  `json:"totalAmount"`
	AmountPaid       decimal.Decimal  `json:"amountPaid"`
	Balance          decimal.Decimal  `json:"balance"`
	Status           string           `json:"status"`
	DueDate          *string          `json:"dueDate,omitempty"`
	ScholarshipID    *string          `json:"scholarshipId,omitempty"`
	ScholarshipName  *string          `json:"scholarshipName,omitempty"`
	ScholarshipType  *string          `json:"scholarshipType,omitempty"`
	ScholarshipValue *decimal.Decimal `json:"scholarshipValue,omitempty"`
	DiscountAmount   *decimal.Decimal `json:"discountAmount,omitempty"`
}

type FeeItem struct {
	CategoryID   string          `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
	Type         string          `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	AmountPaid   decimal.Decimal `json:"amountPaid"`
	Balance      decimal.Decimal `json:"balance"`
	IsMandatory  bool            `json:"isMandatory"`
	IsOptional   *bool           `json:"isOptional,omitempty"`
	IsSelected   *bool           `json:"isSelected,omitempty"`
}

// NewFeeAssignmentValidator builds the fee_assignments pipeline.
func NewFeeAssignmentValidator(deps Deps) *generic.Pipeline[FeeAssignment] {
	lookup := generic.Lookup{Reader: deps.Reader}

	return generic.NewPipeline[FeeAssignment]("fee assignment", deps.Clock,
		generic.Step(checkAssignmentFields),
		generic.Step(checkFeeItems),
		generic.Step(checkAssignmentPrecision),
		generic.Step(checkAssignmentScholarship),
		generic.Step(checkAssignmentBalance),
		generic.Step(checkAssignmentStatus),
		generic.Step(func(f FeeAssignment) error {
			if f.DueDate == nil {
				return nil
			}
			return checkISODate("dueDate", *f.DueDate)
		}),
		func(ctx context.Context, a *generic.Attempt[FeeAssignment]) error {
			return lookup.Exists(ctx, CollectionStudents, a.Next.StudentID, "studentId",
				"Student '"+a.Next.StudentID+"' not found")
		},
		func(ctx context.Context, a *generic.Attempt[FeeAssignment]) error {
			id := generic.OptionalText(a.Next.ScholarshipID)
			if id == "" {
				return nil
			}
			return lookup.Exists(ctx, CollectionScholarships, id, "scholarshipId",
				"Scholarship '"+id+"' not found")
		},
	)
}

func checkAssignmentFields(f FeeAssignment) error {
	required := []struct{ field, value string }{
		{"studentId", f.StudentID},
		{"studentName", f.StudentName},
		{"classId", f.ClassID},
		{"feeStructureId", f.FeeStructureID},
		{"academicYear", f.AcademicYear},
	}
	for _, r := range required {
		if err := generic.Required(r.field, r.value); err != nil {
			return err
		}
	}
	if !Terms.Contains(f.Term) {
		return generic.Reject(generic.KindFormat, "term", "term must be 'first', 'second', or 'third'")
	}
	return nil
}

func checkFeeItems(f FeeAssignment) error {
	if len(f.FeeItems) == 0 {
		return generic.Reject(generic.KindFormat, "feeItems", "feeItems cannot be empty")
	}
	for _, item := range f.FeeItems {
		if strings.TrimSpace(item.CategoryID) == "" {
			return generic.Reject(generic.KindFormat, "feeItems", "feeItem must have categoryId")
		}
		if item.Amount.IsNegative() {
			return generic.Rejectf(generic.KindFormat, "feeItems", "Fee item %s has negative amount", item.CategoryID)
		}
		amounts := []struct {
			label string
			value decimal.Decimal
		}{
			{"amount", item.Amount},
			{"amountPaid", item.AmountPaid},
			{"balance", item.Balance},
		}
		for _, a := range amounts {
			label := fmt.Sprintf("Fee item %s %s", item.CategoryID, a.label)
			if err := generic.CentPrecision("feeItems", label, a.value); err != nil {
				return err
			}
		}
		if item.IsMandatory && item.IsOptional != nil && *item.IsOptional {
			return generic.Rejectf(generic.KindFormat, "feeItems",
				"Fee item %s cannot be both mandatory and optional", item.CategoryID)
		}
	}
	return nil
}

// checkAssignmentPrecision rejects sub-cent money before any reconciliation
// compares it within the 0.01 tolerance.
func checkAssignmentPrecision(f FeeAssignment) error {
	amounts := []struct {
		field string
		value *decimal.Decimal
	}{
		{"totalAmount", &f.TotalAmount},
		{"amountPaid", &f.AmountPaid},
		{"balance", &f.Balance},
		{"originalAmount", f.OriginalAmount},
		{"discountAmount", f.DiscountAmount},
	}
	for _, a := range amounts {
		if a.value == nil {
			continue
		}
		if err := generic.CentPrecision(a.field, a.field, *a.value); err != nil {
			return err
		}
	}
	return nil
}

// checkAssignmentScholarship reconciles the discounted total when a
// scholarship is applied.
func checkAssignmentScholarship(f FeeAssignment) error {
	if f.ScholarshipID == nil {
		return nil
	}
	if strings.TrimSpace(*f.ScholarshipID) == "" {
		return generic.Reject(generic.KindFormat, "scholarshipId", "scholarshipId cannot be empty string")
	}
	if f.ScholarshipType == nil {
		return generic.Reject(generic.KindFormat, "scholarshipType", "scholarshipType is required when scholarshipId is present")
	}
	kind := *f.ScholarshipType
	if !AssignmentDiscounts.Contains(kind) {
		return generic.Reject(generic.KindFormat, "scholarshipType",
			"scholarshipType must be 'percentage', 'fixed_amount', or 'waiver'")
	}
	if f.DiscountAmount == nil {
		return generic.Reject(generic.KindFormat, "discountAmount", "discountAmount is required when scholarship is applied")
	}
	discount := *f.DiscountAmount
	if discount.IsNegative() {
		return generic.Reject(generic.KindFormat, "discountAmount", "discountAmount cannot be negative")
	}
	if f.OriginalAmount == nil {
		return generic.Reject(generic.KindFormat, "originalAmount", "originalAmount is required when scholarship is applied")
	}
	original := *f.OriginalAmount
	if discount.GreaterThan(original) {
		return generic.Reject(generic.KindConsistency, "discountAmount", "discountAmount cannot exceed originalAmount")
	}
	if kind == "percentage" {
		if f.ScholarshipValue == nil {
			return generic.Reject(generic.KindFormat, "scholarshipValue", "scholarshipValue is required for percentage type")
		}
		if v := *f.ScholarshipValue; v.IsNegative() || v.GreaterThan(hundred) {
			return generic.Reject(generic.KindFormat, "scholarshipValue", "scholarshipValue for percentage must be between 0 and 100")
		}
	}
	if !generic.Within(f.TotalAmount, original.Sub(discount)) {
		return generic.Rejectf(generic.KindConsistency, "totalAmount",
			"totalAmount (%s) should equal originalAmount (%s) minus discountAmount (%s)",
			f.TotalAmount, original, discount)
	}
	return nil
}

func checkAssignmentBalance(f FeeAssignment) error {
	if f.TotalAmount.IsNegative() {
		return generic.Reject(generic.KindFormat, "totalAmount", "totalAmount cannot be negative")
	}
	if f.AmountPaid.IsNegative() {
		return generic.Reject(generic.KindFormat, "amountPaid", "amountPaid cannot be negative")
	}
	if !generic.Within(f.Balance, f.TotalAmount.Sub(f.AmountPaid)) {
		return generic.Rejectf(generic.KindConsistency, "balance",
			"balance (%s) must equal totalAmount (%s) minus amountPaid (%s)",
			f.Balance, f.TotalAmount, f.AmountPaid)
	}
	return nil
}

// checkAssignmentStatus derives the status from the amounts. The rules are
// applied in order, so a zero total with nothing paid must be "unpaid". A
// balance within 0.01 of zero counts as settled, the same tolerance the
// balance reconciliation uses.
func checkAssignmentStatus(f FeeAssignment) error {
	if !FeeStatuses.Contains(f.Status) {
		return generic.Reject(generic.KindFormat, "status", "status must be 'unpaid', 'partial', 'paid', or 'overpaid'")
	}
	settled := generic.Within(f.Balance, decimal.Zero)
	switch {
	case f.AmountPaid.IsZero() && f.Status != FeeUnpaid:
		return generic.Reject(generic.KindConsistency, "status", "status must be 'unpaid' when amountPaid is 0")
	case !f.AmountPaid.IsZero() && settled && f.Status != FeePaid:
		return generic.Reject(generic.KindConsistency, "status", "status must be 'paid' when balance is 0")
	case !settled && f.Balance.IsNegative() && f.Status != FeeOverpaid:
		return generic.Reject(generic.KindConsistency, "status", "status must be 'overpaid' when balance is negative")
	case !settled && f.AmountPaid.IsPositive() && f.Balance.IsPositive() && f.Status != FeePartial:
		return generic.Reject(generic.KindConsistency, "status", "status must be 'partial' when partially paid")
	}
	return nil
}

// checkISODate enforces YYYY-MM-DD with a plausible year.
func checkISODate(field, s string) error {
	parts := strings.Split(s, "-")
	if len(s) != 10 || len(parts) != 3 {
		return generic.Rejectf(generic.KindFormat, field, "Invalid date format: %s. Expected YYYY-MM-DD", s)
	}
	labels := []string{"year", "month", "day"}
	widths := []int{4, 2, 2}
	values := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if len(p) != widths[i] || !allDigits(p) || err != nil {
			return generic.Rejectf(generic.KindFormat, field, "Invalid %s in date: %s", labels[i], s)
		}
		values[i] = n
	}
	switch year, month, day := values[0], values[1], values[2]; {
	case year < minDateYear || year > maxDateYear:
		return generic.Rejectf(generic.KindFormat, field, "Year out of range: %d", year)
	case month < 1 || month > 12:
		return generic.Rejectf(generic.KindFormat, field, "Month out of range: %d", month)
	case day < 1 || day > 31:
		return generic.Rejectf(generic.KindFormat, field, "Day out of range: %d", day)
	}
	return nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// =============================================================================
// SCHOLARSHIP - Discount programmes applied to fee assignments
// =============================================================================

const (
	ScholarshipActive    generic.Status = "active"
	ScholarshipSuspended generic.Status = "suspended"
	ScholarshipExpired   generic.Status = "expired"
)

var (
	ScholarshipTypes = generic.Enum{"percentage", "fixed_amount", "full_waiver"}
	Applicability    = generic.Enum{"all", "specific_classes", "specific_students"}
)

type Scholarship struct {
	Name                 string           `json:"name"`
	Type                 string           `json:"type"`
	PercentageOff        *decimal.Decimal `json:"percentageOff,omitempty"`
	FixedAmountOff       *decimal.Decimal `json:"fixedAmountOff,omitempty"`
	ApplicableTo         string           `json:"applicableTo"`
	ClassIDs             []string         `json:"classIds,omitempty"`
	StudentIDs           []string         `json:"studentIds,omitempty"`
	StartDate            string           `json:"startDate"`
	EndDate              *string          `json:"endDate,omitempty"`
	Status               generic.Status   `json:"status"`
	CreatedBy            string           `json:"createdBy"`
	MaxBeneficiaries     *int64           `json:"maxBeneficiaries,omitempty"`
	CurrentBeneficiaries *int64           `json:"currentBeneficiaries,omitempty"`
}

// ScholarshipMachine: active <-> suspended, either -> expired.
var ScholarshipMachine = generic.Machine[Scholarship]{
	Entity:  "scholarship",
	Plural:  "scholarships",
	Status:  func(s Scholarship) generic.Status { return s.Status },
	States:  []generic.Status{ScholarshipActive, ScholarshipSuspended, ScholarshipExpired},
	Initial: []generic.Status{ScholarshipActive},
	Transitions: map[generic.Status][]generic.Status{
		ScholarshipActive:    {ScholarshipSuspended, ScholarshipExpired},
		ScholarshipSuspended: {ScholarshipActive, ScholarshipExpired},
	},
}

// NewScholarshipValidator builds the scholarships pipeline.
func NewScholarshipValidator(deps Deps) *generic.Pipeline[Scholarship] {
	return generic.NewPipeline[Scholarship]("scholarship", deps.Clock,
		generic.Step(func(s Scholarship) error {
			if strings.TrimSpace(s.Name) == "" {
				return generic.Reject(generic.KindFormat, "name", "name cannot be empty")
			}
			return nil
		}),
		generic.Step(checkScholarshipDiscount),
		generic.Step(checkScholarshipScope),
		generic.Step(func(s Scholarship) error {
			if err := checkISODate("startDate", s.StartDate); err != nil {
				return err
			}
			if s.EndDate == nil {
				return nil
			}
			if err := checkISODate("endDate", *s.EndDate); err != nil {
				return err
			}
			if *s.EndDate <= s.StartDate {
				return generic.Reject(generic.KindFormat, "endDate", "endDate must be after startDate")
			}
			return nil
		}),
		generic.Step(func(s Scholarship) error {
			if s.MaxBeneficiaries == nil {
				return nil
			}
			if *s.MaxBeneficiaries < 1 {
				return generic.Reject(generic.KindFormat, "maxBeneficiaries", "maxBeneficiaries must be at least 1")
			}
			var current int64
			if s.CurrentBeneficiaries != nil {
				current = *s.CurrentBeneficiaries
			}
			if current > *s.MaxBeneficiaries {
				return generic.Reject(generic.KindConsistency, "currentBeneficiaries",
					"currentBeneficiaries cannot exceed maxBeneficiaries")
			}
			return nil
		}),
		ScholarshipMachine.Check(),
		generic.Step(func(s Scholarship) error {
			if strings.TrimSpace(s.CreatedBy) == "" {
				return generic.Reject(generic.KindFormat, "createdBy", "createdBy cannot be empty")
			}
			return nil
		}),
	)
}

func checkScholarshipDiscount(s Scholarship) error {
	if !ScholarshipTypes.Contains(s.Type) {
		return generic.Reject(generic.KindFormat, "type", "type must be 'percentage', 'fixed_amount', or 'full_waiver'")
	}
	switch s.Type {
	case "percentage":
		if s.PercentageOff == nil {
			return generic.Reject(generic.KindFormat, "percentageOff", "percentageOff is required for percentage type")
		}
		if v := *s.PercentageOff; v.IsNegative() || v.GreaterThan(hundred) {
			return generic.Reject(generic.KindFormat, "percentageOff", "percentageOff must be between 0 and 100")
		}
	case "fixed_amount":
		if s.FixedAmountOff == nil {
			return generic.Reject(generic.KindFormat, "fixedAmountOff", "fixedAmountOff is required for fixed_amount type")
		}
		if !s.FixedAmountOff.IsPositive() {
			return generic.Reject(generic.KindFormat, "fixedAmountOff", "fixedAmountOff must be greater than 0")
		}
		return generic.CentPrecision("fixedAmountOff", "fixedAmountOff", *s.FixedAmountOff)
	}
	return nil
}

func checkScholarshipScope(s Scholarship) error {
	if !Applicability.Contains(s.ApplicableTo) {
		return generic.Reject(generic.KindFormat, "applicableTo",
			"applicableTo must be 'all', 'specific_classes', or 'specific_students'")
	}
	switch s.ApplicableTo {
	case "specific_classes":
		if s.ClassIDs == nil {
			return generic.Reject(generic.KindFormat, "classIds", "classIds is required when applicableTo is 'specific_classes'")
		}
		if len(s.ClassIDs) == 0 {
			return generic.Reject(generic.KindFormat, "classIds", "classIds cannot be empty for specific_classes")
		}
	case "specific_students":
		if s.StudentIDs == nil {
			return generic.Reject(generic.KindFormat, "studentIds", "studentIds is required when applicableTo is 'specific_students'")
		}
		if len(s.StudentIDs) == 0 {
			return generic.Reject(generic.KindFormat, "studentIds", "studentIds cannot be empty for specific_students")
		}
	}
	return nil
}
