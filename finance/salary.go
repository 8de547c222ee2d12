package finance

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/finance-gate/generic"
)

// =============================================================================
// SALARY PAYMENT - One staff member's pay for one period
// =============================================================================

const (
	SalaryPending  generic.Status = "pending"
	SalaryApproved generic.Status = "approved"
	SalaryPaid     generic.Status = "paid"
)

type SalaryPayment struct {
	StaffID            string            `json:"staffId"`
	StaffName          string            `json:"staffName"`
	StaffNumber        string            `json:"staffNumber"`
	PaymentDate        string            `json:"paymentDate"`
	PaymentPeriodStart string            `json:"paymentPeriodStart"`
	PaymentPeriodEnd   string            `json:"paymentPeriodEnd"`
	BasicSalary        decimal.Decimal   `json:"basicSalary"`
	Allowances         []SalaryAllowance `json:"allowances"`
	Deductions         []SalaryDeduction `json:"deductions"`
	GrossSalary        *decimal.Decimal  `json:"grossSalary,omitempty"`
	NetSalary          decimal.Decimal   `json:"netSalary"`
	PaymentMethod      string            `json:"paymentMethod"`
	Reference          string            `json:"reference"`
	Status             generic.Status    `json:"status"`
	Notes              *string           `json:"notes,omitempty"`
	ProcessedBy        *string           `json:"processedBy,omitempty"`
	ProcessedAt        *int64            `json:"processedAt,omitempty"`
	ApprovedBy         *string           `json:"approvedBy,omitempty"`
	ApprovedAt         *int64            `json:"approvedAt,omitempty"`
	CreatedAt          int64             `json:"createdAt"`
	UpdatedAt          int64             `json:"updatedAt"`
}

type SalaryAllowance struct {
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	IsTaxable bool            `json:"isTaxable"`
}

type SalaryDeduction struct {
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	IsStatutory bool            `json:"isStatutory"`
}

func salaryProcessedBy(s SalaryPayment) *string { return s.ProcessedBy }
func salaryApprovedBy(s SalaryPayment) *string  { return s.ApprovedBy }
func salaryApprovedAt(s SalaryPayment) *int64   { return s.ApprovedAt }
func salaryCreatedAt(s SalaryPayment) int64     { return s.CreatedAt }

// SalaryMachine is the salary lifecycle: pending -> approved -> paid.
var SalaryMachine = generic.Machine[SalaryPayment]{
	Entity:  "salary",
	Plural:  "salary payments",
	Status:  func(s SalaryPayment) generic.Status { return s.Status },
	States:  []generic.Status{SalaryPending, SalaryApproved, SalaryPaid},
	Initial: []generic.Status{SalaryPending},
	Transitions: map[generic.Status][]generic.Status{
		SalaryPending:  {SalaryApproved},
		SalaryApproved: {SalaryPaid},
	},
	Requirements: map[generic.Status][]generic.Requirement[SalaryPayment]{
		SalaryApproved: {
			generic.RequireIdentity("processedBy", "Approved salary payments must have processed_by set", salaryProcessedBy),
			generic.RequireIdentity("approvedBy", "Approved salary payments must have approved_by set", salaryApprovedBy),
			generic.RequireTimestamp("approvedAt", "Approved salary payments must have approved_at timestamp", salaryApprovedAt),
			generic.RequireApprovalTime("approvedAt", salaryApprovedAt, salaryCreatedAt),
		},
		SalaryPaid: {
			generic.RequireIdentity("processedBy", "Paid salary payments must have processed_by set", salaryProcessedBy),
			generic.RequireIdentity("approvedBy", "Paid salary payments must have been approved first", salaryApprovedBy),
			generic.RequireTimestamp("approvedAt", "Paid salary payments must have been approved first", salaryApprovedAt),
		},
	},
	InitialMessage: "New salary payments must have status 'pending'",
}

var (
	grossMismatch = generic.Mismatch{
		Field: "grossSalary",
		Render: func(declared, computed decimal.Decimal) string {
			return fmt.Sprintf("Gross salary (%s) doesn't match basic + allowances (%s)",
				generic.Naira(declared), generic.Naira(computed))
		},
	}
	netMismatch = generic.QuotedMismatch("netSalary",
		"Net salary (%s) doesn't match basic + allowances - deductions (%s)")
)

// NewSalaryValidator builds the salary_payments pipeline.
func NewSalaryValidator(deps Deps) *generic.Pipeline[SalaryPayment] {
	lookup := generic.Lookup{Reader: deps.Reader}
	policy := deps.Policy

	return generic.NewPipeline[SalaryPayment]("salary payment", deps.Clock,
		generic.Step(func(s SalaryPayment) error {
			if !s.BasicSalary.IsPositive() {
				return generic.Reject(generic.KindFormat, "basicSalary", "Basic salary must be greater than zero")
			}
			return generic.CentPrecision("basicSalary", "Basic salary", s.BasicSalary)
		}),
		generic.Step(checkSalaryComponents),
		generic.Step(reconcileSalary),
		checkSalaryPeriod,
		generic.Step(func(s SalaryPayment) error {
			return SalaryMethods.Check("paymentMethod", "payment method", s.PaymentMethod)
		}),
		SalaryMachine.Check(),
		generic.Step(func(s SalaryPayment) error {
			return generic.SalaryReference.Check("reference", s.Reference)
		}),
		func(ctx context.Context, a *generic.Attempt[SalaryPayment]) error {
			return lookup.Unique(ctx, CollectionSalaryPayments, a.Key,
				generic.Where(generic.Eq("reference", a.Next.Reference)),
				"Salary reference '"+a.Next.Reference+"' already exists")
		},
		func(ctx context.Context, a *generic.Attempt[SalaryPayment]) error {
			return lookup.Exists(ctx, CollectionStaff, a.Next.StaffID, "staffId",
				"Staff member '"+a.Next.StaffID+"' not found")
		},
		func(ctx context.Context, a *generic.Attempt[SalaryPayment]) error {
			return checkDuplicatePaidSalary(ctx, lookup, a)
		},
		generic.Step(func(s SalaryPayment) error {
			return policy.CheckMethodCeiling("paymentMethod", s.PaymentMethod, s.NetSalary)
		}),
		generic.Step(func(s SalaryPayment) error {
			return policy.CheckSelfApproval("approvedBy", "salary payments", s.ApprovedBy, generic.OptionalText(s.ProcessedBy))
		}),
	)
}

// checkSalaryComponents rejects repeated allowance or deduction names and
// negative or sub-cent component amounts.
func checkSalaryComponents(s SalaryPayment) error {
	seen := make(map[string]bool, len(s.Allowances))
	for _, a := range s.Allowances {
		if seen[a.Name] {
			return generic.Rejectf(generic.KindConsistency, "allowances", "Duplicate allowance name: '%s'", a.Name)
		}
		seen[a.Name] = true
		label := fmt.Sprintf("Allowance '%s' amount", a.Name)
		if err := generic.NonNegative("allowances", label, a.Amount); err != nil {
			return err
		}
		if err := generic.CentPrecision("allowances", label, a.Amount); err != nil {
			return err
		}
	}
	seen = make(map[string]bool, len(s.Deductions))
	for _, d := range s.Deductions {
		if seen[d.Name] {
			return generic.Rejectf(generic.KindConsistency, "deductions", "Duplicate deduction name: '%s'", d.Name)
		}
		seen[d.Name] = true
		label := fmt.Sprintf("Deduction '%s' amount", d.Name)
		if err := generic.NonNegative("deductions", label, d.Amount); err != nil {
			return err
		}
		if err := generic.CentPrecision("deductions", label, d.Amount); err != nil {
			return err
		}
	}
	return nil
}

// reconcileSalary checks gross (when declared) and net pay against the
// components. Sub-cent totals are rejected before the 0.01 tolerance can
// absorb them.
func reconcileSalary(s SalaryPayment) error {
	if s.GrossSalary != nil {
		if err := generic.CentPrecision("grossSalary", "Gross salary", *s.GrossSalary); err != nil {
			return err
		}
	}
	if err := generic.CentPrecision("netSalary", "Net salary", s.NetSalary); err != nil {
		return err
	}

	gross := s.BasicSalary.Add(generic.SumOf(s.Allowances, func(a SalaryAllowance) decimal.Decimal { return a.Amount }))
	if s.GrossSalary != nil {
		if err := generic.Reconcile(grossMismatch, *s.GrossSalary, gross); err != nil {
			return err
		}
	}
	net := gross.Sub(generic.SumOf(s.Deductions, func(d SalaryDeduction) decimal.Decimal { return d.Amount }))
	return generic.Reconcile(netMismatch, s.NetSalary, net)
}

func checkSalaryPeriod(_ context.Context, a *generic.Attempt[SalaryPayment]) error {
	s := a.Next
	if !generic.IsValidDate(s.PaymentDate) {
		return generic.Reject(generic.KindFormat, "paymentDate", "Invalid payment date format. Must be YYYY-MM-DD")
	}
	if generic.DateTooFarInFuture(s.PaymentDate, 30, a.Now) {
		return generic.Reject(generic.KindFormat, "paymentDate", "Payment date cannot be more than 30 days in the future")
	}
	start, okStart := generic.ParseDate(s.PaymentPeriodStart)
	end, okEnd := generic.ParseDate(s.PaymentPeriodEnd)
	if !okStart || !okEnd {
		return generic.Reject(generic.KindFormat, "paymentPeriodStart", "Payment period start and end must be valid dates (YYYY-MM-DD)")
	}
	if end.Before(start) {
		return generic.Reject(generic.KindFormat, "paymentPeriodEnd", "Payment period end cannot be before start")
	}
	paid, _ := generic.ParseDate(s.PaymentDate)
	if paid.Before(start) {
		return generic.Reject(generic.KindFormat, "paymentDate", "Payment date cannot be before the period start")
	}
	return nil
}

// checkDuplicatePaidSalary allows one paid salary per staff member and period.
func checkDuplicatePaidSalary(ctx context.Context, lookup generic.Lookup, a *generic.Attempt[SalaryPayment]) error {
	s := a.Next
	if s.Status != SalaryPaid {
		return nil
	}
	q := generic.Where(
		generic.Eq("staffId", s.StaffID),
		generic.Eq("paymentPeriodStart", s.PaymentPeriodStart),
		generic.Eq("paymentPeriodEnd", s.PaymentPeriodEnd),
		generic.Eq("status", string(SalaryPaid)),
	)
	conflicts, err := lookup.Conflicts(ctx, CollectionSalaryPayments, a.Key, q)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return generic.Rejectf(generic.KindIntegrity, "status",
			"Staff %s already has a paid salary for period %s to %s",
			s.StaffNumber, s.PaymentPeriodStart, s.PaymentPeriodEnd)
	}
	return nil
}
