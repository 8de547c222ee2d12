/*
Package roster validates the people records money moves to and from.

PURPOSE:
  Staff members are paid salaries, students are billed fees. Both are
  natural-key records: staff numbers and admission numbers must be unique
  regardless of case, and students must point at an existing class.

KEY CONCEPTS:
  - Staff: employment details, basic salary, recurring allowances
  - Student: admission number, class, guardian contact details

USAGE:
  d := generic.NewDispatcher()
  roster.Register(d, roster.Deps{Reader: store, Clock: generic.SystemClock{}})

SEE ALSO:
  - finance/salary.go: Salary runs reference staff by key
  - finance/fees.go: Fee assignments reference students by key
*/
package roster

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/warp/finance-gate/generic"
)

// =============================================================================
// STAFF
// =============================================================================

var EmploymentTypes = generic.Enum{"full-time", "part-time", "contract"}

// Employment date window, in approximate calendar units.
const (
	MaxEmploymentDaysAhead = 30
	MaxEmploymentYearsAgo  = 50
	MaxDepartmentLength    = 50
)

type Staff struct {
	Surname        string           `json:"surname"`
	Firstname      string           `json:"firstname"`
	Middlename     *string          `json:"middlename,omitempty"`
	StaffNumber    string           `json:"staffNumber"`
	Phone          string           `json:"phone"`
	Email          *string          `json:"email,omitempty"`
	Address        *string          `json:"address,omitempty"`
	Position       string           `json:"position"`
	Department     *string          `json:"department,omitempty"`
	EmploymentType string           `json:"employmentType"`
	EmploymentDate string           `json:"employmentDate"`
	BasicSalary    decimal.Decimal  `json:"basicSalary"`
	Allowances     []StaffAllowance `json:"allowances,omitempty"`
	BankName       *string          `json:"bankName,omitempty"`
	AccountNumber  *string          `json:"accountNumber,omitempty"`
	IsActive       bool             `json:"isActive"`
	CreatedAt      int64            `json:"createdAt"`
	UpdatedAt      int64            `json:"updatedAt"`
}

type StaffAllowance struct {
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	IsRecurring bool            `json:"isRecurring"`
}

// NewStaffValidator builds the staff pipeline.
func NewStaffValidator(deps Deps) *generic.Pipeline[Staff] {
	lookup := generic.Lookup{Reader: deps.Reader}

	return generic.NewPipeline[Staff]("staff", deps.Clock,
		generic.Step(func(s Staff) error {
			if !s.BasicSalary.IsPositive() {
				return generic.Reject(generic.KindFormat, "basicSalary", "Basic salary must be greater than zero")
			}
			return generic.CentPrecision("basicSalary", "Basic salary", s.BasicSalary)
		}),
		checkEmployment,
		generic.Step(checkDepartment),
		generic.Step(checkStaffAllowances),
		generic.Step(checkStaffContacts),
		func(ctx context.Context, a *generic.Attempt[Staff]) error {
			number := strings.TrimSpace(a.Next.StaffNumber)
			if err := generic.Required("staffNumber", number); err != nil {
				return err
			}
			return lookup.Unique(ctx, CollectionStaff, a.Key,
				generic.Where(generic.EqFold("staffNumber", number)),
				fmt.Sprintf("Staff number '%s' already exists", number))
		},
	)
}

func checkEmployment(_ context.Context, a *generic.Attempt[Staff]) error {
	s := a.Next
	if err := EmploymentTypes.Check("employmentType", "employment type", s.EmploymentType); err != nil {
		return err
	}
	if !generic.IsValidDate(s.EmploymentDate) {
		return generic.Reject(generic.KindFormat, "employmentDate", "Invalid employment date format. Must be YYYY-MM-DD")
	}
	if generic.DateTooFarInFuture(s.EmploymentDate, MaxEmploymentDaysAhead, a.Now) {
		return generic.Reject(generic.KindFormat, "employmentDate", "Employment date cannot be more than 30 days in the future")
	}
	if generic.DateTooOld(s.EmploymentDate, MaxEmploymentYearsAgo, a.Now) {
		return generic.Reject(generic.KindFormat, "employmentDate", "Employment date cannot be more than 50 years in the past")
	}
	return nil
}

func checkDepartment(s Staff) error {
	if s.Department == nil {
		return nil
	}
	dept := *s.Department
	if n := utf8.RuneCountInString(dept); n > MaxDepartmentLength {
		return generic.Rejectf(generic.KindFormat, "department",
			"Department name cannot exceed 50 characters (current: %d)", n)
	}
	if strings.TrimSpace(dept) != "" && !generic.IsValidDepartmentName(dept) {
		return generic.Reject(generic.KindFormat, "department", "Department name contains invalid characters")
	}
	return nil
}

func checkStaffAllowances(s Staff) error {
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
	return nil
}

func checkStaffContacts(s Staff) error {
	if phone := strings.TrimSpace(s.Phone); phone != "" && !generic.IsValidPhone(phone) {
		return generic.Rejectf(generic.KindFormat, "phone", "Invalid phone number '%s'", phone)
	}
	if email := generic.OptionalText(s.Email); email != "" && !generic.IsValidEmail(email) {
		return generic.Rejectf(generic.KindFormat, "email", "Invalid email address '%s'", email)
	}
	if acct := generic.OptionalText(s.AccountNumber); acct != "" && !generic.IsValidAccountNumber(acct) {
		return generic.Reject(generic.KindFormat, "accountNumber", "Account number must be exactly 10 digits")
	}
	return nil
}
