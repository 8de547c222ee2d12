package finance

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/warp/finance-gate/generic"
)

// =============================================================================
// EXPENSE - Money paid out to vendors
// =============================================================================

const (
	ExpensePending  generic.Status = "pending"
	ExpenseApproved generic.Status = "approved"
	ExpenseRejected generic.Status = "rejected"
	ExpensePaid     generic.Status = "paid"
)

// MinRejectionReason is the shortest accepted rejection or cancellation note.
const MinRejectionReason = 10

type Expense struct {
	CategoryID    string          `json:"categoryId"`
	CategoryName  string          `json:"categoryName"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Purpose       *string         `json:"purpose,omitempty"`
	PaymentMethod string          `json:"paymentMethod"`
	PaymentDate   string          `json:"paymentDate"`
	VendorName    *string         `json:"vendorName,omitempty"`
	VendorContact *string         `json:"vendorContact,omitempty"`
	Reference     string          `json:"reference"`
	InvoiceURL    *string         `json:"invoiceUrl,omitempty"`
	Status        generic.Status  `json:"status"`
	ApprovedBy    *string         `json:"approvedBy,omitempty"`
	ApprovedAt    *int64          `json:"approvedAt,omitempty"`
	Notes         *string         `json:"notes,omitempty"`
	RecordedBy    string          `json:"recordedBy"`
	CreatedAt     int64           `json:"createdAt"`
	UpdatedAt     int64           `json:"updatedAt"`
}

func expenseApprovedBy(e Expense) *string { return e.ApprovedBy }
func expenseApprovedAt(e Expense) *int64  { return e.ApprovedAt }
func expenseCreatedAt(e Expense) int64    { return e.CreatedAt }
func expenseNotes(e Expense) *string      { return e.Notes }

// ExpenseMachine is the expense lifecycle:
// pending -> {approved, rejected}; approved -> {paid}.
var ExpenseMachine = generic.Machine[Expense]{
	Entity:  "expense",
	Plural:  "expenses",
	Status:  func(e Expense) generic.Status { return e.Status },
	States:  []generic.Status{ExpensePending, ExpenseApproved, ExpenseRejected, ExpensePaid},
	Initial: []generic.Status{ExpensePending},
	Transitions: map[generic.Status][]generic.Status{
		ExpensePending:  {ExpenseApproved, ExpenseRejected},
		ExpenseApproved: {ExpensePaid},
	},
	Requirements: map[generic.Status][]generic.Requirement[Expense]{
		ExpensePending: {
			generic.ForbidIdentity("approvedBy", "Pending expenses cannot have approved_by field set", expenseApprovedBy),
			generic.ForbidTimestamp("approvedAt", "Pending expenses cannot have approved_at field set", expenseApprovedAt),
		},
		ExpenseApproved: {
			generic.RequireIdentity("approvedBy", "Approved expenses must have approved_by field set", expenseApprovedBy),
			generic.RequireTimestamp("approvedAt", "Approved expenses must have approved_at timestamp", expenseApprovedAt),
			generic.RequireApprovalTime("approvedAt", expenseApprovedAt, expenseCreatedAt),
		},
		ExpenseRejected: {
			generic.RequireReason("notes", MinRejectionReason,
				"Rejected expenses must include rejection reason in notes",
				"Rejection reason must be at least 10 characters", expenseNotes),
			generic.ForbidTimestamp("approvedAt", "Rejected expenses cannot have approved_at timestamp", expenseApprovedAt),
		},
		ExpensePaid: {
			generic.RequireIdentity("approvedBy", "Paid expenses must have been approved first", expenseApprovedBy),
			generic.RequireTimestamp("approvedAt", "Paid expenses must have been approved first", expenseApprovedAt),
		},
	},
}

// NewExpenseValidator builds the expenses pipeline.
func NewExpenseValidator(deps Deps) *generic.Pipeline[Expense] {
	lookup := generic.Lookup{Reader: deps.Reader}
	policy := deps.Policy

	return generic.NewPipeline[Expense]("expense", deps.Clock,
		generic.Step(checkExpenseAmount),
		generic.Step(func(e Expense) error {
			return PaymentMethods.Check("paymentMethod", "payment method", e.PaymentMethod)
		}),
		generic.Step(func(e Expense) error {
			return generic.ExpenseReference.Check("reference", e.Reference)
		}),
		checkExpenseDate,
		generic.Step(checkExpenseContacts),
		ExpenseMachine.Check(),
		func(ctx context.Context, a *generic.Attempt[Expense]) error {
			return lookup.Exists(ctx, CollectionExpenseCategories, a.Next.CategoryID, "categoryId",
				"Expense category '"+a.Next.CategoryID+"' not found")
		},
		func(ctx context.Context, a *generic.Attempt[Expense]) error {
			return lookup.Unique(ctx, CollectionExpenses, a.Key,
				generic.Where(generic.Eq("reference", a.Next.Reference)),
				"Expense reference '"+a.Next.Reference+"' already exists")
		},
		func(ctx context.Context, a *generic.Attempt[Expense]) error {
			return checkDuplicateExpense(ctx, lookup, a)
		},
		generic.Step(func(e Expense) error { return checkExpenseDocumentation(policy, e) }),
		generic.Step(func(e Expense) error {
			return policy.CheckMethodCeiling("paymentMethod", e.PaymentMethod, e.Amount)
		}),
		generic.Step(func(e Expense) error {
			return policy.CheckSelfApproval("approvedBy", "expenses", e.ApprovedBy, e.RecordedBy)
		}),
	)
}

func checkExpenseAmount(e Expense) error {
	if !e.Amount.IsPositive() {
		return generic.Reject(generic.KindFormat, "amount", "Expense amount must be greater than 0")
	}
	return generic.CentPrecision("amount", "Expense amount", e.Amount)
}

func checkExpenseDate(_ context.Context, a *generic.Attempt[Expense]) error {
	date := a.Next.PaymentDate
	if !generic.IsValidDate(date) {
		return generic.Reject(generic.KindFormat, "paymentDate", "Invalid payment date format. Must be YYYY-MM-DD")
	}
	if generic.DateTooFarInFuture(date, 7, a.Now) {
		return generic.Reject(generic.KindFormat, "paymentDate", "Payment date cannot be more than 7 days in the future")
	}
	if generic.DateTooOld(date, 2, a.Now) {
		return generic.Reject(generic.KindFormat, "paymentDate", "Payment date cannot be more than 2 years in the past")
	}
	return nil
}

func checkExpenseContacts(e Expense) error {
	if url := generic.OptionalText(e.InvoiceURL); url != "" && !generic.IsValidURL(url) {
		return generic.Reject(generic.KindFormat, "invoiceUrl", "Invoice URL must start with http:// or https://")
	}
	if contact := generic.OptionalText(e.VendorContact); contact != "" &&
		!generic.IsValidPhone(contact) && !generic.IsValidEmail(contact) {
		return generic.Reject(generic.KindFormat, "vendorContact", "Vendor contact must be a valid phone number or email address")
	}
	return nil
}

// checkDuplicateExpense flags a second expense with the same vendor, amount
// and payment date.
func checkDuplicateExpense(ctx context.Context, lookup generic.Lookup, a *generic.Attempt[Expense]) error {
	vendor := generic.OptionalText(a.Next.VendorName)
	if vendor == "" {
		return nil
	}
	q := generic.Where(
		generic.EqFold("vendorName", vendor),
		generic.EqAmount("amount", a.Next.Amount),
		generic.Eq("paymentDate", a.Next.PaymentDate),
	)
	conflicts, err := lookup.Conflicts(ctx, CollectionExpenses, a.Key, q)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return generic.Rejectf(generic.KindIntegrity, "vendorName",
			"Potential duplicate expense: Same vendor '%s', amount ₦%s, and date %s already exists",
			vendor, a.Next.Amount.String(), a.Next.PaymentDate)
	}
	return nil
}

// checkExpenseDocumentation applies the documentation tiers.
func checkExpenseDocumentation(p Policy, e Expense) error {
	if e.Amount.GreaterThanOrEqual(p.VendorRequiredFrom) && generic.OptionalText(e.VendorName) == "" {
		return generic.Rejectf(generic.KindPolicy, "vendorName",
			"Expenses of %s or more must name the vendor", generic.Naira(p.VendorRequiredFrom))
	}
	if e.Amount.GreaterThanOrEqual(p.PurposeRequiredFrom) &&
		utf8.RuneCountInString(generic.OptionalText(e.Purpose)) < p.PurposeMinLength {
		return generic.Rejectf(generic.KindPolicy, "purpose",
			"Expenses of %s or more must include a purpose of at least %d characters",
			generic.Naira(p.PurposeRequiredFrom), p.PurposeMinLength)
	}
	if e.Amount.GreaterThanOrEqual(p.InvoiceRequiredFrom) && generic.OptionalText(e.InvoiceURL) == "" {
		return generic.Rejectf(generic.KindPolicy, "invoiceUrl",
			"Expenses of %s or more must include an invoice URL", generic.Naira(p.InvoiceRequiredFrom))
	}
	return nil
}

// =============================================================================
// EXPENSE CATEGORY
// =============================================================================

// MaxCategoryDescription is the longest accepted category description.
const MaxCategoryDescription = 1000

type ExpenseCategory struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	BudgetCode  *string `json:"budgetCode,omitempty"`
	IsActive    bool    `json:"isActive"`
	CreatedAt   int64   `json:"createdAt"`
	UpdatedAt   int64   `json:"updatedAt"`
}

// NewExpenseCategoryValidator builds the expense_categories pipeline.
func NewExpenseCategoryValidator(deps Deps) *generic.Pipeline[ExpenseCategory] {
	lookup := generic.Lookup{Reader: deps.Reader}

	return generic.NewPipeline[ExpenseCategory]("expense category", deps.Clock,
		generic.Step(func(c ExpenseCategory) error {
			if !generic.IsValidCategoryName(c.Name) {
				return generic.Reject(generic.KindFormat, "name",
					"Category name must be 3-100 characters and contain only letters, numbers, spaces, and basic punctuation")
			}
			return nil
		}),
		func(ctx context.Context, a *generic.Attempt[ExpenseCategory]) error {
			return lookup.Unique(ctx, CollectionExpenseCategories, a.Key,
				generic.Where(generic.EqFold("name", strings.TrimSpace(a.Next.Name))),
				"Category name '"+a.Next.Name+"' is already taken")
		},
		generic.Step(func(c ExpenseCategory) error {
			if c.Description == nil {
				return nil
			}
			if n := utf8.RuneCountInString(*c.Description); n > MaxCategoryDescription {
				return generic.Rejectf(generic.KindFormat, "description",
					"Category description cannot exceed 1000 characters (current length: %d)", n)
			}
			return nil
		}),
		generic.Step(func(c ExpenseCategory) error {
			if code := generic.OptionalText(c.BudgetCode); code != "" && !generic.IsValidBudgetCode(code) {
				return generic.Reject(generic.KindFormat, "budgetCode", "Budget code must be in format: XXX-000 (e.g., ADM-001)")
			}
			return nil
		}),
	)
}
