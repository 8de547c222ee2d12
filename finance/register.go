package finance

import (
	"github.com/warp/finance-gate/generic"
)

// Collection names routed to this package.
const (
	CollectionExpenses          = "expenses"
	CollectionExpenseCategories = "expense_categories"
	CollectionPayments          = "payments"
	CollectionFeeAssignments    = "fee_assignments"
	CollectionFeeCategories     = "fee_categories"
	CollectionScholarships      = "scholarships"
	CollectionSalaryPayments    = "salary_payments"
	CollectionBankTransactions  = "bank_transactions"
	CollectionBankTransfers     = "bank_transfers"
	CollectionBankAccounts      = "bank_accounts"
	CollectionBudgets           = "budgets"

	// Owned by roster but referenced from here.
	CollectionStudents = "students"
	CollectionStaff    = "staff"
)

// Deps is what every finance pipeline reads.
type Deps struct {
	Reader generic.Reader
	Clock  generic.Clock
	Policy Policy
}

// Register routes every finance collection to its pipeline. Budgets and fee
// categories are accepted without checks.
func Register(d *generic.Dispatcher, deps Deps) {
	d.Register(CollectionExpenses, NewExpenseValidator(deps))
	d.Register(CollectionExpenseCategories, NewExpenseCategoryValidator(deps))
	d.Register(CollectionPayments, NewPaymentValidator(deps))
	d.Register(CollectionFeeAssignments, NewFeeAssignmentValidator(deps))
	d.Register(CollectionScholarships, NewScholarshipValidator(deps))
	d.Register(CollectionSalaryPayments, NewSalaryValidator(deps))
	d.Register(CollectionBankTransactions, NewBankTransactionValidator(deps))
	d.Register(CollectionBankTransfers, NewTransferValidator(deps))
	d.Register(CollectionBankAccounts, NewBankAccountValidator(deps))

	d.Register(CollectionBudgets, generic.PassThrough)
	d.Register(CollectionFeeCategories, generic.PassThrough)
}
