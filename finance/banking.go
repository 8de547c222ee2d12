package finance

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/finance-gate/generic"
)

// =============================================================================
// BANK TRANSACTION - One line of a bank statement
// =============================================================================

const (
	TxPending    generic.Status = "pending"
	TxCleared    generic.Status = "cleared"
	TxReconciled generic.Status = "reconciled"
)

type BankTransaction struct {
	BankAccountID   string           `json:"bankAccountId"`
	TransactionDate string           `json:"transactionDate"`
	Description     string           `json:"description"`
	DebitAmount     decimal.Decimal  `json:"debitAmount"`
	CreditAmount    decimal.Decimal  `json:"creditAmount"`
	Balance         *decimal.Decimal `json:"balance,omitempty"`
	Reference       *string          `json:"reference,omitempty"`
	Status          generic.Status   `json:"status"`
	IsReconciled    bool             `json:"isReconciled"`
	RecordedBy      string           `json:"recordedBy"`
	CreatedAt       int64            `json:"createdAt"`
	UpdatedAt       int64            `json:"updatedAt"`
}

// BankTransactionMachine: pending -> cleared -> reconciled.
var BankTransactionMachine = generic.Machine[BankTransaction]{
	Entity:  "bank transaction",
	Plural:  "bank transactions",
	Status:  func(t BankTransaction) generic.Status { return t.Status },
	States:  []generic.Status{TxPending, TxCleared, TxReconciled},
	Initial: []generic.Status{TxPending, TxCleared},
	Transitions: map[generic.Status][]generic.Status{
		TxPending: {TxCleared},
		TxCleared: {TxReconciled},
	},
	Requirements: map[generic.Status][]generic.Requirement[BankTransaction]{
		TxReconciled: {
			generic.RequireFlag("isReconciled", "AUDIT: Status is 'reconciled' but isReconciled flag is false",
				func(t BankTransaction) bool { return t.IsReconciled }),
		},
	},
}

// NewBankTransactionValidator builds the bank_transactions pipeline.
func NewBankTransactionValidator(deps Deps) *generic.Pipeline[BankTransaction] {
	lookup := generic.Lookup{Reader: deps.Reader}
	policy := deps.Policy

	return generic.NewPipeline[BankTransaction]("bank transaction", deps.Clock,
		generic.Step(checkDoubleEntry),
		generic.Step(func(t BankTransaction) error {
			amount := decimal.Max(t.DebitAmount, t.CreditAmount)
			if amount.GreaterThan(policy.MaxSingleTransaction) {
				return generic.Rejectf(generic.KindPolicy, "amount",
					"FRAUD ALERT: Transaction amount %s exceeds maximum limit of %s. Contact administrator.",
					generic.Naira(amount), generic.Naira(policy.MaxSingleTransaction))
			}
			if t.Balance != nil && t.Balance.LessThan(policy.OverdraftAlertThreshold) {
				return generic.Rejectf(generic.KindPolicy, "balance",
					"FRAUD ALERT: Account balance %s exceeds reasonable overdraft limit. Verify account status.",
					generic.Naira(*t.Balance))
			}
			return nil
		}),
		BankTransactionMachine.Check(),
		func(ctx context.Context, a *generic.Attempt[BankTransaction]) error {
			return lookup.Exists(ctx, CollectionBankAccounts, a.Next.BankAccountID, "bankAccountId",
				"Bank account '"+a.Next.BankAccountID+"' not found")
		},
	)
}

// checkDoubleEntry demands exactly one positive side, and whole kobo on
// both sides and the running balance.
func checkDoubleEntry(t BankTransaction) error {
	switch {
	case t.DebitAmount.IsNegative() || t.CreditAmount.IsNegative():
		return generic.Reject(generic.KindFormat, "amount", "SECURITY: Transaction amounts cannot be negative")
	case t.DebitAmount.IsPositive() && t.CreditAmount.IsPositive():
		return generic.Reject(generic.KindIntegrity, "amount", "SECURITY: Transaction cannot have both debit and credit amounts")
	case t.DebitAmount.IsZero() && t.CreditAmount.IsZero():
		return generic.Reject(generic.KindFormat, "amount", "SECURITY: Transaction must have a non-zero amount")
	}
	if err := generic.CentPrecision("debitAmount", "Debit amount", t.DebitAmount); err != nil {
		return err
	}
	if err := generic.CentPrecision("creditAmount", "Credit amount", t.CreditAmount); err != nil {
		return err
	}
	if t.Balance != nil {
		return generic.CentPrecision("balance", "Balance", *t.Balance)
	}
	return nil
}

// =============================================================================
// TRANSFER - Money moved between two of the school's accounts
// =============================================================================

const (
	TransferPending   generic.Status = "pending"
	TransferApproved  generic.Status = "approved"
	TransferCompleted generic.Status = "completed"
	TransferRejected  generic.Status = "rejected"
	TransferCancelled generic.Status = "cancelled"
)

type Transfer struct {
	FromAccountID string          `json:"fromAccountId"`
	ToAccountID   string          `json:"toAccountId"`
	Amount        decimal.Decimal `json:"amount"`
	TransferDate  *string         `json:"transferDate,omitempty"`
	Description   *string         `json:"description,omitempty"`
	Reference     *string         `json:"reference,omitempty"`
	Status        generic.Status  `json:"status"`
	InitiatedBy   string          `json:"initiatedBy"`
	ApprovedBy    *string         `json:"approvedBy,omitempty"`
	ApprovedAt    *int64          `json:"approvedAt,omitempty"`
	Notes         *string         `json:"notes,omitempty"`
	CreatedAt     int64           `json:"createdAt"`
	UpdatedAt     int64           `json:"updatedAt"`
}

func transferApprovedBy(t Transfer) *string { return t.ApprovedBy }
func transferApprovedAt(t Transfer) *int64  { return t.ApprovedAt }
func transferCreatedAt(t Transfer) int64    { return t.CreatedAt }
func transferNotes(t Transfer) *string      { return t.Notes }

// NewTransferMachine returns the transfer lifecycle:
// pending -> {approved, rejected, cancelled}; approved -> {completed}.
// Transfers may also be recorded directly as completed; above the policy's
// approval threshold a completed transfer must carry its approval.
func NewTransferMachine(p Policy) generic.Machine[Transfer] {
	needsApproval := func(t Transfer) bool { return t.Amount.GreaterThan(p.MaxTransferWithoutApproval) }
	approvalRequired := "APPROVAL REQUIRED: Transfers over " + generic.Naira(p.MaxTransferWithoutApproval) +
		" require approval before completion"

	return generic.Machine[Transfer]{
		Entity: "transfer",
		Plural: "transfers",
		Status: func(t Transfer) generic.Status { return t.Status },
		States: []generic.Status{
			TransferPending, TransferApproved, TransferCompleted, TransferRejected, TransferCancelled,
		},
		Initial: []generic.Status{TransferPending, TransferCompleted},
		Transitions: map[generic.Status][]generic.Status{
			TransferPending:  {TransferApproved, TransferRejected, TransferCancelled},
			TransferApproved: {TransferCompleted},
		},
		Requirements: map[generic.Status][]generic.Requirement[Transfer]{
			TransferApproved: {
				generic.RequireIdentity("approvedBy", "Approved transfers must have approvedBy set", transferApprovedBy),
				generic.RequireTimestamp("approvedAt", "AUDIT: Approved transfers must have approvedAt timestamp", transferApprovedAt),
				generic.RequireApprovalTime("approvedAt", transferApprovedAt, transferCreatedAt),
			},
			TransferCompleted: {
				generic.When(needsApproval,
					generic.RequireIdentity("approvedBy", approvalRequired, transferApprovedBy)),
				generic.When(needsApproval,
					generic.RequireTimestamp("approvedAt", "AUDIT: Approved transfers must have approvedAt timestamp", transferApprovedAt)),
				generic.RequireApprovalTime("approvedAt", transferApprovedAt, transferCreatedAt),
			},
			TransferRejected: {
				generic.RequireReason("notes", MinRejectionReason,
					"Rejected transfers must include rejection reason in notes",
					"Rejection reason must be at least 10 characters", transferNotes),
			},
			TransferCancelled: {
				generic.RequireReason("notes", MinRejectionReason,
					"Cancelled transfers must include cancellation reason in notes",
					"Cancellation reason must be at least 10 characters", transferNotes),
			},
		},
	}
}

// NewTransferValidator builds the bank_transfers pipeline.
func NewTransferValidator(deps Deps) *generic.Pipeline[Transfer] {
	lookup := generic.Lookup{Reader: deps.Reader}
	policy := deps.Policy
	machine := NewTransferMachine(policy)

	return generic.NewPipeline[Transfer]("transfer", deps.Clock,
		generic.Step(func(t Transfer) error {
			if err := generic.Required("fromAccountId", t.FromAccountID); err != nil {
				return err
			}
			if err := generic.Required("toAccountId", t.ToAccountID); err != nil {
				return err
			}
			if t.FromAccountID == t.ToAccountID {
				return generic.Reject(generic.KindIntegrity, "toAccountId",
					"SECURITY: Cannot transfer to the same account. Self-transfers are prohibited.")
			}
			return nil
		}),
		generic.Step(func(t Transfer) error {
			if err := generic.Positive("amount", "Transfer amount", t.Amount); err != nil {
				return err
			}
			if err := generic.CentPrecision("amount", "Transfer amount", t.Amount); err != nil {
				return err
			}
			if t.Amount.GreaterThan(policy.MaxSingleTransaction) {
				return generic.Rejectf(generic.KindPolicy, "amount",
					"FRAUD ALERT: Transfer amount %s exceeds maximum limit. Contact administrator.", generic.Naira(t.Amount))
			}
			return nil
		}),
		machine.Check(),
		func(ctx context.Context, a *generic.Attempt[Transfer]) error {
			if err := lookup.Exists(ctx, CollectionBankAccounts, a.Next.FromAccountID, "fromAccountId",
				"Bank account '"+a.Next.FromAccountID+"' not found"); err != nil {
				return err
			}
			return lookup.Exists(ctx, CollectionBankAccounts, a.Next.ToAccountID, "toAccountId",
				"Bank account '"+a.Next.ToAccountID+"' not found")
		},
		generic.Step(func(t Transfer) error {
			return policy.CheckSelfApproval("approvedBy", "transfers", t.ApprovedBy, t.InitiatedBy)
		}),
	)
}

// =============================================================================
// BANK ACCOUNT
// =============================================================================

var AccountTypes = generic.Enum{"current", "savings"}

type BankAccount struct {
	AccountName   string          `json:"accountName"`
	AccountNumber string          `json:"accountNumber"`
	BankName      string          `json:"bankName"`
	AccountType   string          `json:"accountType"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      *string         `json:"currency,omitempty"`
	IsActive      bool            `json:"isActive"`
	CreatedAt     int64           `json:"createdAt"`
	UpdatedAt     int64           `json:"updatedAt"`
}

// NewBankAccountValidator builds the bank_accounts pipeline.
func NewBankAccountValidator(deps Deps) *generic.Pipeline[BankAccount] {
	lookup := generic.Lookup{Reader: deps.Reader}
	policy := deps.Policy

	return generic.NewPipeline[BankAccount]("bank account", deps.Clock,
		generic.Step(func(b BankAccount) error {
			if !AccountTypes.Contains(b.AccountType) {
				return generic.Rejectf(generic.KindFormat, "accountType",
					"Invalid accountType '%s'. Must be: current or savings", b.AccountType)
			}
			return nil
		}),
		generic.Step(func(b BankAccount) error {
			if err := generic.Required("bankName", b.BankName); err != nil {
				return err
			}
			if !generic.IsValidAccountNumber(strings.TrimSpace(b.AccountNumber)) {
				return generic.Reject(generic.KindFormat, "accountNumber", "Account number must be exactly 10 digits")
			}
			return nil
		}),
		generic.Step(func(b BankAccount) error {
			if err := generic.CentPrecision("balance", "Balance", b.Balance); err != nil {
				return err
			}
			if b.Balance.LessThan(policy.AccountBalanceFloor) {
				return generic.Rejectf(generic.KindPolicy, "balance",
					"FRAUD ALERT: Account balance %s is unreasonably negative. Verify account integrity.",
					generic.Naira(b.Balance))
			}
			return nil
		}),
		func(ctx context.Context, a *generic.Attempt[BankAccount]) error {
			number := strings.TrimSpace(a.Next.AccountNumber)
			return lookup.Unique(ctx, CollectionBankAccounts, a.Key,
				generic.Where(generic.Eq("accountNumber", number)),
				"Account number '"+number+"' already exists")
		},
	)
}
