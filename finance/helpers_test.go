package finance_test

import (
	"context"
	"encoding/json"
	"maps"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/finance-gate/finance"
	"github.com/warp/finance-gate/generic"
	"github.com/warp/finance-gate/generic/store"
)

// =============================================================================
// FIXTURES
// =============================================================================

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

var (
	createdAt  = generic.Nanos(now.Add(-2 * time.Hour))
	approvedAt = generic.Nanos(now.Add(-time.Hour))
)

type record = map[string]any

// with copies base and applies key/value overrides. A nil value removes
// the key.
func with(base record, kv ...any) record {
	out := maps.Clone(base)
	for i := 0; i+1 < len(kv); i += 2 {
		key := kv[i].(string)
		if kv[i+1] == nil {
			delete(out, key)
			continue
		}
		out[key] = kv[i+1]
	}
	return out
}

// seededStore holds the records the pipelines reference.
func seededStore() *store.Memory {
	m := store.NewMemory()
	m.Seed(finance.CollectionExpenseCategories, "utilities", []byte(`{"name": "Utilities", "isActive": true}`))
	m.Seed(finance.CollectionFeeCategories, "tuition", []byte(`{"name": "Tuition"}`))
	m.Seed(finance.CollectionFeeCategories, "books", []byte(`{"name": "Books"}`))
	m.Seed(finance.CollectionFeeAssignments, "fa-1", []byte(`{"studentId": "stu-1"}`))
	m.Seed(finance.CollectionStudents, "stu-1", []byte(`{"firstname": "Ada", "surname": "Obi"}`))
	m.Seed(finance.CollectionStaff, "stf-1", []byte(`{"staffNumber": "STF-001"}`))
	m.Seed(finance.CollectionBankAccounts, "acct-main", []byte(`{"accountNumber": "0123456789"}`))
	m.Seed(finance.CollectionBankAccounts, "acct-savings", []byte(`{"accountNumber": "9876543210"}`))
	m.Seed(finance.CollectionScholarships, "sch-1", []byte(`{"name": "Merit"}`))
	return m
}

type harness struct {
	t     *testing.T
	store *store.Memory
	d     *generic.Dispatcher
}

func newHarness(t *testing.T, mutate ...func(*finance.Policy)) *harness {
	t.Helper()
	policy := finance.DefaultPolicy()
	for _, m := range mutate {
		m(&policy)
	}
	s := seededStore()
	d := generic.NewDispatcher()
	finance.Register(d, finance.Deps{Reader: s, Clock: generic.FixedClock{At: now}, Policy: policy})
	return &harness{t: t, store: s, d: d}
}

func (h *harness) encode(r record) []byte {
	h.t.Helper()
	if r == nil {
		return nil
	}
	data, err := json.Marshal(r)
	require.NoError(h.t, err)
	return data
}

// create validates r as a new record under key.
func (h *harness) create(collection, key string, r record) error {
	return h.update(collection, key, r, nil)
}

// update validates next against prev.
func (h *harness) update(collection, key string, next, prev record) error {
	h.t.Helper()
	return h.d.Validate(context.Background(), generic.WriteAttempt{
		Collection: collection,
		Key:        key,
		Proposed:   h.encode(next),
		Previous:   h.encode(prev),
	})
}

// seed stores r directly, bypassing validation.
func (h *harness) seed(collection, key string, r record) {
	h.store.Seed(collection, key, h.encode(r))
}

// rejected asserts err is a rejection of kind and returns it.
func rejected(t *testing.T, err error, kind generic.Kind) *generic.Rejection {
	t.Helper()
	require.Error(t, err)
	rej, ok := generic.AsRejection(err)
	require.True(t, ok, "not a rejection: %v", err)
	require.Equal(t, kind, rej.Kind, "message: %s", rej.Message)
	return rej
}

// =============================================================================
// VALID RECORDS
// =============================================================================

func validExpense() record {
	return record{
		"categoryId":    "utilities",
		"categoryName":  "Utilities",
		"amount":        1500.00,
		"description":   "Diesel for the generator",
		"paymentMethod": "cash",
		"paymentDate":   "2025-06-01",
		"reference":     "EXP-2024-AB12CD34",
		"status":        "pending",
		"recordedBy":    "bursar",
		"createdAt":     createdAt,
		"updatedAt":     createdAt,
	}
}

func approvedExpense() record {
	return with(validExpense(), "status", "approved", "approvedBy", "principal", "approvedAt", approvedAt)
}

func validPayment() record {
	return record{
		"studentId":       "stu-1",
		"studentName":     "Ada Obi",
		"classId":         "jss1",
		"className":       "JSS 1",
		"feeAssignmentId": "fa-1",
		"amount":          "45000.00",
		"paymentMethod":   "bank_transfer",
		"paymentDate":     "2025-06-10",
		"feeAllocations": []record{
			{"categoryId": "tuition", "categoryName": "Tuition", "feeType": "tuition", "amount": "40000.00"},
			{"categoryId": "books", "categoryName": "Books", "feeType": "books", "amount": "5000.00"},
		},
		"reference":  "PAY-2025-00000001",
		"status":     "confirmed",
		"recordedBy": "bursar",
		"createdAt":  createdAt,
		"updatedAt":  createdAt,
	}
}

func validSalary() record {
	return record{
		"staffId":            "stf-1",
		"staffName":          "Tunde Bello",
		"staffNumber":        "STF-001",
		"paymentDate":        "2025-06-28",
		"paymentPeriodStart": "2025-06-01",
		"paymentPeriodEnd":   "2025-06-30",
		"basicSalary":        "200000.00",
		"allowances": []record{
			{"name": "Housing", "amount": "30000.00", "isTaxable": true},
			{"name": "Transport", "amount": "20000.00", "isTaxable": false},
		},
		"deductions": []record{
			{"name": "Pension", "amount": "16000.00", "isStatutory": true},
			{"name": "Tax", "amount": "14000.00", "isStatutory": true},
		},
		"grossSalary":   "250000.00",
		"netSalary":     "220000.00",
		"paymentMethod": "bank_transfer",
		"reference":     "SAL-2025-06-TUN001",
		"status":        "pending",
		"createdAt":     createdAt,
		"updatedAt":     createdAt,
	}
}

func approvedSalary() record {
	return with(validSalary(),
		"status", "approved",
		"processedBy", "bursar",
		"approvedBy", "principal",
		"approvedAt", approvedAt,
	)
}

func validTransfer() record {
	return record{
		"fromAccountId": "acct-main",
		"toAccountId":   "acct-savings",
		"amount":        "250000.00",
		"status":        "pending",
		"initiatedBy":   "bursar",
		"createdAt":     createdAt,
		"updatedAt":     createdAt,
	}
}

func validBankTransaction() record {
	return record{
		"bankAccountId":   "acct-main",
		"transactionDate": "2025-06-10",
		"description":     "Fee deposit",
		"debitAmount":     0,
		"creditAmount":    "45000.00",
		"status":          "pending",
		"isReconciled":    false,
		"recordedBy":      "bursar",
		"createdAt":       createdAt,
		"updatedAt":       createdAt,
	}
}

func validBankAccount() record {
	return record{
		"accountName":   "School Operations",
		"accountNumber": "1111111111",
		"bankName":      "First Bank",
		"accountType":   "current",
		"balance":       "1500000.00",
		"isActive":      true,
		"createdAt":     createdAt,
		"updatedAt":     createdAt,
	}
}

func validFeeAssignment() record {
	return record{
		"studentId":      "stu-1",
		"studentName":    "Ada Obi",
		"classId":        "jss1",
		"feeStructureId": "fs-jss1-first",
		"academicYear":   "2024/2025",
		"term":           "first",
		"feeItems": []record{
			{"categoryId": "tuition", "categoryName": "Tuition", "type": "tuition",
				"amount": 40000, "amountPaid": 0, "balance": 40000, "isMandatory": true},
		},
		"totalAmount": 40000,
		"amountPaid":  0,
		"balance":     40000,
		"status":      "unpaid",
		"dueDate":     "2025-09-30",
	}
}

func validScholarship() record {
	return record{
		"name":          "Merit Award",
		"type":          "percentage",
		"percentageOff": 50,
		"applicableTo":  "all",
		"startDate":     "2025-01-01",
		"endDate":       "2025-12-31",
		"status":        "active",
		"createdBy":     "principal",
	}
}
