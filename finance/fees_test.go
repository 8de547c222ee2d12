package finance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/finance-gate/finance"
	"github.com/warp/finance-gate/generic"
)

const (
	assignments  = finance.CollectionFeeAssignments
	scholarships = finance.CollectionScholarships
)

// =============================================================================
// FEE ASSIGNMENTS
// =============================================================================

func TestFeeAssignment_StatusFollowsAmounts(t *testing.T) {
	tests := []struct {
		name    string
		paid    any
		balance any
		status  string
		want    string // empty means accepted
	}{
		{"unpaid", 0, 40000, "unpaid", ""},
		{"partial", 10000, 30000, "partial", ""},
		{"paid", 40000, 0, "paid", ""},
		{"overpaid", 45000, -5000, "overpaid", ""},
		{"paid while nothing paid", 0, 40000, "paid", "status must be 'unpaid' when amountPaid is 0"},
		{"partial claimed paid", 10000, 30000, "paid", "status must be 'partial' when partially paid"},
		{"settled claimed partial", 40000, 0, "partial", "status must be 'paid' when balance is 0"},
		{"overpayment claimed paid", 45000, -5000, "paid", "status must be 'overpaid' when balance is negative"},
		{"one kobo outstanding is settled", "39999.99", "0.01", "paid", ""},
		{"one kobo outstanding claimed partial", "39999.99", "0.01", "partial", "status must be 'paid' when balance is 0"},
		{"one kobo over is settled", "40000.01", "-0.01", "paid", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := with(validFeeAssignment(), "amountPaid", tt.paid, "balance", tt.balance, "status", tt.status)

			err := newHarness(t).create(assignments, "fa-2", r)

			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			rej := rejected(t, err, generic.KindConsistency)
			assert.Equal(t, "status", rej.Field)
			assert.Equal(t, tt.want, rej.Message)
		})
	}
}

func TestFeeAssignment_ZeroTotalIsUnpaid(t *testing.T) {
	// With nothing owed and nothing paid the first rule wins.
	h := newHarness(t)
	zero := with(validFeeAssignment(), "totalAmount", 0, "balance", 0)

	assert.NoError(t, h.create(assignments, "fa-2", zero))
	assert.EqualError(t, h.create(assignments, "fa-2", with(zero, "status", "paid")),
		"status must be 'unpaid' when amountPaid is 0")
}

func TestFeeAssignment_Rejections(t *testing.T) {
	item := func(overrides ...any) []record {
		base := record{"categoryId": "tuition", "categoryName": "Tuition", "type": "tuition",
			"amount": 40000, "amountPaid": 0, "balance": 40000, "isMandatory": true}
		return []record{with(base, overrides...)}
	}

	tests := []struct {
		name   string
		record record
		kind   generic.Kind
		want   string
	}{
		{"missing student name", with(validFeeAssignment(), "studentName", ""), generic.KindFormat,
			"studentName is required"},
		{"unknown term", with(validFeeAssignment(), "term", "fourth"), generic.KindFormat,
			"term must be 'first', 'second', or 'third'"},
		{"no items", with(validFeeAssignment(), "feeItems", []record{}), generic.KindFormat,
			"feeItems cannot be empty"},
		{"item without category", with(validFeeAssignment(), "feeItems", item("categoryId", "")), generic.KindFormat,
			"feeItem must have categoryId"},
		{"negative item", with(validFeeAssignment(), "feeItems", item("amount", -1)), generic.KindFormat,
			"Fee item tuition has negative amount"},
		{"sub-cent item", with(validFeeAssignment(), "feeItems", item("amount", "40000.004")), generic.KindFormat,
			"Fee item tuition amount must have at most 2 decimal places (got 40000.004)"},
		{"sub-cent item balance", with(validFeeAssignment(), "feeItems", item("balance", "39999.996")), generic.KindFormat,
			"Fee item tuition balance must have at most 2 decimal places (got 39999.996)"},
		{"sub-cent total inside tolerance", with(validFeeAssignment(), "totalAmount", "40000.004"), generic.KindFormat,
			"totalAmount must have at most 2 decimal places (got 40000.004)"},
		{"sub-cent paid", with(validFeeAssignment(), "amountPaid", "0.005", "balance", "39999.995"), generic.KindFormat,
			"amountPaid must have at most 2 decimal places (got 0.005)"},
		{"sub-cent balance inside tolerance", with(validFeeAssignment(), "balance", "40000.008"), generic.KindFormat,
			"balance must have at most 2 decimal places (got 40000.008)"},
		{"sub-cent original amount", with(validFeeAssignment(), "originalAmount", "80000.007"), generic.KindFormat,
			"originalAmount must have at most 2 decimal places (got 80000.007)"},
		{"mandatory and optional", with(validFeeAssignment(), "feeItems", item("isOptional", true)), generic.KindFormat,
			"Fee item tuition cannot be both mandatory and optional"},
		{"balance mismatch", with(validFeeAssignment(), "balance", 35000), generic.KindConsistency,
			"balance (35000) must equal totalAmount (40000) minus amountPaid (0)"},
		{"negative paid", with(validFeeAssignment(), "amountPaid", -1, "balance", 40001), generic.KindFormat,
			"amountPaid cannot be negative"},
		{"unknown status", with(validFeeAssignment(), "status", "settled"), generic.KindFormat,
			"status must be 'unpaid', 'partial', 'paid', or 'overpaid'"},
		{"due date shape", with(validFeeAssignment(), "dueDate", "2025-9-30"), generic.KindFormat,
			"Invalid date format: 2025-9-30. Expected YYYY-MM-DD"},
		{"due date month", with(validFeeAssignment(), "dueDate", "2025-13-01"), generic.KindFormat,
			"Month out of range: 13"},
		{"due date year", with(validFeeAssignment(), "dueDate", "1850-01-01"), generic.KindFormat,
			"Year out of range: 1850"},
		{"due date letters", with(validFeeAssignment(), "dueDate", "2025-0a-01"), generic.KindFormat,
			"Invalid month in date: 2025-0a-01"},
		{"unknown student", with(validFeeAssignment(), "studentId", "stu-9"), generic.KindIntegrity,
			"Student 'stu-9' not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newHarness(t).create(assignments, "fa-2", tt.record)

			rej := rejected(t, err, tt.kind)
			assert.Equal(t, tt.want, rej.Message)
		})
	}
}

func TestFeeAssignment_Scholarship(t *testing.T) {
	discounted := func(overrides ...any) record {
		base := with(validFeeAssignment(),
			"scholarshipId", "sch-1",
			"scholarshipName", "Merit",
			"scholarshipType", "percentage",
			"scholarshipValue", 50,
			"originalAmount", 80000,
			"discountAmount", 40000,
		)
		return with(base, overrides...)
	}

	t.Run("reconciled discount", func(t *testing.T) {
		assert.NoError(t, newHarness(t).create(assignments, "fa-2", discounted()))
	})

	tests := []struct {
		name   string
		record record
		kind   generic.Kind
		want   string
	}{
		{"blank id", discounted("scholarshipId", " "), generic.KindFormat,
			"scholarshipId cannot be empty string"},
		{"missing type", discounted("scholarshipType", nil), generic.KindFormat,
			"scholarshipType is required when scholarshipId is present"},
		{"unknown type", discounted("scholarshipType", "full_waiver"), generic.KindFormat,
			"scholarshipType must be 'percentage', 'fixed_amount', or 'waiver'"},
		{"missing discount", discounted("discountAmount", nil), generic.KindFormat,
			"discountAmount is required when scholarship is applied"},
		{"discount above original", discounted("discountAmount", 90000), generic.KindConsistency,
			"discountAmount cannot exceed originalAmount"},
		{"percentage out of range", discounted("scholarshipValue", 120), generic.KindFormat,
			"scholarshipValue for percentage must be between 0 and 100"},
		{"total mismatch", discounted("totalAmount", 45000, "balance", 45000), generic.KindConsistency,
			"totalAmount (45000) should equal originalAmount (80000) minus discountAmount (40000)"},
		{"unknown scholarship", discounted("scholarshipId", "sch-9"), generic.KindIntegrity,
			"Scholarship 'sch-9' not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newHarness(t).create(assignments, "fa-2", tt.record)

			rej := rejected(t, err, tt.kind)
			assert.Equal(t, tt.want, rej.Message)
		})
	}
}

// =============================================================================
// SCHOLARSHIPS
// =============================================================================

func TestScholarship_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		record record
		kind   generic.Kind
		want   string
	}{
		{"blank name", with(validScholarship(), "name", " "), generic.KindFormat,
			"name cannot be empty"},
		{"unknown type", with(validScholarship(), "type", "bursary"), generic.KindFormat,
			"type must be 'percentage', 'fixed_amount', or 'full_waiver'"},
		{"percentage missing", with(validScholarship(), "percentageOff", nil), generic.KindFormat,
			"percentageOff is required for percentage type"},
		{"percentage above 100", with(validScholarship(), "percentageOff", 150), generic.KindFormat,
			"percentageOff must be between 0 and 100"},
		{"fixed missing", with(validScholarship(), "type", "fixed_amount"), generic.KindFormat,
			"fixedAmountOff is required for fixed_amount type"},
		{"fixed zero", with(validScholarship(), "type", "fixed_amount", "fixedAmountOff", 0), generic.KindFormat,
			"fixedAmountOff must be greater than 0"},
		{"fixed sub-cent", with(validScholarship(), "type", "fixed_amount", "fixedAmountOff", "5000.005"), generic.KindFormat,
			"fixedAmountOff must have at most 2 decimal places (got 5000.005)"},
		{"unknown scope", with(validScholarship(), "applicableTo", "everyone"), generic.KindFormat,
			"applicableTo must be 'all', 'specific_classes', or 'specific_students'"},
		{"classes missing", with(validScholarship(), "applicableTo", "specific_classes"), generic.KindFormat,
			"classIds is required when applicableTo is 'specific_classes'"},
		{"classes empty", with(validScholarship(), "applicableTo", "specific_classes", "classIds", []string{}), generic.KindFormat,
			"classIds cannot be empty for specific_classes"},
		{"students empty", with(validScholarship(), "applicableTo", "specific_students", "studentIds", []string{}), generic.KindFormat,
			"studentIds cannot be empty for specific_students"},
		{"bad start", with(validScholarship(), "startDate", "2025/01/01"), generic.KindFormat,
			"Invalid date format: 2025/01/01. Expected YYYY-MM-DD"},
		{"end before start", with(validScholarship(), "endDate", "2024-12-31"), generic.KindFormat,
			"endDate must be after startDate"},
		{"no beneficiaries", with(validScholarship(), "maxBeneficiaries", 0), generic.KindFormat,
			"maxBeneficiaries must be at least 1"},
		{"over capacity", with(validScholarship(), "maxBeneficiaries", 5, "currentBeneficiaries", 6), generic.KindConsistency,
			"currentBeneficiaries cannot exceed maxBeneficiaries"},
		{"created expired", with(validScholarship(), "status", "expired"), generic.KindTransition,
			"New scholarships must have status 'active'"},
		{"blank creator", with(validScholarship(), "createdBy", ""), generic.KindFormat,
			"createdBy cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newHarness(t).create(scholarships, "sch-2", tt.record)

			rej := rejected(t, err, tt.kind)
			assert.Equal(t, tt.want, rej.Message)
		})
	}
}

func TestScholarship_Lifecycle(t *testing.T) {
	active := validScholarship()
	suspended := with(active, "status", "suspended")
	expired := with(active, "status", "expired")

	h := newHarness(t)
	assert.NoError(t, h.create(scholarships, "sch-2", active))
	assert.NoError(t, h.create(scholarships, "sch-2", with(active, "type", "full_waiver", "percentageOff", nil)))
	assert.NoError(t, h.update(scholarships, "sch-2", suspended, active))
	assert.NoError(t, h.update(scholarships, "sch-2", active, suspended))
	assert.NoError(t, h.update(scholarships, "sch-2", expired, suspended))

	err := h.update(scholarships, "sch-2", active, expired)
	assert.EqualError(t, err, "Invalid status transition from 'expired' to 'active'. Allowed transitions: []")
}

// =============================================================================
// REGISTRATION
// =============================================================================

func TestRegister_RoutesEveryFinanceCollection(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, []string{
		"bank_accounts", "bank_transactions", "bank_transfers", "budgets",
		"expense_categories", "expenses", "fee_assignments", "fee_categories",
		"payments", "salary_payments", "scholarships",
	}, h.d.Collections())
}

func TestRegister_PassThroughCollections(t *testing.T) {
	h := newHarness(t)

	assert.NoError(t, h.create(finance.CollectionBudgets, "b-1", record{"anything": "goes"}))
	assert.NoError(t, h.create(finance.CollectionFeeCategories, "fc-1", record{}))
}
