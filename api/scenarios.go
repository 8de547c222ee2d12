/*
scenarios.go - Demo datasets for testing and demonstrations

PURPOSE:

	Populates the store with a small, realistic school dataset. Every
	record goes through the gate, so a scenario that loads is itself proof
	that its records satisfy the rules. Dates and timestamps are derived
	from the handler clock so the data stays inside the rule windows.

AVAILABLE SCENARIOS:

	school-basics: classes, students, staff, categories, bank accounts and a
	               scholarship
	month-end:     school-basics plus fee assignments, a fee payment,
	               expenses moved through approval, a salary run, a bank
	               statement line and a large approved transfer

HOW SCENARIOS WORK:
 1. Reset the store
 2. Build typed records
 3. Put each one through the gate, in dependency order
 4. Updates are further Puts under the same key

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "month-end"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Gate wiring
  - finance, roster: Record types used here
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/finance-gate/finance"
	"github.com/warp/finance-gate/generic"
	"github.com/warp/finance-gate/roster"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

const (
	ScenarioSchoolBasics = "school-basics"
	ScenarioMonthEnd     = "month-end"
)

var scenarios = []ScenarioDTO{
	{
		ID:          ScenarioSchoolBasics,
		Name:        "School Basics",
		Description: "Reference data only: classes, students, staff, categories, accounts, scholarship",
	},
	{
		ID:          ScenarioMonthEnd,
		Name:        "Month End",
		Description: "Reference data plus fees, expenses, payroll and banking activity",
	},
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the loaded scenario, or null.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears every collection.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

var errUnknownScenario = errors.New("unknown scenario")

// LoadScenarioByID resets the store and puts the scenario's records
// through the gate.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	var build func(now time.Time) []seed
	switch id {
	case ScenarioSchoolBasics:
		build = schoolBasics
	case ScenarioMonthEnd:
		build = func(now time.Time) []seed { return append(schoolBasics(now), monthEnd(now)...) }
	default:
		return errUnknownScenario
	}

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	for _, s := range build(h.clock.Now()) {
		data, err := json.Marshal(s.record)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", s.collection, s.key, err)
		}
		if _, err := h.Gate.Put(ctx, s.collection, s.key, data); err != nil {
			return fmt.Errorf("%s/%s: %w", s.collection, s.key, err)
		}
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

type seed struct {
	collection string
	key        string
	record     any
}

func schoolBasics(now time.Time) []seed {
	created := generic.Nanos(now.Add(-2 * time.Hour))
	yearStart := fmt.Sprintf("%04d-01-01", now.Year())
	yearEnd := fmt.Sprintf("%04d-12-31", now.Year())

	return []seed{
		{roster.CollectionClasses, "jss1", map[string]any{"name": "JSS 1", "level": "junior"}},
		{roster.CollectionClasses, "jss2", map[string]any{"name": "JSS 2", "level": "junior"}},

		{roster.CollectionStudents, "stu-ada", roster.Student{
			Firstname: "Ada", Surname: "Okafor",
			AdmissionNumber: ptr("ADM/2024/001"), ClassID: ptr("jss1"), Gender: ptr("female"),
			GuardianPhone: ptr("08031234567"), GuardianEmail: ptr("okafor.family@example.com"),
		}},
		{roster.CollectionStudents, "stu-bayo", roster.Student{
			Firstname: "Bayo", Surname: "Hassan",
			AdmissionNumber: ptr("ADM/2024/002"), ClassID: ptr("jss2"), Gender: ptr("male"),
			GuardianPhone: ptr("+234 802 345 6789"),
		}},

		{roster.CollectionStaff, "stf-tunde", roster.Staff{
			Surname: "Adeyemi", Firstname: "Tunde", StaffNumber: "STF-001",
			Phone: "08021234567", Email: ptr("t.adeyemi@school.example"),
			Position: "Mathematics Teacher", Department: ptr("Sciences"),
			EmploymentType: "full-time", EmploymentDate: now.AddDate(-3, 0, 0).Format("2006-01-02"),
			BasicSalary: decimal.NewFromInt(200_000),
			Allowances: []roster.StaffAllowance{
				{Name: "Housing", Amount: decimal.NewFromInt(30_000), IsRecurring: true},
				{Name: "Transport", Amount: decimal.NewFromInt(20_000), IsRecurring: true},
			},
			BankName: ptr("First Bank"), AccountNumber: ptr("3012345678"),
			IsActive: true, CreatedAt: created, UpdatedAt: created,
		}},

		{finance.CollectionExpenseCategories, "utilities", finance.ExpenseCategory{
			Name: "Utilities", Description: ptr("Power, water and internet"), BudgetCode: ptr("UTL-001"),
			IsActive: true, CreatedAt: created, UpdatedAt: created,
		}},
		{finance.CollectionExpenseCategories, "maintenance", finance.ExpenseCategory{
			Name: "Building Maintenance", BudgetCode: ptr("MNT-002"),
			IsActive: true, CreatedAt: created, UpdatedAt: created,
		}},

		{finance.CollectionFeeCategories, "tuition", map[string]any{"name": "Tuition", "type": "tuition"}},
		{finance.CollectionFeeCategories, "uniform", map[string]any{"name": "Uniform", "type": "uniform"}},

		{finance.CollectionBankAccounts, "ops-account", finance.BankAccount{
			AccountName: "School Operations", AccountNumber: "0123456789", BankName: "GTBank",
			AccountType: "current", Balance: decimal.NewFromInt(12_500_000), Currency: ptr("NGN"),
			IsActive: true, CreatedAt: created, UpdatedAt: created,
		}},
		{finance.CollectionBankAccounts, "reserve-account", finance.BankAccount{
			AccountName: "Development Reserve", AccountNumber: "0987654321", BankName: "Access Bank",
			AccountType: "savings", Balance: decimal.NewFromInt(40_000_000), Currency: ptr("NGN"),
			IsActive: true, CreatedAt: created, UpdatedAt: created,
		}},

		{finance.CollectionScholarships, "sch-excellence", finance.Scholarship{
			Name: "Academic Excellence", Type: "percentage", PercentageOff: ptr(decimal.NewFromInt(25)),
			ApplicableTo: "all", StartDate: yearStart, EndDate: ptr(yearEnd),
			Status: finance.ScholarshipActive, CreatedBy: "principal",
			MaxBeneficiaries: ptr(int64(10)), CurrentBeneficiaries: ptr(int64(1)),
		}},
	}
}

func monthEnd(now time.Time) []seed {
	created := generic.Nanos(now.Add(-2 * time.Hour))
	approved := generic.Nanos(now.Add(-time.Hour))
	today := now.Format("2006-01-02")
	monthStart := fmt.Sprintf("%04d-%02d-01", now.Year(), int(now.Month()))
	year := fmt.Sprintf("%04d", now.Year())

	tuition := decimal.NewFromInt(150_000)
	uniform := decimal.NewFromInt(25_000)
	total := tuition.Add(uniform)
	paid := decimal.NewFromInt(100_000)

	pendingRepair := finance.Expense{
		CategoryID: "maintenance", CategoryName: "Building Maintenance",
		Amount:      decimal.NewFromInt(150_000),
		Description: "Roof repair, admin block",
		Purpose:     ptr("Replace leaking roof sheets above the admin office"),
		PaymentMethod: finance.MethodBankTransfer, PaymentDate: today,
		VendorName: ptr("Kola Builders Ltd"), VendorContact: ptr("kola@builders.example"),
		Reference: "EXP-" + year + "-MNT00001", Status: finance.ExpensePending,
		RecordedBy: "bursar", CreatedAt: created, UpdatedAt: created,
	}
	approvedRepair := pendingRepair
	approvedRepair.Status = finance.ExpenseApproved
	approvedRepair.ApprovedBy = ptr("principal")
	approvedRepair.ApprovedAt = ptr(approved)

	salary := finance.SalaryPayment{
		StaffID: "stf-tunde", StaffName: "Tunde Adeyemi", StaffNumber: "STF-001",
		PaymentDate: today, PaymentPeriodStart: monthStart, PaymentPeriodEnd: today,
		BasicSalary: decimal.NewFromInt(200_000),
		Allowances: []finance.SalaryAllowance{
			{Name: "Housing", Amount: decimal.NewFromInt(30_000), IsTaxable: true},
			{Name: "Transport", Amount: decimal.NewFromInt(20_000)},
		},
		Deductions: []finance.SalaryDeduction{
			{Name: "PAYE", Amount: decimal.NewFromInt(15_000), IsStatutory: true},
			{Name: "Pension", Amount: decimal.NewFromInt(15_000), IsStatutory: true},
		},
		GrossSalary:   ptr(decimal.NewFromInt(250_000)),
		NetSalary:     decimal.NewFromInt(220_000),
		PaymentMethod: finance.MethodBankTransfer,
		Reference:     fmt.Sprintf("SAL-%s-%02d-TUN001", year, int(now.Month())),
		Status:        finance.SalaryPending,
		ProcessedBy:   ptr("bursar"), ProcessedAt: ptr(created),
		CreatedAt: created, UpdatedAt: created,
	}
	approvedSalary := salary
	approvedSalary.Status = finance.SalaryApproved
	approvedSalary.ApprovedBy = ptr("principal")
	approvedSalary.ApprovedAt = ptr(approved)

	return []seed{
		{finance.CollectionFeeAssignments, "fa-ada-first", finance.FeeAssignment{
			StudentID: "stu-ada", StudentName: "Ada Okafor", ClassID: "jss1",
			FeeStructureID: "fs-jss1-first", AcademicYear: year, Term: "first",
			FeeItems: []finance.FeeItem{
				{CategoryID: "tuition", CategoryName: "Tuition", Type: "tuition",
					Amount: tuition, AmountPaid: paid, Balance: tuition.Sub(paid), IsMandatory: true},
				{CategoryID: "uniform", CategoryName: "Uniform", Type: "uniform",
					Amount: uniform, Balance: uniform, IsOptional: ptr(true), IsSelected: ptr(true)},
			},
			TotalAmount: total, AmountPaid: paid, Balance: total.Sub(paid),
			Status: finance.FeePartial, DueDate: ptr(today),
		}},
		{finance.CollectionFeeAssignments, "fa-bayo-first", finance.FeeAssignment{
			StudentID: "stu-bayo", StudentName: "Bayo Hassan", ClassID: "jss2",
			FeeStructureID: "fs-jss2-first", AcademicYear: year, Term: "first",
			FeeItems: []finance.FeeItem{
				{CategoryID: "tuition", CategoryName: "Tuition", Type: "tuition",
					Amount: tuition, Balance: tuition, IsMandatory: true},
				{CategoryID: "uniform", CategoryName: "Uniform", Type: "uniform",
					Amount: uniform, Balance: uniform, IsMandatory: true},
			},
			OriginalAmount:   ptr(total),
			ScholarshipID:    ptr("sch-excellence"),
			ScholarshipName:  ptr("Academic Excellence"),
			ScholarshipType:  ptr("percentage"),
			ScholarshipValue: ptr(decimal.NewFromInt(25)),
			DiscountAmount:   ptr(decimal.NewFromInt(43_750)),
			TotalAmount:      decimal.NewFromInt(131_250),
			Balance:          decimal.NewFromInt(131_250),
			Status:           finance.FeeUnpaid,
		}},

		{finance.CollectionPayments, "pay-ada-1", finance.Payment{
			StudentID: "stu-ada", StudentName: "Ada Okafor", ClassID: "jss1", ClassName: "JSS 1",
			FeeAssignmentID: "fa-ada-first", Amount: paid,
			PaymentMethod: finance.MethodBankTransfer, PaymentDate: today,
			FeeAllocations: []finance.FeeAllocation{
				{CategoryID: "tuition", CategoryName: "Tuition", FeeType: "tuition", Amount: paid},
			},
			Reference: "PAY-" + year + "-ADA00001", TransactionID: ptr("TRF-88231"),
			PaidBy: ptr("Mrs Okafor"), Status: finance.PaymentConfirmed,
			RecordedBy: "bursar", CreatedAt: created, UpdatedAt: created,
		}},

		{finance.CollectionExpenses, "exp-diesel", finance.Expense{
			CategoryID: "utilities", CategoryName: "Utilities",
			Amount:        decimal.RequireFromString("45000.50"),
			Description:   "Diesel for generator",
			PaymentMethod: finance.MethodPOS, PaymentDate: today,
			Reference: "EXP-" + year + "-UTL00001", Status: finance.ExpensePending,
			RecordedBy: "bursar", CreatedAt: created, UpdatedAt: created,
		}},
		{finance.CollectionExpenses, "exp-roof", pendingRepair},
		{finance.CollectionExpenses, "exp-roof", approvedRepair},

		{finance.CollectionSalaryPayments, "sal-tunde", salary},
		{finance.CollectionSalaryPayments, "sal-tunde", approvedSalary},

		{finance.CollectionBankTransactions, "btx-1", finance.BankTransaction{
			BankAccountID: "ops-account", TransactionDate: today,
			Description:  "Fee payment: Ada Okafor",
			CreditAmount: paid, Balance: ptr(decimal.NewFromInt(12_600_000)),
			Reference: ptr("PAY-" + year + "-ADA00001"), Status: finance.TxCleared,
			RecordedBy: "bursar", CreatedAt: created, UpdatedAt: created,
		}},

		{finance.CollectionBankTransfers, "trf-reserve", finance.Transfer{
			FromAccountID: "reserve-account", ToAccountID: "ops-account",
			Amount: decimal.NewFromInt(6_000_000), TransferDate: ptr(today),
			Description: ptr("Fund second-term capital projects"),
			Status:      finance.TransferCompleted, InitiatedBy: "bursar",
			ApprovedBy: ptr("principal"), ApprovedAt: ptr(approved),
			CreatedAt: created, UpdatedAt: created,
		}},
	}
}

func ptr[T any](v T) *T {
	return &v
}
