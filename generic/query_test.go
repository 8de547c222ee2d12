package generic_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finance-gate/generic"
	"github.com/warp/finance-gate/generic/mocks"
	"github.com/warp/finance-gate/generic/store"
	"go.uber.org/mock/gomock"
)

// =============================================================================
// INDEXED FIELDS AND MATCHING
// =============================================================================

func TestIndexFields(t *testing.T) {
	fields, err := generic.IndexFields([]byte(`{
		"reference": "EXP-2025-ABCD1234",
		"amount": 1500.00,
		"isActive": true,
		"notes": null,
		"allowances": [{"name": "Housing"}],
		"meta": {"k": "v"}
	}`))

	require.NoError(t, err)
	assert.Equal(t, generic.IndexedFields{
		"reference": "EXP-2025-ABCD1234",
		"amount":    "1500",
		"isActive":  "true",
	}, fields)
	assert.Equal(t, []string{"amount", "isActive", "reference"}, fields.Names())
}

func TestIndexFields_RejectsNonObjects(t *testing.T) {
	_, err := generic.IndexFields([]byte(`[1, 2]`))

	assert.Error(t, err)
}

func TestQuery_Matches(t *testing.T) {
	fields := generic.IndexedFields{"staffNumber": "STF-001", "amount": "1500", "paymentDate": "2025-06-01"}

	assert.True(t, generic.Where(generic.EqFold("staffNumber", "stf-001")).Matches(fields))
	assert.False(t, generic.Where(generic.Eq("staffNumber", "stf-001")).Matches(fields))
	assert.True(t, generic.Where(
		generic.EqAmount("amount", decimal.RequireFromString("1500.00")),
		generic.Eq("paymentDate", "2025-06-01"),
	).Matches(fields))
	assert.False(t, generic.Where(generic.Eq("vendorName", "Kola")).Matches(fields))
}

func TestQuery_MatchesAmountsStoredAsText(t *testing.T) {
	// GIVEN a record whose amount was written as a JSON string
	fields, err := generic.IndexFields([]byte(`{"amount": "1500.00", "accountNumber": "0123456789", "vendorName": "Kola"}`))
	require.NoError(t, err)

	// THEN the text is indexed verbatim
	assert.Equal(t, "1500.00", fields["amount"])
	assert.Equal(t, "0123456789", fields["accountNumber"])

	// AND amount filters still compare it as a decimal
	assert.True(t, generic.Where(generic.EqAmount("amount", decimal.NewFromInt(1500))).Matches(fields))
	assert.False(t, generic.Where(generic.EqAmount("amount", decimal.RequireFromString("1500.01"))).Matches(fields))
	assert.False(t, generic.Where(generic.EqAmount("vendorName", decimal.Zero)).Matches(fields))

	// AND codes keep their leading zeros
	assert.False(t, generic.Where(generic.Eq("accountNumber", "123456789")).Matches(fields))
}

func TestCanonicalAmount(t *testing.T) {
	got, ok := generic.CanonicalAmount(" 1500.50 ")
	assert.True(t, ok)
	assert.Equal(t, "1500.5", got)

	_, ok = generic.CanonicalAmount("Kola")
	assert.False(t, ok)
}

func TestFold_UsesUnicodeCaseFolding(t *testing.T) {
	assert.Equal(t, generic.Fold("STRASSE"), generic.Fold("Straße"))
	assert.Equal(t, generic.Fold("ADM/2024/001"), generic.Fold("adm/2024/001"))
}

func TestQuery_Pattern(t *testing.T) {
	q := generic.Where(generic.Eq("reference", "EXP-1"), generic.EqFold("vendorName", "Kola Builders"))

	assert.Equal(t, "reference=EXP-1*vendorName=kola builders;", q.Pattern())
	assert.Equal(t, q.Pattern(), q.String())
}

// =============================================================================
// LOOKUP
// =============================================================================

func seededMemory() *store.Memory {
	m := store.NewMemory()
	m.Seed("staff", "stf-1", []byte(`{"staffNumber": "STF-001"}`))
	m.Seed("staff", "stf-2", []byte(`{"staffNumber": "STF-002"}`))
	return m
}

func TestLookup_UniqueIgnoresSelf(t *testing.T) {
	l := generic.Lookup{Reader: seededMemory()}
	q := generic.Where(generic.EqFold("staffNumber", "stf-001"))

	// Updating stf-1 with its own number is fine.
	assert.NoError(t, l.Unique(context.Background(), "staff", "stf-1", q, "taken"))

	// Anyone else using it is a duplicate.
	err := l.Unique(context.Background(), "staff", "stf-9", q, "Staff number 'stf-001' already exists")
	require.Error(t, err)
	assert.Equal(t, generic.KindIntegrity, generic.KindOf(err))
	rej, _ := generic.AsRejection(err)
	assert.Equal(t, "staffNumber", rej.Field)
}

func TestLookup_Exists(t *testing.T) {
	l := generic.Lookup{Reader: seededMemory()}

	assert.NoError(t, l.Exists(context.Background(), "staff", "stf-2", "staffId", "missing"))

	err := l.Exists(context.Background(), "staff", "stf-9", "staffId", "Staff member 'stf-9' not found")
	assert.EqualError(t, err, "Staff member 'stf-9' not found")
}

func TestLookup_ReaderFailuresBecomeIntegrityRejections(t *testing.T) {
	// GIVEN a reader whose every call fails
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockReader(ctrl)
	boom := errors.New("database is locked")
	reader.EXPECT().Find(gomock.Any(), "expenses", gomock.Any()).Return(nil, boom)
	reader.EXPECT().Get(gomock.Any(), "expense_categories", "utilities").Return(nil, boom)
	l := generic.Lookup{Reader: reader}

	// WHEN uniqueness and existence are checked
	uniqueErr := l.Unique(context.Background(), "expenses", "exp-1",
		generic.Where(generic.Eq("reference", "EXP-2025-ABCD1234")), "duplicate")
	existsErr := l.Exists(context.Background(), "expense_categories", "utilities", "categoryId", "missing")

	// THEN both are rejections that still carry the cause
	assert.Equal(t, generic.KindIntegrity, generic.KindOf(uniqueErr))
	assert.ErrorIs(t, uniqueErr, boom)
	assert.Equal(t, "Failed to query expenses: database is locked", uniqueErr.Error())

	assert.Equal(t, generic.KindIntegrity, generic.KindOf(existsErr))
	assert.ErrorIs(t, existsErr, boom)
	assert.Equal(t, "Failed to look up expense_categories 'utilities': database is locked", existsErr.Error())
}

func TestFetch(t *testing.T) {
	type staffRow struct {
		StaffNumber string `json:"staffNumber"`
	}
	m := seededMemory()

	got, err := generic.Fetch[staffRow](context.Background(), m, "staff", "stf-2")
	require.NoError(t, err)
	assert.Equal(t, "STF-002", got.StaffNumber)

	_, err = generic.Fetch[staffRow](context.Background(), m, "staff", "nobody")
	assert.True(t, generic.IsNotFound(err))
}
