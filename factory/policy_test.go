package factory_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finance-gate/factory"
	"github.com/warp/finance-gate/finance"
	"github.com/warp/finance-gate/generic"
)

func TestParsePolicy_EmptyDocumentKeepsDefaults(t *testing.T) {
	p, err := factory.NewPolicyFactory().ParsePolicy(`{}`)

	require.NoError(t, err)
	assert.Equal(t, finance.DefaultPolicy(), p)
}

func TestParsePolicy_Overlay(t *testing.T) {
	// GIVEN a document overriding a few thresholds
	doc := `{
		"cash_ceiling": 250000,
		"transfer_like_methods": ["bank_transfer"],
		"expense_documentation": {"purpose_min_length": 30},
		"banking": {"max_transfer_without_approval": "1000000.50"},
		"forbid_self_approval": false
	}`

	// WHEN parsed
	p, err := factory.NewPolicyFactory().ParsePolicy(doc)

	// THEN the overrides apply and everything else keeps its default
	require.NoError(t, err)
	assert.True(t, p.CashCeiling.Equal(generic.MustDecimal("250000")))
	assert.Equal(t, []string{"bank_transfer"}, p.TransferLikeMethods)
	assert.Equal(t, 30, p.PurposeMinLength)
	assert.True(t, p.MaxTransferWithoutApproval.Equal(generic.MustDecimal("1000000.50")))
	assert.False(t, p.ForbidSelfApproval)

	defaults := finance.DefaultPolicy()
	assert.True(t, p.CardCeiling.Equal(defaults.CardCeiling))
	assert.True(t, p.VendorRequiredFrom.Equal(defaults.VendorRequiredFrom))
	assert.True(t, p.AccountBalanceFloor.Equal(defaults.AccountBalanceFloor))
}

func TestParsePolicy_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"malformed", `{"cash_ceiling": }`, "failed to parse policy JSON"},
		{"negative ceiling", `{"cash_ceiling": -1}`, "cash ceiling must be positive"},
		{"card below cash", `{"card_ceiling": 1000}`, "card ceiling (1000) must be >= cash ceiling (500000)"},
		{"unknown method", `{"transfer_like_methods": ["barter"]}`, `unknown transfer-like method "barter"`},
		{"positive floor", `{"banking": {"account_balance_floor": 10}}`, "overdraft thresholds must be zero or negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.NewPolicyFactory().ParsePolicy(tt.doc)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParsePolicyYAML(t *testing.T) {
	f := factory.NewPolicyFactory()

	p, err := f.ParsePolicyYAML(`
cash_ceiling: 300000
expense_documentation:
  vendor_required_from: 25000
forbid_self_approval: false
`)

	require.NoError(t, err)
	assert.True(t, p.CashCeiling.Equal(generic.MustDecimal("300000")))
	assert.True(t, p.VendorRequiredFrom.Equal(generic.MustDecimal("25000")))
	assert.False(t, p.ForbidSelfApproval)

	empty, err := f.ParsePolicyYAML("")
	require.NoError(t, err)
	assert.Equal(t, finance.DefaultPolicy(), empty)

	_, err = f.ParsePolicyYAML("cash_ceiling: [")
	assert.ErrorContains(t, err, "failed to parse policy YAML")
}

func TestLoadFile_ChoosesFormatByExtension(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "policy.yml")
	jsonPath := filepath.Join(dir, "policy.json")
	require.NoError(t, os.WriteFile(yamlPath, []byte("card_ceiling: 3000000\n"), 0o644))
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"card_ceiling": 4000000}`), 0o644))
	f := factory.NewPolicyFactory()

	fromYAML, err := f.LoadFile(yamlPath)
	require.NoError(t, err)
	fromJSON, err := f.LoadFile(jsonPath)
	require.NoError(t, err)

	assert.True(t, fromYAML.CardCeiling.Equal(generic.MustDecimal("3000000")))
	assert.True(t, fromJSON.CardCeiling.Equal(generic.MustDecimal("4000000")))

	_, err = f.LoadFile(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "failed to read policy file")
}

func TestToJSON_RoundTrips(t *testing.T) {
	// GIVEN a non-default policy rendered to its document form
	f := factory.NewPolicyFactory()
	p := finance.DefaultPolicy()
	p.CashCeiling = generic.MustDecimal("123456.78")
	p.ForbidSelfApproval = false

	data, err := json.Marshal(f.ToJSON(p))
	require.NoError(t, err)

	// WHEN the document is parsed back
	back, err := f.ParsePolicy(string(data))

	// THEN nothing is lost, including the false flag
	require.NoError(t, err)
	assert.True(t, back.CashCeiling.Equal(p.CashCeiling))
	assert.False(t, back.ForbidSelfApproval)
	assert.Equal(t, p.TransferLikeMethods, back.TransferLikeMethods)
}

func TestFromJSON_DoesNotShareDefaults(t *testing.T) {
	f := factory.NewPolicyFactory()
	p, err := f.FromJSON(factory.PolicyJSON{})
	require.NoError(t, err)

	p.TransferLikeMethods[0] = "cash"

	again, err := f.FromJSON(factory.PolicyJSON{})
	require.NoError(t, err)
	assert.Equal(t, finance.MethodBankTransfer, again.TransferLikeMethods[0])
}
