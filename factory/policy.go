/*
Package factory provides policy document to Go conversion.

PURPOSE:
  Converts JSON or YAML policy documents into finance.Policy. Every field
  is optional; anything left out keeps its finance.DefaultPolicy value.
  The result is validated before it is returned.

JSON SCHEMA:
  {
    "cash_ceiling": 500000,
    "card_ceiling": 2000000,
    "transfer_like_methods": ["bank_transfer", "online", "cheque"],
    "expense_documentation": {
      "vendor_required_from": 50000,
      "purpose_required_from": 100000,
      "purpose_min_length": 20,
      "invoice_required_from": 500000
    },
    "banking": {
      "max_transfer_without_approval": 5000000,
      "max_single_transaction": 1000000000,
      "overdraft_alert_threshold": -10000000,
      "account_balance_floor": -50000000
    },
    "forbid_self_approval": true
  }

  The same keys are accepted in YAML.

USAGE:
  f := factory.NewPolicyFactory()
  policy, err := f.LoadFile("policy.yaml")

SEE ALSO:
  - finance/policy.go: Policy type definition and defaults
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/finance-gate/finance"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// DOCUMENT SCHEMA TYPES
// =============================================================================

// PolicyJSON is the document representation of a policy.
type PolicyJSON struct {
	CashCeiling          *decimal.Decimal   `json:"cash_ceiling,omitempty" yaml:"cash_ceiling,omitempty"`
	CardCeiling          *decimal.Decimal   `json:"card_ceiling,omitempty" yaml:"card_ceiling,omitempty"`
	TransferLikeMethods  []string           `json:"transfer_like_methods,omitempty" yaml:"transfer_like_methods,omitempty"`
	ExpenseDocumentation *DocumentationJSON `json:"expense_documentation,omitempty" yaml:"expense_documentation,omitempty"`
	Banking              *BankingJSON       `json:"banking,omitempty" yaml:"banking,omitempty"`
	ForbidSelfApproval   *bool              `json:"forbid_self_approval,omitempty" yaml:"forbid_self_approval,omitempty"`
}

// DocumentationJSON holds the expense documentation tiers.
type DocumentationJSON struct {
	VendorRequiredFrom  *decimal.Decimal `json:"vendor_required_from,omitempty" yaml:"vendor_required_from,omitempty"`
	PurposeRequiredFrom *decimal.Decimal `json:"purpose_required_from,omitempty" yaml:"purpose_required_from,omitempty"`
	PurposeMinLength    *int             `json:"purpose_min_length,omitempty" yaml:"purpose_min_length,omitempty"`
	InvoiceRequiredFrom *decimal.Decimal `json:"invoice_required_from,omitempty" yaml:"invoice_required_from,omitempty"`
}

// BankingJSON holds the banking limits.
type BankingJSON struct {
	MaxTransferWithoutApproval *decimal.Decimal `json:"max_transfer_without_approval,omitempty" yaml:"max_transfer_without_approval,omitempty"`
	MaxSingleTransaction       *decimal.Decimal `json:"max_single_transaction,omitempty" yaml:"max_single_transaction,omitempty"`
	OverdraftAlertThreshold    *decimal.Decimal `json:"overdraft_alert_threshold,omitempty" yaml:"overdraft_alert_threshold,omitempty"`
	AccountBalanceFloor        *decimal.Decimal `json:"account_balance_floor,omitempty" yaml:"account_balance_floor,omitempty"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts policy documents to finance.Policy.
type PolicyFactory struct {
	base finance.Policy
}

// NewPolicyFactory creates a factory that fills gaps from finance.DefaultPolicy.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{base: finance.DefaultPolicy()}
}

// ParsePolicy parses a JSON document.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (finance.Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return finance.Policy{}, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// ParsePolicyYAML parses a YAML document. It is decoded generically and
// re-encoded as JSON so both formats share one schema.
func (f *PolicyFactory) ParsePolicyYAML(yamlStr string) (finance.Policy, error) {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(yamlStr), &raw); err != nil {
		return finance.Policy{}, fmt.Errorf("failed to parse policy YAML: %w", err)
	}
	if raw == nil {
		return f.FromJSON(PolicyJSON{})
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return finance.Policy{}, fmt.Errorf("failed to convert policy YAML: %w", err)
	}
	return f.ParsePolicy(string(data))
}

// LoadFile reads a policy document, choosing the format by extension.
func (f *PolicyFactory) LoadFile(path string) (finance.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return finance.Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return f.ParsePolicyYAML(string(data))
	default:
		return f.ParsePolicy(string(data))
	}
}

// FromJSON overlays pj on the factory defaults and validates the result.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (finance.Policy, error) {
	p := f.base
	p.TransferLikeMethods = append([]string(nil), f.base.TransferLikeMethods...)

	setDecimal(&p.CashCeiling, pj.CashCeiling)
	setDecimal(&p.CardCeiling, pj.CardCeiling)
	if len(pj.TransferLikeMethods) > 0 {
		p.TransferLikeMethods = pj.TransferLikeMethods
	}
	if d := pj.ExpenseDocumentation; d != nil {
		setDecimal(&p.VendorRequiredFrom, d.VendorRequiredFrom)
		setDecimal(&p.PurposeRequiredFrom, d.PurposeRequiredFrom)
		setDecimal(&p.InvoiceRequiredFrom, d.InvoiceRequiredFrom)
		if d.PurposeMinLength != nil {
			p.PurposeMinLength = *d.PurposeMinLength
		}
	}
	if b := pj.Banking; b != nil {
		setDecimal(&p.MaxTransferWithoutApproval, b.MaxTransferWithoutApproval)
		setDecimal(&p.MaxSingleTransaction, b.MaxSingleTransaction)
		setDecimal(&p.OverdraftAlertThreshold, b.OverdraftAlertThreshold)
		setDecimal(&p.AccountBalanceFloor, b.AccountBalanceFloor)
	}
	if pj.ForbidSelfApproval != nil {
		p.ForbidSelfApproval = *pj.ForbidSelfApproval
	}

	if err := p.Validate(); err != nil {
		return finance.Policy{}, err
	}
	return p, nil
}

// ToJSON converts a Policy to its fully populated document form.
func (f *PolicyFactory) ToJSON(p finance.Policy) PolicyJSON {
	minLength := p.PurposeMinLength
	forbid := p.ForbidSelfApproval
	return PolicyJSON{
		CashCeiling:         ptr(p.CashCeiling),
		CardCeiling:         ptr(p.CardCeiling),
		TransferLikeMethods: append([]string(nil), p.TransferLikeMethods...),
		ExpenseDocumentation: &DocumentationJSON{
			VendorRequiredFrom:  ptr(p.VendorRequiredFrom),
			PurposeRequiredFrom: ptr(p.PurposeRequiredFrom),
			PurposeMinLength:    &minLength,
			InvoiceRequiredFrom: ptr(p.InvoiceRequiredFrom),
		},
		Banking: &BankingJSON{
			MaxTransferWithoutApproval: ptr(p.MaxTransferWithoutApproval),
			MaxSingleTransaction:       ptr(p.MaxSingleTransaction),
			OverdraftAlertThreshold:    ptr(p.OverdraftAlertThreshold),
			AccountBalanceFloor:        ptr(p.AccountBalanceFloor),
		},
		ForbidSelfApproval: &forbid,
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func setDecimal(dst *decimal.Decimal, src *decimal.Decimal) {
	if src != nil {
		*dst = *src
	}
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
