package generic

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMS
// =============================================================================

// Enum is a fixed allowed set for a field.
type Enum []string

func (e Enum) Contains(v string) bool {
	for _, a := range e {
		if a == v {
			return true
		}
	}
	return false
}

func (e Enum) String() string {
	return strings.Join(e, ", ")
}

// Check rejects v when it is not a member, naming the value and the set.
func (e Enum) Check(field, label, v string) error {
	if e.Contains(v) {
		return nil
	}
	return Rejectf(KindFormat, field, "Invalid %s '%s'. Must be one of: %s", label, v, e)
}

// =============================================================================
// AMOUNTS
// =============================================================================

// Positive rejects amounts that are zero or negative.
func Positive(field, label string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return Rejectf(KindFormat, field, "%s must be greater than 0", label)
	}
	return nil
}

// NonNegative rejects negative amounts.
func NonNegative(field, label string, d decimal.Decimal) error {
	if d.IsNegative() {
		return Rejectf(KindFormat, field, "%s cannot be negative", label)
	}
	return nil
}

// CentPrecision rejects amounts with more than two decimal places.
func CentPrecision(field, label string, d decimal.Decimal) error {
	if !HasCentPrecision(d) {
		return Rejectf(KindFormat, field, "%s must have at most 2 decimal places (got %s)", label, d.String())
	}
	return nil
}

// =============================================================================
// REFERENCE CODES
// =============================================================================

// ReferenceFormat describes PREFIX-YYYY-SUFFIX or PREFIX-YYYY-MM-SUFFIX codes.
type ReferenceFormat struct {
	Label     string // "Expense", "Payment", ...
	Prefix    string
	WithMonth bool
	SuffixLen int
}

var (
	ExpenseReference = ReferenceFormat{Label: "Expense", Prefix: "EXP", SuffixLen: 8}
	PaymentReference = ReferenceFormat{Label: "Payment", Prefix: "PAY", SuffixLen: 8}
	SalaryReference  = ReferenceFormat{Label: "Salary", Prefix: "SAL", WithMonth: true, SuffixLen: 6}
)

// Pattern renders the human-readable shape, e.g. EXP-YYYY-XXXXXXXX.
func (f ReferenceFormat) Pattern() string {
	p := f.Prefix + "-YYYY-"
	if f.WithMonth {
		p += "MM-"
	}
	return p + strings.Repeat("X", f.SuffixLen)
}

// Matches reports whether ref has exactly the declared shape.
func (f ReferenceFormat) Matches(ref string) bool {
	if len(ref) != len(f.Pattern()) {
		return false
	}
	parts := strings.Split(ref, "-")
	want := 3
	if f.WithMonth {
		want = 4
	}
	if len(parts) != want || parts[0] != f.Prefix {
		return false
	}
	if _, ok := digits(parts[1]); !ok || len(parts[1]) != 4 {
		return false
	}
	if f.WithMonth {
		m, ok := digits(parts[2])
		if !ok || len(parts[2]) != 2 || m < 1 || m > 12 {
			return false
		}
	}
	suffix := parts[len(parts)-1]
	if len(suffix) != f.SuffixLen {
		return false
	}
	for _, r := range suffix {
		if !isASCIIAlnum(r) {
			return false
		}
	}
	return true
}

// Check rejects references with the wrong prefix or shape.
func (f ReferenceFormat) Check(field, ref string) error {
	if !strings.HasPrefix(ref, f.Prefix+"-") {
		return Rejectf(KindFormat, field, "%s reference must start with '%s-'", f.Label, f.Prefix)
	}
	if !f.Matches(ref) {
		return Rejectf(KindFormat, field, "%s reference must follow format: %s", f.Label, f.Pattern())
	}
	return nil
}

// =============================================================================
// CONTACT SHAPES
// =============================================================================

// IsValidPhone accepts 11-digit local numbers starting with 0 or 13-digit
// international numbers starting with 234. Spaces, dashes, plus signs and
// parentheses are ignored.
func IsValidPhone(phone string) bool {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '+', '(', ')':
			return -1
		}
		return r
	}, phone)
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return false
		}
	}
	switch len(cleaned) {
	case 11:
		return strings.HasPrefix(cleaned, "0")
	case 13:
		return strings.HasPrefix(cleaned, "234")
	}
	return false
}

func IsValidEmail(email string) bool {
	return strings.Contains(email, "@") && strings.Contains(email, ".") && len(email) > 5
}

func IsValidURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// =============================================================================
// NAMES AND CODES
// =============================================================================

// IsValidAccountNumber accepts exactly ten digits.
func IsValidAccountNumber(n string) bool {
	if len(n) != 10 {
		return false
	}
	_, ok := digits(n)
	return ok
}

// IsValidBudgetCode accepts AAA-000.
func IsValidBudgetCode(code string) bool {
	if len(code) != 7 || code[3] != '-' {
		return false
	}
	for i := 0; i < 3; i++ {
		if !isASCIIAlnum(rune(code[i])) || unicode.IsDigit(rune(code[i])) {
			return false
		}
	}
	_, ok := digits(code[4:])
	return ok
}

// IsValidCategoryName accepts 3-100 characters of letters, digits, spaces
// and ._-'() punctuation.
func IsValidCategoryName(name string) bool {
	n := utf8.RuneCountInString(name)
	if n < 3 || n > 100 {
		return false
	}
	return onlyRunes(name, "._-'()")
}

// IsValidDepartmentName accepts up to 50 characters of letters, digits,
// spaces and ._-&'() punctuation.
func IsValidDepartmentName(name string) bool {
	return utf8.RuneCountInString(name) <= 50 && onlyRunes(name, "._-&'()")
}

// Required rejects blank text.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return Rejectf(KindFormat, field, "%s is required", field)
	}
	return nil
}

// OptionalText returns the trimmed value of an optional field.
func OptionalText(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func onlyRunes(s, punctuation string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || strings.ContainsRune(punctuation, r) {
			continue
		}
		return false
	}
	return true
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
