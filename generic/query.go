/*
query.go - Typed predicates for uniqueness and reference checks

PURPOSE:
  Duplicate references, duplicate natural keys, and dangling foreign keys
  are detected by querying sibling records at write time. There is no
  storage-level unique index behind these checks, so they run on every
  write, not just at creation.

KEY CONCEPTS:
  Filter:        field = value, matched exactly (codes), case-folded
                 (natural keys such as staff numbers and category names) or
                 as decimal amounts (money, whether stored as number or text)
  Query:         conjunction of filters over one collection
  IndexedFields: the flattened top-level scalars of a record that filters
                 are matched against
  Lookup:        Unique/Exists helpers that turn query results into
                 integrity rejections, ignoring the record being updated

LEGACY PATTERNS:
  Stores that only offer substring matching over a description field can
  use Query.Pattern(), which renders "field=value" fragments joined by '*'
  and terminated by ';'.

SEE ALSO:
  - store.go: Reader interface consumed here
  - store/memory.go and store/sqlite: both match filters on IndexedFields
*/
package generic

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// FILTERS AND QUERIES
// =============================================================================

// Match selects how a filter value is compared.
type Match int

const (
	MatchExact Match = iota
	MatchFold
	// MatchAmount compares decimal values, so "1500.00" and 1500 are equal.
	// Fields that do not parse as a decimal never match.
	MatchAmount
)

// Filter is a single equality predicate.
type Filter struct {
	Field string
	Value string
	Match Match
}

// Eq matches value exactly.
func Eq(field, value string) Filter {
	return Filter{Field: field, Value: value, Match: MatchExact}
}

// EqFold matches value case-insensitively.
func EqFold(field, value string) Filter {
	return Filter{Field: field, Value: value, Match: MatchFold}
}

// EqAmount matches a monetary field regardless of how its decimals were written.
func EqAmount(field string, d decimal.Decimal) Filter {
	return Filter{Field: field, Value: d.String(), Match: MatchAmount}
}

// CanonicalAmount renders s as a canonical decimal. Only MatchAmount filters
// use it; codes such as account numbers keep their leading zeros elsewhere.
func CanonicalAmount(s string) (string, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return d.String(), true
}

// Query is a conjunction of filters.
type Query struct {
	Filters []Filter
}

// Where builds a query from filters.
func Where(filters ...Filter) Query {
	return Query{Filters: filters}
}

// Pattern renders the legacy description-index search text.
func (q Query) Pattern() string {
	parts := make([]string, len(q.Filters))
	for i, f := range q.Filters {
		v := f.Value
		if f.Match == MatchFold {
			v = strings.ToLower(v)
		}
		parts[i] = f.Field + "=" + v
	}
	return strings.Join(parts, "*") + ";"
}

// Matches reports whether every filter holds for the indexed record.
func (q Query) Matches(fields IndexedFields) bool {
	for _, f := range q.Filters {
		got, ok := fields[f.Field]
		if !ok {
			return false
		}
		switch f.Match {
		case MatchFold:
			if Fold(got) != Fold(f.Value) {
				return false
			}
		case MatchAmount:
			a, okA := CanonicalAmount(got)
			b, okB := CanonicalAmount(f.Value)
			if !okA || !okB || a != b {
				return false
			}
		default:
			if got != f.Value {
				return false
			}
		}
	}
	return true
}

func (q Query) String() string {
	return q.Pattern()
}

// =============================================================================
// INDEXED FIELDS
// =============================================================================

// IndexedFields maps top-level scalar fields to canonical text.
type IndexedFields map[string]string

// IndexFields flattens the top-level scalars of a JSON object. JSON numbers
// are canonicalised through decimal so 1500, 1500.0 and 1500.00 index alike.
// Strings are kept verbatim, including numeric-looking ones such as "1500.00"
// or "0123456789"; EqAmount filters canonicalise those at match time.
// Nested objects, arrays and nulls are not indexed.
func IndexFields(data []byte) (IndexedFields, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("index fields: %w", err)
	}
	out := make(IndexedFields, len(raw))
	for k, v := range raw {
		text, ok := scalarText(v)
		if ok {
			out[k] = text
		}
	}
	return out, nil
}

// Names returns the indexed field names in sorted order.
func (f IndexedFields) Names() []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func scalarText(v json.RawMessage) (string, bool) {
	s := strings.TrimSpace(string(v))
	if s == "" || s == "null" {
		return "", false
	}
	switch s[0] {
	case '"':
		var str string
		if err := json.Unmarshal(v, &str); err != nil {
			return "", false
		}
		return str, true
	case 't', 'f':
		return s, true
	case '{', '[':
		return "", false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s, true
	}
	return d.String(), true
}

// Fold normalises s for case-insensitive comparison.
func Fold(s string) string {
	return norm.NFC.String(cases.Fold().String(s))
}

// =============================================================================
// LOOKUP - Integrity checks against sibling records
// =============================================================================

// Lookup turns store reads into integrity rejections. Query failures are
// reported as rejections too and never retried.
type Lookup struct {
	Reader Reader
}

// Conflicts returns the records matching q, except the one stored under selfKey.
func (l Lookup) Conflicts(ctx context.Context, collection, selfKey string, q Query) ([]Document, error) {
	docs, err := l.Reader.Find(ctx, collection, q)
	if err != nil {
		return nil, RejectCause(KindIntegrity, "", err, "Failed to query %s: %v", collection, err)
	}
	var out []Document
	for _, d := range docs {
		if selfKey != "" && d.Key == selfKey {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Unique rejects with message when any other record matches q.
func (l Lookup) Unique(ctx context.Context, collection, selfKey string, q Query, message string) error {
	conflicts, err := l.Conflicts(ctx, collection, selfKey, q)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		field := ""
		if len(q.Filters) > 0 {
			field = q.Filters[0].Field
		}
		return Reject(KindIntegrity, field, message)
	}
	return nil
}

// Exists rejects with message when no record is stored under key.
func (l Lookup) Exists(ctx context.Context, collection, key, field, message string) error {
	_, err := l.Reader.Get(ctx, collection, key)
	if err == nil {
		return nil
	}
	if IsNotFound(err) {
		return Reject(KindIntegrity, field, message)
	}
	return RejectCause(KindIntegrity, field, err, "Failed to look up %s '%s': %v", collection, key, err)
}

// Fetch loads and decodes the record stored under key.
func Fetch[T any](ctx context.Context, r Reader, collection, key string) (T, error) {
	var out T
	doc, err := r.Get(ctx, collection, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(doc.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return out, nil
}
