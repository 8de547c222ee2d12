package roster_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finance-gate/generic"
	"github.com/warp/finance-gate/generic/store"
	"github.com/warp/finance-gate/roster"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type record = map[string]any

func with(base record, kv ...any) record {
	out := make(record, len(base))
	for k, v := range base {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == nil {
			delete(out, kv[i].(string))
			continue
		}
		out[kv[i].(string)] = kv[i+1]
	}
	return out
}

func newDispatcher(t *testing.T) (*generic.Dispatcher, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	m.Seed(roster.CollectionClasses, "jss1", []byte(`{"name": "JSS 1"}`))
	m.Seed(roster.CollectionStaff, "stf-1", []byte(`{"staffNumber": "STF-001"}`))
	m.Seed(roster.CollectionStudents, "stu-1", []byte(`{"admissionNumber": "ADM/2024/001"}`))

	d := generic.NewDispatcher()
	roster.Register(d, roster.Deps{Reader: m, Clock: generic.FixedClock{At: now}})
	return d, m
}

func validate(t *testing.T, d *generic.Dispatcher, collection, key string, r record) error {
	t.Helper()
	data, err := json.Marshal(r)
	require.NoError(t, err)
	return d.Validate(context.Background(), generic.WriteAttempt{Collection: collection, Key: key, Proposed: data})
}

// =============================================================================
// STAFF
// =============================================================================

func validStaff() record {
	return record{
		"surname":        "Bello",
		"firstname":      "Tunde",
		"staffNumber":    "STF-002",
		"phone":          "08031234567",
		"email":          "tunde@school.ng",
		"position":       "Teacher",
		"department":     "Arts & Humanities",
		"employmentType": "full-time",
		"employmentDate": "2020-09-01",
		"basicSalary":    "200000.00",
		"allowances": []record{
			{"name": "Housing", "amount": 30000, "isRecurring": true},
		},
		"accountNumber": "0123456789",
		"isActive":      true,
	}
}

func TestStaff_Accepted(t *testing.T) {
	d, _ := newDispatcher(t)

	assert.NoError(t, validate(t, d, roster.CollectionStaff, "stf-2", validStaff()))
}

func TestStaff_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		record record
		kind   generic.Kind
		want   string
	}{
		{"zero salary", with(validStaff(), "basicSalary", 0), generic.KindFormat,
			"Basic salary must be greater than zero"},
		{"sub-cent salary", with(validStaff(), "basicSalary", "1000.005"), generic.KindFormat,
			"Basic salary must have at most 2 decimal places (got 1000.005)"},
		{"employment type", with(validStaff(), "employmentType", "intern"), generic.KindFormat,
			"Invalid employment type 'intern'. Must be one of: full-time, part-time, contract"},
		{"employment date shape", with(validStaff(), "employmentDate", "Sept 2020"), generic.KindFormat,
			"Invalid employment date format. Must be YYYY-MM-DD"},
		{"employment far ahead", with(validStaff(), "employmentDate", "2025-09-01"), generic.KindFormat,
			"Employment date cannot be more than 30 days in the future"},
		{"employment long ago", with(validStaff(), "employmentDate", "1970-01-01"), generic.KindFormat,
			"Employment date cannot be more than 50 years in the past"},
		{"department length", with(validStaff(), "department", strings.Repeat("A", 51)), generic.KindFormat,
			"Department name cannot exceed 50 characters (current: 51)"},
		{"department characters", with(validStaff(), "department", "Sciences!"), generic.KindFormat,
			"Department name contains invalid characters"},
		{"duplicate allowance", with(validStaff(), "allowances", []record{
			{"name": "Housing", "amount": 1},
			{"name": "Housing", "amount": 2},
		}), generic.KindConsistency, "Duplicate allowance name: 'Housing'"},
		{"negative allowance", with(validStaff(), "allowances", []record{{"name": "Housing", "amount": -1}}), generic.KindFormat,
			"Allowance 'Housing' amount cannot be negative"},
		{"sub-cent allowance", with(validStaff(), "allowances", []record{{"name": "Housing", "amount": "30000.004"}}), generic.KindFormat,
			"Allowance 'Housing' amount must have at most 2 decimal places (got 30000.004)"},
		{"phone", with(validStaff(), "phone", "12345"), generic.KindFormat,
			"Invalid phone number '12345'"},
		{"email", with(validStaff(), "email", "tunde"), generic.KindFormat,
			"Invalid email address 'tunde'"},
		{"account number", with(validStaff(), "accountNumber", "12"), generic.KindFormat,
			"Account number must be exactly 10 digits"},
		{"missing staff number", with(validStaff(), "staffNumber", "  "), generic.KindFormat,
			"staffNumber is required"},
		{"staff number taken", with(validStaff(), "staffNumber", "stf-001"), generic.KindIntegrity,
			"Staff number 'stf-001' already exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newDispatcher(t)

			err := validate(t, d, roster.CollectionStaff, "stf-2", tt.record)

			require.Error(t, err)
			assert.Equal(t, tt.kind, generic.KindOf(err))
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestStaff_UpdateKeepsOwnNumber(t *testing.T) {
	d, _ := newDispatcher(t)

	assert.NoError(t, validate(t, d, roster.CollectionStaff, "stf-1", with(validStaff(), "staffNumber", "STF-001")))
}

// =============================================================================
// STUDENTS
// =============================================================================

func validStudent() record {
	return record{
		"firstname":       "Ada",
		"surname":         "Obi",
		"admissionNumber": "ADM/2024/002",
		"classId":         "jss1",
		"gender":          "female",
		"guardianPhone":   "+234 803 123 4567",
		"guardianEmail":   "obi.family@mail.ng",
		"address":         "12 Marina Road",
	}
}

func TestStudent(t *testing.T) {
	tests := []struct {
		name   string
		record record
		kind   generic.Kind
		want   string
	}{
		{"valid", validStudent(), "", ""},
		{"minimal", record{"firstname": "Ada", "surname": "Obi"}, "", ""},
		{"gender", with(validStudent(), "gender", "other"), generic.KindFormat,
			"Invalid gender 'other'. Must be one of: male, female"},
		{"guardian phone", with(validStudent(), "guardianPhone", "555-0100"), generic.KindFormat,
			"Invalid guardian phone number '555-0100'"},
		{"guardian email", with(validStudent(), "guardianEmail", "obi@"), generic.KindFormat,
			"Invalid guardian email address 'obi@'"},
		{"admission number taken", with(validStudent(), "admissionNumber", "adm/2024/001"), generic.KindIntegrity,
			"Admission number 'adm/2024/001' already exists"},
		{"unknown class", with(validStudent(), "classId", "jss9"), generic.KindIntegrity,
			"Class 'jss9' not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newDispatcher(t)

			err := validate(t, d, roster.CollectionStudents, "stu-2", tt.record)

			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.kind, generic.KindOf(err))
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestStudent_ClassDeletedLater(t *testing.T) {
	// GIVEN a student accepted while the class existed
	d, m := newDispatcher(t)
	require.NoError(t, validate(t, d, roster.CollectionStudents, "stu-2", validStudent()))

	// WHEN the class is removed
	require.NoError(t, m.Delete(context.Background(), roster.CollectionClasses, "jss1"))

	// THEN the next write of that student is refused
	err := validate(t, d, roster.CollectionStudents, "stu-2", validStudent())
	assert.EqualError(t, err, "Class 'jss1' not found")
}

func TestRegister(t *testing.T) {
	d, _ := newDispatcher(t)

	assert.Equal(t, []string{"classes", "staff", "students"}, d.Collections())
	assert.NoError(t, validate(t, d, roster.CollectionClasses, "jss2", record{"name": "JSS 2"}))
}
