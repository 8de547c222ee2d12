/*
statemachine.go - Table-driven status transitions

PURPOSE:
  One evaluator shared by every status-bearing record type. Each type
  declares its states, initial states, directed transition graph, and the
  companion-field requirements of each state. The evaluator decides
  legality and enforces those requirements.

ALGORITHM:
  1. The proposed status must be a declared state.
  2. Create: the proposed status must be an initial state.
     Update: if the status changed, it must be a direct successor of the
     previous status. Resubmitting the same status skips this step.
  3. The requirements of the proposed status run, in order. On an
     unchanged status these are the current status's requirements only.

  Terminal states have no successors, so every move out of them fails
  with "Allowed transitions: []".

EXAMPLE:
  var expenseMachine = generic.Machine[Expense]{
      Entity:  "expense",
      Plural:  "expenses",
      Status:  func(e Expense) generic.Status { return e.Status },
      States:  []generic.Status{"pending", "approved", "rejected", "paid"},
      Initial: []generic.Status{"pending"},
      Transitions: map[generic.Status][]generic.Status{
          "pending":  {"approved", "rejected"},
          "approved": {"paid"},
      },
      Requirements: map[generic.Status][]generic.Requirement[Expense]{
          "approved": {generic.RequireIdentity("approvedBy", ...)},
      },
  }

SEE ALSO:
  - finance/*: Expense, payment, salary, transfer, bank transaction and
    scholarship tables
*/
package generic

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Status is one state of a record's lifecycle.
type Status string

// Transition is what a requirement sees when it is evaluated.
type Transition[T any] struct {
	Entity string
	From   Status // empty on create
	To     Status
	Next   T
	Prev   *T
	Now    time.Time
}

// IsCreate reports whether there is no previous record.
func (t Transition[T]) IsCreate() bool { return t.Prev == nil }

// Changed reports whether the status moved.
func (t Transition[T]) Changed() bool { return t.Prev == nil || t.From != t.To }

// Requirement is a companion-field rule attached to a status.
type Requirement[T any] func(t Transition[T]) error

// =============================================================================
// MACHINE
// =============================================================================

// Machine declares one record type's lifecycle.
type Machine[T any] struct {
	Entity       string // singular, used in transition messages
	Plural       string // used in initial-state messages
	Field        string // defaults to "status"
	Status       func(T) Status
	States       []Status
	Initial      []Status
	Transitions  map[Status][]Status
	Requirements map[Status][]Requirement[T]

	// InitialMessage overrides the create-time rejection text.
	InitialMessage string
}

// Successors returns the legal next states of s.
func (m Machine[T]) Successors(s Status) []Status {
	return m.Transitions[s]
}

// IsTerminal reports whether s has no successors.
func (m Machine[T]) IsTerminal(s Status) bool {
	return len(m.Transitions[s]) == 0
}

// Evaluate checks the move from prev (nil on create) to next.
func (m Machine[T]) Evaluate(next T, prev *T, now time.Time) error {
	field := m.Field
	if field == "" {
		field = "status"
	}
	to := m.Status(next)
	if !containsStatus(m.States, to) {
		return Rejectf(KindFormat, field, "Invalid %s status '%s'. Must be one of: %s",
			m.Entity, to, joinStatuses(m.States))
	}

	t := Transition[T]{Entity: m.Entity, To: to, Next: next, Prev: prev, Now: now}
	if prev == nil {
		if !containsStatus(m.Initial, to) {
			if m.InitialMessage != "" {
				return Reject(KindTransition, field, m.InitialMessage)
			}
			return Rejectf(KindTransition, field, "New %s must have status %s", m.Plural, orList(m.Initial))
		}
	} else {
		t.From = m.Status(*prev)
		if t.From != to && !containsStatus(m.Transitions[t.From], to) {
			return Rejectf(KindTransition, field,
				"Invalid status transition from '%s' to '%s'. Allowed transitions: [%s]",
				t.From, to, joinStatuses(m.Transitions[t.From]))
		}
	}

	for _, req := range m.Requirements[to] {
		if err := req(t); err != nil {
			return err
		}
	}
	return nil
}

// Check adapts the machine to a pipeline step.
func (m Machine[T]) Check() Check[T] {
	return func(_ context.Context, a *Attempt[T]) error {
		return m.Evaluate(a.Next, a.Prev, a.Now)
	}
}

// =============================================================================
// REQUIREMENT BUILDERS
// =============================================================================

// RequireIdentity demands a non-blank identity field.
func RequireIdentity[T any](field, message string, get func(T) *string) Requirement[T] {
	return func(t Transition[T]) error {
		if OptionalText(get(t.Next)) == "" {
			return Reject(KindTransition, field, message)
		}
		return nil
	}
}

// RequireTimestamp demands a present timestamp field.
func RequireTimestamp[T any](field, message string, get func(T) *int64) Requirement[T] {
	return func(t Transition[T]) error {
		if get(t.Next) == nil {
			return Reject(KindTransition, field, message)
		}
		return nil
	}
}

// ForbidIdentity demands that an identity field is absent.
func ForbidIdentity[T any](field, message string, get func(T) *string) Requirement[T] {
	return func(t Transition[T]) error {
		if get(t.Next) != nil {
			return Reject(KindTransition, field, message)
		}
		return nil
	}
}

// ForbidTimestamp demands that a timestamp field is absent.
func ForbidTimestamp[T any](field, message string, get func(T) *int64) Requirement[T] {
	return func(t Transition[T]) error {
		if get(t.Next) != nil {
			return Reject(KindTransition, field, message)
		}
		return nil
	}
}

// RequireReason demands free text of at least min characters after trimming.
func RequireReason[T any](field string, min int, missing, short string, get func(T) *string) Requirement[T] {
	return func(t Transition[T]) error {
		reason := OptionalText(get(t.Next))
		if reason == "" {
			return Reject(KindTransition, field, missing)
		}
		if len([]rune(reason)) < min {
			return Reject(KindTransition, field, short)
		}
		return nil
	}
}

// RequireFlag demands a true boolean field.
func RequireFlag[T any](field, message string, get func(T) bool) Requirement[T] {
	return func(t Transition[T]) error {
		if !get(t.Next) {
			return Reject(KindTransition, field, message)
		}
		return nil
	}
}

// MaxApprovalSkew is how far ahead of now an approval timestamp may be.
const MaxApprovalSkew = time.Hour

// RequireApprovalTime demands an approval timestamp strictly after creation
// and no more than MaxApprovalSkew ahead of now. A missing timestamp is left
// to RequireTimestamp.
func RequireApprovalTime[T any](field string, approvedAt func(T) *int64, createdAt func(T) int64) Requirement[T] {
	return func(t Transition[T]) error {
		at := approvedAt(t.Next)
		if at == nil {
			return nil
		}
		if *at <= createdAt(t.Next) {
			return Rejectf(KindTransition, field, "Approval timestamp must be after %s creation time", t.Entity)
		}
		if *at > Nanos(t.Now)+int64(MaxApprovalSkew) {
			return Reject(KindTransition, field, "Approval timestamp cannot be in the future")
		}
		return nil
	}
}

// When applies req only if cond holds for the proposed record.
func When[T any](cond func(T) bool, req Requirement[T]) Requirement[T] {
	return func(t Transition[T]) error {
		if !cond(t.Next) {
			return nil
		}
		return req(t)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func containsStatus(set []Status, s Status) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}

func joinStatuses(set []Status) string {
	parts := make([]string, len(set))
	for i, s := range set {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// orList renders 'a', 'a' or 'b', 'a', 'b' or 'c'.
func orList(set []Status) string {
	quoted := make([]string, len(set))
	for i, s := range set {
		quoted[i] = fmt.Sprintf("'%s'", s)
	}
	switch len(quoted) {
	case 0:
		return "''"
	case 1:
		return quoted[0]
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + " or " + quoted[len(quoted)-1]
}
