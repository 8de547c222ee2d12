package generic

import (
	"context"
	"encoding/json"
	"time"
)

// =============================================================================
// ATTEMPT - A decoded write attempt
// =============================================================================

// Attempt is a write attempt decoded into a collection's record shape.
type Attempt[T any] struct {
	Collection string
	Key        string
	Next       T
	Prev       *T // nil on create
	Now        time.Time
}

// IsCreate reports whether there is no previously committed record.
func (a *Attempt[T]) IsCreate() bool {
	return a.Prev == nil
}

// Check is one step of a pipeline. It returns nil to continue or a rejection.
type Check[T any] func(ctx context.Context, a *Attempt[T]) error

// =============================================================================
// PIPELINE - Ordered fail-fast checks for one collection
// =============================================================================

// Pipeline decodes the payload into T and runs checks in order, stopping
// at the first failure.
type Pipeline[T any] struct {
	Entity string // used in decode messages: "Invalid <entity> data format"
	Clock  Clock
	Checks []Check[T]
}

// NewPipeline builds a pipeline for entity.
func NewPipeline[T any](entity string, clock Clock, checks ...Check[T]) *Pipeline[T] {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Pipeline[T]{Entity: entity, Clock: clock, Checks: checks}
}

// Validate implements Validator.
func (p *Pipeline[T]) Validate(ctx context.Context, w WriteAttempt) error {
	next, err := Decode[T](p.Entity, w.Proposed)
	if err != nil {
		return err
	}
	a := &Attempt[T]{Collection: w.Collection, Key: w.Key, Next: next, Now: p.Clock.Now()}
	if !w.IsCreate() {
		prev, err := DecodePrevious[T](p.Entity, w.Previous)
		if err != nil {
			return err
		}
		a.Prev = &prev
	}
	for _, check := range p.Checks {
		if err := check(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Decode decodes a proposed payload. Failure is a decode rejection carrying
// the underlying error text.
func Decode[T any](entity string, data []byte) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return out, RejectCause(KindDecode, "", err, "Invalid %s data format: %v", entity, err)
	}
	return out, nil
}

// DecodePrevious decodes the previously committed payload.
func DecodePrevious[T any](entity string, data []byte) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return out, RejectCause(KindDecode, "", err, "Invalid previous %s data: %v", entity, err)
	}
	return out, nil
}

// Step wraps a check that only needs the proposed record.
func Step[T any](fn func(next T) error) Check[T] {
	return func(_ context.Context, a *Attempt[T]) error {
		return fn(a.Next)
	}
}
