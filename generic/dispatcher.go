/*
dispatcher.go - Collection routing

PURPOSE:
  Maps a collection name to the pipeline registered for it and returns
  that pipeline's verdict. Unknown collections are rejected (fail closed)
  unless the dispatcher was built with AcceptUnknown.

USAGE:
  d := generic.NewDispatcher(generic.WithObserver(m))
  d.Register("expenses", expensePipeline)
  d.Register("budgets", generic.PassThrough)

  err := d.Validate(ctx, attempt)

SEE ALSO:
  - pipeline.go: Pipeline implements Validator
  - metrics/metrics.go: Observer implementation
*/
package generic

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Validator decides accept (nil) or reject for one write attempt.
type Validator interface {
	Validate(ctx context.Context, w WriteAttempt) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, w WriteAttempt) error

func (f ValidatorFunc) Validate(ctx context.Context, w WriteAttempt) error {
	return f(ctx, w)
}

// PassThrough accepts every write. Used for collections without rules.
var PassThrough Validator = ValidatorFunc(func(context.Context, WriteAttempt) error { return nil })

// Observer is notified of every verdict.
type Observer interface {
	ObserveValidation(collection string, err error, elapsed time.Duration)
}

// =============================================================================
// DISPATCHER
// =============================================================================

// Dispatcher routes write attempts to registered validators.
type Dispatcher struct {
	mu            sync.RWMutex
	validators    map[string]Validator
	acceptUnknown bool
	observer      Observer
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// AcceptUnknown makes unregistered collections pass through instead of
// being rejected.
func AcceptUnknown() DispatcherOption {
	return func(d *Dispatcher) { d.acceptUnknown = true }
}

// WithObserver reports every verdict to o.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{validators: make(map[string]Validator)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register binds collection to v, replacing any previous binding.
func (d *Dispatcher) Register(collection string, v Validator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.validators[collection] = v
}

// Collections returns the registered collection names, sorted.
func (d *Dispatcher) Collections() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.validators))
	for name := range d.validators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handles reports whether collection has a registered validator.
func (d *Dispatcher) Handles(collection string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.validators[collection]
	return ok
}

// Validate runs the pipeline registered for w.Collection.
func (d *Dispatcher) Validate(ctx context.Context, w WriteAttempt) error {
	start := time.Now()
	err := d.route(ctx, w)
	if d.observer != nil {
		d.observer.ObserveValidation(w.Collection, err, time.Since(start))
	}
	return err
}

func (d *Dispatcher) route(ctx context.Context, w WriteAttempt) error {
	d.mu.RLock()
	v, ok := d.validators[w.Collection]
	d.mu.RUnlock()
	if !ok {
		if d.acceptUnknown {
			return nil
		}
		return Rejectf(KindRouting, "", "Unknown collection: %s", w.Collection)
	}
	return v.Validate(ctx, w)
}

// ValidateDelete accepts every delete. Deletion carries no rules.
func (d *Dispatcher) ValidateDelete(_ context.Context, _, _ string) error {
	return nil
}
