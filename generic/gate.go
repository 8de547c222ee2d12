package generic

import (
	"context"
	"fmt"
	"sync"
)

// =============================================================================
// GATE - Validate then commit
// =============================================================================
// Uniqueness checks read sibling records and decide; nothing in the store
// enforces them. Two writers proposing the same reference can both pass
// validation if neither has committed yet. A fenced gate serialises
// validate+commit per collection inside this process so the checks see
// every earlier commit. An unfenced gate keeps the race observable and
// relies on the per-key version check only.

// Gate loads the previous record, validates, and commits with
// compare-and-set on the version it validated against.
type Gate struct {
	validator Validator
	store     Store
	fenced    bool

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGate(v Validator, s Store, fenced bool) *Gate {
	return &Gate{validator: v, store: s, fenced: fenced, locks: make(map[string]*sync.Mutex)}
}

// Fenced reports whether validate+commit is serialised per collection.
func (g *Gate) Fenced() bool { return g.fenced }

// Put validates data as the new content of collection/key and commits it.
// A rejection is returned unchanged; nothing is written in that case.
func (g *Gate) Put(ctx context.Context, collection, key string, data []byte) (Document, error) {
	unlock := g.lock(collection)
	defer unlock()

	attempt := WriteAttempt{Collection: collection, Key: key, Proposed: data}
	var version int64
	prev, err := g.store.Get(ctx, collection, key)
	switch {
	case err == nil:
		attempt.Previous = prev.Data
		version = prev.Version
	case IsNotFound(err):
	default:
		return Document{}, fmt.Errorf("load previous %s/%s: %w", collection, key, err)
	}

	if err := g.validator.Validate(ctx, attempt); err != nil {
		return Document{}, err
	}
	return g.store.Commit(ctx, Document{Collection: collection, Key: key, Data: data}, version)
}

// Check validates without committing (dry run).
func (g *Gate) Check(ctx context.Context, attempt WriteAttempt) error {
	return g.validator.Validate(ctx, attempt)
}

// Delete removes collection/key. Deletes are not validated.
func (g *Gate) Delete(ctx context.Context, collection, key string) error {
	unlock := g.lock(collection)
	defer unlock()
	return g.store.Delete(ctx, collection, key)
}

func (g *Gate) lock(collection string) func() {
	if !g.fenced {
		return func() {}
	}
	g.mu.Lock()
	l, ok := g.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		g.locks[collection] = l
	}
	g.mu.Unlock()
	l.Lock()
	return l.Unlock
}
