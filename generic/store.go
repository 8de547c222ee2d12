/*
store.go - Document store interfaces

PURPOSE:
  Defines the boundary between the validation engine and persistence.
  The engine itself only reads (Reader). Hosts that commit accepted writes
  use Store, whose Commit is a compare-and-set on the record version.

KEY INTERFACES:
  Reader: point lookup by key and typed predicate query
  Store:  Reader plus versioned commit, delete and listing

COMPARE-AND-SET:
  Commit(doc, expected) succeeds only if the stored version still equals
  expected (0 for "must not exist yet"). A writer that validated against
  version N and finds N+1 at commit time gets ErrVersionConflict and must
  re-validate. This closes the read-validate-commit gap for a single key;
  uniqueness across keys is fenced by Gate.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite with an indexed field table
  - generic/store/memory.go: In-memory for tests and dry runs

SEE ALSO:
  - query.go: Query and IndexedFields
  - gate.go: Validate-then-commit host
*/
package generic

import "context"

// =============================================================================
// STORE - Interfaces for document persistence
// =============================================================================

//go:generate mockgen -source=store.go -destination=mocks/store.go -package=mocks

// Reader is the only store surface the validation engine consumes.
type Reader interface {
	// Get returns the record under key, or ErrDocumentNotFound.
	Get(ctx context.Context, collection, key string) (*Document, error)

	// Find returns every record in collection matching q, ordered by key.
	Find(ctx context.Context, collection string, q Query) ([]Document, error)
}

// Store adds committing to Reader.
type Store interface {
	Reader

	// Commit writes doc if the stored version equals expectedVersion and
	// returns the stored document with its new version.
	Commit(ctx context.Context, doc Document, expectedVersion int64) (Document, error)

	// Delete removes the record under key. Deletes are never validated.
	Delete(ctx context.Context, collection, key string) error

	// List returns every record in collection, ordered by key.
	List(ctx context.Context, collection string) ([]Document, error)
}
