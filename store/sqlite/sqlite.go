/*
Package sqlite provides a SQLite-backed implementation of generic.Store.

PURPOSE:
  Durable document storage for the write gate. Each collection is a set of
  JSON documents addressed by key, versioned for compare-and-set commits,
  with their top-level scalar fields indexed for uniqueness and
  foreign-key queries.

KEY TABLES:
  documents:       One row per (collection, key): JSON body, version,
                   last update time
  document_fields: One row per indexed top-level scalar: canonical value,
                   case-folded value, and canonical decimal amount when
                   the value parses as one (NULL otherwise)

QUERIES:
  generic.Query filters become one EXISTS sub-select per filter against
  document_fields. Exact filters compare value, folded filters compare
  folded, amount filters compare amount. All three columns are indexed per
  (collection, field).

CONCURRENCY:
  Commit reads the current version and writes inside one SQL transaction,
  under the store mutex. A stale expectedVersion returns
  generic.ErrVersionConflict.

WAL MODE:
  Opened with WAL, NORMAL synchronous, a busy timeout and foreign keys.
  A single connection is kept so ":memory:" databases are shared.

USAGE:
  store, err := sqlite.New("./data/finance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  gate := generic.NewGate(dispatcher, store, true)

  // Validation only: no file is created and nothing is migrated.
  reader, err := sqlite.OpenReadOnly("./data/finance.db")

MIGRATION:
  Schema is created on New(). Incremental changes bump user_version.
  Version 1 databases gain document_fields.amount, backfilled from value.

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/query.go: Query and IndexFields
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/finance-gate/generic"
)

// Schema version tracking:
// 1 - documents and document_fields
// 2 - document_fields.amount for decimal equality
const currentSchemaVersion = 2

// ErrReadOnly is returned by writes on a store opened with OpenReadOnly.
var ErrReadOnly = errors.New("store is read only")

// Store implements generic.Store using SQLite.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	now      func() time.Time
	readOnly bool
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// OpenReadOnly opens an existing database for reads only. A missing file is
// an error rather than a new empty database, and no pragma or migration
// runs. The schema must already be current.
func OpenReadOnly(dbPath string) (*Store, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("failed to open database: %s is a directory", dbPath)
	}

	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		db.Close()
		return nil, fmt.Errorf("read user_version: %w", err)
	}
	if version != currentSchemaVersion {
		db.Close()
		return nil, fmt.Errorf("database schema version %d, want %d; open it read-write once to migrate", version, currentSchemaVersion)
	}

	return &Store{db: db, now: time.Now, readOnly: true}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies pragmas and creates the schema.
func (s *Store) migrate() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		data TEXT NOT NULL,
		version INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (collection, key)
	);

	-- Indexed top-level scalars, rewritten on every commit
	CREATE TABLE IF NOT EXISTS document_fields (
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		field TEXT NOT NULL,
		value TEXT NOT NULL,
		folded TEXT NOT NULL,
		amount TEXT,
		PRIMARY KEY (collection, key, field),
		FOREIGN KEY (collection, key) REFERENCES documents(collection, key) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_document_fields_value
		ON document_fields(collection, field, value);
	CREATE INDEX IF NOT EXISTS idx_document_fields_folded
		ON document_fields(collection, field, folded);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if version == 1 {
		if err := s.addAmountColumn(); err != nil {
			return fmt.Errorf("migrate to version 2: %w", err)
		}
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_document_fields_amount
		ON document_fields(collection, field, amount)`); err != nil {
		return fmt.Errorf("failed to create amount index: %w", err)
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// addAmountColumn adds document_fields.amount to a version 1 database and
// fills it from the values already indexed.
func (s *Store) addAmountColumn() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`ALTER TABLE document_fields ADD COLUMN amount TEXT`); err != nil {
		return err
	}

	type fieldRow struct {
		collection, key, field, value string
	}
	rows, err := tx.Query(`SELECT collection, key, field, value FROM document_fields`)
	if err != nil {
		return err
	}
	var pending []fieldRow
	for rows.Next() {
		var r fieldRow
		if err := rows.Scan(&r.collection, &r.key, &r.field, &r.value); err != nil {
			rows.Close()
			return err
		}
		pending = append(pending, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range pending {
		amount, ok := generic.CanonicalAmount(r.value)
		if !ok {
			continue
		}
		if _, err := tx.Exec(`
			UPDATE document_fields SET amount = ?
			WHERE collection = ? AND key = ? AND field = ?
		`, amount, r.collection, r.key, r.field); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// READS (generic.Reader interface)
// =============================================================================

// Get returns the document under key, or generic.ErrDocumentNotFound.
func (s *Store) Get(ctx context.Context, collection, key string) (*generic.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT collection, key, data, version, updated_at
		FROM documents
		WHERE collection = ? AND key = ?
	`, collection, key)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, key, err)
	}
	return &doc, nil
}

// Find returns the documents whose indexed fields satisfy q, ordered by key.
func (s *Store) Find(ctx context.Context, collection string, q generic.Query) ([]generic.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := buildFind(collection, q)
	return s.queryDocuments(ctx, query, args...)
}

// List returns every document in collection, ordered by key.
func (s *Store) List(ctx context.Context, collection string) ([]generic.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryDocuments(ctx, `
		SELECT collection, key, data, version, updated_at
		FROM documents
		WHERE collection = ?
		ORDER BY key
	`, collection)
}

// buildFind renders one EXISTS clause per filter.
func buildFind(collection string, q generic.Query) (string, []any) {
	var b strings.Builder
	b.WriteString(`
		SELECT d.collection, d.key, d.data, d.version, d.updated_at
		FROM documents d
		WHERE d.collection = ?`)
	args := []any{collection}

	for _, f := range q.Filters {
		column, value := "value", f.Value
		switch f.Match {
		case generic.MatchFold:
			column, value = "folded", generic.Fold(f.Value)
		case generic.MatchAmount:
			column = "amount"
			if canonical, ok := generic.CanonicalAmount(f.Value); ok {
				value = canonical
			}
		}
		b.WriteString(`
		  AND EXISTS (
			SELECT 1 FROM document_fields f
			WHERE f.collection = d.collection AND f.key = d.key
			  AND f.field = ? AND f.` + column + ` = ?)`)
		args = append(args, f.Field, value)
	}
	b.WriteString(`
		ORDER BY d.key`)
	return b.String(), args
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]generic.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []generic.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (generic.Document, error) {
	var doc generic.Document
	var data, updatedAt string
	if err := row.Scan(&doc.Collection, &doc.Key, &data, &doc.Version, &updatedAt); err != nil {
		return generic.Document{}, err
	}
	doc.Data = []byte(data)
	doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return doc, nil
}

// =============================================================================
// WRITES (generic.Store interface)
// =============================================================================

// Commit writes doc if the stored version equals expectedVersion (0 for a
// new key) and rewrites its field index.
func (s *Store) Commit(ctx context.Context, doc generic.Document, expectedVersion int64) (generic.Document, error) {
	if s.readOnly {
		return generic.Document{}, ErrReadOnly
	}
	fields, err := generic.IndexFields(doc.Data)
	if err != nil {
		return generic.Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return generic.Document{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var current int64
	err = sqlTx.QueryRowContext(ctx,
		`SELECT version FROM documents WHERE collection = ? AND key = ?`,
		doc.Collection, doc.Key).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return generic.Document{}, fmt.Errorf("failed to read version: %w", err)
	}
	if current != expectedVersion {
		return generic.Document{}, fmt.Errorf("%w: %s/%s is at version %d, expected %d",
			generic.ErrVersionConflict, doc.Collection, doc.Key, current, expectedVersion)
	}

	stored := doc
	stored.Data = append([]byte(nil), doc.Data...)
	stored.Version = current + 1
	stored.UpdatedAt = s.now().UTC()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO documents (collection, key, data, version, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, key) DO UPDATE SET
			data = excluded.data,
			version = excluded.version,
			updated_at = excluded.updated_at
	`, stored.Collection, stored.Key, string(stored.Data), stored.Version,
		stored.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.Document{}, fmt.Errorf("%w: %s/%s", generic.ErrVersionConflict, doc.Collection, doc.Key)
		}
		return generic.Document{}, fmt.Errorf("failed to write document: %w", err)
	}

	if err := writeFields(ctx, sqlTx, stored.Collection, stored.Key, fields); err != nil {
		return generic.Document{}, err
	}

	if err := sqlTx.Commit(); err != nil {
		return generic.Document{}, fmt.Errorf("failed to commit: %w", err)
	}
	return stored, nil
}

func writeFields(ctx context.Context, tx *sql.Tx, collection, key string, fields generic.IndexedFields) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_fields WHERE collection = ? AND key = ?`, collection, key); err != nil {
		return fmt.Errorf("failed to clear field index: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_fields (collection, key, field, value, folded, amount)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare field index: %w", err)
	}
	defer stmt.Close()

	for _, name := range fields.Names() {
		value := fields[name]
		var amount sql.NullString
		amount.String, amount.Valid = generic.CanonicalAmount(value)
		if _, err := stmt.ExecContext(ctx, collection, key, name, value, generic.Fold(value), amount); err != nil {
			return fmt.Errorf("failed to index field %s: %w", name, err)
		}
	}
	return nil
}

// Delete removes the document under key. Its field index goes with it.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND key = ?`, collection, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, key, err)
	}
	if n == 0 {
		return generic.ErrDocumentNotFound
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	if s.readOnly {
		return ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"document_fields", "documents"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Collections returns the names of non-empty collections.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT collection FROM documents ORDER BY collection`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
