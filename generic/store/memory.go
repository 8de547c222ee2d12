// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/finance-gate/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]entry
	now         func() time.Time
}

type entry struct {
	doc    generic.Document
	fields generic.IndexedFields
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]entry),
		now:         time.Now,
	}
}

// Get returns the record under key.
func (m *Memory) Get(_ context.Context, collection, key string) (*generic.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.collections[collection][key]
	if !ok {
		return nil, generic.ErrDocumentNotFound
	}
	doc := copyDoc(e.doc)
	return &doc, nil
}

// Find returns the records whose indexed fields satisfy q.
func (m *Memory) Find(_ context.Context, collection string, q generic.Query) ([]generic.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Document
	for _, e := range m.collections[collection] {
		if q.Matches(e.fields) {
			result = append(result, copyDoc(e.doc))
		}
	}
	sortByKey(result)
	return result, nil
}

// List returns every record in collection.
func (m *Memory) List(_ context.Context, collection string) ([]generic.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.Document, 0, len(m.collections[collection]))
	for _, e := range m.collections[collection] {
		result = append(result, copyDoc(e.doc))
	}
	sortByKey(result)
	return result, nil
}

// Commit writes doc when the stored version equals expectedVersion.
func (m *Memory) Commit(_ context.Context, doc generic.Document, expectedVersion int64) (generic.Document, error) {
	fields, err := generic.IndexFields(doc.Data)
	if err != nil {
		return generic.Document{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs, ok := m.collections[doc.Collection]
	if !ok {
		docs = make(map[string]entry)
		m.collections[doc.Collection] = docs
	}
	var current int64
	if e, ok := docs[doc.Key]; ok {
		current = e.doc.Version
	}
	if current != expectedVersion {
		return generic.Document{}, fmt.Errorf("%w: %s/%s is at version %d, expected %d",
			generic.ErrVersionConflict, doc.Collection, doc.Key, current, expectedVersion)
	}

	stored := copyDoc(doc)
	stored.Version = current + 1
	stored.UpdatedAt = m.now().UTC()
	docs[doc.Key] = entry{doc: stored, fields: fields}
	return copyDoc(stored), nil
}

// Delete removes the record under key.
func (m *Memory) Delete(_ context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[collection][key]; !ok {
		return generic.ErrDocumentNotFound
	}
	delete(m.collections[collection], key)
	return nil
}

// Collections returns the names of collections holding at least one record.
func (m *Memory) Collections(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.collections))
	for name, docs := range m.collections {
		if len(docs) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Reset drops every record.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections = make(map[string]map[string]entry)
	return nil
}

// Seed commits documents without version checks. For fixtures.
func (m *Memory) Seed(collection, key string, data []byte) {
	fields, err := generic.IndexFields(data)
	if err != nil {
		panic(fmt.Sprintf("seed %s/%s: %v", collection, key, err))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]entry)
		m.collections[collection] = docs
	}
	version := docs[key].doc.Version + 1
	docs[key] = entry{
		doc:    generic.Document{Collection: collection, Key: key, Data: append([]byte(nil), data...), Version: version, UpdatedAt: m.now().UTC()},
		fields: fields,
	}
}

func copyDoc(d generic.Document) generic.Document {
	d.Data = append([]byte(nil), d.Data...)
	return d
}

func sortByKey(docs []generic.Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
}
