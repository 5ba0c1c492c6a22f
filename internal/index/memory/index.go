// Package memory provides an in-memory index.Provider for tests.
package memory

import (
	"context"
	"sync"

	"github.com/romvault/ingestor/internal/index"
)

// Index is a map-backed index.Provider. Safe for concurrent use.
type Index struct {
	mu   sync.RWMutex
	docs map[int64]index.Document
}

var _ index.Provider = (*Index)(nil)

// New constructs an empty Index.
func New() *Index {
	return &Index{docs: make(map[int64]index.Document)}
}

// Init is a no-op: there is no remote schema to declare.
func (i *Index) Init(context.Context) error {
	return nil
}

// AddDocuments implements index.Provider.
func (i *Index) AddDocuments(_ context.Context, docs []index.Document) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, d := range docs {
		i.docs[d.ID] = d
	}
	return nil
}

// DeleteAll implements index.Provider.
func (i *Index) DeleteAll(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.docs = make(map[int64]index.Document)
	return nil
}

// Count implements index.Provider.
func (i *Index) Count(context.Context) (int64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return int64(len(i.docs)), nil
}

// Close is a no-op for the in-memory index.
func (i *Index) Close() {}

// Documents returns a snapshot of stored documents, for test assertions.
func (i *Index) Documents() []index.Document {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]index.Document, 0, len(i.docs))
	for _, d := range i.docs {
		out = append(out, d)
	}
	return out
}
