// Package meili implements index.Provider against a Meilisearch instance.
package meili

import (
	"context"
	"fmt"

	"github.com/meilisearch/meilisearch-go"

	"github.com/romvault/ingestor/internal/index"
)

const primaryKey = "id"

// searchable, filterable, and sortable attribute sets declared by §4.4.
var (
	searchableAttributes = []string{"game_name", "genre", "developer", "description", "tags"}
	filterableAttributes = []string{"platform", "region", "tags", "genre"}
	sortableAttributes   = []string{"rating", "release_date"}
)

// indexManager is the subset of meilisearch.IndexManager this package uses,
// narrowed so tests can substitute a fake.
type indexManager interface {
	UpdateSearchableAttributes(*[]string) (*meilisearch.TaskInfo, error)
	UpdateFilterableAttributes(*[]string) (*meilisearch.TaskInfo, error)
	UpdateSortableAttributes(*[]string) (*meilisearch.TaskInfo, error)
	AddDocuments(documentsPtr any, primaryKey ...string) (*meilisearch.TaskInfo, error)
	DeleteAllDocuments() (*meilisearch.TaskInfo, error)
	GetStats() (*meilisearch.StatsIndex, error)
}

// Index is the Meilisearch-backed index.Provider.
type Index struct {
	client meilisearch.ServiceManager
	uid    string
	index  indexManager
}

var _ index.Provider = (*Index)(nil)

// Config controls the Meilisearch client.
type Config struct {
	Host    string
	APIKey  string
	IndexID string
}

// New builds an Index bound to cfg. The underlying HTTP client is created
// eagerly; index creation itself is deferred to Init.
func New(cfg Config) (*Index, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("meilisearch host is required")
	}
	uid := cfg.IndexID
	if uid == "" {
		uid = "games"
	}
	client := meilisearch.New(cfg.Host, meilisearch.WithAPIKey(cfg.APIKey))
	return &Index{client: client, uid: uid, index: client.Index(uid)}, nil
}

// Init implements index.Provider.
func (i *Index) Init(_ context.Context) error {
	if _, err := i.client.CreateIndex(&meilisearch.IndexConfig{Uid: i.uid, PrimaryKey: primaryKey}); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if _, err := i.index.UpdateSearchableAttributes(&searchableAttributes); err != nil {
		return fmt.Errorf("set searchable attributes: %w", err)
	}
	if _, err := i.index.UpdateFilterableAttributes(&filterableAttributes); err != nil {
		return fmt.Errorf("set filterable attributes: %w", err)
	}
	if _, err := i.index.UpdateSortableAttributes(&sortableAttributes); err != nil {
		return fmt.Errorf("set sortable attributes: %w", err)
	}
	return nil
}

// AddDocuments implements index.Provider.
func (i *Index) AddDocuments(_ context.Context, docs []index.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if _, err := i.index.AddDocuments(docs, primaryKey); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

// DeleteAll implements index.Provider.
func (i *Index) DeleteAll(_ context.Context) error {
	if _, err := i.index.DeleteAllDocuments(); err != nil {
		return fmt.Errorf("delete all documents: %w", err)
	}
	return nil
}

// Count implements index.Provider.
func (i *Index) Count(_ context.Context) (int64, error) {
	stats, err := i.index.GetStats()
	if err != nil {
		return 0, fmt.Errorf("get index stats: %w", err)
	}
	return int64(stats.NumberOfDocuments), nil
}

// Close is a no-op: the Meilisearch client holds no resources to release.
func (i *Index) Close() {}
