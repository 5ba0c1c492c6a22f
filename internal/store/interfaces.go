// Package store defines the persistence contract for the catalog (C2).
// Implementations live in sibling packages; this package must not import
// database drivers or concrete clients.
package store

import (
	"context"
	"errors"

	"github.com/romvault/ingestor/internal/catalog"
)

// ErrNotFound signals that a requested id does not exist in the store.
var ErrNotFound = errors.New("catalog: record not found")

// Provider persists catalog.Game rows and search logs. Every implementation
// must satisfy invariant I1 (download_url uniqueness) via its own conflict
// target, and must never overwrite enrichment columns from BatchUpsert.
type Provider interface {
	// Init ensures schema/collections are present and prunes search logs
	// older than one year.
	Init(ctx context.Context) error

	// BatchUpsert inserts or updates records keyed on DownloadURL, updating
	// only the crawler-observed columns on conflict. Results are returned in
	// input order.
	BatchUpsert(ctx context.Context, records []catalog.UpsertInput) ([]catalog.UpsertResult, error)

	// UpdateFields sets the provided subset of enrichment fields on id and
	// returns the resulting full row.
	UpdateFields(ctx context.Context, id int64, fields catalog.EnrichmentFields) (catalog.Game, error)

	// ReadByIDs bulk-selects full rows.
	ReadByIDs(ctx context.Context, ids []int64) ([]catalog.Game, error)

	// ReadAllURLs streams every download_url currently stored, for stale
	// pruning in incremental mode.
	ReadAllURLs(ctx context.Context) ([]string, error)

	// DeleteByURLs bulk-deletes rows by download_url.
	DeleteByURLs(ctx context.Context, urls []string) error

	// DeleteAll wipes every game row, for clean-mode rebuilds.
	DeleteAll(ctx context.Context) error

	// Count reports the current row count, for the admin status endpoint.
	Count(ctx context.Context) (int64, error)

	// AppendSearchLog is best-effort: implementations must never return an
	// error that the caller is expected to act on.
	AppendSearchLog(ctx context.Context, log catalog.SearchLog) error

	// Close releases underlying resources.
	Close()
}
