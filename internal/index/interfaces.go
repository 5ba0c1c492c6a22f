// Package index defines the search-index contract for the catalog (C3).
package index

import (
	"context"

	"github.com/romvault/ingestor/internal/catalog"
)

// Document is the projection of catalog.Game written to the search engine.
// Null/absent enrichment fields are transmitted as null, not omitted.
type Document struct {
	ID          int64    `json:"id"`
	GameName    string   `json:"game_name"`
	Platform    string   `json:"platform"`
	Region      string   `json:"region"`
	Tags        []string `json:"tags"`
	Description *string  `json:"description"`
	Rating      *float64 `json:"rating"`
	ReleaseDate *string  `json:"release_date"`
	Developer   *string  `json:"developer"`
	Publisher   *string  `json:"publisher"`
	Genre       *string  `json:"genre"`
	Images      []string `json:"images"`
}

// FromGame projects a catalog.Game into the document shape the index
// accepts, formatting ReleaseDate as YYYY-MM-DD per §4.4.
func FromGame(g catalog.Game) Document {
	doc := Document{
		ID:          g.ID,
		GameName:    g.GameName,
		Platform:    g.Platform,
		Region:      g.Region,
		Tags:        g.Tags,
		Description: g.Description,
		Rating:      g.Rating,
		Developer:   g.Developer,
		Publisher:   g.Publisher,
		Genre:       g.Genre,
		Images:      g.Images,
	}
	if g.ReleaseDate != nil {
		formatted := g.ReleaseDate.Format("2006-01-02")
		doc.ReleaseDate = &formatted
	}
	return doc
}

// Provider is a search index that documents are upserted into.
type Provider interface {
	// Init ensures the index exists with the searchable, filterable, and
	// sortable attributes declared by §4.4. Idempotent.
	Init(ctx context.Context) error

	// AddDocuments upserts docs by primary key. A failure must not abort
	// the catalog writes that already happened; callers only count and log.
	AddDocuments(ctx context.Context, docs []Document) error

	// DeleteAll removes every document (used by clean-mode rebuilds).
	DeleteAll(ctx context.Context) error

	// Count reports the current document count, for the admin status endpoint.
	Count(ctx context.Context) (int64, error)

	// Close releases underlying resources.
	Close()
}
