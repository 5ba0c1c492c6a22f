// Package catalog defines the game record model and the pure parsing and
// filtering logic applied to every filename the crawler observes.
package catalog

import "time"

// Game is the canonical catalog entity, persisted by the store adapter and
// projected into the search index once enrichment has run.
type Game struct {
	ID          int64      `json:"id"`
	DownloadURL string     `json:"download_url"`
	GameName    string     `json:"game_name"`
	Filename    string     `json:"filename"`
	Platform    string     `json:"platform"`
	GroupName   string     `json:"group_name"`
	Region      string     `json:"region"`
	Size        string     `json:"size"`
	Tags        []string   `json:"tags"`
	Description *string    `json:"description"`
	Rating      *float64   `json:"rating"`
	ReleaseDate *time.Time `json:"release_date"`
	Developer   *string    `json:"developer"`
	Publisher   *string    `json:"publisher"`
	Genre       *string    `json:"genre"`
	Images      []string   `json:"images"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Enriched reports whether the provider has already been asked about this
// record (I2): description is non-nil, including the empty-string sentinel
// for "attempted, no hit".
func (g Game) Enriched() bool {
	return g.Description != nil
}

// UpsertInput is one row of a batch handed to the store adapter's
// BatchUpsert. It carries only the fields the crawler observes; enrichment
// fields are never part of an upsert (I2/S4).
type UpsertInput struct {
	DownloadURL string
	GameName    string
	Filename    string
	Platform    string
	GroupName   string
	Region      string
	Size        string
	Tags        []string
}

// UpsertResult is returned for every input row, in input order, so the
// crawler can decide whether each record still needs enrichment.
type UpsertResult struct {
	ID          int64
	GameName    string
	Description *string
	Filename    string
}

// NeedsEnrichment reports whether a freshly upserted row is a candidate for
// the enrichment queue under clean-mode-or-never-enriched semantics (§4.6).
func (r UpsertResult) NeedsEnrichment(clean bool) bool {
	return clean || r.Description == nil
}

// EnrichmentFields is the subset of Game columns enrichment is allowed to
// write. A nil pointer leaves the column untouched; Description is always
// set (even to empty) once a lookup has been attempted (I2).
type EnrichmentFields struct {
	Description *string
	Rating      *float64
	ReleaseDate *time.Time
	Developer   *string
	Publisher   *string
	Genre       *string
	Images      []string
}

// SearchLog is an append-only record of a query issued against the search
// index, retained for one year.
type SearchLog struct {
	Query      string
	Results    int
	SearchedAt time.Time
}
