// Package memory provides an in-memory store.Provider for tests and local
// development, without a database dependency.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/romvault/ingestor/internal/catalog"
	"github.com/romvault/ingestor/internal/store"
)

// Store is a map-backed store.Provider. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	byID      map[int64]catalog.Game
	byURL     map[string]int64
	searchLog []catalog.SearchLog
	nextID    int64
}

var _ store.Provider = (*Store)(nil)

// New constructs an empty Store.
func New() *Store {
	return &Store{
		byID:  make(map[int64]catalog.Game),
		byURL: make(map[string]int64),
	}
}

// Init drops search logs older than one year; there is no schema to create.
func (s *Store) Init(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-365 * 24 * time.Hour)
	kept := s.searchLog[:0]
	for _, l := range s.searchLog {
		if !l.SearchedAt.Before(cutoff) {
			kept = append(kept, l)
		}
	}
	s.searchLog = kept
	return nil
}

// BatchUpsert implements store.Provider.
func (s *Store) BatchUpsert(_ context.Context, records []catalog.UpsertInput) ([]catalog.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]catalog.UpsertResult, len(records))
	for i, r := range records {
		id, exists := s.byURL[r.DownloadURL]
		var g catalog.Game
		if exists {
			g = s.byID[id]
		} else {
			s.nextID++
			id = s.nextID
			g = catalog.Game{ID: id, DownloadURL: r.DownloadURL, CreatedAt: time.Now().UTC()}
		}
		g.GameName = r.GameName
		g.Filename = r.Filename
		g.Platform = r.Platform
		g.GroupName = r.GroupName
		g.Region = r.Region
		g.Size = r.Size
		g.Tags = append([]string(nil), r.Tags...)

		s.byID[id] = g
		s.byURL[r.DownloadURL] = id
		results[i] = catalog.UpsertResult{ID: g.ID, GameName: g.GameName, Description: g.Description, Filename: g.Filename}
	}
	return results, nil
}

// UpdateFields implements store.Provider.
func (s *Store) UpdateFields(_ context.Context, id int64, fields catalog.EnrichmentFields) (catalog.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.byID[id]
	if !ok {
		return catalog.Game{}, store.ErrNotFound
	}
	if fields.Description != nil {
		g.Description = fields.Description
	}
	if fields.Rating != nil {
		g.Rating = fields.Rating
	}
	if fields.ReleaseDate != nil {
		g.ReleaseDate = fields.ReleaseDate
	}
	if fields.Developer != nil {
		g.Developer = fields.Developer
	}
	if fields.Publisher != nil {
		g.Publisher = fields.Publisher
	}
	if fields.Genre != nil {
		g.Genre = fields.Genre
	}
	if fields.Images != nil {
		g.Images = fields.Images
	}
	s.byID[id] = g
	return g, nil
}

// ReadByIDs implements store.Provider.
func (s *Store) ReadByIDs(_ context.Context, ids []int64) ([]catalog.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	games := make([]catalog.Game, 0, len(ids))
	for _, id := range ids {
		if g, ok := s.byID[id]; ok {
			games = append(games, g)
		}
	}
	return games, nil
}

// ReadAllURLs implements store.Provider.
func (s *Store) ReadAllURLs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	urls := make([]string, 0, len(s.byURL))
	for u := range s.byURL {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls, nil
}

// DeleteByURLs implements store.Provider.
func (s *Store) DeleteByURLs(_ context.Context, urls []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range urls {
		if id, ok := s.byURL[u]; ok {
			delete(s.byURL, u)
			delete(s.byID, id)
		}
	}
	return nil
}

// DeleteAll implements store.Provider.
func (s *Store) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[int64]catalog.Game)
	s.byURL = make(map[string]int64)
	return nil
}

// Count implements store.Provider.
func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byID)), nil
}

// AppendSearchLog implements store.Provider.
func (s *Store) AppendSearchLog(_ context.Context, log catalog.SearchLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchLog = append(s.searchLog, log)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() {}
