// Package postgres implements store.Provider against PostgreSQL using pgx.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/romvault/ingestor/internal/catalog"
	"github.com/romvault/ingestor/internal/store"
)

// searchLogRetention is how long appendSearchLog rows survive past startup
// pruning (§3: search-log rows older than one year are pruned at startup).
const searchLogRetention = 365 * 24 * time.Hour

// queryCloser is the subset of *pgxpool.Pool this package exercises,
// narrowed so tests can substitute pgxmock.
type queryCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Config controls the pooled connection used by Store.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Store is the Postgres-backed store.Provider.
type Store struct {
	pool queryCloser
}

var _ store.Provider = (*Store)(nil)

// New opens a connection pool and returns a Store bound to it.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool builds a Store from an existing pool, primarily for testing.
func NewWithPool(pool queryCloser) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS games (
	id           BIGSERIAL PRIMARY KEY,
	download_url TEXT NOT NULL UNIQUE,
	game_name    TEXT NOT NULL,
	filename     TEXT NOT NULL,
	platform     TEXT NOT NULL,
	group_name   TEXT NOT NULL,
	region       TEXT NOT NULL DEFAULT '',
	size         TEXT NOT NULL DEFAULT '',
	tags         TEXT[] NOT NULL DEFAULT '{}',
	description  TEXT,
	rating       DOUBLE PRECISION,
	release_date DATE,
	developer    TEXT,
	publisher    TEXT,
	genre        TEXT,
	images       TEXT[] NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS games_platform_idx ON games (platform);
CREATE INDEX IF NOT EXISTS games_group_name_idx ON games (group_name);

CREATE TABLE IF NOT EXISTS search_logs (
	query       TEXT NOT NULL,
	results     INTEGER NOT NULL,
	searched_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS search_logs_searched_at_idx ON search_logs (searched_at);
CREATE INDEX IF NOT EXISTS search_logs_query_idx ON search_logs (query);
`

// Init ensures the schema is present and prunes stale search logs.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	cutoff := time.Now().Add(-searchLogRetention)
	if _, err := s.pool.Exec(ctx, `DELETE FROM search_logs WHERE searched_at < $1`, cutoff); err != nil {
		return fmt.Errorf("prune search logs: %w", err)
	}
	return nil
}

// batchUpsertQuery upserts N rows in one statement, preserving enrichment
// columns, and returns results ordered by the caller's input position via
// the ord column carried through the CTE.
//
// tags travels as one JSON-encoded array per row ($8::jsonb[]) rather than
// a 2-D text[][] parameter: Postgres arrays must be rectangular at every
// nesting level, but rows in a batch carry different tag counts, so a
// shared text[][] parameter is not a valid encoding for per-row variable-
// length tag lists. Each jsonb element is expanded back into its own
// text[] via jsonb_array_elements_text before the insert.
const batchUpsertQuery = `
WITH input AS (
	SELECT * FROM unnest(
		$1::text[], $2::text[], $3::text[], $4::text[],
		$5::text[], $6::text[], $7::text[], $8::jsonb[], $9::int[]
	) AS t(download_url, game_name, filename, platform, group_name, region, size, tags_json, ord)
),
expanded AS (
	SELECT
		i.download_url, i.game_name, i.filename, i.platform, i.group_name, i.region, i.size, i.ord,
		COALESCE(
			(SELECT array_agg(elem) FROM jsonb_array_elements_text(i.tags_json) AS elem),
			ARRAY[]::text[]
		) AS tags
	FROM input i
),
upserted AS (
	INSERT INTO games (download_url, game_name, filename, platform, group_name, region, size, tags)
	SELECT download_url, game_name, filename, platform, group_name, region, size, tags FROM expanded
	ON CONFLICT (download_url) DO UPDATE SET
		game_name  = EXCLUDED.game_name,
		platform   = EXCLUDED.platform,
		group_name = EXCLUDED.group_name,
		region     = EXCLUDED.region,
		size       = EXCLUDED.size,
		tags       = EXCLUDED.tags
	RETURNING id, game_name, description, filename, download_url
)
SELECT u.id, u.game_name, u.description, u.filename
FROM upserted u
JOIN expanded i ON i.download_url = u.download_url
ORDER BY i.ord
`

// BatchUpsert implements store.Provider.
func (s *Store) BatchUpsert(ctx context.Context, records []catalog.UpsertInput) ([]catalog.UpsertResult, error) {
	if len(records) == 0 {
		return nil, nil
	}
	urls := make([]string, len(records))
	names := make([]string, len(records))
	filenames := make([]string, len(records))
	platforms := make([]string, len(records))
	groups := make([]string, len(records))
	regions := make([]string, len(records))
	sizes := make([]string, len(records))
	tagsJSON := make([]string, len(records))
	ords := make([]int32, len(records))
	for i, r := range records {
		urls[i] = r.DownloadURL
		names[i] = r.GameName
		filenames[i] = r.Filename
		platforms[i] = r.Platform
		groups[i] = r.GroupName
		regions[i] = r.Region
		sizes[i] = r.Size
		tags := r.Tags
		if tags == nil {
			tags = []string{}
		}
		encoded, err := json.Marshal(tags)
		if err != nil {
			return nil, fmt.Errorf("encode tags for %q: %w", r.DownloadURL, err)
		}
		tagsJSON[i] = string(encoded)
		ords[i] = int32(i)
	}
	rows, err := s.pool.Query(ctx, batchUpsertQuery, urls, names, filenames, platforms, groups, regions, sizes, tagsJSON, ords)
	if err != nil {
		return nil, fmt.Errorf("batch upsert: %w", err)
	}
	defer rows.Close()

	results := make([]catalog.UpsertResult, 0, len(records))
	for rows.Next() {
		var r catalog.UpsertResult
		if err := rows.Scan(&r.ID, &r.GameName, &r.Description, &r.Filename); err != nil {
			return nil, fmt.Errorf("scan upsert result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("batch upsert rows: %w", err)
	}
	return results, nil
}

// UpdateFields implements store.Provider. Only non-nil pointer fields in
// fields are written; Images is written whenever non-nil (including empty).
func (s *Store) UpdateFields(ctx context.Context, id int64, fields catalog.EnrichmentFields) (catalog.Game, error) {
	row := s.pool.QueryRow(ctx, `
UPDATE games SET
	description  = COALESCE($2, description),
	rating       = COALESCE($3, rating),
	release_date = COALESCE($4, release_date),
	developer    = COALESCE($5, developer),
	publisher    = COALESCE($6, publisher),
	genre        = COALESCE($7, genre),
	images       = COALESCE($8, images)
WHERE id = $1
RETURNING id, download_url, game_name, filename, platform, group_name, region, size, tags,
	description, rating, release_date, developer, publisher, genre, images, created_at
`, id, fields.Description, fields.Rating, fields.ReleaseDate, fields.Developer, fields.Publisher, fields.Genre, fields.Images)
	return scanGame(row)
}

// ReadByIDs implements store.Provider.
func (s *Store) ReadByIDs(ctx context.Context, ids []int64) ([]catalog.Game, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, download_url, game_name, filename, platform, group_name, region, size, tags,
	description, rating, release_date, developer, publisher, genre, images, created_at
FROM games WHERE id = ANY($1)
`, ids)
	if err != nil {
		return nil, fmt.Errorf("read by ids: %w", err)
	}
	defer rows.Close()

	var games []catalog.Game
	for rows.Next() {
		g, err := scanGameRow(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// ReadAllURLs implements store.Provider.
func (s *Store) ReadAllURLs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT download_url FROM games`)
	if err != nil {
		return nil, fmt.Errorf("read all urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// DeleteByURLs implements store.Provider.
func (s *Store) DeleteByURLs(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM games WHERE download_url = ANY($1)`, urls); err != nil {
		return fmt.Errorf("delete by urls: %w", err)
	}
	return nil
}

// DeleteAll implements store.Provider.
func (s *Store) DeleteAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM games`); err != nil {
		return fmt.Errorf("delete all games: %w", err)
	}
	return nil
}

// Count implements store.Provider.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM games`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return n, nil
}

// AppendSearchLog implements store.Provider. Failures are swallowed: the
// caller must never have to special-case a logging write.
func (s *Store) AppendSearchLog(ctx context.Context, log catalog.SearchLog) error {
	_, _ = s.pool.Exec(ctx, `INSERT INTO search_logs (query, results, searched_at) VALUES ($1, $2, $3)`,
		log.Query, log.Results, log.SearchedAt)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (catalog.Game, error) {
	var g catalog.Game
	err := row.Scan(&g.ID, &g.DownloadURL, &g.GameName, &g.Filename, &g.Platform, &g.GroupName,
		&g.Region, &g.Size, &g.Tags, &g.Description, &g.Rating, &g.ReleaseDate, &g.Developer,
		&g.Publisher, &g.Genre, &g.Images, &g.CreatedAt)
	if err != nil {
		return catalog.Game{}, fmt.Errorf("scan game: %w", err)
	}
	return g, nil
}

func scanGameRow(rows pgx.Rows) (catalog.Game, error) {
	return scanGame(rows)
}
