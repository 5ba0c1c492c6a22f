// Package crawl implements the archive crawler (C5): a breadth-first,
// bounded-concurrency traversal of nested HTML directory listings that
// upserts parsed file records into the catalog store and feeds the
// enrichment queue.
package crawl

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/romvault/ingestor/internal/catalog"
	"github.com/romvault/ingestor/internal/enrich"
	"github.com/romvault/ingestor/internal/index"
	"github.com/romvault/ingestor/internal/store"
)

// Mode selects how the crawl interacts with previously stored records.
type Mode string

// Crawl modes.
const (
	ModeIncremental Mode = "incremental"
	ModeClean       Mode = "clean"
)

// Default tunables, named after the specification's constants.
const (
	DefaultConcurrency    = 20
	DefaultRequestTimeout = 30 * time.Second
	DefaultBatchSize      = 500
)

// Config controls crawl concurrency, timeouts, and the archive root.
type Config struct {
	BaseURL        string
	Concurrency    int
	RequestTimeout time.Duration
	BatchSize      int
	UserAgent      string
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.UserAgent == "" {
		c.UserAgent = "romvault-ingestor/1.0"
	}
	return c
}

// Result summarizes one completed crawl.
type Result struct {
	ScrapeTotal int
	SeenURLs    int
}

// Crawler owns the URL queue and visited set for a single run. Neither is
// safe for concurrent use from outside Run: they belong exclusively to the
// dispatcher goroutine that Run creates.
type Crawler struct {
	cfg       Config
	store     store.Provider
	index     index.Provider
	queue     *enrich.Queue
	collector *colly.Collector
	logger    *zap.Logger

	ScrapeTotal atomic.Int64
	Enqueued    atomic.Int64
}

// New builds a Crawler bound to the given store, index, and enrichment
// queue. cfg zero values fall back to the specification's defaults.
func New(cfg Config, storeProvider store.Provider, indexProvider index.Provider, queue *enrich.Queue, logger *zap.Logger) (*Crawler, error) {
	cfg = cfg.withDefaults()
	if cfg.BaseURL == "" {
		return nil, errors.New("crawl: base url is required")
	}
	base := colly.NewCollector(colly.Async(true), colly.UserAgent(cfg.UserAgent))
	base.AllowURLRevisit = true
	base.SetRequestTimeout(cfg.RequestTimeout)
	if err := base.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: cfg.Concurrency + 5}); err != nil {
		return nil, err
	}
	return &Crawler{cfg: cfg, store: storeProvider, index: indexProvider, queue: queue, collector: base, logger: logger}, nil
}

// Run drives the dispatcher loop until the queue and in-flight set are both
// empty, or cancelled is observed. The final buffer is always flushed
// before returning, cancelled or not.
func (c *Crawler) Run(ctx context.Context, mode Mode, cancelled *atomic.Bool) (Result, error) {
	queue := []string{c.cfg.BaseURL}
	visited := map[string]bool{c.cfg.BaseURL: true}
	seen := make(map[string]struct{})
	var buffer []catalog.UpsertInput

	resultsCh := make(chan taskResult)
	inFlight := 0

	flush := func(force bool) {
		if len(buffer) == 0 || (!force && len(buffer) < c.cfg.BatchSize) {
			return
		}
		batch := buffer
		buffer = nil
		c.flushBatch(ctx, batch, mode)
	}

	for len(queue) > 0 || inFlight > 0 {
		for len(queue) > 0 && inFlight < c.cfg.Concurrency && !cancelled.Load() {
			next := queue[0]
			queue = queue[1:]
			inFlight++
			go c.runTask(ctx, next, resultsCh)
		}
		if inFlight == 0 {
			break
		}
		res := <-resultsCh
		inFlight--
		if res.err != nil {
			c.logger.Warn("crawl fetch failed", zap.String("url", res.url), zap.Error(res.err))
			continue
		}
		for _, sd := range res.subdirs {
			if !visited[sd] {
				visited[sd] = true
				queue = append(queue, sd)
			}
		}
		for _, rec := range res.records {
			seen[rec.DownloadURL] = struct{}{}
			buffer = append(buffer, rec)
			c.ScrapeTotal.Add(1)
		}
		flush(false)
	}
	flush(true)

	if mode == ModeIncremental && !cancelled.Load() {
		c.pruneStale(ctx, seen)
	}
	return Result{ScrapeTotal: int(c.ScrapeTotal.Load()), SeenURLs: len(seen)}, nil
}

type taskResult struct {
	url     string
	subdirs []string
	records []catalog.UpsertInput
	err     error
}

// runTask fetches and parses a single listing page. It never touches the
// dispatcher's owned state directly; results are reported back over out so
// the dispatcher goroutine applies them.
func (c *Crawler) runTask(ctx context.Context, pageURL string, out chan<- taskResult) {
	anchors, err := c.fetchPage(ctx, pageURL)
	if err != nil {
		out <- taskResult{url: pageURL, err: err}
		return
	}

	group, platform := deriveGroupPlatform(c.cfg.BaseURL, pageURL)

	var subdirs []string
	var records []catalog.UpsertInput
	for _, a := range anchors {
		switch classifyHref(a.href) {
		case hrefSubdirectory:
			resolved, err := resolveHref(pageURL, a.href)
			if err != nil {
				continue
			}
			subdirs = append(subdirs, resolved)
		case hrefFile:
			resolved, err := resolveHref(pageURL, a.href)
			if err != nil {
				continue
			}
			filename := decodeFilename(a.href)
			parsed := catalog.Parse(filename)
			records = append(records, catalog.UpsertInput{
				DownloadURL: resolved,
				GameName:    parsed.BaseName,
				Filename:    filename,
				Platform:    platform,
				GroupName:   group,
				Region:      parsed.Region,
				Size:        a.size,
				Tags:        parsed.Tags,
			})
		}
	}
	out <- taskResult{url: pageURL, subdirs: subdirs, records: records}
}

func decodeFilename(href string) string {
	leaf := href
	if idx := strings.LastIndex(href, "/"); idx != -1 {
		leaf = href[idx+1:]
	}
	decoded, err := url.PathUnescape(leaf)
	if err != nil {
		return leaf
	}
	return decoded
}

// flushBatch upserts a batch and either queues each row for enrichment or
// re-indexes it immediately when it is already enriched.
func (c *Crawler) flushBatch(ctx context.Context, batch []catalog.UpsertInput, mode Mode) {
	results, err := c.store.BatchUpsert(ctx, batch)
	if err != nil {
		c.logger.Error("batch upsert failed", zap.Int("batch_size", len(batch)), zap.Error(err))
		return
	}

	var reindexIDs []int64
	for i, r := range results {
		if r.NeedsEnrichment(mode == ModeClean) && catalog.Eligible(batch[i].Filename) {
			c.queue.Push(enrich.Item{ID: r.ID, GameName: r.GameName})
			c.Enqueued.Add(1)
			continue
		}
		reindexIDs = append(reindexIDs, r.ID)
	}
	if len(reindexIDs) == 0 {
		return
	}

	games, err := c.store.ReadByIDs(ctx, reindexIDs)
	if err != nil {
		c.logger.Error("reindex read failed", zap.Error(err))
		return
	}
	docs := make([]index.Document, len(games))
	for i, g := range games {
		docs[i] = index.FromGame(g)
	}
	if err := c.index.AddDocuments(ctx, docs); err != nil {
		c.logger.Error("reindex add documents failed", zap.Error(err))
	}
}

// pruneStale removes download_urls the store still has but this run never
// observed (§4.6 incremental pruning).
func (c *Crawler) pruneStale(ctx context.Context, seen map[string]struct{}) {
	storeURLs, err := c.store.ReadAllURLs(ctx)
	if err != nil {
		c.logger.Warn("prune stale: read all urls failed", zap.Error(err))
		return
	}
	var stale []string
	for _, u := range storeURLs {
		if _, ok := seen[u]; !ok {
			stale = append(stale, u)
		}
	}
	if len(stale) == 0 {
		return
	}
	if err := c.store.DeleteByURLs(ctx, stale); err != nil {
		c.logger.Warn("prune stale: delete failed", zap.Error(err))
	}
}

type pageAnchor struct {
	href string
	size string
}

type fetchResult struct {
	anchors []pageAnchor
	err     error
}

// fetchPage clones the base collector per request, mirroring the
// clone-then-bridge-async-callbacks pattern for a single synchronous fetch.
func (c *Crawler) fetchPage(ctx context.Context, pageURL string) ([]pageAnchor, error) {
	collector := c.collector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() { resultCh <- res })
	}

	var anchors []pageAnchor
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Attr("href")
		size := ""
		if row := e.DOM.Closest("tr"); row.Length() > 0 {
			size = strings.TrimSpace(row.Find("td.size").First().Text())
			if size == "-" {
				size = ""
			}
		}
		anchors = append(anchors, pageAnchor{href: href, size: size})
	})
	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("crawl: unknown fetch error")
		}
		send(fetchResult{err: err})
	})
	collector.OnScraped(func(_ *colly.Response) {
		send(fetchResult{anchors: anchors})
	})

	if err := collector.Visit(pageURL); err != nil {
		return nil, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return res.anchors, res.err
	default:
		return nil, errors.New("crawl: fetch produced no result")
	}
}
