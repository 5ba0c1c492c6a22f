package enrich

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/romvault/ingestor/internal/catalog"
	"github.com/romvault/ingestor/internal/index"
	"github.com/romvault/ingestor/internal/metadata"
	"github.com/romvault/ingestor/internal/metrics"
	"github.com/romvault/ingestor/internal/store"
)

// Default tunables, named after the specification's constants.
const (
	DefaultWorkers      = 4
	DefaultBatchSize    = 10
	DefaultWorkerDelay  = 1000 * time.Millisecond
	DefaultPollInterval = 100 * time.Millisecond
)

// Provider is the subset of metadata.Client the pool depends on, narrowed
// so tests can substitute a fake.
type Provider interface {
	BatchLookup(ctx context.Context, names []string) ([]metadata.Result, error)
}

// Config controls the worker pool's fan-out and pacing.
type Config struct {
	Workers      int
	BatchSize    int
	WorkerDelay  time.Duration
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.WorkerDelay <= 0 {
		c.WorkerDelay = DefaultWorkerDelay
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Pool is the fixed enrichment worker pool (C6). The 250ms per-worker
// stagger, computed as WorkerDelay/Workers, is realized as a single shared
// rate.Limiter every worker waits on before calling the provider — the
// pool's only admission control against the provider's published limit.
type Pool struct {
	cfg      Config
	queue    *Queue
	provider Provider
	store    store.Provider
	index    index.Provider
	limiter  *rate.Limiter
	logger   *zap.Logger

	// crawlerDone signals that C5 will push no further items.
	crawlerDone *atomic.Bool
	cancelled   *atomic.Bool

	Enriched atomic.Int64
	Indexed  atomic.Int64
	Skipped  atomic.Int64
}

// New builds a Pool. crawlerDone and cancelled are shared with the
// orchestrator: the former marks queue drain-and-exit, the latter
// cooperative cancellation.
func New(cfg Config, queue *Queue, provider Provider, storeProvider store.Provider, indexProvider index.Provider, crawlerDone, cancelled *atomic.Bool, logger *zap.Logger) *Pool {
	cfg = cfg.withDefaults()
	stagger := cfg.WorkerDelay / time.Duration(cfg.Workers)
	return &Pool{
		cfg:         cfg,
		queue:       queue,
		provider:    provider,
		store:       storeProvider,
		index:       indexProvider,
		limiter:     rate.NewLimiter(rate.Every(stagger), 1),
		logger:      logger,
		crawlerDone: crawlerDone,
		cancelled:   cancelled,
	}
}

// Run starts all workers, staggering their first iteration, and blocks
// until every worker exits (queue drained after crawl completion, or
// cancellation observed).
func (p *Pool) Run(ctx context.Context) {
	stagger := p.cfg.WorkerDelay / time.Duration(p.cfg.Workers)
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if sleepOrDone(ctx, time.Duration(id)*stagger) {
				return
			}
			p.workerLoop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) workerLoop(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil || p.cancelled.Load() {
			return
		}
		if p.queue.Len() < p.cfg.BatchSize && !p.crawlerDone.Load() {
			if sleepOrDone(ctx, p.cfg.PollInterval) {
				return
			}
			continue
		}
		batch := p.queue.Splice(p.cfg.BatchSize)
		if len(batch) == 0 {
			if p.crawlerDone.Load() {
				return
			}
			if sleepOrDone(ctx, p.cfg.PollInterval) {
				return
			}
			continue
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
		p.processBatch(ctx, batch)
		if sleepOrDone(ctx, p.cfg.WorkerDelay) {
			return
		}
	}
}

// processBatch implements worker-loop steps 4-6: lookup, per-item update
// and normalization, then a single indexing call for the whole batch.
func (p *Pool) processBatch(ctx context.Context, batch []Item) {
	names := make([]string, len(batch))
	for i, item := range batch {
		names[i] = item.GameName
	}

	results, err := p.provider.BatchLookup(ctx, names)
	if err != nil {
		p.logger.Warn("enrich: batch lookup failed", zap.Int("batch_size", len(batch)), zap.Error(err))
		p.Skipped.Add(int64(len(batch)))
		return
	}

	var mu sync.Mutex
	var docs []index.Document
	var wg sync.WaitGroup
	for i, item := range batch {
		wg.Add(1)
		go func(item Item, r metadata.Result) {
			defer wg.Done()
			game, err := p.store.UpdateFields(ctx, item.ID, catalog.EnrichmentFields{
				Description: r.Description,
				Rating:      r.Rating,
				ReleaseDate: r.ReleaseDate,
				Developer:   r.Developer,
				Publisher:   r.Publisher,
				Genre:       r.Genre,
				Images:      r.Images,
			})
			if err != nil {
				p.logger.Warn("enrich: update fields failed", zap.Int64("id", item.ID), zap.Error(err))
				p.Skipped.Add(1)
				return
			}
			p.Enriched.Add(1)
			metrics.ObserveEnriched(1)
			mu.Lock()
			docs = append(docs, index.FromGame(game))
			mu.Unlock()
		}(item, results[i])
	}
	wg.Wait()

	if len(docs) == 0 {
		return
	}
	if err := p.index.AddDocuments(ctx, docs); err != nil {
		p.logger.Warn("enrich: add documents failed", zap.Error(err))
		return
	}
	p.Indexed.Add(int64(len(docs)))
	metrics.ObserveIndexed(len(docs))
}

// sleepOrDone sleeps for d, returning true early if ctx is cancelled first.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}
