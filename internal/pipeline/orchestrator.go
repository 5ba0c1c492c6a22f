// Package pipeline implements the run orchestrator (C7): observable run
// state, mode selection, and the wiring from the crawler through the
// enrichment queue to the search index.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/romvault/ingestor/internal/crawl"
	"github.com/romvault/ingestor/internal/enrich"
	"github.com/romvault/ingestor/internal/index"
	"github.com/romvault/ingestor/internal/metadata"
	"github.com/romvault/ingestor/internal/metrics"
	"github.com/romvault/ingestor/internal/store"
)

// ErrAlreadyRunning is returned by Run when a run is already in progress.
var ErrAlreadyRunning = errors.New("pipeline already running")

// pollInterval is how often the orchestrator samples live counters from
// the crawler and enrich pool into the observable State.
const pollInterval = 500 * time.Millisecond

// Config bundles the sub-component configuration the orchestrator wires
// together on every run.
type Config struct {
	Crawl    crawl.Config
	Enrich   enrich.Config
	Metadata metadata.Config
}

// Orchestrator runs the ingestion pipeline end to end and exposes its
// state for the admin HTTP surface.
type Orchestrator struct {
	cfg    Config
	store  store.Provider
	index  index.Provider
	state  *State
	logger *zap.Logger

	mu        sync.Mutex
	cancelled *atomic.Bool
}

// New builds an Orchestrator around the given store, index, and state.
func New(cfg Config, storeProvider store.Provider, indexProvider index.Provider, state *State, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, store: storeProvider, index: indexProvider, state: state, logger: logger}
}

// State returns the orchestrator's observable state.
func (o *Orchestrator) State() *State {
	return o.state
}

// Stop requests cancellation of the current run. It returns an error if no
// run is in progress.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancelled == nil || !o.state.IsRunning() {
		return errors.New("pipeline is not running")
	}
	o.cancelled.Store(true)
	o.state.setCancelled(true)
	return nil
}

// Start launches one pipeline run in the background, returning as soon as
// the run has been admitted (or rejected with ErrAlreadyRunning). Admission
// is synchronous so an HTTP caller gets an authoritative 409 without racing
// the run's own goroutine.
func (o *Orchestrator) Start(ctx context.Context, mode crawl.Mode) error {
	o.mu.Lock()
	if o.state.IsRunning() {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	cancelled := &atomic.Bool{}
	o.cancelled = cancelled
	o.state.begin(mode)
	o.mu.Unlock()

	go o.run(ctx, mode, cancelled)
	return nil
}

// Run executes one pipeline run to completion, blocking until it finishes.
// It returns ErrAlreadyRunning immediately if a run is already in progress;
// all other failures are recorded in state rather than returned, matching
// the specification's narrowest-useful-scope error handling.
func (o *Orchestrator) Run(ctx context.Context, mode crawl.Mode) error {
	o.mu.Lock()
	if o.state.IsRunning() {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	cancelled := &atomic.Bool{}
	o.cancelled = cancelled
	o.state.begin(mode)
	o.mu.Unlock()

	o.run(ctx, mode, cancelled)
	return nil
}

func (o *Orchestrator) run(ctx context.Context, mode crawl.Mode, cancelled *atomic.Bool) {
	o.logger.Info("pipeline run starting", zap.String("mode", string(mode)))

	if err := o.store.Init(ctx); err != nil {
		o.logger.Warn("pipeline: store init failed", zap.Error(err))
	}
	if err := o.index.Init(ctx); err != nil {
		o.logger.Warn("pipeline: index init failed", zap.Error(err))
	}

	if mode == crawl.ModeClean {
		if err := o.index.DeleteAll(ctx); err != nil {
			o.logger.Warn("pipeline: clean mode index wipe failed", zap.Error(err))
		}
		if err := o.store.DeleteAll(ctx); err != nil {
			o.logger.Warn("pipeline: clean mode store wipe failed", zap.Error(err))
		}
	}

	queue := enrich.NewQueue()
	crawlerDone := &atomic.Bool{}

	crawler, err := crawl.New(o.cfg.Crawl, o.store, o.index, queue, o.logger)
	if err != nil {
		o.state.finish(StatusError, err.Error())
		metrics.ObservePipelineRun(string(StatusError))
		return
	}

	var pool *enrich.Pool
	provider, err := metadata.New(ctx, o.cfg.Metadata)
	if err != nil {
		o.logger.Warn("pipeline: provider token acquisition failed, running scrape-only", zap.Error(err))
		crawlerDone.Store(true)
		o.state.setScrapeComplete(true)
	} else {
		pool = enrich.New(o.cfg.Enrich, queue, provider, o.store, o.index, crawlerDone, cancelled, o.logger)
	}

	stopPoll := make(chan struct{})
	go o.pollCounters(crawler, pool, queue, stopPoll)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := crawler.Run(ctx, mode, cancelled); err != nil {
			o.logger.Warn("pipeline: crawl run failed", zap.Error(err))
		}
		crawlerDone.Store(true)
		o.state.setScrapeComplete(true)
	}()

	if pool != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Run(ctx)
		}()
	}

	wg.Wait()
	close(stopPoll)
	o.finalizeCounters(crawler, pool, queue, mode)

	switch {
	case cancelled.Load():
		o.state.finish(StatusIdle, "")
		metrics.ObservePipelineRun(string(StatusIdle))
	default:
		o.state.finish(StatusDone, "")
		metrics.ObservePipelineRun(string(StatusDone))
	}
	o.logger.Info("pipeline run finished", zap.String("mode", string(mode)))
}

func (o *Orchestrator) pollCounters(crawler *crawl.Crawler, pool *enrich.Pool, queue *enrich.Queue, stop <-chan struct{}) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			o.sampleCounters(crawler, pool, queue)
		}
	}
}

func (o *Orchestrator) sampleCounters(crawler *crawl.Crawler, pool *enrich.Pool, queue *enrich.Queue) {
	queueLen := queue.Len()
	o.state.setQueueSize(int64(queueLen))
	metrics.SetQueueDepth(queueLen)

	o.state.mu.Lock()
	o.state.counters.ScrapeTotal = crawler.ScrapeTotal.Load()
	o.state.counters.ScrapeNew = crawler.Enqueued.Load()
	if pool != nil {
		o.state.counters.Enriched = pool.Enriched.Load()
		o.state.counters.Indexed = pool.Indexed.Load()
	}
	o.state.mu.Unlock()
}

// finalizeCounters takes the run's last counter sample and records the
// run-scoped scraped-total observation exactly once, since ObserveScraped
// adds a delta rather than setting an absolute value.
func (o *Orchestrator) finalizeCounters(crawler *crawl.Crawler, pool *enrich.Pool, queue *enrich.Queue, mode crawl.Mode) {
	o.sampleCounters(crawler, pool, queue)
	metrics.ObserveScraped(string(mode), int(crawler.ScrapeTotal.Load()))
}
