// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapedTotal      *prometheus.CounterVec
	enrichedTotal     prometheus.Counter
	indexedTotal      prometheus.Counter
	pipelineRunsTotal *prometheus.CounterVec
	queueDepth        prometheus.Gauge
	providerCallSecs  prometheus.Histogram

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors. Safe to call multiple
// times; only the first call registers collectors.
func Init() {
	once.Do(func() {
		scrapedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_scraped_records_total",
				Help: "Total number of catalog records observed by the crawler, labeled by mode.",
			},
			[]string{"mode"},
		)

		enrichedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_enriched_records_total",
				Help: "Total number of records successfully enriched with provider metadata.",
			},
		)

		indexedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_indexed_documents_total",
				Help: "Total number of documents written to the search index.",
			},
		)

		pipelineRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_pipeline_runs_total",
				Help: "Total number of pipeline runs, labeled by terminal status.",
			},
			[]string{"status"},
		)

		queueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_enrich_queue_depth",
				Help: "Current number of records waiting for enrichment.",
			},
		)

		providerCallSecs = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_provider_call_duration_seconds",
				Help:    "Histogram of metadata provider batch lookup latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of admin HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of admin HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveScraped increments the scraped-record counter for mode.
func ObserveScraped(mode string, n int) {
	scrapedTotal.WithLabelValues(mode).Add(float64(n))
}

// ObserveEnriched increments the enriched-record counter.
func ObserveEnriched(n int) {
	enrichedTotal.Add(float64(n))
}

// ObserveIndexed increments the indexed-document counter.
func ObserveIndexed(n int) {
	indexedTotal.Add(float64(n))
}

// ObservePipelineRun increments the run counter for a terminal status.
func ObservePipelineRun(status string) {
	pipelineRunsTotal.WithLabelValues(status).Inc()
}

// SetQueueDepth reports the current enrichment queue depth.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// ObserveProviderCall records the duration of a metadata provider batch call.
func ObserveProviderCall(d time.Duration) {
	providerCallSecs.Observe(d.Seconds())
}

// Middleware is a chi middleware that records admin HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(ww.status)).Inc()
		httpRequestDurationSeconds.WithLabelValues(r.Method, routePattern).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
