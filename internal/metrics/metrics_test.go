package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Reset collectors for testing purposes.
	scrapedTotal = nil
	enrichedTotal = nil
	indexedTotal = nil
	pipelineRunsTotal = nil

	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if scrapedTotal == nil || enrichedTotal == nil || indexedTotal == nil || pipelineRunsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveScraped("incremental", 3)
	if val := testutil.ToFloat64(scrapedTotal.WithLabelValues("incremental")); val != 3 {
		t.Errorf("expected scrapedTotal to be 3, got %f", val)
	}
}

func TestObserveEnrichedAndIndexed(t *testing.T) {
	Init()

	before := testutil.ToFloat64(enrichedTotal)
	ObserveEnriched(2)
	if val := testutil.ToFloat64(enrichedTotal); val != before+2 {
		t.Errorf("expected enrichedTotal to increase by 2, got %f", val-before)
	}

	before = testutil.ToFloat64(indexedTotal)
	ObserveIndexed(5)
	if val := testutil.ToFloat64(indexedTotal); val != before+5 {
		t.Errorf("expected indexedTotal to increase by 5, got %f", val-before)
	}
}

func TestObservePipelineRun(t *testing.T) {
	Init()

	ObservePipelineRun("done")
	if val := testutil.ToFloat64(pipelineRunsTotal.WithLabelValues("done")); val != 1 {
		t.Errorf("expected pipelineRunsTotal[done] to be 1, got %f", val)
	}
}

func TestSetQueueDepth(t *testing.T) {
	Init()

	SetQueueDepth(42)
	if val := testutil.ToFloat64(queueDepth); val != 42 {
		t.Errorf("expected queueDepth to be 42, got %f", val)
	}
}
