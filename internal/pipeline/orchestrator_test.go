package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/romvault/ingestor/internal/crawl"
	"github.com/romvault/ingestor/internal/enrich"
	"github.com/romvault/ingestor/internal/metadata"
	"github.com/romvault/ingestor/internal/metrics"

	memindex "github.com/romvault/ingestor/internal/index/memory"
	memstore "github.com/romvault/ingestor/internal/store/memory"
)

func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"test-token","token_type":"bearer","expires_in":3600}`)
	}))
}

func newQueryServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"name":"q_0","result":[{"name":"Super Mario Bros.","summary":"A classic platformer.","rating":80}]}]`)
	}))
}

func newArchiveServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/nointro/nes/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><table>
<tr><td><a href="Super%20Mario%20Bros.%20%28USA%29.nes">Super Mario Bros. (USA).nes</a></td><td class="size">40 KB</td></tr>
</table></body></html>`)
	})
	return httptest.NewServer(mux)
}

func TestOrchestratorRunEndToEnd(t *testing.T) {
	metrics.Init()
	archive := newArchiveServer(t)
	defer archive.Close()
	token := newTokenServer(t)
	defer token.Close()
	query := newQueryServer(t)
	defer query.Close()

	st := memstore.New()
	idx := memindex.New()
	state := NewState()

	cfg := Config{
		Crawl: crawl.Config{BaseURL: archive.URL + "/nointro/nes/", BatchSize: 1, Concurrency: 2, RequestTimeout: 5 * time.Second},
		Enrich: enrich.Config{
			Workers: 1, BatchSize: 1,
			WorkerDelay:  10 * time.Millisecond,
			PollInterval: 5 * time.Millisecond,
		},
		Metadata: metadata.Config{TokenURL: token.URL, QueryURL: query.URL, ClientID: "id", ClientSecret: "secret"},
	}

	orch := New(cfg, st, idx, state, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, orch.Run(ctx, crawl.ModeIncremental))

	snap := state.Snapshot()
	assert.Equal(t, StatusDone, snap.Status)
	assert.EqualValues(t, 1, snap.Counters.ScrapeTotal)

	docs := idx.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "Super Mario Bros.", docs[0].GameName)
	require.NotNil(t, docs[0].Description)
	assert.Equal(t, "A classic platformer.", *docs[0].Description)
}

func TestOrchestratorRejectsConcurrentRun(t *testing.T) {
	archive := newArchiveServer(t)
	defer archive.Close()

	st := memstore.New()
	idx := memindex.New()
	state := NewState()
	state.begin(crawl.ModeIncremental)

	cfg := Config{
		Crawl:    crawl.Config{BaseURL: archive.URL + "/nointro/nes/"},
		Metadata: metadata.Config{TokenURL: "https://unused.example", QueryURL: "https://unused.example"},
	}
	orch := New(cfg, st, idx, state, zap.NewNop())

	err := orch.Run(context.Background(), crawl.ModeIncremental)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestOrchestratorProviderFailureRunsScrapeOnly(t *testing.T) {
	metrics.Init()
	archive := newArchiveServer(t)
	defer archive.Close()

	st := memstore.New()
	idx := memindex.New()
	state := NewState()

	cfg := Config{
		Crawl:    crawl.Config{BaseURL: archive.URL + "/nointro/nes/", BatchSize: 1},
		Metadata: metadata.Config{TokenURL: "http://127.0.0.1:0", QueryURL: "http://127.0.0.1:0"},
	}
	orch := New(cfg, st, idx, state, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, orch.Run(ctx, crawl.ModeIncremental))

	snap := state.Snapshot()
	assert.Equal(t, StatusDone, snap.Status)
	assert.Empty(t, idx.Documents())
}
