package metadata

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romvault/ingestor/internal/metrics"
)

type fakeDoer struct {
	response string
	status   int
	lastReq  *http.Request
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.lastReq = req
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(f.response)),
	}, nil
}

func TestBatchLookupNormalizesHit(t *testing.T) {
	t.Parallel()
	metrics.Init()

	fake := &fakeDoer{response: `[
		{"name":"q_0","result":[{
			"name":"Chrono Trigger",
			"summary":"A time-travel RPG.",
			"rating":90,
			"first_release_date":774489600,
			"involved_companies":[{"company":{"name":"Square"}}],
			"genres":[{"name":"RPG"},{"name":"Adventure"}],
			"cover":{"url":"//images.example/t_thumb/cover.jpg"},
			"screenshots":[{"url":"//images.example/t_thumb/s1.jpg"}]
		}]}
	]`}

	c := NewWithDoer(fake, "https://provider.example/query")
	results, err := c.BatchLookup(context.Background(), []string{"Chrono Trigger"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	require.NotNil(t, r.Description)
	assert.Equal(t, "A time-travel RPG.", *r.Description)
	require.NotNil(t, r.Rating)
	assert.Equal(t, 4.5, *r.Rating)
	require.NotNil(t, r.Developer)
	assert.Equal(t, "Square", *r.Developer)
	assert.Equal(t, r.Developer, r.Publisher)
	require.NotNil(t, r.Genre)
	assert.Equal(t, "RPG,Adventure", *r.Genre)
	require.Len(t, r.Images, 2)
	assert.Equal(t, "https://images.example/t_1080p/cover.jpg", r.Images[0])
}

func TestBatchLookupMissMapsToEmptyDescriptionSentinel(t *testing.T) {
	t.Parallel()
	metrics.Init()

	fake := &fakeDoer{response: `[{"name":"q_0","result":[]}]`}

	c := NewWithDoer(fake, "https://provider.example/query")
	results, err := c.BatchLookup(context.Background(), []string{"Unknown Game"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.NotNil(t, results[0].Description)
	assert.Empty(t, *results[0].Description)
	assert.Nil(t, results[0].Rating)
}

func TestBatchLookupMalformedAliasMapsToMiss(t *testing.T) {
	t.Parallel()
	metrics.Init()

	fake := &fakeDoer{response: `[]`}

	c := NewWithDoer(fake, "https://provider.example/query")
	results, err := c.BatchLookup(context.Background(), []string{"A", "B"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.NotNil(t, r.Description)
		assert.Empty(t, *r.Description)
	}
}

func TestBatchLookupRejectsOversizedBatch(t *testing.T) {
	t.Parallel()

	names := make([]string, 11)
	for i := range names {
		names[i] = "name"
	}

	c := NewWithDoer(&fakeDoer{}, "https://provider.example/query")
	_, err := c.BatchLookup(context.Background(), names)
	assert.Error(t, err)
}

func TestBatchLookupEmptyInputIsNoop(t *testing.T) {
	t.Parallel()

	c := NewWithDoer(&fakeDoer{}, "https://provider.example/query")
	results, err := c.BatchLookup(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
