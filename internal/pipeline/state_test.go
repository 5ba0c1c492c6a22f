package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romvault/ingestor/internal/crawl"
)

func TestStateBeginResetsCountersAndError(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.finish(StatusError, "boom")
	s.counters.Enriched = 5

	s.begin(crawl.ModeIncremental)

	snap := s.Snapshot()
	assert.Equal(t, StatusRunning, snap.Status)
	assert.Equal(t, crawl.ModeIncremental, snap.Mode)
	assert.Zero(t, snap.Counters.Enriched)
	assert.Empty(t, snap.Error)
	assert.Nil(t, snap.EndedAt)
	require.NotNil(t, snap.StartedAt)
}

func TestStateFinishSetsEndedAtAndStatus(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.begin(crawl.ModeClean)
	s.finish(StatusDone, "")

	snap := s.Snapshot()
	assert.Equal(t, StatusDone, snap.Status)
	require.NotNil(t, snap.EndedAt)
}

func TestIsRunningReflectsStatus(t *testing.T) {
	t.Parallel()

	s := NewState()
	assert.False(t, s.IsRunning())
	s.begin(crawl.ModeIncremental)
	assert.True(t, s.IsRunning())
	s.finish(StatusDone, "")
	assert.False(t, s.IsRunning())
}
