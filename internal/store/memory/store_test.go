package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/romvault/ingestor/internal/catalog"
	"github.com/romvault/ingestor/internal/store"
)

func TestBatchUpsertAssignsIDsAndPreservesOrder(t *testing.T) {
	t.Parallel()

	s := New()
	results, err := s.BatchUpsert(context.Background(), []catalog.UpsertInput{
		{DownloadURL: "https://a/1.nes", GameName: "One"},
		{DownloadURL: "https://a/2.nes", GameName: "Two"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "One", results[0].GameName)
	require.Equal(t, "Two", results[1].GameName)
	require.NotEqual(t, results[0].ID, results[1].ID)
}

func TestBatchUpsertConflictPreservesEnrichment(t *testing.T) {
	t.Parallel()

	s := New()
	first, err := s.BatchUpsert(context.Background(), []catalog.UpsertInput{
		{DownloadURL: "https://a/1.nes", GameName: "One", Region: "USA"},
	})
	require.NoError(t, err)

	lore := "lore"
	_, err = s.UpdateFields(context.Background(), first[0].ID, catalog.EnrichmentFields{Description: &lore})
	require.NoError(t, err)

	second, err := s.BatchUpsert(context.Background(), []catalog.UpsertInput{
		{DownloadURL: "https://a/1.nes", GameName: "One", Region: "Japan"},
	})
	require.NoError(t, err)

	require.Equal(t, first[0].ID, second[0].ID)
	require.NotNil(t, second[0].Description)
	require.Equal(t, "lore", *second[0].Description)

	rows, err := s.ReadByIDs(context.Background(), []int64{first[0].ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Japan", rows[0].Region)
}

func TestUpdateFieldsUnknownIDReturnsErrNotFound(t *testing.T) {
	t.Parallel()

	s := New()
	_, err := s.UpdateFields(context.Background(), 999, catalog.EnrichmentFields{})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteByURLsRemovesRecord(t *testing.T) {
	t.Parallel()

	s := New()
	results, err := s.BatchUpsert(context.Background(), []catalog.UpsertInput{
		{DownloadURL: "https://a/1.nes", GameName: "One"},
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteByURLs(context.Background(), []string{"https://a/1.nes"}))

	rows, err := s.ReadByIDs(context.Background(), []int64{results[0].ID})
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestDeleteAllWipesEveryRow(t *testing.T) {
	t.Parallel()

	s := New()
	_, err := s.BatchUpsert(context.Background(), []catalog.UpsertInput{
		{DownloadURL: "https://a/1.nes"},
		{DownloadURL: "https://a/2.nes"},
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteAll(context.Background()))

	urls, err := s.ReadAllURLs(context.Background())
	require.NoError(t, err)
	require.Empty(t, urls)
}

func TestCountReflectsStoredRecords(t *testing.T) {
	t.Parallel()

	s := New()
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = s.BatchUpsert(context.Background(), []catalog.UpsertInput{
		{DownloadURL: "https://a/1.nes"},
		{DownloadURL: "https://a/2.nes"},
	})
	require.NoError(t, err)

	n, err = s.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestReadAllURLsReflectsStoredRecords(t *testing.T) {
	t.Parallel()

	s := New()
	_, err := s.BatchUpsert(context.Background(), []catalog.UpsertInput{
		{DownloadURL: "https://a/2.nes"},
		{DownloadURL: "https://a/1.nes"},
	})
	require.NoError(t, err)

	urls, err := s.ReadAllURLs(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"https://a/1.nes", "https://a/2.nes"}, urls)
}
