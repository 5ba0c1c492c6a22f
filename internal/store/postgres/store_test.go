package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/romvault/ingestor/internal/catalog"
)

func TestStoreInitCreatesSchemaAndPrunesLogs(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS games").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("DELETE FROM search_logs").WithArgs(pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.Init(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreBatchUpsertReturnsRowsInInputOrder(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewWithPool(mock)
	require.NoError(t, err)

	records := []catalog.UpsertInput{
		{DownloadURL: "https://a/plaintext.rom", GameName: "Plaintext", Filename: "plaintext.rom", Platform: "nes", GroupName: "a", Region: "", Size: "1 KB", Tags: nil},
		{DownloadURL: "https://a/1.nes", GameName: "Game One", Filename: "1.nes", Platform: "nes", GroupName: "a", Region: "USA", Size: "1 KB", Tags: []string{"USA"}},
		{DownloadURL: "https://a/2.nes", GameName: "Game (USA) (Rev 1).nes", Filename: "2.nes", Platform: "nes", GroupName: "a", Region: "USA", Size: "2 KB", Tags: []string{"USA", "Rev 1"}},
	}

	rows := pgxmock.NewRows([]string{"id", "game_name", "description", "filename"}).
		AddRow(int64(1), "Plaintext", (*string)(nil), "plaintext.rom").
		AddRow(int64(2), "Game One", (*string)(nil), "1.nes").
		AddRow(int64(3), "Game (USA) (Rev 1).nes", (*string)(nil), "2.nes")

	mock.ExpectQuery("WITH input AS").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(rows)

	got, err := s.BatchUpsert(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, int64(1), got[0].ID)
	require.Equal(t, "Game (USA) (Rev 1).nes", got[2].GameName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreBatchUpsertEmptyInputIsNoop(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewWithPool(mock)
	require.NoError(t, err)

	got, err := s.BatchUpsert(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreAppendSearchLogSwallowsError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO search_logs").WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).WillReturnError(context.DeadlineExceeded)

	err = s.AppendSearchLog(context.Background(), catalog.SearchLog{Query: "mario", Results: 3, SearchedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreDeleteAllWipesGames(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("DELETE FROM games").WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.DeleteAll(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCountReturnsRowCount(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT count").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(7), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreDeleteByURLsEmptyIsNoop(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewWithPool(mock)
	require.NoError(t, err)

	require.NoError(t, s.DeleteByURLs(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
