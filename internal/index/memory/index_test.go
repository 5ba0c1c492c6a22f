package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/romvault/ingestor/internal/index"
)

func TestAddDocumentsUpsertsByID(t *testing.T) {
	t.Parallel()

	idx := New()
	require.NoError(t, idx.AddDocuments(context.Background(), []index.Document{{ID: 1, GameName: "One"}}))
	require.NoError(t, idx.AddDocuments(context.Background(), []index.Document{{ID: 1, GameName: "One Updated"}}))

	docs := idx.Documents()
	require.Len(t, docs, 1)
	require.Equal(t, "One Updated", docs[0].GameName)
}

func TestCountReflectsAddedDocuments(t *testing.T) {
	t.Parallel()

	idx := New()
	require.NoError(t, idx.AddDocuments(context.Background(), []index.Document{{ID: 1}, {ID: 2}}))

	n, err := idx.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestDeleteAllClearsDocuments(t *testing.T) {
	t.Parallel()

	idx := New()
	require.NoError(t, idx.AddDocuments(context.Background(), []index.Document{{ID: 1}, {ID: 2}}))
	require.NoError(t, idx.DeleteAll(context.Background()))
	require.Empty(t, idx.Documents())
}
