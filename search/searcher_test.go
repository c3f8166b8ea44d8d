package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/corpus/ai/mock"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
	"github.com/poiesic/corpus/storage/badger"
)

func seedEntries(t *testing.T, repo storage.EntryRepository) {
	t.Helper()

	entries := []*core.IndexEntry{
		{
			ChunkID:       core.ChunkID("doc-1", 0, 10),
			SourceID:      "doc-1",
			Text:          "aligned",
			StartOffset:   0,
			EndOffset:     10,
			SequenceIndex: 0,
			Vector:        []float32{1, 0},
		},
		{
			ChunkID:       core.ChunkID("doc-1", 10, 20),
			SourceID:      "doc-1",
			Text:          "diagonal",
			StartOffset:   10,
			EndOffset:     20,
			SequenceIndex: 1,
			Vector:        []float32{0.707, 0.707},
		},
		{
			ChunkID:       core.ChunkID("doc-2", 0, 10),
			SourceID:      "doc-2",
			Text:          "orthogonal",
			StartOffset:   0,
			EndOffset:     10,
			SequenceIndex: 0,
			Vector:        []float32{0, 1},
		},
	}
	_, err := repo.UpsertEntries(context.Background(), entries...)
	require.NoError(t, err)
}

func newTestSearcher(t *testing.T, opts ...Option) (*Searcher, *mock.MockProvider) {
	t.Helper()

	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	seedEntries(t, repo)

	provider := mock.NewMockProvider()
	provider.MockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}

	searcher, err := NewSearcher(repo, provider, opts...)
	require.NoError(t, err)
	return searcher, provider
}

func TestNewSearcher_Validation(t *testing.T) {
	provider := mock.NewMockProvider()

	_, err := NewSearcher(nil, provider)
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	defer repo.Close()

	_, err = NewSearcher(repo, nil)
	assert.ErrorIs(t, err, ErrProviderRequired)
}

func TestFindSimilar_RankedResults(t *testing.T) {
	searcher, _ := newTestSearcher(t)

	results, err := searcher.FindSimilar(context.Background(), "query", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "aligned", results[0].Entry.Text)
	assert.Equal(t, "diagonal", results[1].Entry.Text)
	assert.Equal(t, "orthogonal", results[2].Entry.Text)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Greater(t, results[1].Score, results[2].Score)
}

func TestFindSimilar_MinScore(t *testing.T) {
	searcher, _ := newTestSearcher(t, WithMinScore(0.5))

	results, err := searcher.FindSimilar(context.Background(), "query", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "aligned", results[0].Entry.Text)
	assert.Equal(t, "diagonal", results[1].Entry.Text)
}

func TestFindSimilar_MaxHits(t *testing.T) {
	searcher, _ := newTestSearcher(t)

	results, err := searcher.FindSimilar(context.Background(), "query", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "aligned", results[0].Entry.Text)
}

func TestFindSimilar_InvalidArguments(t *testing.T) {
	searcher, _ := newTestSearcher(t)

	_, err := searcher.FindSimilar(context.Background(), "  ", 10)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = searcher.FindSimilar(context.Background(), "query", 0)
	assert.ErrorIs(t, err, ErrInvalidMaxHits)
}

func TestFindSimilar_EmbedderError(t *testing.T) {
	searcher, provider := newTestSearcher(t)
	boom := errors.New("embedding host unreachable")
	provider.MockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, boom
	}

	_, err := searcher.FindSimilar(context.Background(), "query", 10)
	assert.ErrorIs(t, err, boom)
}
