package embed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/corpus/ai/mock"
	"github.com/poiesic/corpus/core"
)

func makeChunks(t *testing.T, n int) []*core.Chunk {
	t.Helper()
	chunks := make([]*core.Chunk, n)
	for i := 0; i < n; i++ {
		start := i * 10
		end := start + 10
		chunks[i] = &core.Chunk{
			ChunkID:       core.ChunkID("doc-1", start, end),
			SourceID:      "doc-1",
			Text:          fmt.Sprintf("chunk text %d", i),
			StartOffset:   start,
			EndOffset:     end,
			SequenceIndex: i,
		}
	}
	return chunks
}

func testConfig() Config {
	return Config{
		BatchSize:      2,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
	}
}

func TestNewBatcher_Validation(t *testing.T) {
	embedder := mock.NewMockEmbedder()

	_, err := NewBatcher(nil, testConfig(), nil, nil)
	assert.Error(t, err)

	_, err = NewBatcher(embedder, Config{BatchSize: 0, MaxRetries: 1}, nil, nil)
	assert.Error(t, err)

	_, err = NewBatcher(embedder, Config{BatchSize: 2, MaxRetries: 0}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestEmbedChunks_Empty(t *testing.T) {
	batcher, err := NewBatcher(mock.NewMockEmbedder(), testConfig(), nil, nil)
	require.NoError(t, err)

	result, err := batcher.EmbedChunks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Succeeded)
	assert.Empty(t, result.Failed)
}

func TestEmbedChunks_AllSucceed(t *testing.T) {
	batcher, err := NewBatcher(mock.NewMockEmbedder(), testConfig(), nil, nil)
	require.NoError(t, err)

	chunks := makeChunks(t, 5)
	result, err := batcher.EmbedChunks(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 5)
	assert.Empty(t, result.Failed)

	// Input order preserved across batch boundaries
	for i, embedded := range result.Succeeded {
		assert.Equal(t, chunks[i].ChunkID, embedded.ChunkID)
		assert.Equal(t, i, embedded.SequenceIndex)
		assert.NotEmpty(t, embedded.Vector)
		assert.Equal(t, len(embedded.Vector), embedded.VectorDim)
	}
}

func TestEmbedChunks_VectorsNormalized(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i := range texts {
			vectors[i] = []float32{3, 4}
		}
		return vectors, nil
	}

	batcher, err := NewBatcher(embedder, testConfig(), nil, nil)
	require.NoError(t, err)

	result, err := batcher.EmbedChunks(context.Background(), makeChunks(t, 1))
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 1)
	assert.InDelta(t, 0.6, result.Succeeded[0].Vector[0], 1e-6)
	assert.InDelta(t, 0.8, result.Succeeded[0].Vector[1], 1e-6)
}

func TestEmbedChunks_BatchFailureIsolated(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	boom := errors.New("model does not exist")
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		// Second batch carries chunks 2 and 3 with batch size 2
		if texts[0] == "chunk text 2" {
			return nil, boom
		}
		vectors := make([][]float32, len(texts))
		for i := range texts {
			vectors[i] = []float32{1, 0}
		}
		return vectors, nil
	}

	batcher, err := NewBatcher(embedder, testConfig(), nil, nil)
	require.NoError(t, err)

	chunks := makeChunks(t, 5)
	result, err := batcher.EmbedChunks(context.Background(), chunks)
	require.NoError(t, err)

	require.Len(t, result.Succeeded, 3)
	assert.Equal(t, chunks[0].ChunkID, result.Succeeded[0].ChunkID)
	assert.Equal(t, chunks[1].ChunkID, result.Succeeded[1].ChunkID)
	assert.Equal(t, chunks[4].ChunkID, result.Succeeded[2].ChunkID)

	require.Len(t, result.Failed, 2)
	assert.Equal(t, chunks[2].ChunkID, result.Failed[0].Chunk.ChunkID)
	assert.Equal(t, chunks[3].ChunkID, result.Failed[1].Chunk.ChunkID)
	assert.ErrorIs(t, result.Failed[0].Err, boom)
}

func TestEmbedChunks_TransientFailureRetried(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	calls := 0
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls == 1 {
			return nil, ErrRateLimited
		}
		vectors := make([][]float32, len(texts))
		for i := range texts {
			vectors[i] = []float32{1, 0}
		}
		return vectors, nil
	}

	batcher, err := NewBatcher(embedder, testConfig(), nil, nil)
	require.NoError(t, err)

	result, err := batcher.EmbedChunks(context.Background(), makeChunks(t, 2))
	require.NoError(t, err)
	assert.Len(t, result.Succeeded, 2)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 2, calls)
}

func TestEmbedChunks_CountMismatchFailsBatch(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	calls := 0
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		return [][]float32{{1, 0}}, nil
	}

	batcher, err := NewBatcher(embedder, testConfig(), nil, nil)
	require.NoError(t, err)

	result, err := batcher.EmbedChunks(context.Background(), makeChunks(t, 2))
	require.NoError(t, err)
	assert.Empty(t, result.Succeeded)
	require.Len(t, result.Failed, 2)
	assert.ErrorIs(t, result.Failed[0].Err, ErrCountMismatch)
	assert.Equal(t, 1, calls, "count mismatch should not be retried")
}

func TestEmbedChunks_WithPool(t *testing.T) {
	pool, err := ants.NewPool(2)
	require.NoError(t, err)
	defer pool.Release()

	batcher, err := NewBatcher(mock.NewMockEmbedder(), testConfig(), pool, nil)
	require.NoError(t, err)

	chunks := makeChunks(t, 9)
	result, err := batcher.EmbedChunks(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 9)
	assert.Empty(t, result.Failed)

	for i, embedded := range result.Succeeded {
		assert.Equal(t, chunks[i].ChunkID, embedded.ChunkID, "order must be preserved with concurrent batches")
	}
}

func TestEmbedChunks_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batcher, err := NewBatcher(mock.NewMockEmbedder(), testConfig(), nil, nil)
	require.NoError(t, err)

	result, err := batcher.EmbedChunks(ctx, makeChunks(t, 4))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Succeeded)
	assert.Len(t, result.Failed, 4)
}
