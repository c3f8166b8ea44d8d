// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package embed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/core"
)

// Config holds batching and retry parameters for embedding calls.
type Config struct {
	// BatchSize is the maximum number of chunks per embedding API call.
	BatchSize int

	// MaxRetries is the maximum number of attempts per batch.
	MaxRetries int

	// RetryBaseDelay is the base delay for exponential backoff.
	RetryBaseDelay time.Duration
}

// DefaultConfig returns sensible defaults for local embedding servers.
func DefaultConfig() Config {
	return Config{
		BatchSize:      32,
		MaxRetries:     3,
		RetryBaseDelay: 500 * time.Millisecond,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be greater than 0, got %d", c.BatchSize)
	}
	if c.MaxRetries <= 0 {
		return ErrInvalidMaxAttempts
	}
	return nil
}

// Failure records a chunk that could not be embedded and why.
type Failure struct {
	Chunk *core.Chunk
	Err   error
}

// Result holds the outcome of embedding a set of chunks. Succeeded
// preserves the input order of the chunks that embedded successfully.
type Result struct {
	Succeeded []*core.EmbeddedChunk
	Failed    []Failure
}

// Batcher splits chunks into batches, embeds each batch with retry,
// and zips vectors back onto chunks by position.
type Batcher struct {
	embedder ai.Embedder
	config   Config
	pool     *ants.Pool
	logger   *slog.Logger
}

// NewBatcher creates a batcher over the given embedder. If pool is
// non-nil, batches are embedded concurrently through it; the pool
// capacity caps the number of in-flight embedding API calls.
func NewBatcher(embedder ai.Embedder, config Config, pool *ants.Pool, logger *slog.Logger) (*Batcher, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batcher config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batcher{
		embedder: embedder,
		config:   config,
		pool:     pool,
		logger:   logger.With("component", "batcher"),
	}, nil
}

// batchOutcome is the result of embedding one batch of chunks.
type batchOutcome struct {
	embedded []*core.EmbeddedChunk
	failed   []Failure
}

// EmbedChunks embeds all chunks, returning per-chunk outcomes. A batch
// that fails after all retries marks every chunk in that batch as
// failed; other batches are unaffected. The returned error is non-nil
// only when the context is cancelled before all batches complete.
func (b *Batcher) EmbedChunks(ctx context.Context, chunks []*core.Chunk) (*Result, error) {
	if len(chunks) == 0 {
		return &Result{}, nil
	}

	batches := partition(chunks, b.config.BatchSize)
	outcomes := make([]batchOutcome, len(batches))

	if b.pool != nil {
		var wg sync.WaitGroup
		for i, batch := range batches {
			i, batch := i, batch
			wg.Add(1)
			err := b.pool.Submit(func() {
				defer wg.Done()
				outcomes[i] = b.embedBatch(ctx, batch)
			})
			if err != nil {
				wg.Done()
				outcomes[i] = failAll(batch, fmt.Errorf("failed to submit batch to pool: %w", err))
			}
		}
		wg.Wait()
	} else {
		for i, batch := range batches {
			outcomes[i] = b.embedBatch(ctx, batch)
		}
	}

	result := &Result{}
	for _, outcome := range outcomes {
		result.Succeeded = append(result.Succeeded, outcome.embedded...)
		result.Failed = append(result.Failed, outcome.failed...)
	}

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}

// embedBatch embeds a single batch with retry and zips vectors onto
// chunks by position.
func (b *Batcher) embedBatch(ctx context.Context, batch []*core.Chunk) batchOutcome {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = b.embedder.EmbedTexts(ctx, texts)
		return err
	}, b.config.MaxRetries, b.config.RetryBaseDelay)

	if err != nil {
		b.logger.Debug("batch embedding failed",
			"batchSize", len(batch),
			"error", err)
		return failAll(batch, fmt.Errorf("failed to generate embeddings after %d attempts: %w", b.config.MaxRetries, err))
	}

	if len(embeddings) != len(batch) {
		err := fmt.Errorf("%w: expected %d, got %d", ErrCountMismatch, len(batch), len(embeddings))
		b.logger.Warn("embedding count mismatch", "expected", len(batch), "got", len(embeddings))
		return failAll(batch, err)
	}

	embedded := make([]*core.EmbeddedChunk, len(batch))
	for i, chunk := range batch {
		vector := NormalizeVector(embeddings[i])
		embedded[i] = &core.EmbeddedChunk{
			Chunk:     *chunk,
			Vector:    vector,
			VectorDim: len(vector),
		}
	}
	return batchOutcome{embedded: embedded}
}

// partition splits chunks into slices of at most size elements.
func partition(chunks []*core.Chunk, size int) [][]*core.Chunk {
	var batches [][]*core.Chunk
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[start:end])
	}
	return batches
}

func failAll(batch []*core.Chunk, err error) batchOutcome {
	failed := make([]Failure, len(batch))
	for i, chunk := range batch {
		failed[i] = Failure{Chunk: chunk, Err: err}
	}
	return batchOutcome{failed: failed}
}
