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

// Package pipeline orchestrates chunking, embedding, and index commits
// for batches of documents.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/chunker"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/embed"
	"github.com/poiesic/corpus/index"
	"github.com/poiesic/corpus/source"
	"github.com/poiesic/corpus/storage"
)

const defaultEmbedConcurrency = 4

// Pipeline orchestrates the ingestion of documents: chunking, batched
// embedding, and committing entries to the index. Documents are
// processed concurrently; failures in one document never affect
// another.
type Pipeline struct {
	repo    storage.EntryRepository
	chunker *chunker.Chunker
	batcher *embed.Batcher
	builder *index.Builder

	docPool   *ants.Pool
	embedPool *ants.Pool

	chunkerConfig *chunker.Config
	batcherConfig embed.Config
	docPoolSize   int
	embedPoolSize int

	partialPolicy   PartialPolicy
	skipUnchanged   bool
	storeRetries    int
	storeRetryDelay time.Duration

	progress *ProgressTracker
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithChunkerConfig sets the chunking configuration.
// Default is chunker.DefaultConfig().
func WithChunkerConfig(config *chunker.Config) Option {
	return func(p *Pipeline) error {
		p.chunkerConfig = config
		return nil
	}
}

// WithBatcherConfig sets the embedding batch and retry configuration.
// Default is embed.DefaultConfig().
func WithBatcherConfig(config embed.Config) Option {
	return func(p *Pipeline) error {
		p.batcherConfig = config
		return nil
	}
}

// WithMaxConcurrentDocuments sets how many documents may be processed
// at once. Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithMaxConcurrentDocuments(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		p.docPoolSize = n
		return nil
	}
}

// WithMaxConcurrentEmbedCalls caps the number of in-flight embedding
// API calls across all documents. Default is 4.
func WithMaxConcurrentEmbedCalls(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		p.embedPoolSize = n
		return nil
	}
}

// WithPartialPolicy sets the behavior for documents where some chunks
// fail to embed. Default is PartialCommit.
func WithPartialPolicy(policy PartialPolicy) Option {
	return func(p *Pipeline) error {
		if policy != PartialCommit && policy != PartialFail {
			return fmt.Errorf("invalid partial policy %d", int(policy))
		}
		p.partialPolicy = policy
		return nil
	}
}

// WithSkipUnchanged skips documents whose content digest matches the
// stored digest from a previous commit. Default is false: every
// document is re-chunked and re-embedded.
func WithSkipUnchanged(skip bool) Option {
	return func(p *Pipeline) error {
		p.skipUnchanged = skip
		return nil
	}
}

// WithStoreRetry sets retry behavior for index commits when the store
// reports a transient failure. Defaults are 3 attempts with a 500ms
// base delay.
func WithStoreRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts < 1 {
			return embed.ErrInvalidMaxAttempts
		}
		p.storeRetries = maxAttempts
		p.storeRetryDelay = baseDelay
		return nil
	}
}

// WithProgress sets a progress tracker updated once per document.
func WithProgress(tracker *ProgressTracker) Option {
	return func(p *Pipeline) error {
		p.progress = tracker
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(repo storage.EntryRepository, provider ai.Provider, opts ...Option) (*Pipeline, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	docPoolSize := runtime.NumCPU() / 2
	if docPoolSize < 1 {
		docPoolSize = 1
	}

	p := &Pipeline{
		repo:            repo,
		chunkerConfig:   chunker.DefaultConfig(),
		batcherConfig:   embed.DefaultConfig(),
		docPoolSize:     docPoolSize,
		embedPoolSize:   defaultEmbedConcurrency,
		partialPolicy:   PartialCommit,
		storeRetries:    3,
		storeRetryDelay: 500 * time.Millisecond,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "pipeline")

	// Create workers and stages after options are applied (so they get final config)
	docPool, err := ants.NewPool(p.docPoolSize)
	if err != nil {
		return nil, err
	}
	embedPool, err := ants.NewPool(p.embedPoolSize)
	if err != nil {
		docPool.Release()
		return nil, err
	}
	p.docPool = docPool
	p.embedPool = embedPool

	chk, err := chunker.New(p.chunkerConfig)
	if err != nil {
		p.Release()
		return nil, err
	}
	batcher, err := embed.NewBatcher(provider.Embedder(), p.batcherConfig, embedPool, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	builder, err := index.NewBuilder(repo, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}

	p.chunker = chk
	p.batcher = batcher
	p.builder = builder

	return p, nil
}

// DocumentReport describes the outcome of processing one document.
type DocumentReport struct {
	SourceID      string
	Status        Status
	ChunkCount    int
	EmbeddedCount int
	FailedChunks  int
	Upserted      int
	Pruned        int
	Err           error
}

// RunReport summarizes a pipeline run.
type RunReport struct {
	Documents []DocumentReport
	Committed int
	Partial   int
	Failed    int
	Skipped   int
	Elapsed   time.Duration
}

// Run drains the source and processes every document. Documents are
// handed to the worker pool as they are read; up to the configured
// document concurrency run at once. On cancellation no new documents
// are started, but documents already embedding finish their commits.
// Returns the report for all documents that were started, along with
// the context error if the run was cut short.
func (p *Pipeline) Run(ctx context.Context, src source.Source) (*RunReport, error) {
	if src == nil {
		return nil, ErrSourceRequired
	}

	start := time.Now()
	report := &RunReport{}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for {
		doc, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				break
			}
			wg.Wait()
			report.Elapsed = time.Since(start)
			return report, fmt.Errorf("failed to read source: %w", err)
		}

		wg.Add(1)
		submitErr := p.docPool.Submit(func() {
			defer wg.Done()
			docReport := p.IngestDocument(ctx, doc)

			mu.Lock()
			report.Documents = append(report.Documents, *docReport)
			mu.Unlock()

			if p.progress != nil {
				p.progress.Increment(1)
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			report.Documents = append(report.Documents, DocumentReport{
				SourceID: doc.SourceID,
				Status:   StatusFailed,
				Err:      fmt.Errorf("failed to submit document: %w", submitErr),
			})
			mu.Unlock()
		}
	}

	wg.Wait()
	report.Elapsed = time.Since(start)

	for _, docReport := range report.Documents {
		switch {
		case docReport.Status == StatusSkipped:
			report.Skipped++
		case docReport.Status == StatusFailed:
			report.Failed++
		case docReport.Status == StatusCommitted && docReport.FailedChunks > 0:
			report.Partial++
		case docReport.Status == StatusCommitted:
			report.Committed++
		}
	}

	p.logger.Info("pipeline run finished",
		"documents", len(report.Documents),
		"committed", report.Committed,
		"partial", report.Partial,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"elapsed", report.Elapsed)

	if ctx.Err() != nil {
		return report, ctx.Err()
	}
	return report, nil
}

// IngestDocument processes a single document through chunking,
// embedding, and commit. Errors are captured in the report rather than
// returned so one document cannot fail a batch.
func (p *Pipeline) IngestDocument(ctx context.Context, doc *core.Document) *DocumentReport {
	report := &DocumentReport{Status: StatusPending}
	if doc != nil {
		report.SourceID = doc.SourceID
	}

	if err := core.ValidateDocument(doc); err != nil {
		report.Status = StatusFailed
		report.Err = err
		return report
	}

	logger := p.logger.With("sourceID", doc.SourceID)
	digest := core.ContentDigest(doc.RawText)

	if p.skipUnchanged {
		unchanged, err := p.builder.Unchanged(ctx, doc.SourceID, digest)
		if err != nil {
			report.Status = StatusFailed
			report.Err = err
			return report
		}
		if unchanged {
			logger.Debug("skipping unchanged document")
			report.Status = StatusSkipped
			return report
		}
	}

	chunks, err := p.chunker.Chunk(doc)
	if err != nil {
		report.Status = StatusFailed
		report.Err = err
		return report
	}
	report.Status = StatusChunked
	report.ChunkCount = len(chunks)

	report.Status = StatusEmbedding
	result, err := p.batcher.EmbedChunks(ctx, chunks)
	if err != nil {
		report.Status = StatusFailed
		report.Err = err
		report.FailedChunks = len(result.Failed)
		return report
	}
	report.EmbeddedCount = len(result.Succeeded)
	report.FailedChunks = len(result.Failed)

	if len(result.Succeeded) == 0 {
		report.Status = StatusFailed
		report.Err = fmt.Errorf("%w: %v", ErrAllChunksFailed, firstFailure(result.Failed))
		return report
	}

	if len(result.Failed) > 0 {
		if p.partialPolicy == PartialFail {
			report.Status = StatusFailed
			report.Err = fmt.Errorf("%w: %d of %d chunks failed: %v",
				ErrPartialEmbedding, len(result.Failed), len(chunks), firstFailure(result.Failed))
			return report
		}
		logger.Warn("committing partially embedded document",
			"embedded", len(result.Succeeded),
			"failed", len(result.Failed))
		report.Status = StatusPartiallyEmbedded
	} else {
		report.Status = StatusEmbedded
	}

	entries := make([]*core.IndexEntry, len(result.Succeeded))
	for i, embedded := range result.Succeeded {
		entries[i] = &core.IndexEntry{
			ChunkID:       embedded.ChunkID,
			SourceID:      embedded.SourceID,
			Text:          embedded.Text,
			StartOffset:   embedded.StartOffset,
			EndOffset:     embedded.EndOffset,
			SequenceIndex: embedded.SequenceIndex,
			Vector:        embedded.Vector,
			Metadata:      doc.Metadata,
		}
	}

	// A partial commit must not record the content digest: the skipped
	// chunks would otherwise never be retried while the text stays the
	// same. An empty digest also clears any digest left by an earlier
	// complete ingest of this source.
	commitDigest := digest
	if report.FailedChunks > 0 {
		commitDigest = ""
	}

	// A document that reached the commit stage finishes its commit
	// even if the run is being cancelled.
	commitCtx := context.WithoutCancel(ctx)
	var commitResult *index.CommitResult
	err = embed.RetryWithBackoff(commitCtx, func() error {
		var commitErr error
		commitResult, commitErr = p.builder.Commit(commitCtx, doc.SourceID, commitDigest, entries)
		return commitErr
	}, p.storeRetries, p.storeRetryDelay)
	if err != nil {
		report.Status = StatusFailed
		report.Err = fmt.Errorf("failed to commit document: %w", err)
		return report
	}

	report.Status = StatusCommitted
	report.Upserted = commitResult.Upserted
	report.Pruned = commitResult.Pruned

	logger.Debug("document committed",
		"chunks", report.ChunkCount,
		"embedded", report.EmbeddedCount,
		"failedChunks", report.FailedChunks,
		"upserted", report.Upserted,
		"pruned", report.Pruned)

	return report
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.docPool != nil {
		p.docPool.Release()
	}
	if p.embedPool != nil {
		p.embedPool.Release()
	}
}

func firstFailure(failed []embed.Failure) error {
	if len(failed) == 0 {
		return nil
	}
	return failed[0].Err
}
