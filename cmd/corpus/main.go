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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/corpus"
	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/chunker"
	"github.com/poiesic/corpus/embed"
	"github.com/poiesic/corpus/pipeline"
	"github.com/poiesic/corpus/search"
	"github.com/poiesic/corpus/source"
)

func main() {
	app := &cli.App{
		Name:   "corpus",
		Usage:  "Chunk, embed, and index documents for semantic retrieval",
		Before: setupLogger,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Ingest documents from a JSON file into the index",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Path to JSON file with documents to ingest",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Maximum bytes per chunk",
						Value: 1000,
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "Bytes of overlap between consecutive chunks",
						Value: 100,
					},
					&cli.StringFlag{
						Name:  "boundary",
						Usage: "Chunk boundary policy (char, sentence, paragraph)",
						Value: "sentence",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks per embedding API call",
						Value: 32,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for transient failures",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of documents processed concurrently",
						Value: 4,
					},
					&cli.IntFlag{
						Name:  "embed-concurrency",
						Usage: "Maximum in-flight embedding API calls",
						Value: 4,
					},
					&cli.StringFlag{
						Name:  "partial-policy",
						Usage: "Behavior for partially embedded documents (commit-partial, fail-document)",
						Value: "commit-partial",
					},
					&cli.BoolFlag{
						Name:  "skip-unchanged",
						Usage: "Skip documents whose content has not changed since the last run",
					},
				},
			},
			{
				Name:   "search",
				Usage:  "Search the index for chunks similar to a query",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Query text",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Maximum number of results",
						Value: 5,
					},
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Minimum similarity score for results",
						Value: 0.0,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func ingestCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	boundary, err := chunker.ParseBoundaryPolicy(c.String("boundary"))
	if err != nil {
		return err
	}
	partialPolicy, err := pipeline.ParsePartialPolicy(c.String("partial-policy"))
	if err != nil {
		return err
	}

	src, err := source.NewJSONFileSource(c.String("input"), nil)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer src.Close()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	tracker := pipeline.NewProgressTracker(os.Stderr, src.Len(), 1)

	p, err := db.NewPipeline(
		pipeline.WithChunkerConfig(&chunker.Config{
			MaxChunkBytes: c.Int("chunk-size"),
			OverlapBytes:  c.Int("chunk-overlap"),
			Boundary:      boundary,
		}),
		pipeline.WithBatcherConfig(embed.Config{
			BatchSize:      c.Int("batch-size"),
			MaxRetries:     c.Int("max-retries"),
			RetryBaseDelay: c.Duration("retry-delay"),
		}),
		pipeline.WithMaxConcurrentDocuments(c.Int("workers")),
		pipeline.WithMaxConcurrentEmbedCalls(c.Int("embed-concurrency")),
		pipeline.WithPartialPolicy(partialPolicy),
		pipeline.WithSkipUnchanged(c.Bool("skip-unchanged")),
		pipeline.WithProgress(tracker),
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer p.Release()

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Input: %s (%d documents)\n", c.String("input"), src.Len())
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	tracker.Start()
	report, runErr := p.Run(ctx, src)
	tracker.Finish()

	fmt.Fprintf(os.Stderr, "Committed: %d  Partial: %d  Failed: %d  Skipped: %d  Elapsed: %s\n",
		report.Committed, report.Partial, report.Failed, report.Skipped, report.Elapsed.Round(time.Millisecond))

	for _, doc := range report.Documents {
		if doc.Err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %s (%v)\n", doc.SourceID, doc.Status, doc.Err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("ingestion interrupted: %w", runErr)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d documents failed", report.Failed)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher(
		search.WithMinScore(float32(c.Float64("min-score"))),
	)
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	results, err := searcher.FindSimilar(ctx, c.String("query"), c.Int("top-k"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Printf("Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Printf("%d: [%0.3f] %s (%s @ %d-%d)\n",
			i, hit.Score, hit.Entry.Text, hit.Entry.SourceID,
			hit.Entry.StartOffset, hit.Entry.EndOffset)
	}
	return nil
}

func openDatabase(c *cli.Context) (*corpus.Database, error) {
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	db, err := corpus.NewDatabase(c.String("db"), corpus.WithAIConfig(aiConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
