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
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/docsearch"
	"github.com/poiesic/docsearch/ai"
	"github.com/poiesic/docsearch/ai/openai"
	"github.com/poiesic/docsearch/pipeline"
	"github.com/poiesic/docsearch/reembed"
	"github.com/poiesic/docsearch/search"
	"github.com/poiesic/docsearch/storage/badger"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "docsearch",
		Usage: "Hybrid semantic and lexical document search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Add documents to the database for embedding",
				ArgsUsage: "FILE [FILE...]",
				Action:    ingestCommand,
				Flags: append(dbFlags(),
					&cli.StringFlag{
						Name:  "category",
						Usage: "Category assigned to the ingested documents",
					},
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Owner scope of the ingested documents",
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Search documents with hybrid retrieval",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: append(append(dbFlags(), embeddingFlags()...),
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Restrict results to documents of this owner",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Maximum number of results",
						Value: search.DefaultTopK,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Minimum cosine similarity for vector matches",
						Value: search.DefaultMinSimilarity,
					},
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "Fusion strategy (rrf, weighted)",
						Value: "rrf",
					},
					&cli.Float64Flag{
						Name:  "vector-weight",
						Usage: "Vector list weight for the weighted strategy",
						Value: 0.5,
					},
					&cli.Float64Flag{
						Name:  "text-weight",
						Usage: "Lexical list weight for the weighted strategy",
						Value: 0.5,
					},
				),
			},
			{
				Name:   "run",
				Usage:  "Run the embedding pipeline until interrupted",
				Action: runCommand,
				Flags: append(append(dbFlags(), embeddingFlags()...),
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Delay between processing cycles",
						Value: 30 * time.Second,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to process in each cycle",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "chunk-batch-size",
						Usage: "Number of chunks to process in each cycle",
						Value: 50,
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Number of concurrent chunk embedding workers",
						Value: 1,
					},
					&cli.BoolFlag{
						Name:  "no-retry-queue",
						Usage: "Disable the failed-document retry queue",
					},
				),
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all documents and chunks with new embeddings",
				Action: reembedCommand,
				Flags: append(append(dbFlags(), embeddingFlags()...),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of items to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N items",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func dbFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
	}
}

func embeddingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.IntFlag{
			Name:  "embedding-dim",
			Usage: "Embedding dimension (768 or 1536)",
			Value: 768,
		},
	}
}

func aiConfigFromFlags(c *cli.Context) (*ai.Config, error) {
	config := ai.NewConfig(
		ai.WithHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model"), c.Int("embedding-dim")),
	)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return config, nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file is required")
	}

	db, err := docsearch.NewDatabase(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	for _, path := range c.Args().Slice() {
		contents, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		doc, err := db.AddDocument(ctx, filepath.Base(path), c.String("category"), c.String("owner"), string(contents))
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", path, err)
		}
		fmt.Printf("added %s (%d)\n", doc.Name, doc.Id)
	}

	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("a query is required")
	}
	query := strings.Join(c.Args().Slice(), " ")

	var strategy search.FusionStrategy
	switch c.String("strategy") {
	case "rrf":
		strategy = search.StrategyRRF
	case "weighted":
		strategy = search.StrategyWeighted
	default:
		return fmt.Errorf("invalid strategy %q: must be rrf or weighted", c.String("strategy"))
	}

	aiConfig, err := aiConfigFromFlags(c)
	if err != nil {
		return err
	}

	db, err := docsearch.NewDatabase(c.String("db"), docsearch.WithAIConfig(aiConfig))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	opts := &search.SearchOptions{
		TopK:          c.Int("top-k"),
		MinSimilarity: float32(c.Float64("min-similarity")),
		Owner:         c.String("owner"),
		Strategy:      strategy,
		VectorWeight:  float32(c.Float64("vector-weight")),
		TextWeight:    float32(c.Float64("text-weight")),
	}

	results, err := searcher.Search(context.Background(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Printf("Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Printf("%d: %s (%d)[%0.3f]\n", i+1, hit.Document.Name, hit.Document.Id, hit.Score)
		if hit.Chunk != nil {
			fmt.Printf("   chunk %d: %s\n", hit.Chunk.ChunkIndex, snippet(hit.Chunk.Contents))
		}
	}

	return nil
}

func runCommand(c *cli.Context) error {
	aiConfig, err := aiConfigFromFlags(c)
	if err != nil {
		return err
	}

	db, err := docsearch.NewDatabase(c.String("db"), docsearch.WithAIConfig(aiConfig))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	config := pipeline.NewConfig(
		pipeline.WithProcessingInterval(c.Duration("interval")),
		pipeline.WithBatchSizes(c.Int("batch-size"), c.Int("chunk-batch-size"), c.Int("batch-size")),
		pipeline.WithPoolSize(c.Int("pool-size")),
		pipeline.WithRetryQueue(!c.Bool("no-retry-queue")),
	)

	p, err := db.NewPipeline(pipeline.WithConfig(config))
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer p.Release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("pipeline running", "db", c.String("db"), "interval", c.Duration("interval"))
	return p.Run(ctx)
}

func reembedCommand(c *cli.Context) error {
	ctx := context.Background()

	aiConfig, err := aiConfigFromFlags(c)
	if err != nil {
		return err
	}

	// Open database
	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	documents, err := badger.NewDocumentRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create document repository: %w", err)
	}
	defer documents.Close()

	chunks, err := badger.NewChunkRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create chunk repository: %w", err)
	}
	defer chunks.Close()

	// Create embedder
	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	// Create reembedding config
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	// Validate config
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	reembedder := reembed.NewReembedder(documents, chunks, embedder, reembedConfig, os.Stderr)

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := reembedder.Run(ctx); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}

	return nil
}

func snippet(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > 120 {
		return text[:120] + "..."
	}
	return text
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
