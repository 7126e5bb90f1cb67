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


package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/docsearch/ai"
	"github.com/poiesic/docsearch/core"
	"github.com/poiesic/docsearch/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of items to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of items)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder orchestrates reembedding every document and chunk in a database,
// typically after switching embedding models. Documents are processed before
// chunks so that a whole-document embedding of the new dimension is never
// mixed with stale chunk embeddings for longer than necessary.
type Reembedder struct {
	documents storage.DocumentRepository
	chunks    storage.ChunkRepository
	embedder  ai.Embedder
	config    *Config
	progress  io.Writer

	docProcessor   *DocumentBatchProcessor
	chunkProcessor *ChunkBatchProcessor
	docIterator    *DocumentIterator
	chunkIterator  *ChunkIterator
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(documents storage.DocumentRepository, chunks storage.ChunkRepository, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}

	return &Reembedder{
		documents:      documents,
		chunks:         chunks,
		embedder:       embedder,
		config:         config,
		progress:       progress,
		docProcessor:   NewDocumentBatchProcessor(documents, embedder, config.MaxRetries, config.RetryDelay),
		chunkProcessor: NewChunkBatchProcessor(chunks, embedder, config.MaxRetries, config.RetryDelay),
		docIterator:    NewDocumentIterator(documents, config.BatchSize),
		chunkIterator:  NewChunkIterator(documents, chunks, config.BatchSize),
	}
}

// Run executes the reembedding operation.
// All documents and chunks in the database are reembedded with the configured
// embedder. Progress is reported to the configured writer.
func (r *Reembedder) Run(ctx context.Context) error {
	totalDocs, totalChunks, err := r.count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count items: %w", err)
	}

	total := totalDocs + totalChunks
	if total == 0 {
		fmt.Fprintf(r.progress, "No documents found in database (0 items)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d documents and %d chunks (batch size: %d)\n",
		totalDocs, totalChunks, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0

	err = r.docIterator.ForEach(ctx, func(docs []*core.Document) error {
		if err := r.docProcessor.Process(ctx, docs); err != nil {
			return fmt.Errorf("failed to process document batch: %w", err)
		}
		processed += len(docs)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return err
	}

	err = r.chunkIterator.ForEach(ctx, func(chunks []*core.DocumentChunk) error {
		if err := r.chunkProcessor.Process(ctx, chunks); err != nil {
			return fmt.Errorf("failed to process chunk batch: %w", err)
		}
		processed += len(chunks)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d items in %v (%.1f items/sec)\n",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())

	return nil
}

// count returns the number of documents and chunks to process.
func (r *Reembedder) count(ctx context.Context) (docs, chunks int, err error) {
	err = r.documents.ScanDocuments(ctx, func(doc *core.Document) error {
		docs++
		total, _, err := r.chunks.CountByDocument(ctx, doc.Id)
		if err != nil {
			return err
		}
		chunks += total
		return nil
	})
	return docs, chunks, err
}
