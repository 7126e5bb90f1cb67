package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docsearch/ai"
	"github.com/poiesic/docsearch/core"
	"github.com/poiesic/docsearch/storage"
)

// documentProcessor drives pending documents through embedding and chunking.
type documentProcessor struct {
	documents storage.DocumentRepository
	chunks    storage.ChunkRepository
	embedder  ai.Embedder
	chunker   ai.Chunker
	dim       core.EmbeddingDim
	logger    *slog.Logger
}

// newDocumentProcessor creates a new document stage processor.
func newDocumentProcessor(
	documents storage.DocumentRepository,
	chunks storage.ChunkRepository,
	embedder ai.Embedder,
	chunker ai.Chunker,
	dim core.EmbeddingDim,
	logger *slog.Logger,
) (*documentProcessor, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil || chunker == nil {
		return nil, ErrAIProviderRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &documentProcessor{
		documents: documents,
		chunks:    chunks,
		embedder:  embedder,
		chunker:   chunker,
		dim:       dim,
		logger:    logger.With("stage", "documents"),
	}, nil
}

// process handles up to batchSize pending documents. Per-document failures
// are logged and counted but never propagated; only retrieval of the batch
// itself can fail.
func (dp *documentProcessor) process(ctx context.Context, batchSize int) error {
	docs, err := dp.documents.GetPendingEmbedding(ctx, batchSize)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	dp.logger.Info("processing pending documents", "documents", len(docs))

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := dp.processDocument(ctx, doc); err != nil {
			if errors.Is(err, ErrChunkPersistFailed) {
				// Losing already-computed embeddings is never swallowed.
				return err
			}
			if isValidationError(err) {
				// Bad embedding dimension or malformed chunk: reset so a
				// later cycle retries from a clean slate.
				dp.logger.Warn("validation failure, resetting document", "document", doc.Id, "err", err)
				doc.ChunkStatus = core.ChunkStatusPending
				if _, uerr := dp.documents.UpdateDocuments(ctx, doc); uerr != nil {
					dp.logger.Error("failed to reset document", "document", doc.Id, "err", uerr)
				}
				continue
			}
			dp.logger.Warn("document processing failed, will retry next cycle", "document", doc.Id, "err", err)
		}
	}

	return nil
}

// processDocument embeds and chunks a single document.
func (dp *documentProcessor) processDocument(ctx context.Context, doc *core.Document) error {
	// Processing documents with persisted chunks are finished by the chunk
	// stage; only chunkless ones are stuck and reprocessed here.
	total, _, err := dp.chunks.CountByDocument(ctx, doc.Id)
	if err != nil {
		return err
	}
	if doc.ChunkStatus == core.ChunkStatusProcessing && total > 0 {
		return nil
	}

	if !doc.HasEmbedding() {
		vector, err := dp.embedder.EmbedText(ctx, doc.Contents)
		if err != nil {
			return fmt.Errorf("document embedding: %w", err)
		}
		if err := core.ValidateVector(vector, dp.dim); err != nil {
			return err
		}
		doc.Vector = vector
		doc.Dim = dp.dim
	}

	pieces, err := dp.chunker.Split(ctx, doc.Contents)
	if err != nil {
		return fmt.Errorf("chunking: %w", err)
	}

	if len(pieces) == 0 {
		doc.ChunkStatus = core.ChunkStatusNotRequired
		_, err := dp.documents.UpdateDocuments(ctx, doc)
		return err
	}

	doc.ChunkStatus = core.ChunkStatusProcessing
	if _, err := dp.documents.UpdateDocuments(ctx, doc); err != nil {
		return err
	}

	now := time.Now().UTC()
	chunks := make([]*core.DocumentChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &core.DocumentChunk{
			DocumentId:  doc.Id,
			ChunkIndex:  i,
			Contents:    piece.Contents,
			StartOffset: piece.Start,
			EndOffset:   piece.End,
			InsertedAt:  now,
		}
	}

	added, err := dp.chunks.AddChunks(ctx, chunks...)
	if err != nil {
		return fmt.Errorf("persisting chunks: %w", err)
	}

	// Embed each chunk individually; a failed chunk is left unembedded for
	// the chunk stage to pick up rather than aborting the document.
	allEmbedded := true
	embedded := make([]*core.DocumentChunk, 0, len(added))
	for _, chunk := range added {
		if err := ctx.Err(); err != nil {
			return err
		}

		vector, err := dp.embedder.EmbedText(ctx, chunk.Contents)
		if err != nil {
			dp.logger.Warn("chunk embedding failed", "document", doc.Id, "chunk", chunk.ChunkIndex, "err", err)
			allEmbedded = false
			continue
		}
		if err := core.ValidateVector(vector, dp.dim); err != nil {
			return err
		}
		chunk.Vector = vector
		chunk.Dim = dp.dim
		embedded = append(embedded, chunk)
	}

	if len(embedded) > 0 {
		if _, err := dp.chunks.UpdateChunks(ctx, embedded...); err != nil {
			return fmt.Errorf("%w: %w", ErrChunkPersistFailed, err)
		}
	}

	if allEmbedded {
		doc.ChunkStatus = core.ChunkStatusCompleted
		if _, err := dp.documents.UpdateDocuments(ctx, doc); err != nil {
			return err
		}
	}

	return nil
}

// isValidationError reports whether err is an embedding-dimension or chunk
// validation failure rather than a transient collaborator failure.
func isValidationError(err error) bool {
	return errors.Is(err, core.ErrUnsupportedDimension) ||
		errors.Is(err, core.ErrDimensionMismatch) ||
		errors.Is(err, core.ErrInvalidChunk)
}
