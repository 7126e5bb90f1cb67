package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docsearch/ai"
	"github.com/poiesic/docsearch/core"
	"github.com/poiesic/docsearch/storage"
)

// chunkPriorityOversample is how many candidate chunks are fetched per
// batch slot. Priority ordering happens after the fetch, so fetching only
// batchSize chunks would let the store's key order decide the batch before
// Processing documents get their turn.
const chunkPriorityOversample = 4

// chunkProcessor embeds chunks left behind by the document stage and flips
// documents to Completed when their last chunk is embedded.
type chunkProcessor struct {
	documents storage.DocumentRepository
	chunks    storage.ChunkRepository
	embedder  ai.Embedder
	dim       core.EmbeddingDim
	pool      *ants.Pool
	logger    *slog.Logger
}

// newChunkProcessor creates a new chunk stage processor.
// The pool bounds concurrent embedding calls; it is owned by the pipeline.
func newChunkProcessor(
	documents storage.DocumentRepository,
	chunks storage.ChunkRepository,
	embedder ai.Embedder,
	dim core.EmbeddingDim,
	pool *ants.Pool,
	logger *slog.Logger,
) (*chunkProcessor, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrAIProviderRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &chunkProcessor{
		documents: documents,
		chunks:    chunks,
		embedder:  embedder,
		dim:       dim,
		pool:      pool,
		logger:    logger.With("stage", "chunks"),
	}, nil
}

// process embeds up to batchSize unembedded chunks. Individual embedding
// failures are counted and retried next cycle; a failure to persist the
// successful embeddings is escalated as ErrChunkPersistFailed.
func (cp *chunkProcessor) process(ctx context.Context, batchSize int) error {
	pending, err := cp.chunks.GetUnembedded(ctx, batchSize*chunkPriorityOversample)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	owners, err := cp.ownerDocuments(ctx, pending)
	if err != nil {
		return err
	}

	// Chunks of Processing documents come first so nearly-finished documents
	// complete quickly; within a group, (document id, chunk index) keeps the
	// batch deterministic.
	sort.SliceStable(pending, func(i, j int) bool {
		pi := cp.isProcessing(owners, pending[i].DocumentId)
		pj := cp.isProcessing(owners, pending[j].DocumentId)
		if pi != pj {
			return pi
		}
		if pending[i].DocumentId != pending[j].DocumentId {
			return pending[i].DocumentId < pending[j].DocumentId
		}
		return pending[i].ChunkIndex < pending[j].ChunkIndex
	})
	if len(pending) > batchSize {
		pending = pending[:batchSize]
	}

	cp.logger.Info("embedding pending chunks", "chunks", len(pending))

	// Each task writes only its own slot, so no locking is needed.
	vectors := make([][]float32, len(pending))
	var wg sync.WaitGroup
	for i := range pending {
		if err := ctx.Err(); err != nil {
			break
		}

		i := i
		wg.Add(1)
		submitErr := cp.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			vector, err := cp.embedder.EmbedText(ctx, pending[i].Contents)
			if err != nil {
				cp.logger.Warn("chunk embedding failed",
					"document", pending[i].DocumentId, "chunk", pending[i].ChunkIndex, "err", err)
				return
			}
			if err := core.ValidateVector(vector, cp.dim); err != nil {
				cp.logger.Warn("chunk embedding rejected",
					"document", pending[i].DocumentId, "chunk", pending[i].ChunkIndex, "err", err)
				return
			}
			vectors[i] = vector
		})
		if submitErr != nil {
			wg.Done()
			cp.logger.Warn("pool submission failed", "err", submitErr)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	embedded := make([]*core.DocumentChunk, 0, len(pending))
	for i, chunk := range pending {
		if vectors[i] == nil {
			continue
		}
		chunk.Vector = vectors[i]
		chunk.Dim = cp.dim
		embedded = append(embedded, chunk)
	}
	if len(embedded) == 0 {
		return nil
	}

	// Single batch write. Its failure silently loses computed embeddings,
	// which is the one cycle-fatal error class.
	if _, err := cp.chunks.UpdateChunks(ctx, embedded...); err != nil {
		cp.logger.Error("CRITICAL: chunk embedding persistence failed",
			"chunks", len(embedded), "err", err)
		return fmt.Errorf("%w: %w", ErrChunkPersistFailed, err)
	}

	return cp.flipCompleted(ctx, owners, embedded)
}

// ownerDocuments fetches the distinct owning documents of the batch.
func (cp *chunkProcessor) ownerDocuments(ctx context.Context, pending []*core.DocumentChunk) (map[core.ID]*core.Document, error) {
	seen := make(map[core.ID]struct{}, len(pending))
	ids := make([]core.ID, 0, len(pending))
	for _, chunk := range pending {
		if _, ok := seen[chunk.DocumentId]; ok {
			continue
		}
		seen[chunk.DocumentId] = struct{}{}
		ids = append(ids, chunk.DocumentId)
	}

	docs, err := cp.documents.GetDocuments(ctx, ids...)
	if err != nil {
		return nil, err
	}

	owners := make(map[core.ID]*core.Document, len(docs))
	for _, doc := range docs {
		owners[doc.Id] = doc
	}
	return owners, nil
}

func (cp *chunkProcessor) isProcessing(owners map[core.ID]*core.Document, id core.ID) bool {
	doc, ok := owners[id]
	return ok && doc.ChunkStatus == core.ChunkStatusProcessing
}

// flipCompleted re-derives completion for every document touched by the
// batch, counting against the store rather than trusting in-memory state,
// and batches the resulting status updates into one write.
func (cp *chunkProcessor) flipCompleted(ctx context.Context, owners map[core.ID]*core.Document, embedded []*core.DocumentChunk) error {
	touched := make(map[core.ID]struct{}, len(embedded))
	for _, chunk := range embedded {
		touched[chunk.DocumentId] = struct{}{}
	}

	ordered := make([]core.ID, 0, len(touched))
	for id := range touched {
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	var flips []*core.Document
	for _, id := range ordered {
		doc, ok := owners[id]
		if !ok || doc.ChunkStatus != core.ChunkStatusProcessing {
			continue
		}

		total, done, err := cp.chunks.CountByDocument(ctx, id)
		if err != nil {
			cp.logger.Warn("completion check failed", "document", id, "err", err)
			continue
		}
		if total > 0 && total == done {
			doc.ChunkStatus = core.ChunkStatusCompleted
			flips = append(flips, doc)
		}
	}

	if len(flips) == 0 {
		return nil
	}
	if _, err := cp.documents.UpdateDocuments(ctx, flips...); err != nil {
		return fmt.Errorf("updating completed documents: %w", err)
	}

	cp.logger.Info("documents completed", "documents", len(flips))
	return nil
}
