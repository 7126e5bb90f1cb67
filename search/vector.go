package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/poiesic/docsearch/core"
	"github.com/poiesic/docsearch/storage"
)

// VectorEngine runs cosine-similarity search over stored embeddings with a
// tiered strategy: a store-native similarity primitive when the repository
// supports one, then a bounded in-memory pass over recent rows, then a full
// scan. A tier's error falls through to the next tier silently; callers
// only ever see results or an empty slice.
type VectorEngine struct {
	documents storage.DocumentRepository
	chunks    storage.ChunkRepository
	native    storage.NativeVectorSearcher
	logger    *slog.Logger
}

// NewVectorEngine creates a vector search engine. The documents repository
// is probed for the optional native similarity capability.
func NewVectorEngine(documents storage.DocumentRepository, chunks storage.ChunkRepository, logger *slog.Logger) (*VectorEngine, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &VectorEngine{
		documents: documents,
		chunks:    chunks,
		logger:    logger.With("engine", "vector"),
	}
	if native, ok := documents.(storage.NativeVectorSearcher); ok {
		e.native = native
	}
	return e, nil
}

// Search returns up to opts.TopK results with similarity >= opts.MinSimilarity,
// most similar first. Chunk hits are preferred over document hits and
// deduplicated by owning document.
func (e *VectorEngine) Search(ctx context.Context, vector []float32, opts *SearchOptions) ([]*core.SearchResult, error) {
	o := opts.normalized()

	if len(vector) == 0 {
		return []*core.SearchResult{}, nil
	}

	docMatches, chunkMatches, ok := e.searchNative(ctx, vector, &o)
	if !ok {
		var err error
		docMatches, chunkMatches, err = e.searchRecent(ctx, vector, &o)
		if err != nil {
			e.logger.Warn("bounded in-memory search failed, falling back to full scan", "err", err)
			docMatches, chunkMatches, err = e.searchFull(ctx, vector, &o)
			if err != nil {
				return nil, err
			}
		}
	}

	return e.merge(ctx, docMatches, chunkMatches, o.TopK)
}

// searchNative is the first tier. ok is false when the store has no native
// primitive, the dimension is off the whitelist, or the store errors.
func (e *VectorEngine) searchNative(ctx context.Context, vector []float32, o *SearchOptions) (docs, chunks []core.SimilarityMatch, ok bool) {
	if e.native == nil {
		return nil, nil, false
	}

	dim, err := core.ParseDim(len(vector))
	if err != nil {
		e.logger.Debug("native search skipped", "err", err)
		return nil, nil, false
	}

	limit := o.TopK * DefaultFusionOversample
	docs, err = e.native.FindSimilarDocuments(ctx, vector, dim, o.Owner, o.MinSimilarity, limit)
	if err != nil {
		e.logger.Debug("native document search failed, falling back", "err", err)
		return nil, nil, false
	}
	chunks, err = e.native.FindSimilarChunks(ctx, vector, dim, o.Owner, o.MinSimilarity, limit)
	if err != nil {
		e.logger.Debug("native chunk search failed, falling back", "err", err)
		return nil, nil, false
	}
	return docs, chunks, true
}

// searchRecent is the second tier: cosine similarity over a capped set of
// recently updated rows, bounding memory and CPU at the cost of recall.
func (e *VectorEngine) searchRecent(ctx context.Context, vector []float32, o *SearchOptions) (docs, chunks []core.SimilarityMatch, err error) {
	limit := o.TopK * 10
	if limit < 100 {
		limit = 100
	}

	candidates, err := e.documents.GetRecentDocuments(ctx, o.Owner, limit)
	if err != nil {
		return nil, nil, err
	}
	return e.score(ctx, vector, candidates, o)
}

// searchFull is the last tier: every visible document and its chunks.
func (e *VectorEngine) searchFull(ctx context.Context, vector []float32, o *SearchOptions) (docs, chunks []core.SimilarityMatch, err error) {
	var candidates []*core.Document
	err = e.documents.ScanDocuments(ctx, func(doc *core.Document) error {
		if o.Owner != "" && doc.Owner != o.Owner {
			return nil
		}
		candidates = append(candidates, doc)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return e.score(ctx, vector, candidates, o)
}

// score computes similarities for the candidate documents and their chunks.
func (e *VectorEngine) score(ctx context.Context, vector []float32, candidates []*core.Document, o *SearchOptions) (docs, chunks []core.SimilarityMatch, err error) {
	for _, doc := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		if doc.HasEmbedding() && len(doc.Vector) == len(vector) {
			if sim := core.Cosine(vector, doc.Vector); sim >= o.MinSimilarity {
				docs = append(docs, core.SimilarityMatch{DocumentId: doc.Id, Score: sim})
			}
		}

		docChunks, err := e.chunks.GetChunksByDocument(ctx, doc.Id)
		if err != nil {
			return nil, nil, err
		}
		for _, chunk := range docChunks {
			if !chunk.HasEmbedding() || len(chunk.Vector) != len(vector) {
				continue
			}
			if sim := core.Cosine(vector, chunk.Vector); sim >= o.MinSimilarity {
				chunks = append(chunks, core.SimilarityMatch{DocumentId: doc.Id, ChunkId: chunk.Id, Score: sim})
			}
		}
	}

	sortMatches(docs)
	sortMatches(chunks)
	return docs, chunks, nil
}

// merge combines the two granularities: chunk hits are more specific and
// win their document's slot; document hits fill the remaining slots.
func (e *VectorEngine) merge(ctx context.Context, docMatches, chunkMatches []core.SimilarityMatch, topK int) ([]*core.SearchResult, error) {
	type slot struct {
		match core.SimilarityMatch
		chunk bool
	}

	taken := make(map[core.ID]struct{}, topK)
	slots := make([]slot, 0, topK)
	for _, match := range chunkMatches {
		if len(slots) >= topK {
			break
		}
		if _, ok := taken[match.DocumentId]; ok {
			continue
		}
		taken[match.DocumentId] = struct{}{}
		slots = append(slots, slot{match: match, chunk: true})
	}
	for _, match := range docMatches {
		if len(slots) >= topK {
			break
		}
		if _, ok := taken[match.DocumentId]; ok {
			continue
		}
		taken[match.DocumentId] = struct{}{}
		slots = append(slots, slot{match: match})
	}

	if len(slots) == 0 {
		return []*core.SearchResult{}, nil
	}

	ids := make([]core.ID, len(slots))
	for i, s := range slots {
		ids[i] = s.match.DocumentId
	}
	docs, err := e.documents.GetDocuments(ctx, ids...)
	if err != nil {
		return nil, err
	}
	byID := make(map[core.ID]*core.Document, len(docs))
	for _, doc := range docs {
		byID[doc.Id] = doc
	}

	results := make([]*core.SearchResult, 0, len(slots))
	for _, s := range slots {
		doc, ok := byID[s.match.DocumentId]
		if !ok {
			continue
		}
		result := &core.SearchResult{Document: doc, Score: s.match.Score}
		if s.chunk {
			result.Chunk, err = e.findChunk(ctx, s.match)
			if err != nil {
				return nil, err
			}
		}
		results = append(results, result)
	}

	// Chunk specificity decides merge order; similarity decides final rank.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.Id < results[j].Document.Id
	})
	return results, nil
}

func (e *VectorEngine) findChunk(ctx context.Context, match core.SimilarityMatch) (*core.DocumentChunk, error) {
	chunks, err := e.chunks.GetChunksByDocument(ctx, match.DocumentId)
	if err != nil {
		return nil, err
	}
	for _, chunk := range chunks {
		if chunk.Id == match.ChunkId {
			return chunk, nil
		}
	}
	return nil, nil
}

// sortMatches orders by score descending, document id then chunk id ascending.
func sortMatches(matches []core.SimilarityMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].DocumentId != matches[j].DocumentId {
			return matches[i].DocumentId < matches[j].DocumentId
		}
		return matches[i].ChunkId < matches[j].ChunkId
	})
}
