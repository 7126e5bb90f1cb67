package search

import (
	"context"
	"log/slog"

	"github.com/poiesic/docsearch/ai"
	"github.com/poiesic/docsearch/core"
	"github.com/poiesic/docsearch/storage"
)

// QueryRewriter optionally expands or reformulates a query before search.
// Rewrite failures are ignored; the original query is used.
type QueryRewriter interface {
	Rewrite(ctx context.Context, query string) (string, error)
}

// Searcher provides hybrid vector and lexical retrieval with rank fusion.
type Searcher struct {
	documents storage.DocumentRepository
	chunks    storage.ChunkRepository
	embedder  ai.Embedder
	vector    *VectorEngine
	lexical   *LexicalEngine
	cache     *semanticCache
	rewriter  QueryRewriter
	logger    *slog.Logger

	cacheSize          int
	cacheMinSimilarity float32
	cacheEnabled       bool
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithSemanticCache configures the semantic result cache. Size <= 0 keeps
// the default capacity; minSimilarity <= 0 keeps the default threshold.
func WithSemanticCache(size int, minSimilarity float32) Option {
	return func(s *Searcher) error {
		s.cacheEnabled = true
		s.cacheSize = size
		s.cacheMinSimilarity = minSimilarity
		return nil
	}
}

// WithoutSemanticCache disables the semantic result cache.
func WithoutSemanticCache() Option {
	return func(s *Searcher) error {
		s.cacheEnabled = false
		return nil
	}
}

// WithQueryRewriter installs an optional query rewriting hook.
func WithQueryRewriter(rewriter QueryRewriter) Option {
	return func(s *Searcher) error {
		s.rewriter = rewriter
		return nil
	}
}

// NewSearcher creates a new hybrid searcher.
func NewSearcher(
	documents storage.DocumentRepository,
	chunks storage.ChunkRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Searcher, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		documents:    documents,
		chunks:       chunks,
		embedder:     provider.Embedder(),
		logger:       slog.Default(),
		cacheEnabled: true,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	vector, err := NewVectorEngine(documents, chunks, s.logger)
	if err != nil {
		return nil, err
	}
	lexical, err := NewLexicalEngine(documents, s.logger)
	if err != nil {
		return nil, err
	}
	s.vector = vector
	s.lexical = lexical

	if s.cacheEnabled {
		cache, err := newSemanticCache(s.cacheSize, s.cacheMinSimilarity)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}

	return s, nil
}

// Search runs a hybrid search for the query.
// Returns up to opts.TopK results, ranked by fused relevance score. A query
// that matches nothing yields an empty slice, not an error.
func (s *Searcher) Search(ctx context.Context, query string, opts *SearchOptions) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, query, opts, nil)
}

// SearchWithMonitor is Search with per-stage observation hooks.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, opts *SearchOptions, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	o := opts.normalized()
	monitor.Start(query)

	// 1. Embed the query. An embedder outage degrades to lexical-only
	// search rather than failing the call.
	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed, lexical-only search", "err", err)
		monitor.LexicalOnlyFallback(err)
		results, lerr := s.lexical.Search(ctx, query, &o)
		if lerr != nil {
			return nil, lerr
		}
		monitor.AfterLexicalSearch(results)
		monitor.Finish(results)
		return results, nil
	}
	monitor.AfterQueryEmbedding(vector)

	// 2. Near-duplicate query? Serve the cached result set.
	if s.cache != nil {
		if cached := s.cache.probe(vector); cached != nil {
			s.logger.Debug("semantic cache hit", "query", query)
			monitor.CacheHit(cached)
			monitor.Finish(cached)
			return cached, nil
		}
	}

	// 3. Optional query rewriting; the rewritten text is re-embedded.
	if s.rewriter != nil {
		rewritten, err := s.rewriter.Rewrite(ctx, query)
		if err != nil {
			s.logger.Warn("query rewrite failed, using original query", "err", err)
		} else if rewritten != "" && rewritten != query {
			if v, err := s.embedder.EmbedText(ctx, rewritten); err == nil {
				query = rewritten
				vector = v
			}
		}
	}

	// 4. Both engines; neither depends on the other's outcome.
	vectorResults, err := s.vector.Search(ctx, vector, &o)
	if err != nil {
		s.logger.Error("vector search failed", "err", err)
		vectorResults = []*core.SearchResult{}
	}
	monitor.AfterVectorSearch(vectorResults)

	lexicalResults, err := s.lexical.Search(ctx, query, &o)
	if err != nil {
		s.logger.Error("lexical search failed", "err", err)
		lexicalResults = []*core.SearchResult{}
	}
	monitor.AfterLexicalSearch(lexicalResults)

	// 5. Fuse.
	var results []*core.SearchResult
	switch o.Strategy {
	case StrategyWeighted:
		results = WeightedFusion(vectorResults, lexicalResults, o.VectorWeight, o.TextWeight, o.TopK)
	default:
		results = RRFFusion(vectorResults, lexicalResults, DefaultRRFK, o.TopK)
	}

	if s.cache != nil && len(results) > 0 {
		s.cache.store(vector, results)
	}

	monitor.Finish(results)
	return results, nil
}

// CacheStats returns semantic cache hit and miss counts, or zeros when the
// cache is disabled.
func (s *Searcher) CacheStats() (hits, misses int64) {
	if s.cache == nil {
		return 0, 0
	}
	return s.cache.stats()
}
