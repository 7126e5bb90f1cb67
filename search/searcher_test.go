package search

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/docsearch/ai"
	"github.com/poiesic/docsearch/ai/mock"
	"github.com/poiesic/docsearch/core"
	"github.com/poiesic/docsearch/storage"
	"github.com/poiesic/docsearch/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queryVectors maps query text onto fixed embeddings so similarity is
// controlled by the test, not by hash noise.
func embedderFor(vectors map[string][]float32) *mock.MockEmbedder {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if v, ok := vectors[text]; ok {
			return v, nil
		}
		return padVector(0, 0, 1), nil
	}
	return embedder
}

func newSearcherFixture(t *testing.T, embedder *mock.MockEmbedder, opts ...Option) (*Searcher, storage.DocumentRepository) {
	t.Helper()

	documents, chunks, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	ctx := context.Background()
	_, err = documents.AddDocuments(ctx,
		&core.Document{
			Name:     "espresso.txt",
			Contents: "espresso extraction pressure and grind size",
			Vector:   padVector(1, 0),
			Dim:      core.Dim768,
		},
		&core.Document{
			Name:     "tea.txt",
			Contents: "steeping green tea at low temperature",
			Vector:   padVector(0, 1),
			Dim:      core.Dim768,
		},
	)
	require.NoError(t, err)

	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockChunker())
	searcher, err := NewSearcher(documents, chunks, provider, opts...)
	require.NoError(t, err)

	return searcher, documents
}

func TestNewSearcherValidation(t *testing.T) {
	documents, chunks, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	provider := mock.NewMockProvider()

	_, err = NewSearcher(nil, chunks, provider)
	assert.ErrorIs(t, err, ErrDocumentRepositoryRequired)

	_, err = NewSearcher(documents, nil, provider)
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)

	_, err = NewSearcher(documents, chunks, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)
}

func TestSearcherHybridSearch(t *testing.T) {
	embedder := embedderFor(map[string][]float32{
		"espresso extraction": padVector(1, 0.05),
	})
	searcher, _ := newSearcherFixture(t, embedder)

	results, err := searcher.Search(context.Background(), "espresso extraction", nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "espresso.txt", results[0].Document.Name,
		"the document matching both semantically and lexically ranks first")
}

func TestSearcherLexicalOnlyFallback(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embedding service unavailable")
	}
	searcher, _ := newSearcherFixture(t, embedder)

	results, err := searcher.Search(context.Background(), "green tea", nil)
	require.NoError(t, err, "an embedder outage must not fail the search")
	require.NotEmpty(t, results)
	assert.Equal(t, "tea.txt", results[0].Document.Name)
}

func TestSearcherEmptyResultIsNotAnError(t *testing.T) {
	embedder := embedderFor(map[string][]float32{})
	searcher, _ := newSearcherFixture(t, embedder)

	results, err := searcher.Search(context.Background(), "zzzzzz qqqqqq", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearcherSemanticCacheHit(t *testing.T) {
	queryVec := padVector(1, 0.05)
	nearDuplicate := padVector(1, 0.06)
	embedder := embedderFor(map[string][]float32{
		"espresso extraction":  queryVec,
		"espresso extraction!": nearDuplicate,
	})
	searcher, _ := newSearcherFixture(t, embedder)

	ctx := context.Background()
	first, err := searcher.Search(ctx, "espresso extraction", nil)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	hits, misses := searcher.CacheStats()
	assert.Equal(t, int64(0), hits)
	assert.Equal(t, int64(1), misses)

	// A near-duplicate embedding serves the cached result set.
	second, err := searcher.Search(ctx, "espresso extraction!", nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	hits, _ = searcher.CacheStats()
	assert.Equal(t, int64(1), hits)
}

func TestSearcherCacheDisabled(t *testing.T) {
	embedder := embedderFor(map[string][]float32{
		"espresso extraction": padVector(1, 0.05),
	})
	searcher, _ := newSearcherFixture(t, embedder, WithoutSemanticCache())

	ctx := context.Background()
	_, err := searcher.Search(ctx, "espresso extraction", nil)
	require.NoError(t, err)
	_, err = searcher.Search(ctx, "espresso extraction", nil)
	require.NoError(t, err)

	hits, misses := searcher.CacheStats()
	assert.Zero(t, hits)
	assert.Zero(t, misses)
}

type staticRewriter struct {
	rewritten string
	calls     int
}

func (r *staticRewriter) Rewrite(ctx context.Context, query string) (string, error) {
	r.calls++
	return r.rewritten, nil
}

func TestSearcherQueryRewriter(t *testing.T) {
	embedder := embedderFor(map[string][]float32{
		"coffee":              padVector(0, 1), // original points away
		"espresso extraction": padVector(1, 0), // rewrite points at espresso.txt
	})
	rewriter := &staticRewriter{rewritten: "espresso extraction"}
	searcher, _ := newSearcherFixture(t, embedder, WithQueryRewriter(rewriter), WithoutSemanticCache())

	results, err := searcher.Search(context.Background(), "coffee", nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, 1, rewriter.calls)
	assert.Equal(t, "espresso.txt", results[0].Document.Name,
		"search should use the rewritten query's embedding")
}

type recordingMonitor struct {
	started    bool
	cacheHits  int
	vectorRuns int
	finished   bool
}

func (m *recordingMonitor) Start(string)                            { m.started = true }
func (m *recordingMonitor) CacheHit([]*core.SearchResult)           { m.cacheHits++ }
func (m *recordingMonitor) AfterQueryEmbedding([]float32)           {}
func (m *recordingMonitor) LexicalOnlyFallback(error)               {}
func (m *recordingMonitor) AfterVectorSearch([]*core.SearchResult)  { m.vectorRuns++ }
func (m *recordingMonitor) AfterLexicalSearch([]*core.SearchResult) {}
func (m *recordingMonitor) Finish([]*core.SearchResult)             { m.finished = true }

var _ SearchMonitor = (*recordingMonitor)(nil)

func TestSearcherMonitorCallbacks(t *testing.T) {
	embedder := embedderFor(map[string][]float32{
		"espresso extraction": padVector(1, 0.05),
	})
	searcher, _ := newSearcherFixture(t, embedder)

	ctx := context.Background()
	monitor := &recordingMonitor{}
	_, err := searcher.SearchWithMonitor(ctx, "espresso extraction", nil, monitor)
	require.NoError(t, err)
	assert.True(t, monitor.started)
	assert.True(t, monitor.finished)
	assert.Equal(t, 1, monitor.vectorRuns)
	assert.Zero(t, monitor.cacheHits)

	// The identical query now comes from the cache without a vector run.
	monitor = &recordingMonitor{}
	_, err = searcher.SearchWithMonitor(ctx, "espresso extraction", nil, monitor)
	require.NoError(t, err)
	assert.Equal(t, 1, monitor.cacheHits)
	assert.Zero(t, monitor.vectorRuns)
}

// Guard against the fixture queries accidentally matching via the mock's
// default vector.
func TestSearcherFixtureVectorsDiffer(t *testing.T) {
	a := padVector(1, 0)
	b := padVector(0, 1)
	assert.InDelta(t, 0, core.Cosine(a, b), 1e-6)
}

var _ ai.Embedder = (*mock.MockEmbedder)(nil)
