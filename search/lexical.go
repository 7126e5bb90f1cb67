package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/poiesic/docsearch/core"
	"github.com/poiesic/docsearch/storage"
)

// Keyword-fallback field weights. A keyword matching the filename counts
// more than one matching body text or category.
const (
	weightFilename = 1.0
	weightText     = 0.8
	weightCategory = 0.5
)

// LexicalEngine scores documents by lexical relevance, independent of
// embeddings. It prefers BM25 over its corpus statistics and falls back to
// weighted keyword containment when statistics are unavailable.
type LexicalEngine struct {
	documents storage.DocumentRepository
	index     *bm25Index
	logger    *slog.Logger
}

// NewLexicalEngine creates a lexical search engine.
func NewLexicalEngine(documents storage.DocumentRepository, logger *slog.Logger) (*LexicalEngine, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LexicalEngine{
		documents: documents,
		index:     newBM25Index(documents),
		logger:    logger.With("engine", "lexical"),
	}, nil
}

// Search returns documents lexically relevant to the query, best first.
// Only documents with a positive score are included.
func (e *LexicalEngine) Search(ctx context.Context, query string, opts *SearchOptions) ([]*core.SearchResult, error) {
	o := opts.normalized()

	keywords := tokenize(query)
	if len(keywords) == 0 {
		return []*core.SearchResult{}, nil
	}

	var scores map[core.ID]float32
	if err := e.index.refresh(ctx); err != nil {
		e.logger.Warn("BM25 statistics unavailable, using keyword fallback", "err", err)
		scores, err = e.keywordScores(ctx, keywords, o.Owner)
		if err != nil {
			return nil, err
		}
	} else {
		scores = e.index.score(keywords, o.Owner)
	}

	if len(scores) == 0 {
		return []*core.SearchResult{}, nil
	}

	ids := make([]core.ID, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	docs, err := e.documents.GetDocuments(ctx, ids...)
	if err != nil {
		return nil, err
	}

	results := make([]*core.SearchResult, 0, len(docs))
	for _, doc := range docs {
		results = append(results, &core.SearchResult{Document: doc, Score: scores[doc.Id]})
	}

	// Ranks are positions after this sort; id ascending keeps ties stable.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.Id < results[j].Document.Id
	})

	if len(results) > o.TopK {
		results = results[:o.TopK]
	}
	return results, nil
}

// keywordScores is the BM25 fallback: per keyword, take the strongest
// matching field weight, then normalize by both coverage (how many keywords
// matched) and strength (how heavy the matches were).
func (e *LexicalEngine) keywordScores(ctx context.Context, keywords []string, owner string) (map[core.ID]float32, error) {
	scores := make(map[core.ID]float32)

	err := e.documents.ScanDocuments(ctx, func(doc *core.Document) error {
		if owner != "" && doc.Owner != owner {
			return nil
		}

		matched := 0
		var sum float32
		for _, keyword := range keywords {
			var best float32
			if containsFold(doc.Name, keyword) {
				best = weightFilename
			} else if containsFold(doc.Contents, keyword) {
				best = weightText
			} else if containsFold(doc.Category, keyword) {
				best = weightCategory
			}
			if best > 0 {
				matched++
				sum += best
			}
		}
		if matched == 0 {
			return nil
		}

		total := float32(len(keywords))
		coverage := float32(matched) / total
		strength := sum / total
		scores[doc.Id] = coverage * strength
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}
