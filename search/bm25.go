package search

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/poiesic/docsearch/core"
	"github.com/poiesic/docsearch/storage"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75

	// statsMaxAge bounds how stale the corpus statistics may get before a
	// search triggers recomputation.
	statsMaxAge = time.Minute
)

// bm25Doc holds per-document statistics needed for scoring.
type bm25Doc struct {
	freqs  map[string]int
	length int
	owner  string
}

// bm25Index holds BM25 corpus statistics. Statistics are refreshed by full
// idempotent recomputation rather than incremental mutation, so concurrent
// searches at worst recompute twice; they never corrupt each other.
type bm25Index struct {
	documents storage.DocumentRepository

	mu        sync.RWMutex
	docs      map[core.ID]*bm25Doc
	docFreq   map[string]int
	avgLength float64
	builtAt   time.Time
}

func newBM25Index(documents storage.DocumentRepository) *bm25Index {
	return &bm25Index{documents: documents}
}

// refresh rebuilds corpus statistics when they are missing or stale.
func (idx *bm25Index) refresh(ctx context.Context) error {
	idx.mu.RLock()
	fresh := !idx.builtAt.IsZero() && time.Since(idx.builtAt) < statsMaxAge
	idx.mu.RUnlock()
	if fresh {
		return nil
	}

	docs := make(map[core.ID]*bm25Doc)
	docFreq := make(map[string]int)
	totalLength := 0

	err := idx.documents.ScanDocuments(ctx, func(doc *core.Document) error {
		freqs := termFrequencies(doc.Contents)
		length := 0
		for term, count := range freqs {
			docFreq[term]++
			length += count
		}
		docs[doc.Id] = &bm25Doc{freqs: freqs, length: length, owner: doc.Owner}
		totalLength += length
		return nil
	})
	if err != nil {
		return err
	}

	avgLength := 0.0
	if len(docs) > 0 {
		avgLength = float64(totalLength) / float64(len(docs))
	}

	idx.mu.Lock()
	idx.docs = docs
	idx.docFreq = docFreq
	idx.avgLength = avgLength
	idx.builtAt = time.Now()
	idx.mu.Unlock()
	return nil
}

// score computes BM25 scores for every document matching at least one query
// term, restricted to owner when non-empty.
func (idx *bm25Index) score(queryTokens []string, owner string) map[core.ID]float32 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.docs) == 0 || len(queryTokens) == 0 {
		return nil
	}

	n := float64(len(idx.docs))
	scores := make(map[core.ID]float32)

	for id, doc := range idx.docs {
		if owner != "" && doc.owner != owner {
			continue
		}

		var score float64
		for _, term := range queryTokens {
			tf := float64(doc.freqs[term])
			if tf == 0 {
				continue
			}

			df := float64(idx.docFreq[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))

			norm := 1 - bm25B + bm25B*float64(doc.length)/idx.avgLength
			score += idf * (tf * (bm25K1 + 1)) / (tf + bm25K1*norm)
		}

		if score > 0 {
			scores[id] = float32(score)
		}
	}

	return scores
}
