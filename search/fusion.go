package search

import (
	"sort"

	"github.com/poiesic/docsearch/core"
)

// fusedEntry accumulates a document's contributions from both rankings.
type fusedEntry struct {
	result *core.SearchResult
	score  float32
	seen   int // first-seen position, keeps equal scores stable
}

// RRFFusion combines a vector-ranked and a lexical-ranked list with
// reciprocal rank fusion: each document scores the sum of 1/(k+rank) over
// the lists it appears in, so documents in both lists accumulate both
// terms. Ranks are 1-indexed. Equal scores keep first-seen order.
func RRFFusion(vector, lexical []*core.SearchResult, k, topK int) []*core.SearchResult {
	if k <= 0 {
		k = DefaultRRFK
	}

	entries := make(map[core.ID]*fusedEntry, len(vector)+len(lexical))
	order := make([]core.ID, 0, len(vector)+len(lexical))

	accumulate := func(list []*core.SearchResult) {
		for rank, result := range list {
			id := result.Document.Id
			entry, ok := entries[id]
			if !ok {
				entry = &fusedEntry{result: result, seen: len(order)}
				entries[id] = entry
				order = append(order, id)
			} else if entry.result.Chunk == nil && result.Chunk != nil {
				// Keep the more specific hit for presentation.
				entry.result = result
			}
			entry.score += 1 / float32(k+rank+1)
		}
	}
	accumulate(vector)
	accumulate(lexical)

	return finalize(entries, order, topK)
}

// WeightedFusion combines the two lists by blending raw scores:
// vectorSimilarity*vectorWeight + lexicalScore*textWeight, with the weights
// normalized to sum to 1. A document missing from a list contributes zero
// for that list. Equal scores keep first-seen order.
func WeightedFusion(vector, lexical []*core.SearchResult, vectorWeight, textWeight float32, topK int) []*core.SearchResult {
	total := vectorWeight + textWeight
	if total <= 0 {
		vectorWeight, textWeight = 0.5, 0.5
	} else {
		vectorWeight /= total
		textWeight /= total
	}

	entries := make(map[core.ID]*fusedEntry, len(vector)+len(lexical))
	order := make([]core.ID, 0, len(vector)+len(lexical))

	accumulate := func(list []*core.SearchResult, weight float32) {
		if weight == 0 {
			// A zero-weighted list contributes nothing, so a (1, 0) split
			// reproduces the vector-only ranking exactly.
			return
		}
		for _, result := range list {
			id := result.Document.Id
			entry, ok := entries[id]
			if !ok {
				entry = &fusedEntry{result: result, seen: len(order)}
				entries[id] = entry
				order = append(order, id)
			} else if entry.result.Chunk == nil && result.Chunk != nil {
				entry.result = result
			}
			entry.score += result.Score * weight
		}
	}
	accumulate(vector, vectorWeight)
	accumulate(lexical, textWeight)

	return finalize(entries, order, topK)
}

// finalize sorts fused entries by score descending, first-seen order for
// ties, and returns up to topK results carrying the fused score.
func finalize(entries map[core.ID]*fusedEntry, order []core.ID, topK int) []*core.SearchResult {
	fused := make([]*fusedEntry, 0, len(order))
	for _, id := range order {
		fused = append(fused, entries[id])
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].seen < fused[j].seen
	})

	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}

	results := make([]*core.SearchResult, len(fused))
	for i, entry := range fused {
		results[i] = &core.SearchResult{
			Document: entry.result.Document,
			Chunk:    entry.result.Chunk,
			Score:    entry.score,
		}
	}
	return results
}
