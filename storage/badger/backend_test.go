package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/docsearch/core"
	"github.com/poiesic/docsearch/storage"
)

func padVector(prefix []float32, dim int) []float32 {
	v := make([]float32, dim)
	copy(v, prefix)
	return v
}

func TestFindSimilarDocuments(t *testing.T) {
	docRepo, chunkRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { chunkRepo.Close(); docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	docs := []*core.Document{
		{Name: "ai.txt", Vector: padVector([]float32{0.9, 0.1}, 768), Dim: core.Dim768},
		{Name: "ml.txt", Vector: padVector([]float32{0.85, 0.15}, 768), Dim: core.Dim768},
		{Name: "cooking.txt", Vector: padVector([]float32{0.1, 0.9}, 768), Dim: core.Dim768},
		{Name: "no-vector.txt"},
	}
	if _, err := docRepo.AddDocuments(ctx, docs...); err != nil {
		t.Fatalf("Failed to add documents: %v", err)
	}

	query := padVector([]float32{1, 0}, 768)
	matches, err := backend.FindSimilarDocuments(ctx, query, core.Dim768, "", 0.7, 10)
	if err != nil {
		t.Fatalf("FindSimilarDocuments failed: %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(matches))
	}
	if matches[0].Score < matches[1].Score {
		t.Error("Expected matches ordered by similarity descending")
	}
	for _, m := range matches {
		if m.ChunkId != 0 {
			t.Error("Document matches should have zero ChunkId")
		}
	}
}

func TestFindSimilarChunks(t *testing.T) {
	docRepo, chunkRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { chunkRepo.Close(); docRepo.Close(); backend.Close() }()

	ctx := context.Background()
	doc := addTestDocument(t, docRepo, "doc.txt")

	chunks := []*core.DocumentChunk{
		{DocumentId: doc.Id, ChunkIndex: 0, Contents: "close", Vector: padVector([]float32{0.95, 0.05}, 768), Dim: core.Dim768},
		{DocumentId: doc.Id, ChunkIndex: 1, Contents: "far", Vector: padVector([]float32{0, 1}, 768), Dim: core.Dim768},
	}
	if _, err := chunkRepo.AddChunks(ctx, chunks...); err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}

	query := padVector([]float32{1, 0}, 768)
	matches, err := backend.FindSimilarChunks(ctx, query, core.Dim768, "", 0.7, 10)
	if err != nil {
		t.Fatalf("FindSimilarChunks failed: %v", err)
	}

	if len(matches) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(matches))
	}
	if matches[0].DocumentId != doc.Id {
		t.Error("Match should reference the owning document")
	}
	if matches[0].ChunkId == 0 {
		t.Error("Chunk match should carry the chunk id")
	}
}

func TestFindSimilar_OwnerScope(t *testing.T) {
	docRepo, chunkRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { chunkRepo.Close(); docRepo.Close(); backend.Close() }()

	ctx := context.Background()
	docs := []*core.Document{
		{Name: "mine.txt", Owner: "alice", Vector: padVector([]float32{1, 0}, 768), Dim: core.Dim768},
		{Name: "theirs.txt", Owner: "bob", Vector: padVector([]float32{1, 0}, 768), Dim: core.Dim768},
	}
	added, err := docRepo.AddDocuments(ctx, docs...)
	if err != nil {
		t.Fatalf("Failed to add documents: %v", err)
	}

	chunks := []*core.DocumentChunk{
		{DocumentId: added[0].Id, ChunkIndex: 0, Contents: "alice", Vector: padVector([]float32{1, 0}, 768), Dim: core.Dim768},
		{DocumentId: added[1].Id, ChunkIndex: 0, Contents: "bob", Vector: padVector([]float32{1, 0}, 768), Dim: core.Dim768},
	}
	if _, err := chunkRepo.AddChunks(ctx, chunks...); err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}

	query := padVector([]float32{1, 0}, 768)

	matches, err := backend.FindSimilarDocuments(ctx, query, core.Dim768, "alice", 0.7, 10)
	if err != nil {
		t.Fatalf("FindSimilarDocuments failed: %v", err)
	}
	if len(matches) != 1 || matches[0].DocumentId != added[0].Id {
		t.Fatalf("Expected only alice's document, got %v", matches)
	}

	chunkMatches, err := backend.FindSimilarChunks(ctx, query, core.Dim768, "alice", 0.7, 10)
	if err != nil {
		t.Fatalf("FindSimilarChunks failed: %v", err)
	}
	if len(chunkMatches) != 1 || chunkMatches[0].DocumentId != added[0].Id {
		t.Fatalf("Expected only alice's chunk, got %v", chunkMatches)
	}

	all, err := backend.FindSimilarDocuments(ctx, query, core.Dim768, "", 0.7, 10)
	if err != nil {
		t.Fatalf("FindSimilarDocuments failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Empty owner should not filter, got %d matches", len(all))
	}
}

func TestFindSimilar_UnsupportedDimension(t *testing.T) {
	_, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer backend.Close()

	ctx := context.Background()
	_, err = backend.FindSimilarDocuments(ctx, make([]float32, 384), core.EmbeddingDim(384), "", 0.7, 10)
	if !errors.Is(err, storage.ErrVectorSearchUnsupported) {
		t.Fatalf("Expected ErrVectorSearchUnsupported, got %v", err)
	}
}
