package badger

import (
	"context"
	"testing"

	"github.com/poiesic/docsearch/core"
	"github.com/poiesic/docsearch/storage"
)

func addTestDocument(t *testing.T, docRepo storage.DocumentRepository, name string) *core.Document {
	t.Helper()
	doc := &core.Document{Name: name, Contents: "text of " + name}
	added, err := docRepo.AddDocuments(context.Background(), doc)
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}
	return added[0]
}

func TestChunkBasics(t *testing.T) {
	docRepo, chunkRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { chunkRepo.Close(); docRepo.Close(); backend.Close() }()

	ctx := context.Background()
	doc := addTestDocument(t, docRepo, "doc.txt")

	chunks := []*core.DocumentChunk{
		{DocumentId: doc.Id, ChunkIndex: 0, Contents: "Alpha Beta", StartOffset: 0, EndOffset: 10},
		{DocumentId: doc.Id, ChunkIndex: 1, Contents: "Gamma", StartOffset: 11, EndOffset: 16},
	}

	added, err := chunkRepo.AddChunks(ctx, chunks...)
	if err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}
	if len(added) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(added))
	}
	for _, chunk := range added {
		if chunk.Id == 0 {
			t.Fatal("Expected non-zero chunk ID")
		}
	}

	retrieved, err := chunkRepo.GetChunk(ctx, doc.Id, 1)
	if err != nil {
		t.Fatalf("Failed to get chunk: %v", err)
	}
	if retrieved.Contents != "Gamma" {
		t.Fatalf("Expected 'Gamma', got '%s'", retrieved.Contents)
	}

	byDoc, err := chunkRepo.GetChunksByDocument(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get chunks by document: %v", err)
	}
	if len(byDoc) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(byDoc))
	}
	for i, chunk := range byDoc {
		if chunk.ChunkIndex != i {
			t.Errorf("Expected chunk index %d, got %d", i, chunk.ChunkIndex)
		}
	}
}

func TestChunkUpdateAndCounts(t *testing.T) {
	docRepo, chunkRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { chunkRepo.Close(); docRepo.Close(); backend.Close() }()

	ctx := context.Background()
	doc := addTestDocument(t, docRepo, "doc.txt")

	chunks := []*core.DocumentChunk{
		{DocumentId: doc.Id, ChunkIndex: 0, Contents: "Alpha Beta", EndOffset: 10},
		{DocumentId: doc.Id, ChunkIndex: 1, Contents: "Gamma", StartOffset: 11, EndOffset: 16},
	}
	if _, err := chunkRepo.AddChunks(ctx, chunks...); err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}

	total, embedded, err := chunkRepo.CountByDocument(ctx, doc.Id)
	if err != nil {
		t.Fatalf("CountByDocument failed: %v", err)
	}
	if total != 2 || embedded != 0 {
		t.Fatalf("Expected (2, 0), got (%d, %d)", total, embedded)
	}

	chunks[0].Vector = make([]float32, 768)
	chunks[0].Dim = core.Dim768
	if _, err := chunkRepo.UpdateChunks(ctx, chunks[0]); err != nil {
		t.Fatalf("Failed to update chunk: %v", err)
	}

	total, embedded, err = chunkRepo.CountByDocument(ctx, doc.Id)
	if err != nil {
		t.Fatalf("CountByDocument failed: %v", err)
	}
	if total != 2 || embedded != 1 {
		t.Fatalf("Expected (2, 1), got (%d, %d)", total, embedded)
	}
}

func TestChunkUpdateNotFound(t *testing.T) {
	docRepo, chunkRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { chunkRepo.Close(); docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	ghost := &core.DocumentChunk{DocumentId: 99, ChunkIndex: 0, Contents: "ghost"}
	if _, err := chunkRepo.UpdateChunks(ctx, ghost); err != storage.ErrNotFound {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestGetUnembedded(t *testing.T) {
	docRepo, chunkRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { chunkRepo.Close(); docRepo.Close(); backend.Close() }()

	ctx := context.Background()
	docA := addTestDocument(t, docRepo, "a.txt")
	docB := addTestDocument(t, docRepo, "b.txt")

	embedded := make([]float32, 768)
	chunks := []*core.DocumentChunk{
		{DocumentId: docA.Id, ChunkIndex: 0, Contents: "a0"},
		{DocumentId: docA.Id, ChunkIndex: 1, Contents: "a1", Vector: embedded, Dim: core.Dim768},
		{DocumentId: docB.Id, ChunkIndex: 0, Contents: "b0"},
	}
	if _, err := chunkRepo.AddChunks(ctx, chunks...); err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}

	unembedded, err := chunkRepo.GetUnembedded(ctx, 10)
	if err != nil {
		t.Fatalf("GetUnembedded failed: %v", err)
	}
	if len(unembedded) != 2 {
		t.Fatalf("Expected 2 unembedded chunks, got %d", len(unembedded))
	}
	// Ordered by (document id, chunk index)
	if unembedded[0].DocumentId != docA.Id || unembedded[0].ChunkIndex != 0 {
		t.Errorf("Unexpected first chunk: doc %d index %d", unembedded[0].DocumentId, unembedded[0].ChunkIndex)
	}
	if unembedded[1].DocumentId != docB.Id {
		t.Errorf("Expected docB chunk second, got doc %d", unembedded[1].DocumentId)
	}
}
