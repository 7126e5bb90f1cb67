package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/docsearch/core"
	"github.com/poiesic/docsearch/storage"
	"github.com/poiesic/docsearch/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepos(t *testing.T) (storage.DocumentRepository, storage.ChunkRepository) {
	t.Helper()
	documents, chunks, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return documents, chunks
}

func addDocuments(t *testing.T, repo storage.DocumentRepository, n int) []*core.Document {
	t.Helper()
	docs := make([]*core.Document, n)
	for i := 0; i < n; i++ {
		docs[i] = &core.Document{
			Name:     fmt.Sprintf("doc-%02d.txt", i),
			Contents: fmt.Sprintf("contents of document %d", i),
		}
	}
	added, err := repo.AddDocuments(context.Background(), docs...)
	require.NoError(t, err)
	return added
}

func TestDocumentIterator_BatchesAllDocuments(t *testing.T) {
	documents, _ := setupRepos(t)
	addDocuments(t, documents, 7)

	iterator := NewDocumentIterator(documents, 3)

	var batchSizes []int
	var seen int
	err := iterator.ForEach(context.Background(), func(docs []*core.Document) error {
		batchSizes = append(batchSizes, len(docs))
		seen += len(docs)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 7, seen)
	assert.Equal(t, []int{3, 3, 1}, batchSizes)
}

func TestDocumentIterator_EmptyDatabase(t *testing.T) {
	documents, _ := setupRepos(t)
	iterator := NewDocumentIterator(documents, 10)

	calls := 0
	err := iterator.ForEach(context.Background(), func([]*core.Document) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, calls, "fn should not be called with an empty batch")
}

func TestDocumentIterator_StopsOnError(t *testing.T) {
	documents, _ := setupRepos(t)
	addDocuments(t, documents, 6)

	iterator := NewDocumentIterator(documents, 2)
	expectedErr := errors.New("batch failed")

	calls := 0
	err := iterator.ForEach(context.Background(), func([]*core.Document) error {
		calls++
		if calls == 2 {
			return expectedErr
		}
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, expectedErr)
	assert.Equal(t, 2, calls)
}

func TestDocumentIterator_ContextCanceled(t *testing.T) {
	documents, _ := setupRepos(t)
	addDocuments(t, documents, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	iterator := NewDocumentIterator(documents, 2)
	err := iterator.ForEach(ctx, func([]*core.Document) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDocumentIterator_DefaultBatchSize(t *testing.T) {
	documents, _ := setupRepos(t)
	iterator := NewDocumentIterator(documents, 0)
	assert.Equal(t, DefaultBatchSize, iterator.batchSize)
}

func TestChunkIterator_SpansDocumentBoundaries(t *testing.T) {
	documents, chunks := setupRepos(t)
	docs := addDocuments(t, documents, 3)

	ctx := context.Background()
	for _, doc := range docs {
		for i := 0; i < 2; i++ {
			_, err := chunks.AddChunks(ctx, &core.DocumentChunk{
				DocumentId: doc.Id,
				ChunkIndex: i,
				Contents:   fmt.Sprintf("chunk %d of %s", i, doc.Name),
			})
			require.NoError(t, err)
		}
	}

	iterator := NewChunkIterator(documents, chunks, 4)

	var batchSizes []int
	var seen int
	err := iterator.ForEach(ctx, func(batch []*core.DocumentChunk) error {
		batchSizes = append(batchSizes, len(batch))
		seen += len(batch)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 6, seen)
	assert.Equal(t, []int{4, 2}, batchSizes, "a batch may span document boundaries")
}

func TestChunkIterator_NoChunks(t *testing.T) {
	documents, chunks := setupRepos(t)
	addDocuments(t, documents, 2)

	iterator := NewChunkIterator(documents, chunks, 10)
	calls := 0
	err := iterator.ForEach(context.Background(), func([]*core.DocumentChunk) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, calls)
}
