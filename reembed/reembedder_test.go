package reembed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/docsearch/ai/mock"
	"github.com/poiesic/docsearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		BatchSize:      3,
		ReportInterval: 3,
		MaxRetries:     3,
		RetryDelay:     10 * time.Millisecond,
	}
}

func TestReembedder_Run(t *testing.T) {
	documents, chunks := setupRepos(t)
	ctx := context.Background()

	// Documents carry stale 768-dim embeddings; the new model is 1536-dim.
	added := addDocuments(t, documents, 5)
	for _, doc := range added {
		doc.Vector = make([]float32, 768)
		doc.Vector[0] = 1
		doc.Dim = core.Dim768
	}
	_, err := documents.UpdateDocuments(ctx, added...)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := chunks.AddChunks(ctx, &core.DocumentChunk{
			DocumentId: added[0].Id,
			ChunkIndex: i,
			Contents:   fmt.Sprintf("chunk %d", i),
			Vector:     append(make([]float32, 767), 1),
			Dim:        core.Dim768,
		})
		require.NoError(t, err)
	}

	embedder := mock.NewMockEmbedder()
	embedder.Dim = 1536

	var buf bytes.Buffer
	reembedder := NewReembedder(documents, chunks, embedder, testConfig(), &buf)
	require.NoError(t, reembedder.Run(ctx))

	err = documents.ScanDocuments(ctx, func(doc *core.Document) error {
		assert.Len(t, doc.Vector, 1536, "document %d should carry the new dimension", doc.Id)
		assert.Equal(t, core.Dim1536, doc.Dim)

		var magnitude float32
		for _, v := range doc.Vector {
			magnitude += v * v
		}
		assert.InDelta(t, 1.0, magnitude, 1e-4, "vector should be normalized")
		return nil
	})
	require.NoError(t, err)

	migrated, err := chunks.GetChunksByDocument(ctx, added[0].Id)
	require.NoError(t, err)
	require.Len(t, migrated, 2)
	for _, chunk := range migrated {
		assert.Len(t, chunk.Vector, 1536)
		assert.Equal(t, core.Dim1536, chunk.Dim)
	}

	out := buf.String()
	assert.Contains(t, out, "Starting reembedding of 5 documents and 2 chunks")
	assert.Contains(t, out, "Reembedding complete")
}

func TestReembedder_EmptyDatabase(t *testing.T) {
	documents, chunks := setupRepos(t)

	var buf bytes.Buffer
	reembedder := NewReembedder(documents, chunks, mock.NewMockEmbedder(), testConfig(), &buf)
	require.NoError(t, reembedder.Run(context.Background()))
	assert.Contains(t, buf.String(), "No documents found")
}

func TestReembedder_EmbedderFailurePropagates(t *testing.T) {
	documents, chunks := setupRepos(t)
	addDocuments(t, documents, 2)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("model unavailable")
	}

	config := testConfig()
	config.MaxRetries = 2
	config.RetryDelay = time.Millisecond

	var buf bytes.Buffer
	reembedder := NewReembedder(documents, chunks, embedder, config, &buf)
	err := reembedder.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to process document batch")
}

func TestReembedder_RejectsUnsupportedDimension(t *testing.T) {
	documents, chunks := setupRepos(t)
	addDocuments(t, documents, 1)

	embedder := mock.NewMockEmbedder()
	embedder.Dim = 384 // not a supported model family

	var buf bytes.Buffer
	reembedder := NewReembedder(documents, chunks, embedder, testConfig(), &buf)
	err := reembedder.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnsupportedDimension)
}

func TestReembedder_NilConfigUsesDefaults(t *testing.T) {
	documents, chunks := setupRepos(t)

	var buf bytes.Buffer
	reembedder := NewReembedder(documents, chunks, mock.NewMockEmbedder(), nil, &buf)
	assert.Equal(t, DefaultConfig().BatchSize, reembedder.config.BatchSize)
}
