package openai

import (
	"context"
	"strings"
	"testing"

	"github.com/poiesic/docsearch/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChunker(t *testing.T, size, overlap int) *Chunker {
	t.Helper()
	config := ai.NewConfig(ai.WithChunking(size, overlap))
	chunker, err := newChunker(config)
	require.NoError(t, err)
	return chunker
}

func TestChunkerSplitWhitespaceOnly(t *testing.T) {
	chunker := testChunker(t, 100, 20)

	for _, text := range []string{"", "   ", "\n\t\n"} {
		chunks, err := chunker.Split(context.Background(), text)
		require.NoError(t, err)
		assert.Empty(t, chunks, "whitespace-only input %q should yield no chunks", text)
	}
}

func TestChunkerSplitShortText(t *testing.T) {
	chunker := testChunker(t, 100, 20)

	chunks, err := chunker.Split(context.Background(), "a single short paragraph")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "a single short paragraph", chunks[0].Contents)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len("a single short paragraph"), chunks[0].End)
}

func TestChunkerSplitOffsetsLocateContents(t *testing.T) {
	chunker := testChunker(t, 50, 10)

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 8)
	chunks, err := chunker.Split(context.Background(), text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1, "text longer than the chunk size should split")

	for i, chunk := range chunks {
		require.LessOrEqual(t, chunk.End, len(text), "chunk %d end out of range", i)
		assert.Equal(t, chunk.Contents, text[chunk.Start:chunk.End],
			"chunk %d offsets should address its contents", i)
	}
}

func TestChunkerSplitOffsetsAdvanceThroughRepeats(t *testing.T) {
	chunker := testChunker(t, 30, 5)

	// Identical sentences force the offset search to move forward rather
	// than re-matching the first occurrence.
	text := "same sentence here. same sentence here. same sentence here."
	chunks, err := chunker.Split(context.Background(), text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		assert.GreaterOrEqual(t, chunks[i].Start, chunks[i-1].Start,
			"offsets should be non-decreasing")
	}
}

func TestChunkerSplitCanceledContext(t *testing.T) {
	chunker := testChunker(t, 100, 20)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := chunker.Split(ctx, "some text")
	assert.ErrorIs(t, err, context.Canceled)
}
