package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails; an error is always
	// distinguishable from a successfully generated zero vector.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits document text into ordered chunks with byte offsets.
// Implementations must be thread-safe for concurrent use.
type Chunker interface {
	// Split splits text into ordered chunks. May legitimately return an
	// empty slice when the text is deemed unchunkable (for example,
	// whitespace only). Offsets are byte positions into the input text.
	Split(ctx context.Context, text string) ([]TextChunk, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and Chunker instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Chunker returns the text chunking service.
	// The returned Chunker is safe for concurrent use.
	Chunker() Chunker

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
