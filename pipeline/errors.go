package pipeline

import "errors"

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrChunkPersistFailed marks a failure to save already-computed chunk
	// embeddings. This is the one error class that is escalated out of a
	// cycle and counted by the circuit breaker; everything else is handled
	// per item.
	ErrChunkPersistFailed = errors.New("failed to persist chunk embeddings")
)
