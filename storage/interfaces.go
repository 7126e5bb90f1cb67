package storage

import (
	"context"
	"time"

	"github.com/poiesic/docsearch/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// DocumentRepository provides operations for managing documents.
type DocumentRepository interface {
	Repository

	// AddDocuments adds one or more documents to storage.
	// For documents with ID=0, generates new IDs from sequence.
	// Sets InsertedAt timestamp if not already set.
	// Returns the documents with generated IDs and timestamps populated.
	AddDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error)

	// UpdateDocuments updates existing documents.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any document doesn't exist.
	UpdateDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocuments retrieves multiple documents by their IDs.
	// Returns only the documents that exist (no error for missing documents).
	GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error)

	// GetPendingEmbedding retrieves documents that need chunk embedding work:
	// documents with non-empty contents whose chunk status is Pending, plus
	// Processing documents included for stuck-document recovery.
	// Returns up to limit documents, ordered by id ascending.
	GetPendingEmbedding(ctx context.Context, limit int) ([]*core.Document, error)

	// GetRetryDue retrieves documents whose workflow fields mark them due for
	// retry: NextRetryAt <= now and RetryCount < MaxRetries, in a
	// retry-eligible workflow state.
	// Returns up to limit documents, ordered by id ascending.
	GetRetryDue(ctx context.Context, now time.Time, limit int) ([]*core.Document, error)

	// GetRecentDocuments retrieves the N most recently updated documents,
	// newest first, restricted to owner when owner is non-empty.
	GetRecentDocuments(ctx context.Context, owner string, limit int) ([]*core.Document, error)

	// ScanDocuments calls fn for every stored document, in id order.
	// Iteration stops on the first error from fn.
	ScanDocuments(ctx context.Context, fn func(*core.Document) error) error
}

// ChunkRepository provides operations for managing document chunks.
type ChunkRepository interface {
	Repository

	// AddChunks adds one or more chunks to storage.
	// For chunks with ID=0, generates new IDs from sequence.
	// Enforces (DocumentId, ChunkIndex) uniqueness via the primary key.
	AddChunks(ctx context.Context, chunks ...*core.DocumentChunk) ([]*core.DocumentChunk, error)

	// UpdateChunks updates existing chunks in a single batch write.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateChunks(ctx context.Context, chunks ...*core.DocumentChunk) ([]*core.DocumentChunk, error)

	// GetChunk retrieves a single chunk by document id and chunk index.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, documentID core.ID, chunkIndex int) (*core.DocumentChunk, error)

	// GetChunksByDocument retrieves all chunks of a document, ordered by
	// chunk index ascending.
	GetChunksByDocument(ctx context.Context, documentID core.ID) ([]*core.DocumentChunk, error)

	// GetUnembedded retrieves chunks with no embedding of either supported
	// dimension, ordered by (document id, chunk index) ascending.
	// Returns up to limit chunks.
	GetUnembedded(ctx context.Context, limit int) ([]*core.DocumentChunk, error)

	// CountByDocument returns the total and embedded chunk counts of a
	// document, derived directly from stored state.
	CountByDocument(ctx context.Context, documentID core.ID) (total, embedded int, err error)
}

// NativeVectorSearcher is an optional capability of a storage backend: a
// store-native similarity primitive that filters and sorts by cosine
// similarity at the storage level. Engines probe for it with a type
// assertion and fall back to in-memory scoring when it is absent or errors.
type NativeVectorSearcher interface {
	// FindSimilarDocuments finds documents whose whole-document embedding of
	// the given dimension has similarity >= minSimilarity, up to limit
	// results, ordered by similarity descending. A non-empty owner restricts
	// matches to that owner's documents.
	FindSimilarDocuments(ctx context.Context, vector []float32, dim core.EmbeddingDim, owner string, minSimilarity float32, limit int) ([]core.SimilarityMatch, error)

	// FindSimilarChunks is FindSimilarDocuments for chunk embeddings; owner
	// scoping applies to the chunk's owning document.
	FindSimilarChunks(ctx context.Context, vector []float32, dim core.EmbeddingDim, owner string, minSimilarity float32, limit int) ([]core.SimilarityMatch, error)
}
