package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// EmbeddingDim is the dimension of an embedding vector.
// Only the dimensions of the supported embedding model families are valid;
// the value is resolved once per call and passed around as an enum, never
// interpolated into storage keys.
type EmbeddingDim int

const (
	// DimNone means no embedding is present.
	DimNone EmbeddingDim = 0
	// Dim768 is the dimension of the small embedding model family.
	Dim768 EmbeddingDim = 768
	// Dim1536 is the dimension of the large embedding model family.
	Dim1536 EmbeddingDim = 1536
)

// ParseDim maps a raw vector length onto the closed dimension whitelist.
// Returns ErrUnsupportedDimension for anything else.
func ParseDim(n int) (EmbeddingDim, error) {
	switch n {
	case int(Dim768):
		return Dim768, nil
	case int(Dim1536):
		return Dim1536, nil
	default:
		return DimNone, ErrUnsupportedDimension
	}
}

// ChunkEmbeddingStatus tracks the chunk-embedding progress of a document.
type ChunkEmbeddingStatus int

const (
	// ChunkStatusPending means the document has not been chunked yet.
	ChunkStatusPending ChunkEmbeddingStatus = iota + 1
	// ChunkStatusProcessing means chunks exist but not all have embeddings.
	ChunkStatusProcessing
	// ChunkStatusCompleted means every chunk of the document has an embedding.
	ChunkStatusCompleted
	// ChunkStatusNotRequired means chunking produced zero chunks.
	ChunkStatusNotRequired
)

// String returns a string representation of the status.
func (s ChunkEmbeddingStatus) String() string {
	switch s {
	case ChunkStatusPending:
		return "pending"
	case ChunkStatusProcessing:
		return "processing"
	case ChunkStatusCompleted:
		return "completed"
	case ChunkStatusNotRequired:
		return "not-required"
	default:
		return "unknown"
	}
}

// WorkflowState identifies where a document sits in its processing workflow.
// The workflow fields on Document are the single source of truth for retry
// scheduling; there is no separately persisted retry queue.
type WorkflowState string

const (
	WorkflowStateExtracting           WorkflowState = "Extracting"
	WorkflowStateAnalyzing            WorkflowState = "Analyzing"
	WorkflowStateAwaitingConfirmation WorkflowState = "AwaitingConfirmation"
	WorkflowStateCompleted            WorkflowState = "Completed"
	WorkflowStateCancelled            WorkflowState = "Cancelled"
	WorkflowStateRetrying             WorkflowState = "Retrying"
	WorkflowStateFailed               WorkflowState = "Failed"
)

// Document represents a single ingested document.
// It may be enriched with a whole-document embedding and chunk embeddings
// during processing.
type Document struct {
	Id                    ID
	Name                  string // Original filename or title
	Category              string
	Owner                 string    // Visibility scope for search
	Contents              string    // Extracted text
	Vector                []float32 // Whole-document embedding (populated by the pipeline)
	Dim                   EmbeddingDim
	ChunkStatus           ChunkEmbeddingStatus
	WorkflowState         WorkflowState
	PreviousWorkflowState WorkflowState
	RetryCount            int
	MaxRetries            int
	NextRetryAt           time.Time
	LastError             string // Most recent processing error, for diagnostics
	InsertedAt            time.Time
	UpdatedAt             time.Time
}

// HasEmbedding reports whether the document has a whole-document embedding.
func (d *Document) HasEmbedding() bool {
	return len(d.Vector) > 0
}

// DocumentChunk is a contiguous sub-span of a document's text, embedded and
// searched independently of the whole document.
type DocumentChunk struct {
	Id          ID
	DocumentId  ID
	ChunkIndex  int // 0-based, contiguous per document
	Contents    string
	StartOffset int // Byte offset into the document's extracted text
	EndOffset   int
	Vector      []float32
	Dim         EmbeddingDim
	InsertedAt  time.Time
	UpdatedAt   time.Time
}

// HasEmbedding reports whether the chunk has an embedding.
func (c *DocumentChunk) HasEmbedding() bool {
	return len(c.Vector) > 0
}

// SimilarityMatch represents a raw hit from vector similarity search.
// ChunkId is zero for document-level hits.
type SimilarityMatch struct {
	DocumentId ID
	ChunkId    ID
	Score      float32
}

// SearchResult represents a search result with the matched document, the
// chunk that matched (nil for document-level hits), and a relevance score.
type SearchResult struct {
	Document *Document
	Chunk    *DocumentChunk
	Score    float32
}
