package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docsearch/core"
	"github.com/poiesic/docsearch/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var (
	_ storage.DocumentRepository   = (*DocumentRepository)(nil)
	_ storage.NativeVectorSearcher = (*DocumentRepository)(nil)
)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	idSeq, err := backend.GetSequence(documentIDSeq)
	if err != nil {
		return nil, err
	}

	return &DocumentRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *DocumentRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *DocumentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// FindSimilarDocuments exposes the backend's native similarity scan, making
// the repository probeable as a storage.NativeVectorSearcher.
func (r *DocumentRepository) FindSimilarDocuments(ctx context.Context, vector []float32, dim core.EmbeddingDim, owner string, minSimilarity float32, limit int) ([]core.SimilarityMatch, error) {
	return r.backend.FindSimilarDocuments(ctx, vector, dim, owner, minSimilarity, limit)
}

// FindSimilarChunks exposes the backend's native chunk similarity scan.
func (r *DocumentRepository) FindSimilarChunks(ctx context.Context, vector []float32, dim core.EmbeddingDim, owner string, minSimilarity float32, limit int) ([]core.SimilarityMatch, error) {
	return r.backend.FindSimilarChunks(ctx, vector, dim, owner, minSimilarity, limit)
}

// AddDocuments adds one or more documents to storage.
func (r *DocumentRepository) AddDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, doc := range docs {
			if doc.Id == 0 {
				nextID, err := r.idSeq.Next()
				if err != nil {
					return err
				}
				// BadgerDB sequences can return 0 on first call, so we skip it
				if nextID == 0 {
					nextID, err = r.idSeq.Next()
					if err != nil {
						return err
					}
				}
				doc.Id = core.ID(nextID)
			}

			if doc.InsertedAt.IsZero() {
				doc.InsertedAt = time.Now().UTC()
			}
			doc.UpdatedAt = doc.InsertedAt

			// Store primary record
			key := makeDocumentKey(doc.Id)
			if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
				return err
			}

			// Update recency index
			recentKey := makeDocumentRecentKey(doc.UpdatedAt, doc.Id)
			if err := tx.Set(recentKey, storage.MarshalID(doc.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return docs, err
}

// UpdateDocuments updates existing documents.
func (r *DocumentRepository) UpdateDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, doc := range docs {
			key := makeDocumentKey(doc.Id)

			// Read old record to maintain the recency index
			old, err := r.readDocument(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}

			doc.UpdatedAt = time.Now().UTC()

			if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
				return err
			}

			oldRecentKey := makeDocumentRecentKey(old.UpdatedAt, old.Id)
			if err := tx.Delete(oldRecentKey); err != nil {
				return err
			}
			newRecentKey := makeDocumentRecentKey(doc.UpdatedAt, doc.Id)
			if err := tx.Set(newRecentKey, storage.MarshalID(doc.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return docs, err
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readDocument(tx, makeDocumentKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetDocuments retrieves multiple documents by their IDs.
func (r *DocumentRepository) GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error) {
	var result []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			doc, err := r.readDocument(tx, makeDocumentKey(id))
			if err != nil {
				return err
			}
			if doc != nil {
				result = append(result, doc)
			}
		}
		return nil
	}, false)
	return result, err
}

// GetPendingEmbedding retrieves documents with non-empty contents whose
// chunk status is Pending or Processing, in id order.
// Processing documents are included so stuck documents (chunk rows never
// persisted) can be recovered by the caller.
func (r *DocumentRepository) GetPendingEmbedding(ctx context.Context, limit int) ([]*core.Document, error) {
	return r.scanFiltered(limit, func(doc *core.Document) bool {
		if doc.Contents == "" {
			return false
		}
		return doc.ChunkStatus == core.ChunkStatusPending || doc.ChunkStatus == core.ChunkStatusProcessing
	})
}

// GetRetryDue retrieves documents due for retry per their workflow fields.
// The retry queue is this predicate, not a persisted structure.
func (r *DocumentRepository) GetRetryDue(ctx context.Context, now time.Time, limit int) ([]*core.Document, error) {
	return r.scanFiltered(limit, func(doc *core.Document) bool {
		if doc.WorkflowState != core.WorkflowStateFailed {
			return false
		}
		if doc.RetryCount >= doc.MaxRetries {
			return false
		}
		return !doc.NextRetryAt.IsZero() && !doc.NextRetryAt.After(now)
	})
}

// GetRecentDocuments retrieves the N most recently updated documents,
// newest first, using the recency index.
func (r *DocumentRepository) GetRecentDocuments(ctx context.Context, owner string, limit int) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true

		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek to the last possible key in the recency index
		startKey := makePartialDocumentRecentKey(time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC))
		prefix := []byte(documentRecentPrefix + ":")

		for iter.Seek(startKey); iter.Valid() && len(results) < limit; iter.Next() {
			key := iter.Item().Key()
			if len(key) < len(prefix) || slices.Compare(key[:len(prefix)], prefix) != 0 {
				break
			}

			var docID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				docID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			doc, err := r.readDocument(tx, makeDocumentKey(docID))
			if err != nil {
				return err
			}
			if doc == nil {
				continue
			}
			if owner != "" && doc.Owner != owner {
				continue
			}
			results = append(results, doc)
		}
		return nil
	}, false)

	return results, err
}

// ScanDocuments calls fn for every stored document, in id order.
func (r *DocumentRepository) ScanDocuments(ctx context.Context, fn func(*core.Document) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var doc *core.Document
			err := iter.Item().Value(func(val []byte) error {
				var err error
				doc, err = storage.UnmarshalDocument(val)
				return err
			})
			if err != nil {
				return err
			}
			if doc == nil {
				continue
			}
			if err := fn(doc); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// scanFiltered collects up to limit documents matching the predicate,
// ordered by id ascending.
func (r *DocumentRepository) scanFiltered(limit int, match func(*core.Document) bool) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		var collected []*core.Document
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var doc *core.Document
			err := iter.Item().Value(func(val []byte) error {
				var err error
				doc, err = storage.UnmarshalDocument(val)
				return err
			})
			if err != nil {
				return err
			}
			if doc == nil || !match(doc) {
				continue
			}
			collected = append(collected, doc)
		}

		// Primary keys are textual "prefix:id" so iteration order is not
		// numeric; sort by id before applying the limit.
		slices.SortFunc(collected, func(a, b *core.Document) int {
			if a.Id < b.Id {
				return -1
			}
			if a.Id > b.Id {
				return 1
			}
			return 0
		})
		if len(collected) > limit {
			collected = collected[:limit]
		}
		results = collected
		return nil
	}, false)
	return results, err
}

// readDocument reads and unmarshals a document, returning nil if not found.
func (r *DocumentRepository) readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var err error
		doc, err = storage.UnmarshalDocument(val)
		return err
	})
	return doc, err
}
