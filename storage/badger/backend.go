package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/docsearch/core"
	"github.com/poiesic/docsearch/storage"
)

const (
	defaultSequenceBandwidth = 100
)

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist.
func OpenBackend(filePath string, inMemory bool) (*Backend, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// Ensure directory exists
		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(filePath, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(filePath)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	opts.Logger = &badgerLoggerAdapter{logger: slog.Default()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:     db,
		logger: slog.Default(),
	}, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction.
// The transaction is automatically discarded if fn returns an error.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// GetSequence returns a BadgerDB sequence for generating sequential IDs.
func (b *Backend) GetSequence(name string) (*badger.Sequence, error) {
	return b.db.GetSequence([]byte(name), defaultSequenceBandwidth)
}

// WithTransaction executes a function within a transaction.
// Implements the storage.Repository transaction contract.
func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return b.WithTx(func(tx *badger.Txn) error {
		if err := fn(ctx); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

var _ storage.NativeVectorSearcher = (*Backend)(nil)

// FindSimilarDocuments finds documents whose whole-document embedding is
// similar to the given vector. This is the backend-native similarity
// primitive: filtering and sorting happen inside the storage layer. A
// non-empty owner restricts matches to that owner's documents.
func (b *Backend) FindSimilarDocuments(ctx context.Context, vector []float32, dim core.EmbeddingDim, owner string, minSimilarity float32, limit int) ([]core.SimilarityMatch, error) {
	if _, err := core.ParseDim(int(dim)); err != nil {
		return nil, storage.ErrVectorSearchUnsupported
	}

	var results []core.SimilarityMatch
	err := b.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

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
			if doc == nil || len(doc.Vector) != int(dim) {
				continue
			}
			if owner != "" && doc.Owner != owner {
				continue
			}

			similarity := core.Cosine(vector, doc.Vector)
			if similarity >= minSimilarity {
				results = append(results, core.SimilarityMatch{
					DocumentId: doc.Id,
					Score:      similarity,
				})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sortMatches(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// FindSimilarChunks finds chunks whose embedding is similar to the given
// vector. See FindSimilarDocuments. Owner scoping resolves each chunk's
// owning document inside the same transaction, memoized per document.
func (b *Backend) FindSimilarChunks(ctx context.Context, vector []float32, dim core.EmbeddingDim, owner string, minSimilarity float32, limit int) ([]core.SimilarityMatch, error) {
	if _, err := core.ParseDim(int(dim)); err != nil {
		return nil, storage.ErrVectorSearchUnsupported
	}

	var results []core.SimilarityMatch
	err := b.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		owners := make(map[core.ID]string)

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.DocumentChunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if chunk == nil || len(chunk.Vector) != int(dim) {
				continue
			}
			if owner != "" {
				docOwner, err := b.documentOwner(tx, owners, chunk.DocumentId)
				if err != nil {
					return err
				}
				if docOwner != owner {
					continue
				}
			}

			similarity := core.Cosine(vector, chunk.Vector)
			if similarity >= minSimilarity {
				results = append(results, core.SimilarityMatch{
					DocumentId: chunk.DocumentId,
					ChunkId:    chunk.Id,
					Score:      similarity,
				})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sortMatches(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// documentOwner resolves a document's owner within the transaction, memoized
// in owners. An orphaned chunk resolves to the empty owner.
func (b *Backend) documentOwner(tx *badger.Txn, owners map[core.ID]string, id core.ID) (string, error) {
	if owner, ok := owners[id]; ok {
		return owner, nil
	}

	item, err := tx.Get(makeDocumentKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			owners[id] = ""
			return "", nil
		}
		return "", err
	}

	var owner string
	err = item.Value(func(val []byte) error {
		doc, err := storage.UnmarshalDocument(val)
		if err != nil {
			return err
		}
		owner = doc.Owner
		return nil
	})
	if err != nil {
		return "", err
	}

	owners[id] = owner
	return owner, nil
}

// sortMatches sorts by similarity descending, ties broken by document id
// ascending then chunk id ascending for deterministic ordering.
func sortMatches(matches []core.SimilarityMatch) {
	slices.SortFunc(matches, func(a, b core.SimilarityMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		if a.DocumentId != b.DocumentId {
			if a.DocumentId < b.DocumentId {
				return -1
			}
			return 1
		}
		if a.ChunkId < b.ChunkId {
			return -1
		}
		if a.ChunkId > b.ChunkId {
			return 1
		}
		return 0
	})
}
