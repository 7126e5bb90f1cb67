package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/docsearch/core"
)

// Key prefixes for different data types
const (
	documentPrefix       = "docrec"
	documentRecentPrefix = "docrecu"
	documentIDSeq        = "docrecseq"
	chunkPrefix          = "chkrec"
	chunkIDSeq           = "chkrecseq"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentPrefix, id))
}

// makeDocumentRecentKey generates a composite key for the recency index.
// Format: prefix:updatedAt:id
func makeDocumentRecentKey(updatedAt time.Time, id core.ID) []byte {
	prefix := documentRecentPrefix + ":"
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+16) // 8 bytes timestamp + 8 bytes ID
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(updatedAt.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialDocumentRecentKey generates a partial key for recency seeks.
// Format: prefix:updatedAt
func makePartialDocumentRecentKey(updatedAt time.Time) []byte {
	prefix := documentRecentPrefix + ":"
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(updatedAt.UnixMicro()))
	return buf
}

// makeChunkKey generates a composite key for a chunk.
// Format: prefix:documentID:chunkIndex, BigEndian so that a full keyspace
// scan yields (document id, chunk index) order and a per-document prefix
// scan yields chunk index order.
func makeChunkKey(documentID core.ID, chunkIndex int) []byte {
	prefix := chunkPrefix + ":"
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+16) // 8 bytes documentID + 8 bytes index
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(chunkIndex))
	return buf
}

// makePartialChunkKey generates a partial key for per-document chunk scans.
// Format: prefix:documentID
func makePartialChunkKey(documentID core.ID) []byte {
	prefix := chunkPrefix + ":"
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentID))
	return buf
}
