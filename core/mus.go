package core

import (
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for the stored domain types. The Marshal,
// Unmarshal, Size and Skip methods follow the mus-go hand-written serializer
// convention so the types satisfy mus.Serializer.

var vectorMUS = ord.NewSliceSer[float32](raw.Float32)

const zeroTimeSentinel = math.MinInt64

func marshalTime(t time.Time, bs []byte) int {
	if t.IsZero() {
		return raw.Int64.Marshal(zeroTimeSentinel, bs)
	}
	return raw.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	micros, n, err := raw.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	if micros == zeroTimeSentinel {
		return time.Time{}, n, nil
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	return raw.Int64.Size(t.UnixMicro())
}

// idMUS serializes IDs as varints.
type idMUS struct{}

// IDMUS is the serializer for ID values.
var IDMUS = idMUS{}

func (idMUS) Marshal(id ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(id ID) int {
	return varint.Uint64.Size(uint64(id))
}

func (idMUS) Skip(bs []byte) (int, error) {
	return varint.Uint64.Skip(bs)
}

// documentMUS serializes Document values.
type documentMUS struct{}

// DocumentMUS is the serializer for Document values.
var DocumentMUS = documentMUS{}

func (documentMUS) Marshal(d Document, bs []byte) (n int) {
	n = IDMUS.Marshal(d.Id, bs)
	n += ord.String.Marshal(d.Name, bs[n:])
	n += ord.String.Marshal(d.Category, bs[n:])
	n += ord.String.Marshal(d.Owner, bs[n:])
	n += ord.String.Marshal(d.Contents, bs[n:])
	n += vectorMUS.Marshal(d.Vector, bs[n:])
	n += varint.Int.Marshal(int(d.Dim), bs[n:])
	n += varint.Int.Marshal(int(d.ChunkStatus), bs[n:])
	n += ord.String.Marshal(string(d.WorkflowState), bs[n:])
	n += ord.String.Marshal(string(d.PreviousWorkflowState), bs[n:])
	n += varint.Int.Marshal(d.RetryCount, bs[n:])
	n += varint.Int.Marshal(d.MaxRetries, bs[n:])
	n += marshalTime(d.NextRetryAt, bs[n:])
	n += ord.String.Marshal(d.LastError, bs[n:])
	n += marshalTime(d.InsertedAt, bs[n:])
	n += marshalTime(d.UpdatedAt, bs[n:])
	return n
}

func (documentMUS) Unmarshal(bs []byte) (d Document, n int, err error) {
	var n1 int
	d.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	d.Name, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.Category, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.Owner, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.Contents, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.Vector, n1, err = vectorMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var num int
	num, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.Dim = EmbeddingDim(num)
	num, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.ChunkStatus = ChunkEmbeddingStatus(num)
	var str string
	str, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.WorkflowState = WorkflowState(str)
	str, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.PreviousWorkflowState = WorkflowState(str)
	d.RetryCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.MaxRetries, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.NextRetryAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.LastError, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.InsertedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (documentMUS) Size(d Document) (size int) {
	size = IDMUS.Size(d.Id)
	size += ord.String.Size(d.Name)
	size += ord.String.Size(d.Category)
	size += ord.String.Size(d.Owner)
	size += ord.String.Size(d.Contents)
	size += vectorMUS.Size(d.Vector)
	size += varint.Int.Size(int(d.Dim))
	size += varint.Int.Size(int(d.ChunkStatus))
	size += ord.String.Size(string(d.WorkflowState))
	size += ord.String.Size(string(d.PreviousWorkflowState))
	size += varint.Int.Size(d.RetryCount)
	size += varint.Int.Size(d.MaxRetries)
	size += sizeTime(d.NextRetryAt)
	size += ord.String.Size(d.LastError)
	size += sizeTime(d.InsertedAt)
	size += sizeTime(d.UpdatedAt)
	return size
}

func (s documentMUS) Skip(bs []byte) (n int, err error) {
	var d Document
	d, n, err = s.Unmarshal(bs)
	_ = d
	return
}

// documentChunkMUS serializes DocumentChunk values.
type documentChunkMUS struct{}

// DocumentChunkMUS is the serializer for DocumentChunk values.
var DocumentChunkMUS = documentChunkMUS{}

func (documentChunkMUS) Marshal(c DocumentChunk, bs []byte) (n int) {
	n = IDMUS.Marshal(c.Id, bs)
	n += IDMUS.Marshal(c.DocumentId, bs[n:])
	n += varint.Int.Marshal(c.ChunkIndex, bs[n:])
	n += ord.String.Marshal(c.Contents, bs[n:])
	n += varint.Int.Marshal(c.StartOffset, bs[n:])
	n += varint.Int.Marshal(c.EndOffset, bs[n:])
	n += vectorMUS.Marshal(c.Vector, bs[n:])
	n += varint.Int.Marshal(int(c.Dim), bs[n:])
	n += marshalTime(c.InsertedAt, bs[n:])
	n += marshalTime(c.UpdatedAt, bs[n:])
	return n
}

func (documentChunkMUS) Unmarshal(bs []byte) (c DocumentChunk, n int, err error) {
	var n1 int
	c.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	c.DocumentId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.ChunkIndex, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.Contents, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.StartOffset, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.EndOffset, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.Vector, n1, err = vectorMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var num int
	num, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.Dim = EmbeddingDim(num)
	c.InsertedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (documentChunkMUS) Size(c DocumentChunk) (size int) {
	size = IDMUS.Size(c.Id)
	size += IDMUS.Size(c.DocumentId)
	size += varint.Int.Size(c.ChunkIndex)
	size += ord.String.Size(c.Contents)
	size += varint.Int.Size(c.StartOffset)
	size += varint.Int.Size(c.EndOffset)
	size += vectorMUS.Size(c.Vector)
	size += varint.Int.Size(int(c.Dim))
	size += sizeTime(c.InsertedAt)
	size += sizeTime(c.UpdatedAt)
	return size
}

func (s documentChunkMUS) Skip(bs []byte) (n int, err error) {
	var c DocumentChunk
	c, n, err = s.Unmarshal(bs)
	_ = c
	return
}
