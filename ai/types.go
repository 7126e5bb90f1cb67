package ai

// TextChunk is a contiguous sub-span of a document's text produced by a
// Chunker. Offsets are byte positions into the source text; End is exclusive.
type TextChunk struct {
	Contents string
	Start    int
	End      int
}
