package mock

import (
	"context"
	"strings"
	"unicode"

	"github.com/poiesic/docsearch/ai"
)

// MockChunker is a test double for ai.Chunker.
// It allows custom behavior injection via function fields.
type MockChunker struct {
	// SplitFunc is called by Split if set.
	// If nil, uses default sentence-per-chunk behavior.
	SplitFunc func(ctx context.Context, text string) ([]ai.TextChunk, error)

	callCount int
}

// NewMockChunker creates a mock chunker with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockChunker().
func NewMockChunker() *MockChunker {
	return &MockChunker{}
}

// Split divides text into one chunk per sentence.
// Whitespace-only input yields no chunks, matching the production contract.
func (m *MockChunker) Split(ctx context.Context, text string) ([]ai.TextChunk, error) {
	m.callCount++

	if m.SplitFunc != nil {
		return m.SplitFunc(ctx, text)
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var chunks []ai.TextChunk
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			piece := text[start : i+1]
			if strings.TrimFunc(piece, unicode.IsSpace) != "" {
				chunks = append(chunks, ai.TextChunk{
					Contents: piece,
					Start:    start,
					End:      i + 1,
				})
			}
			start = i + 1
		}
	}
	if strings.TrimSpace(text[start:]) != "" {
		chunks = append(chunks, ai.TextChunk{
			Contents: text[start:],
			Start:    start,
			End:      len(text),
		})
	}
	return chunks, nil
}

// CallCount returns the number of times Split was called.
func (m *MockChunker) CallCount() int {
	return m.callCount
}

// Reset clears the call count and injected behavior.
func (m *MockChunker) Reset() {
	m.callCount = 0
	m.SplitFunc = nil
}
