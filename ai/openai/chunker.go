package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/docsearch/ai"
	"github.com/tmc/langchaingo/textsplitter"
)

// Chunker implements ai.Chunker using recursive character splitting.
// It splits text on paragraph and sentence boundaries where possible,
// falling back to hard character splits for pathological inputs.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
	logger   *slog.Logger
}

// newChunker is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newChunker(config *ai.Config) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(config.ChunkSize),
		textsplitter.WithChunkOverlap(config.ChunkOverlap),
	)

	return &Chunker{
		splitter: splitter,
		logger:   slog.Default().With("component", "chunker"),
	}, nil
}

// NewChunker creates a new chunker using the provided configuration.
//
// Returns ai.Chunker interface to enforce abstraction.
func NewChunker(config *ai.Config) (ai.Chunker, error) {
	return newChunker(config)
}

// Split divides text into overlapping chunks suitable for embedding.
// Whitespace-only input yields no chunks. Byte offsets are resolved by
// locating each chunk in the source text; with overlapping chunks the
// search resumes from the start of the previous chunk so repeated
// passages map to the correct occurrence.
func (c *Chunker) Split(ctx context.Context, text string) ([]ai.TextChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pieces, err := c.splitter.SplitText(text)
	if err != nil {
		c.logger.Error("text splitting failed", "length", len(text), "err", err)
		return nil, err
	}

	chunks := make([]ai.TextChunk, 0, len(pieces))
	searchFrom := 0
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}

		start := strings.Index(text[searchFrom:], piece)
		if start < 0 {
			// Splitter may trim whitespace; fall back to a full-text search
			// before giving up on offsets for this piece.
			start = strings.Index(text, piece)
			if start < 0 {
				c.logger.Warn("chunk not found in source text, skipping offsets", "length", len(piece))
				chunks = append(chunks, ai.TextChunk{Contents: piece, Start: 0, End: len(piece)})
				continue
			}
		} else {
			start += searchFrom
		}

		chunks = append(chunks, ai.TextChunk{
			Contents: piece,
			Start:    start,
			End:      start + len(piece),
		})
		searchFrom = start
	}

	c.logger.Debug("split text into chunks", "length", len(text), "chunks", len(chunks))
	return chunks, nil
}
