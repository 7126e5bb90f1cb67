// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Name must not be empty
//   - Vector, if present, must match a whitelisted dimension and the
//     declared Dim field
//
// NOT validated (populated by the pipeline):
//   - Contents (connectors may deliver text after creation)
//   - ChunkStatus and workflow fields
//   - ID (0 is valid from database sequences)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyName)
	}

	if doc.HasEmbedding() {
		if err := ValidateVector(doc.Vector, doc.Dim); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
	}

	return nil
}

// ValidateChunk validates a DocumentChunk according to domain rules.
//
// Validation rules:
//   - DocumentId must be set
//   - Contents must not be empty
//   - ChunkIndex must not be negative
//   - StartOffset must not exceed EndOffset
//   - Vector, if present, must match a whitelisted dimension and the
//     declared Dim field
func ValidateChunk(chunk *DocumentChunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.DocumentId == 0 {
		return fmt.Errorf("%w: document id required", ErrInvalidChunk)
	}

	if chunk.Contents == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if chunk.ChunkIndex < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrNegativeChunkIndex)
	}

	if chunk.StartOffset > chunk.EndOffset {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrInvalidOffsets)
	}

	if chunk.HasEmbedding() {
		if err := ValidateVector(chunk.Vector, chunk.Dim); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidChunk, err)
		}
	}

	return nil
}

// ValidateVector checks a vector against the dimension whitelist and the
// declared dimension.
func ValidateVector(vector []float32, dim EmbeddingDim) error {
	parsed, err := ParseDim(len(vector))
	if err != nil {
		return fmt.Errorf("%w: length %d", err, len(vector))
	}
	if dim != DimNone && dim != parsed {
		return fmt.Errorf("%w: declared %d, actual %d", ErrDimensionMismatch, dim, parsed)
	}
	return nil
}
