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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidChunk indicates a DocumentChunk failed validation.
	ErrInvalidChunk = errors.New("invalid document chunk")

	// ErrEmptyContent indicates the Contents field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyName indicates the document Name field is empty.
	ErrEmptyName = errors.New("document name cannot be empty")

	// ErrUnsupportedDimension indicates an embedding dimension outside the
	// supported whitelist (768, 1536).
	ErrUnsupportedDimension = errors.New("unsupported embedding dimension")

	// ErrDimensionMismatch indicates a vector whose length does not match
	// its declared dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNegativeChunkIndex indicates a chunk with a negative index.
	ErrNegativeChunkIndex = errors.New("chunk index cannot be negative")

	// ErrInvalidOffsets indicates chunk byte offsets that are out of order.
	ErrInvalidOffsets = errors.New("chunk offsets out of order")
)
