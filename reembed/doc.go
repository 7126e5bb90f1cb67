// Package reembed provides functionality for reembedding stored documents
// and their chunks with a new or updated embedding model, for example when
// migrating between the 768- and 1536-dimensional model families.
//
// This package supports batch processing, progress tracking, retry logic
// with exponential backoff, and vector normalization to ensure
// compatibility with cosine similarity search.
package reembed
