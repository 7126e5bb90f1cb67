// Package pipeline provides the background loop that produces embeddings
// for documents and chunks.
//
// The Pipeline type runs one cycle per interval. A cycle drains the
// workflow retry queue, embeds and chunks pending documents, then embeds
// any chunks still missing vectors and flips finished documents to
// Completed. Per-item failures are logged and retried on later cycles;
// only a failure to persist already-computed embeddings is treated as
// cycle-fatal and counted by the circuit breaker, which skips cycles after
// repeated failures and probes again once its open duration passes.
package pipeline
