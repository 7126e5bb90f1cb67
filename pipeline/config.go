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


package pipeline

import (
	"errors"
	"time"

	"github.com/poiesic/docsearch/core"
)

// Config holds tuning parameters for the embedding pipeline.
type Config struct {
	// ProcessingInterval is the sleep between cycles. Default: 30s.
	ProcessingInterval time.Duration

	// MaxBatchSize bounds the documents processed per cycle. Default: 10.
	MaxBatchSize int

	// MaxChunkBatchSize bounds the chunks embedded per cycle. Default: 50.
	MaxChunkBatchSize int

	// MaxRetryBatchSize bounds the retry-queue drain per cycle. Default: 10.
	MaxRetryBatchSize int

	// FailureThreshold is the number of consecutive cycle-fatal failures
	// before the circuit breaker opens. Default: 5.
	FailureThreshold int

	// OpenDuration is how long the breaker stays open before a half-open
	// probe cycle is allowed. Default: 60s.
	OpenDuration time.Duration

	// EnableRetryQueue controls whether the workflow retry queue is drained
	// at the start of each cycle. Default: true.
	EnableRetryQueue bool

	// EmbeddingDim is the dimension of the configured embedding model.
	// Embeddings of any other dimension are rejected as validation errors.
	// Default: Dim768.
	EmbeddingDim core.EmbeddingDim

	// PoolSize is the worker pool size for per-chunk embedding. Size 1
	// keeps batch ordering deterministic. Default: 1.
	PoolSize int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProcessingInterval sets the sleep between cycles.
func WithProcessingInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.ProcessingInterval = d
	}
}

// WithBatchSizes sets the per-cycle document, chunk, and retry batch bounds.
func WithBatchSizes(documents, chunks, retries int) ConfigOption {
	return func(c *Config) {
		c.MaxBatchSize = documents
		c.MaxChunkBatchSize = chunks
		c.MaxRetryBatchSize = retries
	}
}

// WithCircuitBreaker sets the breaker failure threshold and open duration.
func WithCircuitBreaker(threshold int, openDuration time.Duration) ConfigOption {
	return func(c *Config) {
		c.FailureThreshold = threshold
		c.OpenDuration = openDuration
	}
}

// WithRetryQueue enables or disables retry-queue draining.
func WithRetryQueue(enabled bool) ConfigOption {
	return func(c *Config) {
		c.EnableRetryQueue = enabled
	}
}

// WithEmbeddingDim sets the expected embedding dimension.
func WithEmbeddingDim(dim core.EmbeddingDim) ConfigOption {
	return func(c *Config) {
		c.EmbeddingDim = dim
	}
}

// WithPoolSize sets the chunk embedding worker pool size.
func WithPoolSize(size int) ConfigOption {
	return func(c *Config) {
		c.PoolSize = size
	}
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	return &Config{
		ProcessingInterval: 30 * time.Second,
		MaxBatchSize:       10,
		MaxChunkBatchSize:  50,
		MaxRetryBatchSize:  10,
		FailureThreshold:   5,
		OpenDuration:       60 * time.Second,
		EnableRetryQueue:   true,
		EmbeddingDim:       core.Dim768,
		PoolSize:           1,
	}
}

// NewConfig creates a Config with defaults and applies the provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ProcessingInterval <= 0 {
		return errors.New("pipeline config: ProcessingInterval must be positive")
	}
	if c.MaxBatchSize <= 0 || c.MaxChunkBatchSize <= 0 || c.MaxRetryBatchSize <= 0 {
		return errors.New("pipeline config: batch sizes must be positive")
	}
	if c.FailureThreshold <= 0 {
		return errors.New("pipeline config: FailureThreshold must be positive")
	}
	if c.OpenDuration <= 0 {
		return errors.New("pipeline config: OpenDuration must be positive")
	}
	if _, err := core.ParseDim(int(c.EmbeddingDim)); err != nil {
		return err
	}
	if c.PoolSize <= 0 {
		return errors.New("pipeline config: PoolSize must be positive")
	}
	return nil
}
