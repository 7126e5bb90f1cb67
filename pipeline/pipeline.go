package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docsearch/ai"
	"github.com/poiesic/docsearch/core"
	"github.com/poiesic/docsearch/storage"
)

// Pipeline is the background loop that drives document and chunk embedding
// production. It runs as a single dedicated worker: cycles never overlap,
// so the circuit breaker state needs no synchronization.
type Pipeline struct {
	documents storage.DocumentRepository
	chunks    storage.ChunkRepository
	workflow  Workflow
	config    *Config
	breaker   *breaker
	pool      *ants.Pool
	docProc   *documentProcessor
	chunkProc *chunkProcessor
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithConfig sets the pipeline configuration.
// Default is DefaultConfig().
func WithConfig(config *Config) Option {
	return func(p *Pipeline) error {
		if config == nil {
			return errors.New("pipeline config required")
		}
		if err := config.Validate(); err != nil {
			return err
		}
		p.config = config
		return nil
	}
}

// WithWorkflow sets a custom workflow collaborator.
// Default is a StoreWorkflow over the document repository.
func WithWorkflow(workflow Workflow) Option {
	return func(p *Pipeline) error {
		if workflow == nil {
			return errors.New("workflow required")
		}
		p.workflow = workflow
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new embedding pipeline.
func NewPipeline(
	documents storage.DocumentRepository,
	chunks storage.ChunkRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	p := &Pipeline{
		documents: documents,
		chunks:    chunks,
		config:    DefaultConfig(),
		logger:    slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			return nil, optErr
		}
	}

	if p.workflow == nil {
		workflow, err := NewStoreWorkflow(documents, time.Minute, p.logger)
		if err != nil {
			return nil, err
		}
		p.workflow = workflow
	}

	pool, err := ants.NewPool(p.config.PoolSize)
	if err != nil {
		return nil, err
	}
	p.pool = pool

	docProc, err := newDocumentProcessor(documents, chunks,
		provider.Embedder(), provider.Chunker(), p.config.EmbeddingDim, p.logger)
	if err != nil {
		pool.Release()
		return nil, err
	}

	chunkProc, err := newChunkProcessor(documents, chunks,
		provider.Embedder(), p.config.EmbeddingDim, pool, p.logger)
	if err != nil {
		pool.Release()
		return nil, err
	}

	p.breaker = newBreaker(p.config.FailureThreshold, p.config.OpenDuration)
	p.docProc = docProc
	p.chunkProc = chunkProc

	return p, nil
}

// Run executes cycles every ProcessingInterval until ctx is cancelled.
// Mid-batch work already committed when cancellation arrives stays
// committed; the next run re-discovers remaining work from stored state.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("embedding pipeline started",
		"interval", p.config.ProcessingInterval,
		"batchSize", p.config.MaxBatchSize,
		"chunkBatchSize", p.config.MaxChunkBatchSize)

	for {
		p.RunCycle(ctx)

		select {
		case <-ctx.Done():
			p.logger.Info("embedding pipeline stopped")
			return nil
		case <-time.After(p.config.ProcessingInterval):
		}
	}
}

// RunCycle executes a single cycle, honoring the circuit breaker. It is the
// unit the loop repeats and can be called directly for one-shot processing.
func (p *Pipeline) RunCycle(ctx context.Context) {
	now := time.Now()
	if !p.breaker.allow(now) {
		p.logger.Warn("circuit breaker open, skipping cycle",
			"failures", p.breaker.failures,
			"remaining", p.breaker.remaining(now))
		return
	}

	err := p.cycle(ctx)
	switch {
	case err == nil:
		p.breaker.recordSuccess()
	case ctx.Err() != nil:
		// Cancellation is a shutdown, not a collaborator failure.
	default:
		p.breaker.recordFailure(time.Now())
		p.logger.Error("cycle failed",
			"failures", p.breaker.failures,
			"state", p.breaker.state(time.Now()).String(),
			"err", err)
	}
}

// cycle runs the stages in order. Stage failures are logged and do not
// block later stages; only chunk persistence failure is returned.
func (p *Pipeline) cycle(ctx context.Context) error {
	if p.config.EnableRetryQueue {
		if err := p.drainRetryQueue(ctx); err != nil {
			if ctx.Err() != nil {
				return err
			}
			p.logger.Warn("retry queue drain failed", "err", err)
		}
	}

	if err := p.docProc.process(ctx, p.config.MaxBatchSize); err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrChunkPersistFailed) {
			return err
		}
		p.logger.Warn("document stage failed", "err", err)
	}

	if err := p.chunkProc.process(ctx, p.config.MaxChunkBatchSize); err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrChunkPersistFailed) {
			return err
		}
		p.logger.Warn("chunk stage failed", "err", err)
	}

	return nil
}

// drainRetryQueue resumes documents due for retry. A document that fails to
// transition gets its next retry scheduled; nothing here fails the cycle.
func (p *Pipeline) drainRetryQueue(ctx context.Context) error {
	due, err := p.workflow.DueForRetry(ctx, time.Now().UTC(), p.config.MaxRetryBatchSize)
	if err != nil {
		return err
	}

	for _, doc := range due {
		if err := ctx.Err(); err != nil {
			return err
		}

		target := RetryTarget(doc.PreviousWorkflowState)

		// Pass through Retrying first so the transition is visible in the
		// document's workflow history.
		if err := p.workflow.Transition(ctx, doc, core.WorkflowStateRetrying); err != nil {
			p.logger.Warn("retry transition failed", "document", doc.Id, "err", err)
			if serr := p.workflow.ScheduleRetry(ctx, doc, err); serr != nil {
				p.logger.Error("failed to reschedule retry", "document", doc.Id, "err", serr)
			}
			continue
		}
		if err := p.workflow.Transition(ctx, doc, target); err != nil {
			p.logger.Warn("retry transition failed", "document", doc.Id, "target", target, "err", err)
			if serr := p.workflow.ScheduleRetry(ctx, doc, err); serr != nil {
				p.logger.Error("failed to reschedule retry", "document", doc.Id, "err", serr)
			}
			continue
		}

		p.logger.Info("document retried", "document", doc.Id, "target", target)
	}

	return nil
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
