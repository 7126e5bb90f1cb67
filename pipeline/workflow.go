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
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/docsearch/core"
	"github.com/poiesic/docsearch/storage"
)

// RetryTarget computes the workflow state a failed document resumes in.
// Terminal and confirmation states map back to the stage that produces
// their input; any other recorded state resumes unchanged, and a document
// with no recorded prior state starts over at extraction.
func RetryTarget(previous core.WorkflowState) core.WorkflowState {
	switch previous {
	case core.WorkflowStateAwaitingConfirmation:
		return core.WorkflowStateAnalyzing
	case core.WorkflowStateCompleted, core.WorkflowStateCancelled:
		return core.WorkflowStateExtracting
	case "":
		return core.WorkflowStateExtracting
	default:
		return previous
	}
}

// Workflow manages document workflow state transitions and retry scheduling.
// The retry queue is implicit: candidates are re-derived each cycle from the
// workflow fields persisted on each document.
type Workflow interface {
	// DueForRetry returns up to limit documents whose workflow fields mark
	// them due for retry at the given instant.
	DueForRetry(ctx context.Context, now time.Time, limit int) ([]*core.Document, error)

	// Transition moves a document to the given workflow state and persists
	// it. Moving out of the Failed state clears the retry schedule.
	Transition(ctx context.Context, doc *core.Document, state core.WorkflowState) error

	// ScheduleRetry records a processing failure: the document moves to the
	// Failed state with its prior state preserved for resumption, the retry
	// count is incremented, and the next attempt is scheduled with
	// exponential backoff.
	ScheduleRetry(ctx context.Context, doc *core.Document, cause error) error
}

// StoreWorkflow is a Workflow backed by the document repository.
type StoreWorkflow struct {
	documents storage.DocumentRepository
	baseDelay time.Duration
	logger    *slog.Logger
}

// NewStoreWorkflow creates a Workflow persisting state through the given
// repository. baseDelay is the first retry delay; it doubles per attempt.
func NewStoreWorkflow(documents storage.DocumentRepository, baseDelay time.Duration, logger *slog.Logger) (*StoreWorkflow, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreWorkflow{
		documents: documents,
		baseDelay: baseDelay,
		logger:    logger.With("component", "workflow"),
	}, nil
}

// DueForRetry returns documents due for retry, bounded by limit.
func (w *StoreWorkflow) DueForRetry(ctx context.Context, now time.Time, limit int) ([]*core.Document, error) {
	return w.documents.GetRetryDue(ctx, now, limit)
}

// Transition moves the document to state and persists it. On a failed
// write the in-memory document is restored so it keeps reflecting the
// stored state.
func (w *StoreWorkflow) Transition(ctx context.Context, doc *core.Document, state core.WorkflowState) error {
	prevState := doc.WorkflowState
	prevRetryAt := doc.NextRetryAt
	prevLastError := doc.LastError

	doc.WorkflowState = state
	if prevState == core.WorkflowStateFailed && state != core.WorkflowStateFailed {
		doc.NextRetryAt = time.Time{}
		doc.LastError = ""
	}

	_, err := w.documents.UpdateDocuments(ctx, doc)
	if err != nil {
		doc.WorkflowState = prevState
		doc.NextRetryAt = prevRetryAt
		doc.LastError = prevLastError
		return err
	}

	w.logger.Debug("workflow transition", "document", doc.Id, "state", state)
	return nil
}

// ScheduleRetry marks the document failed and schedules the next attempt.
func (w *StoreWorkflow) ScheduleRetry(ctx context.Context, doc *core.Document, cause error) error {
	// Preserve the pre-failure state so RetryTarget can resume there.
	// Failed and Retrying are transient and never resumable targets, so
	// neither overwrites the recorded state.
	if doc.WorkflowState != core.WorkflowStateFailed && doc.WorkflowState != core.WorkflowStateRetrying {
		doc.PreviousWorkflowState = doc.WorkflowState
	}
	doc.WorkflowState = core.WorkflowStateFailed
	doc.RetryCount++
	if cause != nil {
		doc.LastError = cause.Error()
	}

	// Exponential backoff: baseDelay * 2^(RetryCount-1)
	delay := w.baseDelay
	for i := 1; i < doc.RetryCount; i++ {
		delay *= 2
	}
	doc.NextRetryAt = time.Now().UTC().Add(delay)

	_, err := w.documents.UpdateDocuments(ctx, doc)
	if err != nil {
		return err
	}

	w.logger.Warn("retry scheduled",
		"document", doc.Id,
		"attempt", doc.RetryCount,
		"maxRetries", doc.MaxRetries,
		"nextRetryAt", doc.NextRetryAt,
		"err", cause)
	return nil
}
