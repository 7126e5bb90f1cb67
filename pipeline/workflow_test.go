package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/docsearch/core"
	"github.com/poiesic/docsearch/storage"
	"github.com/poiesic/docsearch/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyDocumentRepository fails a fixed number of update calls before
// delegating normally.
type flakyDocumentRepository struct {
	storage.DocumentRepository
	failUpdates int
}

func (r *flakyDocumentRepository) UpdateDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error) {
	if r.failUpdates > 0 {
		r.failUpdates--
		return nil, errors.New("store unavailable")
	}
	return r.DocumentRepository.UpdateDocuments(ctx, docs...)
}

func TestRetryTarget(t *testing.T) {
	tests := []struct {
		name     string
		previous core.WorkflowState
		expected core.WorkflowState
	}{
		{"awaiting confirmation resumes analysis", core.WorkflowStateAwaitingConfirmation, core.WorkflowStateAnalyzing},
		{"completed starts over", core.WorkflowStateCompleted, core.WorkflowStateExtracting},
		{"cancelled starts over", core.WorkflowStateCancelled, core.WorkflowStateExtracting},
		{"extracting resumes unchanged", core.WorkflowStateExtracting, core.WorkflowStateExtracting},
		{"analyzing resumes unchanged", core.WorkflowStateAnalyzing, core.WorkflowStateAnalyzing},
		{"absent starts over", core.WorkflowState(""), core.WorkflowStateExtracting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RetryTarget(tt.previous))
		})
	}
}

func TestStoreWorkflowScheduleRetry(t *testing.T) {
	documents, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	workflow, err := NewStoreWorkflow(documents, time.Minute, nil)
	require.NoError(t, err)

	ctx := context.Background()
	added, err := documents.AddDocuments(ctx, &core.Document{
		Name:          "report.txt",
		Contents:      "some text",
		WorkflowState: core.WorkflowStateAnalyzing,
		MaxRetries:    3,
	})
	require.NoError(t, err)
	doc := added[0]

	before := time.Now().UTC()
	require.NoError(t, workflow.ScheduleRetry(ctx, doc, errors.New("embedding service down")))

	stored, err := documents.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.WorkflowStateFailed, stored.WorkflowState)
	assert.Equal(t, core.WorkflowStateAnalyzing, stored.PreviousWorkflowState)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, "embedding service down", stored.LastError)
	assert.True(t, stored.NextRetryAt.After(before), "retry should be scheduled in the future")

	// A second failure keeps the original pre-failure state and backs off further.
	firstRetryAt := stored.NextRetryAt
	require.NoError(t, workflow.ScheduleRetry(ctx, stored, errors.New("still down")))

	stored, err = documents.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.WorkflowStateAnalyzing, stored.PreviousWorkflowState)
	assert.Equal(t, 2, stored.RetryCount)
	assert.True(t, stored.NextRetryAt.After(firstRetryAt))
}

func TestStoreWorkflowTransitionClearsRetrySchedule(t *testing.T) {
	documents, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	workflow, err := NewStoreWorkflow(documents, time.Minute, nil)
	require.NoError(t, err)

	ctx := context.Background()
	added, err := documents.AddDocuments(ctx, &core.Document{
		Name:                  "report.txt",
		Contents:              "some text",
		WorkflowState:         core.WorkflowStateFailed,
		PreviousWorkflowState: core.WorkflowStateCompleted,
		RetryCount:            1,
		MaxRetries:            3,
		NextRetryAt:           time.Now().UTC().Add(-time.Minute),
		LastError:             "boom",
	})
	require.NoError(t, err)
	doc := added[0]

	require.NoError(t, workflow.Transition(ctx, doc, core.WorkflowStateExtracting))

	stored, err := documents.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.WorkflowStateExtracting, stored.WorkflowState)
	assert.True(t, stored.NextRetryAt.IsZero(), "leaving Failed should clear the retry schedule")
	assert.Empty(t, stored.LastError)
}

func TestStoreWorkflowTransitionFailureKeepsResumeState(t *testing.T) {
	documents, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	flaky := &flakyDocumentRepository{DocumentRepository: documents}
	workflow, err := NewStoreWorkflow(flaky, time.Minute, nil)
	require.NoError(t, err)

	ctx := context.Background()
	added, err := documents.AddDocuments(ctx, &core.Document{
		Name:                  "report.txt",
		Contents:              "some text",
		WorkflowState:         core.WorkflowStateFailed,
		PreviousWorkflowState: core.WorkflowStateAwaitingConfirmation,
		RetryCount:            1,
		MaxRetries:            5,
		NextRetryAt:           time.Now().UTC().Add(-time.Minute),
	})
	require.NoError(t, err)
	doc := added[0]

	// A retry attempt whose Failed->Retrying write fails must not touch
	// the in-memory state; otherwise the follow-up ScheduleRetry would
	// record Retrying as the state to resume in.
	flaky.failUpdates = 1
	err = workflow.Transition(ctx, doc, core.WorkflowStateRetrying)
	require.Error(t, err)
	assert.Equal(t, core.WorkflowStateFailed, doc.WorkflowState)

	require.NoError(t, workflow.ScheduleRetry(ctx, doc, err))

	stored, err := documents.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.WorkflowStateAwaitingConfirmation, stored.PreviousWorkflowState)

	// The next attempt resumes where the document originally failed.
	require.NoError(t, workflow.Transition(ctx, stored, core.WorkflowStateRetrying))
	require.NoError(t, workflow.Transition(ctx, stored, RetryTarget(stored.PreviousWorkflowState)))

	stored, err = documents.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.WorkflowStateAnalyzing, stored.WorkflowState)
}

func TestStoreWorkflowScheduleRetryDuringRetrying(t *testing.T) {
	documents, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	workflow, err := NewStoreWorkflow(documents, time.Minute, nil)
	require.NoError(t, err)

	ctx := context.Background()
	added, err := documents.AddDocuments(ctx, &core.Document{
		Name:                  "report.txt",
		Contents:              "some text",
		WorkflowState:         core.WorkflowStateRetrying,
		PreviousWorkflowState: core.WorkflowStateAnalyzing,
		RetryCount:            1,
		MaxRetries:            5,
	})
	require.NoError(t, err)

	// Failing mid-retry keeps the original resume state; Retrying is not
	// a state a document can resume in.
	require.NoError(t, workflow.ScheduleRetry(ctx, added[0], errors.New("boom")))

	stored, err := documents.GetDocument(ctx, added[0].Id)
	require.NoError(t, err)
	assert.Equal(t, core.WorkflowStateFailed, stored.WorkflowState)
	assert.Equal(t, core.WorkflowStateAnalyzing, stored.PreviousWorkflowState)
}

func TestStoreWorkflowDueForRetry(t *testing.T) {
	documents, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	workflow, err := NewStoreWorkflow(documents, time.Minute, nil)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now().UTC()

	due := &core.Document{
		Name: "due.txt", Contents: "x",
		WorkflowState: core.WorkflowStateFailed,
		RetryCount:    1, MaxRetries: 3,
		NextRetryAt: now.Add(-time.Minute),
	}
	notYet := &core.Document{
		Name: "later.txt", Contents: "x",
		WorkflowState: core.WorkflowStateFailed,
		RetryCount:    1, MaxRetries: 3,
		NextRetryAt: now.Add(time.Hour),
	}
	exhausted := &core.Document{
		Name: "exhausted.txt", Contents: "x",
		WorkflowState: core.WorkflowStateFailed,
		RetryCount:    3, MaxRetries: 3,
		NextRetryAt: now.Add(-time.Minute),
	}
	_, err = documents.AddDocuments(ctx, due, notYet, exhausted)
	require.NoError(t, err)

	found, err := workflow.DueForRetry(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, due.Id, found[0].Id)
}
