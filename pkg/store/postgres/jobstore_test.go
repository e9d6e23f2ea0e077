package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/store"
)

func TestJobStore_CreateGetClaimComplete(t *testing.T) {
	db := newTestDB(t)
	s := NewJobStore(db)
	ctx := context.Background()

	created, err := s.Create(ctx, &job.Job{Spec: job.Spec{Type: job.TypeRAGIngest, Query: "q"}})
	require.NoError(t, err)
	assert.Equal(t, job.StatusQueued, created.Status)

	claimed, err := s.ClaimQueued(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, job.StatusRunning, claimed[0].Status)

	require.NoError(t, s.UpdateProgress(ctx, created.ID, job.StatusRunning, job.StatusRunning, 0.5, "halfway"))
	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.Progress)
	assert.Len(t, got.Logs, 1)

	require.NoError(t, s.Complete(ctx, created.ID, job.StatusSucceeded, "done", map[string]any{"ok": true}, ""))
	got, err = s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusSucceeded, got.Status)
	assert.Equal(t, 1.0, got.Progress)
	assert.Equal(t, true, got.Result["ok"])
}

func TestJobStore_UpdateProgressConflictsOnStaleStatus(t *testing.T) {
	db := newTestDB(t)
	s := NewJobStore(db)
	ctx := context.Background()

	created, err := s.Create(ctx, &job.Job{Spec: job.Spec{Type: job.TypeRAGIngest}})
	require.NoError(t, err)

	err = s.UpdateProgress(ctx, created.ID, job.StatusRunning, job.StatusRunning, 0.3, "should not apply")
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestJobStore_CancelNotTerminal(t *testing.T) {
	db := newTestDB(t)
	s := NewJobStore(db)
	ctx := context.Background()

	created, err := s.Create(ctx, &job.Job{Spec: job.Spec{Type: job.TypeRAGIngest}})
	require.NoError(t, err)

	require.NoError(t, s.Cancel(ctx, created.ID))
	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCancelled, got.Status)

	require.NoError(t, s.Complete(ctx, created.ID, job.StatusSucceeded, "too late", nil, ""))
	got, err = s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusSucceeded, got.Status, "Complete unconditionally overwrites; orchestrator checks Cancel before dispatching the next stage")
}
