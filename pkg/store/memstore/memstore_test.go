package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/store"
)

func TestJobStore_CreateIsIdempotentOnID(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()

	j1, err := s.Create(ctx, &job.Job{ID: "job-20260731-deadbeef", Spec: job.Spec{Type: job.TypeRAGIngest}})
	require.NoError(t, err)

	j2, err := s.Create(ctx, &job.Job{ID: "job-20260731-deadbeef", Spec: job.Spec{Type: job.TypeVerification}})
	require.NoError(t, err)

	assert.Equal(t, j1.Spec.Type, j2.Spec.Type)
	assert.Equal(t, job.TypeRAGIngest, j2.Spec.Type)
}

func TestJobStore_ClaimQueuedIsCompareAndSet(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	created, err := s.Create(ctx, &job.Job{Spec: job.Spec{Type: job.TypeRAGIngest}})
	require.NoError(t, err)

	claimed, err := s.ClaimQueued(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, job.StatusRunning, claimed[0].Status)

	// A second claim round sees nothing left queued.
	claimedAgain, err := s.ClaimQueued(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, claimedAgain)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusRunning, got.Status)
}

func TestJobStore_UpdateProgressRejectsStaleExpectedStatus(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	created, err := s.Create(ctx, &job.Job{Spec: job.Spec{Type: job.TypeRAGIngest}})
	require.NoError(t, err)
	_, err = s.ClaimQueued(ctx, 10)
	require.NoError(t, err)

	err = s.UpdateProgress(ctx, created.ID, job.StatusQueued, job.StatusRunning, 0.5, "progressing")
	assert.ErrorIs(t, err, store.ErrConflict)

	err = s.UpdateProgress(ctx, created.ID, job.StatusRunning, job.StatusRunning, 0.5, "progressing")
	require.NoError(t, err)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.Progress)
	assert.Len(t, got.Logs, 1)
}

func TestJobStore_ProgressNeverDecreases(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	created, err := s.Create(ctx, &job.Job{Spec: job.Spec{Type: job.TypeRAGIngest}})
	require.NoError(t, err)
	_, err = s.ClaimQueued(ctx, 10)
	require.NoError(t, err)

	require.NoError(t, s.UpdateProgress(ctx, created.ID, job.StatusRunning, job.StatusRunning, 0.6, "step1"))
	require.NoError(t, s.UpdateProgress(ctx, created.ID, job.StatusRunning, job.StatusRunning, 0.2, "stray low update"))

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.6, got.Progress)
}

func TestJobStore_CancelIsNoopOnTerminal(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	created, err := s.Create(ctx, &job.Job{Spec: job.Spec{Type: job.TypeRAGIngest}})
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, created.ID, job.StatusSucceeded, "done", nil, ""))

	require.NoError(t, s.Cancel(ctx, created.ID))

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusSucceeded, got.Status)
}

func TestDocumentStore_CommitDocumentDedupesByHash(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()

	hash := HashBytes([]byte("hello world"))
	doc := store.Document{ContentHash: hash, Name: "a.txt", Source: store.SourceLocal}
	chunks := []store.Chunk{{Text: "hello world", ChunkIndex: 0, TokenCount: 2}}

	require.NoError(t, s.CommitDocument(ctx, doc, chunks))
	id1, err := s.LookupHash(ctx, hash)
	require.NoError(t, err)

	// Committing identical content again under a different name is a no-op
	// that keeps the first winner.
	dup := store.Document{ContentHash: hash, Name: "b.txt", Source: store.SourceLocal}
	require.NoError(t, s.CommitDocument(ctx, dup, chunks))

	id2, err := s.LookupHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	got, err := s.GetDocument(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.Name)
}

func TestDocumentStore_SoftDeleteHidesFromCandidateChunks(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()

	hash := HashBytes([]byte("doc body"))
	doc := store.Document{ContentHash: hash, Name: "doc.txt", Source: store.SourceLocal}
	chunks := []store.Chunk{{Text: "doc body", ChunkIndex: 0, TokenCount: 2}}
	require.NoError(t, s.CommitDocument(ctx, doc, chunks))
	id, err := s.LookupHash(ctx, hash)
	require.NoError(t, err)

	before, err := s.CandidateChunks(ctx, store.DocumentFilter{})
	require.NoError(t, err)
	assert.Len(t, before, 1)

	require.NoError(t, s.SoftDelete(ctx, id))

	after, err := s.CandidateChunks(ctx, store.DocumentFilter{})
	require.NoError(t, err)
	assert.Empty(t, after)

	_, err = s.LookupHash(ctx, hash)
	assert.ErrorIs(t, err, store.ErrNotFound)

	withDeleted, err := s.CandidateChunks(ctx, store.DocumentFilter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, withDeleted, 1)
}

func TestDocumentStore_HardDeleteExpiredRespectsRetentionWindow(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()

	hash := HashBytes([]byte("old doc"))
	doc := store.Document{ContentHash: hash, Name: "old.txt", Source: store.SourceLocal}
	require.NoError(t, s.CommitDocument(ctx, doc, nil))
	id, err := s.LookupHash(ctx, hash)
	require.NoError(t, err)
	require.NoError(t, s.SoftDelete(ctx, id))

	removed, err := s.HardDeleteExpired(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, removed, "deletion is too recent to be past the retention window")

	removed, err = s.HardDeleteExpired(ctx, time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.GetDocument(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBlobStore_PutGetHas(t *testing.T) {
	b := NewBlobStore()
	ctx := context.Background()
	hash := HashBytes([]byte("payload"))

	has, err := b.Has(ctx, hash)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, b.Put(ctx, hash, []byte("payload")))

	has, err = b.Has(ctx, hash)
	require.NoError(t, err)
	assert.True(t, has)

	data, err := b.Get(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}
