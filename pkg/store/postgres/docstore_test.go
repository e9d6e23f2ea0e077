package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnmtech/verisynthos/pkg/store"
)

func hashOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestDocumentStore_CommitAndRetrieve(t *testing.T) {
	db := newTestDB(t)
	s := NewDocumentStore(db)
	ctx := context.Background()

	hash := hashOf("alpha beta gamma")
	doc := store.Document{
		ContentHash: hash,
		Source:      store.SourceLocal,
		Name:        "alpha.txt",
		MediaType:   "text/plain",
		UploadedAt:  time.Now(),
		ModifiedAt:  time.Now(),
	}
	chunks := []store.Chunk{
		{ChunkIndex: 0, Text: "alpha beta", TokenCount: 2, Embedding: []float32{0.1, 0.2}},
		{ChunkIndex: 1, Text: "beta gamma", TokenCount: 2},
	}
	require.NoError(t, s.CommitDocument(ctx, doc, chunks))

	id, err := s.LookupHash(ctx, hash)
	require.NoError(t, err)

	got, err := s.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alpha.txt", got.Name)
	assert.Equal(t, 2, got.ChunkCount)

	cs, err := s.ListChunks(ctx, id)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, []float32{0.1, 0.2}, cs[0].Embedding)
}

func TestDocumentStore_CommitDocumentDedupesByHash(t *testing.T) {
	db := newTestDB(t)
	s := NewDocumentStore(db)
	ctx := context.Background()

	hash := hashOf("duplicate content")
	doc1 := store.Document{ContentHash: hash, Source: store.SourceLocal, Name: "first.txt", MediaType: "text/plain", UploadedAt: time.Now(), ModifiedAt: time.Now()}
	doc2 := store.Document{ContentHash: hash, Source: store.SourceLocal, Name: "second.txt", MediaType: "text/plain", UploadedAt: time.Now(), ModifiedAt: time.Now()}

	require.NoError(t, s.CommitDocument(ctx, doc1, nil))
	require.NoError(t, s.CommitDocument(ctx, doc2, nil))

	id, err := s.LookupHash(ctx, hash)
	require.NoError(t, err)
	got, err := s.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "first.txt", got.Name)
}

func TestDocumentStore_SoftDeleteThenHardDelete(t *testing.T) {
	db := newTestDB(t)
	s := NewDocumentStore(db)
	ctx := context.Background()

	hash := hashOf("to be deleted")
	doc := store.Document{ContentHash: hash, Source: store.SourceLocal, Name: "gone.txt", MediaType: "text/plain", UploadedAt: time.Now(), ModifiedAt: time.Now()}
	require.NoError(t, s.CommitDocument(ctx, doc, nil))
	id, err := s.LookupHash(ctx, hash)
	require.NoError(t, err)

	require.NoError(t, s.SoftDelete(ctx, id))

	_, err = s.LookupHash(ctx, hash)
	assert.ErrorIs(t, err, store.ErrNotFound)

	candidates, err := s.CandidateChunks(ctx, store.DocumentFilter{})
	require.NoError(t, err)
	assert.Empty(t, candidates)

	removed, err := s.HardDeleteExpired(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.GetDocument(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDocumentStore_ListDocumentsFiltersByMediaType(t *testing.T) {
	db := newTestDB(t)
	s := NewDocumentStore(db)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.CommitDocument(ctx, store.Document{ContentHash: hashOf("pdf one"), Source: store.SourceLocal, Name: "a.pdf", MediaType: "application/pdf", UploadedAt: now, ModifiedAt: now}, nil))
	require.NoError(t, s.CommitDocument(ctx, store.Document{ContentHash: hashOf("text one"), Source: store.SourceLocal, Name: "a.txt", MediaType: "text/plain", UploadedAt: now, ModifiedAt: now}, nil))

	docs, err := s.ListDocuments(ctx, store.DocumentFilter{MediaTypes: []string{"application/pdf"}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a.pdf", docs[0].Name)
}
