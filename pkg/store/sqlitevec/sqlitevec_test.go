package sqlitevec

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnmtech/verisynthos/pkg/store"
)

func TestCommitDocumentAndSearch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath, 4)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	hash := HashBytes([]byte("quarterly revenue rose"))
	doc := store.Document{
		ContentHash: hash,
		Source:      store.SourceLocal,
		Name:        "report.txt",
		MediaType:   "text/plain",
		UploadedAt:  time.Now(),
		ModifiedAt:  time.Now(),
	}
	chunks := []store.Chunk{
		{ChunkIndex: 0, Text: "quarterly revenue rose sharply", TokenCount: 4, Embedding: []float32{0.1, 0.2, 0.3, 0.4}},
	}
	require.NoError(t, s.CommitDocument(ctx, doc, chunks))

	id, err := s.LookupHash(ctx, hash)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	lexical, err := s.LexicalSearch(ctx, "revenue", 10)
	require.NoError(t, err)
	require.Len(t, lexical, 1)
	assert.Equal(t, id, lexical[0].DocumentID)

	vector, err := s.VectorSearch(ctx, []float32{0.1, 0.2, 0.3, 0.4}, 5)
	require.NoError(t, err)
	require.Len(t, vector, 1)
	assert.Equal(t, id, vector[0].DocumentID)
}

func TestCommitDocumentDedupesByHash(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath, 4)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	hash := HashBytes([]byte("identical body"))
	doc1 := store.Document{ContentHash: hash, Source: store.SourceLocal, Name: "first.txt", MediaType: "text/plain", UploadedAt: time.Now(), ModifiedAt: time.Now()}
	doc2 := store.Document{ContentHash: hash, Source: store.SourceLocal, Name: "second.txt", MediaType: "text/plain", UploadedAt: time.Now(), ModifiedAt: time.Now()}

	require.NoError(t, s.CommitDocument(ctx, doc1, nil))
	require.NoError(t, s.CommitDocument(ctx, doc2, nil))

	id, err := s.LookupHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, DeriveDocumentID(hash), id)
}

func TestSoftDeleteExcludesFromSearch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath, 4)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	hash := HashBytes([]byte("to be removed"))
	doc := store.Document{ContentHash: hash, Source: store.SourceLocal, Name: "gone.txt", MediaType: "text/plain", UploadedAt: time.Now(), ModifiedAt: time.Now()}
	chunks := []store.Chunk{{ChunkIndex: 0, Text: "to be removed entirely", TokenCount: 4}}
	require.NoError(t, s.CommitDocument(ctx, doc, chunks))
	id, err := s.LookupHash(ctx, hash)
	require.NoError(t, err)

	require.NoError(t, s.SoftDelete(ctx, id))

	_, err = s.LookupHash(ctx, hash)
	assert.ErrorIs(t, err, store.ErrNotFound)

	results, err := s.LexicalSearch(ctx, "removed", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
