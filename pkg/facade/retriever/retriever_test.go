package retriever

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnmtech/verisynthos/pkg/embed"
	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/orchestrator"
	"github.com/nnmtech/verisynthos/pkg/retrieve"
	"github.com/nnmtech/verisynthos/pkg/store"
	"github.com/nnmtech/verisynthos/pkg/store/memstore"
)

func seedDocument(t *testing.T, docs *memstore.DocumentStore, hash, name, text string, vec []float32) {
	t.Helper()
	doc := store.Document{
		ContentHash: hash,
		Name:        name,
		MediaType:   "text/plain",
		ModifiedAt:  time.Now(),
		ChunkCount:  1,
		Provenance:  store.Provenance{FileName: name},
	}
	chunk := store.Chunk{ChunkIndex: 0, Text: text, Embedding: vec, CreatedAt: time.Now()}
	require.NoError(t, docs.CommitDocument(context.Background(), doc, []store.Chunk{chunk}))
}

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	docs := memstore.NewDocumentStore()
	embedder := embed.NewDeterministic(8)

	queryVec, err := embedder.Embed(context.Background(), []string{"quarterly revenue report"})
	require.NoError(t, err)
	seedDocument(t, docs, "doc-1", "revenue.txt", "quarterly revenue report with detailed figures", queryVec[0])

	return New(retrieve.New(docs, embedder))
}

func TestHandler_ReturnsRowsFromHybridSearch(t *testing.T) {
	f := newTestFacade(t)
	srv := httptest.NewServer(f.Handler())
	defer srv.Close()

	body, err := json.Marshal(map[string]any{
		"job_id": "j1",
		"spec":   job.Spec{Type: job.TypeDataPipeline, Query: "quarterly revenue report"},
	})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stageResp orchestrator.StageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stageResp))

	rows, ok := stageResp.Result["rows"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, rows)

	row, ok := rows[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "revenue.txt", row["file_name"])
}

func TestHandler_RejectsMalformedBody(t *testing.T) {
	f := newTestFacade(t)
	srv := httptest.NewServer(f.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", strings.NewReader("not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}

func TestTopKFrom_ReadsUserPrefsHint(t *testing.T) {
	assert.Equal(t, 5, topKFrom(job.Spec{UserPrefs: map[string]any{"top_k": float64(5)}}))
	assert.Equal(t, 0, topKFrom(job.Spec{}))
}

func TestRowsFrom_FlattensResultFields(t *testing.T) {
	results := []retrieve.Result{
		{
			ChunkWithDocument: store.ChunkWithDocument{
				Chunk:    store.Chunk{DocumentID: "d1", ChunkIndex: 0, Text: "hello"},
				Document: store.Document{Source: store.SourceLocal, Provenance: store.Provenance{FileName: "a.txt"}},
			},
			Score: 0.9,
		},
	}
	rows := rowsFrom(results)
	require.Len(t, rows, 1)
	assert.Equal(t, "hello", rows[0]["text"])
	assert.Equal(t, "a.txt", rows[0]["file_name"])
	assert.Equal(t, "local", rows[0]["source"])
}
