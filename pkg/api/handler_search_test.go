package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnmtech/verisynthos/pkg/ingest"
	"github.com/nnmtech/verisynthos/pkg/store"
)

func TestSearchHandler_ReturnsIngestedChunk(t *testing.T) {
	s := newTestServer()

	entry := ingest.Entry{ID: "doc-1", Name: "doc-1.txt", MediaType: "text/plain"}
	src := fakeLocalSource{body: []byte("the quick brown fox jumps over the lazy dog")}
	_, err := s.pipeline.IngestFile(context.Background(), src, entry, store.Provenance{FileName: "doc-1.txt", FileID: "doc-1"})
	require.NoError(t, err)

	e := echo.New()
	body, err := json.Marshal(searchRequest{Query: "fox", TopK: 5})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, s.searchHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "doc-1.txt", resp.Results[0].Provenance.FileName)
}

func TestSearchHandler_RejectsInvalidDateFrom(t *testing.T) {
	s := newTestServer()
	e := echo.New()

	body, err := json.Marshal(searchRequest{Query: "x", DateFrom: "not-a-date"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err = s.searchHandler(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

// fakeLocalSource adapts an in-memory body into ingest.Source for tests
// that need to seed a document without touching the real filesystem.
type fakeLocalSource struct{ body []byte }

func (f fakeLocalSource) SourceTag() store.Source { return store.SourceLocal }
func (f fakeLocalSource) ListChildren(ctx context.Context, folderID string) ([]ingest.Entry, error) {
	return nil, nil
}
func (f fakeLocalSource) Download(ctx context.Context, entry ingest.Entry) ([]byte, error) {
	return f.body, nil
}
