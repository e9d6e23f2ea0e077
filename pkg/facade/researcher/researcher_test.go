package researcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/maker"
	"github.com/nnmtech/verisynthos/pkg/orchestrator"
)

const canonicalResult = `{"summaries":[{"source_id":"s1","summary":"a summary"}],"claims":[{"text":"x is true","sources":["s1"]}]}`

func quorumSampler(raw string) maker.Sampler {
	return func(ctx context.Context, input maker.TaskInput) (string, error) {
		return raw, nil
	}
}

func TestResearch_ReturnsWinningResult(t *testing.T) {
	f := New(quorumSampler(canonicalResult), maker.Params{K: 1, MaxRounds: 5})

	result, err := f.Research(context.Background(), job.Spec{Query: "what is x"})
	require.NoError(t, err)
	require.Len(t, result.Summaries, 1)
	assert.Equal(t, "s1", result.Summaries[0].SourceID)
	require.Len(t, result.Claims, 1)
	assert.Equal(t, []string{"s1"}, result.Claims[0].Sources)
}

func TestResearch_RejectsEmptySummaries(t *testing.T) {
	f := New(quorumSampler(`{"summaries":[],"claims":[]}`), maker.Params{K: 1, MaxRounds: 2})

	_, err := f.Research(context.Background(), job.Spec{Query: "what is x"})
	require.Error(t, err)
}

func TestHandler_RoundTripsStageRequestResponse(t *testing.T) {
	f := New(quorumSampler(canonicalResult), maker.Params{K: 1, MaxRounds: 5})
	srv := httptest.NewServer(f.Handler())
	defer srv.Close()

	reqBody := strings.NewReader(`{"job_id":"j1","spec":{"type":"research-and-export","query":"what is x"}}`)
	resp, err := http.Post(srv.URL, "application/json", reqBody)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stageResp orchestrator.StageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stageResp))
	require.Len(t, stageResp.Claims, 1)
	assert.Equal(t, "x is true", stageResp.Claims[0].Text)
	assert.NotNil(t, stageResp.Result["summaries"])
}

func TestHandler_RejectsMalformedBody(t *testing.T) {
	f := New(quorumSampler(canonicalResult), maker.Params{K: 1, MaxRounds: 5})
	srv := httptest.NewServer(f.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", strings.NewReader("not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}

func TestModelHint_ReadsUserPrefs(t *testing.T) {
	assert.Equal(t, "gpt-4", modelHint(job.Spec{UserPrefs: map[string]any{"model_hint": "gpt-4"}}))
	assert.Equal(t, "", modelHint(job.Spec{}))
}
