package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnmtech/verisynthos/pkg/apperrors"
	"github.com/nnmtech/verisynthos/pkg/job"
)

type echoRequest struct {
	Value string `json:"value"`
}
type echoResponse struct {
	Echo string `json:"echo"`
}

func TestCall_RoundTripsJSONAndMarksHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req echoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(echoResponse{Echo: req.Value})
	}))
	defer server.Close()

	registry := NewRegistry()
	registry.Register(job.StageVerify, server.URL)

	var resp echoResponse
	err := registry.Call(context.Background(), job.StageVerify, echoRequest{Value: "hello"}, &resp)
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Echo)
	assert.True(t, registry.Statuses()[job.StageVerify].Healthy)
}

func TestCall_NonTwoXXReturnsPermanentIOAndMarksUnhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer server.Close()

	registry := NewRegistry()
	registry.Register(job.StageExport, server.URL)

	err := registry.Call(context.Background(), job.StageExport, echoRequest{}, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.PermanentIO, apperrors.KindOf(err))
	assert.False(t, registry.Statuses()[job.StageExport].Healthy)
}

func TestCall_UnregisteredStageIsInvariantError(t *testing.T) {
	registry := NewRegistry()
	err := registry.Call(context.Background(), job.StageResearch, echoRequest{}, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.Invariant, apperrors.KindOf(err))
}

func TestCall_ContextCancellationSurfacesCancelledKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	registry := NewRegistry()
	registry.Register(job.StageTransform, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := registry.Call(ctx, job.StageTransform, echoRequest{}, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.Cancelled, apperrors.KindOf(err))
}
