package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnmtech/verisynthos/pkg/events"
	"github.com/nnmtech/verisynthos/pkg/facade/monitor"
	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/maker"
	"github.com/nnmtech/verisynthos/pkg/store/memstore"
	"github.com/nnmtech/verisynthos/pkg/worker"
)

func stageHandler(t *testing.T, resultKey, resultValue string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(StageResponse{Result: map[string]any{resultKey: resultValue}})
	}
}

func TestRun_RAGIngestSucceeds(t *testing.T) {
	jobs := memstore.NewJobStore()
	registry := worker.NewRegistry()

	ingestServer := httptest.NewServer(stageHandler(t, "ingested", "ok"))
	defer ingestServer.Close()
	registry.Register(job.StageIngest, ingestServer.URL)

	j, err := jobs.Create(context.Background(), &job.Job{Spec: job.Spec{Type: job.TypeRAGIngest}})
	require.NoError(t, err)
	claimed, err := jobs.ClaimQueued(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	New(jobs, registry).Run(context.Background(), claimed[0])

	final, err := jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusSucceeded, final.Status)
	assert.Equal(t, 1.0, final.Progress)
	assert.Equal(t, "ok", final.Result["ingested"])
}

func TestRun_SkipsOptionalVerifyStageWhenSpecVerifyFalse(t *testing.T) {
	jobs := memstore.NewJobStore()
	registry := worker.NewRegistry()

	researchServer := httptest.NewServer(stageHandler(t, "research", "done"))
	defer researchServer.Close()
	exportServer := httptest.NewServer(stageHandler(t, "export", "done"))
	defer exportServer.Close()
	registry.Register(job.StageResearch, researchServer.URL)
	registry.Register(job.StageExport, exportServer.URL)
	// Intentionally no Verify/Ingest worker registered — they must be skipped.

	_, err := jobs.Create(context.Background(), &job.Job{Spec: job.Spec{Type: job.TypeResearchAndExport, Verify: false}})
	require.NoError(t, err)
	claimed, err := jobs.ClaimQueued(context.Background(), 10)
	require.NoError(t, err)

	New(jobs, registry).Run(context.Background(), claimed[0])

	final, err := jobs.Get(context.Background(), claimed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusSucceeded, final.Status)
	assert.Equal(t, "done", final.Result["export"])
}

func TestRun_StageFailureAbortsJobAsFailed(t *testing.T) {
	jobs := memstore.NewJobStore()
	registry := worker.NewRegistry()
	failServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failServer.Close()
	registry.Register(job.StageIngest, failServer.URL)

	_, err := jobs.Create(context.Background(), &job.Job{Spec: job.Spec{Type: job.TypeRAGIngest}})
	require.NoError(t, err)
	claimed, err := jobs.ClaimQueued(context.Background(), 10)
	require.NoError(t, err)

	New(jobs, registry).Run(context.Background(), claimed[0])

	final, err := jobs.Get(context.Background(), claimed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, final.Status)
	assert.NotEmpty(t, final.Error)
}

func TestRun_CancelledJobAbortsBetweenStages(t *testing.T) {
	jobs := memstore.NewJobStore()
	registry := worker.NewRegistry()
	researchServer := httptest.NewServer(stageHandler(t, "research", "done"))
	defer researchServer.Close()
	registry.Register(job.StageResearch, researchServer.URL)
	// Export has no worker registered; if the DAG reaches it, the test
	// would fail with a no-worker-registered error instead of succeeding,
	// so reaching Complete(Succeeded) here is not possible — the
	// cancellation check must short-circuit before Export runs.

	_, err := jobs.Create(context.Background(), &job.Job{Spec: job.Spec{Type: job.TypeResearchAndExport, Verify: false}})
	require.NoError(t, err)
	claimed, err := jobs.ClaimQueued(context.Background(), 10)
	require.NoError(t, err)

	require.NoError(t, jobs.Cancel(context.Background(), claimed[0].ID))

	New(jobs, registry).Run(context.Background(), claimed[0])

	final, err := jobs.Get(context.Background(), claimed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCancelled, final.Status)
}

func TestRun_PublishesStageAndJobStatusEvents(t *testing.T) {
	jobs := memstore.NewJobStore()
	registry := worker.NewRegistry()
	ingestServer := httptest.NewServer(stageHandler(t, "ingested", "ok"))
	defer ingestServer.Close()
	registry.Register(job.StageIngest, ingestServer.URL)

	bus := events.NewBus()
	jobEvents, cancel := bus.Subscribe(events.JobsChannel)
	defer cancel()

	_, err := jobs.Create(context.Background(), &job.Job{Spec: job.Spec{Type: job.TypeRAGIngest}})
	require.NoError(t, err)
	claimed, err := jobs.ClaimQueued(context.Background(), 10)
	require.NoError(t, err)

	New(jobs, registry).WithEvents(events.NewPublisher(bus)).Run(context.Background(), claimed[0])

	var statuses []string
drain:
	for {
		select {
		case evt := <-jobEvents:
			statuses = append(statuses, evt.Payload["status"].(string))
		case <-time.After(100 * time.Millisecond):
			break drain
		}
	}
	assert.Contains(t, statuses, "running")
	assert.Contains(t, statuses, "succeeded")
}

func TestRun_PropagatesClaimsFromResearchIntoVerifyPrevious(t *testing.T) {
	jobs := memstore.NewJobStore()
	registry := worker.NewRegistry()

	researchServer := httptest.NewServer(func(w http.ResponseWriter, r *http.Request) {
		var req StageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(StageResponse{
			Result: map[string]any{"summaries": "done"},
			Claims: []job.Claim{{Text: "x is true", Sources: []string{"s1"}}},
		})
	})
	defer researchServer.Close()
	registry.Register(job.StageResearch, researchServer.URL)

	var verifySawClaims []job.Claim
	verifyServer := httptest.NewServer(func(w http.ResponseWriter, r *http.Request) {
		var req StageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		raw, err := json.Marshal(req.Previous["claims"])
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &verifySawClaims))
		_ = json.NewEncoder(w).Encode(StageResponse{Result: map[string]any{"verdicts": "checked"}})
	})
	defer verifyServer.Close()
	registry.Register(job.StageVerify, verifyServer.URL)

	exportServer := httptest.NewServer(stageHandler(t, "export", "done"))
	defer exportServer.Close()
	registry.Register(job.StageExport, exportServer.URL)

	_, err := jobs.Create(context.Background(), &job.Job{Spec: job.Spec{Type: job.TypeResearchAndExport, Verify: true}})
	require.NoError(t, err)
	claimed, err := jobs.ClaimQueued(context.Background(), 10)
	require.NoError(t, err)

	New(jobs, registry).Run(context.Background(), claimed[0])

	final, err := jobs.Get(context.Background(), claimed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusSucceeded, final.Status)
	require.Len(t, verifySawClaims, 1)
	assert.Equal(t, "x is true", verifySawClaims[0].Text)
	assert.Equal(t, []string{"s1"}, verifySawClaims[0].Sources)

	finalClaims, ok := final.Result["claims"].([]job.Claim)
	require.True(t, ok)
	require.Len(t, finalClaims, 1)
	assert.Equal(t, "x is true", finalClaims[0].Text)
}

func TestRun_MonitorNoteIsAppendedToStageLogWithoutAbortingOnFailure(t *testing.T) {
	jobs := memstore.NewJobStore()
	registry := worker.NewRegistry()
	ingestServer := httptest.NewServer(stageHandler(t, "ingested", "ok"))
	defer ingestServer.Close()
	registry.Register(job.StageIngest, ingestServer.URL)

	failingSampler := func(ctx context.Context, input maker.TaskInput) (string, error) {
		return "not json", nil
	}
	m := monitor.New(failingSampler, maker.Params{K: 1, MaxRounds: 2})

	New(jobs, registry).WithMonitor(m)

	_, err := jobs.Create(context.Background(), &job.Job{Spec: job.Spec{Type: job.TypeRAGIngest}})
	require.NoError(t, err)
	claimed, err := jobs.ClaimQueued(context.Background(), 10)
	require.NoError(t, err)

	New(jobs, registry).WithMonitor(m).Run(context.Background(), claimed[0])

	final, err := jobs.Get(context.Background(), claimed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusSucceeded, final.Status)
}

func TestRun_UnknownCustomJobWithNoStagesFails(t *testing.T) {
	jobs := memstore.NewJobStore()
	registry := worker.NewRegistry()

	_, err := jobs.Create(context.Background(), &job.Job{Spec: job.Spec{Type: job.TypeCustom}})
	require.NoError(t, err)
	claimed, err := jobs.ClaimQueued(context.Background(), 10)
	require.NoError(t, err)

	New(jobs, registry).Run(context.Background(), claimed[0])

	final, err := jobs.Get(context.Background(), claimed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, final.Status)
	assert.Equal(t, "not_implemented", final.Error)
}
