// Package memory is the ingest-stage worker façade: it drives
// pkg/ingest.Pipeline over spec.Sources on behalf of the orchestrator,
// named "memory" per the original agent registry (agents.memory.main.py)
// spec.md §9's agent registry resolves to. Unlike the researcher/verifier/
// transformer/exporter façades it wraps no maker.Sampler — ingestion is
// deterministic plumbing, not an LLM-voted task. A per-file transient
// failure is deferred onto an ingest.RetryQueue instead of failing the
// whole stage, so one bad file in a large batch doesn't sink the job.
package memory

import (
	"context"
	"net/http"

	"github.com/nnmtech/verisynthos/pkg/apperrors"
	"github.com/nnmtech/verisynthos/pkg/facade/httpfacade"
	"github.com/nnmtech/verisynthos/pkg/ingest"
	"github.com/nnmtech/verisynthos/pkg/ingest/localfs"
	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/orchestrator"
	"github.com/nnmtech/verisynthos/pkg/store"
)

// Facade ingests every source path named in a job's spec.
type Facade struct {
	Pipeline *ingest.Pipeline
	Local    *localfs.Source
	Retries  *ingest.RetryQueue
}

// New returns a Facade driving pipeline over the local filesystem source.
// retries may be nil, in which case a transient per-file failure fails
// the whole stage instead of being deferred for a later attempt.
func New(pipeline *ingest.Pipeline, local *localfs.Source, retries *ingest.RetryQueue) *Facade {
	return &Facade{Pipeline: pipeline, Local: local, Retries: retries}
}

// Handler returns the HTTP endpoint the orchestrator POSTs StageRequest
// bodies to for StageIngest.
func (f *Facade) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := httpfacade.Decode(r)
		if err != nil {
			httpfacade.WriteError(w, err)
			return
		}

		filesProcessed, chunks, err := f.Ingest(r.Context(), req.Spec)
		if err != nil {
			httpfacade.WriteError(w, err)
			return
		}

		httpfacade.WriteResult(w, orchestrator.StageResponse{
			Result: map[string]any{
				"ingest_files_processed": filesProcessed,
				"ingest_chunks":          chunks,
			},
		})
	}
}

// Ingest recursively ingests every path in spec.Sources, mirroring
// pkg/api's POST /ingest {local_path, recursive: true} arm — the only
// Source adapter this build has is pkg/ingest/localfs, so every source
// string is treated as a local directory path.
func (f *Facade) Ingest(ctx context.Context, spec job.Spec) (filesProcessed, chunks int, err error) {
	for _, source := range spec.Sources {
		result, enumErr := ingest.Enumerate(ctx, f.Local, source)
		if enumErr != nil {
			return filesProcessed, chunks, apperrors.Wrap(apperrors.TransientIO, "enumerating ingest source "+source, enumErr)
		}
		for _, entry := range result.Files {
			outcome, ingestErr := f.Pipeline.IngestFile(ctx, f.Local, entry, store.Provenance{})
			if ingestErr != nil {
				if f.Retries != nil && apperrors.KindOf(ingestErr) == apperrors.TransientIO {
					f.Retries.Enqueue(f.Local, entry, store.Provenance{}, 1, ingestErr.Error())
					continue
				}
				return filesProcessed, chunks, ingestErr
			}
			if !outcome.Skipped {
				filesProcessed++
				chunks += outcome.ChunkCount
			}
		}
	}
	return filesProcessed, chunks, nil
}
