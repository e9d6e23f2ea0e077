// Package researcher is the MAKER-wrapped research façade: given a job's
// query, it produces per-source summaries plus a claims→sources
// provenance list for a later verification stage to check, per spec.md
// §4.5 and §9's Open Question on research→verification provenance
// ("the research worker must emit claims: [{text, sources: [sourceId]}]").
package researcher

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nnmtech/verisynthos/pkg/apperrors"
	"github.com/nnmtech/verisynthos/pkg/facade/httpfacade"
	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/maker"
	"github.com/nnmtech/verisynthos/pkg/orchestrator"
)

// SourceSummary is one source's contribution to the research result.
type SourceSummary struct {
	SourceID string `json:"source_id"`
	Summary  string `json:"summary"`
}

// Result is what the Sampler must produce, parsed and voted on by MAKER.
type Result struct {
	Summaries []SourceSummary `json:"summaries"`
	Claims    []job.Claim     `json:"claims"`
}

// Facade wraps a Sampler capability with the researcher's prompt and
// parser, per spec.md §4.5 ("define how MAKER is wrapped per domain: the
// parser type T and the temperature/token settings passed to the
// sampler").
type Facade struct {
	Sampler maker.Sampler
	Params  maker.Params
}

// New returns a Facade calling sampler with params.
func New(sampler maker.Sampler, params maker.Params) *Facade {
	return &Facade{Sampler: sampler, Params: params}
}

// Handler returns the HTTP endpoint the orchestrator POSTs StageRequest
// bodies to (the job's StageResearch façade URL, per pkg/worker.Registry).
func (f *Facade) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := httpfacade.Decode(r)
		if err != nil {
			httpfacade.WriteError(w, err)
			return
		}

		result, err := f.Research(r.Context(), req.Spec)
		if err != nil {
			httpfacade.WriteError(w, err)
			return
		}

		httpfacade.WriteResult(w, orchestrator.StageResponse{
			Result: map[string]any{"summaries": result.Summaries},
			Claims: result.Claims,
		})
	}
}

// Research runs MAKER against spec's query/sources and returns the
// winning Result.
func (f *Facade) Research(ctx context.Context, spec job.Spec) (Result, error) {
	input := maker.TaskInput{
		Prompt:    prompt(spec),
		ModelHint: modelHint(spec),
		Metadata:  map[string]any{"sources": spec.Sources},
	}
	return maker.FirstToAheadByK(ctx, input, f.Sampler, parseResult, f.Params)
}

func prompt(spec job.Spec) string {
	return fmt.Sprintf(
		"Research the following query using the listed sources. Summarize each source "+
			"and emit a claim list citing the sources that support each claim.\n\nQuery: %s\nSources: %v",
		spec.Query, spec.Sources,
	)
}

func modelHint(spec job.Spec) string {
	if hint, ok := spec.UserPrefs["model_hint"].(string); ok {
		return hint
	}
	return ""
}

var strictResult = maker.StrictJSONParser[Result]()

func parseResult(raw string) (Result, error) {
	result, err := strictResult(raw)
	if err != nil {
		return Result{}, err
	}
	if len(result.Summaries) == 0 {
		return Result{}, apperrors.New(apperrors.RedFlag, "researcher: no source summaries")
	}
	return result, nil
}
