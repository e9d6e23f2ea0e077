// Package verifier is the MAKER-wrapped verification façade: it checks
// each claim emitted by the researcher façade against its cited sources
// and produces a VerificationReport, per spec.md §4.5.
package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nnmtech/verisynthos/pkg/apperrors"
	"github.com/nnmtech/verisynthos/pkg/facade/httpfacade"
	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/maker"
	"github.com/nnmtech/verisynthos/pkg/orchestrator"
)

// Verdict is one claim's verification outcome, per spec.md §8 scenario
// 5's literal four-value enum.
type Verdict string

const (
	VerdictSupported    Verdict = "SUPPORTED"
	VerdictContradicted Verdict = "CONTRADICTED"
	VerdictMixed        Verdict = "MIXED"
	VerdictInsufficient Verdict = "INSUFFICIENT"
)

// VerificationResult is one claim's verification outcome, echoing the
// claim's own Sources field back per spec.md §9's provenance contract.
type VerificationResult struct {
	Claim   job.Claim `json:"claim"`
	Verdict Verdict   `json:"verdict"`
	Notes   string    `json:"notes,omitempty"`
}

// VerificationReport is what the Sampler must produce, parsed and voted
// on by MAKER.
type VerificationReport struct {
	Results []VerificationResult `json:"results"`
}

// Facade wraps a Sampler capability with the verifier's prompt and
// parser.
type Facade struct {
	Sampler maker.Sampler
	Params  maker.Params
}

// New returns a Facade calling sampler with params.
func New(sampler maker.Sampler, params maker.Params) *Facade {
	return &Facade{Sampler: sampler, Params: params}
}

// Handler returns the HTTP endpoint the orchestrator POSTs StageRequest
// bodies to for StageVerify.
func (f *Facade) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := httpfacade.Decode(r)
		if err != nil {
			httpfacade.WriteError(w, err)
			return
		}

		claims := claimsFromPrevious(req.Previous)
		report, err := f.Verify(r.Context(), req.Spec, claims)
		if err != nil {
			httpfacade.WriteError(w, err)
			return
		}

		httpfacade.WriteResult(w, orchestrator.StageResponse{
			Result: map[string]any{"verification": report},
		})
	}
}

// Verify runs MAKER against the claims the research stage emitted and
// returns the winning VerificationReport.
func (f *Facade) Verify(ctx context.Context, spec job.Spec, claims []job.Claim) (VerificationReport, error) {
	input := maker.TaskInput{
		Prompt:   prompt(spec, claims),
		Metadata: map[string]any{"claim_count": len(claims)},
	}
	return maker.FirstToAheadByK(ctx, input, f.Sampler, parseReport, f.Params)
}

// claimsFromPrevious extracts the researcher façade's claim list out of
// the orchestrator's accumulated stage results (decoded via a JSON
// round-trip since Previous is a generic map[string]any).
func claimsFromPrevious(previous map[string]any) []job.Claim {
	raw, ok := previous["claims"]
	if !ok {
		return nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var claims []job.Claim
	if err := json.Unmarshal(encoded, &claims); err != nil {
		return nil
	}
	return claims
}

func prompt(spec job.Spec, claims []job.Claim) string {
	return fmt.Sprintf(
		"Verify each claim below against its cited sources. For each claim, return a verdict "+
			"of SUPPORTED, CONTRADICTED, MIXED, or INSUFFICIENT.\n\nQuery: %s\nClaims: %+v", spec.Query, claims,
	)
}

var strictReport = maker.StrictJSONParser[VerificationReport]()

func parseReport(raw string) (VerificationReport, error) {
	report, err := strictReport(raw)
	if err != nil {
		return VerificationReport{}, err
	}
	if len(report.Results) == 0 {
		return VerificationReport{}, apperrors.New(apperrors.RedFlag, "verifier: no results")
	}
	for _, result := range report.Results {
		switch result.Verdict {
		case VerdictSupported, VerdictContradicted, VerdictMixed, VerdictInsufficient:
		default:
			return VerificationReport{}, apperrors.New(apperrors.RedFlag, "verifier: invalid verdict "+string(result.Verdict))
		}
	}
	return report, nil
}
