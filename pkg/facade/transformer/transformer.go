// Package transformer is the MAKER-wrapped transformation façade for the
// data-pipeline job type: given rows retrieved by the Retrieve stage, it
// asks MAKER for a TransformationPlan and applies it to an in-memory
// tabular dataset ([]map[string]any), per spec.md §4.5. A data-frame
// library is deliberately not introduced — SPEC_FULL.md notes the pack
// has none, so rows stay a plain slice of maps.
package transformer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nnmtech/verisynthos/pkg/facade/httpfacade"
	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/maker"
	"github.com/nnmtech/verisynthos/pkg/orchestrator"
)

// Row is one record of the tabular dataset being transformed.
type Row = map[string]any

// Operation is one deterministic step of a TransformationPlan.
type Operation struct {
	Op    string `json:"op"`    // "drop_field", "rename_field", "filter_equals"
	Field string `json:"field"`
	To    string `json:"to,omitempty"`    // rename_field's new name
	Value any    `json:"value,omitempty"` // filter_equals' comparison value
}

// TransformationPlan is what the Sampler must produce, parsed and voted
// on by MAKER.
type TransformationPlan struct {
	Operations []Operation `json:"operations"`
}

// Facade wraps a Sampler capability with the transformer's prompt and
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
// bodies to for StageTransform.
func (f *Facade) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := httpfacade.Decode(r)
		if err != nil {
			httpfacade.WriteError(w, err)
			return
		}

		rows := rowsFromPrevious(req.Previous)
		plan, err := f.Plan(r.Context(), req.Spec, rows)
		if err != nil {
			httpfacade.WriteError(w, err)
			return
		}

		transformed := Apply(plan, rows)
		httpfacade.WriteResult(w, orchestrator.StageResponse{
			Result: map[string]any{"rows": transformed, "plan": plan},
		})
	}
}

// Plan runs MAKER against the retrieved rows and returns the winning
// TransformationPlan.
func (f *Facade) Plan(ctx context.Context, spec job.Spec, rows []Row) (TransformationPlan, error) {
	input := maker.TaskInput{
		Prompt:   prompt(spec, rows),
		Metadata: map[string]any{"row_count": len(rows)},
	}
	return maker.FirstToAheadByK(ctx, input, f.Sampler, parsePlan, f.Params)
}

// Apply performs plan's operations against rows in order, returning a new
// slice (rows is never mutated in place).
func Apply(plan TransformationPlan, rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		cp := make(Row, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out[i] = cp
	}
	for _, op := range plan.Operations {
		out = applyOne(op, out)
	}
	return out
}

func applyOne(op Operation, rows []Row) []Row {
	switch op.Op {
	case "drop_field":
		for _, r := range rows {
			delete(r, op.Field)
		}
		return rows
	case "rename_field":
		for _, r := range rows {
			if v, ok := r[op.Field]; ok {
				delete(r, op.Field)
				r[op.To] = v
			}
		}
		return rows
	case "filter_equals":
		filtered := rows[:0]
		for _, r := range rows {
			if fmt.Sprint(r[op.Field]) == fmt.Sprint(op.Value) {
				filtered = append(filtered, r)
			}
		}
		return filtered
	default:
		return rows
	}
}

func rowsFromPrevious(previous map[string]any) []Row {
	raw, ok := previous["rows"]
	if !ok {
		return nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var rows []Row
	if err := json.Unmarshal(encoded, &rows); err != nil {
		return nil
	}
	return rows
}

func prompt(spec job.Spec, rows []Row) string {
	return fmt.Sprintf(
		"Propose a transformation plan (drop_field/rename_field/filter_equals operations) "+
			"for the retrieved rows to satisfy the requested deliverables.\n\nQuery: %s\nDeliverables: %v\nRow count: %d",
		spec.Query, spec.Deliverables, len(rows),
	)
}

var parsePlan = maker.StrictJSONParser[TransformationPlan]()
