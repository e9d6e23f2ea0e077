// Package retriever is the retrieve-stage worker façade: it runs
// pkg/retrieve.Engine's hybrid search on behalf of the orchestrator and
// hands the matched chunks downstream as tabular rows under
// StageResponse.Result["rows"], the same convention
// pkg/facade/transformer and pkg/facade/exporter read from. Named after
// the original's "data_retriever" agent (agents.data_retriever.agent.py);
// that agent's BigQuery/Sheets/REST connectors have no equivalent client
// library anywhere in this build's dependency pack, so this façade is
// grounded on the retrieval capability spec.md §4.3 actually specifies —
// hybrid search over ingested documents — rather than transliterating
// connectors this build cannot reach.
package retriever

import (
	"net/http"

	"github.com/nnmtech/verisynthos/pkg/facade/httpfacade"
	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/orchestrator"
	"github.com/nnmtech/verisynthos/pkg/retrieve"
)

// Row mirrors pkg/facade/transformer.Row: a plain tabular record.
type Row = map[string]any

// Facade runs hybrid search for the retrieve stage.
type Facade struct {
	Engine *retrieve.Engine
}

// New returns a Facade bound to engine.
func New(engine *retrieve.Engine) *Facade {
	return &Facade{Engine: engine}
}

// Handler returns the HTTP endpoint the orchestrator POSTs StageRequest
// bodies to for StageRetrieve.
func (f *Facade) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := httpfacade.Decode(r)
		if err != nil {
			httpfacade.WriteError(w, err)
			return
		}

		results, err := f.Engine.Search(r.Context(), retrieve.Query{Text: req.Spec.Query, TopK: topKFrom(req.Spec)})
		if err != nil {
			httpfacade.WriteError(w, err)
			return
		}

		httpfacade.WriteResult(w, orchestrator.StageResponse{
			Result: map[string]any{"rows": rowsFrom(results)},
		})
	}
}

// rowsFrom flattens retrieve.Results into the plain []Row shape
// transformer/exporter already consume.
func rowsFrom(results []retrieve.Result) []Row {
	rows := make([]Row, len(results))
	for i, r := range results {
		rows[i] = Row{
			"text":        r.Text,
			"score":       r.Score,
			"chunk_index": r.ChunkIndex,
			"document_id": r.DocumentID,
			"file_name":   r.Document.Provenance.FileName,
			"source":      string(r.Document.Source),
		}
	}
	return rows
}

// topKFrom reads an optional "top_k" hint out of spec.UserPrefs, falling
// back to retrieve.Engine's own default (10) when absent or malformed.
func topKFrom(spec job.Spec) int {
	raw, ok := spec.UserPrefs["top_k"]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
