// Package exporter is the MAKER-wrapped export façade: given the rows the
// transform stage produced, it asks MAKER for an ExportManifest (sheet
// layout, column order, title) and renders the workbook with
// github.com/xuri/excelize/v2, writing the bytes to a BlobStore addressed
// by content hash, per spec.md §4.5.
package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/nnmtech/verisynthos/pkg/apperrors"
	"github.com/nnmtech/verisynthos/pkg/facade/httpfacade"
	"github.com/nnmtech/verisynthos/pkg/ingest"
	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/maker"
	"github.com/nnmtech/verisynthos/pkg/orchestrator"
	"github.com/nnmtech/verisynthos/pkg/store"
)

// Row is one record of the tabular dataset being exported.
type Row = map[string]any

// ExportManifest is what the Sampler must produce, parsed and voted on by
// MAKER.
type ExportManifest struct {
	SheetName string   `json:"sheet_name"`
	Title     string   `json:"title"`
	Columns   []string `json:"columns"`
}

// Facade wraps a Sampler capability and a BlobStore with the exporter's
// prompt, parser, and render step.
type Facade struct {
	Sampler maker.Sampler
	Params  maker.Params
	Blobs   store.BlobStore
}

// New returns a Facade calling sampler with params and writing rendered
// workbooks to blobs.
func New(sampler maker.Sampler, params maker.Params, blobs store.BlobStore) *Facade {
	return &Facade{Sampler: sampler, Params: params, Blobs: blobs}
}

// Handler returns the HTTP endpoint the orchestrator POSTs StageRequest
// bodies to for StageExport.
func (f *Facade) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := httpfacade.Decode(r)
		if err != nil {
			httpfacade.WriteError(w, err)
			return
		}

		rows := rowsFromPrevious(req.Previous)
		manifest, contentHash, err := f.Export(r.Context(), req.Spec, rows)
		if err != nil {
			httpfacade.WriteError(w, err)
			return
		}

		httpfacade.WriteResult(w, orchestrator.StageResponse{
			Result: map[string]any{"manifest": manifest, "export_content_hash": contentHash},
		})
	}
}

// Export runs MAKER against rows to pick a manifest, renders the workbook,
// and stores it under its content hash.
func (f *Facade) Export(ctx context.Context, spec job.Spec, rows []Row) (ExportManifest, string, error) {
	input := maker.TaskInput{
		Prompt:   prompt(spec, rows),
		Metadata: map[string]any{"row_count": len(rows)},
	}
	manifest, err := maker.FirstToAheadByK(ctx, input, f.Sampler, parseManifest(rows), f.Params)
	if err != nil {
		return ExportManifest{}, "", err
	}

	data, err := render(manifest, rows)
	if err != nil {
		return ExportManifest{}, "", apperrors.Wrap(apperrors.Invariant, "exporter: render workbook", err)
	}

	contentHash := ingest.HashBytes(data)
	if err := f.Blobs.Put(ctx, contentHash, data); err != nil {
		return ExportManifest{}, "", apperrors.Wrap(apperrors.TransientIO, "exporter: write blob", err)
	}
	return manifest, contentHash, nil
}

// render writes rows into a single-sheet workbook per manifest: a header
// row of manifest.Columns, one data row per entry in rows.
func render(manifest ExportManifest, rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := manifest.SheetName
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
		f.DeleteSheet("Sheet1")
	}
	f.SetActiveSheet(0)

	for col, name := range manifest.Columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return nil, err
		}
	}

	for rowIdx, row := range rows {
		for col, name := range manifest.Columns {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, row[name]); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
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
		"Propose an export manifest (sheet name, title, column order) for the transformed "+
			"rows.\n\nQuery: %s\nDeliverables: %v\nRow count: %d",
		spec.Query, spec.Deliverables, len(rows),
	)
}

var strictManifest = maker.StrictJSONParser[ExportManifest]()

// parseManifest returns a Parser that falls back to the union of rows'
// keys (sorted) when the sampler omits Columns, so a render never
// produces an empty sheet for a non-empty dataset.
func parseManifest(rows []Row) maker.Parser[ExportManifest] {
	return func(raw string) (ExportManifest, error) {
		manifest, err := strictManifest(raw)
		if err != nil {
			return ExportManifest{}, err
		}
		if manifest.SheetName == "" {
			manifest.SheetName = "Sheet1"
		}
		if len(manifest.Columns) == 0 {
			manifest.Columns = columnUnion(rows)
		}
		return manifest, nil
	}
}

func columnUnion(rows []Row) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)
	return columns
}
