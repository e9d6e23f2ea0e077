package exporter

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/nnmtech/verisynthos/pkg/ingest"
	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/maker"
	"github.com/nnmtech/verisynthos/pkg/store/memstore"
)

func quorumSampler(raw string) maker.Sampler {
	return func(ctx context.Context, input maker.TaskInput) (string, error) {
		return raw, nil
	}
}

func TestExport_RendersAndStoresWorkbook(t *testing.T) {
	blobs := memstore.NewBlobStore()
	f := New(quorumSampler(`{"sheet_name":"Results","title":"Q1","columns":["name","score"]}`),
		maker.Params{K: 1, MaxRounds: 5}, blobs)

	rows := []Row{{"name": "alice", "score": 9}, {"name": "bob", "score": 7}}
	manifest, contentHash, err := f.Export(context.Background(), job.Spec{Query: "export scores"}, rows)
	require.NoError(t, err)
	assert.Equal(t, "Results", manifest.SheetName)

	stored, err := blobs.Get(context.Background(), contentHash)
	require.NoError(t, err)
	assert.Equal(t, ingest.HashBytes(stored), contentHash)

	wb, err := excelize.OpenReader(bytes.NewReader(stored))
	require.NoError(t, err)
	defer wb.Close()

	rowsOut, err := wb.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rowsOut, 3) // header + 2 data rows
	assert.Equal(t, []string{"name", "score"}, rowsOut[0])
	assert.Equal(t, "alice", rowsOut[1][0])
}

func TestColumnUnion_FallsBackToRowKeysWhenManifestOmitsColumns(t *testing.T) {
	parse := parseManifest([]Row{{"a": 1, "b": 2}})
	manifest, err := parse(`{"sheet_name":"S"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, manifest.Columns)
}

func TestColumnUnion_EmptyRowsYieldsNoColumns(t *testing.T) {
	assert.Empty(t, columnUnion(nil))
}
