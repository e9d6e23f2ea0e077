package transformer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/maker"
)

func quorumSampler(raw string) maker.Sampler {
	return func(ctx context.Context, input maker.TaskInput) (string, error) {
		return raw, nil
	}
}

func TestApply_DropField(t *testing.T) {
	rows := []Row{{"a": 1, "b": 2}}
	out := Apply(TransformationPlan{Operations: []Operation{{Op: "drop_field", Field: "b"}}}, rows)
	assert.Equal(t, Row{"a": 1}, out[0])
	assert.Contains(t, rows[0], "b") // Apply never mutates its input
}

func TestApply_RenameField(t *testing.T) {
	rows := []Row{{"old": "v"}}
	out := Apply(TransformationPlan{Operations: []Operation{{Op: "rename_field", Field: "old", To: "new"}}}, rows)
	assert.Equal(t, Row{"new": "v"}, out[0])
}

func TestApply_FilterEquals(t *testing.T) {
	rows := []Row{{"status": "ok"}, {"status": "failed"}}
	out := Apply(TransformationPlan{Operations: []Operation{{Op: "filter_equals", Field: "status", Value: "ok"}}}, rows)
	require.Len(t, out, 1)
	assert.Equal(t, "ok", out[0]["status"])
}

func TestApply_UnknownOpIsANoop(t *testing.T) {
	rows := []Row{{"a": 1}}
	out := Apply(TransformationPlan{Operations: []Operation{{Op: "unknown", Field: "a"}}}, rows)
	assert.Equal(t, rows, out)
}

func TestPlan_ReturnsWinningPlan(t *testing.T) {
	f := New(quorumSampler(`{"operations":[{"op":"drop_field","field":"b"}]}`), maker.Params{K: 1, MaxRounds: 5})

	plan, err := f.Plan(context.Background(), job.Spec{Query: "clean rows"}, []Row{{"a": 1, "b": 2}})
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)
	assert.Equal(t, "drop_field", plan.Operations[0].Op)
}

func TestRowsFromPrevious_ExtractsRows(t *testing.T) {
	previous := map[string]any{"rows": []Row{{"a": 1}}}
	rows := rowsFromPrevious(previous)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(1), rows[0]["a"]) // JSON round trip turns ints into float64
}

func TestRowsFromPrevious_MissingKeyReturnsNil(t *testing.T) {
	assert.Nil(t, rowsFromPrevious(map[string]any{}))
}
