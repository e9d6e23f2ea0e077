package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministic_StableAndDistinct(t *testing.T) {
	e := NewDeterministic(16)
	ctx := context.Background()

	first, err := e.Embed(ctx, []string{"hello world", "goodbye world"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Len(t, first[0], 16)
	assert.NotEqual(t, first[0], first[1])

	second, err := e.Embed(ctx, []string{"hello world"})
	require.NoError(t, err)
	assert.Equal(t, first[0], second[0], "embedding must be stable for the same text")
}

func TestDeterministic_DimensionDefaultsWhenNonPositive(t *testing.T) {
	e := NewDeterministic(0)
	assert.Equal(t, 32, e.Dimension())
}
