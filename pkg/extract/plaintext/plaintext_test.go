package plaintext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_TrimsAndPassesThrough(t *testing.T) {
	e := New()
	result, err := e.Extract(context.Background(), []byte("  hello world  \n"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", result.Text)
	assert.Empty(t, result.Warning)
}

func TestExtract_EmptyInput(t *testing.T) {
	e := New()
	result, err := e.Extract(context.Background(), []byte{})
	require.NoError(t, err)
	assert.Equal(t, "", result.Text)
}

func TestSupportedMediaTypes(t *testing.T) {
	e := New()
	assert.Contains(t, e.SupportedMediaTypes(), "text/plain")
	assert.Contains(t, e.SupportedMediaTypes(), "text/markdown")
}
