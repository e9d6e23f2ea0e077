package pdf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_InvalidBytesReturnsError(t *testing.T) {
	e := New()
	_, err := e.Extract(context.Background(), []byte("this is not a pdf"))
	assert.Error(t, err)
}

func TestSupportedMediaTypes(t *testing.T) {
	e := New()
	assert.Equal(t, []string{"application/pdf"}, e.SupportedMediaTypes())
}
