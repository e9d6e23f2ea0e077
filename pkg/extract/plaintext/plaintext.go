// Package plaintext is the trivial UTF-8 passthrough Extractor for
// text/plain and text/markdown content, named in spec.md §4.2's
// extractor wiring.
package plaintext

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/nnmtech/verisynthos/pkg/extract"
)

// Extractor returns raw bytes decoded as UTF-8 text.
type Extractor struct{}

// New returns a plaintext Extractor.
func New() *Extractor { return &Extractor{} }

func (e *Extractor) SupportedMediaTypes() []string {
	return []string{"text/plain", "text/markdown", "text/csv"}
}

func (e *Extractor) Extract(ctx context.Context, data []byte) (extract.Result, error) {
	text := string(data)
	result := extract.Result{Text: strings.TrimSpace(text)}
	if !utf8.ValidString(text) {
		result.Warning = "input is not valid UTF-8; decoded with replacement characters"
	}
	return result, nil
}
