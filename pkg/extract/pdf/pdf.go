// Package pdf extracts plain text from PDF bytes, grounded on
// bbiangul/go-reason/parser/pdf.go's page-by-page native text
// extraction (simplified: no section/heading detection, since
// pkg/chunk tokenizes raw text directly).
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/nnmtech/verisynthos/pkg/extract"
)

// Extractor recovers text from application/pdf bytes.
type Extractor struct{}

// New returns a pdf Extractor.
func New() *Extractor { return &Extractor{} }

func (e *Extractor) SupportedMediaTypes() []string {
	return []string{"application/pdf"}
}

func (e *Extractor) Extract(ctx context.Context, data []byte) (extract.Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return extract.Result{}, fmt.Errorf("opening pdf: %w", err)
	}

	var sb strings.Builder
	skipped := 0
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			skipped++
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	result := extract.Result{Text: strings.TrimSpace(sb.String())}
	if skipped > 0 {
		result.Warning = fmt.Sprintf("skipped %d unreadable page(s) of %d", skipped, reader.NumPage())
	}
	if result.Text == "" {
		result.Warning = "unable to extract text from pdf"
	}
	return result, nil
}
