// Package office extracts plain text from OOXML spreadsheet, document,
// and presentation bytes (.xlsx, .docx, .pptx), grounded on
// bbiangul/go-reason/parser's XLSXParser/DOCXParser/PPTXParser, trimmed
// to text-only recovery (no section/heading/image extraction — out of
// scope per spec.md §4.2's plain-text extraction contract).
package office

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nnmtech/verisynthos/pkg/extract"
)

// Extractor recovers text from xlsx, docx, and pptx bytes.
type Extractor struct{}

// New returns an office Extractor.
func New() *Extractor { return &Extractor{} }

func (e *Extractor) SupportedMediaTypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	}
}

func (e *Extractor) Extract(ctx context.Context, data []byte) (extract.Result, error) {
	// The three OOXML formats share a ZIP container; sniff the part that
	// is unique to each rather than trusting the caller's claimed media
	// type, since a mislabeled upload would otherwise fail extraction
	// silently.
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return extract.Result{}, fmt.Errorf("opening office document: %w", err)
	}

	names := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		names[f.Name] = f
	}

	switch {
	case hasPrefix(names, "xl/"):
		return extractXLSX(data)
	case names["word/document.xml"] != nil:
		return extractDOCX(names)
	case hasPrefix(names, "ppt/slides/"):
		return extractPPTX(names)
	default:
		return extract.Result{}, fmt.Errorf("unrecognized office document container")
	}
}

func hasPrefix(names map[string]*zip.File, prefix string) bool {
	for name := range names {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func extractXLSX(data []byte) (extract.Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return extract.Result{}, fmt.Errorf("opening xlsx: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	sheetsWithData := 0
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		sheetsWithData++
		sb.WriteString(sheet)
		sb.WriteString("\n")
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	result := extract.Result{Text: strings.TrimSpace(sb.String())}
	if sheetsWithData == 0 {
		result.Warning = "no data found in any xlsx sheet"
	}
	return result, nil
}

func extractDOCX(names map[string]*zip.File) (extract.Result, error) {
	data, err := readZipFile(names["word/document.xml"])
	if err != nil {
		return extract.Result{}, fmt.Errorf("reading document.xml: %w", err)
	}

	var doc docxDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return extract.Result{}, fmt.Errorf("parsing document.xml: %w", err)
	}

	var paragraphs []string
	for _, para := range doc.Body.Paras {
		if text := paraText(para); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	for _, tbl := range doc.Body.Tables {
		for _, row := range tbl.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				var cellText []string
				for _, p := range cell.Paras {
					if t := paraText(p); t != "" {
						cellText = append(cellText, t)
					}
				}
				cells = append(cells, strings.Join(cellText, " "))
			}
			paragraphs = append(paragraphs, strings.Join(cells, "\t"))
		}
	}

	result := extract.Result{Text: strings.Join(paragraphs, "\n")}
	if result.Text == "" {
		result.Warning = "no text found in docx"
	}
	return result, nil
}

func extractPPTX(names map[string]*zip.File) (extract.Result, error) {
	var slideNames []string
	for name := range names {
		if strings.HasPrefix(name, "ppt/slides/slide") && strings.HasSuffix(name, ".xml") {
			slideNames = append(slideNames, name)
		}
	}
	sortStrings(slideNames)

	var sb strings.Builder
	slidesWithText := 0
	for _, name := range slideNames {
		data, err := readZipFile(names[name])
		if err != nil {
			continue
		}
		text := pptxSlideText(data)
		if text == "" {
			continue
		}
		slidesWithText++
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	result := extract.Result{Text: strings.TrimSpace(sb.String())}
	if slidesWithText == 0 {
		result.Warning = "no text found in pptx"
	}
	return result, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("file not present in archive")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// sortStrings is a tiny insertion sort; slide counts are small enough
// that pulling in "sort" for one call site isn't worth it, but order
// matters for readable output.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Minimal DOCX WordprocessingML structures — text content only.
type docxDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    docxBody `xml:"body"`
}

type docxBody struct {
	Paras  []docxPara  `xml:"p"`
	Tables []docxTable `xml:"tbl"`
}

type docxPara struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

type docxTable struct {
	Rows []docxRow `xml:"tr"`
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxCell struct {
	Paras []docxPara `xml:"p"`
}

func paraText(p docxPara) string {
	var b strings.Builder
	for _, run := range p.Runs {
		for _, t := range run.Text {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}

// Minimal PPTX PresentationML slide structure — text content only.
type pptxSlide struct {
	CSld struct {
		SpTree struct {
			SPs []pptxSP `xml:"sp"`
		} `xml:"spTree"`
	} `xml:"cSld"`
}

type pptxSP struct {
	TxBody *pptxTxBody `xml:"txBody"`
}

type pptxTxBody struct {
	Paras []pptxPara `xml:"p"`
}

type pptxPara struct {
	Runs []pptxRun `xml:"r"`
}

type pptxRun struct {
	Text string `xml:"t"`
}

func pptxSlideText(data []byte) string {
	var slide pptxSlide
	if err := xml.Unmarshal(data, &slide); err != nil {
		return ""
	}
	var lines []string
	for _, sp := range slide.CSld.SpTree.SPs {
		if sp.TxBody == nil {
			continue
		}
		for _, para := range sp.TxBody.Paras {
			var line strings.Builder
			for _, run := range para.Runs {
				line.WriteString(run.Text)
			}
			if t := strings.TrimSpace(line.String()); t != "" {
				lines = append(lines, t)
			}
		}
	}
	return strings.Join(lines, "\n")
}
