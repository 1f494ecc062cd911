package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter lays out a Dataset as an A4 document: centered title, optional
// subtitle, bordered table, then right-aligned footer totals.
type PDFExporter struct{}

func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("dataset has no columns")
	}
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(12, 16, 12)
	doc.AddPage()

	if data.Title != "" {
		doc.SetFont("Arial", "B", 14)
		doc.CellFormat(0, 9, data.Title, "", 1, "C", false, 0, "")
	}
	if data.Subtitle != "" {
		doc.SetFont("Arial", "", 10)
		doc.CellFormat(0, 6, data.Subtitle, "", 1, "C", false, 0, "")
	}
	doc.Ln(4)

	usable := 186.0
	colWidth := usable / float64(len(data.Headers))

	doc.SetFont("Arial", "B", 10)
	doc.SetFillColor(235, 235, 235)
	for _, header := range data.Headers {
		doc.CellFormat(colWidth, 8, header, "1", 0, "C", true, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			doc.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
		}
		doc.Ln(-1)
	}

	if len(data.Footer) > 0 {
		doc.Ln(3)
		doc.SetFont("Arial", "B", 10)
		labelWidth := usable - colWidth
		for _, line := range data.Footer {
			doc.CellFormat(labelWidth, 7, line.Label, "", 0, "R", false, 0, "")
			doc.CellFormat(colWidth, 7, line.Value, "1", 1, "R", false, 0, "")
		}
	}

	buf := &bytes.Buffer{}
	if err := doc.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
