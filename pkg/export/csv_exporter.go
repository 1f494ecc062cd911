package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// FooterLine is a labelled amount printed below the table body, used for
// voucher and slip totals.
type FooterLine struct {
	Label string
	Value string
}

// Dataset is the renderer-agnostic shape of a generated report: a header row,
// table rows keyed by header, and optional footer totals.
type Dataset struct {
	Title    string
	Subtitle string
	Headers  []string
	Rows     []map[string]string
	Footer   []FooterLine
}

// CSVExporter writes a Dataset as RFC 4180 CSV. Title and subtitle are
// omitted; footer lines become trailing two-column records after a blank row.
type CSVExporter struct{}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("dataset has no columns")
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(data.Headers))
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	if len(data.Footer) > 0 {
		if err := w.Write([]string{""}); err != nil {
			return nil, fmt.Errorf("write csv separator: %w", err)
		}
		for _, line := range data.Footer {
			if err := w.Write([]string{line.Label, line.Value}); err != nil {
				return nil, fmt.Errorf("write csv footer: %w", err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
