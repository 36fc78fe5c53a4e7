package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// CSVParser handles CSV files. Rows are grouped into pages of rowsPerPage,
// each page holding one table that repeats the header row and a
// "Tabel 1" reference line naming the file, so the rows are linearized
// like a captioned table in a PDF.
type CSVParser struct{}

const rowsPerPage = 20

func (p *CSVParser) Parse(r io.Reader, filename string) (*Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	doc := &Document{Filename: filename}
	if len(records) == 0 {
		return doc, nil
	}

	// First row is headers.
	headers := records[0]
	dataRows := records[1:]
	caption := "Tabel 1 " + strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	for i := 0; i < len(dataRows) || i == 0; i += rowsPerPage {
		end := min(i+rowsPerPage, len(dataRows))
		t := Table{headers}
		t = append(t, dataRows[i:end]...)

		lines := append([]string{caption}, tableLines(t)...)
		doc.Pages = append(doc.Pages, Page{
			Number: len(doc.Pages) + 1,
			Text:   strings.Join(lines, "\n"),
			Tables: []Table{t},
		})
	}

	return doc, nil
}
