package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. The body becomes a single page; tables are
// returned as grids and their rows are also written into the page text.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*Document, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "regdocs-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, int64(size))
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	page := Page{Number: 1}
	var lines []string
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			if text := docxParagraphText(it); text != "" {
				lines = append(lines, text)
			}
		case *docx.Table:
			t := docxTable(it)
			if len(t) == 0 {
				continue
			}
			page.Tables = append(page.Tables, t)
			lines = append(lines, tableLines(t)...)
		}
	}
	page.Text = strings.Join(lines, "\n")

	return &Document{Filename: filename, Pages: []Page{page}}, nil
}

func docxTable(tbl *docx.Table) Table {
	var t Table
	for _, tr := range tbl.TableRows {
		row := make([]string, 0, len(tr.TableCells))
		for _, tc := range tr.TableCells {
			var parts []string
			for _, para := range tc.Paragraphs {
				if text := docxParagraphText(para); text != "" {
					parts = append(parts, text)
				}
			}
			row = append(row, strings.Join(parts, " "))
		}
		t = append(t, row)
	}
	return t
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
