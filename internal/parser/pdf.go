package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. It tries the Go library first,
// then falls back to pdftotext if available.
type PDFParser struct {
	FallbackPdftotext bool
	DetectTables      bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "regdocs-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	pages, err := extractPDFPages(tmpPath, p.DetectTables)
	if (err != nil || blankPages(pages)) && p.FallbackPdftotext {
		if text, ferr := extractPdftotext(tmpPath); ferr == nil {
			pages, err = splitPages(text), nil
		} else if err == nil {
			err = ferr
		}
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	return &Document{Filename: filename, Pages: pages}, nil
}

func extractPDFPages(path string, detectTables bool) ([]Page, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([]Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		pg := Page{Number: i}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, pg)
			continue
		}

		if rows, err := page.GetTextByRow(); err == nil && len(rows) > 0 {
			sort.SliceStable(rows, func(a, b int) bool { return rows[a].Position > rows[b].Position })
			grid := make([][]glyph, 0, len(rows))
			for _, row := range rows {
				glyphs := make([]glyph, 0, len(row.Content))
				for _, t := range row.Content {
					glyphs = append(glyphs, glyph{x: t.X, w: t.W, size: t.FontSize, s: t.S})
				}
				grid = append(grid, glyphs)
			}
			pg.Text, pg.Tables = layoutPage(grid, detectTables)
		} else if text, err := page.GetPlainText(nil); err == nil {
			pg.Text = text
		}
		pages = append(pages, pg)
	}
	return pages, nil
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

func blankPages(pages []Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return false
		}
	}
	return true
}
