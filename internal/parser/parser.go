package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Table is a grid of cell strings; the first row is the header. An empty
// string stands for a missing cell.
type Table [][]string

// Page is the raw text and tables extracted from one page of a document.
type Page struct {
	Number int
	Text   string
	Tables []Table
}

// Document is the page sequence of a parsed source file.
type Document struct {
	Filename string
	Pages    []Page
}

// Parser converts raw document bytes into pages.
type Parser interface {
	Parse(r io.Reader, filename string) (*Document, error)
}

// Options tunes the parsers that support it.
type Options struct {
	FallbackPdftotext bool
	DetectTables      bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.FallbackPdftotext, DetectTables: opts.DetectTables}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// tableLines renders each table row as a text line, the way a PDF text
// layer shows a table.
func tableLines(t Table) []string {
	lines := make([]string, 0, len(t))
	for _, row := range t {
		var cells []string
		for _, c := range row {
			if c = strings.TrimSpace(c); c != "" {
				cells = append(cells, c)
			}
		}
		if len(cells) > 0 {
			lines = append(lines, strings.Join(cells, " "))
		}
	}
	return lines
}
