package parser

import (
	"io"
	"strings"
)

// TextParser handles plain text files. Form feeds separate pages.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &Document{Filename: filename, Pages: splitPages(string(data))}, nil
}

// splitPages splits form-feed separated text into numbered pages. A trailing
// form feed does not start a new page.
func splitPages(text string) []Page {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\f")
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\f")
	pages := make([]Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, Page{Number: i + 1, Text: part})
	}
	return pages
}
