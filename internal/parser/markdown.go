package parser

import (
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. The document becomes
// a single page; GFM tables are returned as grids.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	page := Page{Number: 1}
	var lines []string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if tbl, ok := n.(*east.Table); ok {
			t := markdownTable(tbl, src)
			if len(t) > 0 {
				page.Tables = append(page.Tables, t)
				lines = append(lines, tableLines(t)...)
			}
			continue
		}
		lines = append(lines, blockLines(n, src)...)
	}
	page.Text = strings.Join(lines, "\n")

	return &Document{Filename: filename, Pages: []Page{page}}, nil
}

func markdownTable(tbl *east.Table, src []byte) Table {
	var t Table
	for r := tbl.FirstChild(); r != nil; r = r.NextSibling() {
		var row []string
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			if _, ok := c.(*east.TableCell); ok {
				row = append(row, strings.TrimSpace(inlineText(c, src)))
			}
		}
		if len(row) > 0 {
			t = append(t, row)
		}
	}
	return t
}

// blockLines returns the non-empty text lines of a block node.
func blockLines(n ast.Node, src []byte) []string {
	var raw string
	switch n.(type) {
	case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
		raw = inlineText(n, src)
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
		var buf strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		raw = buf.String()
	default:
		var out []string
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			out = append(out, blockLines(c, src)...)
		}
		return out
	}

	var out []string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// inlineText concatenates the text of a node's inline children.
func inlineText(n ast.Node, src []byte) string {
	var buf strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.WriteString(inlineText(c, src))
		}
	}
	return buf.String()
}
