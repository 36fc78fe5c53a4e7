package parser

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. The body becomes a single page with one
// line per block element; <table> elements are returned as grids.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*Document, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := Page{Number: 1}
	var lines []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav", "footer", "header":
				return
			case "table":
				t := htmlTable(n)
				if len(t) > 0 {
					page.Tables = append(page.Tables, t)
					lines = append(lines, tableLines(t)...)
				}
				return
			case "p", "li", "blockquote", "h1", "h2", "h3", "h4", "h5", "h6", "pre":
				for _, l := range strings.Split(textContent(n), "\n") {
					if l = strings.TrimSpace(l); l != "" {
						lines = append(lines, l)
					}
				}
				return
			}
		}
		if n.Type == html.TextNode && n.Parent != nil && containerTags[n.Parent.Data] {
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	// Find <body> or use whole document.
	body := findBody(doc)
	if body != nil {
		walk(body)
	} else {
		walk(doc)
	}
	page.Text = strings.Join(lines, "\n")

	return &Document{Filename: filename, Pages: []Page{page}}, nil
}

// containerTags hold loose text that is not wrapped in a block element.
var containerTags = map[string]bool{
	"body": true, "div": true, "section": true, "article": true, "main": true,
}

func htmlTable(n *html.Node) Table {
	var t Table
	var walkRows func(*html.Node)
	walkRows = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "tr":
				var row []string
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.Data == "td" || cell.Data == "th") {
						row = append(row, strings.Join(strings.Fields(textContent(cell)), " "))
					}
				}
				if len(row) > 0 {
					t = append(t, row)
				}
			default:
				walkRows(c)
			}
		}
	}
	walkRows(n)
	return t
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			buf.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
