package parser

import (
	"strings"
	"testing"
)

func TestTextParser_FormFeedPages(t *testing.T) {
	input := "BAB I\nPENDAHULUAN\fIsi halaman dua.\f\fHalaman empat."
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "aturan.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Filename != "aturan.txt" {
		t.Errorf("expected filename %q, got %q", "aturan.txt", doc.Filename)
	}
	if len(doc.Pages) != 4 {
		t.Fatalf("expected 4 pages, got %d", len(doc.Pages))
	}

	want := []string{"BAB I\nPENDAHULUAN", "Isi halaman dua.", "", "Halaman empat."}
	for i, w := range want {
		if doc.Pages[i].Text != w {
			t.Errorf("page[%d]: expected %q, got %q", i, w, doc.Pages[i].Text)
		}
		if doc.Pages[i].Number != i+1 {
			t.Errorf("page[%d]: expected number %d, got %d", i, i+1, doc.Pages[i].Number)
		}
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 0 {
		t.Errorf("expected 0 pages for empty input, got %d", len(doc.Pages))
	}
}

func TestTextParser_SinglePage(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader("Hello world\r\nline two"), "single.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	if doc.Pages[0].Text != "Hello world\nline two" {
		t.Errorf("expected CRLF normalized, got %q", doc.Pages[0].Text)
	}
}

func TestTextParser_TrailingFormFeed(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader("one\ftwo\f"), "t.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 2 {
		t.Errorf("expected 2 pages, got %d", len(doc.Pages))
	}
}

func TestForFile(t *testing.T) {
	for _, name := range []string{"a.pdf", "a.txt", "a.md", "a.html", "a.docx", "a.csv", "A.PDF"} {
		if _, err := ForFile(name, Options{}); err != nil {
			t.Errorf("ForFile(%q): unexpected error %v", name, err)
		}
	}
	if _, err := ForFile("a.xls", Options{}); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if IsSupportedExtension("x.rtf") {
		t.Error("expected .rtf to be unsupported")
	}
}
