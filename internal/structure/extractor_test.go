package structure

import (
	"strings"
	"testing"

	"github.com/dgallion1/regdocs/internal/parser"
)

func extract(t *testing.T, pages ...parser.Page) []recordView {
	t.Helper()
	for i := range pages {
		if pages[i].Number == 0 {
			pages[i].Number = i + 1
		}
	}
	recs, _ := NewExtractor().Document(&parser.Document{Filename: "aturan.pdf", Pages: pages})
	out := make([]recordView, len(recs))
	for i, r := range recs {
		out[i] = recordView{
			page:     r.PageNumber,
			bookmark: r.BookmarkValue(),
			isNull:   r.Bookmark == nil,
			title:    r.ChapterTitle,
			content:  r.Content,
			tables:   r.HasTables,
			length:   r.ContentLength,
		}
	}
	return out
}

type recordView struct {
	page     int
	bookmark string
	isNull   bool
	title    string
	content  string
	tables   bool
	length   int
}

func TestExtractor_ChapterWithLookaheadTitle(t *testing.T) {
	recs := extract(t, parser.Page{Text: "BAB I\nPENDAHULUAN\nIsi pasal pertama."})
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	r := recs[0]
	if r.bookmark != "BAB I" {
		t.Errorf("expected bookmark %q, got %q", "BAB I", r.bookmark)
	}
	if r.title != "Pendahuluan" {
		t.Errorf("expected title %q, got %q", "Pendahuluan", r.title)
	}
	if r.content != "BAB I\nPENDAHULUAN\nIsi pasal pertama." {
		t.Errorf("expected all three lines in content, got %q", r.content)
	}
	if r.length != len(r.content) {
		t.Errorf("expected content_length %d, got %d", len(r.content), r.length)
	}
}

func TestExtractor_InlineTitleKeptVerbatim(t *testing.T) {
	recs := extract(t, parser.Page{Text: "BAB II: KETENTUAN UMUM\nPasal 1"})
	if recs[0].bookmark != "BAB II" {
		t.Errorf("expected bookmark %q, got %q", "BAB II", recs[0].bookmark)
	}
	if recs[0].title != "KETENTUAN UMUM" {
		t.Errorf("expected title %q, got %q", "KETENTUAN UMUM", recs[0].title)
	}
}

func TestExtractor_EmptyPagesSkipped(t *testing.T) {
	recs := extract(t,
		parser.Page{Text: "Halaman satu."},
		parser.Page{Text: "   \n  "},
		parser.Page{Text: ""},
		parser.Page{Text: "Halaman empat."},
	)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[1].page != 4 {
		t.Errorf("expected page number 4 to be preserved, got %d", recs[1].page)
	}
}

func TestExtractor_NullBookmarkBeforeFirstLabel(t *testing.T) {
	recs := extract(t, parser.Page{Text: "Sampul dokumen"}, parser.Page{Text: "BAB I Umum"})
	if !recs[0].isNull {
		t.Errorf("expected null bookmark on page 1, got %q", recs[0].bookmark)
	}
	if recs[1].bookmark != "BAB I" {
		t.Errorf("expected BAB I on page 2, got %q", recs[1].bookmark)
	}
}

func TestExtractor_TOCPageDoesNotChangeBookmark(t *testing.T) {
	toc := strings.Join([]string{
		"BAB II KETENTUAN UMUM ........ 5",
		"BAB III PELAKSANAAN ....... 9",
		"1.1 Maksud ....... 2",
		"LAMPIRAN A ..... 12",
	}, "\n")
	recs := extract(t,
		parser.Page{Text: "BAB I\nPENDAHULUAN"},
		parser.Page{Text: toc},
	)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[1].bookmark != "BAB I" {
		t.Errorf("expected TOC page to keep %q, got %q", "BAB I", recs[1].bookmark)
	}
	if recs[1].title != "Pendahuluan" {
		t.Errorf("expected TOC page to keep title, got %q", recs[1].title)
	}
	if !strings.Contains(recs[1].content, "BAB III PELAKSANAAN") {
		t.Errorf("expected TOC lines kept in content, got %q", recs[1].content)
	}
}

func TestExtractor_TwoTOCLinesAreNotATOCPage(t *testing.T) {
	text := "BAB II KETENTUAN UMUM ........ 5\nBAB III PELAKSANAAN ....... 9"
	recs := extract(t, parser.Page{Text: text})
	if recs[0].bookmark != "BAB III" {
		t.Errorf("expected structural matching to run, got %q", recs[0].bookmark)
	}
}

func TestExtractor_BookmarkIsSticky(t *testing.T) {
	recs := extract(t,
		parser.Page{Text: "LAMPIRAN A Daftar Istilah\nistilah satu"},
		parser.Page{Text: "istilah dua"},
		parser.Page{Text: "istilah tiga"},
	)
	for i, r := range recs {
		if r.bookmark != "LAMPIRAN A" || r.title != "Daftar Istilah" {
			t.Errorf("record %d: expected LAMPIRAN A / Daftar Istilah, got %q / %q", i, r.bookmark, r.title)
		}
	}
}

func TestExtractor_SubsectionDoesNotOverrideChapter(t *testing.T) {
	recs := extract(t,
		parser.Page{Text: "BAB I\nPENDAHULUAN"},
		parser.Page{Text: "1.1 Latar Belakang\nteks"},
		parser.Page{Text: "1.2.3 Ruang Lingkup"},
	)
	for _, r := range recs {
		if r.bookmark != "BAB I" {
			t.Errorf("page %d: expected BAB I, got %q", r.page, r.bookmark)
		}
	}
}

func TestExtractor_SubsectionWithoutChapter(t *testing.T) {
	recs := extract(t,
		parser.Page{Text: "LAMPIRAN B"},
		parser.Page{Text: "2.1 Prosedur Umum\nteks"},
	)
	if recs[1].bookmark != "2.1" || recs[1].title != "Prosedur Umum" {
		t.Errorf("expected 2.1 / Prosedur Umum, got %q / %q", recs[1].bookmark, recs[1].title)
	}
}

func TestExtractor_LetteredItemsDoNotChangeBookmark(t *testing.T) {
	recs := extract(t, parser.Page{Text: "BAGIAN 2\nPERSYARATAN\nA. Umum\nb. khusus"})
	if recs[0].bookmark != "BAGIAN 2" || recs[0].title != "Persyaratan" {
		t.Errorf("expected BAGIAN 2 / Persyaratan, got %q / %q", recs[0].bookmark, recs[0].title)
	}
}

func TestExtractor_LookaheadSkipsStructuralLine(t *testing.T) {
	recs := extract(t, parser.Page{Text: "BAB II\nA. Umum\nisi"})
	if recs[0].bookmark != "BAB II" {
		t.Errorf("expected BAB II, got %q", recs[0].bookmark)
	}
	if recs[0].title != "" {
		t.Errorf("expected empty title when next line is a label, got %q", recs[0].title)
	}
}

func TestExtractor_RunTogetherChapterMarker(t *testing.T) {
	recs := extract(t, parser.Page{Text: "BABI\nKETENTUAN UMUM"})
	if recs[0].bookmark != "BAB I" {
		t.Errorf("expected BAB I, got %q", recs[0].bookmark)
	}
	if !strings.HasPrefix(recs[0].content, "BAB I\n") {
		t.Errorf("expected normalized line in content, got %q", recs[0].content)
	}
}

func TestExtractor_WordStartingWithRomanIsNotAChapter(t *testing.T) {
	recs := extract(t, parser.Page{Text: "Bab Isi dokumen ini"})
	if !recs[0].isNull {
		t.Errorf("expected no bookmark, got %q", recs[0].bookmark)
	}
}

func TestExtractor_Fallbacks(t *testing.T) {
	recs := extract(t,
		parser.Page{Text: "Daftar Isi\nKata pengantar ..... ii"},
		parser.Page{Text: "Ringkasan bab i tentang pendahuluan"},
	)
	if recs[0].bookmark != "DAFTAR ISI" || recs[0].title != "" {
		t.Errorf("expected DAFTAR ISI fallback, got %q / %q", recs[0].bookmark, recs[0].title)
	}
	if recs[1].bookmark != "BAB I PENDAHULUAN" {
		t.Errorf("expected BAB I PENDAHULUAN fallback, got %q", recs[1].bookmark)
	}
}

func TestExtractor_FallbackIgnoredWhenLabelFound(t *testing.T) {
	recs := extract(t, parser.Page{Text: "BAB III PELAKSANAAN\nlihat daftar isi"})
	if recs[0].bookmark != "BAB III" {
		t.Errorf("expected BAB III, got %q", recs[0].bookmark)
	}
}

func TestExtractor_TableLinearization(t *testing.T) {
	page := parser.Page{
		Text: "Tabel 1 Daftar Unit\nNo Unit\n1 Keuangan\n2 SDM\nSelesai.",
		Tables: []parser.Table{
			{{"No", "Unit"}, {"1", "Keuangan"}, {"2", "SDM"}},
		},
	}
	recs := extract(t, page)
	want := "Tabel 1 Daftar Unit\n1. No: 1; Unit: Keuangan\n2. No: 2; Unit: SDM\nNo Unit\nSelesai."
	if recs[0].content != want {
		t.Errorf("expected\n%q\ngot\n%q", want, recs[0].content)
	}
	if !recs[0].tables {
		t.Error("expected has_tables")
	}
}

func TestExtractor_TableReferenceWithoutTable(t *testing.T) {
	recs := extract(t, parser.Page{Text: "Lihat tabel 3 di bawah."})
	if recs[0].content != "Lihat tabel 3 di bawah." {
		t.Errorf("expected verbatim line, got %q", recs[0].content)
	}
	if !recs[0].tables {
		t.Error("expected has_tables for table reference line")
	}
}

func TestExtractor_NoTablesFlag(t *testing.T) {
	recs := extract(t, parser.Page{Text: "teks biasa"})
	if recs[0].tables {
		t.Error("expected has_tables=false")
	}
}

func TestExtractor_PageOnlyDuplicatesYieldsNoRecord(t *testing.T) {
	page := parser.Page{
		Text:   "1 Keuangan\n2 SDM",
		Tables: []parser.Table{{{"No", "Unit"}, {"1", "Keuangan"}, {"2", "SDM"}}},
	}
	recs := extract(t, page)
	if len(recs) != 0 {
		t.Errorf("expected no records, got %d", len(recs))
	}
}

func TestExtractor_PageCarryIsExplicit(t *testing.T) {
	e := NewExtractor()
	_, carry, ok := e.Page(Carry{}, "a.pdf", parser.Page{Number: 1, Text: "BAB IV\nPENUTUP"})
	if !ok {
		t.Fatal("expected record")
	}
	rec, next, ok := e.Page(carry, "a.pdf", parser.Page{Number: 2, Text: "teks"})
	if !ok {
		t.Fatal("expected record")
	}
	if rec.BookmarkValue() != "BAB IV" || rec.ChapterTitle != "Penutup" {
		t.Errorf("expected carried BAB IV / Penutup, got %q / %q", rec.BookmarkValue(), rec.ChapterTitle)
	}
	if next.BookmarkValue() != "BAB IV" {
		t.Errorf("expected carry to pass through, got %q", next.BookmarkValue())
	}
}

func TestExtractor_SummaryBookmarks(t *testing.T) {
	_, sum := NewExtractor().Document(&parser.Document{
		Filename: "a.pdf",
		Pages: []parser.Page{
			{Number: 1, Text: "BAB II X"},
			{Number: 2, Text: ""},
			{Number: 3, Text: "BAB I Y"},
			{Number: 4, Text: "teks"},
		},
	})
	if sum.Pages != 4 || sum.Records != 3 {
		t.Errorf("expected 4 pages / 3 records, got %d / %d", sum.Pages, sum.Records)
	}
	if len(sum.Bookmarks) != 2 || sum.Bookmarks[0] != "BAB I" || sum.Bookmarks[1] != "BAB II" {
		t.Errorf("expected sorted [BAB I BAB II], got %v", sum.Bookmarks)
	}
}
