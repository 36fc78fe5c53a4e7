// Package structure recovers the outline of a regulatory document from the
// raw text of its pages and emits one PageRecord per non-empty page.
package structure

import (
	"sort"
	"strings"

	"github.com/dgallion1/regdocs/internal/parser"
	"github.com/dgallion1/regdocs/internal/record"
	"github.com/dgallion1/regdocs/internal/textcase"
)

const (
	tocBookmark          = "DAFTAR ISI"
	introductionBookmark = "BAB I PENDAHULUAN"
	introductionTitle    = "Pendahuluan"
)

// Carry is the label state carried from one page to the next. A nil
// Bookmark means no label has been detected yet.
type Carry struct {
	Bookmark     *string
	ChapterTitle string
}

// BookmarkValue returns the carried bookmark or "".
func (c Carry) BookmarkValue() string {
	if c.Bookmark == nil {
		return ""
	}
	return *c.Bookmark
}

// apply returns the state after a label line. Subsection numbering never
// replaces an active chapter and lettered items change nothing.
func (c Carry) apply(l Label) Carry {
	switch l.Kind {
	case KindChapter, KindAppendix, KindSection:
		return Carry{Bookmark: record.StringPtr(l.Marker), ChapterTitle: l.Title}
	case KindSubsection:
		if strings.HasPrefix(c.BookmarkValue(), "BAB") {
			return c
		}
		return Carry{Bookmark: record.StringPtr(l.Marker), ChapterTitle: l.Title}
	}
	return c
}

// Extractor turns pages into PageRecords. It holds no per-document state;
// the label state is passed to and returned from Page.
type Extractor struct {
	Duplicates DuplicateFilter
}

// NewExtractor returns an Extractor that suppresses table rows by cell
// containment.
func NewExtractor() *Extractor {
	return &Extractor{Duplicates: CellContainmentDuplicates}
}

// Page processes one page. It returns the record, the state for the next
// page, and false when the page yields no content.
func (e *Extractor) Page(carry Carry, filename string, page parser.Page) (record.PageRecord, Carry, bool) {
	if strings.TrimSpace(page.Text) == "" {
		return record.PageRecord{}, carry, false
	}

	lines := strings.Split(strings.ReplaceAll(page.Text, "\r\n", "\n"), "\n")
	toc := IsTOCPage(lines)
	skip := map[string]bool{}
	if e.Duplicates != nil {
		skip = e.Duplicates(lines, page.Tables)
	}

	var content []string
	found := false
	tableIdx := 0
	for i := 0; i < len(lines); i++ {
		line := normalizeLine(lines[i])
		if line == "" {
			continue
		}

		if !toc {
			if label, ok := MatchLabel(line); ok {
				if label.Title == "" && label.Kind.titleFromNextLine() {
					label.Title = lookaheadTitle(lines, i)
				}
				carry = carry.apply(label)
				found = true
				content = append(content, line)
				continue
			}
		}

		if IsTableReference(line) && tableIdx < len(page.Tables) {
			content = append(content, line)
			content = append(content, LinearizeTable(page.Tables[tableIdx])...)
			tableIdx++
			continue
		}

		if !skip[line] {
			content = append(content, line)
		}
	}

	if !found {
		carry = fallbackCarry(carry, page.Text)
	}

	if len(content) == 0 {
		return record.PageRecord{}, carry, false
	}

	rec := record.PageRecord{
		Filename:     filename,
		PageNumber:   page.Number,
		Bookmark:     carry.Bookmark,
		ChapterTitle: carry.ChapterTitle,
	}
	rec.SetContent(strings.Join(content, "\n"))
	for _, l := range content {
		if IsTableReference(l) {
			rec.HasTables = true
			break
		}
	}
	return rec, carry, true
}

// lookaheadTitle returns the title-cased line after i when it is non-empty
// and not itself a label.
func lookaheadTitle(lines []string, i int) string {
	if i+1 >= len(lines) {
		return ""
	}
	next := normalizeLine(lines[i+1])
	if next == "" {
		return ""
	}
	if _, ok := MatchLabel(next); ok {
		return ""
	}
	return textcase.Title(next)
}

// fallbackCarry applies the whole-page heuristics used when no label line
// was found.
func fallbackCarry(c Carry, text string) Carry {
	lowered := strings.ToLower(text)
	switch {
	case strings.Contains(lowered, "daftar isi"):
		return Carry{Bookmark: record.StringPtr(tocBookmark)}
	case strings.Contains(lowered, "bab i") && strings.Contains(lowered, "pendahuluan"):
		return Carry{Bookmark: record.StringPtr(introductionBookmark), ChapterTitle: introductionTitle}
	}
	return c
}

// Summary describes one extraction run.
type Summary struct {
	Pages     int
	Records   int
	Bookmarks []string
}

// Document folds Page over every page of doc in order, starting from an
// empty carry.
func (e *Extractor) Document(doc *parser.Document) ([]record.PageRecord, Summary) {
	var (
		carry   Carry
		records []record.PageRecord
	)
	seen := map[string]bool{}
	sum := Summary{Pages: len(doc.Pages)}

	for _, page := range doc.Pages {
		var (
			rec record.PageRecord
			ok  bool
		)
		rec, carry, ok = e.Page(carry, doc.Filename, page)
		if !ok {
			continue
		}
		records = append(records, rec)
		if b := rec.BookmarkValue(); b != "" && !seen[b] {
			seen[b] = true
			sum.Bookmarks = append(sum.Bookmarks, b)
		}
	}

	sort.Strings(sum.Bookmarks)
	sum.Records = len(records)
	return records, sum
}
