// Package cleanse strips noise and administrative boilerplate from extracted
// pages and re-derives their chapter labels.
package cleanse

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/dgallion1/regdocs/internal/record"
	"github.com/dgallion1/regdocs/internal/textcase"
)

const maxSymbolRatio = 0.5

var (
	dotLeader   = regexp.MustCompile(`\.{5,}`)
	boilerplate = regexp.MustCompile(`(?i)Edisi ke\s*:|Revisi ke\s*:|Tanggal Berlaku|Paraf`)
	ruleLine    = regexp.MustCompile(`[_\-]{3,}`)
	spaceRun    = regexp.MustCompile(`[ \t]+`)
)

// IsNoise reports whether a line is blank or mostly symbols. Lines with a
// dot leader of five or more dots are never noise.
func IsNoise(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if dotLeader.MatchString(line) {
		return false
	}
	total, symbols := 0, 0
	for _, r := range line {
		total++
		if !isASCIIAlnum(r) && !unicode.IsSpace(r) {
			symbols++
		}
	}
	return float64(symbols)/float64(total) > maxSymbolRatio
}

// IsBoilerplate reports whether a line is an edition, revision, effective
// date or signature label.
func IsBoilerplate(line string) bool {
	return boilerplate.MatchString(line)
}

// NormalizeLine removes underscores between letters, drops rules of three or
// more underscores or hyphens, collapses spaces and tabs, and trims.
func NormalizeLine(line string) string {
	line = stripInterLetterUnderscores(line)
	line = ruleLine.ReplaceAllString(line, "")
	line = spaceRun.ReplaceAllString(line, " ")
	return strings.TrimSpace(line)
}

// stripInterLetterUnderscores deletes every run of underscores that has an
// ASCII letter on both sides, so "kata__kata" becomes "katakata".
func stripInterLetterUnderscores(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	rs := []rune(s)
	out := make([]rune, 0, len(rs))
	for i := 0; i < len(rs); i++ {
		if rs[i] != '_' {
			out = append(out, rs[i])
			continue
		}
		j := i
		for j < len(rs) && rs[j] == '_' {
			j++
		}
		if i > 0 && isASCIILetter(rs[i-1]) && j < len(rs) && isASCIILetter(rs[j]) {
			i = j - 1
			continue
		}
		out = append(out, rs[i:j]...)
		i = j - 1
	}
	return string(out)
}

// CleanText drops noise and boilerplate lines, normalizes the rest and
// rejoins them with single newlines. A line is dropped when either its raw
// or its normalized form is noise or boilerplate, which makes CleanText
// idempotent.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var kept []string
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		if IsNoise(raw) || IsBoilerplate(raw) {
			continue
		}
		line := NormalizeLine(raw)
		if IsNoise(line) || IsBoilerplate(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

var (
	tocHeading = regexp.MustCompile(`(?i)\bDAFTAR\s+ISI\b`)
	chapter    = regexp.MustCompile(`^BAB(?:[\s.]+([A-Z0-9]+)|([IVXLCDM]+))\b[\s:.\-]*(.*)$`)
)

// ScanBookmark looks for a label in cleaned lines, in order. "DAFTAR ISI"
// anywhere in a line yields an empty title. A line starting with
// "BAB <token>" yields "BAB <token>" and the title-cased remainder, or the
// next line when the remainder is empty and that line is not noise.
func ScanBookmark(lines []string) (bookmark, title string, ok bool) {
	for i, line := range lines {
		upper := strings.ToUpper(strings.TrimSpace(line))
		if tocHeading.MatchString(upper) {
			return "DAFTAR ISI", "", true
		}
		m := chapter.FindStringSubmatch(upper)
		if m == nil {
			continue
		}
		token := m[1]
		if token == "" {
			token = m[2]
		}
		title = textcase.Title(m[3])
		if title == "" && i+1 < len(lines) && !IsNoise(lines[i+1]) {
			title = textcase.Title(lines[i+1])
		}
		return "BAB " + token, title, true
	}
	return "", "", false
}

// Carry is the label state carried across the records of one file.
type Carry struct {
	Bookmark     string
	ChapterTitle string
}

// Record cleans one record and returns it with the state for the next one.
// Bookmark and chapter title are forward-filled independently from the
// carry when the scan finds none. The labels the record arrived with are
// kept in the extractor fields the first time a record is cleansed.
func Record(carry Carry, in record.PageRecord) (record.PageRecord, Carry) {
	out := in
	if out.ExtractorBookmark == nil {
		out.ExtractorBookmark = record.StringPtr(in.BookmarkValue())
	}
	if out.ExtractorChapterTitle == nil {
		out.ExtractorChapterTitle = record.StringPtr(in.ChapterTitle)
	}

	out.SetContent(CleanText(in.Content))

	bookmark, title, _ := ScanBookmark(strings.Split(out.Content, "\n"))
	if bookmark == "" {
		bookmark = carry.Bookmark
	} else {
		carry.Bookmark = bookmark
	}
	if title == "" {
		title = carry.ChapterTitle
	} else {
		carry.ChapterTitle = title
	}

	out.Bookmark = record.StringPtr(bookmark)
	out.ChapterTitle = title
	return out, carry
}

// Summary describes one cleanse run.
type Summary struct {
	Records      int
	LinesDropped int
	Bookmarks    []string
}

// Records folds Record over a file's records in order from an empty carry.
func Records(in []record.PageRecord) ([]record.PageRecord, Summary) {
	var carry Carry
	out := make([]record.PageRecord, 0, len(in))
	seen := map[string]bool{}
	sum := Summary{Records: len(in)}

	for _, r := range in {
		var rec record.PageRecord
		rec, carry = Record(carry, r)
		sum.LinesDropped += lineCount(r.Content) - lineCount(rec.Content)
		if b := rec.BookmarkValue(); b != "" && !seen[b] {
			seen[b] = true
			sum.Bookmarks = append(sum.Bookmarks, b)
		}
		out = append(out, rec)
	}
	sort.Strings(sum.Bookmarks)
	return out, sum
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isASCIIAlnum(r rune) bool {
	return isASCIILetter(r) || (r >= '0' && r <= '9')
}
