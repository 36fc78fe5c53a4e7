package structure

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/regdocs/internal/parser"
)

// tocLinePatterns match a label followed by a dot leader and a page number.
var tocLinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(BAB|Bab|bab)\s+[IVXLCDM\d]+.*\.+\s+\d+$`),
	regexp.MustCompile(`^(LAMPIRAN|Lampiran|lampiran|BAGIAN|Bagian|bagian)\s+\w+.*\.+\s+\d+$`),
	regexp.MustCompile(`^\d+(\.\d+)+.*\.+\s+\d+$`),
}

const minTOCLines = 3

// IsTOCPage reports whether at least minTOCLines lines look like table of
// contents entries.
func IsTOCPage(lines []string) bool {
	n := 0
	for _, l := range lines {
		l = strings.TrimSpace(l)
		for _, re := range tocLinePatterns {
			if re.MatchString(l) {
				n++
				break
			}
		}
		if n >= minTOCLines {
			return true
		}
	}
	return false
}

// DuplicateFilter returns the set of trimmed page lines that repeat a table
// row and should not be emitted as plain text.
type DuplicateFilter func(lines []string, tables []parser.Table) map[string]bool

// CellContainmentDuplicates marks a line as a duplicate of a table data row
// when every non-empty cell of the row (at least two) occurs in the line and
// the line has at most two words more than the row has cells. Repeated short
// cell values can cause over- or under-suppression.
func CellContainmentDuplicates(lines []string, tables []parser.Table) map[string]bool {
	skip := make(map[string]bool)
	for _, t := range tables {
		if len(t) < 2 {
			continue
		}
		for _, row := range t[1:] {
			cells := nonEmptyCells(row)
			if len(cells) < 2 {
				continue
			}
			for _, l := range lines {
				l = strings.TrimSpace(l)
				if l == "" || skip[l] {
					continue
				}
				if containsAll(l, cells) && len(strings.Fields(l)) <= len(cells)+2 {
					skip[l] = true
				}
			}
		}
	}
	return skip
}

func nonEmptyCells(row []string) []string {
	var out []string
	for _, c := range row {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func containsAll(line string, cells []string) bool {
	for _, c := range cells {
		if !strings.Contains(line, c) {
			return false
		}
	}
	return true
}

var tableRefPattern = regexp.MustCompile(`(?i)tabel\s*\d+`)

// IsTableReference reports whether a line refers to a numbered table.
func IsTableReference(line string) bool {
	return tableRefPattern.MatchString(line)
}

// LinearizeTable renders the data rows of a table as
// "<row>. <header>: <value>; ..." lines. Headers that are blank become
// "Col<n>", empty cells are left out and rows with no values are skipped
// without renumbering the rest.
func LinearizeTable(t parser.Table) []string {
	if len(t) < 2 {
		return nil
	}
	headers := make([]string, len(t[0]))
	for i, h := range t[0] {
		if h = strings.TrimSpace(h); h == "" {
			h = fmt.Sprintf("Col%d", i+1)
		}
		headers[i] = h
	}

	var out []string
	for idx, row := range t[1:] {
		var items []string
		for i, cell := range row {
			if i >= len(headers) {
				break
			}
			if v := strings.TrimSpace(cell); v != "" {
				items = append(items, headers[i]+": "+v)
			}
		}
		if len(items) > 0 {
			out = append(out, fmt.Sprintf("%d. %s", idx+1, strings.Join(items, "; ")))
		}
	}
	return out
}
