package parser

import (
	"sort"
	"strings"
)

// glyph is a positioned run of text on a PDF page.
type glyph struct {
	x, w, size float64
	s          string
}

const (
	defaultFontSize = 10.0
	wordGapRatio    = 0.2
	cellGapRatio    = 1.5
	minTableRows    = 2
	minTableCols    = 2
)

// rowSegments joins one row's glyphs left to right. A gap wider than a
// fraction of the font size becomes a space, a gap wider than cellGapRatio
// font sizes starts a new segment.
func rowSegments(glyphs []glyph) []string {
	if len(glyphs) == 0 {
		return nil
	}
	sorted := make([]glyph, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].x < sorted[j].x })

	var segs []string
	var cur strings.Builder
	prevEnd := sorted[0].x
	for i, g := range sorted {
		size := g.size
		if size <= 0 {
			size = defaultFontSize
		}
		if i > 0 {
			gap := g.x - prevEnd
			switch {
			case gap > size*cellGapRatio:
				if s := strings.TrimSpace(cur.String()); s != "" {
					segs = append(segs, s)
				}
				cur.Reset()
			case gap > size*wordGapRatio:
				cur.WriteByte(' ')
			}
		}
		cur.WriteString(g.s)
		if end := g.x + g.w; end > prevEnd || i == 0 {
			prevEnd = end
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		segs = append(segs, s)
	}
	return segs
}

// layoutPage turns rows of glyphs, top to bottom, into page text and the
// tables found in it. A table is a run of at least minTableRows consecutive
// rows that split into the same number (at least minTableCols) of segments.
func layoutPage(rows [][]glyph, detectTables bool) (string, []Table) {
	lines := make([]string, 0, len(rows))
	segments := make([][]string, 0, len(rows))
	for _, r := range rows {
		segs := rowSegments(r)
		segments = append(segments, segs)
		lines = append(lines, strings.Join(segs, " "))
	}

	var tables []Table
	if detectTables {
		tables = gridRuns(segments)
	}
	return strings.Join(lines, "\n"), tables
}

func gridRuns(segments [][]string) []Table {
	var tables []Table
	start := 0
	for i := 1; i <= len(segments); i++ {
		if i < len(segments) && len(segments[i]) == len(segments[start]) {
			continue
		}
		if i-start >= minTableRows && len(segments[start]) >= minTableCols {
			t := make(Table, 0, i-start)
			for _, segs := range segments[start:i] {
				t = append(t, append([]string(nil), segs...))
			}
			tables = append(tables, t)
		}
		start = i
	}
	return tables
}
