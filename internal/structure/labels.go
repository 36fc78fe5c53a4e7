package structure

import (
	"regexp"
	"strings"
)

// LabelKind is the closed set of structural labels a line can carry.
type LabelKind int

const (
	KindChapter LabelKind = iota + 1
	KindAppendix
	KindSection
	KindSubsection
	KindLettered
)

func (k LabelKind) String() string {
	switch k {
	case KindChapter:
		return "chapter"
	case KindAppendix:
		return "appendix"
	case KindSection:
		return "section"
	case KindSubsection:
		return "subsection"
	case KindLettered:
		return "lettered"
	}
	return "unknown"
}

// titleFromNextLine reports whether a label of this kind without an inline
// title takes the following line as its title.
func (k LabelKind) titleFromNextLine() bool {
	return k == KindChapter || k == KindAppendix || k == KindSection
}

// Label is a structural marker recognized on one line, e.g. "BAB I" with
// title "Pendahuluan".
type Label struct {
	Kind   LabelKind
	Marker string
	Title  string
}

type labelParser struct {
	kind  LabelKind
	re    *regexp.Regexp
	parse func(m []string) Label
}

// headedLabel builds the marker from the upper-cased keyword and its number,
// e.g. "Lampiran A" becomes "LAMPIRAN A".
func headedLabel(kind LabelKind) func(m []string) Label {
	return func(m []string) Label {
		return Label{
			Kind:   kind,
			Marker: strings.ToUpper(m[1]) + " " + m[2],
			Title:  strings.TrimSpace(m[3]),
		}
	}
}

// labelParsers are tried in order; the first match wins.
var labelParsers = []labelParser{
	{
		kind:  KindChapter,
		re:    regexp.MustCompile(`^(BAB|Bab|bab)\s+([IVXLCDM]+|\d+)\b(?:\.|:)?\s*(.*)$`),
		parse: headedLabel(KindChapter),
	},
	{
		kind:  KindAppendix,
		re:    regexp.MustCompile(`^(LAMPIRAN|Lampiran|lampiran)\s+([IVXLCDM]+|\d+|\w+)\b(?:\.|:)?\s*(.*)$`),
		parse: headedLabel(KindAppendix),
	},
	{
		kind:  KindSection,
		re:    regexp.MustCompile(`^(BAGIAN|Bagian|bagian)\s+([IVXLCDM]+|\d+)\b(?:\.|:)?\s*(.*)$`),
		parse: headedLabel(KindSection),
	},
	{
		kind: KindSubsection,
		re:   regexp.MustCompile(`^(\d+\.\d+\.?\d*)\s+(.+)$`),
		parse: func(m []string) Label {
			return Label{Kind: KindSubsection, Marker: m[1], Title: strings.TrimSpace(m[2])}
		},
	},
	{
		kind: KindLettered,
		re:   regexp.MustCompile(`^([A-Z]\.|[a-z]\.)\s+(.+)$`),
		parse: func(m []string) Label {
			return Label{Kind: KindLettered, Marker: m[1], Title: strings.TrimSpace(m[2])}
		},
	},
}

// MatchLabel returns the highest-priority structural label on a trimmed line.
func MatchLabel(line string) (Label, bool) {
	for _, p := range labelParsers {
		if m := p.re.FindStringSubmatch(line); m != nil {
			return p.parse(m), true
		}
	}
	return Label{}, false
}

var runTogetherChapter = regexp.MustCompile(`(?i)\bBABI\b`)

// normalizeLine trims a line and repairs OCR artifacts that hide a label,
// such as "BABI" for "BAB I".
func normalizeLine(line string) string {
	line = strings.TrimSpace(line)
	return runTogetherChapter.ReplaceAllString(line, "BAB I")
}
