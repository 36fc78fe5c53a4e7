package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dgallion1/regdocs/internal/record"
)

func numbered(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func pageRecord(content string) record.PageRecord {
	p := record.PageRecord{
		Filename:     "pedoman.pdf",
		PageNumber:   4,
		Bookmark:     record.StringPtr("BAB II"),
		ChapterTitle: "Ketentuan Umum",
		HasTables:    true,
	}
	p.SetContent(content)
	return p
}

func TestPage_FiveHundredTokensMakeTwoChunks(t *testing.T) {
	chunks, err := Page(pageRecord(numbered(500)), NewWords(), DefaultConfig())
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[1].Text, "w400 ") {
		t.Errorf("expected second chunk to start at token 400, got %q", chunks[1].Text[:20])
	}
	if got := len(strings.Fields(chunks[0].Text)); got != 450 {
		t.Errorf("expected 450 tokens in first chunk, got %d", got)
	}
	if !strings.HasSuffix(chunks[1].Text, " w499") {
		t.Errorf("expected second chunk to end at the last token")
	}
}

func TestPage_Metadata(t *testing.T) {
	rec := pageRecord("Isi pasal pertama.")
	rec.ExtractorBookmark = record.StringPtr("1.1")
	chunks, err := Page(rec, NewWords(), DefaultConfig())
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.ChunkID != "pedoman.pdf_BAB II_0" {
		t.Errorf("unexpected chunk id %q", c.ChunkID)
	}
	if c.FileName != "pedoman.pdf" || c.Bookmark != "BAB II" || c.ChapterTitle != "Ketentuan Umum" || c.PageNumber != 4 || !c.HasTables {
		t.Errorf("expected page metadata inherited, got %+v", c)
	}
	if c.TextLength != record.Length(c.Text) {
		t.Errorf("expected text_length %d, got %d", record.Length(c.Text), c.TextLength)
	}
	if c.ExtractorBookmark != "1.1" {
		t.Errorf("expected extractor bookmark carried, got %q", c.ExtractorBookmark)
	}
}

func TestPage_EmptyContent(t *testing.T) {
	chunks, err := Page(pageRecord("  \n "), NewWords(), DefaultConfig())
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}

func TestPage_NullBookmark(t *testing.T) {
	rec := pageRecord("teks")
	rec.Bookmark = nil
	chunks, _ := Page(rec, NewWords(), DefaultConfig())
	if chunks[0].ChunkID != "pedoman.pdf__0" {
		t.Errorf("unexpected chunk id %q", chunks[0].ChunkID)
	}
}

func TestPage_PageScopedIDs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PageScopedIDs = true
	chunks, _ := Page(pageRecord("teks"), NewWords(), cfg)
	if chunks[0].ChunkID != "pedoman.pdf_BAB II_p4_0" {
		t.Errorf("unexpected chunk id %q", chunks[0].ChunkID)
	}
}

func TestPage_RoundTripCoversAllTokens(t *testing.T) {
	cfg := Config{MaxTokens: 7, Overlap: 3}
	for _, n := range []int{1, 6, 7, 8, 11, 12, 50} {
		tok := NewWords()
		content := numbered(n)
		chunks, err := Page(pageRecord(content), tok, cfg)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}

		var rebuilt []string
		for i, c := range chunks {
			words := strings.Fields(c.Text)
			if len(words) > cfg.MaxTokens {
				t.Errorf("n=%d chunk %d: %d tokens exceeds max", n, i, len(words))
			}
			if i > 0 {
				prev := strings.Fields(chunks[i-1].Text)
				if strings.Join(prev[len(prev)-cfg.Overlap:], " ") != strings.Join(words[:cfg.Overlap], " ") {
					t.Errorf("n=%d chunk %d: expected %d overlapping tokens", n, i, cfg.Overlap)
				}
				words = words[cfg.Overlap:]
			}
			rebuilt = append(rebuilt, words...)
		}
		if strings.Join(rebuilt, " ") != content {
			t.Errorf("n=%d: reconstruction mismatch", n)
		}
	}
}

func TestPage_IDsUniqueWithinPage(t *testing.T) {
	chunks, _ := Page(pageRecord(numbered(2000)), NewWords(), DefaultConfig())
	seen := map[string]bool{}
	for _, c := range chunks {
		if seen[c.ChunkID] {
			t.Fatalf("duplicate chunk id %q", c.ChunkID)
		}
		seen[c.ChunkID] = true
	}
}

func TestWindows(t *testing.T) {
	cases := []struct {
		n    int
		want [][2]int
	}{
		{0, nil},
		{3, [][2]int{{0, 3}}},
		{450, [][2]int{{0, 450}}},
		{451, [][2]int{{0, 450}, {400, 451}}},
		{850, [][2]int{{0, 450}, {400, 850}}},
		{851, [][2]int{{0, 450}, {400, 850}, {800, 851}}},
	}
	for _, tc := range cases {
		got := Windows(tc.n, DefaultConfig())
		if fmt.Sprint(got) != fmt.Sprint(tc.want) {
			t.Errorf("Windows(%d): expected %v, got %v", tc.n, tc.want, got)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	bad := []Config{{MaxTokens: 0}, {MaxTokens: 10, Overlap: 10}, {MaxTokens: 10, Overlap: -1}}
	for _, c := range bad {
		if c.Validate() == nil {
			t.Errorf("expected %+v to be rejected", c)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("expected defaults to be valid: %v", err)
	}
	if _, err := Page(pageRecord("x"), NewWords(), Config{MaxTokens: 5, Overlap: 5}); err == nil {
		t.Error("expected Page to reject an overlap that does not advance")
	}
}

func TestRecords_ResetsIndexPerPage(t *testing.T) {
	a := pageRecord("satu dua")
	b := pageRecord("tiga")
	b.PageNumber = 5
	empty := pageRecord("")
	empty.PageNumber = 6

	chunks, sum, err := Records([]record.PageRecord{a, b, empty}, NewWords(), DefaultConfig())
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].ChunkID != chunks[1].ChunkID {
		t.Errorf("expected page-local ids to repeat across pages, got %q and %q", chunks[0].ChunkID, chunks[1].ChunkID)
	}
	if sum.Records != 3 || sum.Chunks != 2 || sum.Empty != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}
}

// byteTokens encodes every byte as its own token, as byte-level BPE does for
// characters outside its merges.
type byteTokens struct{}

func (byteTokens) Encode(text string) []int {
	out := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		out[i] = int(text[i])
	}
	return out
}

func (byteTokens) Decode(tokens []int) string {
	b := make([]byte, len(tokens))
	for i, t := range tokens {
		b[i] = byte(t)
	}
	return string(b)
}

func TestPage_WindowsSplittingCharactersStayValidUTF8(t *testing.T) {
	chunks, err := Page(pageRecord("ab\u201ccd\u201de"), byteTokens{}, Config{MaxTokens: 4, Overlap: 1})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	want := []string{"ab", "cd", "d\u201d", "e"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c.Text) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, c.Text)
		}
		if c.Text != want[i] {
			t.Errorf("chunk %d: expected %q, got %q", i, want[i], c.Text)
		}
		if c.TextLength != utf8.RuneCountInString(want[i]) {
			t.Errorf("chunk %d: expected length %d, got %d", i, utf8.RuneCountInString(want[i]), c.TextLength)
		}
	}
}

func TestTrimPartialRunes(t *testing.T) {
	cases := map[string]string{
		"\xe2\x80":             "",
		"\x80\x9cabc\xe2":      "abc",
		"\u00b1 \u2265 \u2713": "\u00b1 \u2265 \u2713",
		"\ufffd x \ufffd":      "\ufffd x \ufffd",
		"":                     "",
	}
	for in, want := range cases {
		if got := trimPartialRunes(in); got != want {
			t.Errorf("trimPartialRunes(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestNewTokenizer_BundledRanks(t *testing.T) {
	tok, err := NewTokenizer("cl100k_base")
	if err != nil {
		t.Fatalf("load cl100k_base: %v", err)
	}
	text := "Pegawai wajib hadir ≥ 5 hari ± 1 jam."
	if got := tok.Decode(tok.Encode(text)); got != text {
		t.Errorf("expected round trip %q, got %q", text, got)
	}
}
