package chunker

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/regdocs/internal/record"
)

// Config controls chunking behavior.
type Config struct {
	MaxTokens     int  // Window size in tokens.
	Overlap       int  // Tokens shared by consecutive windows.
	PageScopedIDs bool // Include the page number in chunk IDs.
}

// DefaultConfig returns the stage defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens: 450,
		Overlap:   50,
	}
}

// Validate rejects window settings that cannot advance.
func (c Config) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxTokens {
		return fmt.Errorf("overlap must be in [0, %d), got %d", c.MaxTokens, c.Overlap)
	}
	return nil
}

// Windows returns the [start, end) token offsets of every window over n
// tokens. Window k+1 starts MaxTokens-Overlap tokens after window k, and the
// last window ends at n.
func Windows(n int, cfg Config) [][2]int {
	if n == 0 {
		return nil
	}
	step := cfg.MaxTokens - cfg.Overlap
	var out [][2]int
	for start := 0; ; start += step {
		end := min(start+cfg.MaxTokens, n)
		out = append(out, [2]int{start, end})
		if end == n {
			return out
		}
	}
}

// Page splits one cleaned page into chunks. Chunks never cross pages and
// their index restarts at 0 for every page.
func Page(rec record.PageRecord, tok Tokenizer, cfg Config) ([]record.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tokens := tok.Encode(rec.Content)
	windows := Windows(len(tokens), cfg)
	if len(windows) == 0 {
		return nil, nil
	}

	bookmark := rec.BookmarkValue()
	var extractor string
	if rec.ExtractorBookmark != nil {
		extractor = *rec.ExtractorBookmark
	}

	chunks := make([]record.Chunk, 0, len(windows))
	for i, w := range windows {
		text := strings.TrimSpace(trimPartialRunes(tok.Decode(tokens[w[0]:w[1]])))
		chunks = append(chunks, record.Chunk{
			ChunkID:           ChunkID(rec.Filename, bookmark, rec.PageNumber, i, cfg.PageScopedIDs),
			Text:              text,
			FileName:          rec.Filename,
			Bookmark:          bookmark,
			ChapterTitle:      rec.ChapterTitle,
			PageNumber:        rec.PageNumber,
			HasTables:         rec.HasTables,
			TextLength:        record.Length(text),
			ExtractorBookmark: extractor,
		})
	}
	return chunks, nil
}

// trimPartialRunes drops the bytes of a multi-byte character cut off at
// either end of a decoded window. Byte-level BPE tokens can split a
// character across two windows.
func trimPartialRunes(s string) string {
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r != utf8.RuneError || size != 1 {
			break
		}
		s = s[1:]
	}
	for len(s) > 0 {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size != 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}

// ChunkID formats {file}_{bookmark}_{index}, or
// {file}_{bookmark}_p{page}_{index} when pageScoped is set.
func ChunkID(file, bookmark string, page, index int, pageScoped bool) string {
	var b strings.Builder
	b.WriteString(file)
	b.WriteByte('_')
	b.WriteString(bookmark)
	b.WriteByte('_')
	if pageScoped {
		b.WriteByte('p')
		b.WriteString(strconv.Itoa(page))
		b.WriteByte('_')
	}
	b.WriteString(strconv.Itoa(index))
	return b.String()
}

// Summary describes one chunk run.
type Summary struct {
	Records int
	Chunks  int
	Empty   int
}

// Records chunks every record of a file in order.
func Records(in []record.PageRecord, tok Tokenizer, cfg Config) ([]record.Chunk, Summary, error) {
	sum := Summary{Records: len(in)}
	var out []record.Chunk
	for _, rec := range in {
		chunks, err := Page(rec, tok, cfg)
		if err != nil {
			return nil, sum, fmt.Errorf("page %d: %w", rec.PageNumber, err)
		}
		if len(chunks) == 0 {
			sum.Empty++
		}
		out = append(out, chunks...)
	}
	sum.Chunks = len(out)
	return out, sum, nil
}
