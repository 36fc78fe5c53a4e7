package chunker

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Tokenizer maps text to token IDs and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Tiktoken is a BPE tokenizer with a fixed encoding such as cl100k_base.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

var offlineRanks sync.Once

// NewTiktoken loads the named encoding from the BPE ranks bundled into the
// binary, so no download is needed.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	offlineRanks.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *Tiktoken) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Words is a whitespace tokenizer. Token IDs index into the words seen so
// far, so Decode only understands tokens produced by the same value. It is
// safe for concurrent use.
type Words struct {
	mu    sync.Mutex
	vocab []string
	ids   map[string]int
}

func NewWords() *Words {
	return &Words{ids: map[string]int{}}
}

func (w *Words) Encode(text string) []int {
	fields := strings.Fields(text)
	out := make([]int, len(fields))
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, f := range fields {
		id, ok := w.ids[f]
		if !ok {
			id = len(w.vocab)
			w.vocab = append(w.vocab, f)
			w.ids[f] = id
		}
		out[i] = id
	}
	return out
}

func (w *Words) Decode(tokens []int) string {
	parts := make([]string, len(tokens))
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, id := range tokens {
		parts[i] = w.vocab[id]
	}
	return strings.Join(parts, " ")
}

// NewTokenizer returns the tokenizer for an encoding name. "words" selects
// the whitespace tokenizer, which needs no downloaded BPE ranks.
func NewTokenizer(encoding string) (Tokenizer, error) {
	if encoding == "words" {
		return NewWords(), nil
	}
	return NewTiktoken(encoding)
}
