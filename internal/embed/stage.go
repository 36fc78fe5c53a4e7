package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/regdocs/internal/record"
)

const defaultBatchSize = 32

// Summary describes one embed run.
type Summary struct {
	Chunks    int
	Batches   int
	Dimension int
}

// Chunks embeds chunk texts in batches of batchSize. The first batch fixes
// the dimension of the run; any later disagreement fails with
// ErrDimensionMismatch. A failed batch aborts the run.
func Chunks(ctx context.Context, e Embedder, chunks []record.Chunk, batchSize int, log *slog.Logger) ([]record.EmbeddedChunk, Summary, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	sum := Summary{Chunks: len(chunks)}
	out := make([]record.EmbeddedChunk, 0, len(chunks))

	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		began := time.Now()
		vecs, err := e.Embed(ctx, texts)
		if err != nil {
			return nil, sum, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		if len(vecs) != len(texts) {
			return nil, sum, fmt.Errorf("batch %d-%d: expected %d vectors, got %d", start, end, len(texts), len(vecs))
		}
		for i, v := range vecs {
			if sum.Dimension == 0 {
				sum.Dimension = len(v)
			}
			if len(v) != sum.Dimension {
				return nil, sum, fmt.Errorf("batch %d-%d: %w: got %d, want %d", start, end, ErrDimensionMismatch, len(v), sum.Dimension)
			}
			out = append(out, record.EmbeddedChunk{Chunk: chunks[start+i], Embedding: v})
		}
		sum.Batches++
		log.Debug("embedded batch", "from", start, "to", end, "duration_ms", time.Since(began).Milliseconds())
	}
	return out, sum, nil
}
