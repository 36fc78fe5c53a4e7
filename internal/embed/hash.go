package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const hashDefaultDimensions = 256

// Hash is an offline embedder that hashes lowercased words into a fixed
// number of buckets and L2-normalizes the counts. Identical texts always
// map to identical vectors.
type Hash struct {
	dim int
}

func NewHash(dimensions int) *Hash {
	if dimensions <= 0 {
		dimensions = hashDefaultDimensions
	}
	return &Hash{dim: dimensions}
}

func (h *Hash) Model() string {
	return "hash"
}

func (h *Hash) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *Hash) vector(text string) []float32 {
	vec := make([]float32, h.dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New32a()
		f.Write([]byte(w))
		vec[f.Sum32()%uint32(h.dim)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (h *Hash) Close() error {
	return nil
}
