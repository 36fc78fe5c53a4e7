package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Store. It keeps rows in insertion order and scans
// them linearly.
type Memory struct {
	mu     sync.RWMutex
	dim    int
	nextID int64
	rows   []Row
}

func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

func (m *Memory) EnsureCollection(_ context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid dimension %d", dim)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dim == 0 {
		m.dim = dim
		return nil
	}
	if m.dim != dim {
		return fmt.Errorf("%w: collection has dimension %d, vectors have %d", ErrSchemaMismatch, m.dim, dim)
	}
	return nil
}

func (m *Memory) Insert(_ context.Context, rows []Row) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range rows {
		if m.dim != 0 && len(r.Embedding) != m.dim {
			return i, fmt.Errorf("insert row %d: %w: got %d, want %d", i, ErrSchemaMismatch, len(r.Embedding), m.dim)
		}
		r.ID = m.nextID
		m.nextID++
		m.rows = append(m.rows, r)
	}
	return len(rows), nil
}

func (m *Memory) Search(_ context.Context, vec []float32, f Filter, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Hit
	for _, r := range m.rows {
		if f.Match(r) {
			hits = append(hits, Hit{Row: r, Score: Cosine(vec, r.Embedding)})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *Memory) Query(_ context.Context, f Filter, limit int) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Row
	for _, r := range m.rows {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FileName != out[j].FileName {
			return out[i].FileName < out[j].FileName
		}
		if out[i].PageNumber != out[j].PageNumber {
			return out[i].PageNumber < out[j].PageNumber
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Count(_ context.Context, f Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, r := range m.rows {
		if f.Match(r) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Update(_ context.Context, f Filter, u Update) (int64, error) {
	if u.Empty() {
		return 0, fmt.Errorf("update changes nothing")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.rows {
		if f.Match(m.rows[i]) {
			u.apply(&m.rows[i])
			n++
		}
	}
	return n, nil
}

func (m *Memory) Delete(_ context.Context, f Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	var n int64
	for _, r := range m.rows {
		if f.Match(r) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return n, nil
}

func (m *Memory) Close() error {
	return nil
}
