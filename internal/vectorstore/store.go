// Package vectorstore persists embedded chunks in a collection with a cosine
// similarity index and serves search, metadata query, update and delete by
// metadata filter.
package vectorstore

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/dgallion1/regdocs/internal/record"
)

var (
	// ErrNotFound is returned when a filter matches no rows.
	ErrNotFound = errors.New("no matching rows")
	// ErrSchemaMismatch is returned when an existing collection was created
	// for a different vector dimension.
	ErrSchemaMismatch = errors.New("collection schema mismatch")
)

// Row is one stored chunk.
type Row struct {
	ID                int64     `json:"id"`
	ChunkID           string    `json:"chunk_id"`
	Text              string    `json:"text"`
	FileName          string    `json:"file_name"`
	Bookmark          string    `json:"bookmark"`
	ChapterTitle      string    `json:"chapter_title"`
	ExtractorBookmark string    `json:"extractor_bookmark,omitempty"`
	PageNumber        int       `json:"page_number"`
	HasTables         bool      `json:"has_tables"`
	Embedding         []float32 `json:"-"`
}

// FromChunk converts an embedded chunk into a row.
func FromChunk(c record.EmbeddedChunk) Row {
	return Row{
		ChunkID:           c.ChunkID,
		Text:              c.Text,
		FileName:          c.FileName,
		Bookmark:          c.Bookmark,
		ChapterTitle:      c.ChapterTitle,
		ExtractorBookmark: c.ExtractorBookmark,
		PageNumber:        c.PageNumber,
		HasTables:         c.HasTables,
		Embedding:         c.Embedding,
	}
}

// Hit is a search result with its cosine similarity to the query.
type Hit struct {
	Row
	Score float64 `json:"score"`
}

// Filter selects rows by metadata. Zero-valued fields match everything.
// FileName, PageNumber and Bookmark are equality filters; the *Contains
// fields are case-insensitive substring filters.
type Filter struct {
	FileName             string `json:"file_name,omitempty"`
	PageNumber           int    `json:"page_number,omitempty"`
	Bookmark             string `json:"bookmark,omitempty"`
	ChapterTitleContains string `json:"chapter_title_contains,omitempty"`
	TextContains         string `json:"text_contains,omitempty"`
	HasTables            *bool  `json:"has_tables,omitempty"`
}

// Page returns the filter for every row of one page of one file.
func Page(fileName string, page int) Filter {
	return Filter{FileName: fileName, PageNumber: page}
}

// Empty reports whether f matches every row.
func (f Filter) Empty() bool {
	return f == Filter{}
}

// Match reports whether r satisfies f.
func (f Filter) Match(r Row) bool {
	if f.FileName != "" && r.FileName != f.FileName {
		return false
	}
	if f.PageNumber != 0 && r.PageNumber != f.PageNumber {
		return false
	}
	if f.Bookmark != "" && r.Bookmark != f.Bookmark {
		return false
	}
	if f.ChapterTitleContains != "" && !containsFold(r.ChapterTitle, f.ChapterTitleContains) {
		return false
	}
	if f.TextContains != "" && !containsFold(r.Text, f.TextContains) {
		return false
	}
	if f.HasTables != nil && r.HasTables != *f.HasTables {
		return false
	}
	return true
}

// Update sets the non-nil fields on every matched row.
type Update struct {
	Text         *string   `json:"text,omitempty"`
	Bookmark     *string   `json:"bookmark,omitempty"`
	ChapterTitle *string   `json:"chapter_title,omitempty"`
	HasTables    *bool     `json:"has_tables,omitempty"`
	Embedding    []float32 `json:"-"`
}

// Empty reports whether u changes nothing.
func (u Update) Empty() bool {
	return u.Text == nil && u.Bookmark == nil && u.ChapterTitle == nil && u.HasTables == nil && u.Embedding == nil
}

func (u Update) apply(r *Row) {
	if u.Text != nil {
		r.Text = *u.Text
	}
	if u.Bookmark != nil {
		r.Bookmark = *u.Bookmark
	}
	if u.ChapterTitle != nil {
		r.ChapterTitle = *u.ChapterTitle
	}
	if u.HasTables != nil {
		r.HasTables = *u.HasTables
	}
	if u.Embedding != nil {
		r.Embedding = u.Embedding
	}
}

// Store is a collection of embedded chunks.
type Store interface {
	// EnsureCollection creates the collection and its indexes for vectors of
	// dim dimensions when it does not exist yet.
	EnsureCollection(ctx context.Context, dim int) error
	// Insert appends rows and returns how many were written.
	Insert(ctx context.Context, rows []Row) (int, error)
	// Search returns the k rows matching f closest to vec by cosine
	// similarity, best first.
	Search(ctx context.Context, vec []float32, f Filter, k int) ([]Hit, error)
	// Query returns up to limit rows matching f ordered by file, page and id.
	// A limit of 0 returns every match.
	Query(ctx context.Context, f Filter, limit int) ([]Row, error)
	Count(ctx context.Context, f Filter) (int64, error)
	Update(ctx context.Context, f Filter, u Update) (int64, error)
	Delete(ctx context.Context, f Filter) (int64, error)
	Close() error
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
