// Package retrieval answers questions against a loaded collection and
// maintains its rows page by page.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/regdocs/internal/chunker"
	"github.com/dgallion1/regdocs/internal/embed"
	"github.com/dgallion1/regdocs/internal/record"
	"github.com/dgallion1/regdocs/internal/vectorstore"
)

const (
	DefaultTopK           = 5
	DefaultThreshold      = 0.80
	DefaultGroupThreshold = 0.75

	// placeholderText is stored when a page is upserted without text.
	placeholderText = "[NEW]"
)

var (
	// ErrEmptyQuery is returned by Search for a blank query.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrNoFields is returned when a page update sets nothing.
	ErrNoFields = errors.New("no fields to update")
	// ErrUnboundedQuery is returned for a metadata query with neither a
	// filter nor a limit.
	ErrUnboundedQuery = errors.New("refusing to list the whole collection without a limit")
)

// Service combines the embedder used at load time with the store.
type Service struct {
	store    vectorstore.Store
	embedder embed.Embedder
	log      *slog.Logger
}

func NewService(store vectorstore.Store, embedder embed.Embedder, log *slog.Logger) *Service {
	return &Service{store: store, embedder: embedder, log: log}
}

// Model names the embedding model queries are encoded with.
func (s *Service) Model() string {
	return s.embedder.Model()
}

// SearchRequest is a hybrid search: vector similarity to Query restricted
// by Filter.
type SearchRequest struct {
	Query          string             `json:"query"`
	Filter         vectorstore.Filter `json:"filter"`
	TopK           int                `json:"top_k,omitempty"`
	Threshold      float64            `json:"threshold,omitempty"`
	Group          bool               `json:"group,omitempty"`
	GroupThreshold float64            `json:"group_threshold,omitempty"`
}

// SearchResult lists every hit and the ones at or above the threshold. When
// no hit reaches the threshold, Best holds the top hit.
type SearchResult struct {
	Query     string              `json:"query"`
	Threshold float64             `json:"threshold"`
	Hits      []vectorstore.Hit   `json:"hits"`
	Relevant  []vectorstore.Hit   `json:"relevant"`
	Best      *vectorstore.Hit    `json:"best,omitempty"`
	Groups    [][]vectorstore.Hit `json:"groups,omitempty"`
}

func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}
	if req.Threshold <= 0 {
		req.Threshold = DefaultThreshold
	}
	if req.GroupThreshold <= 0 {
		req.GroupThreshold = DefaultGroupThreshold
	}

	vec, err := embed.One(ctx, s.embedder, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.store.Search(ctx, vec, req.Filter, req.TopK)
	if err != nil {
		return nil, err
	}

	res := &SearchResult{
		Query:     req.Query,
		Threshold: req.Threshold,
		Hits:      hits,
		Relevant:  Relevant(hits, req.Threshold),
	}
	if len(res.Relevant) == 0 && len(hits) > 0 {
		best := hits[0]
		res.Best = &best
	}
	if req.Group {
		res.Groups = Group(hits, req.GroupThreshold)
	}
	s.log.Info("search",
		"query", req.Query,
		"hits", len(hits),
		"relevant", len(res.Relevant),
		"groups", len(res.Groups),
	)
	return res, nil
}

// Relevant returns the hits scoring at or above threshold, in order.
func Relevant(hits []vectorstore.Hit, threshold float64) []vectorstore.Hit {
	out := []vectorstore.Hit{}
	for _, h := range hits {
		if h.Score >= threshold {
			out = append(out, h)
		}
	}
	return out
}

// Group partitions hits greedily. Each group is seeded by the first hit not
// yet grouped and takes every later ungrouped hit whose stored vector has
// cosine similarity of at least threshold with the seed.
func Group(hits []vectorstore.Hit, threshold float64) [][]vectorstore.Hit {
	var groups [][]vectorstore.Hit
	grouped := make([]bool, len(hits))
	for i := range hits {
		if grouped[i] {
			continue
		}
		grouped[i] = true
		group := []vectorstore.Hit{hits[i]}
		for j := i + 1; j < len(hits); j++ {
			if grouped[j] {
				continue
			}
			if vectorstore.Cosine(hits[i].Embedding, hits[j].Embedding) >= threshold {
				group = append(group, hits[j])
				grouped[j] = true
			}
		}
		groups = append(groups, group)
	}
	return groups
}

// Query returns rows by metadata only.
func (s *Service) Query(ctx context.Context, f vectorstore.Filter, limit int) ([]vectorstore.Row, error) {
	if f.Empty() && limit <= 0 {
		return nil, ErrUnboundedQuery
	}
	return s.store.Query(ctx, f, limit)
}

// PageFields are the page-level values to set. Nil fields are left alone.
type PageFields struct {
	Text         *string `json:"text,omitempty"`
	Bookmark     *string `json:"bookmark,omitempty"`
	ChapterTitle *string `json:"chapter_title,omitempty"`
	HasTables    *bool   `json:"has_tables,omitempty"`
}

func (p PageFields) update() vectorstore.Update {
	return vectorstore.Update{
		Text:         p.Text,
		Bookmark:     p.Bookmark,
		ChapterTitle: p.ChapterTitle,
		HasTables:    p.HasTables,
	}
}

// UpdatePage applies fields to every row of the page. New text is embedded
// again. It returns vectorstore.ErrNotFound when the page has no rows.
func (s *Service) UpdatePage(ctx context.Context, fileName string, page int, fields PageFields) (int64, error) {
	f := vectorstore.Page(fileName, page)
	u := fields.update()
	if u.Empty() {
		return 0, ErrNoFields
	}
	if fields.Text != nil {
		vec, err := embed.One(ctx, s.embedder, *fields.Text)
		if err != nil {
			return 0, fmt.Errorf("embed page text: %w", err)
		}
		u.Embedding = vec
	}
	n, err := s.store.Update(ctx, f, u)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("%s page %d: %w", fileName, page, vectorstore.ErrNotFound)
	}
	s.log.Info("page updated", "file", fileName, "page", page, "rows", n)
	return n, nil
}

// UpsertResult reports what UpsertPage did.
type UpsertResult struct {
	Inserted bool  `json:"inserted"`
	Rows     int64 `json:"rows"`
}

// UpsertPage updates the page's rows, or inserts a single row for the page
// when none exist. The inserted row's text defaults to "[NEW]".
func (s *Service) UpsertPage(ctx context.Context, fileName string, page int, fields PageFields) (UpsertResult, error) {
	n, err := s.store.Count(ctx, vectorstore.Page(fileName, page))
	if err != nil {
		return UpsertResult{}, err
	}
	if n > 0 {
		if fields.update().Empty() {
			return UpsertResult{}, nil
		}
		rows, err := s.UpdatePage(ctx, fileName, page, fields)
		return UpsertResult{Rows: rows}, err
	}

	text := placeholderText
	if fields.Text != nil {
		text = *fields.Text
	}
	vec, err := embed.One(ctx, s.embedder, text)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("embed page text: %w", err)
	}
	if err := s.store.EnsureCollection(ctx, len(vec)); err != nil {
		return UpsertResult{}, err
	}

	row := vectorstore.Row{
		FileName:   fileName,
		PageNumber: page,
		Text:       text,
		Embedding:  vec,
	}
	if fields.Bookmark != nil {
		row.Bookmark = *fields.Bookmark
	}
	if fields.ChapterTitle != nil {
		row.ChapterTitle = *fields.ChapterTitle
	}
	if fields.HasTables != nil {
		row.HasTables = *fields.HasTables
	}
	row.ChunkID = chunker.ChunkID(fileName, row.Bookmark, page, 0, true)

	if _, err := s.store.Insert(ctx, []vectorstore.Row{row}); err != nil {
		return UpsertResult{}, err
	}
	s.log.Info("page inserted", "file", fileName, "page", page, "text_length", record.Length(text))
	return UpsertResult{Inserted: true, Rows: 1}, nil
}

// DeletePage removes every row of the page after checking that it exists.
func (s *Service) DeletePage(ctx context.Context, fileName string, page int) (int64, error) {
	f := vectorstore.Page(fileName, page)
	n, err := s.store.Count(ctx, f)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("%s page %d: %w", fileName, page, vectorstore.ErrNotFound)
	}
	deleted, err := s.store.Delete(ctx, f)
	if err != nil {
		return 0, err
	}
	s.log.Info("page deleted", "file", fileName, "page", page, "rows", deleted)
	return deleted, nil
}
