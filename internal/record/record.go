package record

import "unicode/utf8"

// PageRecord is one page of a source document as emitted by the extract and
// cleanse stages.
type PageRecord struct {
	Filename      string  `json:"filename"`
	PageNumber    int     `json:"page_number"`
	Bookmark      *string `json:"bookmark"`
	ChapterTitle  string  `json:"chapter_title"`
	Content       string  `json:"content"`
	ContentLength int     `json:"content_length"`
	HasTables     bool    `json:"has_tables"`

	// Labels assigned by the extract stage, kept after cleansing overwrites
	// Bookmark and ChapterTitle. Nil until the cleanse stage has run.
	ExtractorBookmark     *string `json:"extractor_bookmark,omitempty"`
	ExtractorChapterTitle *string `json:"extractor_chapter_title,omitempty"`
}

// BookmarkValue returns the bookmark or "" when it is null.
func (p PageRecord) BookmarkValue() string {
	if p.Bookmark == nil {
		return ""
	}
	return *p.Bookmark
}

// SetContent replaces Content and recomputes ContentLength.
func (p *PageRecord) SetContent(content string) {
	p.Content = content
	p.ContentLength = Length(content)
}

// Chunk is a token-bounded slice of one page's content.
type Chunk struct {
	ChunkID      string `json:"chunk_id"`
	Text         string `json:"text"`
	FileName     string `json:"file_name"`
	Bookmark     string `json:"bookmark"`
	ChapterTitle string `json:"chapter_title"`
	PageNumber   int    `json:"page_number"`
	HasTables    bool   `json:"has_tables"`
	TextLength   int    `json:"text_length"`

	ExtractorBookmark string `json:"extractor_bookmark,omitempty"`
}

// EmbeddedChunk is a Chunk with its embedding vector.
type EmbeddedChunk struct {
	Chunk
	Embedding []float32 `json:"embedding"`
}

// Length counts characters the way the stage files report them: Unicode
// code points, not bytes.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
