package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/regdocs/internal/chunker"
	"github.com/dgallion1/regdocs/internal/cleanse"
	"github.com/dgallion1/regdocs/internal/embed"
	"github.com/dgallion1/regdocs/internal/parser"
	"github.com/dgallion1/regdocs/internal/record"
	"github.com/dgallion1/regdocs/internal/structure"
	"github.com/dgallion1/regdocs/internal/vectorstore"
)

// Runner executes the pipeline stages. Every stage reads the previous
// stage's file and writes its own next to it, so any stage can be rerun on
// its own.
type Runner struct {
	DataDir    string
	Parser     parser.Options
	Extractor  *structure.Extractor
	Chunk      chunker.Config
	Tokenizer  chunker.Tokenizer
	Embedder   embed.Embedder
	EmbedBatch int
	Store      vectorstore.Store
	Log        *slog.Logger
}

// Extract parses the source document and writes its page records to
// {data_dir}/{stem}/{stem}_ekstrak.jsonl.
func (r *Runner) Extract(ctx context.Context, source string) (string, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", source, err)
	}
	return r.ExtractReader(ctx, bytes.NewReader(data), filepath.Base(source))
}

// ExtractReader is Extract for a document that is already in memory.
func (r *Runner) ExtractReader(ctx context.Context, src io.Reader, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	start := time.Now()
	log := r.Log.With("stage", "extract", "file", filename)
	log.Info("stage started")

	p, err := parser.ForFile(filename, r.Parser)
	if err != nil {
		return "", err
	}
	doc, err := p.Parse(src, filename)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", filename, err)
	}
	doc.Filename = filename

	ex := r.Extractor
	if ex == nil {
		ex = structure.NewExtractor()
	}
	records, sum := ex.Document(doc)

	out := record.ExtractPath(r.DataDir, filename)
	if err := record.WriteFile(out, records); err != nil {
		return "", err
	}
	log.Info("stage finished",
		"pages", sum.Pages,
		"records", sum.Records,
		"bookmarks", sum.Bookmarks,
		"output", out,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// Cleanse writes {stem}_cleansing.jsonl for an extract file.
func (r *Runner) Cleanse(ctx context.Context, in string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	start := time.Now()
	log := r.Log.With("stage", "cleanse", "input", in)
	log.Info("stage started")

	records, err := record.ReadFile[record.PageRecord](in)
	if err != nil {
		return "", err
	}
	cleaned, sum := cleanse.Records(records)

	out := record.NextPath(in, record.StageCleanse)
	if err := record.WriteFile(out, cleaned); err != nil {
		return "", err
	}
	log.Info("stage finished",
		"records", sum.Records,
		"lines_dropped", sum.LinesDropped,
		"bookmarks", sum.Bookmarks,
		"output", out,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// ChunkFile writes {stem}_chunked.jsonl for a cleansing file.
func (r *Runner) ChunkFile(ctx context.Context, in string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r.Tokenizer == nil {
		return "", fmt.Errorf("chunk: no tokenizer configured")
	}
	start := time.Now()
	log := r.Log.With("stage", "chunk", "input", in)
	log.Info("stage started", "max_tokens", r.Chunk.MaxTokens, "overlap", r.Chunk.Overlap)

	records, err := record.ReadFile[record.PageRecord](in)
	if err != nil {
		return "", err
	}
	chunks, sum, err := chunker.Records(records, r.Tokenizer, r.Chunk)
	if err != nil {
		return "", fmt.Errorf("chunk %s: %w", in, err)
	}

	out := record.NextPath(in, record.StageChunk)
	if err := record.WriteFile(out, chunks); err != nil {
		return "", err
	}
	log.Info("stage finished",
		"records", sum.Records,
		"chunks", sum.Chunks,
		"empty_records", sum.Empty,
		"output", out,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// Embed writes {stem}_embedding.jsonl for a chunked file.
func (r *Runner) Embed(ctx context.Context, in string) (string, error) {
	if r.Embedder == nil {
		return "", fmt.Errorf("embed: no embedder configured")
	}
	start := time.Now()
	log := r.Log.With("stage", "embed", "input", in, "model", r.Embedder.Model())
	log.Info("stage started")

	chunks, err := record.ReadFile[record.Chunk](in)
	if err != nil {
		return "", err
	}
	embedded, sum, err := embed.Chunks(ctx, r.Embedder, chunks, r.EmbedBatch, log)
	if err != nil {
		return "", fmt.Errorf("embed %s: %w", in, err)
	}

	out := record.NextPath(in, record.StageEmbedding)
	if err := record.WriteFile(out, embedded); err != nil {
		return "", err
	}
	log.Info("stage finished",
		"chunks", sum.Chunks,
		"batches", sum.Batches,
		"dimension", sum.Dimension,
		"output", out,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// Load inserts an embedding file into the store, creating the collection
// for the file's dimension when needed. With replace, the rows of every
// file named in the input are deleted first, which makes a reload
// idempotent. Plain inserts append.
func (r *Runner) Load(ctx context.Context, in string, replace bool) (int, error) {
	return r.load(ctx, in, replace, nil)
}

// load is Load with extra file names whose rows replace also deletes. An
// input with no chunks names no files, so a document that now yields
// nothing passes its own name here.
func (r *Runner) load(ctx context.Context, in string, replace bool, replaceFiles []string) (int, error) {
	if r.Store == nil {
		return 0, fmt.Errorf("load: no store configured")
	}
	start := time.Now()
	log := r.Log.With("stage", "load", "input", in)
	log.Info("stage started", "replace", replace)

	chunks, err := record.ReadFile[record.EmbeddedChunk](in)
	if err != nil {
		return 0, err
	}

	if len(chunks) > 0 {
		if err := r.Store.EnsureCollection(ctx, len(chunks[0].Embedding)); err != nil {
			return 0, fmt.Errorf("load %s: %w", in, err)
		}
	}

	if replace {
		names := slices.Clone(replaceFiles)
		for _, c := range chunks {
			if !slices.Contains(names, c.FileName) {
				names = append(names, c.FileName)
			}
		}
		if len(names) == 0 {
			log.Warn("nothing replaced, input names no file")
		}
		for _, name := range names {
			n, err := r.Store.Delete(ctx, vectorstore.Filter{FileName: name})
			if err != nil {
				return 0, fmt.Errorf("replace %s: %w", name, err)
			}
			log.Info("replaced existing rows", "file_name", name, "deleted", n)
		}
	}

	if len(chunks) == 0 {
		log.Warn("nothing to load")
		return 0, nil
	}

	rows := make([]vectorstore.Row, len(chunks))
	for i, c := range chunks {
		rows[i] = vectorstore.FromChunk(c)
	}
	n, err := r.Store.Insert(ctx, rows)
	if err != nil {
		return n, fmt.Errorf("load %s: %w", in, err)
	}
	log.Info("stage finished", "inserted", n, "duration_ms", time.Since(start).Milliseconds())
	return n, nil
}

// RunOptions tunes Run.
type RunOptions struct {
	Replace bool
	// OnStage is called before each stage starts.
	OnStage func(JobStatus)
}

// Report summarizes one document's run.
type Report struct {
	Source   string        `json:"source"`
	Files    []string      `json:"files"`
	Inserted int           `json:"inserted"`
	Duration time.Duration `json:"duration"`
}

// Run executes every stage for one source document in order.
func (r *Runner) Run(ctx context.Context, source string, opts RunOptions) (*Report, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	return r.RunReader(ctx, bytes.NewReader(data), filepath.Base(source), opts)
}

// RunReader is Run for a document that is already in memory.
func (r *Runner) RunReader(ctx context.Context, src io.Reader, filename string, opts RunOptions) (*Report, error) {
	start := time.Now()
	rep := &Report{Source: filename}
	notify := func(s JobStatus) {
		if opts.OnStage != nil {
			opts.OnStage(s)
		}
	}

	notify(StatusExtracting)
	path, err := r.ExtractReader(ctx, src, filename)
	if err != nil {
		return rep, err
	}
	rep.Files = append(rep.Files, path)

	steps := []struct {
		status JobStatus
		run    func(context.Context, string) (string, error)
	}{
		{StatusCleansing, r.Cleanse},
		{StatusChunking, r.ChunkFile},
		{StatusEmbedding, r.Embed},
	}
	for _, s := range steps {
		notify(s.status)
		if path, err = s.run(ctx, path); err != nil {
			return rep, err
		}
		rep.Files = append(rep.Files, path)
	}

	notify(StatusLoading)
	if rep.Inserted, err = r.load(ctx, path, opts.Replace, []string{filename}); err != nil {
		return rep, err
	}
	rep.Duration = time.Since(start)
	return rep, nil
}

// RunAll runs several documents, at most parallel at a time. Each document
// still runs its stages in order. The first failure cancels the rest.
// Sources whose stems collide are rejected before anything runs, since they
// would share stage files.
func (r *Runner) RunAll(ctx context.Context, sources []string, parallel int, opts RunOptions) ([]*Report, error) {
	if err := checkStems(sources); err != nil {
		return nil, err
	}
	if parallel <= 0 {
		parallel = 1
	}
	reports := make([]*Report, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			rep, err := r.Run(gctx, src, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", src, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, nil
}

// ErrStemCollision is returned by RunAll for sources that map to the same
// stage files.
var ErrStemCollision = errors.New("sources share a document stem")

func checkStems(sources []string) error {
	seen := make(map[string]string, len(sources))
	for _, src := range sources {
		stem := record.DocumentStem(src)
		if prev, ok := seen[stem]; ok {
			return fmt.Errorf("%w %q: %s and %s", ErrStemCollision, stem, prev, src)
		}
		seen[stem] = src
	}
	return nil
}
