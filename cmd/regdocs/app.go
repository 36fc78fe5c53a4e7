package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dgallion1/regdocs/internal/chunker"
	"github.com/dgallion1/regdocs/internal/embed"
	"github.com/dgallion1/regdocs/internal/parser"
	"github.com/dgallion1/regdocs/internal/pipeline"
	"github.com/dgallion1/regdocs/internal/structure"
	"github.com/dgallion1/regdocs/internal/vectorstore"
)

// app holds the collaborators a command opened. Close releases them.
type app struct {
	runner *pipeline.Runner
	stats  *embed.Stats
}

// needs selects which collaborators newApp opens.
type needs struct {
	tokenizer bool
	embedder  bool
	store     bool
}

var allNeeds = needs{tokenizer: true, embedder: true, store: true}

func newApp(ctx context.Context, n needs) (*app, error) {
	a := &app{
		runner: &pipeline.Runner{
			DataDir: cfg.DataDir,
			Parser: parser.Options{
				FallbackPdftotext: cfg.PDF.FallbackPdftotext,
				DetectTables:      cfg.PDF.DetectTables,
			},
			Extractor: structure.NewExtractor(),
			Chunk: chunker.Config{
				MaxTokens:     cfg.Chunk.MaxTokens,
				Overlap:       cfg.Chunk.Overlap,
				PageScopedIDs: cfg.Chunk.PageScopedIDs,
			},
			EmbedBatch: cfg.Embed.BatchSize,
			Log:        logger,
		},
	}

	if n.tokenizer {
		if err := a.runner.Chunk.Validate(); err != nil {
			return nil, err
		}
		tok, err := chunker.NewTokenizer(cfg.Chunk.Encoding)
		if err != nil {
			return nil, fmt.Errorf("tokenizer %s: %w", cfg.Chunk.Encoding, err)
		}
		a.runner.Tokenizer = tok
	}

	if n.embedder {
		if err := cfg.ValidateEmbed(); err != nil {
			return nil, err
		}
		e, err := embed.New(ctx, embed.Options{
			Provider:      cfg.Embed.Provider,
			Model:         cfg.Embed.Model,
			BaseURL:       cfg.Embed.BaseURL,
			APIKey:        cfg.Embed.APIKey,
			Dimensions:    cfg.Embed.Dimensions,
			Timeout:       cfg.Embed.Timeout,
			RetryAttempts: cfg.Embed.RetryAttempts,
			RetryDelay:    cfg.Embed.RetryDelay,
		})
		if err != nil {
			return nil, err
		}
		a.stats = embed.NewStats(time.Hour)
		a.runner.Embedder = embed.WithStats(e, a.stats)
	}

	if n.store {
		s, err := openStore(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.runner.Store = s
	}
	return a, nil
}

func openStore(ctx context.Context) (vectorstore.Store, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	if cfg.Store.Driver == "memory" {
		logger.Warn("using the in-process memory store; rows are lost when the process exits")
		return vectorstore.NewMemory(), nil
	}
	return vectorstore.OpenPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Collection, cfg.Store.BatchSize)
}

func (a *app) Close() {
	if a.runner.Embedder != nil {
		if err := a.runner.Embedder.Close(); err != nil {
			logger.Warn("close embedder", "error", err)
		}
	}
	if a.runner.Store != nil {
		if err := a.runner.Store.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
