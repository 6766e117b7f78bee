// Package service wires the chunker, embedder and vector store into the
// ingestion, retrieval and retention pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"guildmem/internal/chunker"
	"guildmem/internal/config"
	"guildmem/internal/embedding"
	"guildmem/internal/extract"
	"guildmem/internal/vectorstore"
)

// ErrDisabled is returned by New when the pipeline is switched off in the
// configuration. Callers treat it as "feature off", not as a failure.
var ErrDisabled = errors.New("service: pipeline disabled")

// Pipeline is the long-lived engine behind every command. It is constructed
// once at startup; a dimension mismatch between the embedder and an existing
// collection fails here, never on a later call.
type Pipeline struct {
	store      vectorstore.Store
	maint      vectorstore.Maintainer
	embedder   embedding.Embedder
	chunker    *chunker.Chunker
	fetcher    *extract.Fetcher
	cfg        *config.AppConfig
	collection string
	log        *slog.Logger
	now        func() time.Time
}

// New builds the pipeline from configuration and verifies the collection.
func New(ctx context.Context, cfg *config.AppConfig, store vectorstore.Store, embedder embedding.Embedder, log *slog.Logger) (*Pipeline, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if log == nil {
		log = slog.Default()
	}
	ch, err := chunker.New(cfg.Chunker.MaxChars, cfg.Chunker.EffectiveOverlap())
	if err != nil {
		return nil, err
	}
	dim, err := embedder.Dimension(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: probe embedder dimension: %w", err)
	}
	if err := store.EnsureCollection(ctx, cfg.VectorStore.Collection, dim); err != nil {
		return nil, fmt.Errorf("service: ensure collection: %w", err)
	}

	p := &Pipeline{
		store:      store,
		embedder:   embedder,
		chunker:    ch,
		cfg:        cfg,
		collection: cfg.VectorStore.Collection,
		log:        log.With("component", "pipeline"),
		now:        time.Now,
	}
	if m, ok := store.(vectorstore.Maintainer); ok {
		p.maint = m
	}
	p.fetcher = extract.NewFetcher(extract.FetcherConfig{
		Timeout:        secondsOrZero(cfg.Fetch.TimeoutSecs),
		RequestsPerSec: cfg.Fetch.RequestsPerSec,
		MaxChars:       cfg.Fetch.MaxChars,
	})
	p.log.Info("pipeline ready",
		"collection", p.collection,
		"embedder", embedder.Name(),
		"dimension", dim)
	return p, nil
}

// Collection reports the collection name the pipeline operates on.
func (p *Pipeline) Collection() string { return p.collection }

func secondsOrZero(secs int) time.Duration {
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
