package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"guildmem/internal/chunker"
	"guildmem/internal/domain"
	"guildmem/internal/vectorstore"
)

// Search runs a guild-scoped similarity search and returns the raw scored
// hits, best first. The guild's configured top_k and min_score apply; a
// trivial query returns no hits.
func (p *Pipeline) Search(ctx context.Context, guildID int64, query string) ([]vectorstore.ScoredPoint, error) {
	if chunker.IsTrivial(query) {
		return nil, nil
	}
	vectors, err := p.embedder.Embed(ctx, []string{chunker.Normalize(query)})
	if err != nil {
		return nil, fmt.Errorf("service: embed query: %w", err)
	}

	topK := p.cfg.TopKFor(guildID)
	minScore := p.cfg.MinScoreFor(guildID)
	hits, err := p.store.Search(ctx, p.collection, vectors[0], topK, minScore, vectorstore.Filter{GuildID: &guildID})
	if err != nil {
		return nil, fmt.Errorf("service: search: %w", err)
	}
	p.log.Debug("searched",
		"guild_id", guildID,
		"top_k", topK,
		"min_score", minScore,
		"hits", len(hits))
	return hits, nil
}

// Retrieve assembles the numbered context block for a query, with one
// citation per hit. An empty result set returns (nil, nil): nothing relevant
// is not an error.
func (p *Pipeline) Retrieve(ctx context.Context, guildID int64, query string) (*domain.RetrievalResult, error) {
	hits, err := p.Search(ctx, guildID, query)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	blocks := make([]string, 0, len(hits))
	citations := make([]string, 0, len(hits))
	for i, hit := range hits {
		blocks = append(blocks, fmt.Sprintf("[%d] %s", i+1, hit.Payload.Text))
		citations = append(citations, FormatCitation(hit.Payload))
	}
	joined := strings.Join(blocks, "\n\n")
	if max := p.cfg.Retrieval.MaxContextChars; len(joined) > max {
		// Back the cut off to a rune boundary so the tail stays valid UTF-8.
		cut := max
		for cut > 0 && !utf8.RuneStart(joined[cut]) {
			cut--
		}
		joined = joined[:cut]
	}
	return &domain.RetrievalResult{ContextBlock: joined, Citations: citations}, nil
}

// FormatCitation renders the origin line shown next to a context block.
func FormatCitation(p vectorstore.Payload) string {
	return fmt.Sprintf("%s — %s %s", p.Source, p.Author, p.CreatedAt)
}
