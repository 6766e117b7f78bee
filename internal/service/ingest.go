package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"guildmem/internal/chunker"
	"guildmem/internal/domain"
	"guildmem/internal/extract"
	"guildmem/internal/vectorstore"
)

// candidate is one deduplicated chunk waiting for embedding and upsert.
type candidate struct {
	id      string
	text    string
	payload vectorstore.Payload
}

// IngestMessages chunks, deduplicates and stores a batch of messages under
// the given source tag. Bot messages and trivial content are skipped. The
// returned count is the number of unique points written; a batch with no
// survivors returns 0 without touching the store.
//
// Identical content already stored keeps its point: the existing record's
// source set is unioned with the new origin and its last_seen timestamp is
// refreshed, regardless of who re-posted it.
func (p *Pipeline) IngestMessages(ctx context.Context, msgs []domain.Message, source string) (int, error) {
	now := p.now().UTC().Format(time.RFC3339)

	unique := make(map[string]*candidate)
	var order []string
	skipped := 0
	for _, msg := range msgs {
		if msg.Bot || chunker.IsTrivial(msg.Content) {
			skipped++
			continue
		}
		for _, text := range p.chunker.Split(msg.Content) {
			fp := chunker.Fingerprint(text)
			if cand, ok := unique[fp]; ok {
				// Same content twice in one batch: union sources, first
				// sighting keeps the point identity.
				cand.payload.Sources = appendSource(cand.payload.Sources, source)
				continue
			}
			id := chunker.PointID(fp)
			unique[fp] = &candidate{
				id:   id,
				text: text,
				payload: vectorstore.Payload{
					GuildID:     msg.GuildID,
					ChannelID:   msg.ChannelID,
					Author:      msg.Author,
					AuthorID:    msg.AuthorID,
					MessageID:   msg.MessageID,
					CreatedAt:   msg.CreatedAt.UTC().Format(time.RFC3339),
					CreatedAtTS: msg.CreatedAt.Unix(),
					Source:      source,
					Sources:     []string{source},
					ContentHash: fp,
					Text:        text,
					FirstSeen:   now,
					LastSeen:    now,
				},
			}
			order = append(order, fp)
		}
	}
	if len(unique) == 0 {
		p.log.Debug("ingest batch had no storable content", "messages", len(msgs), "skipped", skipped)
		return 0, nil
	}

	if err := p.mergeExisting(ctx, unique, now); err != nil {
		return 0, err
	}

	texts := make([]string, 0, len(order))
	for _, fp := range order {
		texts = append(texts, unique[fp].text)
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("service: embed %d chunks: %w", len(texts), err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("service: embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	points := make([]vectorstore.Point, 0, len(order))
	for i, fp := range order {
		cand := unique[fp]
		points = append(points, vectorstore.Point{
			ID:      cand.id,
			Vector:  vectors[i],
			Payload: cand.payload,
		})
	}
	if err := p.store.Upsert(ctx, p.collection, points); err != nil {
		return 0, fmt.Errorf("service: upsert: %w", err)
	}
	p.log.Info("ingested batch",
		"messages", len(msgs),
		"skipped", skipped,
		"points", len(points),
		"source", source)
	return len(points), nil
}

// mergeExisting folds already-stored records into the batch candidates:
// sources are unioned, first_seen is preserved and last_seen is refreshed.
func (p *Pipeline) mergeExisting(ctx context.Context, unique map[string]*candidate, now string) error {
	ids := make([]string, 0, len(unique))
	byID := make(map[string]*candidate, len(unique))
	for _, cand := range unique {
		ids = append(ids, cand.id)
		byID[cand.id] = cand
	}
	sort.Strings(ids)

	existing, err := p.store.Get(ctx, p.collection, ids)
	if err != nil {
		return fmt.Errorf("service: look up existing points: %w", err)
	}
	for _, rec := range existing {
		cand, ok := byID[rec.ID]
		if !ok {
			continue
		}
		merged := rec.Payload
		for _, src := range cand.payload.Sources {
			merged.Sources = appendSource(merged.Sources, src)
		}
		merged.LastSeen = now
		cand.payload = merged
	}
	return nil
}

// IngestURL fetches a web page, extracts its main content and ingests it as
// a synthetic message attributed to the scope. A fetch or extraction failure
// is logged and reported as zero points, not as an error.
func (p *Pipeline) IngestURL(ctx context.Context, scope domain.Scope, url string) (int, error) {
	text, err := p.fetcher.FetchURL(ctx, url)
	if err != nil {
		p.log.Warn("url yielded no text", "url", url, "error", err)
		return 0, nil
	}
	return p.IngestMessages(ctx, []domain.Message{synthetic(scope, text)}, url)
}

// IngestFile extracts plain text from file content and ingests it as a
// synthetic message attributed to the scope, tagged with the filename.
func (p *Pipeline) IngestFile(ctx context.Context, scope domain.Scope, data []byte, filename string) (int, error) {
	text, err := extract.FromBytes(data, filename)
	if err != nil {
		p.log.Warn("file yielded no text", "file", filename, "error", err)
		return 0, nil
	}
	return p.IngestMessages(ctx, []domain.Message{synthetic(scope, text)}, filename)
}

func synthetic(scope domain.Scope, text string) domain.Message {
	return domain.Message{
		GuildID:   scope.GuildID,
		ChannelID: scope.ChannelID,
		AuthorID:  scope.AuthorID,
		Author:    scope.Author,
		CreatedAt: time.Now().UTC(),
		Content:   text,
	}
}

func appendSource(sources []string, source string) []string {
	for _, s := range sources {
		if s == source {
			return sources
		}
	}
	return append(sources, source)
}
