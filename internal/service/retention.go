package service

import (
	"context"
	"fmt"
	"time"

	"guildmem/internal/vectorstore"
)

// DeleteByUser removes everything a user contributed, across all guilds.
func (p *Pipeline) DeleteByUser(ctx context.Context, authorID int64) error {
	return p.DeleteFiltered(ctx, vectorstore.Filter{AuthorID: &authorID})
}

// DeleteByMessageIDs removes the points indexed from the given messages.
// When authorID is non-nil the deletion additionally requires the author to
// match, so a user can only unindex their own messages.
func (p *Pipeline) DeleteByMessageIDs(ctx context.Context, messageIDs []int64, authorID *int64) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return p.DeleteFiltered(ctx, vectorstore.Filter{
		AuthorID:   authorID,
		MessageIDs: messageIDs,
	})
}

// DeleteOlderThan removes points whose origin timestamp is more than the
// given number of days in the past, optionally limited to one guild. A
// non-positive retention period disables the cleanup: zero never means
// "delete everything".
func (p *Pipeline) DeleteOlderThan(ctx context.Context, days int, guildID *int64) error {
	if days <= 0 {
		p.log.Debug("retention disabled, nothing deleted", "days", days)
		return nil
	}
	cutoff := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour).Unix()
	return p.DeleteFiltered(ctx, vectorstore.Filter{GuildID: guildID, Before: &cutoff})
}

// DeleteFiltered removes every point the filter matches. An empty filter
// clears the whole collection; the guard for that lives in the caller, not
// here.
func (p *Pipeline) DeleteFiltered(ctx context.Context, f vectorstore.Filter) error {
	if err := p.store.Delete(ctx, p.collection, f); err != nil {
		return fmt.Errorf("service: delete: %w", err)
	}
	p.log.Info("deleted points", "filter_empty", f.Empty())
	return nil
}

// ExportUser returns every stored record a user contributed within a guild,
// vectors excluded.
func (p *Pipeline) ExportUser(ctx context.Context, guildID, authorID int64) ([]vectorstore.Record, error) {
	return p.Export(ctx, vectorstore.Filter{GuildID: &guildID, AuthorID: &authorID})
}

// Export drains every record matching the filter via scroll pagination.
// Vectors are never included: the export is the payload, not the embedding.
func (p *Pipeline) Export(ctx context.Context, f vectorstore.Filter) ([]vectorstore.Record, error) {
	var records []vectorstore.Record
	var cur vectorstore.Cursor
	for {
		page, next, err := p.store.Scroll(ctx, p.collection, f, cur, 256)
		if err != nil {
			return nil, fmt.Errorf("service: export scroll: %w", err)
		}
		records = append(records, page...)
		if next == nil {
			break
		}
		cur = next
	}
	p.log.Debug("exported records", "count", len(records))
	return records, nil
}
