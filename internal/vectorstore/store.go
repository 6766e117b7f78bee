package vectorstore

import "context"

// Payload is the metadata stored alongside each vector. Field names match the
// store-side payload keys used for filtering.
type Payload struct {
	GuildID     int64    `json:"guild_id"`
	ChannelID   int64    `json:"channel_id"`
	Author      string   `json:"author"`
	AuthorID    int64    `json:"author_id"`
	MessageID   int64    `json:"message_id"`
	CreatedAt   string   `json:"created_at"`
	CreatedAtTS int64    `json:"created_at_ts"`
	Source      string   `json:"source"`
	Sources     []string `json:"sources"`
	ContentHash string   `json:"content_hash"`
	Text        string   `json:"text"`
	FirstSeen   string   `json:"first_seen"`
	LastSeen    string   `json:"last_seen"`
}

// Point is a vector plus payload keyed by a store point ID.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Record is a stored payload returned by Scroll; vectors are never included.
type Record struct {
	ID      string  `json:"id"`
	Payload Payload `json:"payload"`
}

// ScoredPoint is a search hit with its similarity score, best first.
type ScoredPoint struct {
	Payload Payload
	Score   float32
}

// Stats summarizes a collection.
type Stats struct {
	Points   uint64 `json:"points"`
	Segments uint64 `json:"segments"`
}

// SnapshotInfo describes a store-side snapshot of a collection.
type SnapshotInfo struct {
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	Size      int64  `json:"size"`
}

// Filter is a conjunction of optional constraints over payload fields. One
// builder serves search, delete and export so the scoping logic is never
// re-derived per operation. MessageIDs is a disjunction within the
// conjunction: any listed ID matches.
type Filter struct {
	GuildID    *int64
	AuthorID   *int64
	ChannelID  *int64
	MessageIDs []int64
	Before     *int64 // created_at_ts <= Before
	After      *int64 // created_at_ts >= After
}

// Empty reports whether the filter constrains nothing. An empty filter
// matches every record; callers wanting a guard against unbounded deletes
// must check this themselves.
func (f Filter) Empty() bool {
	return f.GuildID == nil && f.AuthorID == nil && f.ChannelID == nil &&
		len(f.MessageIDs) == 0 && f.Before == nil && f.After == nil
}

// Matches evaluates the filter against a payload. Store adapters that push
// filtering server-side translate the same fields instead.
func (f Filter) Matches(p Payload) bool {
	if f.GuildID != nil && p.GuildID != *f.GuildID {
		return false
	}
	if f.AuthorID != nil && p.AuthorID != *f.AuthorID {
		return false
	}
	if f.ChannelID != nil && p.ChannelID != *f.ChannelID {
		return false
	}
	if f.Before != nil && p.CreatedAtTS > *f.Before {
		return false
	}
	if f.After != nil && p.CreatedAtTS < *f.After {
		return false
	}
	if len(f.MessageIDs) > 0 {
		found := false
		for _, id := range f.MessageIDs {
			if p.MessageID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Cursor is an opaque pagination token returned by Scroll. Passing nil starts
// from the beginning; a nil cursor coming back means no pages remain. Its
// concrete type belongs to the store that issued it.
type Cursor any

// Store is the vector-search service the pipeline runs against. One
// collection holds exactly one vector dimensionality.
type Store interface {
	// EnsureCollection creates the collection if missing and verifies the
	// dimension of an existing one. A dimension mismatch is a configuration
	// error and must fail here, not on a later call.
	EnsureCollection(ctx context.Context, name string, dim int) error

	// Upsert writes points keyed by ID; an existing ID is overwritten.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Get fetches the records for the given point IDs, vectors excluded.
	// Missing IDs are silently absent from the result.
	Get(ctx context.Context, collection string, ids []string) ([]Record, error)

	// Search returns up to topK nearest points matching the filter, best
	// first. Results scoring below minScore are excluded store-side.
	Search(ctx context.Context, collection string, vector []float32, topK int, minScore float32, f Filter) ([]ScoredPoint, error)

	// Delete removes every point matching the filter. An empty filter
	// removes everything; guarding that is the caller's job.
	Delete(ctx context.Context, collection string, f Filter) error

	// Scroll pages through matching records without vectors. Drain by
	// passing each returned cursor back until it comes back nil.
	Scroll(ctx context.Context, collection string, f Filter, cur Cursor, pageSize int) ([]Record, Cursor, error)

	// Stats reports collection-level counters.
	Stats(ctx context.Context, collection string) (Stats, error)
}

// Maintainer is the optional maintenance surface of a store: liveness and
// snapshot management. Both bundled backends implement it.
type Maintainer interface {
	Health(ctx context.Context) (string, error)
	Snapshot(ctx context.Context, collection string) (SnapshotInfo, error)
	ListSnapshots(ctx context.Context, collection string) ([]SnapshotInfo, error)
}
