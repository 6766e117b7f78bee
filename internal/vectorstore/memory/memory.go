// Package memory provides a brute-force in-memory vector store. It backs
// tests and small single-process deployments; semantics mirror the remote
// store: upsert by ID, cosine similarity, server-side score threshold and
// filtered scroll pagination.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"guildmem/internal/vectorstore"
)

type entry struct {
	vector  []float32
	payload vectorstore.Payload
}

// Store keeps everything behind one mutex; fine at the scale it serves.
type Store struct {
	mu          sync.RWMutex
	collections map[string]int // name -> dimension
	points      map[string]map[string]entry
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		collections: make(map[string]int),
		points:      make(map[string]map[string]entry),
	}
}

// EnsureCollection registers the collection or verifies its dimension.
func (s *Store) EnsureCollection(_ context.Context, name string, dim int) error {
	if dim <= 0 {
		return errors.New("memory: invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.collections[name]; ok {
		if existing != dim {
			return fmt.Errorf("memory: collection %q has dimension %d, embedder produces %d", name, existing, dim)
		}
		return nil
	}
	s.collections[name] = dim
	s.points[name] = make(map[string]entry)
	return nil
}

func (s *Store) Upsert(_ context.Context, collection string, points []vectorstore.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dim, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("memory: unknown collection %q", collection)
	}
	for _, p := range points {
		if len(p.Vector) != dim {
			return fmt.Errorf("memory: vector dimension %d does not match collection dimension %d", len(p.Vector), dim)
		}
	}
	for _, p := range points {
		s.points[collection][p.ID] = entry{vector: p.Vector, payload: p.Payload}
	}
	return nil
}

func (s *Store) Get(_ context.Context, collection string, ids []string) ([]vectorstore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pts, ok := s.points[collection]
	if !ok {
		return nil, fmt.Errorf("memory: unknown collection %q", collection)
	}
	records := make([]vectorstore.Record, 0, len(ids))
	for _, id := range ids {
		if e, ok := pts[id]; ok {
			records = append(records, vectorstore.Record{ID: id, Payload: e.payload})
		}
	}
	return records, nil
}

func (s *Store) Search(_ context.Context, collection string, vector []float32, topK int, minScore float32, f vectorstore.Filter) ([]vectorstore.ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pts, ok := s.points[collection]
	if !ok {
		return nil, fmt.Errorf("memory: unknown collection %q", collection)
	}
	if topK <= 0 {
		topK = 5
	}
	results := make([]vectorstore.ScoredPoint, 0, len(pts))
	for _, e := range pts {
		if !f.Matches(e.payload) {
			continue
		}
		score := cosine(vector, e.vector)
		if score < minScore {
			continue
		}
		results = append(results, vectorstore.ScoredPoint{Payload: e.payload, Score: score})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *Store) Delete(_ context.Context, collection string, f vectorstore.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pts, ok := s.points[collection]
	if !ok {
		return fmt.Errorf("memory: unknown collection %q", collection)
	}
	for id, e := range pts {
		if f.Matches(e.payload) {
			delete(pts, id)
		}
	}
	return nil
}

// cursor is the opaque scroll position: index into the sorted ID snapshot.
type cursor struct {
	offset int
}

func (s *Store) Scroll(_ context.Context, collection string, f vectorstore.Filter, cur vectorstore.Cursor, pageSize int) ([]vectorstore.Record, vectorstore.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pts, ok := s.points[collection]
	if !ok {
		return nil, nil, fmt.Errorf("memory: unknown collection %q", collection)
	}
	if pageSize <= 0 {
		pageSize = 256
	}
	offset := 0
	if cur != nil {
		c, ok := cur.(cursor)
		if !ok {
			return nil, nil, errors.New("memory: foreign scroll cursor")
		}
		offset = c.offset
	}

	ids := make([]string, 0, len(pts))
	for id, e := range pts {
		if f.Matches(e.payload) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	if offset >= len(ids) {
		return nil, nil, nil
	}
	end := offset + pageSize
	if end > len(ids) {
		end = len(ids)
	}
	records := make([]vectorstore.Record, 0, end-offset)
	for _, id := range ids[offset:end] {
		records = append(records, vectorstore.Record{ID: id, Payload: pts[id].payload})
	}
	if end == len(ids) {
		return records, nil, nil
	}
	return records, cursor{offset: end}, nil
}

func (s *Store) Stats(_ context.Context, collection string) (vectorstore.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pts, ok := s.points[collection]
	if !ok {
		return vectorstore.Stats{}, fmt.Errorf("memory: unknown collection %q", collection)
	}
	return vectorstore.Stats{Points: uint64(len(pts)), Segments: 1}, nil
}

// Health always succeeds; the store lives in-process.
func (s *Store) Health(context.Context) (string, error) { return "memory", nil }

// Snapshot is not supported in-process.
func (s *Store) Snapshot(context.Context, string) (vectorstore.SnapshotInfo, error) {
	return vectorstore.SnapshotInfo{}, errors.New("memory: snapshots not supported")
}

// ListSnapshots is not supported in-process.
func (s *Store) ListSnapshots(context.Context, string) ([]vectorstore.SnapshotInfo, error) {
	return nil, errors.New("memory: snapshots not supported")
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
