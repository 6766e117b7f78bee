// Package qdrant adapts the Qdrant gRPC API to the vectorstore contract.
// Filtering, score thresholds and scroll pagination are pushed server-side.
package qdrant

import (
	"context"
	"fmt"
	"time"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"guildmem/internal/vectorstore"
)

// Config holds connection details for a Qdrant instance.
type Config struct {
	Addr   string // host:port of the gRPC endpoint
	APIKey string
}

// Store is a Qdrant-backed vector store.
type Store struct {
	conn        *grpc.ClientConn
	collections qdrant.CollectionsClient
	points      qdrant.PointsClient
	snapshots   qdrant.SnapshotsClient
	root        qdrant.QdrantClient
	apiKey      string
}

// New dials the Qdrant gRPC endpoint. The connection is established lazily;
// reachability is checked by EnsureCollection or Health at startup.
func New(cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("qdrant: address not configured")
	}
	conn, err := grpc.Dial(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", cfg.Addr, err)
	}
	return &Store{
		conn:        conn,
		collections: qdrant.NewCollectionsClient(conn),
		points:      qdrant.NewPointsClient(conn),
		snapshots:   qdrant.NewSnapshotsClient(conn),
		root:        qdrant.NewQdrantClient(conn),
		apiKey:      cfg.APIKey,
	}, nil
}

// Close tears down the gRPC connection.
func (s *Store) Close() error { return s.conn.Close() }

func (s *Store) auth(ctx context.Context) context.Context {
	if s.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", s.apiKey)
}

// EnsureCollection creates the collection with cosine distance if it does not
// exist and verifies the vector size of an existing one. Payload indexes for
// the filterable fields are created best-effort.
func (s *Store) EnsureCollection(ctx context.Context, name string, dim int) error {
	ctx = s.auth(ctx)
	list, err := s.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("qdrant: list collections: %w", err)
	}
	for _, col := range list.GetCollections() {
		if col.GetName() != name {
			continue
		}
		info, err := s.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: name})
		if err != nil {
			return fmt.Errorf("qdrant: inspect collection %q: %w", name, err)
		}
		size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != uint64(dim) {
			return fmt.Errorf("qdrant: collection %q has dimension %d, embedder produces %d", name, size, dim)
		}
		return nil
	}

	_, err = s.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dim),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %q: %w", name, err)
	}

	// Index the fields every filter touches. Failures are tolerable: the
	// store still filters, just without the index.
	for field, ft := range map[string]qdrant.FieldType{
		"guild_id":      qdrant.FieldType_FieldTypeInteger,
		"channel_id":    qdrant.FieldType_FieldTypeInteger,
		"author_id":     qdrant.FieldType_FieldTypeInteger,
		"message_id":    qdrant.FieldType_FieldTypeInteger,
		"created_at_ts": qdrant.FieldType_FieldTypeInteger,
		"content_hash":  qdrant.FieldType_FieldTypeKeyword,
	} {
		fieldType := ft
		_, _ = s.points.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      field,
			FieldType:      &fieldType,
		})
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		structs = append(structs, &qdrant.PointStruct{
			Id: &qdrant.PointId{
				PointIdOptions: &qdrant.PointId_Uuid{Uuid: p.ID},
			},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{
					Vector: &qdrant.Vector{Data: p.Vector},
				},
			},
			Payload: toValues(p.Payload),
		})
	}
	wait := true
	_, err := s.points.Upsert(s.auth(ctx), &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(structs), err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection string, ids []string) ([]vectorstore.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, &qdrant.PointId{
			PointIdOptions: &qdrant.PointId_Uuid{Uuid: id},
		})
	}
	resp, err := s.points.Get(s.auth(ctx), &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            pointIDs,
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
		WithVectors: &qdrant.WithVectorsSelector{
			SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: false},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: get %d points: %w", len(ids), err)
	}
	records := make([]vectorstore.Record, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		records = append(records, vectorstore.Record{
			ID:      point.GetId().GetUuid(),
			Payload: fromValues(point.GetPayload()),
		})
	}
	return records, nil
}

func (s *Store) Search(ctx context.Context, collection string, vector []float32, topK int, minScore float32, f vectorstore.Filter) ([]vectorstore.ScoredPoint, error) {
	if topK <= 0 {
		topK = 5
	}
	req := &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
		ScoreThreshold: &minScore,
		Filter:         toFilter(f),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	}
	resp, err := s.points.Search(s.auth(ctx), req)
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}
	results := make([]vectorstore.ScoredPoint, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		results = append(results, vectorstore.ScoredPoint{
			Payload: fromValues(point.GetPayload()),
			Score:   point.GetScore(),
		})
	}
	return results, nil
}

func (s *Store) Delete(ctx context.Context, collection string, f vectorstore.Filter) error {
	wait := true
	_, err := s.points.Delete(s.auth(ctx), &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: toFilter(f)},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete: %w", err)
	}
	return nil
}

func (s *Store) Scroll(ctx context.Context, collection string, f vectorstore.Filter, cur vectorstore.Cursor, pageSize int) ([]vectorstore.Record, vectorstore.Cursor, error) {
	if pageSize <= 0 {
		pageSize = 256
	}
	limit := uint32(pageSize)
	req := &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         toFilter(f),
		Limit:          &limit,
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
		WithVectors: &qdrant.WithVectorsSelector{
			SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: false},
		},
	}
	if cur != nil {
		offset, ok := cur.(*qdrant.PointId)
		if !ok {
			return nil, nil, fmt.Errorf("qdrant: foreign scroll cursor")
		}
		req.Offset = offset
	}
	resp, err := s.points.Scroll(s.auth(ctx), req)
	if err != nil {
		return nil, nil, fmt.Errorf("qdrant: scroll: %w", err)
	}
	records := make([]vectorstore.Record, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		records = append(records, vectorstore.Record{
			ID:      point.GetId().GetUuid(),
			Payload: fromValues(point.GetPayload()),
		})
	}
	next := resp.GetNextPageOffset()
	if next == nil {
		return records, nil, nil
	}
	return records, next, nil
}

func (s *Store) Stats(ctx context.Context, collection string) (vectorstore.Stats, error) {
	info, err := s.collections.Get(s.auth(ctx), &qdrant.GetCollectionInfoRequest{CollectionName: collection})
	if err != nil {
		return vectorstore.Stats{}, fmt.Errorf("qdrant: collection info: %w", err)
	}
	return vectorstore.Stats{
		Points:   info.GetResult().GetPointsCount(),
		Segments: info.GetResult().GetSegmentsCount(),
	}, nil
}

// Health reports the server version.
func (s *Store) Health(ctx context.Context) (string, error) {
	reply, err := s.root.HealthCheck(s.auth(ctx), &qdrant.HealthCheckRequest{})
	if err != nil {
		return "", fmt.Errorf("qdrant: health check: %w", err)
	}
	return fmt.Sprintf("%s %s", reply.GetTitle(), reply.GetVersion()), nil
}

// Snapshot triggers a server-side snapshot of the collection.
func (s *Store) Snapshot(ctx context.Context, collection string) (vectorstore.SnapshotInfo, error) {
	resp, err := s.snapshots.Create(s.auth(ctx), &qdrant.CreateSnapshotRequest{CollectionName: collection})
	if err != nil {
		return vectorstore.SnapshotInfo{}, fmt.Errorf("qdrant: create snapshot: %w", err)
	}
	return toSnapshotInfo(resp.GetSnapshotDescription()), nil
}

// ListSnapshots lists the server-side snapshots of the collection.
func (s *Store) ListSnapshots(ctx context.Context, collection string) ([]vectorstore.SnapshotInfo, error) {
	resp, err := s.snapshots.List(s.auth(ctx), &qdrant.ListSnapshotsRequest{CollectionName: collection})
	if err != nil {
		return nil, fmt.Errorf("qdrant: list snapshots: %w", err)
	}
	infos := make([]vectorstore.SnapshotInfo, 0, len(resp.GetSnapshotDescriptions()))
	for _, desc := range resp.GetSnapshotDescriptions() {
		infos = append(infos, toSnapshotInfo(desc))
	}
	return infos, nil
}

func toSnapshotInfo(desc *qdrant.SnapshotDescription) vectorstore.SnapshotInfo {
	info := vectorstore.SnapshotInfo{
		Name: desc.GetName(),
		Size: desc.GetSize(),
	}
	if ts := desc.GetCreationTime(); ts != nil {
		info.CreatedAt = ts.AsTime().UTC().Format(time.RFC3339)
	}
	return info
}

func toFilter(f vectorstore.Filter) *qdrant.Filter {
	var must []*qdrant.Condition
	if f.GuildID != nil {
		must = append(must, matchInt("guild_id", *f.GuildID))
	}
	if f.AuthorID != nil {
		must = append(must, matchInt("author_id", *f.AuthorID))
	}
	if f.ChannelID != nil {
		must = append(must, matchInt("channel_id", *f.ChannelID))
	}
	if f.Before != nil || f.After != nil {
		rng := &qdrant.Range{}
		if f.Before != nil {
			lte := float64(*f.Before)
			rng.Lte = &lte
		}
		if f.After != nil {
			gte := float64(*f.After)
			rng.Gte = &gte
		}
		must = append(must, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{Key: "created_at_ts", Range: rng},
			},
		})
	}
	if len(f.MessageIDs) > 0 {
		// Any-of over message IDs, nested so it stays conjunctive with the
		// other constraints.
		should := make([]*qdrant.Condition, 0, len(f.MessageIDs))
		for _, id := range f.MessageIDs {
			should = append(should, matchInt("message_id", id))
		}
		must = append(must, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Filter{
				Filter: &qdrant.Filter{Should: should},
			},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func matchInt(key string, value int64) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Integer{Integer: value},
				},
			},
		},
	}
}

func toValues(p vectorstore.Payload) map[string]*qdrant.Value {
	sources := make([]*qdrant.Value, 0, len(p.Sources))
	for _, src := range p.Sources {
		sources = append(sources, stringValue(src))
	}
	return map[string]*qdrant.Value{
		"guild_id":      intValue(p.GuildID),
		"channel_id":    intValue(p.ChannelID),
		"author":        stringValue(p.Author),
		"author_id":     intValue(p.AuthorID),
		"message_id":    intValue(p.MessageID),
		"created_at":    stringValue(p.CreatedAt),
		"created_at_ts": intValue(p.CreatedAtTS),
		"source":        stringValue(p.Source),
		"sources":       {Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: sources}}},
		"content_hash":  stringValue(p.ContentHash),
		"text":          stringValue(p.Text),
		"first_seen":    stringValue(p.FirstSeen),
		"last_seen":     stringValue(p.LastSeen),
	}
}

func fromValues(values map[string]*qdrant.Value) vectorstore.Payload {
	p := vectorstore.Payload{
		GuildID:     values["guild_id"].GetIntegerValue(),
		ChannelID:   values["channel_id"].GetIntegerValue(),
		Author:      values["author"].GetStringValue(),
		AuthorID:    values["author_id"].GetIntegerValue(),
		MessageID:   values["message_id"].GetIntegerValue(),
		CreatedAt:   values["created_at"].GetStringValue(),
		CreatedAtTS: values["created_at_ts"].GetIntegerValue(),
		Source:      values["source"].GetStringValue(),
		ContentHash: values["content_hash"].GetStringValue(),
		Text:        values["text"].GetStringValue(),
		FirstSeen:   values["first_seen"].GetStringValue(),
		LastSeen:    values["last_seen"].GetStringValue(),
	}
	for _, v := range values["sources"].GetListValue().GetValues() {
		p.Sources = append(p.Sources, v.GetStringValue())
	}
	return p
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(n int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: n}}
}
