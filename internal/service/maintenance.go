package service

import (
	"context"
	"errors"

	"guildmem/internal/vectorstore"
)

// ErrMaintenanceUnsupported is returned when the configured store offers no
// maintenance surface.
var ErrMaintenanceUnsupported = errors.New("service: store does not support maintenance operations")

// Stats reports collection-level counters.
func (p *Pipeline) Stats(ctx context.Context) (vectorstore.Stats, error) {
	return p.store.Stats(ctx, p.collection)
}

// Health checks store liveness and reports its version string.
func (p *Pipeline) Health(ctx context.Context) (string, error) {
	if p.maint == nil {
		return "", ErrMaintenanceUnsupported
	}
	return p.maint.Health(ctx)
}

// Snapshot triggers a store-side snapshot of the collection.
func (p *Pipeline) Snapshot(ctx context.Context) (vectorstore.SnapshotInfo, error) {
	if p.maint == nil {
		return vectorstore.SnapshotInfo{}, ErrMaintenanceUnsupported
	}
	return p.maint.Snapshot(ctx, p.collection)
}

// ListSnapshots lists the store-side snapshots of the collection.
func (p *Pipeline) ListSnapshots(ctx context.Context) ([]vectorstore.SnapshotInfo, error) {
	if p.maint == nil {
		return nil, ErrMaintenanceUnsupported
	}
	return p.maint.ListSnapshots(ctx, p.collection)
}
