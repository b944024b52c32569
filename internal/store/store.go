// Package store persists matched listings and answers dedup lookups.
//
// The discovery cycle depends only on Repository; the backing store is
// chosen at startup (PostgreSQL, Redis or in-process memory).
package store

import (
	"context"
	"time"

	"gigalert/discovery-service/internal/model"
)

// Repository is the persistence boundary of the discovery worker.
//
// Callers check Exists before Record. The pair is not atomic; a single
// running loop keeps that safe. Record additionally refuses duplicates
// itself and reports whether a row was actually written.
type Repository interface {
	// Exists reports whether a listing with this link is already stored for owner.
	Exists(ctx context.Context, link, ownerID string) (bool, error)
	// Record stores l. DiscoveredAt is set to now (UTC) when zero.
	// inserted is false when (link, owner) was already present.
	Record(ctx context.Context, l model.Listing) (inserted bool, err error)
	// PurgeOlderThan deletes every listing discovered before now-age in its
	// own unit of work and returns how many were removed.
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

func stampDiscovered(l model.Listing, now time.Time) model.Listing {
	if l.DiscoveredAt.IsZero() {
		l.DiscoveredAt = now
	}
	l.DiscoveredAt = l.DiscoveredAt.UTC()
	return l
}
