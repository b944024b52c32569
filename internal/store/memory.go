package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"gigalert/discovery-service/internal/model"
)

type listingKey struct {
	link  string
	owner string
}

// MemoryStore keeps listings in process memory. Contents do not survive a
// restart; use it for tests and single-shot scans.
type MemoryStore struct {
	mu       sync.Mutex
	listings map[listingKey]model.Listing
	now      func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings: make(map[listingKey]model.Listing),
		now:      time.Now,
	}
}

func (s *MemoryStore) Exists(_ context.Context, link, ownerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.listings[listingKey{link, ownerID}]
	return ok, nil
}

func (s *MemoryStore) Record(_ context.Context, l model.Listing) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := listingKey{l.Link, l.OwnerID}
	if _, ok := s.listings[key]; ok {
		return false, nil
	}
	s.listings[key] = stampDiscovered(l, s.now())
	return true, nil
}

func (s *MemoryStore) PurgeOlderThan(_ context.Context, age time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-age)
	var n int64
	for key, l := range s.listings {
		if l.DiscoveredAt.Before(cutoff) {
			delete(s.listings, key)
			n++
		}
	}
	return n, nil
}

// List returns a snapshot of stored listings ordered by owner then link.
func (s *MemoryStore) List() []model.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b model.Listing) int {
		if c := strings.Compare(a.OwnerID, b.OwnerID); c != 0 {
			return c
		}
		return strings.Compare(a.Link, b.Link)
	})
	return out
}
