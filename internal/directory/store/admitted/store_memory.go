package admitted

import (
	"context"
	"sync"

	"zapgate/internal/directory/models"
	id "zapgate/pkg/domain"
)

// InMemoryStore keeps admitted listings in memory, latest admission per
// entry key. Used in tests and single-instance deployments without a
// database.
type InMemoryStore struct {
	mu       sync.RWMutex
	listings map[id.EntryKey]models.AdmittedListing
}

// NewInMemoryStore creates an empty admitted-listings store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{listings: make(map[id.EntryKey]models.AdmittedListing)}
}

// Publish stores the admitted listing, replacing any previous admission
// under the same key (republish of an addressable listing).
func (s *InMemoryStore) Publish(ctx context.Context, listing models.AdmittedListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[listing.Listing.Key()] = listing
	return nil
}

// Get returns the admitted listing for a key, if any.
func (s *InMemoryStore) Get(ctx context.Context, key id.EntryKey) (models.AdmittedListing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	listing, ok := s.listings[key]
	return listing, ok
}

// Len reports the number of admitted listings.
func (s *InMemoryStore) Len(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listings)
}
