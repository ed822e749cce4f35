package settled

import (
	"context"
	"sync"
	"time"

	id "zapgate/pkg/domain"
)

// Store records entry keys whose payment already settled, so a resubmission
// after a successful payment is admitted without re-charging. Entries are
// kept for a bounded window; after it lapses a resubmission pays again.
type Store interface {
	MarkSettled(ctx context.Context, key id.EntryKey, ttl time.Duration) error
	IsSettled(ctx context.Context, key id.EntryKey) (bool, error)
}

// InMemoryStore implements Store with an expiring map. Single-instance
// deployments only; use RedisStore when several gateways share state.
type InMemoryStore struct {
	mu      sync.RWMutex
	settled map[id.EntryKey]time.Time
	now     func() time.Time
}

// NewInMemoryStore creates an empty settled-keys store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		settled: make(map[id.EntryKey]time.Time),
		now:     time.Now,
	}
}

// MarkSettled records the key until now+ttl.
func (s *InMemoryStore) MarkSettled(ctx context.Context, key id.EntryKey, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settled[key] = s.now().Add(ttl)
	return nil
}

// IsSettled reports whether the key has an unexpired settlement record.
// Lapsed records are pruned on read.
func (s *InMemoryStore) IsSettled(ctx context.Context, key id.EntryKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := s.settled[key]
	if !ok {
		return false, nil
	}
	if s.now().After(deadline) {
		delete(s.settled, key)
		return false, nil
	}
	return true, nil
}
