package pending

import (
	"context"
	"sync"
	"time"

	"zapgate/internal/directory/models"
	id "zapgate/pkg/domain"
	"zapgate/pkg/platform/sentinel"
)

// InMemoryStore is the authoritative table of submissions awaiting payment,
// keyed by entry key. It owns all mutation of entry state: every transition
// happens under the store mutex, so exactly one of {confirm-via-poll,
// confirm-via-receipt, expire} wins for a given entry and the losers observe
// sentinel.ErrNotFound or sentinel.ErrAlreadyResolved.
//
// Callers never receive live pointers into the table. Get and Resolve hand
// out snapshots; the embedded Listing, Invoice and Intent are immutable
// after construction, so a shallow copy is a safe snapshot.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.EntryKey]*models.PendingEntry
	byRef   map[id.SettlementRef]id.EntryKey
}

// NewInMemoryStore creates an empty pending-entry store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[id.EntryKey]*models.PendingEntry),
		byRef:   make(map[id.SettlementRef]id.EntryKey),
	}
}

// Put inserts a new pending entry. Returns sentinel.ErrConflict when an
// entry already exists under the key; the two never coexist.
func (s *InMemoryStore) Put(ctx context.Context, entry *models.PendingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.Key]; exists {
		return sentinel.ErrConflict
	}
	cp := *entry
	s.entries[entry.Key] = &cp
	return nil
}

// Get returns a snapshot of the entry, or sentinel.ErrNotFound.
func (s *InMemoryStore) Get(ctx context.Context, key id.EntryKey) (models.PendingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return models.PendingEntry{}, sentinel.ErrNotFound
	}
	return *entry, nil
}

// KeyBySettlement resolves a settlement reference to its entry key.
func (s *InMemoryStore) KeyBySettlement(ctx context.Context, ref id.SettlementRef) (id.EntryKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.byRef[ref]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return key, nil
}

// AttachInvoice transitions the entry from submitted to invoice_issued and
// records the invoice plus its originating intent. Returns
// sentinel.ErrNotFound for unknown keys and sentinel.ErrInvalidState when
// the entry is not in submitted (a gateway-failure retry may race a reap).
func (s *InMemoryStore) AttachInvoice(ctx context.Context, key id.EntryKey, inv models.Invoice, intent models.PaymentIntent, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	if entry.State != models.StateSubmitted {
		return sentinel.ErrInvalidState
	}
	entry.ApplyInvoice(inv, intent, now)
	s.byRef[inv.SettlementRef] = key
	return nil
}

// Resolve atomically moves the entry to a terminal state and removes it
// from the table, returning a snapshot of the entry as it was decided.
// This is the compare-and-transition that serializes racing confirmation
// and expiry attempts: the first caller wins, later callers get
// sentinel.ErrNotFound (entry gone) or sentinel.ErrAlreadyResolved (graph
// forbids the move).
func (s *InMemoryStore) Resolve(ctx context.Context, key id.EntryKey, target models.EntryState, now time.Time) (models.PendingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return models.PendingEntry{}, sentinel.ErrNotFound
	}
	if !entry.State.CanTransitionTo(target) {
		return models.PendingEntry{}, sentinel.ErrAlreadyResolved
	}
	entry.State = target
	entry.UpdatedAt = now

	delete(s.entries, key)
	if entry.Invoice != nil {
		delete(s.byRef, entry.Invoice.SettlementRef)
	}
	return *entry, nil
}

// Sweep returns snapshots of every entry whose deadline has passed at now.
// The reaper resolves each candidate individually afterwards, so a candidate
// confirmed between the sweep and the resolve is safely skipped.
func (s *InMemoryStore) Sweep(ctx context.Context, now time.Time, timeout time.Duration) []models.PendingEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []models.PendingEntry
	for _, entry := range s.entries {
		if entry.ExpiredBy(now, timeout) {
			expired = append(expired, *entry)
		}
	}
	return expired
}

// Len reports the number of pending entries, for the pending gauge.
func (s *InMemoryStore) Len(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
