package pending

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"zapgate/internal/directory/models"
	id "zapgate/pkg/domain"
	"zapgate/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newEntry(key string) *models.PendingEntry {
	listing := models.Listing{
		Pubkey:      id.Pubkey("3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"),
		EntryKey:    id.EntryKey(key),
		Title:       "Corner Cafe",
		Summary:     "Espresso and pastries downtown",
		Description: "A small specialty coffee shop with single-origin beans.",
		Category:    models.CategoryBusiness,
		CreatedAt:   1700000000,
		Status:      models.StatusPending,
	}
	return models.NewPendingEntry(listing, s.now)
}

func (s *InMemoryStoreSuite) attach(key string, ref string) {
	err := s.store.AttachInvoice(s.ctx, id.EntryKey(key),
		models.Invoice{SettlementRef: id.SettlementRef(ref)},
		models.PaymentIntent{EntryKey: id.EntryKey(key)},
		s.now,
	)
	s.Require().NoError(err)
}

func (s *InMemoryStoreSuite) TestPut() {
	s.Run("first put succeeds", func() {
		s.Require().NoError(s.store.Put(s.ctx, s.newEntry("cafe")))
		s.Equal(1, s.store.Len(s.ctx))
	})

	s.Run("duplicate key conflicts", func() {
		err := s.store.Put(s.ctx, s.newEntry("cafe"))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("stored entry is a copy", func() {
		entry := s.newEntry("copied")
		s.Require().NoError(s.store.Put(s.ctx, entry))
		entry.State = models.StateConfirmed

		got, err := s.store.Get(s.ctx, "copied")
		s.Require().NoError(err)
		s.Equal(models.StateSubmitted, got.State)
	})
}

func (s *InMemoryStoreSuite) TestGet() {
	s.Require().NoError(s.store.Put(s.ctx, s.newEntry("cafe")))

	got, err := s.store.Get(s.ctx, "cafe")
	s.Require().NoError(err)
	s.Equal(id.EntryKey("cafe"), got.Key)

	_, err = s.store.Get(s.ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestAttachInvoice() {
	s.Require().NoError(s.store.Put(s.ctx, s.newEntry("cafe")))

	s.Run("attaches and indexes the settlement ref", func() {
		s.attach("cafe", "hash-1")

		got, err := s.store.Get(s.ctx, "cafe")
		s.Require().NoError(err)
		s.Equal(models.StateInvoiceIssued, got.State)
		s.Require().NotNil(got.Invoice)

		key, err := s.store.KeyBySettlement(s.ctx, "hash-1")
		s.Require().NoError(err)
		s.Equal(id.EntryKey("cafe"), key)
	})

	s.Run("second attach is an invalid state", func() {
		err := s.store.AttachInvoice(s.ctx, "cafe",
			models.Invoice{SettlementRef: "hash-2"}, models.PaymentIntent{}, s.now)
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("unknown key not found", func() {
		err := s.store.AttachInvoice(s.ctx, "missing",
			models.Invoice{SettlementRef: "hash-3"}, models.PaymentIntent{}, s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestResolve() {
	s.Run("confirm removes the entry and its ref index", func() {
		s.Require().NoError(s.store.Put(s.ctx, s.newEntry("cafe")))
		s.attach("cafe", "hash-1")

		resolved, err := s.store.Resolve(s.ctx, "cafe", models.StateConfirmed, s.now)
		s.Require().NoError(err)
		s.Equal(models.StateConfirmed, resolved.State)

		_, err = s.store.Get(s.ctx, "cafe")
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.KeyBySettlement(s.ctx, "hash-1")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("second resolve loses", func() {
		_, err := s.store.Resolve(s.ctx, "cafe", models.StateExpired, s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("submitted entry cannot be confirmed directly", func() {
		s.Require().NoError(s.store.Put(s.ctx, s.newEntry("no-invoice")))
		_, err := s.store.Resolve(s.ctx, "no-invoice", models.StateConfirmed, s.now)
		s.ErrorIs(err, sentinel.ErrAlreadyResolved)
		s.Equal(1, s.store.Len(s.ctx), "losing resolve leaves the entry in place")
	})

	s.Run("submitted entry can expire", func() {
		resolved, err := s.store.Resolve(s.ctx, "no-invoice", models.StateExpired, s.now)
		s.Require().NoError(err)
		s.Equal(models.StateExpired, resolved.State)
	})
}

// TestResolveRace drives many concurrent confirm and expire attempts at one
// entry; exactly one caller may win.
func (s *InMemoryStoreSuite) TestResolveRace() {
	s.Require().NoError(s.store.Put(s.ctx, s.newEntry("contested")))
	s.attach("contested", "hash-r")

	const racers = 50
	var wg sync.WaitGroup
	var confirms, expiries atomic.Int32

	for i := 0; i < racers; i++ {
		wg.Add(1)
		target := models.StateConfirmed
		if i%2 == 1 {
			target = models.StateExpired
		}
		go func(target models.EntryState) {
			defer wg.Done()
			if _, err := s.store.Resolve(s.ctx, "contested", target, s.now); err == nil {
				if target == models.StateConfirmed {
					confirms.Add(1)
				} else {
					expiries.Add(1)
				}
			}
		}(target)
	}
	wg.Wait()

	s.Equal(int32(1), confirms.Load()+expiries.Load(), "exactly one resolve may win")
	s.Equal(0, s.store.Len(s.ctx))
}

func (s *InMemoryStoreSuite) TestSweep() {
	timeout := 5 * time.Minute

	fresh := s.newEntry("fresh")
	stale := s.newEntry("stale")
	stale.ArrivedAt = s.now.Add(-10 * time.Minute)
	stale.UpdatedAt = stale.ArrivedAt
	s.Require().NoError(s.store.Put(s.ctx, fresh))
	s.Require().NoError(s.store.Put(s.ctx, stale))

	expired := s.store.Sweep(s.ctx, s.now, timeout)
	s.Require().Len(expired, 1)
	s.Equal(id.EntryKey("stale"), expired[0].Key)

	s.Run("sweep does not mutate the table", func() {
		s.Equal(2, s.store.Len(s.ctx))
	})
}
