package settled

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	clock time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store.now = func() time.Time { return s.clock }
}

func (s *InMemoryStoreSuite) TestMarkAndLookup() {
	settled, err := s.store.IsSettled(s.ctx, "cafe")
	s.Require().NoError(err)
	s.False(settled, "unknown key is not settled")

	s.Require().NoError(s.store.MarkSettled(s.ctx, "cafe", 24*time.Hour))

	settled, err = s.store.IsSettled(s.ctx, "cafe")
	s.Require().NoError(err)
	s.True(settled)
}

func (s *InMemoryStoreSuite) TestTTLExpiry() {
	s.Require().NoError(s.store.MarkSettled(s.ctx, "cafe", time.Hour))

	s.clock = s.clock.Add(59 * time.Minute)
	settled, err := s.store.IsSettled(s.ctx, "cafe")
	s.Require().NoError(err)
	s.True(settled, "still within the window")

	s.clock = s.clock.Add(2 * time.Minute)
	settled, err = s.store.IsSettled(s.ctx, "cafe")
	s.Require().NoError(err)
	s.False(settled, "record lapsed")

	s.Run("re-marking starts a fresh window", func() {
		s.Require().NoError(s.store.MarkSettled(s.ctx, "cafe", time.Hour))
		settled, err := s.store.IsSettled(s.ctx, "cafe")
		s.Require().NoError(err)
		s.True(settled)
	})
}
