package trust

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "zapgate/pkg/domain"
)

const (
	memberHex   = "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"
	strangerHex = "32e1827635450ebb3c5a7d12c1f8e7b2b514439ac10a67eef3d9fd9c5c68e245"
)

type StaticOracleSuite struct {
	suite.Suite
	ctx context.Context
}

func TestStaticOracleSuite(t *testing.T) {
	suite.Run(t, new(StaticOracleSuite))
}

func (s *StaticOracleSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *StaticOracleSuite) TestSeededMembership() {
	oracle := NewStaticOracle(id.Pubkey(memberHex))

	trusted, err := oracle.IsTrusted(s.ctx, id.Pubkey(memberHex))
	s.Require().NoError(err)
	s.True(trusted)

	trusted, err = oracle.IsTrusted(s.ctx, id.Pubkey(strangerHex))
	s.Require().NoError(err)
	s.False(trusted)
}

func (s *StaticOracleSuite) TestGrantRevoke() {
	oracle := NewStaticOracle()

	s.True(oracle.Grant(id.Pubkey(memberHex)), "first grant reports a change")
	s.False(oracle.Grant(id.Pubkey(memberHex)), "second grant is a no-op")
	s.Equal(1, oracle.Len())

	trusted, err := oracle.IsTrusted(s.ctx, id.Pubkey(memberHex))
	s.Require().NoError(err)
	s.True(trusted)

	s.True(oracle.Revoke(id.Pubkey(memberHex)))
	s.False(oracle.Revoke(id.Pubkey(memberHex)), "revoking an absent member is a no-op")
	s.Equal(0, oracle.Len())

	trusted, err = oracle.IsTrusted(s.ctx, id.Pubkey(memberHex))
	s.Require().NoError(err)
	s.False(trusted)
}

func (s *StaticOracleSuite) TestConcurrentMutation() {
	oracle := NewStaticOracle()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			oracle.Grant(id.Pubkey(memberHex))
		}()
		go func() {
			defer wg.Done()
			_, _ = oracle.IsTrusted(s.ctx, id.Pubkey(memberHex))
		}()
	}
	wg.Wait()
	s.Equal(1, oracle.Len())
}

type RelayOracleSuite struct {
	suite.Suite
	ctx context.Context
}

func TestRelayOracleSuite(t *testing.T) {
	suite.Run(t, new(RelayOracleSuite))
}

func (s *RelayOracleSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *RelayOracleSuite) TestTrustCheck() {
	var gotPubkey atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal("/api/trust-check", r.URL.Path)
		gotPubkey.Store(r.URL.Query().Get("pubkey"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"trusted":true}`))
	}))
	defer srv.Close()

	oracle := NewRelayOracle(srv.URL)
	trusted, err := oracle.IsTrusted(s.ctx, id.Pubkey(memberHex))
	s.Require().NoError(err)
	s.True(trusted)
	s.Equal(memberHex, gotPubkey.Load())
}

func (s *RelayOracleSuite) TestRelayErrors() {
	s.Run("non-200 status is an error", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewRelayOracle(srv.URL).IsTrusted(s.ctx, id.Pubkey(memberHex))
		s.Error(err)
	})

	s.Run("unreachable relay is an error", func() {
		_, err := NewRelayOracle("http://127.0.0.1:1").IsTrusted(s.ctx, id.Pubkey(memberHex))
		s.Error(err)
	})

	s.Run("garbage body is an error", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer srv.Close()

		_, err := NewRelayOracle(srv.URL).IsTrusted(s.ctx, id.Pubkey(memberHex))
		s.Error(err)
	})
}

type countingOracle struct {
	calls atomic.Int32
	ret   bool
	err   error
}

func (c *countingOracle) IsTrusted(ctx context.Context, pubkey id.Pubkey) (bool, error) {
	c.calls.Add(1)
	if c.err != nil {
		return false, c.err
	}
	return c.ret, nil
}

type CachedOracleSuite struct {
	suite.Suite
	ctx   context.Context
	clock time.Time
}

func TestCachedOracleSuite(t *testing.T) {
	suite.Run(t, new(CachedOracleSuite))
}

func (s *CachedOracleSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *CachedOracleSuite) newCached(inner Oracle, ttl time.Duration) *CachedOracle {
	cached := NewCachedOracle(inner, ttl)
	cached.now = func() time.Time { return s.clock }
	return cached
}

func (s *CachedOracleSuite) TestCachesVerdict() {
	inner := &countingOracle{ret: true}
	cached := s.newCached(inner, time.Minute)

	for i := 0; i < 5; i++ {
		trusted, err := cached.IsTrusted(s.ctx, id.Pubkey(memberHex))
		s.Require().NoError(err)
		s.True(trusted)
	}
	s.Equal(int32(1), inner.calls.Load(), "one relay hit per TTL window")
}

func (s *CachedOracleSuite) TestExpiresVerdict() {
	inner := &countingOracle{ret: true}
	cached := s.newCached(inner, time.Minute)

	_, err := cached.IsTrusted(s.ctx, id.Pubkey(memberHex))
	s.Require().NoError(err)

	s.clock = s.clock.Add(2 * time.Minute)
	_, err = cached.IsTrusted(s.ctx, id.Pubkey(memberHex))
	s.Require().NoError(err)
	s.Equal(int32(2), inner.calls.Load())
}

func (s *CachedOracleSuite) TestErrorsNotCached() {
	inner := &countingOracle{err: errors.New("relay unreachable")}
	cached := s.newCached(inner, time.Minute)

	_, err := cached.IsTrusted(s.ctx, id.Pubkey(memberHex))
	s.Error(err)
	_, err = cached.IsTrusted(s.ctx, id.Pubkey(memberHex))
	s.Error(err)
	s.Equal(int32(2), inner.calls.Load(), "failed lookups retry immediately")

	inner.err = nil
	inner.ret = true
	trusted, err := cached.IsTrusted(s.ctx, id.Pubkey(memberHex))
	s.Require().NoError(err)
	s.True(trusted)
}
