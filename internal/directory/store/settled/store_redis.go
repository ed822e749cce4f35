package settled

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	id "zapgate/pkg/domain"
)

var isSettledDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "zapgate_settled_lookup_duration_ms",
	Help:    "Latency of settled-key lookups in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

// Redis key prefix for settled entry keys.
const settledKeyPrefix = "zg:settled:"

// RedisStore is the Redis-backed settled-keys set. This is the
// production-recommended implementation when several gateway instances
// must agree on which entries already paid.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed settled-keys store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// MarkSettled records the key with TTL. Uses SET-with-expiry so the record
// vanishes on its own; key existence is what matters.
func (s *RedisStore) MarkSettled(ctx context.Context, key id.EntryKey, ttl time.Duration) error {
	if key.IsNil() {
		return nil
	}
	return s.client.Set(ctx, settledKeyPrefix+key.String(), "1", ttl).Err()
}

// IsSettled checks whether the key has an unexpired settlement record.
// Returns false when the key does not exist (never settled or lapsed).
func (s *RedisStore) IsSettled(ctx context.Context, key id.EntryKey) (bool, error) {
	start := time.Now()
	defer func() {
		isSettledDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if key.IsNil() {
		return false, nil
	}
	_, err := s.client.Get(ctx, settledKeyPrefix+key.String()).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
