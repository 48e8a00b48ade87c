package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"authgate/internal/auth/models"
	"authgate/pkg/platform/sentinel"
)

var sessionLookupDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "authgate_session_lookup_duration_ms",
	Help:    "Latency of session lookups in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

// RedisStore is the production Store implementation. Per-key reads, writes
// and deletes are atomic at the Redis layer, so concurrent requests need no
// in-process locking; TTL expiry is enforced by Redis, not by a sweep here.
type RedisStore struct {
	client     *redis.Client
	sessionTTL time.Duration
	stateTTL   time.Duration
}

// NewRedis constructs a Redis-backed store with the given TTLs.
func NewRedis(client *redis.Client, sessionTTL, stateTTL time.Duration) *RedisStore {
	return &RedisStore{
		client:     client,
		sessionTTL: sessionTTL,
		stateTTL:   stateTTL,
	}
}

func (s *RedisStore) Create(ctx context.Context, sess models.Session) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+token, payload, s.sessionTTL).Err(); err != nil {
		return "", fmt.Errorf("write session: %w", err)
	}
	return token, nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (models.Session, error) {
	start := time.Now()
	defer func() {
		sessionLookupDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	payload, err := s.client.Get(ctx, sessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Session{}, fmt.Errorf("session: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("read session: %w", err)
	}
	var sess models.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return models.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Destroy(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveState(ctx context.Context, state, provider string) error {
	if err := s.client.Set(ctx, stateKeyPrefix+state, provider, s.stateTTL).Err(); err != nil {
		return fmt.Errorf("write oauth state: %w", err)
	}
	return nil
}

// ConsumeState uses GETDEL so the read and the delete are one atomic
// operation; two callbacks racing on the same state can never both win.
func (s *RedisStore) ConsumeState(ctx context.Context, state string) (string, error) {
	provider, err := s.client.GetDel(ctx, stateKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("oauth state: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("consume oauth state: %w", err)
	}
	return provider, nil
}
