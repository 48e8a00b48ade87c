//go:build integration

package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"authgate/internal/auth/models"
	"authgate/internal/auth/store/session"
	"authgate/pkg/platform/sentinel"
	"authgate/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *session.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = session.NewRedis(s.redis.Client, 7*24*time.Hour, 10*time.Minute)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestSessionLifecycle() {
	ctx := context.Background()
	sess := models.Session{UserID: uuid.New(), Role: models.RoleAdmin}

	token, err := s.store.Create(ctx, sess)
	s.Require().NoError(err)
	s.NotEmpty(token)

	found, err := s.store.Get(ctx, token)
	s.Require().NoError(err)
	s.Equal(sess, found)

	s.Require().NoError(s.store.Destroy(ctx, token))
	_, err = s.store.Get(ctx, token)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	// Destroy is idempotent.
	s.Require().NoError(s.store.Destroy(ctx, token))
}

func (s *RedisStoreSuite) TestSessionTTLIsEnforcedByRedis() {
	ctx := context.Background()
	shortLived := session.NewRedis(s.redis.Client, 500*time.Millisecond, time.Minute)

	token, err := shortLived.Create(ctx, models.Session{UserID: uuid.New(), Role: models.RoleUser})
	s.Require().NoError(err)

	_, err = shortLived.Get(ctx, token)
	s.Require().NoError(err)

	time.Sleep(time.Second)

	_, err = shortLived.Get(ctx, token)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestStateIsSingleUse() {
	ctx := context.Background()

	state, err := session.NewToken()
	s.Require().NoError(err)
	s.Require().NoError(s.store.SaveState(ctx, state, "google"))

	provider, err := s.store.ConsumeState(ctx, state)
	s.Require().NoError(err)
	s.Equal("google", provider)

	_, err = s.store.ConsumeState(ctx, state)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestConcurrentStateConsumersRaceToOneWinner() {
	ctx := context.Background()

	state, err := session.NewToken()
	s.Require().NoError(err)
	s.Require().NoError(s.store.SaveState(ctx, state, "google"))

	const consumers = 10
	var wg sync.WaitGroup
	wins := make(chan struct{}, consumers)
	for range consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.ConsumeState(ctx, state); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)
	s.Len(wins, 1)
}

func (s *RedisStoreSuite) TestNamespacesDoNotCollide() {
	ctx := context.Background()

	token, err := s.store.Create(ctx, models.Session{UserID: uuid.New(), Role: models.RoleUser})
	s.Require().NoError(err)

	// A state token with the same value as a session token must not resolve
	// as state, and consuming it must not delete the session.
	_, err = s.store.ConsumeState(ctx, token)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.Get(ctx, token)
	s.Require().NoError(err)
}
