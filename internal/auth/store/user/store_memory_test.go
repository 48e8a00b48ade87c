package user

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"authgate/internal/auth/models"
	"authgate/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func newUser(email string) *models.User {
	return &models.User{
		ID:           uuid.New(),
		Name:         "Ada",
		Email:        email,
		Role:         models.RoleUser,
		PasswordHash: "hash",
		Salt:         "salt",
	}
}

func (s *MemoryStoreSuite) TestInsertAndFind() {
	ctx := context.Background()
	u := newUser("ada@x.com")

	s.Require().NoError(s.store.Insert(ctx, u))

	byEmail, err := s.store.FindByEmail(ctx, "ada@x.com")
	s.Require().NoError(err)
	s.Equal(u, byEmail)

	byID, err := s.store.FindByID(ctx, u.ID.String())
	s.Require().NoError(err)
	s.Equal(u, byID)
}

func (s *MemoryStoreSuite) TestFindUnknownReturnsNotFound() {
	ctx := context.Background()

	_, err := s.store.FindByEmail(ctx, "nobody@x.com")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByID(ctx, uuid.NewString())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestDuplicateEmailConflicts() {
	ctx := context.Background()
	s.Require().NoError(s.store.Insert(ctx, newUser("ada@x.com")))

	err := s.store.Insert(ctx, newUser("ada@x.com"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *MemoryStoreSuite) TestConcurrentInsertsAdmitExactlyOne() {
	ctx := context.Background()

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted, conflicted := 0, 0
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Insert(ctx, newUser("race@x.com"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				inserted++
			default:
				conflicted++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, inserted)
	s.Equal(attempts-1, conflicted)
}

func (s *MemoryStoreSuite) TestUpdate() {
	ctx := context.Background()
	u := newUser("ada@x.com")
	s.Require().NoError(s.store.Insert(ctx, u))

	u.Name = "Ada Lovelace"
	s.Require().NoError(s.store.Update(ctx, u))

	found, err := s.store.FindByEmail(ctx, "ada@x.com")
	s.Require().NoError(err)
	s.Equal("Ada Lovelace", found.Name)

	err = s.store.Update(ctx, newUser("ghost@x.com"))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
