package user

import (
	"context"
	"fmt"
	"sync"

	"authgate/internal/auth/models"
	"authgate/pkg/platform/sentinel"
)

// InMemoryStore keeps users in process memory for tests and local dev.
// Insert is check-and-write under one lock, so it gives the same uniqueness
// guarantee the Postgres unique index does.
type InMemoryStore struct {
	mu      sync.RWMutex
	byEmail map[string]*models.User
	byID    map[string]*models.User
}

// NewInMemory constructs an empty in-memory user store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byEmail: make(map[string]*models.User),
		byID:    make(map[string]*models.User),
	}
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.byEmail[email]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, fmt.Errorf("user %q: %w", email, sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.byID[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryStore) Insert(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return fmt.Errorf("email %q taken: %w", u.Email, sentinel.ErrConflict)
	}
	clone := *u
	s.byEmail[u.Email] = &clone
	s.byID[u.ID.String()] = &clone
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[u.ID.String()]
	if !ok {
		return fmt.Errorf("user %s: %w", u.ID, sentinel.ErrNotFound)
	}
	delete(s.byEmail, existing.Email)
	clone := *u
	s.byEmail[u.Email] = &clone
	s.byID[u.ID.String()] = &clone
	return nil
}
