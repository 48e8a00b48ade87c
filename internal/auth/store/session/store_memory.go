package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"authgate/internal/auth/models"
	"authgate/pkg/platform/sentinel"
)

type sessionEntry struct {
	session   models.Session
	expiresAt time.Time
}

type stateEntry struct {
	provider  string
	expiresAt time.Time
}

// InMemoryStore keeps sessions and OAuth state in process memory for tests
// and local development. It intentionally favors clarity over performance.
type InMemoryStore struct {
	mu         sync.Mutex
	sessions   map[string]sessionEntry
	states     map[string]stateEntry
	sessionTTL time.Duration
	stateTTL   time.Duration

	// now is swappable so TTL expiry can be tested without sleeping.
	now func() time.Time
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory(sessionTTL, stateTTL time.Duration) *InMemoryStore {
	return &InMemoryStore{
		sessions:   make(map[string]sessionEntry),
		states:     make(map[string]stateEntry),
		sessionTTL: sessionTTL,
		stateTTL:   stateTTL,
		now:        time.Now,
	}
}

func (s *InMemoryStore) Create(_ context.Context, sess models.Session) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = sessionEntry{session: sess, expiresAt: s.now().Add(s.sessionTTL)}
	return token, nil
}

func (s *InMemoryStore) Get(_ context.Context, token string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[token]
	if !ok || entry.expiresAt.Before(s.now()) {
		delete(s.sessions, token)
		return models.Session{}, fmt.Errorf("session: %w", sentinel.ErrNotFound)
	}
	return entry.session, nil
}

func (s *InMemoryStore) Destroy(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *InMemoryStore) SaveState(_ context.Context, state, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = stateEntry{provider: provider, expiresAt: s.now().Add(s.stateTTL)}
	return nil
}

func (s *InMemoryStore) ConsumeState(_ context.Context, state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.states[state]
	delete(s.states, state)
	if !ok || entry.expiresAt.Before(s.now()) {
		return "", fmt.Errorf("oauth state: %w", sentinel.ErrNotFound)
	}
	return entry.provider, nil
}
