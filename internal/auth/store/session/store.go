// Package session persists session records and single-use OAuth state
// tokens in a fast key-value store. Both live under distinct key namespaces
// so the two token kinds can never collide, and both tokens are opaque
// random values never derived from user input.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"authgate/internal/auth/models"
)

const (
	sessionKeyPrefix = "session:"
	stateKeyPrefix   = "oauth:state:"

	tokenBytes = 32
)

// Store is the session and OAuth-state persistence contract.
//
// Error Contract:
// - Get/ConsumeState return sentinel.ErrNotFound when the key is absent,
//   expired, or (for state) already consumed.
// - Destroy is idempotent; destroying an unknown token is not an error.
// - Infrastructure failures come back wrapped with context.
type Store interface {
	// Create writes the session under a fresh opaque token with the
	// configured TTL and returns the token for cookie placement.
	Create(ctx context.Context, sess models.Session) (string, error)
	// Get resolves a token to its session. It does not extend the TTL;
	// sessions are not sliding-window.
	Get(ctx context.Context, token string) (models.Session, error)
	Destroy(ctx context.Context, token string) error

	// SaveState records a single-use OAuth state token with a short TTL,
	// remembering which provider issued it.
	SaveState(ctx context.Context, state, provider string) error
	// ConsumeState atomically reads and deletes the state so a replayed
	// callback deterministically fails.
	ConsumeState(ctx context.Context, state string) (string, error)
}

// NewToken returns an opaque random token with 256 bits of entropy,
// base64url-encoded.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
