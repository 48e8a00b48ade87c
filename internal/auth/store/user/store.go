// Package user persists account records. The auth service consumes this
// store but does not own the schema; uniqueness of email is the store's
// responsibility, and races on sign-up are resolved here, not above.
package user

import (
	"context"

	"authgate/internal/auth/models"
)

// Store is the user record contract.
//
// Error Contract:
// - FindByEmail/FindByID return sentinel.ErrNotFound for unknown users.
// - Insert returns sentinel.ErrConflict when the email is already taken,
//   including when two requests race past a prior existence check.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Insert(ctx context.Context, u *models.User) error
	// Update rewrites the mutable fields of an existing record.
	Update(ctx context.Context, u *models.User) error
}
