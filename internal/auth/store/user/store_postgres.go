package user

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"authgate/internal/auth/models"
	"authgate/pkg/platform/sentinel"
)

// Schema creates the users table. Applied by deploy tooling; exposed here so
// integration tests run against the real definition.
//
//go:embed schema.sql
var Schema string

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// PostgresStore persists users in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, COALESCE(password_hash, ''), COALESCE(salt, '')
		FROM users WHERE email = $1
	`, email)
	return scanUser(row)
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", id, sentinel.ErrNotFound)
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, COALESCE(password_hash, ''), COALESCE(salt, '')
		FROM users WHERE id = $1
	`, uid)
	return scanUser(row)
}

// Insert writes a new user. The unique index on email is the arbiter for
// concurrent sign-ups with the same address.
func (s *PostgresStore) Insert(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, password_hash, salt)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
	`, u.ID, u.Name, u.Email, string(u.Role), u.PasswordHash, u.Salt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("email %q taken: %w", u.Email, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, u *models.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET name = $2, email = $3, role = $4,
		    password_hash = NULLIF($5, ''), salt = NULLIF($6, '')
		WHERE id = $1
	`, u.ID, u.Name, u.Email, string(u.Role), u.PasswordHash, u.Salt)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %s: %w", u.ID, sentinel.ErrNotFound)
	}
	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.PasswordHash, &u.Salt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = models.Role(role)
	return &u, nil
}
