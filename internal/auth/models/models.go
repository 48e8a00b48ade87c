// Package models holds the auth domain types shared by stores, services and
// transport.
package models

import (
	"github.com/google/uuid"
)

// Role is the closed set of authorization roles a user can hold.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the account record kept in the user store. PasswordHash and Salt
// are empty for accounts created through an OAuth provider.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	Role         Role
	PasswordHash string
	Salt         string
}

// HasPassword reports whether the account can authenticate with credentials.
// OAuth-only accounts cannot.
func (u *User) HasPassword() bool {
	return u.PasswordHash != "" && u.Salt != ""
}

// Session is the server-side record a session token points at. The cookie
// only ever carries the opaque token, never this data.
type Session struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

// UserInfo is the normalized identity returned by an OAuth provider.
// Provider-specific payload shapes never cross the oauth package boundary.
type UserInfo struct {
	ID    string
	Name  string
	Email string
}

// AuthResult is the outcome of a flow that established a session.
type AuthResult struct {
	Token string
	User  *User
}
