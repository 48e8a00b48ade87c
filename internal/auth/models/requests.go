package models

import (
	"strings"

	"github.com/asaskevich/govalidator"

	dErrors "authgate/pkg/domain-errors"
)

// Field limits mirror what the sign-in and sign-up forms enforce client-side.
const (
	minNameLength     = 3
	minPasswordLength = 8
	maxFieldLength    = 255
)

// SignInRequest carries submitted credentials. The password is held only for
// the duration of the request and never persisted in clear form.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *SignInRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// Validate checks input shape only. Sign-in deliberately reports a single
// generic message for any malformed credential so the response does not hint
// at which field failed.
func (r *SignInRequest) Validate() error {
	if !govalidator.IsEmail(r.Email) || len(r.Email) > maxFieldLength {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if len(r.Password) < minPasswordLength {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return nil
}

// SignUpRequest carries a new account submission.
type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *SignUpRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// Validate returns field-level validation errors for the sign-up form.
func (r *SignUpRequest) Validate() error {
	if len(r.Name) < minNameLength || len(r.Name) > maxFieldLength {
		return dErrors.New(dErrors.CodeInvalidInput, "name must be at least 3 characters long")
	}
	if !govalidator.IsEmail(r.Email) || len(r.Email) > maxFieldLength {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid email address")
	}
	if len(r.Password) < minPasswordLength {
		return dErrors.New(dErrors.CodeInvalidInput, "password must be at least 8 characters long")
	}
	return nil
}
