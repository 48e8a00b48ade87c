package handler

import (
	"authgate/internal/auth/models"
)

// UserResponse is the HTTP shape of an account. Credentials never appear in
// responses.
type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func fromUser(u *models.User) *UserResponse {
	return &UserResponse{
		ID:    u.ID.String(),
		Name:  u.Name,
		Email: u.Email,
		Role:  string(u.Role),
	}
}
