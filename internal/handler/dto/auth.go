package dto

import (
	"time"

	"github.com/inkpost/inkpost/internal/model"
)

// SignupRequest is the body of POST /api/v1/auth/signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupResponse acknowledges a new account.
type SignupResponse struct {
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
}

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	AccessToken string             `json:"access_token"`
	TokenType   string             `json:"token_type"`
	ExpiresAt   time.Time          `json:"expires_at"`
	User        *PrincipalResponse `json:"user"`
}

// PrincipalResponse is the identity encoded in a token.
type PrincipalResponse struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Image *string `json:"image,omitempty"`
}

// UserResponse is the current user's account.
type UserResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Image     *string   `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPrincipalResponse converts a principal to its public form.
func ToPrincipalResponse(p *model.Principal) *PrincipalResponse {
	return &PrincipalResponse{
		ID:    p.UserID,
		Name:  p.Name,
		Email: p.Email,
		Image: p.Image,
	}
}

// ToUserResponse converts a User model to UserResponse DTO.
func ToUserResponse(u *model.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Image:     u.Image,
		CreatedAt: u.CreatedAt,
	}
}
