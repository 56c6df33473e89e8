package dto

import (
	"time"

	"github.com/spec-kit/reimbursement-service/internal/domain"
)

// RegisterRequest payload for new employees.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserProfile is the public projection of a user record. The password
// hash never appears here.
type UserProfile struct {
	UserID   string      `json:"user_id"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

// AuthResponse carries the session token issued on register/login.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewUserProfile projects a domain user to its API shape.
func NewUserProfile(user *domain.User) UserProfile {
	return UserProfile{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}
}
