package domain

import "time"

// Role enumerates account roles. Registration only ever produces
// employees; role escalation happens outside this service.
type Role string

const (
	RoleEmployee Role = "employee"
)

// User is the domain model for registered employees. The JSON tags
// describe the stored document shape; the password hash never crosses
// the API boundary (see the dto package projections).
type User struct {
	ID           string    `json:"user_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
