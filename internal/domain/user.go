package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization level of a user
type Role int

const (
	RoleUser  Role = 1
	RoleAdmin Role = 2
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "ADMIN"
	case RoleUser:
		return "USER"
	default:
		return "UNKNOWN"
	}
}

// ParseRole maps a role name back to its value, defaulting to RoleUser
func ParseRole(name string) Role {
	if name == RoleAdmin.String() {
		return RoleAdmin
	}
	return RoleUser
}

// User represents a registered account
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	PhoneNumber  *string   `json:"phone_number,omitempty" db:"phone_number"`
	Address      *string   `json:"address,omitempty" db:"address"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// RefreshToken is a long lived credential exchanged for access tokens
type RefreshToken struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Token     string    `json:"token" db:"token"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Revoked   bool      `json:"revoked" db:"revoked"`
}
