// internal/domain/auth/entity.go
package auth

import (
	"strings"
	"time"
)

// Role is a profile's user_level, normalized to lower case.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDriver Role = "driver"
)

// ParseRole normalizes a raw user_level value. Blank input yields "".
func ParseRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

func (r Role) IsDriver() bool {
	return r == RoleDriver
}

func (r Role) String() string {
	return string(r)
}

// User is the identity resolved from a valid session.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	SessionID string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// Profile mirrors the profiles row consumed by the gate.
type Profile struct {
	ID        string  `json:"id" db:"id"`
	UserLevel *string `json:"user_level" db:"user_level"`
}
