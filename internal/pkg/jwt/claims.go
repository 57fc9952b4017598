// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access-token claims issued by the identity provider.
type Claims struct {
	Email        string                 `json:"email,omitempty"`
	Phone        string                 `json:"phone,omitempty"`
	Role         string                 `json:"role,omitempty"` // provider role, e.g. "authenticated"; not the profile role
	SessionID    string                 `json:"session_id,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}

	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}

	return false
}
