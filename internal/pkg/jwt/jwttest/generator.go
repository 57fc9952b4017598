// internal/pkg/jwt/jwttest/generator.go

// Package jwttest mints provider-format access tokens for tests.
package jwttest

import (
	"fmt"
	"time"

	appjwt "fleetdesk-service/internal/pkg/jwt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Generator signs tokens the way the identity provider does.
type Generator struct {
	method   jwt.SigningMethod
	key      interface{}
	issuer   string
	audience string
	Ttl      time.Duration
}

func NewGenerator(method jwt.SigningMethod, key interface{}, issuer, audience string, ttl time.Duration) *Generator {
	return &Generator{
		method:   method,
		key:      key,
		issuer:   issuer,
		audience: audience,
		Ttl:      ttl,
	}
}

// NewHMACGenerator is a shorthand for HS256-signed tokens.
func NewHMACGenerator(secret []byte, issuer, audience string, ttl time.Duration) *Generator {
	return NewGenerator(jwt.SigningMethodHS256, secret, issuer, audience, ttl)
}

// GenerateAccessToken returns the signed token and its expiry.
func (g *Generator) GenerateAccessToken(userID, email, sessionID string) (string, time.Time, error) {
	return g.generate(userID, email, sessionID, time.Now().Add(g.Ttl))
}

// GenerateExpiredAccessToken returns a token whose exp is already in the past.
func (g *Generator) GenerateExpiredAccessToken(userID, email, sessionID string) (string, time.Time, error) {
	return g.generate(userID, email, sessionID, time.Now().Add(-time.Minute))
}

func (g *Generator) generate(userID, email, sessionID string, expiresAt time.Time) (string, time.Time, error) {
	if g.key == nil {
		return "", time.Time{}, fmt.Errorf("jwt generator has nil key")
	}

	now := time.Now()
	claims := &appjwt.Claims{
		Email:     email,
		Role:      "authenticated",
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        ulid.Make().String(),
		},
	}
	if g.audience != "" {
		claims.Audience = []string{g.audience}
	}

	signed, err := jwt.NewWithClaims(g.method, claims).SignedString(g.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}
