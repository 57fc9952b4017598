// internal/pkg/jwt/verifier.go
package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is re-exported so callers can detect refreshable tokens
// without importing golang-jwt directly.
var ErrTokenExpired = jwt.ErrTokenExpired

// Verifier validates provider access tokens signed with either a shared
// HMAC secret or an RSA key pair.
type Verifier struct {
	secret   []byte
	pub      *rsa.PublicKey
	issuer   string
	audience string
}

func NewHMACVerifier(secret []byte, issuer, audience string) *Verifier {
	return &Verifier{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
	}
}

func NewRSAVerifier(pub *rsa.PublicKey, issuer, audience string) *Verifier {
	return &Verifier{
		pub:      pub,
		issuer:   issuer,
		audience: audience,
	}
}

// Verify validates a JWT token and returns the claims
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if v.pub == nil && len(v.secret) == 0 {
		return nil, fmt.Errorf("jwt verifier has no key")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("invalid issuer: expected %s, got %s", v.issuer, claims.Issuer)
	}

	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return nil, fmt.Errorf("invalid audience")
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return claims, nil
}

// IsExpired reports whether err came from an otherwise well-formed token
// that is past its exp claim.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if len(v.secret) == 0 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	case *jwt.SigningMethodRSA:
		if v.pub == nil {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.pub, nil
	default:
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
}
