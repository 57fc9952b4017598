package jwt

import (
	"fmt"
)

// Config selects how provider access tokens are verified. A public key path
// takes precedence over the shared secret.
type Config struct {
	Secret   string
	PubPath  string
	Issuer   string
	Audience string
}

func LoadVerifier(cfg Config) (*Verifier, error) {
	if cfg.PubPath != "" {
		pub, err := LoadRSAPublicKeyFromPEM(cfg.PubPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load public key from %s: %w", cfg.PubPath, err)
		}
		return NewRSAVerifier(pub, cfg.Issuer, cfg.Audience), nil
	}

	if cfg.Secret == "" {
		return nil, fmt.Errorf("either JWT_PUBLIC_KEY_PATH or JWT_SECRET is required")
	}

	return NewHMACVerifier([]byte(cfg.Secret), cfg.Issuer, cfg.Audience), nil
}
